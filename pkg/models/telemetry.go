package models

import "time"

// TelemetrySnapshot is the latest reading from one physical scale. It lives
// only in the short-lived cache: each new reading overwrites the previous one
// and the whole snapshot expires if the scale goes quiet.
type TelemetrySnapshot struct {
	Scale     string    `json:"scale"`
	Weight    float64   `json:"weight"`    // grams
	WeightKG  float64   `json:"weight_kg"` // value as originally reported
	Unit      string    `json:"unit"`      // always "g"
	Stable    bool      `json:"stable"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishWeightRequest is the push path for scale readings, used by the
// ingestion pipeline itself and by test harnesses.
type PublishWeightRequest struct {
	Scale    string  `json:"scale" validate:"required"`
	WeightKG float64 `json:"weight_kg" validate:"required"`
	Stable   *bool   `json:"stable,omitempty"`
}
