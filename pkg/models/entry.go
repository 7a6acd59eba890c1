package models

import "time"

// BoxEntry is one weighed box inside a session. Box numbers are unique per
// session; auto-assigned numbers continue from the highest currently
// recorded, so deleting the newest box frees its number for reuse.
type BoxEntry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	BoxNo       int       `json:"box_no"`
	WeightGrams float64   `json:"weight_grams"`
	Category    Category  `json:"category"`
	ScaleName   string    `json:"scale_name,omitempty"`
	WeighedAt   time.Time `json:"weighed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AddEntryRequest records a weighed box against an open session. BoxNo is
// optional; when omitted the next number is assigned. WeighedAt is optional;
// when omitted the server clock is used.
type AddEntryRequest struct {
	SessionID   string     `json:"session_id" validate:"required"`
	BoxNo       *int       `json:"box_no,omitempty" validate:"omitempty,min=1"`
	WeightGrams float64    `json:"weight_grams" validate:"required"`
	Category    string     `json:"category" validate:"required"`
	ScaleName   string     `json:"scale_name,omitempty"`
	WeighedAt   *time.Time `json:"weighed_at,omitempty"`
}

// UpdateEntryRequest corrects a recorded box while its session is open.
type UpdateEntryRequest struct {
	WeightGrams *float64 `json:"weight_grams,omitempty"`
	Category    *string  `json:"category,omitempty"`
}
