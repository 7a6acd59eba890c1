// Package telemetry maintains the live view of the weighing floor: the most
// recent normalized reading per scale, held in a short-TTL cache. Readings
// are advisory only; nothing here writes to the session ledger.
package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/units"
)

type Service struct {
	store  Store
	logger ectologger.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store Store, logger ectologger.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		ttl:    SnapshotTTL,
		now:    time.Now,
	}
}

// Publish records a reading supplied directly in kilograms, overwriting any
// previous snapshot for the scale.
func (s *Service) Publish(ctx context.Context, req models.PublishWeightRequest) (*models.TelemetrySnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "telemetry.Service.Publish")
	defer span.End()

	scale := canonicalScale(req.Scale)
	if scale == "" {
		return nil, errors.NewValidationError("scale name is required")
	}
	if req.WeightKG <= 0 {
		return nil, errors.NewValidationError("weight must be positive, got %v", req.WeightKG)
	}

	stable := true
	if req.Stable != nil {
		stable = *req.Stable
	}

	snapshot := models.TelemetrySnapshot{
		Scale:     scale,
		Weight:    units.Round(units.ToGrams(req.WeightKG, units.Kilogram)),
		WeightKG:  req.WeightKG,
		Unit:      string(units.Gram),
		Stable:    stable,
		Timestamp: s.now().UTC(),
	}

	if err := s.store.Put(ctx, scale, snapshot, s.ttl); err != nil {
		return nil, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues("cached").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"scale":  scale,
		"weight": snapshot.Weight,
	}).Debugf("Published weight for scale %s", scale)

	return &snapshot, nil
}

// IngestReading normalizes a raw broker payload and caches it as the scale's
// latest snapshot. Unparseable payloads are rejected so the ingestor can drop
// them.
func (s *Service) IngestReading(ctx context.Context, scale string, payload []byte) (*models.TelemetrySnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "telemetry.Service.IngestReading")
	defer span.End()

	scale = canonicalScale(scale)
	if scale == "" {
		return nil, errors.NewValidationError("reading has no scale identity")
	}

	reading, err := units.Normalize(string(payload))
	if err != nil {
		return nil, err
	}
	if reading.UnitAssumed {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"scale":   scale,
			"payload": string(payload),
		}).Warn("Reading carried no recognizable unit, assuming kilograms")
	}

	snapshot := models.TelemetrySnapshot{
		Scale:     scale,
		Weight:    reading.Grams,
		WeightKG:  reading.Grams / 1000,
		Unit:      string(units.Gram),
		Stable:    parseStable(payload),
		Timestamp: s.now().UTC(),
	}

	if err := s.store.Put(ctx, scale, snapshot, s.ttl); err != nil {
		return nil, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues("cached").Inc()

	return &snapshot, nil
}

// GetLatest returns the live snapshot for a scale. Scales that never
// reported and scales whose snapshot expired are indistinguishable: both are
// not found.
func (s *Service) GetLatest(ctx context.Context, scale string) (*models.TelemetrySnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "telemetry.Service.GetLatest")
	defer span.End()

	scale = canonicalScale(scale)
	if scale == "" {
		return nil, errors.NewValidationError("scale name is required")
	}

	snapshot, err := s.store.Get(ctx, scale)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		metrics.LatestReadingRequestsTotal.WithLabelValues("miss").Inc()
		return nil, errors.NewNotFoundError("no live reading for scale '%s'", scale)
	}
	metrics.LatestReadingRequestsTotal.WithLabelValues("hit").Inc()
	return snapshot, nil
}

func canonicalScale(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// parseStable pulls an optional stability flag out of JSON payloads. Scales
// that do not report one are treated as stable.
func parseStable(payload []byte) bool {
	var record map[string]any
	if err := json.Unmarshal(payload, &record); err != nil {
		return true
	}
	if stable, ok := record["stable"].(bool); ok {
		return stable
	}
	return true
}
