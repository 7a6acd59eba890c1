// Package ledger implements the box entry ledger of a weighing session. Each
// mutation locks the session row, applies the change, and recomputes the
// session totals from a full rescan of the entries inside the same
// transaction, so the stored aggregates are always exact.
package ledger

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/internal/repositories/boxentry"
	sessionrepo "github.com/Ramsey-B/sage/internal/repositories/session"
	"github.com/Ramsey-B/sage/pkg/changelog"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Service implements ledger commands and queries
type Service struct {
	db       database.DB
	sessions sessionrepo.SessionRepository
	entries  boxentry.BoxEntryRepository
	events   changelog.Emitter
	logger   ectologger.Logger
	now      func() time.Time
}

// NewService creates a new ledger service
func NewService(
	db database.DB,
	sessions sessionrepo.SessionRepository,
	entries boxentry.BoxEntryRepository,
	events changelog.Emitter,
	logger ectologger.Logger,
) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		entries:  entries,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// AddEntry records a weighed box against an open session. When no box number
// is supplied the next one after the highest currently recorded is assigned.
func (s *Service) AddEntry(ctx context.Context, req models.AddEntryRequest) (*models.BoxEntry, *models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.AddEntry")
	defer span.End()

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return nil, nil, err
	}
	if req.WeightGrams <= 0 {
		return nil, nil, errors.NewValidationError("weight must be positive, got %v", req.WeightGrams)
	}
	if req.BoxNo != nil && *req.BoxNo < 1 {
		return nil, nil, errors.NewValidationError("box number must be at least 1, got %d", *req.BoxNo)
	}

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to add entry")
	}
	defer tx.Rollback(ctx)

	session, err := s.openSessionForUpdate(txCtx, req.SessionID)
	if err != nil {
		return nil, nil, err
	}

	boxNo := 0
	if req.BoxNo != nil {
		boxNo = *req.BoxNo
	} else {
		max, err := s.entries.MaxBoxNo(txCtx, session.ID)
		if err != nil {
			return nil, nil, err
		}
		boxNo = max + 1
	}

	weighedAt := s.now().UTC()
	if req.WeighedAt != nil {
		weighedAt = req.WeighedAt.UTC()
	}

	entry, err := s.entries.Create(txCtx, &models.BoxEntry{
		SessionID:   session.ID,
		BoxNo:       boxNo,
		WeightGrams: req.WeightGrams,
		Category:    category,
		ScaleName:   req.ScaleName,
		WeighedAt:   weighedAt,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.recompute(txCtx, session); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, nil, errors.NewInternalError("failed to add entry")
	}

	s.events.EmitEntry(ctx, changelog.EventEntryAdded, session, entry)
	metrics.EntryMutationsTotal.WithLabelValues("added").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"session_id": session.ID,
		"box_no":     entry.BoxNo,
		"weight":     entry.WeightGrams,
		"category":   string(entry.Category),
	}).Info("Box entry recorded")

	return entry, session, nil
}

// UpdateEntry corrects a recorded box's weight or category while its session
// is still open.
func (s *Service) UpdateEntry(ctx context.Context, entryID string, req models.UpdateEntryRequest) (*models.BoxEntry, *models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.UpdateEntry")
	defer span.End()

	if req.WeightGrams == nil && req.Category == nil {
		return nil, nil, errors.NewValidationError("nothing to update")
	}
	if req.WeightGrams != nil && *req.WeightGrams <= 0 {
		return nil, nil, errors.NewValidationError("weight must be positive, got %v", *req.WeightGrams)
	}

	var category models.Category
	if req.Category != nil {
		parsed, err := models.ParseCategory(*req.Category)
		if err != nil {
			return nil, nil, err
		}
		category = parsed
	}

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to update entry")
	}
	defer tx.Rollback(ctx)

	entry, err := s.entries.GetByID(txCtx, entryID)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.openSessionForUpdate(txCtx, entry.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if req.WeightGrams != nil {
		entry.WeightGrams = *req.WeightGrams
	}
	if req.Category != nil {
		entry.Category = category
	}

	entry, err = s.entries.Update(txCtx, entry)
	if err != nil {
		return nil, nil, err
	}

	if err := s.recompute(txCtx, session); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, nil, errors.NewInternalError("failed to update entry")
	}

	s.events.EmitEntry(ctx, changelog.EventEntryUpdated, session, entry)
	metrics.EntryMutationsTotal.WithLabelValues("updated").Inc()

	return entry, session, nil
}

// DeleteEntry removes a recorded box while its session is still open.
func (s *Service) DeleteEntry(ctx context.Context, entryID string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.DeleteEntry")
	defer span.End()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to delete entry")
	}
	defer tx.Rollback(ctx)

	entry, err := s.entries.GetByID(txCtx, entryID)
	if err != nil {
		return nil, err
	}

	session, err := s.openSessionForUpdate(txCtx, entry.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.entries.Delete(txCtx, entryID); err != nil {
		return nil, err
	}

	if err := s.recompute(txCtx, session); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, errors.NewInternalError("failed to delete entry")
	}

	s.events.EmitEntry(ctx, changelog.EventEntryDeleted, session, entry)
	metrics.EntryMutationsTotal.WithLabelValues("deleted").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"session_id": session.ID,
		"box_no":     entry.BoxNo,
	}).Info("Box entry deleted")

	return session, nil
}

// ListEntries returns a session's entries ordered by box number.
func (s *Service) ListEntries(ctx context.Context, sessionID string) ([]models.BoxEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.ListEntries")
	defer span.End()

	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.entries.ListBySession(ctx, sessionID)
}

// GetSessionData returns a session with its full ledger.
func (s *Service) GetSessionData(ctx context.Context, sessionID string) (*models.SessionData, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.GetSessionData")
	defer span.End()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.SessionData{
		Session: session,
		Entries: entries,
	}, nil
}

// GetCurrentSessionData resolves the operator's open session on a batch and
// returns it with its full ledger.
func (s *Service) GetCurrentSessionData(ctx context.Context, operatorID, batchNumber string) (*models.SessionData, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.GetCurrentSessionData")
	defer span.End()

	if operatorID == "" || batchNumber == "" {
		return nil, errors.NewValidationError("operator_id and batch_number are required")
	}

	session, err := s.sessions.GetOpenByOperatorAndBatch(ctx, operatorID, batchNumber)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return &models.SessionData{
		Session: session,
		Entries: entries,
	}, nil
}

// openSessionForUpdate locks the session row and rejects closed sessions.
func (s *Service) openSessionForUpdate(ctx context.Context, sessionID string) (*models.WeighingSession, error) {
	session, err := s.sessions.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, errors.NewConflictError("session '%s' is closed", session.ID).
			AddMetaValue("session_id", session.ID)
	}
	return session, nil
}

// recompute rescans the session's entries and overwrites the stored totals
// within the caller's transaction. Deltas are never applied; the rescan is
// the source of truth.
func (s *Service) recompute(ctx context.Context, session *models.WeighingSession) error {
	defer func(start time.Time) {
		metrics.TotalsRecomputeDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	entries, err := s.entries.ListBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	totals := models.ComputeTotals(entries)
	if err := s.sessions.UpdateTotals(ctx, session.ID, totals); err != nil {
		return err
	}

	session.Totals = totals
	return nil
}
