// Package session implements the shift lifecycle: opening a weighing session
// against a production batch and closing it again. Every command runs in a
// single transaction; the partial unique indexes on the sessions table are
// the last line of defense against concurrent opens.
package session

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/internal/repositories/productionorder"
	sessionrepo "github.com/Ramsey-B/sage/internal/repositories/session"
	"github.com/Ramsey-B/sage/pkg/changelog"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// WeightUOM is the canonical unit every session records in.
const WeightUOM = "g"

// Service implements session lifecycle commands
type Service struct {
	db       database.DB
	sessions sessionrepo.SessionRepository
	orders   productionorder.ProductionOrderRepository
	events   changelog.Emitter
	logger   ectologger.Logger
}

// NewService creates a new session service
func NewService(
	db database.DB,
	sessions sessionrepo.SessionRepository,
	orders productionorder.ProductionOrderRepository,
	events changelog.Emitter,
	logger ectologger.Logger,
) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		orders:   orders,
		events:   events,
		logger:   logger,
	}
}

// StartShift opens a session for an operator on a batch. An operator with
// any open session, or a batch already under an open session, is a conflict;
// the error meta carries the offending session so the terminal can point the
// operator at it.
func (s *Service) StartShift(ctx context.Context, req models.StartShiftRequest) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "session.Service.StartShift")
	defer span.End()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to start shift")
	}
	defer tx.Rollback(ctx)

	if held, err := s.sessions.GetOpenByOperator(txCtx, req.OperatorID); err == nil {
		return nil, errors.NewConflictError("operator '%s' already has an open session on batch '%s'", req.OperatorID, held.BatchNumber).
			AddMetaValue("session_id", held.ID).
			AddMetaValue("batch_number", held.BatchNumber)
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	if held, err := s.sessions.GetOpenByBatch(txCtx, req.BatchNumber); err == nil {
		return nil, errors.NewConflictError("batch '%s' is already being weighed by operator '%s'", req.BatchNumber, held.OperatorID).
			AddMetaValue("session_id", held.ID).
			AddMetaValue("operator_id", held.OperatorID)
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	order, err := s.orders.GetByBatch(txCtx, req.BatchNumber)
	if err != nil {
		return nil, err
	}

	created, err := s.sessions.Create(txCtx, &models.WeighingSession{
		OperatorID:          req.OperatorID,
		OperatorInitials:    req.OperatorInitials,
		BatchNumber:         req.BatchNumber,
		MaterialDescAtStart: order.MaterialDesc,
		MachineNameAtStart:  order.MachineName,
		StartingCounter:     req.StartingCounter,
		WeightUOM:           WeightUOM,
		Status:              models.SessionStatusOpen,
	})
	if err != nil {
		// Lost a race past the pre-checks; the partial unique indexes
		// surface it as the same conflict the pre-checks would have raised.
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, errors.NewInternalError("failed to start shift")
	}

	s.events.EmitSession(ctx, changelog.EventSessionOpened, created)
	metrics.SessionsStartedTotal.Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"session_id":   created.ID,
		"operator_id":  created.OperatorID,
		"batch_number": created.BatchNumber,
	}).Info("Shift started")

	return created, nil
}

// EndShift closes a session, addressed by id or by (operator, batch). A
// session can be closed exactly once; closing again is a conflict.
func (s *Service) EndShift(ctx context.Context, req models.EndShiftRequest) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "session.Service.EndShift")
	defer span.End()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to end shift")
	}
	defer tx.Rollback(ctx)

	session, err := s.resolve(txCtx, req)
	if err != nil {
		return nil, err
	}

	session, err = s.sessions.GetByIDForUpdate(txCtx, session.ID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, errors.NewConflictError("session '%s' is already closed", session.ID).
			AddMetaValue("session_id", session.ID)
	}

	endedAt := sessionrepo.Now()
	if err := s.sessions.Close(txCtx, session.ID, req.EndingCounter, endedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, errors.NewInternalError("failed to end shift")
	}

	session.Status = models.SessionStatusClosed
	session.EndingCounter = &req.EndingCounter
	session.EndedAt = &endedAt

	s.events.EmitSession(ctx, changelog.EventSessionClosed, session)
	metrics.SessionsClosedTotal.Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"session_id":     session.ID,
		"ending_counter": req.EndingCounter,
	}).Info("Shift ended")

	return session, nil
}

// GetActiveShift returns the operator's open session
func (s *Service) GetActiveShift(ctx context.Context, operatorID string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "session.Service.GetActiveShift")
	defer span.End()

	if operatorID == "" {
		return nil, errors.NewValidationError("operator id is required")
	}
	return s.sessions.GetOpenByOperator(ctx, operatorID)
}

// GetSession returns a session by id, open or closed
func (s *Service) GetSession(ctx context.Context, id string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "session.Service.GetSession")
	defer span.End()

	if id == "" {
		return nil, errors.NewValidationError("session id is required")
	}
	return s.sessions.GetByID(ctx, id)
}

// CheckBatchStatus reports whether a batch exists and whether someone is
// weighing it right now.
func (s *Service) CheckBatchStatus(ctx context.Context, batchNumber string) (*models.BatchStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "session.Service.CheckBatchStatus")
	defer span.End()

	if batchNumber == "" {
		return nil, errors.NewValidationError("batch number is required")
	}

	order, err := s.orders.GetByBatch(ctx, batchNumber)
	if err != nil {
		return nil, err
	}

	status := &models.BatchStatus{
		BatchNumber:  order.BatchNumber,
		MaterialDesc: order.MaterialDesc,
		MachineName:  order.MachineName,
	}

	session, err := s.sessions.GetOpenByBatch(ctx, batchNumber)
	if err != nil {
		if errors.IsNotFound(err) {
			return status, nil
		}
		return nil, err
	}

	status.InUse = true
	status.Session = session
	return status, nil
}

func (s *Service) resolve(ctx context.Context, req models.EndShiftRequest) (*models.WeighingSession, error) {
	if req.SessionID != "" {
		return s.sessions.GetByID(ctx, req.SessionID)
	}
	if req.OperatorID != "" && req.BatchNumber != "" {
		return s.sessions.GetOpenByOperatorAndBatch(ctx, req.OperatorID, req.BatchNumber)
	}
	return nil, errors.NewValidationError("either session_id or operator_id and batch_number are required")
}
