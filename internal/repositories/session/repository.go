package session

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// SessionRepository defines the interface for weighing session data access
type SessionRepository interface {
	Create(ctx context.Context, session *models.WeighingSession) (*models.WeighingSession, error)
	GetByID(ctx context.Context, id string) (*models.WeighingSession, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.WeighingSession, error)
	GetOpenByOperator(ctx context.Context, operatorID string) (*models.WeighingSession, error)
	GetOpenByBatch(ctx context.Context, batchNumber string) (*models.WeighingSession, error)
	GetOpenByOperatorAndBatch(ctx context.Context, operatorID, batchNumber string) (*models.WeighingSession, error)
	Close(ctx context.Context, id string, endingCounter int, endedAt time.Time) error
	UpdateTotals(ctx context.Context, id string, totals models.SessionTotals) error
}

// Repository implements SessionRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new session repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session. The partial unique indexes are the final
// arbiter of the one-open-session rules; violations surface as conflicts.
func (r *Repository) Create(ctx context.Context, session *models.WeighingSession) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.Create")
	defer span.End()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	now := Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	row := FromSession(session)
	ib := sessionStruct.InsertInto(sessionsTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":           session.ID,
		"operator_id":  session.OperatorID,
		"batch_number": session.BatchNumber,
	}).Debug("Creating weighing session")

	_, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		if database.IsUniqueViolation(err, ConstraintOperatorOpen) {
			return nil, errors.NewConflictError("operator '%s' already has an open session", session.OperatorID).
				AddMetaValue("operator_id", session.OperatorID)
		}
		if database.IsUniqueViolation(err, ConstraintBatchOpen) {
			return nil, errors.NewConflictError("batch '%s' is already being weighed", session.BatchNumber).
				AddMetaValue("batch_number", session.BatchNumber)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create weighing session")
		return nil, errors.NewInternalError("failed to create weighing session")
	}

	return session, nil
}

// GetByID retrieves a session by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetByID")
	defer span.End()

	sb := sessionStruct.SelectFrom(sessionsTable)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb, "session '%s' not found", id)
}

// GetByIDForUpdate retrieves a session by ID and locks its row for the rest
// of the transaction. Every ledger mutation takes this lock first so
// concurrent writers against one session serialize.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetByIDForUpdate")
	defer span.End()

	sb := sessionStruct.SelectFrom(sessionsTable)
	sb.Where(sb.Equal("id", id))
	sb.ForUpdate()

	return r.getOne(ctx, sb, "session '%s' not found", id)
}

// GetOpenByOperator retrieves the operator's open session, if any
func (r *Repository) GetOpenByOperator(ctx context.Context, operatorID string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetOpenByOperator")
	defer span.End()

	sb := sessionStruct.SelectFrom(sessionsTable)
	sb.Where(
		sb.Equal("operator_id", operatorID),
		sb.Equal("status", string(models.SessionStatusOpen)),
	)

	return r.getOne(ctx, sb, "operator '%s' has no open session", operatorID)
}

// GetOpenByBatch retrieves the open session weighing a batch, if any
func (r *Repository) GetOpenByBatch(ctx context.Context, batchNumber string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetOpenByBatch")
	defer span.End()

	sb := sessionStruct.SelectFrom(sessionsTable)
	sb.Where(
		sb.Equal("batch_number", batchNumber),
		sb.Equal("status", string(models.SessionStatusOpen)),
	)

	return r.getOne(ctx, sb, "batch '%s' has no open session", batchNumber)
}

// GetOpenByOperatorAndBatch retrieves the open session for an (operator, batch) pair
func (r *Repository) GetOpenByOperatorAndBatch(ctx context.Context, operatorID, batchNumber string) (*models.WeighingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.GetOpenByOperatorAndBatch")
	defer span.End()

	sb := sessionStruct.SelectFrom(sessionsTable)
	sb.Where(
		sb.Equal("operator_id", operatorID),
		sb.Equal("batch_number", batchNumber),
		sb.Equal("status", string(models.SessionStatusOpen)),
	)

	return r.getOne(ctx, sb, "no open session for operator '%s' on batch '%s'", operatorID, batchNumber)
}

// Close marks an open session closed. The status guard in the WHERE clause
// makes closing idempotent-hostile on purpose: a second close is a conflict.
func (r *Repository) Close(ctx context.Context, id string, endingCounter int, endedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.Close")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(sessionsTable)
	ub.Set(
		ub.Assign("status", string(models.SessionStatusClosed)),
		ub.Assign("ending_counter", endingCounter),
		ub.Assign("ended_at", endedAt),
		ub.Assign("updated_at", Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", string(models.SessionStatusOpen)),
	)

	sql, args := ub.Build()

	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to close weighing session")
		return errors.NewInternalError("failed to close weighing session")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to close weighing session")
	}
	if affected == 0 {
		return errors.NewConflictError("session '%s' is not open", id).AddMetaValue("session_id", id)
	}

	return nil
}

// UpdateTotals overwrites the session's aggregate columns
func (r *Repository) UpdateTotals(ctx context.Context, id string, totals models.SessionTotals) error {
	ctx, span := tracing.StartSpan(ctx, "SessionRepository.UpdateTotals")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(sessionsTable)
	ub.Set(
		ub.Assign("total_weight_all", totals.WeightAll),
		ub.Assign("total_weight_runner", totals.WeightRunner),
		ub.Assign("total_weight_sapuan", totals.WeightSapuan),
		ub.Assign("total_weight_purging", totals.WeightPurging),
		ub.Assign("total_weight_defect", totals.WeightDefect),
		ub.Assign("total_weight_fg", totals.WeightFG),
		ub.Assign("total_qty_runner", totals.QtyRunner),
		ub.Assign("total_qty_sapuan", totals.QtySapuan),
		ub.Assign("total_qty_purging", totals.QtyPurging),
		ub.Assign("total_qty_defect", totals.QtyDefect),
		ub.Assign("total_qty_fg", totals.QtyFG),
		ub.Assign("updated_at", Now()),
	)
	ub.Where(ub.Equal("id", id))

	sql, args := ub.Build()

	_, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update session totals")
		return errors.NewInternalError("failed to update session totals")
	}

	return nil
}

func (r *Repository) getOne(ctx context.Context, sb *database.SelectBuilder, notFoundFormat string, notFoundArgs ...any) (*models.WeighingSession, error) {
	sql, args := sb.Build()

	var row SessionRow
	err := database.FromContext(ctx, r.db).GetContext(ctx, &row, sql, args...)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError(notFoundFormat, notFoundArgs...)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get weighing session")
		return nil, errors.NewInternalError("failed to get weighing session")
	}

	return ToSession(&row), nil
}
