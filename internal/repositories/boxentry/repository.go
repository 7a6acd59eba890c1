package boxentry

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// BoxEntryRepository defines the interface for box entry data access
type BoxEntryRepository interface {
	Create(ctx context.Context, entry *models.BoxEntry) (*models.BoxEntry, error)
	GetByID(ctx context.Context, id string) (*models.BoxEntry, error)
	MaxBoxNo(ctx context.Context, sessionID string) (int, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.BoxEntry, error)
	Update(ctx context.Context, entry *models.BoxEntry) (*models.BoxEntry, error)
	Delete(ctx context.Context, id string) error
}

// Repository implements BoxEntryRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new box entry repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new box entry
func (r *Repository) Create(ctx context.Context, entry *models.BoxEntry) (*models.BoxEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	now := Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	row := FromBoxEntry(entry)
	ib := boxEntryStruct.InsertInto(boxEntriesTable, row)
	sql, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         entry.ID,
		"session_id": entry.SessionID,
		"box_no":     entry.BoxNo,
	}).Debug("Creating box entry")

	_, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		if database.IsUniqueViolation(err, ConstraintSessionBox) {
			return nil, errors.NewConflictError("box %d already recorded for session '%s'", entry.BoxNo, entry.SessionID).
				AddMetaValue("session_id", entry.SessionID).
				AddMetaValue("box_no", entry.BoxNo)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create box entry")
		return nil, errors.NewInternalError("failed to create box entry")
	}

	return entry, nil
}

// GetByID retrieves a box entry by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.BoxEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.GetByID")
	defer span.End()

	sb := boxEntryStruct.SelectFrom(boxEntriesTable)
	sb.Where(sb.Equal("id", id))

	sql, args := sb.Build()

	var row BoxEntryRow
	err := database.FromContext(ctx, r.db).GetContext(ctx, &row, sql, args...)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NewNotFoundError("entry '%s' not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get box entry")
		return nil, errors.NewInternalError("failed to get box entry")
	}

	return ToBoxEntry(&row), nil
}

// MaxBoxNo returns the highest box number currently recorded in a session,
// or 0 when the session has no entries. Callers assign under the session row
// lock, so assignment and insert cannot interleave.
func (r *Repository) MaxBoxNo(ctx context.Context, sessionID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.MaxBoxNo")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COALESCE(MAX(box_no), 0)")
	sb.From(boxEntriesTable)
	sb.Where(sb.Equal("session_id", sessionID))

	sql, args := sb.Build()

	var max int
	err := database.FromContext(ctx, r.db).GetContext(ctx, &max, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get max box number")
		return 0, errors.NewInternalError("failed to get max box number")
	}

	return max, nil
}

// ListBySession retrieves all entries for a session ordered by box number
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.BoxEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.ListBySession")
	defer span.End()

	sb := boxEntryStruct.SelectFrom(boxEntriesTable)
	sb.Where(sb.Equal("session_id", sessionID))
	sb.OrderBy("box_no").Asc()

	sql, args := sb.Build()

	var rows []BoxEntryRow
	err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list box entries")
		return nil, errors.NewInternalError("failed to list box entries")
	}

	return ToBoxEntries(rows), nil
}

// Update overwrites an entry's weight and category
func (r *Repository) Update(ctx context.Context, entry *models.BoxEntry) (*models.BoxEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.Update")
	defer span.End()

	entry.UpdatedAt = Now()

	ub := database.NewUpdateBuilder()
	ub.Update(boxEntriesTable)
	ub.Set(
		ub.Assign("weight_grams", entry.WeightGrams),
		ub.Assign("category", string(entry.Category)),
		ub.Assign("updated_at", entry.UpdatedAt),
	)
	ub.Where(ub.Equal("id", entry.ID))

	sql, args := ub.Build()

	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update box entry")
		return nil, errors.NewInternalError("failed to update box entry")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewInternalError("failed to update box entry")
	}
	if affected == 0 {
		return nil, errors.NewNotFoundError("entry '%s' not found", entry.ID)
	}

	return entry, nil
}

// Delete removes a box entry
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "BoxEntryRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(boxEntriesTable)
	db.Where(db.Equal("id", id))

	sql, args := db.Build()

	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, sql, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete box entry")
		return errors.NewInternalError("failed to delete box entry")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to delete box entry")
	}
	if affected == 0 {
		return errors.NewNotFoundError("entry '%s' not found", id)
	}

	return nil
}
