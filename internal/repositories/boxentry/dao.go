package boxentry

import (
	"database/sql"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

const (
	boxEntriesTable = "box_entries"
)

// ConstraintSessionBox is the unique index on (session_id, box_no).
const ConstraintSessionBox = "uq_box_entries_session_box"

// BoxEntryRow represents the database row for a box entry
type BoxEntryRow struct {
	ID          sql.NullString  `db:"id"`
	SessionID   sql.NullString  `db:"session_id"`
	BoxNo       sql.NullInt64   `db:"box_no"`
	WeightGrams sql.NullFloat64 `db:"weight_grams"`
	Category    sql.NullString  `db:"category"`
	ScaleName   sql.NullString  `db:"scale_name"`
	WeighedAt   sql.NullTime    `db:"weighed_at"`
	CreatedAt   sql.NullTime    `db:"created_at"`
	UpdatedAt   sql.NullTime    `db:"updated_at"`
}

var boxEntryStruct = database.NewStruct(new(BoxEntryRow))

// FromBoxEntry converts a domain model to a database row
func FromBoxEntry(e *models.BoxEntry) *BoxEntryRow {
	return &BoxEntryRow{
		ID:          sql.NullString{String: e.ID, Valid: e.ID != ""},
		SessionID:   sql.NullString{String: e.SessionID, Valid: e.SessionID != ""},
		BoxNo:       sql.NullInt64{Int64: int64(e.BoxNo), Valid: true},
		WeightGrams: sql.NullFloat64{Float64: e.WeightGrams, Valid: true},
		Category:    sql.NullString{String: string(e.Category), Valid: e.Category != ""},
		ScaleName:   sql.NullString{String: e.ScaleName, Valid: e.ScaleName != ""},
		WeighedAt:   sql.NullTime{Time: e.WeighedAt, Valid: !e.WeighedAt.IsZero()},
		CreatedAt:   sql.NullTime{Time: e.CreatedAt, Valid: !e.CreatedAt.IsZero()},
		UpdatedAt:   sql.NullTime{Time: e.UpdatedAt, Valid: !e.UpdatedAt.IsZero()},
	}
}

// ToBoxEntry converts a database row to a domain model
func ToBoxEntry(row *BoxEntryRow) *models.BoxEntry {
	return &models.BoxEntry{
		ID:          row.ID.String,
		SessionID:   row.SessionID.String,
		BoxNo:       int(row.BoxNo.Int64),
		WeightGrams: row.WeightGrams.Float64,
		Category:    models.Category(row.Category.String),
		ScaleName:   row.ScaleName.String,
		WeighedAt:   row.WeighedAt.Time,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

// ToBoxEntries converts a slice of database rows to domain models
func ToBoxEntries(rows []BoxEntryRow) []models.BoxEntry {
	return ectolinq.Map(rows, func(row BoxEntryRow) models.BoxEntry {
		return *ToBoxEntry(&row)
	})
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
