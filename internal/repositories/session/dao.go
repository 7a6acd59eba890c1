package session

import (
	"database/sql"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

const (
	sessionsTable = "weighing_sessions"
)

// Partial unique index names enforcing the one-open-session rules. The
// repository maps their violations to conflicts.
const (
	ConstraintOperatorOpen = "uq_weighing_sessions_operator_open"
	ConstraintBatchOpen    = "uq_weighing_sessions_batch_open"
)

// SessionRow represents the database row for a weighing session
type SessionRow struct {
	ID                  sql.NullString  `db:"id"`
	OperatorID          sql.NullString  `db:"operator_id"`
	OperatorInitials    sql.NullString  `db:"operator_initials"`
	BatchNumber         sql.NullString  `db:"batch_number"`
	MaterialDescAtStart sql.NullString  `db:"material_desc_at_start"`
	MachineNameAtStart  sql.NullString  `db:"machine_name_at_start"`
	StartingCounter     sql.NullInt64   `db:"starting_counter"`
	EndingCounter       sql.NullInt64   `db:"ending_counter"`
	WeightUOM           sql.NullString  `db:"weight_uom"`
	Status              sql.NullString  `db:"status"`
	TotalWeightAll      sql.NullFloat64 `db:"total_weight_all"`
	TotalWeightRunner   sql.NullFloat64 `db:"total_weight_runner"`
	TotalWeightSapuan   sql.NullFloat64 `db:"total_weight_sapuan"`
	TotalWeightPurging  sql.NullFloat64 `db:"total_weight_purging"`
	TotalWeightDefect   sql.NullFloat64 `db:"total_weight_defect"`
	TotalWeightFG       sql.NullFloat64 `db:"total_weight_fg"`
	TotalQtyRunner      sql.NullInt64   `db:"total_qty_runner"`
	TotalQtySapuan      sql.NullInt64   `db:"total_qty_sapuan"`
	TotalQtyPurging     sql.NullInt64   `db:"total_qty_purging"`
	TotalQtyDefect      sql.NullInt64   `db:"total_qty_defect"`
	TotalQtyFG          sql.NullInt64   `db:"total_qty_fg"`
	CreatedAt           sql.NullTime    `db:"created_at"`
	UpdatedAt           sql.NullTime    `db:"updated_at"`
	EndedAt             sql.NullTime    `db:"ended_at"`
}

var sessionStruct = database.NewStruct(new(SessionRow))

// FromSession converts a domain model to a database row
func FromSession(s *models.WeighingSession) *SessionRow {
	row := &SessionRow{
		ID:                  sql.NullString{String: s.ID, Valid: s.ID != ""},
		OperatorID:          sql.NullString{String: s.OperatorID, Valid: s.OperatorID != ""},
		OperatorInitials:    sql.NullString{String: s.OperatorInitials, Valid: s.OperatorInitials != ""},
		BatchNumber:         sql.NullString{String: s.BatchNumber, Valid: s.BatchNumber != ""},
		MaterialDescAtStart: sql.NullString{String: s.MaterialDescAtStart, Valid: s.MaterialDescAtStart != ""},
		MachineNameAtStart:  sql.NullString{String: s.MachineNameAtStart, Valid: s.MachineNameAtStart != ""},
		StartingCounter:     sql.NullInt64{Int64: int64(s.StartingCounter), Valid: true},
		WeightUOM:           sql.NullString{String: s.WeightUOM, Valid: s.WeightUOM != ""},
		Status:              sql.NullString{String: string(s.Status), Valid: s.Status != ""},
		TotalWeightAll:      sql.NullFloat64{Float64: s.Totals.WeightAll, Valid: true},
		TotalWeightRunner:   sql.NullFloat64{Float64: s.Totals.WeightRunner, Valid: true},
		TotalWeightSapuan:   sql.NullFloat64{Float64: s.Totals.WeightSapuan, Valid: true},
		TotalWeightPurging:  sql.NullFloat64{Float64: s.Totals.WeightPurging, Valid: true},
		TotalWeightDefect:   sql.NullFloat64{Float64: s.Totals.WeightDefect, Valid: true},
		TotalWeightFG:       sql.NullFloat64{Float64: s.Totals.WeightFG, Valid: true},
		TotalQtyRunner:      sql.NullInt64{Int64: int64(s.Totals.QtyRunner), Valid: true},
		TotalQtySapuan:      sql.NullInt64{Int64: int64(s.Totals.QtySapuan), Valid: true},
		TotalQtyPurging:     sql.NullInt64{Int64: int64(s.Totals.QtyPurging), Valid: true},
		TotalQtyDefect:      sql.NullInt64{Int64: int64(s.Totals.QtyDefect), Valid: true},
		TotalQtyFG:          sql.NullInt64{Int64: int64(s.Totals.QtyFG), Valid: true},
		CreatedAt:           sql.NullTime{Time: s.CreatedAt, Valid: !s.CreatedAt.IsZero()},
		UpdatedAt:           sql.NullTime{Time: s.UpdatedAt, Valid: !s.UpdatedAt.IsZero()},
	}
	if s.EndingCounter != nil {
		row.EndingCounter = sql.NullInt64{Int64: int64(*s.EndingCounter), Valid: true}
	}
	if s.EndedAt != nil {
		row.EndedAt = sql.NullTime{Time: *s.EndedAt, Valid: true}
	}
	return row
}

// ToSession converts a database row to a domain model
func ToSession(row *SessionRow) *models.WeighingSession {
	s := &models.WeighingSession{
		ID:                  row.ID.String,
		OperatorID:          row.OperatorID.String,
		OperatorInitials:    row.OperatorInitials.String,
		BatchNumber:         row.BatchNumber.String,
		MaterialDescAtStart: row.MaterialDescAtStart.String,
		MachineNameAtStart:  row.MachineNameAtStart.String,
		StartingCounter:     int(row.StartingCounter.Int64),
		WeightUOM:           row.WeightUOM.String,
		Status:              models.SessionStatus(row.Status.String),
		Totals: models.SessionTotals{
			WeightAll:     row.TotalWeightAll.Float64,
			WeightRunner:  row.TotalWeightRunner.Float64,
			WeightSapuan:  row.TotalWeightSapuan.Float64,
			WeightPurging: row.TotalWeightPurging.Float64,
			WeightDefect:  row.TotalWeightDefect.Float64,
			WeightFG:      row.TotalWeightFG.Float64,
			QtyRunner:     int(row.TotalQtyRunner.Int64),
			QtySapuan:     int(row.TotalQtySapuan.Int64),
			QtyPurging:    int(row.TotalQtyPurging.Int64),
			QtyDefect:     int(row.TotalQtyDefect.Int64),
			QtyFG:         int(row.TotalQtyFG.Int64),
		},
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.EndingCounter.Valid {
		counter := int(row.EndingCounter.Int64)
		s.EndingCounter = &counter
	}
	if row.EndedAt.Valid {
		endedAt := row.EndedAt.Time
		s.EndedAt = &endedAt
	}
	return s
}

// ToSessions converts a slice of database rows to domain models
func ToSessions(rows []SessionRow) []*models.WeighingSession {
	return ectolinq.Map(rows, func(row SessionRow) *models.WeighingSession {
		return ToSession(&row)
	})
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
