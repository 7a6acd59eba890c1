package models

import "time"

// SessionStatus is the lifecycle state of a weighing session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// WeighingSession is one shift of weighing work: one operator weighing boxes
// against one production batch, from start-shift to end-shift.
type WeighingSession struct {
	ID                  string         `json:"id"`
	OperatorID          string         `json:"operator_id"`
	OperatorInitials    string         `json:"operator_initials,omitempty"`
	BatchNumber         string         `json:"batch_number"`
	MaterialDescAtStart string         `json:"material_desc_at_start,omitempty"`
	MachineNameAtStart  string         `json:"machine_name_at_start,omitempty"`
	StartingCounter     int            `json:"starting_counter"`
	EndingCounter       *int           `json:"ending_counter,omitempty"`
	WeightUOM           string         `json:"weight_uom"`
	Status              SessionStatus  `json:"status"`
	Totals              SessionTotals  `json:"totals"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	EndedAt             *time.Time     `json:"ended_at,omitempty"`
}

// IsOpen reports whether the session still accepts entry mutations.
func (s *WeighingSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// SessionTotals are the derived aggregates over a session's live entries.
// They are recomputed from a full rescan of the entries inside the same
// transaction as every entry mutation, never maintained by deltas.
type SessionTotals struct {
	WeightAll     float64 `json:"total_weight_all"`
	WeightRunner  float64 `json:"total_weight_runner"`
	WeightSapuan  float64 `json:"total_weight_sapuan"`
	WeightPurging float64 `json:"total_weight_purging"`
	WeightDefect  float64 `json:"total_weight_defect"`
	WeightFG      float64 `json:"total_weight_fg"`
	QtyRunner     int     `json:"total_qty_runner"`
	QtySapuan     int     `json:"total_qty_sapuan"`
	QtyPurging    int     `json:"total_qty_purging"`
	QtyDefect     int     `json:"total_qty_defect"`
	QtyFG         int     `json:"total_qty_fg"`
}

// ComputeTotals rescans the given entries and produces exact aggregates.
func ComputeTotals(entries []BoxEntry) SessionTotals {
	var t SessionTotals
	for _, e := range entries {
		t.WeightAll += e.WeightGrams
		switch e.Category {
		case CategoryRunner:
			t.WeightRunner += e.WeightGrams
			t.QtyRunner++
		case CategorySapuan:
			t.WeightSapuan += e.WeightGrams
			t.QtySapuan++
		case CategoryPurging:
			t.WeightPurging += e.WeightGrams
			t.QtyPurging++
		case CategoryDefect:
			t.WeightDefect += e.WeightGrams
			t.QtyDefect++
		case CategoryFinishedGood:
			t.WeightFG += e.WeightGrams
			t.QtyFG++
		}
	}
	return t
}

// WeightFor returns the weight sum for one category.
func (t SessionTotals) WeightFor(c Category) float64 {
	switch c {
	case CategoryRunner:
		return t.WeightRunner
	case CategorySapuan:
		return t.WeightSapuan
	case CategoryPurging:
		return t.WeightPurging
	case CategoryDefect:
		return t.WeightDefect
	case CategoryFinishedGood:
		return t.WeightFG
	}
	return 0
}

// QtyFor returns the entry count for one category.
func (t SessionTotals) QtyFor(c Category) int {
	switch c {
	case CategoryRunner:
		return t.QtyRunner
	case CategorySapuan:
		return t.QtySapuan
	case CategoryPurging:
		return t.QtyPurging
	case CategoryDefect:
		return t.QtyDefect
	case CategoryFinishedGood:
		return t.QtyFG
	}
	return 0
}

// StartShiftRequest opens a new weighing session.
type StartShiftRequest struct {
	OperatorID       string `json:"operator_id" validate:"required"`
	OperatorInitials string `json:"operator_initials"`
	BatchNumber      string `json:"batch_number" validate:"required"`
	StartingCounter  int    `json:"starting_counter" validate:"min=0"`
}

// EndShiftRequest closes a weighing session, addressed either by session id
// or by the (operator, batch) pair.
type EndShiftRequest struct {
	SessionID     string `json:"session_id"`
	OperatorID    string `json:"operator_id"`
	BatchNumber   string `json:"batch_number"`
	EndingCounter int    `json:"ending_counter" validate:"min=0"`
}

// BatchStatus reports whether a batch is known and who, if anyone, is
// currently weighing it.
type BatchStatus struct {
	BatchNumber  string           `json:"batch_number"`
	MaterialDesc string           `json:"material_desc,omitempty"`
	MachineName  string           `json:"machine_name,omitempty"`
	InUse        bool             `json:"in_use"`
	Session      *WeighingSession `json:"session,omitempty"`
}

// SessionData is a session together with its full entry ledger.
type SessionData struct {
	Session *WeighingSession `json:"session"`
	Entries []BoxEntry       `json:"entries"`
}

// ProductionOrder is the read-only master-data row a batch is validated
// against when a shift starts.
type ProductionOrder struct {
	BatchNumber  string    `json:"batch_number"`
	MaterialDesc string    `json:"material_desc"`
	MachineName  string    `json:"machine_name"`
	CreatedAt    time.Time `json:"created_at"`
}
