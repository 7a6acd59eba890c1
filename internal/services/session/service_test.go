package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/changelog"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }
func (t *fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) GetContext(context.Context, any, string, ...any) error    { return nil }
func (t *fakeTx) SelectContext(context.Context, any, string, ...any) error { return nil }
func (t *fakeTx) QueryRowxContext(context.Context, string, ...any) *sqlx.Row {
	return nil
}
func (t *fakeTx) Commit(context.Context) error {
	if t.IsOpen() {
		t.committed = true
	}
	return nil
}
func (t *fakeTx) Rollback(context.Context) error {
	if t.IsOpen() {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) BeginTxx(context.Context, *sql.TxOptions) (*sqlx.Tx, error) { return nil, nil }
func (d *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}
func (d *fakeDB) GetContext(context.Context, any, string, ...any) error    { return nil }
func (d *fakeDB) SelectContext(context.Context, any, string, ...any) error { return nil }
func (d *fakeDB) QueryRowxContext(context.Context, string, ...any) *sqlx.Row {
	return nil
}
func (d *fakeDB) PingContext(context.Context) error { return nil }
func (d *fakeDB) Close() error                      { return nil }
func (d *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	d.tx = &fakeTx{}
	return ctx, d.tx, nil
}

type fakeSessionRepo struct {
	sessions  map[string]*models.WeighingSession
	nextID    int
	createErr error
	// hideLookups makes the next N open-session lookups miss, to simulate a
	// concurrent insert that lands between the pre-checks and the insert.
	hideLookups int
}

func (r *fakeSessionRepo) hidden() bool {
	if r.hideLookups > 0 {
		r.hideLookups--
		return true
	}
	return false
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.WeighingSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *models.WeighingSession) (*models.WeighingSession, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.sessions {
		if existing.Status != models.SessionStatusOpen {
			continue
		}
		if existing.OperatorID == s.OperatorID {
			return nil, errors.NewConflictError("operator '%s' already has an open session", s.OperatorID)
		}
		if existing.BatchNumber == s.BatchNumber {
			return nil, errors.NewConflictError("batch '%s' is already being weighed", s.BatchNumber)
		}
	}
	r.nextID++
	s.ID = string(rune('A' + r.nextID - 1))
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	copied := *s
	r.sessions[s.ID] = &copied
	return s, nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*models.WeighingSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("session '%s' not found", id)
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.WeighingSession, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeSessionRepo) GetOpenByOperator(_ context.Context, operatorID string) (*models.WeighingSession, error) {
	if r.hidden() {
		return nil, errors.NewNotFoundError("operator '%s' has no open session", operatorID)
	}
	for _, s := range r.sessions {
		if s.OperatorID == operatorID && s.Status == models.SessionStatusOpen {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("operator '%s' has no open session", operatorID)
}

func (r *fakeSessionRepo) GetOpenByBatch(_ context.Context, batchNumber string) (*models.WeighingSession, error) {
	if r.hidden() {
		return nil, errors.NewNotFoundError("batch '%s' has no open session", batchNumber)
	}
	for _, s := range r.sessions {
		if s.BatchNumber == batchNumber && s.Status == models.SessionStatusOpen {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("batch '%s' has no open session", batchNumber)
}

func (r *fakeSessionRepo) GetOpenByOperatorAndBatch(_ context.Context, operatorID, batchNumber string) (*models.WeighingSession, error) {
	if r.hidden() {
		return nil, errors.NewNotFoundError("no open session for operator '%s' on batch '%s'", operatorID, batchNumber)
	}
	for _, s := range r.sessions {
		if s.OperatorID == operatorID && s.BatchNumber == batchNumber && s.Status == models.SessionStatusOpen {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("no open session for operator '%s' on batch '%s'", operatorID, batchNumber)
}

func (r *fakeSessionRepo) Close(_ context.Context, id string, endingCounter int, endedAt time.Time) error {
	s, ok := r.sessions[id]
	if !ok || s.Status != models.SessionStatusOpen {
		return errors.NewConflictError("session '%s' is not open", id)
	}
	s.Status = models.SessionStatusClosed
	s.EndingCounter = &endingCounter
	s.EndedAt = &endedAt
	return nil
}

func (r *fakeSessionRepo) UpdateTotals(_ context.Context, id string, totals models.SessionTotals) error {
	s, ok := r.sessions[id]
	if !ok {
		return errors.NewNotFoundError("session '%s' not found", id)
	}
	s.Totals = totals
	return nil
}

type fakeOrderRepo struct {
	orders map[string]*models.ProductionOrder
}

func (r *fakeOrderRepo) GetByBatch(_ context.Context, batchNumber string) (*models.ProductionOrder, error) {
	order, ok := r.orders[batchNumber]
	if !ok {
		return nil, errors.NewNotFoundError("batch '%s' not found", batchNumber)
	}
	return order, nil
}

type recordingEmitter struct {
	events []string
}

func (e *recordingEmitter) EmitSession(_ context.Context, eventType string, _ *models.WeighingSession) {
	e.events = append(e.events, eventType)
}

func (e *recordingEmitter) EmitEntry(_ context.Context, eventType string, _ *models.WeighingSession, _ *models.BoxEntry) {
	e.events = append(e.events, eventType)
}

func newTestService() (*Service, *fakeSessionRepo, *fakeOrderRepo, *recordingEmitter) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	sessions := newFakeSessionRepo()
	orders := &fakeOrderRepo{orders: map[string]*models.ProductionOrder{
		"BATCH-100": {BatchNumber: "BATCH-100", MaterialDesc: "ABS Natural", MachineName: "IMM-04"},
		"BATCH-200": {BatchNumber: "BATCH-200", MaterialDesc: "PP Black", MachineName: "IMM-07"},
	}}
	emitter := &recordingEmitter{}
	service := NewService(&fakeDB{}, sessions, orders, emitter, logger)
	return service, sessions, orders, emitter
}

func TestStartShift_OpensSession(t *testing.T) {
	service, _, _, emitter := newTestService()

	session, err := service.StartShift(context.Background(), models.StartShiftRequest{
		OperatorID:       "OP-1",
		OperatorInitials: "JS",
		BatchNumber:      "BATCH-100",
		StartingCounter:  1200,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionStatusOpen, session.Status)
	assert.Equal(t, "ABS Natural", session.MaterialDescAtStart)
	assert.Equal(t, "IMM-04", session.MachineNameAtStart)
	assert.Equal(t, "g", session.WeightUOM)
	assert.Equal(t, 1200, session.StartingCounter)
	assert.Equal(t, []string{changelog.EventSessionOpened}, emitter.events)
}

func TestStartShift_SameOperatorSameBatchConflicts(t *testing.T) {
	service, _, _, emitter := newTestService()
	ctx := context.Background()

	first, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	_, err = service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, first.ID, errors.Meta(err)["session_id"])
	// Only the first open was an event.
	assert.Equal(t, []string{changelog.EventSessionOpened}, emitter.events)
}

func TestStartShift_OperatorAlreadyBusy(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	_, err = service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-200"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestStartShift_BatchHeldByAnotherOperator(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	_, err = service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-2", BatchNumber: "BATCH-100"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestStartShift_UnknownBatch(t *testing.T) {
	service, _, _, _ := newTestService()

	_, err := service.StartShift(context.Background(), models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "NOPE"})

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestStartShift_InsertRaceConflicts(t *testing.T) {
	service, sessions, _, emitter := newTestService()
	ctx := context.Background()

	// The pre-checks see nothing, but the insert hits the unique index
	// because another node opened the same session concurrently. The loser
	// gets the same conflict the pre-checks would have raised.
	sessions.hideLookups = 2
	sessions.createErr = errors.NewConflictError("operator 'OP-1' already has an open session").
		AddMetaValue("session_id", "X")
	sessions.sessions["X"] = &models.WeighingSession{
		ID:          "X",
		OperatorID:  "OP-1",
		BatchNumber: "BATCH-100",
		Status:      models.SessionStatusOpen,
	}

	_, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})

	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, "X", errors.Meta(err)["session_id"])
	assert.Empty(t, emitter.events)
}

func TestEndShift_BySessionID(t *testing.T) {
	service, _, _, emitter := newTestService()
	ctx := context.Background()

	opened, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	closed, err := service.EndShift(ctx, models.EndShiftRequest{SessionID: opened.ID, EndingCounter: 1450})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, closed.Status)
	require.NotNil(t, closed.EndingCounter)
	assert.Equal(t, 1450, *closed.EndingCounter)
	assert.NotNil(t, closed.EndedAt)
	assert.Contains(t, emitter.events, changelog.EventSessionClosed)
}

func TestEndShift_ByOperatorAndBatch(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	closed, err := service.EndShift(ctx, models.EndShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, closed.Status)
}

func TestEndShift_AlreadyClosed(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	opened, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	_, err = service.EndShift(ctx, models.EndShiftRequest{SessionID: opened.ID})
	require.NoError(t, err)

	_, err = service.EndShift(ctx, models.EndShiftRequest{SessionID: opened.ID})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestEndShift_RequiresIdentity(t *testing.T) {
	service, _, _, _ := newTestService()

	_, err := service.EndShift(context.Background(), models.EndShiftRequest{EndingCounter: 10})

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestGetActiveShift(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	opened, err := service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-100"})
	require.NoError(t, err)

	active, err := service.GetActiveShift(ctx, "OP-1")
	require.NoError(t, err)
	assert.Equal(t, opened.ID, active.ID)

	_, err = service.GetActiveShift(ctx, "OP-9")
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckBatchStatus(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	free, err := service.CheckBatchStatus(ctx, "BATCH-200")
	require.NoError(t, err)
	assert.False(t, free.InUse)
	assert.Nil(t, free.Session)
	assert.Equal(t, "PP Black", free.MaterialDesc)

	_, err = service.StartShift(ctx, models.StartShiftRequest{OperatorID: "OP-1", BatchNumber: "BATCH-200"})
	require.NoError(t, err)

	busy, err := service.CheckBatchStatus(ctx, "BATCH-200")
	require.NoError(t, err)
	assert.True(t, busy.InUse)
	require.NotNil(t, busy.Session)
	assert.Equal(t, "OP-1", busy.Session.OperatorID)

	_, err = service.CheckBatchStatus(ctx, "NOPE")
	assert.True(t, errors.IsNotFound(err))
}
