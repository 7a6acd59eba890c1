package ledger

import (
	"context"
	"database/sql"
	"sort"
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
	closed bool
}

func (t *fakeTx) IsOpen() bool { return !t.closed }
func (t *fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) GetContext(context.Context, any, string, ...any) error    { return nil }
func (t *fakeTx) SelectContext(context.Context, any, string, ...any) error { return nil }
func (t *fakeTx) QueryRowxContext(context.Context, string, ...any) *sqlx.Row {
	return nil
}
func (t *fakeTx) Commit(context.Context) error   { t.closed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.closed = true; return nil }

type fakeDB struct{}

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
	return ctx, &fakeTx{}, nil
}

type fakeSessionRepo struct {
	sessions map[string]*models.WeighingSession
}

func (r *fakeSessionRepo) Create(_ context.Context, s *models.WeighingSession) (*models.WeighingSession, error) {
	r.sessions[s.ID] = s
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

func (r *fakeSessionRepo) GetOpenByOperator(context.Context, string) (*models.WeighingSession, error) {
	return nil, errors.NewNotFoundError("no open session")
}

func (r *fakeSessionRepo) GetOpenByBatch(context.Context, string) (*models.WeighingSession, error) {
	return nil, errors.NewNotFoundError("no open session")
}

func (r *fakeSessionRepo) GetOpenByOperatorAndBatch(_ context.Context, operatorID, batchNumber string) (*models.WeighingSession, error) {
	for _, s := range r.sessions {
		if s.OperatorID == operatorID && s.BatchNumber == batchNumber && s.IsOpen() {
			return s, nil
		}
	}
	return nil, errors.NewNotFoundError("no open session")
}

func (r *fakeSessionRepo) Close(_ context.Context, id string, endingCounter int, endedAt time.Time) error {
	s := r.sessions[id]
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

type fakeEntryRepo struct {
	entries map[string]*models.BoxEntry
	nextID  int
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*models.BoxEntry)}
}

func (r *fakeEntryRepo) Create(_ context.Context, e *models.BoxEntry) (*models.BoxEntry, error) {
	for _, existing := range r.entries {
		if existing.SessionID == e.SessionID && existing.BoxNo == e.BoxNo {
			return nil, errors.NewConflictError("box %d already recorded for session '%s'", e.BoxNo, e.SessionID)
		}
	}
	r.nextID++
	e.ID = string(rune('a' + r.nextID - 1))
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	copied := *e
	r.entries[e.ID] = &copied
	return e, nil
}

func (r *fakeEntryRepo) GetByID(_ context.Context, id string) (*models.BoxEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, errors.NewNotFoundError("entry '%s' not found", id)
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEntryRepo) MaxBoxNo(_ context.Context, sessionID string) (int, error) {
	max := 0
	for _, e := range r.entries {
		if e.SessionID == sessionID && e.BoxNo > max {
			max = e.BoxNo
		}
	}
	return max, nil
}

func (r *fakeEntryRepo) ListBySession(_ context.Context, sessionID string) ([]models.BoxEntry, error) {
	var result []models.BoxEntry
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BoxNo < result[j].BoxNo })
	return result, nil
}

func (r *fakeEntryRepo) Update(_ context.Context, e *models.BoxEntry) (*models.BoxEntry, error) {
	existing, ok := r.entries[e.ID]
	if !ok {
		return nil, errors.NewNotFoundError("entry '%s' not found", e.ID)
	}
	existing.WeightGrams = e.WeightGrams
	existing.Category = e.Category
	existing.UpdatedAt = time.Now().UTC()
	copied := *existing
	return &copied, nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.entries[id]; !ok {
		return errors.NewNotFoundError("entry '%s' not found", id)
	}
	delete(r.entries, id)
	return nil
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

func newTestService() (*Service, *fakeSessionRepo, *fakeEntryRepo, *recordingEmitter) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	sessions := &fakeSessionRepo{sessions: map[string]*models.WeighingSession{
		"S1": {
			ID:          "S1",
			OperatorID:  "OP-1",
			BatchNumber: "BATCH-100",
			Status:      models.SessionStatusOpen,
			WeightUOM:   "g",
		},
	}}
	entries := newFakeEntryRepo()
	emitter := &recordingEmitter{}
	service := NewService(&fakeDB{}, sessions, entries, emitter, logger)
	return service, sessions, entries, emitter
}

func TestAddEntry_AssignsSequentialBoxNumbers(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		entry, _, err := service.AddEntry(ctx, models.AddEntryRequest{
			SessionID:   "S1",
			WeightGrams: 100,
			Category:    "Runner",
		})
		require.NoError(t, err)
		assert.Equal(t, want, entry.BoxNo)
	}
}

func TestAddEntry_RecomputesTotals(t *testing.T) {
	service, sessions, _, emitter := newTestService()
	ctx := context.Background()

	_, session, err := service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		WeightGrams: 500,
		Category:    "Finished Good",
		ScaleName:   "BENCH-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, session.Totals.WeightAll)
	assert.Equal(t, 500.0, session.Totals.WeightFG)
	assert.Equal(t, 1, session.Totals.QtyFG)

	_, session, err = service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		WeightGrams: 300,
		Category:    "Defect",
	})
	require.NoError(t, err)
	assert.Equal(t, 800.0, session.Totals.WeightAll)
	assert.Equal(t, 300.0, session.Totals.WeightDefect)
	assert.Equal(t, 1, session.Totals.QtyDefect)
	assert.Equal(t, 1, session.Totals.QtyFG)

	// The stored session carries the same rescanned totals.
	stored, err := sessions.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, session.Totals, stored.Totals)
	assert.Equal(t, []string{changelog.EventEntryAdded, changelog.EventEntryAdded}, emitter.events)
}

func TestAddEntry_ExplicitBoxNumber(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	entry, _, err := service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		BoxNo:       intPtr(7),
		WeightGrams: 250,
		Category:    "Sapuan",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, entry.BoxNo)

	// Auto-assignment continues after the explicit number.
	next, _, err := service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		WeightGrams: 250,
		Category:    "Sapuan",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, next.BoxNo)
}

func TestAddEntry_DuplicateBoxNumber(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		BoxNo:       intPtr(1),
		WeightGrams: 100,
		Category:    "Runner",
	})
	require.NoError(t, err)

	_, _, err = service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		BoxNo:       intPtr(1),
		WeightGrams: 200,
		Category:    "Runner",
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestAddEntry_RejectsBadInput(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Scrap"})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 0, Category: "Runner"})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", BoxNo: intPtr(0), WeightGrams: 100, Category: "Runner"})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.AddEntry(ctx, models.AddEntryRequest{SessionID: "NOPE", WeightGrams: 100, Category: "Runner"})
	assert.True(t, errors.IsNotFound(err))
}

func TestAddEntry_ClosedSession(t *testing.T) {
	service, sessions, _, _ := newTestService()
	ctx := context.Background()

	sessions.sessions["S1"].Status = models.SessionStatusClosed

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})

	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestUpdateEntry_RecomputesTotals(t *testing.T) {
	service, _, _, emitter := newTestService()
	ctx := context.Background()

	entry, _, err := service.AddEntry(ctx, models.AddEntryRequest{
		SessionID:   "S1",
		WeightGrams: 500,
		Category:    "Finished Good",
	})
	require.NoError(t, err)

	updated, session, err := service.UpdateEntry(ctx, entry.ID, models.UpdateEntryRequest{
		WeightGrams: floatPtr(450),
		Category:    strPtr("Defect"),
	})
	require.NoError(t, err)
	assert.Equal(t, 450.0, updated.WeightGrams)
	assert.Equal(t, models.CategoryDefect, updated.Category)
	assert.Equal(t, 450.0, session.Totals.WeightAll)
	assert.Equal(t, 450.0, session.Totals.WeightDefect)
	assert.Equal(t, 0.0, session.Totals.WeightFG)
	assert.Equal(t, 0, session.Totals.QtyFG)
	assert.Contains(t, emitter.events, changelog.EventEntryUpdated)
}

func TestUpdateEntry_RejectsBadInput(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	entry, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)

	_, _, err = service.UpdateEntry(ctx, entry.ID, models.UpdateEntryRequest{})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.UpdateEntry(ctx, entry.ID, models.UpdateEntryRequest{WeightGrams: floatPtr(-1)})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.UpdateEntry(ctx, entry.ID, models.UpdateEntryRequest{Category: strPtr("Scrap")})
	assert.True(t, errors.IsValidation(err))

	_, _, err = service.UpdateEntry(ctx, "missing", models.UpdateEntryRequest{WeightGrams: floatPtr(1)})
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteEntry_RecomputesTotals(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 500, Category: "Finished Good"})
	require.NoError(t, err)
	defect, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 300, Category: "Defect"})
	require.NoError(t, err)

	session, err := service.DeleteEntry(ctx, defect.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, session.Totals.WeightAll)
	assert.Equal(t, 0.0, session.Totals.WeightDefect)
	assert.Equal(t, 0, session.Totals.QtyDefect)
	assert.Equal(t, 1, session.Totals.QtyFG)
}

func TestDeleteEntry_FreesBoxNumber(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)
	second, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)
	require.Equal(t, 2, second.BoxNo)

	_, err = service.DeleteEntry(ctx, second.ID)
	require.NoError(t, err)

	next, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.BoxNo)
}

func TestMutationsRejectedAfterClose(t *testing.T) {
	service, sessions, _, _ := newTestService()
	ctx := context.Background()

	entry, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)

	sessions.sessions["S1"].Status = models.SessionStatusClosed

	_, _, err = service.UpdateEntry(ctx, entry.ID, models.UpdateEntryRequest{WeightGrams: floatPtr(200)})
	assert.True(t, errors.IsConflict(err))

	_, err = service.DeleteEntry(ctx, entry.ID)
	assert.True(t, errors.IsConflict(err))
}

func TestListEntries(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", BoxNo: intPtr(2), WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)
	_, _, err = service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", BoxNo: intPtr(1), WeightGrams: 200, Category: "Defect"})
	require.NoError(t, err)

	entries, err := service.ListEntries(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].BoxNo)
	assert.Equal(t, 2, entries[1].BoxNo)

	_, err = service.ListEntries(ctx, "NOPE")
	assert.True(t, errors.IsNotFound(err))
}

func TestGetSessionData(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 100, Category: "Runner"})
	require.NoError(t, err)

	data, err := service.GetSessionData(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", data.Session.ID)
	require.Len(t, data.Entries, 1)
	assert.Equal(t, 100.0, data.Session.Totals.WeightAll)
}

func TestGetCurrentSessionData(t *testing.T) {
	service, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.AddEntry(ctx, models.AddEntryRequest{SessionID: "S1", WeightGrams: 250, Category: "Finished Good"})
	require.NoError(t, err)

	data, err := service.GetCurrentSessionData(ctx, "OP-1", "BATCH-100")
	require.NoError(t, err)
	assert.Equal(t, "S1", data.Session.ID)
	require.Len(t, data.Entries, 1)

	_, err = service.GetCurrentSessionData(ctx, "OP-1", "BATCH-999")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = service.GetCurrentSessionData(ctx, "", "BATCH-100")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
