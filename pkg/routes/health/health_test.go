package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/kafka"
)

type fakeDB struct {
	pingErr error
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
func (d *fakeDB) PingContext(context.Context) error { return d.pingErr }
func (d *fakeDB) Close() error                      { return nil }
func (d *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, nil, nil
}

func newTestConsumer(t *testing.T) *kafka.Consumer {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	consumer, err := kafka.NewConsumer(kafka.DefaultConsumerConfig(), logger)
	require.NoError(t, err)
	return consumer
}

func callHealth(t *testing.T, checker *Checker) (int, *HealthStatus) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, checker.Health(e.NewContext(req, rec)))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, &status
}

func TestHealth_ReportsAllChecks(t *testing.T) {
	checker := NewChecker(&fakeDB{}, nil, newTestConsumer(t), "test")

	code, status := callHealth(t, checker)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	require.Contains(t, status.Checks, "database")
	assert.Equal(t, "healthy", status.Checks["database"].Status)
	require.Contains(t, status.Checks, "kafka_consumer")
	assert.Equal(t, "healthy", status.Checks["kafka_consumer"].Status)
	assert.Contains(t, status.Checks["kafka_consumer"].Message, "lag")
}

func TestHealth_DatabaseDown(t *testing.T) {
	checker := NewChecker(&fakeDB{pingErr: errors.New("connection refused")}, nil, nil, "test")

	code, status := callHealth(t, checker)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "unhealthy", status.Checks["database"].Status)
}

func TestReady_TogglesWithState(t *testing.T) {
	checker := NewChecker(&fakeDB{}, nil, nil, "test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, checker.Ready(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetReady(true)
	rec = httptest.NewRecorder()
	require.NoError(t, checker.Ready(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
