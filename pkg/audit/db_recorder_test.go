package audit

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewDBRecorder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		recorder, err := NewDBRecorder(db, DialectPostgres, testLogger(), nil)
		require.NoError(t, err)
		assert.NotNil(t, recorder)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		recorder, err := NewDBRecorder(nil, DialectPostgres, testLogger(), nil)
		assert.Error(t, err)
		assert.Nil(t, recorder)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnError(errors.New("permission denied"))

		recorder, err := NewDBRecorder(db, DialectPostgres, testLogger(), nil)
		assert.Error(t, err)
		assert.Nil(t, recorder)
		assert.Contains(t, err.Error(), "failed to ensure audit_logs table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func newTestRecorder(t *testing.T, drops prometheus.Counter) (*DBRecorder, sqlmock.Sqlmock, func()) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

	recorder, err := NewDBRecorder(db, DialectPostgres, testLogger(), drops)
	require.NoError(t, err)
	return recorder, mock, func() { db.Close() }
}

func TestDBRecorder_Record(t *testing.T) {
	t.Run("inserts event with generated id and timestamp", func(t *testing.T) {
		recorder, mock, cleanup := newTestRecorder(t, nil)
		defer cleanup()

		orgID := "org-1"
		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(
				sqlmock.AnyArg(), &orgID, "user-1", string(ActionOrgCreate),
				ResourceOrganization, sqlmock.AnyArg(),
				nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		event := &Event{
			OrganizationID: &orgID,
			UserID:         "user-1",
			Action:         ActionOrgCreate,
			ResourceType:   ResourceOrganization,
			Details:        map[string]interface{}{"name": "Acme"},
		}
		recorder.Record(context.Background(), event)

		assert.NotEmpty(t, event.ID)
		assert.False(t, event.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("enriches from context client info", func(t *testing.T) {
		recorder, mock, cleanup := newTestRecorder(t, nil)
		defer cleanup()

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(
				sqlmock.AnyArg(), nil, "user-1", string(ActionInvitationDecline),
				ResourceInvitation, nil,
				"10.0.0.7", "curl/8.0", []byte(nil), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ctx := WithClientInfo(context.Background(), ClientInfo{
			IPAddress: "10.0.0.7",
			UserAgent: "curl/8.0",
		})
		recorder.Record(ctx, &Event{
			UserID:       "user-1",
			Action:       ActionInvitationDecline,
			ResourceType: ResourceInvitation,
		})

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("swallows insert failure and counts the drop", func(t *testing.T) {
		drops := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_drops_total"})
		recorder, mock, cleanup := newTestRecorder(t, drops)
		defer cleanup()

		mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

		// Must not panic or return anything.
		recorder.Record(context.Background(), &Event{
			UserID:       "user-1",
			Action:       ActionAuthzDenied,
			ResourceType: ResourceOrganization,
		})

		assert.Equal(t, float64(1), testutil.ToFloat64(drops))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("preserves caller-supplied id and timestamp", func(t *testing.T) {
		recorder, mock, cleanup := newTestRecorder(t, nil)
		defer cleanup()

		created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(
				"evt-1", nil, "user-1", string(ActionOrgDelete),
				ResourceOrganization, nil,
				nil, nil, []byte(nil), created,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		recorder.Record(context.Background(), &Event{
			ID:           "evt-1",
			UserID:       "user-1",
			Action:       ActionOrgDelete,
			ResourceType: ResourceOrganization,
			CreatedAt:    created,
		})

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNopRecorder(t *testing.T) {
	// Must accept events without side effects.
	NopRecorder{}.Record(context.Background(), &Event{UserID: "user-1"})
}

func TestClientInfoFromContext_Empty(t *testing.T) {
	info := ClientInfoFromContext(context.Background())
	assert.Empty(t, info.IPAddress)
	assert.Empty(t, info.UserAgent)
}
