package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// The recorder and store must work over sqlite too, since development
// deployments run the whole schema on that driver.
func TestSQLiteRecorderAndStore(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)

	recorder, err := NewDBRecorder(db, DialectSQLite, testLogger(), nil)
	require.NoError(t, err)

	orgID := "org-1"
	resourceID := "org-1"
	recorder.Record(ctx, &Event{
		OrganizationID: &orgID,
		UserID:         "user-1",
		Action:         ActionOrgCreate,
		ResourceType:   ResourceOrganization,
		ResourceID:     &resourceID,
		Details:        map[string]interface{}{"name": "Acme"},
	})
	recorder.Record(ctx, &Event{
		OrganizationID: &orgID,
		UserID:         "user-2",
		Action:         ActionMemberRemove,
		ResourceType:   ResourceMember,
	})

	store := NewDBStore(db, DialectSQLite)

	events, err := store.ListByOrganization(ctx, orgID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	filtered, err := store.ListByOrganization(ctx, orgID, ListOptions{
		Actions: []Action{ActionOrgCreate},
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, ActionOrgCreate, filtered[0].Action)
	assert.Equal(t, "Acme", filtered[0].Details["name"])

	cutoff := time.Now().Add(time.Minute)

	older, err := store.ListBefore(ctx, cutoff, 10, 0)
	require.NoError(t, err)
	assert.Len(t, older, 2)

	deleted, err := store.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	events, err = store.ListByOrganization(ctx, orgID, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
