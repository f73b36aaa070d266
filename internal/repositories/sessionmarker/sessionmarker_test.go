package sessionmarker

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE records (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)
	return NewSQLiteRepository(db)
}

func TestGet_Absent_ReturnsEmpty(t *testing.T) {
	r := setupRepo(t)

	id, err := r.Get(context.Background())
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestSetGetClear(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "session-a"))

	id, err := r.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "session-a", id)

	// repeated writes are idempotent
	require.NoError(t, r.Set(ctx, "session-a"))

	require.NoError(t, r.Clear(ctx))
	id, err = r.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, id)
}
