package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO records (key, value) VALUES ('k', x'01')`)
	require.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db1, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}
