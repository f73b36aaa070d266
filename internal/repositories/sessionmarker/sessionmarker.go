// Package sessionmarker persists the cross-restart edit marker: the id of
// the process run that last mutated the local store without syncing.
package sessionmarker

import (
	"context"

	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/repositories/records"
)

const recordKey = "last_modify_session"

type Repository interface {
	// Get returns the stored session id, or "" when no marker is set.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, sessionID string) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	records records.Repository
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{records: records.NewSQLiteRepository(db)}
}

func (r *SQLiteRepository) Get(ctx context.Context) (string, error) {
	data, err := r.records.Get(ctx, recordKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *SQLiteRepository) Set(ctx context.Context, sessionID string) error {
	return r.records.Set(ctx, recordKey, []byte(sessionID))
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.records.Delete(ctx, recordKey)
}
