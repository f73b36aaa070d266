// Package settings persists the one SyncConfiguration record per
// installation.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/repositories/records"
)

const recordKey = "sync_configuration"

// SyncConfiguration is the persisted sync bookkeeping for this
// installation.
//
// SyncedFingerprint is the content hash of the local store at the moment of
// the last successful exchange; SyncedRemoteHash is the provider's own hash
// of the remote file captured at the same moment (empty when the provider
// exposes none). SyncedFileID pins the exact remote file discovered or
// created on the first exchange, so folder mode does not repeat the name
// search once a file is known. LastSyncedAt is nil until the first
// successful exchange.
type SyncConfiguration struct {
	RemoteLocationID   string     `json:"remoteLocationId,omitempty"`
	RemoteLocationName string     `json:"remoteLocationName,omitempty"`
	FileBasedMode      bool       `json:"fileBasedMode,omitempty"`
	SyncedFileID       string     `json:"syncedFileId,omitempty"`
	LastSyncedAt       *time.Time `json:"lastSyncedAt,omitempty"`
	SyncedFingerprint  string     `json:"syncedFingerprint,omitempty"`
	SyncedRemoteHash   string     `json:"syncedRemoteHash,omitempty"`
	AccountEmail       string     `json:"accountEmail,omitempty"`
}

// IsConfigured is always derived from the location field, never stored, so
// a configured-but-pointing-nowhere state cannot exist.
func (c *SyncConfiguration) IsConfigured() bool {
	return c != nil && c.RemoteLocationID != ""
}

type Repository interface {
	Get(ctx context.Context) (*SyncConfiguration, error)
	Save(ctx context.Context, cfg *SyncConfiguration) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	records records.Repository
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{records: records.NewSQLiteRepository(db)}
}

// Get returns the stored configuration, or an empty (unconfigured) record
// when none has been saved yet.
func (r *SQLiteRepository) Get(ctx context.Context) (*SyncConfiguration, error) {
	data, err := r.records.Get(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &SyncConfiguration{}, nil
	}

	var cfg SyncConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode sync configuration: %w", err)
	}
	return &cfg, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, cfg *SyncConfiguration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode sync configuration: %w", err)
	}
	return r.records.Set(ctx, recordKey, data)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.records.Delete(ctx, recordKey)
}
