package sync

import (
	"context"
	"database/sql"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/fingerprint"
	"github.com/puffinapp/puffin-sync/internal/localstore"
	"github.com/puffinapp/puffin-sync/internal/logging"
	"github.com/puffinapp/puffin-sync/internal/remote"
	"github.com/puffinapp/puffin-sync/internal/repositories/sessionmarker"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
)

// Service is the facade the surrounding application drives: status checks,
// push, pull, configuration and disconnect. A single advisory lock
// serializes checks and exchanges so a check never evaluates against a
// half-written store and only one exchange is in flight at a time.
type Service struct {
	mu stdsync.Mutex

	stateDB *sql.DB
	store   localstore.Store
	fp      fingerprint.Service
	remote  remote.Store
	session *SessionTracker
	log     logging.Logger

	remoteFileName  string
	backupRetention int

	// authCheck verifies remote authorization before an exchange; nil
	// when the active provider needs none (static-credential backends).
	authCheck func(ctx context.Context) error
	// clearAuth wipes persisted credential/token state on disconnect.
	clearAuth func(ctx context.Context) error

	now func() time.Time
}

// Options carries the provider-dependent wiring for NewService.
type Options struct {
	RemoteFileName  string
	BackupRetention int
	AuthCheck       func(ctx context.Context) error
	ClearAuth       func(ctx context.Context) error
	Clock           func() time.Time
}

func NewService(stateDB *sql.DB, store localstore.Store, fp fingerprint.Service, remoteStore remote.Store, session *SessionTracker, log logging.Logger, opts Options) *Service {
	s := &Service{
		stateDB:         stateDB,
		store:           store,
		fp:              fp,
		remote:          remoteStore,
		session:         session,
		log:             log,
		remoteFileName:  opts.RemoteFileName,
		backupRetention: opts.BackupRetention,
		authCheck:       opts.AuthCheck,
		clearAuth:       opts.ClearAuth,
		now:             opts.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) settingsRepo(db dbx.DBTX) settings.Repository {
	return settings.NewSQLiteRepository(db)
}

func (s *Service) markerRepo(db dbx.DBTX) sessionmarker.Repository {
	return sessionmarker.NewSQLiteRepository(db)
}

// ref derives the remote reference from the stored configuration: the
// pre-agreed file handle in file-based mode, the file id pinned by a prior
// exchange when one exists, and a folder search for the well-known backup
// name only before the first exchange.
func (s *Service) ref(cfg *settings.SyncConfiguration) remote.Ref {
	if cfg.FileBasedMode {
		return remote.Ref{FileID: cfg.RemoteLocationID, FileBased: true}
	}
	if cfg.SyncedFileID != "" {
		return remote.Ref{FileID: cfg.SyncedFileID, FolderID: cfg.RemoteLocationID, FileName: s.remoteFileName}
	}
	return remote.Ref{FolderID: cfg.RemoteLocationID, FileName: s.remoteFileName}
}

// Config returns the current sync configuration.
func (s *Service) Config(ctx context.Context) (*settings.SyncConfiguration, error) {
	return s.settingsRepo(s.stateDB).Get(ctx)
}

// ConfigPatch names the fields UpdateConfig may change. Nil fields are
// left untouched.
type ConfigPatch struct {
	RemoteLocationID   *string
	RemoteLocationName *string
	FileBasedMode      *bool
}

// UpdateConfig applies the patch. Re-pointing the remote location resets
// the exchange bookkeeping, since fingerprints recorded against the old
// location say nothing about the new one.
func (s *Service) UpdateConfig(ctx context.Context, patch ConfigPatch) (*settings.SyncConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo := s.settingsRepo(s.stateDB)
	cfg, err := repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.RemoteLocationID != nil && *patch.RemoteLocationID != cfg.RemoteLocationID {
		cfg.RemoteLocationID = *patch.RemoteLocationID
		cfg.SyncedFileID = ""
		cfg.LastSyncedAt = nil
		cfg.SyncedFingerprint = ""
		cfg.SyncedRemoteHash = ""
	}
	if patch.RemoteLocationName != nil {
		cfg.RemoteLocationName = *patch.RemoteLocationName
	}
	if patch.FileBasedMode != nil {
		cfg.FileBasedMode = *patch.FileBasedMode
	}

	if err := repo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordMutation marks this session as having unsynced local edits. The
// surrounding app calls it on every local store mutation. It takes the
// service lock so a marker write cannot interleave with an in-flight
// exchange clearing the marker.
func (s *Service) RecordMutation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.RecordMutation(ctx)
}

// Disconnect clears all persisted sync and auth state: configuration,
// credentials, tokens and the session marker.
func (s *Service) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := dbx.WithTx(ctx, s.stateDB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.settingsRepo(tx).Clear(ctx); err != nil {
			return err
		}
		return s.markerRepo(tx).Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("clear sync state: %w", err)
	}

	if s.clearAuth != nil {
		if err := s.clearAuth(ctx); err != nil {
			return fmt.Errorf("clear auth state: %w", err)
		}
	}

	s.log.Info(ctx, "sync disconnected")
	return nil
}
