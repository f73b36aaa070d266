package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/fingerprint"
	"github.com/puffinapp/puffin-sync/internal/remote"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
)

// Push uploads the local store to the configured remote location, then
// records the exchange. Any failure aborts without touching the
// bookkeeping; the pre-operation backup stays on disk for recovery.
func (s *Service) Push(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.exchangePreflight(ctx)
	if err != nil {
		return err
	}

	if err := s.store.ForceCheckpoint(ctx); err != nil {
		return fmt.Errorf("%w: checkpoint before push: %v", common.ErrExchange, err)
	}
	backupPath, err := s.store.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("%w: backup before push: %v", common.ErrExchange, err)
	}
	s.log.Info(ctx, "pre-push backup created", "path", backupPath)

	data, err := s.store.ReadBytes(ctx)
	if err != nil {
		return fmt.Errorf("%w: read local store: %v", common.ErrExchange, err)
	}

	meta, err := s.remote.Upload(ctx, s.ref(cfg), data)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := s.recordExchange(ctx, cfg, meta, fingerprint.Sum(data)); err != nil {
		return err
	}

	s.log.Info(ctx, "push complete", "bytes", len(data), "fileId", meta.FileID)
	s.pruneBackups(ctx)
	return nil
}

// Pull downloads the remote copy and replaces the local store with it.
// The pre-replacement state is backed up first; bookkeeping only updates
// once the new bytes are on disk.
func (s *Service) Pull(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.exchangePreflight(ctx)
	if err != nil {
		return err
	}

	data, meta, err := s.remote.Download(ctx, s.ref(cfg))
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	// Settle the WAL into the primary file first: the safety copy must
	// hold every committed row, and Replace is about to delete the WAL.
	if err := s.store.ForceCheckpoint(ctx); err != nil {
		return fmt.Errorf("%w: checkpoint before pull: %v", common.ErrExchange, err)
	}
	backupPath, err := s.store.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("%w: backup before pull: %v", common.ErrExchange, err)
	}
	s.log.Info(ctx, "pre-pull backup created", "path", backupPath)

	if err := s.store.Replace(ctx, data); err != nil {
		return fmt.Errorf("%w: replace local store: %v", common.ErrExchange, err)
	}

	if err := s.recordExchange(ctx, cfg, meta, fingerprint.Sum(data)); err != nil {
		return err
	}

	s.log.Info(ctx, "pull complete", "bytes", len(data), "fileId", meta.FileID)
	s.pruneBackups(ctx)
	return nil
}

// exchangePreflight enforces the fail-fast checks shared by both
// directions: a configured remote location and, when the provider needs
// one, valid authorization.
func (s *Service) exchangePreflight(ctx context.Context) (*settings.SyncConfiguration, error) {
	cfg, err := s.settingsRepo(s.stateDB).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync configuration: %w", err)
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("%w: no remote location configured", common.ErrNotConfigured)
	}
	if s.authCheck != nil {
		if err := s.authCheck(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// recordExchange persists the post-exchange bookkeeping and clears the
// session marker in one transaction, so a crash between the two can never
// leave a fingerprint without its timestamp or a stale edit lock. The
// remote file id discovered or created by the exchange is pinned in the
// same transaction so later probes address the exact file, not a name.
func (s *Service) recordExchange(ctx context.Context, cfg *settings.SyncConfiguration, meta *remote.Metadata, localFP string) error {
	now := s.now().UTC()
	err := dbx.WithTx(ctx, s.stateDB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		updated := *cfg
		updated.SyncedFingerprint = localFP
		updated.SyncedRemoteHash = meta.Hash
		if !updated.FileBasedMode && meta.FileID != "" {
			updated.SyncedFileID = meta.FileID
		}
		updated.LastSyncedAt = &now
		if err := s.settingsRepo(tx).Save(ctx, &updated); err != nil {
			return err
		}
		return s.markerRepo(tx).Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: record exchange: %v", common.ErrExchange, err)
	}
	return nil
}

// pruneBackups is best-effort cleanup after a successful exchange; a
// failed prune is worth a log line, never a failed sync.
func (s *Service) pruneBackups(ctx context.Context) {
	if s.backupRetention <= 0 {
		return
	}
	pruneCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.PruneBackups(pruneCtx, s.backupRetention); err != nil {
		s.log.Warn(ctx, "prune backups failed", "error", err)
	}
}
