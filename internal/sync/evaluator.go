package sync

import (
	"context"
	"time"

	"github.com/puffinapp/puffin-sync/internal/remote"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
)

// Timestamp comparison buffers. The small one applies when provider hash
// metadata exists and already disambiguates most cases; the large one
// absorbs clock skew between machines when timestamps are all we have.
const (
	hashedModifiedBuffer   = 5 * time.Second
	unhashedModifiedBuffer = 60 * time.Second
)

// CheckStatus recomputes the sync state from scratch: session marker
// first, then configuration, local fingerprint and a remote probe. It is
// never cached because the remote can change at any time from another
// device.
//
// Failures of the check itself degrade to ReasonCheckFailed with editing
// allowed: blocking local work on a flaky network would be worse than a
// warning. Exchanges do the opposite and fail closed.
func (s *Service) CheckStatus(ctx context.Context) (*CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkStatusLocked(ctx)
}

func (s *Service) checkStatusLocked(ctx context.Context) (*CheckResult, error) {
	prior, err := s.session.HasUnsyncedPriorSessionChanges(ctx)
	if err != nil {
		return s.checkFailed(ctx, "read session marker", err), nil
	}
	if prior {
		return &CheckResult{
			Reason:  ReasonUnsyncedSession,
			CanEdit: false,
			Message: "a previous run left unsynced changes; sync before editing",
		}, nil
	}

	cfg, err := s.settingsRepo(s.stateDB).Get(ctx)
	if err != nil {
		return s.checkFailed(ctx, "read sync configuration", err), nil
	}
	if !cfg.IsConfigured() {
		return &CheckResult{Reason: ReasonNotConfigured, CanEdit: true}, nil
	}

	localFP, err := s.fp.Compute(ctx)
	if err != nil {
		return s.checkFailed(ctx, "fingerprint local store", err), nil
	}

	if s.authCheck != nil {
		if err := s.authCheck(ctx); err != nil {
			return s.checkFailed(ctx, "verify remote authorization", err), nil
		}
	}

	meta, err := s.remote.Probe(ctx, s.ref(cfg))
	if err != nil {
		return s.checkFailed(ctx, "probe remote", err), nil
	}

	if !meta.Exists {
		return &CheckResult{
			Reason:       ReasonNoCloudBackup,
			CanEdit:      true,
			LastSyncedAt: cfg.LastSyncedAt,
		}, nil
	}

	res := &CheckResult{
		LastSyncedAt: cfg.LastSyncedAt,
	}
	if !meta.ModifiedAt.IsZero() {
		t := meta.ModifiedAt
		res.CloudModifiedAt = &t
	}

	if cfg.LastSyncedAt == nil || cfg.SyncedFingerprint == "" {
		res.Reason = ReasonNeverSynced
		res.CanEdit = false
		res.Message = "a cloud backup exists but this device has never synced with it"
		return res, nil
	}

	res.HasLocalChanges = localFP != cfg.SyncedFingerprint
	res.HasCloudChanges = remoteChanged(meta, cfg)

	switch {
	case res.HasLocalChanges && res.HasCloudChanges:
		res.Reason = ReasonConflict
		res.CanEdit = false
		res.Message = "both local and cloud data changed; choose push or pull"
	case res.HasCloudChanges:
		res.Reason = ReasonCloudOnly
		res.CanEdit = false
		res.Message = "cloud data is newer; pull before editing"
	case res.HasLocalChanges:
		res.Reason = ReasonLocalOnly
		res.CanEdit = true
	default:
		res.Reason = ReasonInSync
		res.CanEdit = true
	}
	return res, nil
}

func (s *Service) checkFailed(ctx context.Context, step string, err error) *CheckResult {
	s.log.Warn(ctx, "sync check failed", "step", step, "error", err)
	return &CheckResult{
		Reason:  ReasonCheckFailed,
		CanEdit: true,
		Warning: step + ": " + err.Error(),
	}
}

// remoteChanged decides whether the remote copy diverged since the last
// exchange. Hash comparison is tier one; a timestamp comparison runs
// regardless, because some writers bump modifiedAt without updating hash
// metadata. Either signal means changed.
func remoteChanged(meta *remote.Metadata, cfg *settings.SyncConfiguration) bool {
	hashesAvailable := meta.Hash != "" && cfg.SyncedRemoteHash != ""
	if hashesAvailable && meta.Hash != cfg.SyncedRemoteHash {
		return true
	}

	if meta.ModifiedAt.IsZero() || cfg.LastSyncedAt == nil {
		return false
	}
	buffer := unhashedModifiedBuffer
	if hashesAvailable {
		buffer = hashedModifiedBuffer
	}
	return meta.ModifiedAt.After(cfg.LastSyncedAt.Add(buffer))
}
