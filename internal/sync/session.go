package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/puffinapp/puffin-sync/internal/repositories/sessionmarker"
)

// SessionTracker is the cross-restart edit-lock: it distinguishes "this
// process modified data since the last successful sync" from "a previous
// run left unsynced modifications behind".
type SessionTracker struct {
	repo      sessionmarker.Repository
	sessionID string
}

// NewSessionTracker generates the one random session identifier used for
// this process's lifetime.
func NewSessionTracker(repo sessionmarker.Repository) *SessionTracker {
	return &SessionTracker{repo: repo, sessionID: uuid.NewString()}
}

func (t *SessionTracker) SessionID() string { return t.sessionID }

// RecordMutation persists the marker for this session. Repeated calls
// within one session are harmless upserts.
func (t *SessionTracker) RecordMutation(ctx context.Context) error {
	return t.repo.Set(ctx, t.sessionID)
}

// Clear removes the marker; called after a successful push or pull.
func (t *SessionTracker) Clear(ctx context.Context) error {
	return t.repo.Clear(ctx)
}

// HasUnsyncedPriorSessionChanges reports whether a different process run
// mutated the store without syncing. Consulted before any network call.
func (t *SessionTracker) HasUnsyncedPriorSessionChanges(ctx context.Context) (bool, error) {
	marker, err := t.repo.Get(ctx)
	if err != nil {
		return false, err
	}
	return marker != "" && marker != t.sessionID, nil
}
