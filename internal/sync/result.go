// Package sync is the core of the backup subsystem: the edit-permission
// state machine run before every mutation, and the push/pull exchange
// protocol that moves the store file between the local disk and the
// configured remote backend.
package sync

import "time"

// Reason names the sync state the evaluator landed on. Reasons are
// mutually exclusive and recomputed on every check.
type Reason string

const (
	// ReasonUnsyncedSession blocks editing: a previous process run
	// mutated the store and never synced (crash or force-quit).
	ReasonUnsyncedSession Reason = "unsynced_session"

	// ReasonNotConfigured means no remote location is set; editing is
	// purely local and allowed.
	ReasonNotConfigured Reason = "not_configured"

	// ReasonNoCloudBackup means the remote is configured but holds no
	// backup yet.
	ReasonNoCloudBackup Reason = "no_cloud_backup"

	// ReasonNeverSynced blocks editing: a remote backup exists but this
	// installation has never exchanged with it.
	ReasonNeverSynced Reason = "never_synced"

	// ReasonInSync means neither side changed since the last exchange.
	ReasonInSync Reason = "in_sync"

	// ReasonLocalOnly means only the local store changed.
	ReasonLocalOnly Reason = "local_only"

	// ReasonCloudOnly blocks editing: only the remote copy changed.
	ReasonCloudOnly Reason = "cloud_only"

	// ReasonConflict blocks editing: both sides changed. Resolution is a
	// human choice between push (keep local) and pull (keep remote).
	ReasonConflict Reason = "conflict"

	// ReasonCheckFailed means some step of the check itself failed.
	// Editing stays allowed (the data is local after all) but the UI
	// must surface the warning.
	ReasonCheckFailed Reason = "check_failed"
)

// CheckResult is the evaluator's verdict handed to the surrounding app.
type CheckResult struct {
	Reason          Reason     `json:"reason"`
	CanEdit         bool       `json:"canEdit"`
	HasLocalChanges bool       `json:"hasLocalChanges,omitempty"`
	HasCloudChanges bool       `json:"hasCloudChanges,omitempty"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	CloudModifiedAt *time.Time `json:"cloudModifiedAt,omitempty"`
	Warning         string     `json:"warning,omitempty"`
	Message         string     `json:"message,omitempty"`
}
