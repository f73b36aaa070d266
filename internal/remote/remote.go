// Package remote defines the provider-neutral surface the sync core uses
// to talk to the configured object-storage backend. One provider is active
// at a time; implementations live in the drive and s3store subpackages.
package remote

import (
	"context"
	"time"
)

// Ref identifies where the remote backup lives. In file-based mode FileID
// names one pre-agreed shared file; otherwise FolderID+FileName describe a
// folder searched for the well-known backup filename.
type Ref struct {
	FileID    string
	FolderID  string
	FileName  string
	FileBased bool
}

// Metadata describes the remote copy without carrying its payload.
// Hash is the provider's own content hash, empty when the provider does
// not expose one.
type Metadata struct {
	Exists     bool
	FileID     string
	Name       string
	ModifiedAt time.Time
	Hash       string
}

// Store is one object-storage backend.
type Store interface {
	// Probe reports existence and metadata without downloading the
	// payload. A missing remote file is Exists=false, not an error;
	// genuine failures (auth, network, 5xx) are errors.
	Probe(ctx context.Context, ref Ref) (*Metadata, error)

	// Upload transfers data to the remote location, updating the existing
	// file in place when one is known or found, creating it otherwise.
	// The returned metadata reflects the uploaded file.
	Upload(ctx context.Context, ref Ref, data []byte) (*Metadata, error)

	// Download resolves the remote file and returns its bytes plus
	// metadata. A missing remote file is an error here: callers only pull
	// when a remote copy is supposed to exist.
	Download(ctx context.Context, ref Ref) ([]byte, *Metadata, error)
}
