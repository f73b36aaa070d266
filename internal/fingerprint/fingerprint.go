// Package fingerprint computes the content fingerprint of the local store:
// a hex-encoded sha-256 of the settled file bytes. Two processes hashing
// the same settled store agree because the write-ahead log is checkpointed
// into the primary file first.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/puffinapp/puffin-sync/internal/localstore"
)

type Service interface {
	// Compute returns the fingerprint of the settled store. I/O failures
	// propagate; they are never folded into a "no changes" answer.
	Compute(ctx context.Context) (string, error)
}

type service struct {
	store localstore.Store
}

func NewService(store localstore.Store) Service {
	return &service{store: store}
}

func (s *service) Compute(ctx context.Context) (string, error) {
	if err := s.store.ForceCheckpoint(ctx); err != nil {
		return "", fmt.Errorf("checkpoint before fingerprint: %w", err)
	}

	data, err := s.store.ReadBytes(ctx)
	if err != nil {
		return "", fmt.Errorf("read store for fingerprint: %w", err)
	}
	return Sum(data), nil
}

// Sum returns the hex sha-256 of data. Exposed so the exchange protocol can
// fingerprint the exact bytes it just transferred.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
