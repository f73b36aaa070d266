// Package tokens persists the bearer TokenSet obtained from the
// authorization flow. Sealed at rest like the credentials record.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/cryptox"
	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/repositories/records"
)

const recordKey = "oauth_tokens"

// TokenSet is the persisted token state.
//
// RefreshToken is immutable once issued: the provider does not reissue it
// on refresh, so it must survive every access-token replacement verbatim.
type TokenSet struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresAtEpochMs int64  `json:"expiresAt"`
	TokenType        string `json:"tokenType,omitempty"`
	GrantedScope     string `json:"grantedScope,omitempty"`
}

// ExpiresAt returns the expiry as a time.Time.
func (t *TokenSet) ExpiresAt() time.Time {
	return time.UnixMilli(t.ExpiresAtEpochMs)
}

type Repository interface {
	Get(ctx context.Context) (*TokenSet, error)
	Save(ctx context.Context, ts *TokenSet) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	records records.Repository
	cipher  *cryptox.RecordCipher
}

func NewSQLiteRepository(db dbx.DBTX, cipher *cryptox.RecordCipher) *SQLiteRepository {
	return &SQLiteRepository{records: records.NewSQLiteRepository(db), cipher: cipher}
}

// Get returns the stored token set, or common.ErrNotFound when absent.
func (r *SQLiteRepository) Get(ctx context.Context) (*TokenSet, error) {
	data, err := r.records.Get(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, common.ErrNotFound
	}

	var ts TokenSet
	if err := r.cipher.Open(data, &ts); err != nil {
		return nil, fmt.Errorf("decode token set: %w", err)
	}
	return &ts, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, ts *TokenSet) error {
	data, err := r.cipher.Seal(ts)
	if err != nil {
		return fmt.Errorf("encode token set: %w", err)
	}
	return r.records.Set(ctx, recordKey, data)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.records.Delete(ctx, recordKey)
}
