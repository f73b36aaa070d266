// Package credentials persists the OAuth client credentials. The record is
// sealed with the installation keyfile before it reaches the database.
package credentials

import (
	"context"
	"fmt"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/cryptox"
	"github.com/puffinapp/puffin-sync/internal/dbx"
	"github.com/puffinapp/puffin-sync/internal/repositories/records"
)

const recordKey = "oauth_credentials"

// Credentials holds the client credentials for the remote provider's
// authorization server. APIKey is optional.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIKey       string `json:"apiKey,omitempty"`
}

type Repository interface {
	Get(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	records records.Repository
	cipher  *cryptox.RecordCipher
}

func NewSQLiteRepository(db dbx.DBTX, cipher *cryptox.RecordCipher) *SQLiteRepository {
	return &SQLiteRepository{records: records.NewSQLiteRepository(db), cipher: cipher}
}

// Get returns the stored credentials, or common.ErrNotFound when none are
// saved.
func (r *SQLiteRepository) Get(ctx context.Context) (*Credentials, error) {
	data, err := r.records.Get(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, common.ErrNotFound
	}

	var creds Credentials
	if err := r.cipher.Open(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &creds, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, creds *Credentials) error {
	data, err := r.cipher.Seal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return r.records.Set(ctx, recordKey, data)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.records.Delete(ctx, recordKey)
}
