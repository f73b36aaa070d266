package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/repositories/credentials"
)

// SaveCredentials validates and persists the client credentials. Both
// clientID and clientSecret are mandatory together, and clientID must
// carry the issuer suffix.
func (m *Manager) SaveCredentials(ctx context.Context, clientID, clientSecret, apiKey string) error {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("%w: client id and client secret are both required", common.ErrValidation)
	}
	if !strings.HasSuffix(clientID, issuerSuffix) || clientID == issuerSuffix {
		return fmt.Errorf("%w: client id must end with %s", common.ErrValidation, issuerSuffix)
	}

	return m.creds.Save(ctx, &credentials.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		APIKey:       strings.TrimSpace(apiKey),
	})
}

// ClientID returns the stored client id; the secret never leaves the
// manager.
func (m *Manager) ClientID(ctx context.Context) (string, error) {
	creds, err := m.creds.Get(ctx)
	if err != nil {
		return "", err
	}
	return creds.ClientID, nil
}

// ClearCredentials removes the stored client credentials. Tokens are
// derived from the credentials, so they are invalidated too.
func (m *Manager) ClearCredentials(ctx context.Context) error {
	if err := m.creds.Clear(ctx); err != nil {
		return err
	}
	return m.tokens.Clear(ctx)
}

// HasCredentials reports whether client credentials are stored.
func (m *Manager) HasCredentials(ctx context.Context) (bool, error) {
	_, err := m.creds.Get(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return false, err
}
