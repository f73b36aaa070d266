package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/repositories/tokens"
)

// ScopeLevel is the breadth of remote-storage permission the user granted.
type ScopeLevel string

const (
	ScopeUnknown   ScopeLevel = "unknown"
	ScopeAppFiles  ScopeLevel = "app_files"
	ScopeFullDrive ScopeLevel = "full_drive"
)

const (
	scopeTokenAppFiles  = "https://www.googleapis.com/auth/drive.file"
	scopeTokenFullDrive = "https://www.googleapis.com/auth/drive"
)

// tokenResponse is the token endpoint's JSON body. expires_in is seconds.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// NeedsRefresh reports whether the token expires within the refresh skew
// of now.
func NeedsRefresh(ts *tokens.TokenSet, now time.Time) bool {
	return ts.ExpiresAt().Before(now.Add(RefreshSkew))
}

// ValidToken returns a currently valid access token, refreshing it first
// when it is expired or about to expire. A missing token set or a failed
// refresh surfaces as common.ErrNotAuthenticated so the caller prompts
// re-authentication instead of retrying.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	ts, err := m.tokens.Get(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return "", common.ErrNotAuthenticated
	}
	if err != nil {
		return "", err
	}

	if !NeedsRefresh(ts, m.now()) {
		return ts.AccessToken, nil
	}

	refreshed, err := m.refresh(ctx, ts)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. The refresh token itself is immutable: the provider
// does not reissue it, so the stored value is preserved verbatim even when
// the response omits one.
func (m *Manager) refresh(ctx context.Context, ts *tokens.TokenSet) (*tokens.TokenSet, error) {
	creds, err := m.creds.Get(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"refresh_token": {ts.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	resp, err := m.postForm(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh: %v", common.ErrNotAuthenticated, err)
	}

	updated := &tokens.TokenSet{
		AccessToken:      resp.AccessToken,
		RefreshToken:     ts.RefreshToken, // never replaced on refresh
		ExpiresAtEpochMs: m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
		TokenType:        ts.TokenType,
		GrantedScope:     ts.GrantedScope,
	}
	if resp.TokenType != "" {
		updated.TokenType = resp.TokenType
	}

	if err := m.tokens.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}

	m.log.Info(ctx, "access token refreshed", "expiresAt", updated.ExpiresAt())
	return updated, nil
}

// ExchangeCode performs the one-time authorization-code exchange, persists
// the resulting token set, records the account email when an id token is
// present, and classifies the granted scope.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURI string) (ScopeLevel, error) {
	creds, err := m.creds.Get(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return ScopeUnknown, common.ErrNotAuthenticated
	}
	if err != nil {
		return ScopeUnknown, err
	}

	form := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}

	resp, err := m.postForm(ctx, form)
	if err != nil {
		return ScopeUnknown, fmt.Errorf("%w: code exchange: %v", common.ErrNotAuthenticated, err)
	}

	ts := &tokens.TokenSet{
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		ExpiresAtEpochMs: m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
		TokenType:        resp.TokenType,
		GrantedScope:     resp.Scope,
	}
	if err := m.tokens.Save(ctx, ts); err != nil {
		return ScopeUnknown, fmt.Errorf("persist token set: %w", err)
	}

	if email := emailFromIDToken(resp.IDToken); email != "" {
		if err := m.recordAccountEmail(ctx, email); err != nil {
			m.log.Warn(ctx, "could not record account email", "error", err)
		}
	}

	level := ClassifyScope(resp.Scope)
	m.log.Info(ctx, "authorization complete", "scope", level)
	return level, nil
}

// ClassifyScope reports whether the granted scope is the minimal
// app-created-files scope or full drive access. The full-drive scope string
// is a prefix of the app-files one, so matching must be by exact scope
// token, never by substring.
func ClassifyScope(granted string) ScopeLevel {
	for _, token := range strings.Fields(granted) {
		if token == scopeTokenFullDrive {
			return ScopeFullDrive
		}
	}
	for _, token := range strings.Fields(granted) {
		if token == scopeTokenAppFiles {
			return ScopeAppFiles
		}
	}
	return ScopeUnknown
}

func (m *Manager) postForm(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tr, nil
}

// emailFromIDToken pulls the email claim out of an id token. The token is
// consumed for display only, straight off the TLS response from the token
// endpoint, so its signature is not re-verified here.
func emailFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

func (m *Manager) recordAccountEmail(ctx context.Context, email string) error {
	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return err
	}
	cfg.AccountEmail = email
	return m.settings.Save(ctx, cfg)
}
