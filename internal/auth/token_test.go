package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/cryptox"
	"github.com/puffinapp/puffin-sync/internal/logging"
	"github.com/puffinapp/puffin-sync/internal/repositories/credentials"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
	"github.com/puffinapp/puffin-sync/internal/repositories/tokens"

	_ "modernc.org/sqlite"
)

type fixture struct {
	manager  *Manager
	creds    credentials.Repository
	tokens   tokens.Repository
	settings settings.Repository
	now      time.Time
}

func setupManager(t *testing.T, tokenURL string) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE records (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)

	cipher, err := cryptox.LoadRecordCipher(filepath.Join(t.TempDir(), "state.key"))
	require.NoError(t, err)

	f := &fixture{
		creds:    credentials.NewSQLiteRepository(db, cipher),
		tokens:   tokens.NewSQLiteRepository(db, cipher),
		settings: settings.NewSQLiteRepository(db),
		now:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewManager(f.creds, f.tokens, f.settings, tokenURL, logging.NewDiscardLogger(),
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) saveCreds(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.SaveCredentials(context.Background(),
		"12345.apps.googleusercontent.com", "secret", ""))
}

func TestSaveCredentials_Validation(t *testing.T) {
	f := setupManager(t, "")
	ctx := context.Background()

	tests := []struct {
		name                   string
		clientID, clientSecret string
		wantErr                bool
	}{
		{"valid", "12345.apps.googleusercontent.com", "secret", false},
		{"missing secret", "12345.apps.googleusercontent.com", "", true},
		{"missing id", "", "secret", true},
		{"wrong suffix", "12345.example.com", "secret", true},
		{"suffix only", ".apps.googleusercontent.com", "secret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.manager.SaveCredentials(ctx, tt.clientID, tt.clientSecret, "")
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClearCredentials_InvalidatesTokens(t *testing.T) {
	f := setupManager(t, "")
	ctx := context.Background()
	f.saveCreds(t)
	require.NoError(t, f.tokens.Save(ctx, &tokens.TokenSet{AccessToken: "a", RefreshToken: "r"}))

	require.NoError(t, f.manager.ClearCredentials(ctx))

	_, err := f.creds.Get(ctx)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.tokens.Get(ctx)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestNeedsRefresh_Judgments(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	expired := &tokens.TokenSet{ExpiresAtEpochMs: now.Add(-time.Second).UnixMilli()}
	assert.True(t, NeedsRefresh(expired, now))

	withinSkew := &tokens.TokenSet{ExpiresAtEpochMs: now.Add(30 * time.Second).UnixMilli()}
	assert.True(t, NeedsRefresh(withinSkew, now))

	valid := &tokens.TokenSet{ExpiresAtEpochMs: now.Add(time.Hour).UnixMilli()}
	assert.False(t, NeedsRefresh(valid, now))
}

func TestValidToken_NoTokens_NotAuthenticated(t *testing.T) {
	f := setupManager(t, "")

	_, err := f.manager.ValidToken(context.Background())
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestValidToken_FreshToken_NoRefresh(t *testing.T) {
	f := setupManager(t, "http://unreachable.invalid")
	ctx := context.Background()
	require.NoError(t, f.tokens.Save(ctx, &tokens.TokenSet{
		AccessToken:      "fresh",
		RefreshToken:     "r",
		ExpiresAtEpochMs: f.now.Add(time.Hour).UnixMilli(),
	}))

	tok, err := f.manager.ValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

func TestValidToken_Refresh_PreservesRefreshToken(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"client_id":     r.PostFormValue("client_id"),
		}
		// response deliberately omits refresh_token
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	f := setupManager(t, srv.URL)
	ctx := context.Background()
	f.saveCreds(t)
	require.NoError(t, f.tokens.Save(ctx, &tokens.TokenSet{
		AccessToken:      "old-access",
		RefreshToken:     "original-refresh-token",
		ExpiresAtEpochMs: f.now.Add(30 * time.Second).UnixMilli(), // within skew
		TokenType:        "Bearer",
	}))

	tok, err := f.manager.ValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)

	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "original-refresh-token", gotForm["refresh_token"])
	assert.Equal(t, "12345.apps.googleusercontent.com", gotForm["client_id"])

	stored, err := f.tokens.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original-refresh-token", stored.RefreshToken)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.Equal(t, f.now.Add(time.Hour).UnixMilli(), stored.ExpiresAtEpochMs)
}

func TestValidToken_RefreshFails_NotAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	f := setupManager(t, srv.URL)
	ctx := context.Background()
	f.saveCreds(t)
	require.NoError(t, f.tokens.Save(ctx, &tokens.TokenSet{
		AccessToken:      "old",
		RefreshToken:     "r",
		ExpiresAtEpochMs: f.now.Add(-time.Minute).UnixMilli(),
	}))

	_, err := f.manager.ValidToken(ctx)
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestExchangeCode_StoresTokensAndEmail(t *testing.T) {
	// unsigned id token with an email claim; header/claims are base64 JSON
	idToken := unsignedJWT(t, map[string]any{"email": "user@example.com"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostFormValue("grant_type"))
		assert.Equal(t, "the-code", r.PostFormValue("code"))
		assert.Equal(t, "http://127.0.0.1:49321", r.PostFormValue("redirect_uri"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3599,
			"token_type":    "Bearer",
			"scope":         "https://www.googleapis.com/auth/drive.file openid email",
			"id_token":      idToken,
		})
	}))
	defer srv.Close()

	f := setupManager(t, srv.URL)
	ctx := context.Background()
	f.saveCreds(t)

	level, err := f.manager.ExchangeCode(ctx, "the-code", "http://127.0.0.1:49321")
	require.NoError(t, err)
	assert.Equal(t, ScopeAppFiles, level)

	stored, err := f.tokens.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	cfg, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cfg.AccountEmail)
}

func TestClassifyScope_ExactTokenMatch(t *testing.T) {
	assert.Equal(t, ScopeAppFiles, ClassifyScope("https://www.googleapis.com/auth/drive.file"))
	assert.Equal(t, ScopeFullDrive, ClassifyScope("https://www.googleapis.com/auth/drive"))
	// the narrow scope string contains the broad one as a prefix; exact
	// token matching must not misread it
	assert.Equal(t, ScopeAppFiles, ClassifyScope("openid https://www.googleapis.com/auth/drive.file email"))
	assert.Equal(t, ScopeFullDrive, ClassifyScope("https://www.googleapis.com/auth/drive.file https://www.googleapis.com/auth/drive"))
	assert.Equal(t, ScopeUnknown, ClassifyScope("openid email"))
	assert.Equal(t, ScopeUnknown, ClassifyScope(""))
}

// unsignedJWT builds an alg=none JWT carrying the given claims.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims(claims)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}
