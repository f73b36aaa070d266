// Package auth owns the credential and token lifecycle: validating and
// persisting client credentials, keeping the access token fresh, running
// the one-time authorization-code exchange, and classifying the granted
// scope. No other component reads the raw persisted token fields.
package auth

import (
	"net/http"
	"time"

	"github.com/puffinapp/puffin-sync/internal/logging"
	"github.com/puffinapp/puffin-sync/internal/repositories/credentials"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
	"github.com/puffinapp/puffin-sync/internal/repositories/tokens"
)

// RefreshSkew is the lookahead buffer: a token expiring within this window
// is refreshed before use.
const RefreshSkew = 60 * time.Second

// issuerSuffix is the required ending of a well-formed client id.
const issuerSuffix = ".apps.googleusercontent.com"

type Manager struct {
	creds    credentials.Repository
	tokens   tokens.Repository
	settings settings.Repository

	tokenURL   string
	httpClient *http.Client
	log        logging.Logger
	now        func() time.Time
}

type Option func(*Manager)

func WithHTTPClient(h *http.Client) Option {
	return func(m *Manager) { m.httpClient = h }
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(creds credentials.Repository, tokenRepo tokens.Repository, settingsRepo settings.Repository, tokenURL string, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		creds:      creds,
		tokens:     tokenRepo,
		settings:   settingsRepo,
		tokenURL:   tokenURL,
		httpClient: http.DefaultClient,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
