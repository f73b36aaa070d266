// Package cli wires the sync core into a cobra command tree. Commands map
// one-to-one onto the operations the surrounding desktop app drives:
// status, push, pull, configure, auth, disconnect.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/puffinapp/puffin-sync/internal/auth"
	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/config"
	"github.com/puffinapp/puffin-sync/internal/cryptox"
	"github.com/puffinapp/puffin-sync/internal/fingerprint"
	"github.com/puffinapp/puffin-sync/internal/localstore"
	"github.com/puffinapp/puffin-sync/internal/logging"
	"github.com/puffinapp/puffin-sync/internal/remote"
	"github.com/puffinapp/puffin-sync/internal/remote/drive"
	"github.com/puffinapp/puffin-sync/internal/remote/s3store"
	"github.com/puffinapp/puffin-sync/internal/repositories/credentials"
	"github.com/puffinapp/puffin-sync/internal/repositories/sessionmarker"
	"github.com/puffinapp/puffin-sync/internal/repositories/settings"
	"github.com/puffinapp/puffin-sync/internal/repositories/tokens"
	"github.com/puffinapp/puffin-sync/internal/state"
	"github.com/puffinapp/puffin-sync/internal/sync"
)

// App holds the fully wired sync stack for one process run.
type App struct {
	Cfg     *config.Config
	Log     *logging.SlogLogger
	StateDB *sql.DB
	Store   *localstore.SQLiteStore
	Auth    *auth.Manager
	Sync    *sync.Service
}

// NewApp builds the stack from configuration: state database with
// migrations, record cipher, repositories, the provider-specific remote
// store and the sync service on top.
func NewApp(ctx context.Context, cfg *config.Config, verbose bool) (*App, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}
	log := logging.NewFileLogger(cfg.LogPath, verbose)

	stateDB, err := state.Open(ctx, cfg.StateDBPath)
	if err != nil {
		return nil, err
	}

	cipher, err := cryptox.LoadRecordCipher(cfg.KeyfilePath)
	if err != nil {
		_ = stateDB.Close()
		return nil, fmt.Errorf("load record cipher: %w", err)
	}

	credsRepo := credentials.NewSQLiteRepository(stateDB, cipher)
	tokensRepo := tokens.NewSQLiteRepository(stateDB, cipher)
	settingsRepo := settings.NewSQLiteRepository(stateDB)

	httpClient := &http.Client{Timeout: cfg.NetworkTimeout}
	authMgr := auth.NewManager(credsRepo, tokensRepo, settingsRepo,
		cfg.Drive.TokenURL, log, auth.WithHTTPClient(httpClient))

	store := localstore.NewSQLiteStore(cfg.StorePath, cfg.BackupsDir)

	remoteStore, opts, err := buildRemote(ctx, cfg, authMgr, httpClient)
	if err != nil {
		_ = stateDB.Close()
		return nil, err
	}
	opts.BackupRetention = cfg.BackupRetention
	opts.ClearAuth = authMgr.ClearCredentials

	tracker := sync.NewSessionTracker(sessionmarker.NewSQLiteRepository(stateDB))
	svc := sync.NewService(stateDB, store, fingerprint.NewService(store), remoteStore, tracker, log, opts)

	return &App{
		Cfg:     cfg,
		Log:     log,
		StateDB: stateDB,
		Store:   store,
		Auth:    authMgr,
		Sync:    svc,
	}, nil
}

func buildRemote(ctx context.Context, cfg *config.Config, authMgr *auth.Manager, httpClient *http.Client) (remote.Store, sync.Options, error) {
	switch cfg.Provider {
	case "drive":
		client := drive.NewClient(authMgr, drive.WithHTTPClient(httpClient))
		opts := sync.Options{
			RemoteFileName: cfg.Drive.RemoteFileName,
			AuthCheck: func(ctx context.Context) error {
				_, err := authMgr.ValidToken(ctx)
				return err
			},
		}
		return client, opts, nil
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			BaseEndpoint: cfg.S3.BaseEndpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, sync.Options{}, fmt.Errorf("build s3 store: %w", err)
		}
		return store, sync.Options{RemoteFileName: cfg.Drive.RemoteFileName}, nil
	default:
		return nil, sync.Options{}, fmt.Errorf("%w: unknown provider %q", common.ErrValidation, cfg.Provider)
	}
}

func (a *App) Close() error {
	err := a.Store.Close()
	if dbErr := a.StateDB.Close(); err == nil {
		err = dbErr
	}
	return err
}
