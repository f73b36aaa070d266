package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/puffinapp/puffin-sync/internal/config"
)

var (
	flagConfig  string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "puffin-sync",
	Short: "Cloud backup and sync for the Puffin finance database",
	Long: `puffin-sync keeps a single-user finance database safe across devices:
it fingerprints the local store, probes the configured cloud location,
decides whether editing is safe, and pushes or pulls full snapshots.`,
	SilenceUsage: true,
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. Interrupt cancels the command context so
// an in-flight exchange aborts cleanly, leaving its backup behind.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a JSON config file")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "network timeout override (e.g. 30s)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagTimeout > 0 {
		cfg.NetworkTimeout = flagTimeout
	}
	return cfg, nil
}

// withApp builds the wired stack for one command invocation and tears it
// down afterwards.
func withApp(ctx context.Context, fn func(ctx context.Context, app *App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := NewApp(ctx, cfg, flagVerbose)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}
