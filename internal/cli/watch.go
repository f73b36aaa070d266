package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of filesystem events a single sqlite
// transaction produces into one re-check.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-evaluate sync state whenever the local database changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// watch the directory, not the file: sqlite swaps journal
			// side files in and out, and the primary may not exist yet
			storeDir := filepath.Dir(app.Store.Path())
			if err := watcher.Add(storeDir); err != nil {
				return fmt.Errorf("watch %s: %w", storeDir, err)
			}

			report := func() {
				res, err := app.Sync.CheckStatus(ctx)
				if err != nil {
					app.Log.Error(ctx, "watch check failed", "error", err)
					return
				}
				fmt.Printf("[%s] %s canEdit=%v\n",
					time.Now().Format("15:04:05"), res.Reason, res.CanEdit)
			}
			report()

			var timer *time.Timer
			pending := make(chan struct{}, 1)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-pending:
					report()
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Base(event.Name) != filepath.Base(app.Store.Path()) {
						continue
					}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(watchDebounce, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					app.Log.Warn(ctx, "watcher error", "error", err)
				}
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
