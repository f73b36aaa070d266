package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/puffinapp/puffin-sync/internal/sync"
)

var (
	configureLocationID   string
	configureLocationName string
	configureFileBased    bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Point sync at a cloud location",
	Long: `Point sync at a cloud location: a folder id holding the well-known
backup file, or (with --file-based) the id of one pre-agreed shared file.
Changing the location resets the sync bookkeeping.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			patch := sync.ConfigPatch{}
			if cmd.Flags().Changed("location") {
				patch.RemoteLocationID = &configureLocationID
			}
			if cmd.Flags().Changed("name") {
				patch.RemoteLocationName = &configureLocationName
			}
			if cmd.Flags().Changed("file-based") {
				patch.FileBasedMode = &configureFileBased
			}

			cfg, err := app.Sync.UpdateConfig(ctx, patch)
			if err != nil {
				return err
			}

			if !cfg.IsConfigured() {
				fmt.Println("sync is not configured")
				return nil
			}
			mode := "folder"
			if cfg.FileBasedMode {
				mode = "file-based"
			}
			fmt.Printf("location: %s (%s)\n", cfg.RemoteLocationID, mode)
			if cfg.RemoteLocationName != "" {
				fmt.Printf("name:     %s\n", cfg.RemoteLocationName)
			}
			if cfg.AccountEmail != "" {
				fmt.Printf("account:  %s\n", cfg.AccountEmail)
			}
			return nil
		})
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Clear all sync configuration, credentials and tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if err := app.Sync.Disconnect(ctx); err != nil {
				return err
			}
			fmt.Println("disconnected; local data is untouched")
			return nil
		})
	},
}

func init() {
	configureCmd.Flags().StringVar(&configureLocationID, "location", "", "cloud folder or file id")
	configureCmd.Flags().StringVar(&configureLocationName, "name", "", "display name for the location")
	configureCmd.Flags().BoolVar(&configureFileBased, "file-based", false, "location id names one shared file")
	rootCmd.AddCommand(configureCmd, disconnectCmd)
}
