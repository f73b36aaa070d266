package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local database to the cloud location",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if err := app.Sync.Push(ctx); err != nil {
				return err
			}
			fmt.Println("push complete")
			return nil
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local database with the cloud copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if err := app.Sync.Pull(ctx); err != nil {
				return err
			}
			fmt.Println("pull complete")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pushCmd, pullCmd)
}
