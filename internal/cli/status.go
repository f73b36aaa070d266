package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/puffinapp/puffin-sync/internal/sync"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Evaluate sync state and whether editing is safe",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			res, err := app.Sync.CheckStatus(ctx)
			if err != nil {
				return err
			}
			if statusJSON {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			printStatus(res)
			return nil
		})
	},
}

func printStatus(res *sync.CheckResult) {
	fmt.Printf("state:     %s\n", res.Reason)
	fmt.Printf("can edit:  %v\n", res.CanEdit)
	if res.LastSyncedAt != nil {
		fmt.Printf("last sync: %s\n", res.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if res.CloudModifiedAt != nil {
		fmt.Printf("cloud mod: %s\n", res.CloudModifiedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if res.HasLocalChanges {
		fmt.Println("local changes pending push")
	}
	if res.HasCloudChanges {
		fmt.Println("cloud changes pending pull")
	}
	if res.Warning != "" {
		fmt.Printf("warning:   %s\n", res.Warning)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "machine-readable output")
	rootCmd.AddCommand(statusCmd)
}
