package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/puffinapp/puffin-sync/internal/auth"
	"github.com/puffinapp/puffin-sync/internal/common"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage cloud authorization",
}

var authCredentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Store the OAuth client credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			reader := bufio.NewReader(os.Stdin)

			clientID, err := promptLine(reader, "Client ID", os.Stdout)
			if err != nil {
				return err
			}
			secret, err := promptSecret("Client secret", os.Stdout)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(secret)

			apiKey, err := promptLine(reader, "API key (optional)", os.Stdout)
			if err != nil {
				return err
			}

			if err := app.Auth.SaveCredentials(ctx, clientID, string(secret), apiKey); err != nil {
				return err
			}
			fmt.Println("credentials stored")
			return nil
		})
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize via the browser and store tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			clientID, err := app.Auth.ClientID(ctx)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("no credentials stored; run 'puffin-sync auth credentials' first")
				}
				return err
			}

			fmt.Println("opening the browser for authorization...")
			flow := auth.NewLoopbackFlow(app.Cfg.Drive.AuthURLBase, app.Cfg.Drive.Scope)
			cb, err := flow.Authorize(ctx, clientID)
			if err != nil {
				return fmt.Errorf("authorization flow: %w", err)
			}

			scope, err := app.Auth.ExchangeCode(ctx, cb.Code, cb.RedirectURI)
			if err != nil {
				return err
			}

			fmt.Println("authorized")
			if scope == auth.ScopeFullDrive {
				fmt.Println("note: the granted scope covers the full drive, not just app files")
			}
			return nil
		})
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether credentials and a usable token are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			has, err := app.Auth.HasCredentials(ctx)
			if err != nil {
				return err
			}
			if !has {
				fmt.Println("no credentials stored")
				return nil
			}
			fmt.Println("credentials stored")

			if _, err := app.Auth.ValidToken(ctx); err != nil {
				if errors.Is(err, common.ErrNotAuthenticated) {
					fmt.Println("not authorized; run 'puffin-sync auth login'")
					return nil
				}
				return err
			}
			fmt.Println("token valid")
			return nil
		})
	},
}

func init() {
	authCmd.AddCommand(authCredentialsCmd, authLoginCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
