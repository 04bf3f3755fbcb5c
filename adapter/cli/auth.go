package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Link and unlink your calendar account",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Print the consent URL for linking a calendar account",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		if app.Config.OAuthClientID == "" {
			return fmt.Errorf("OAUTH_CLIENT_ID is not configured")
		}

		state := uuid.NewString()
		fmt.Println("Open this URL in your browser and approve access:")
		fmt.Println()
		fmt.Println("  " + app.TokenManager.AuthURL(state))
		fmt.Println()
		fmt.Println("Then finish with: goalpost auth exchange <code>")
		return nil
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange the authorization code and store tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		if err := app.TokenManager.ExchangeAndStore(cmd.Context(), userID, args[0]); err != nil {
			return fmt.Errorf("exchanging authorization code: %w", err)
		}
		fmt.Println("Calendar account linked.")
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke access and remove stored tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		if err := app.TokenManager.Revoke(cmd.Context(), userID); err != nil {
			return fmt.Errorf("revoking tokens: %w", err)
		}
		fmt.Println("Calendar account unlinked.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authExchangeCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
