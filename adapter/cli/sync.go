package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goalpost-app/goalpost/internal/calendar/application"
)

var syncCalendarID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync events with your linked calendar",
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import remote calendar changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		result, err := app.SyncService.SyncFrom(cmd.Context(), userID, syncCalendarID)
		printSyncResult(result)
		return err
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Export local events to the remote calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		result, err := app.SyncService.SyncTo(cmd.Context(), userID, syncCalendarID)
		printSyncResult(result)
		return err
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a full bidirectional sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		result, err := app.SyncService.SyncBidirectional(cmd.Context(), userID, syncCalendarID)
		printSyncResult(result)
		return err
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state per calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		cursors, err := app.Cursors.FindByUser(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("loading sync state: %w", err)
		}
		if len(cursors) == 0 {
			fmt.Println("No calendars synced yet. Run: goalpost sync now")
			return nil
		}

		for _, c := range cursors {
			state := "healthy"
			if !c.Healthy() {
				state = "failing"
			}
			last := "never"
			if !c.LastSyncedAt().IsZero() {
				last = c.LastSyncedAt().Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s %-8s last sync %s", c.CalendarID(), state, last)
			if c.ErrorCount() > 0 {
				fmt.Printf("  errors %d (%s)", c.ErrorCount(), c.LastError())
			}
			fmt.Println()
		}
		return nil
	},
}

func printSyncResult(result application.SyncResult) {
	fmt.Printf("Imported %d, exported %d, updated %d, conflicts %d\n",
		result.Imported, result.Exported, result.Updated, result.Conflicts)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncCalendarID, "calendar", "primary", "remote calendar id")

	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
