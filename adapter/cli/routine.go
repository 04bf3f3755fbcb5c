package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/goalpost-app/goalpost/internal/routines/application"
	"github.com/goalpost-app/goalpost/internal/routines/domain"
)

var routineCmd = &cobra.Command{
	Use:   "routine",
	Short: "Manage recurring routines",
}

var (
	routineAddPattern     string
	routineAddStart       string
	routineAddEnd         string
	routineAddTime        string
	routineAddDuration    int
	routineAddPriority    int
	routineAddDescription string
)

var routineAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a routine and materialize its first occurrences",
	Long: `Create a recurring routine.

The pattern is <multiplier><unit>, optionally with weekdays:
  1D        every day
  2W        every two weeks
  1W:1,3,5  weekly on Monday, Wednesday and Friday (0 = Sunday)
  1M        every month
  1Y        every year

Examples:
  goalpost routine add "Morning run" --pattern 1D --time 06:30
  goalpost routine add "Team retro" --pattern 2W:4 --time 15:00 --duration 60
  goalpost routine add "Pay rent" --pattern 1M --start 2026-10-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}
		ctx := cmd.Context()

		start := time.Now().UTC().Truncate(24 * time.Hour)
		if routineAddStart != "" {
			parsed, err := time.Parse("2006-01-02", routineAddStart)
			if err != nil {
				return fmt.Errorf("invalid --start date: %w", err)
			}
			start = parsed
		}

		routine, err := domain.NewRoutine(userID, args[0], routineAddDescription,
			routineAddPriority, routineAddPattern, start, routineAddDuration)
		if err != nil {
			return err
		}

		if routineAddEnd != "" {
			end, err := time.Parse("2006-01-02", routineAddEnd)
			if err != nil {
				return fmt.Errorf("invalid --end date: %w", err)
			}
			routine.SetEnd(end)
		}
		if routineAddTime != "" {
			offset, err := parseTimeOfDay(routineAddTime)
			if err != nil {
				return err
			}
			routine.SetTimeOfDay(offset)
		}

		if err := app.Routines.Save(ctx, routine); err != nil {
			return fmt.Errorf("saving routine: %w", err)
		}

		result, err := app.Materializer.Materialize(ctx, routine, time.Now().UTC().Add(application.GenerationHorizon))
		if err != nil {
			return fmt.Errorf("materializing routine: %w", err)
		}

		fmt.Println("Routine created!")
		fmt.Printf("  ID: %s\n", routine.ID())
		fmt.Printf("  Pattern: %s\n", routine.Frequency().String())
		fmt.Printf("  Events scheduled: %d\n", result.Created)
		return nil
	},
}

var routineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		// Every routine is eligible against a far horizon.
		routines, err := app.Routines.FindEligible(cmd.Context(), userID, time.Now().UTC().Add(100*365*24*time.Hour))
		if err != nil {
			return fmt.Errorf("listing routines: %w", err)
		}
		if len(routines) == 0 {
			fmt.Println("No routines yet. Create one with: goalpost routine add")
			return nil
		}

		for _, r := range routines {
			line := fmt.Sprintf("%s  %-30s %s", r.ID().String()[:8], r.Name(), r.Frequency().String())
			if next := r.Next(); next != nil {
				line += "  next " + next.Format("2006-01-02")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var routineSkipCmd = &cobra.Command{
	Use:   "skip <routine-id> <date>",
	Short: "Skip one occurrence of a routine",
	Long: `Skip the routine occurrence at the given date (YYYY-MM-DD) or
timestamp (RFC 3339). The slot stays empty even after a reschedule or a
later regeneration pass.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid routine id: %w", err)
		}
		at, err := parseWhen(args[1])
		if err != nil {
			return err
		}

		if err := app.SkipHandler.Skip(cmd.Context(), id, at); err != nil {
			return err
		}
		fmt.Printf("Skipped %s for routine %s\n", at.Format(time.RFC3339), args[0][:8])
		return nil
	},
}

var (
	routineUnskipFrom string
	routineUnskipAll  bool
)

var routineUnskipCmd = &cobra.Command{
	Use:   "unskip <routine-id>",
	Short: "Reopen skipped occurrences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid routine id: %w", err)
		}

		if routineUnskipAll {
			n, err := app.SkipHandler.ClearAll(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d skip(s).\n", n)
			return nil
		}

		from := time.Now().UTC()
		if routineUnskipFrom != "" {
			from, err = parseWhen(routineUnskipFrom)
			if err != nil {
				return err
			}
		}
		n, err := app.SkipHandler.ClearFrom(cmd.Context(), id, from)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d skip(s) from %s.\n", n, from.Format(time.RFC3339))
		return nil
	},
}

var routineRecomputeFrom string

var routineRecomputeCmd = &cobra.Command{
	Use:   "recompute <routine-id>",
	Short: "Rebuild a routine's future events under its current pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid routine id: %w", err)
		}

		var from *time.Time
		if routineRecomputeFrom != "" {
			parsed, err := parseWhen(routineRecomputeFrom)
			if err != nil {
				return err
			}
			from = &parsed
		}

		result, err := app.RecomputeHandler.Handle(cmd.Context(), id, from)
		if err != nil {
			return err
		}
		fmt.Printf("Recomputed: %d removed, %d created\n", result.Deleted, result.Created)
		return nil
	},
}

var (
	routineRescheduleTime  string
	routineRescheduleBatch string
)

var routineRescheduleCmd = &cobra.Command{
	Use:   "reschedule <routine-id>",
	Short: "Move a routine's future events to a new time of day",
	Long: `Move future events of the routine to a new wall-clock time.

By default every future event moves. With --batch only events created in
that generation batch move. Vacated slots are recorded as skips so the
background generator does not refill them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid routine id: %w", err)
		}
		offset, err := parseTimeOfDay(routineRescheduleTime)
		if err != nil {
			return err
		}

		scope := application.ScopeFuture
		if routineRescheduleBatch != "" {
			scope = application.ScopeBatch
		}

		moved, err := app.RescheduleHandler.Handle(cmd.Context(), id, scope, routineRescheduleBatch, offset)
		if err != nil {
			return err
		}
		fmt.Printf("Moved %d events to %s\n", moved, routineRescheduleTime)
		return nil
	},
}

var routineCatchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Materialize any occurrences missed while the app was closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		result, err := app.CatchUpHandler.RunForUser(cmd.Context(), userID, time.Now().UTC().Add(application.GenerationHorizon))
		if err != nil {
			return err
		}
		fmt.Printf("Caught up %d routines, %d events created\n", result.Routines, result.Created)
		return nil
	},
}

// parseTimeOfDay converts HH:MM to milliseconds since midnight.
func parseTimeOfDay(value string) (int64, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	return int64(hours)*time.Hour.Milliseconds() + int64(minutes)*time.Minute.Milliseconds(), nil
}

// parseWhen accepts a date (YYYY-MM-DD) or an RFC 3339 timestamp.
func parseWhen(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, expected YYYY-MM-DD or RFC 3339", value)
	}
	return t.UTC(), nil
}

func init() {
	routineAddCmd.Flags().StringVarP(&routineAddPattern, "pattern", "p", "1D", "repetition pattern")
	routineAddCmd.Flags().StringVar(&routineAddStart, "start", "", "first occurrence date (YYYY-MM-DD)")
	routineAddCmd.Flags().StringVar(&routineAddEnd, "end", "", "last occurrence date (YYYY-MM-DD)")
	routineAddCmd.Flags().StringVarP(&routineAddTime, "time", "t", "", "time of day (HH:MM)")
	routineAddCmd.Flags().IntVarP(&routineAddDuration, "duration", "d", 30, "event duration in minutes")
	routineAddCmd.Flags().IntVar(&routineAddPriority, "priority", 0, "priority")
	routineAddCmd.Flags().StringVar(&routineAddDescription, "description", "", "description")

	routineUnskipCmd.Flags().StringVar(&routineUnskipFrom, "from", "", "clear skips at or after this time")
	routineUnskipCmd.Flags().BoolVar(&routineUnskipAll, "all", false, "clear every skip of the routine")

	routineRescheduleCmd.Flags().StringVarP(&routineRescheduleTime, "time", "t", "", "new time of day (HH:MM)")
	routineRescheduleCmd.Flags().StringVar(&routineRescheduleBatch, "batch", "", "only move events of this generation batch")
	_ = routineRescheduleCmd.MarkFlagRequired("time")

	routineCmd.AddCommand(routineAddCmd)
	routineCmd.AddCommand(routineListCmd)
	routineCmd.AddCommand(routineSkipCmd)
	routineCmd.AddCommand(routineUnskipCmd)
	routineCmd.AddCommand(routineRecomputeCmd)
	routineCmd.AddCommand(routineRescheduleCmd)
	routineCmd.AddCommand(routineCatchupCmd)
	rootCmd.AddCommand(routineCmd)
}
