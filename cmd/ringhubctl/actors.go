package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/spf13/cobra"
)

var cooldownHours int

var cooldownCmd = &cobra.Command{
	Use:     "cooldown <actor>",
	Short:   "Lock an actor out of forking and record a violation",
	GroupID: "actors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		until, err := ringhub.Actors.ApplyCooldown(cmd.Context(), args[0], cooldownHours)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"actor_id": args[0], "cooldown_until": until})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s in cooldown until %s\n", args[0], until.Format(time.RFC3339))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear <actor>",
	Short:   "Clear an actor's violations, cooldown and review flag",
	GroupID: "actors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ringhub.Actors.ClearViolations(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared violations for %s\n", args[0])
		return nil
	},
}

var flaggedCmd = &cobra.Command{
	Use:     "flagged",
	Short:   "List actors flagged for review",
	GroupID: "actors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagged, err := ringhub.Actors.ListFlagged(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), flagged)
		}
		if len(flagged) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flagged actors")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTOR\tTIER\tVIOLATIONS\tCOOLDOWN UNTIL")
		for _, rep := range flagged {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rep.ActorID, rep.Tier, rep.ViolationCount, formatTime(rep.CooldownUntil))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:     "show <actor>",
	Short:   "Show an actor's tier, reputation, rings and recent actions",
	GroupID: "actors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := ringhub.Actors.Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), report)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Actor:       %s\n", report.ActorID)
		fmt.Fprintf(out, "Tier:        %s\n", report.Tier)
		fmt.Fprintf(out, "In cooldown: %t\n", report.InCooldown)
		if rep := report.Reputation; rep != nil {
			fmt.Fprintf(out, "Violations:  %d\n", rep.ViolationCount)
			fmt.Fprintf(out, "Flagged:     %t\n", rep.FlaggedForReview)
		}
		fmt.Fprintf(out, "Rings:       %d\n", len(report.Rings))
		for _, action := range report.RecentActions {
			fmt.Fprintf(out, "  %s  %s\n", action.PerformedAt.Format(time.RFC3339), action.Action)
		}
		return nil
	},
}

var checkAction string

var checkCmd = &cobra.Command{
	Use:     "check <actor>",
	Short:   "Preview the rate limit decision for an actor",
	GroupID: "actors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := ringhub.Actors.Check(cmd.Context(), args[0], checkAction)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Allowed: %t (tier %s)\n", d.Allowed, d.Tier)
		if !d.Allowed {
			fmt.Fprintf(out, "Reason:  %s: %s\n", d.Reason, d.Message)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WINDOW\tREMAINING\tRESETS")
		fmt.Fprintf(w, "%s\t%d\t%s\n", ratelimit.WindowHourly, d.Remaining.Hourly, d.ResetTimes.Hourly.Format(time.RFC3339))
		fmt.Fprintf(w, "%s\t%d\t%s\n", ratelimit.WindowDaily, d.Remaining.Daily, d.ResetTimes.Daily.Format(time.RFC3339))
		fmt.Fprintf(w, "%s\t%d\t%s\n", ratelimit.WindowWeekly, d.Remaining.Weekly, d.ResetTimes.Weekly.Format(time.RFC3339))
		return w.Flush()
	},
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	cooldownCmd.Flags().IntVar(&cooldownHours, "hours", ratelimit.DefaultCooldownHours, "cooldown length in hours")
	checkCmd.Flags().StringVar(&checkAction, "action", models.ActionFork, "rate limited action")
}
