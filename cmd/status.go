package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gentyr/gentyr-sub005/internal/dashboard"
	"github.com/gentyr/gentyr-sub005/internal/trajectory"
	"github.com/spf13/cobra"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quota usage, trends and projections",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := newSources()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "         USAGE TRAJECTORY")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		printTrajectory(out, src.Trajectory.Read(), time.Now())

		if !statusAll {
			return nil
		}
		return printOverview(cmd, src)
	},
}

func printTrajectory(w io.Writer, t *trajectory.Trajectory, now time.Time) {
	if !t.HasData {
		fmt.Fprintln(w, "\nNo usage snapshots available yet.")
		return
	}

	latest := t.Snapshots[len(t.Snapshots)-1]

	section(w, "Current (mean across active keys)")
	fmt.Fprintf(w, "  5-hour:  [%s] %5.1f%%\n", miniBar(latest.ShortWindowPct, 30), latest.ShortWindowPct)
	fmt.Fprintf(w, "  7-day:   [%s] %5.1f%%\n", miniBar(latest.LongWindowPct, 30), latest.LongWindowPct)
	fmt.Fprintf(w, "  As of:   %s (%d snapshots)\n", latest.Timestamp.Local().Format("2006-01-02 15:04"), len(t.Snapshots))

	section(w, "Trend")
	fmt.Fprintf(w, "  5-hour:  %s\n", fmtRate(t.ShortWindowTrendPerHour, "h"))
	fmt.Fprintf(w, "  7-day:   %s\n", fmtRate(t.LongWindowTrendPerDay, "day"))

	section(w, "Projected at reset")
	fmt.Fprintf(w, "  5-hour:  %-8s reset %s\n", fmtPct(t.ShortWindowProjectedAtReset), fmtReset(t.ShortWindowResetTime, now))
	fmt.Fprintf(w, "  7-day:   %-8s reset %s\n", fmtPct(t.LongWindowProjectedAtReset), fmtReset(t.LongWindowResetTime, now))
}

func printOverview(cmd *cobra.Command, src *dashboard.Sources) error {
	w := cmd.OutOrStdout()

	acc := src.Accounts.Read()
	section(w, "Accounts")
	if !acc.HasData {
		fmt.Fprintln(w, "  No key rotation state")
	} else {
		for _, k := range acc.Keys {
			marker := " "
			if k.Active {
				marker = "*"
			}
			fmt.Fprintf(w, " %s %-12s %-10s 5h %-7s 7d %-7s %s\n", marker, k.KeyID, k.Status, fmtPct(k.ShortWindowPct), fmtPct(k.LongWindowPct), k.Email)
		}
		fmt.Fprintf(w, "  %d recent rotation events\n", len(acc.Events))
	}

	ag := src.Agents.Read()
	section(w, "Automated instances (24h)")
	if !ag.HasData {
		fmt.Fprintln(w, "  No agent history")
	} else {
		parts := make([]string, 0, len(ag.ByType))
		for _, tc := range ag.ByType {
			parts = append(parts, fmt.Sprintf("%s=%d", tc.Type, tc.Count))
		}
		fmt.Fprintf(w, "  %d spawns: %s\n", ag.Total, strings.Join(parts, ", "))
	}

	dep, err := src.Deputy()
	if err != nil {
		return fmt.Errorf("reading deputy queue: %w", err)
	}
	section(w, "Deputy CTO")
	if !dep.HasData {
		fmt.Fprintln(w, "  No triage database")
	} else {
		fmt.Fprintf(w, "  Pending: %d  Answered: %d\n", dep.Pending, dep.Answered)
		if dep.OldestPendingAge != nil {
			fmt.Fprintf(w, "  Oldest pending: %s\n", dep.OldestPendingAge.Round(time.Minute))
		}
	}

	tests, err := src.Testing(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading test failures: %w", err)
	}
	section(w, "Testing")
	if !tests.HasData {
		fmt.Fprintln(w, "  No test-failure database")
	} else {
		fmt.Fprintf(w, "  Unresolved failures: %d\n", tests.Unresolved)
		for _, s := range tests.Suites {
			fmt.Fprintf(w, "  %4d  %s (%s)\n", s.FailureCount, s.SuiteName, s.Framework)
		}
	}
	if tests.Coverage != nil {
		fmt.Fprintf(w, "  Coverage: %.1f%%\n", *tests.Coverage)
	}

	usage, err := src.Sessions.Read()
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}
	section(w, fmt.Sprintf("Token usage (%.0fh)", usage.WindowHours))
	if !usage.HasData {
		fmt.Fprintln(w, "  No session transcripts")
	} else {
		fmt.Fprintf(w, "  %d sessions, %d messages, %d tokens\n", usage.Sessions, usage.Messages, usage.TotalTokens)
		for _, m := range usage.ByModel {
			fmt.Fprintf(w, "  %-28s %12d\n", m.Model, m.TotalTokens)
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "Include accounts, agents, triage, testing and session usage")
	rootCmd.AddCommand(statusCmd)
}
