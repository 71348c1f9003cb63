package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show aggregated usage points",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newSources().Trajectory.Read()
		out := cmd.OutOrStdout()

		points := t.Recent(historyLimit)
		if len(points) == 0 {
			fmt.Fprintln(out, "No usage snapshots available yet.")
			return nil
		}

		fmt.Fprintf(out, "Usage History (last %d of %d points)\n", len(points), len(t.Snapshots))
		fmt.Fprintln(out, "─────────────────────────────────────────────")
		fmt.Fprintf(out, "%-20s %10s %10s\n", "Time", "5-hour", "7-day")
		fmt.Fprintln(out, "─────────────────────────────────────────────")

		for i := len(points) - 1; i >= 0; i-- {
			p := points[i]
			fmt.Fprintf(out, "%-20s %9.1f%% %9.1f%%\n",
				p.Timestamp.Local().Format("2006-01-02 15:04"),
				p.ShortWindowPct,
				p.LongWindowPct,
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 24, "Number of most recent points to show")
	rootCmd.AddCommand(historyCmd)
}
