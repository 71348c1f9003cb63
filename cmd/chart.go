package cmd

import (
	"fmt"
	"io"

	"github.com/gentyr/gentyr-sub005/internal/trajectory"
	"github.com/spf13/cobra"
)

var chartLimit int
var chartWidth int

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Display ASCII usage sparklines",
	Long: `Display sparklines of the aggregated 5-hour and 7-day usage.

Examples:
  ctodash chart
  ctodash chart --limit 100 --width 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		series := newSources().Trajectory.Read().Series(chartLimit)
		printChart(cmd.OutOrStdout(), series, chartWidth)
		return nil
	},
}

func printChart(w io.Writer, s trajectory.Series, width int) {
	if len(s.Timestamps) < 2 {
		fmt.Fprintln(w, "Need at least 2 usage snapshots to draw a chart.")
		return
	}

	first := s.Timestamps[0].Local().Format("01/02 15:04")
	last := s.Timestamps[len(s.Timestamps)-1].Local().Format("01/02 15:04")

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  5-hour: %s %5.1f%%\n", sparkline(s.ShortWindow, width), s.ShortWindow[len(s.ShortWindow)-1])
	fmt.Fprintf(w, "  7-day:  %s %5.1f%%\n", sparkline(s.LongWindow, width), s.LongWindow[len(s.LongWindow)-1])
	fmt.Fprintf(w, "  %s → %s (%d points)\n", first, last, len(s.Timestamps))
	fmt.Fprintln(w)
}

func init() {
	chartCmd.Flags().IntVarP(&chartLimit, "limit", "n", 30, "Number of most recent points to plot")
	chartCmd.Flags().IntVarP(&chartWidth, "width", "w", 40, "Maximum sparkline width")
	rootCmd.AddCommand(chartCmd)
}
