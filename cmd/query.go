package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var queryLimit int

var queryCmd = &cobra.Command{
	Use:   "query [type]",
	Short: "Query dashboard data in JSON format (for agents/scripts)",
	Long: `Query dashboard data in structured JSON format.

Types:
  trajectory - Aggregated usage points, trends, reset times and projections
  chart      - Chart series for the most recent points (use --limit flag)
  accounts   - API key rotation overview
  agents     - Automated instance spawns in the last 24h
  deputy     - Deputy-CTO triage queue
  testing    - Unresolved test failures and coverage
  sessions   - Token usage from session transcripts

Examples:
  ctodash query trajectory
  ctodash query chart --limit 50`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"trajectory", "chart", "accounts", "agents", "deputy", "testing", "sessions"},
	RunE: func(cmd *cobra.Command, args []string) error {
		src := newSources()

		var result any
		var err error

		switch args[0] {
		case "trajectory":
			result = src.Trajectory.Read()
		case "chart":
			result = src.Trajectory.Read().Series(queryLimit)
		case "accounts":
			result = src.Accounts.Read()
		case "agents":
			result = src.Agents.Read()
		case "deputy":
			result, err = src.Deputy()
		case "testing":
			result, err = src.Testing(cmd.Context())
		case "sessions":
			result, err = src.Sessions.Read()
		default:
			return fmt.Errorf("unknown query type: %s (valid: trajectory, chart, accounts, agents, deputy, testing, sessions)", args[0])
		}

		if err != nil {
			return err
		}

		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 30, "Number of chart points")
	rootCmd.AddCommand(queryCmd)
}
