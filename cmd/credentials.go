package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gentyr/gentyr-sub005/internal/credentials"
	"github.com/gentyr/gentyr-sub005/internal/logging"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Inspect credentials used by external readers",
}

var credentialsCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Show which source resolves a credential",
	Long: `Resolve a credential through the environment, vault mappings, the OS
keychain and the 1Password CLI, and report the first source that supplies it.
The value is masked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := credentials.NewResolver(cfg.VaultMappingsPath(), logging.NewLogger("credentials"))

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		cred, err := resolver.Resolve(ctx, args[0])
		if errors.Is(err, credentials.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not found in any source\n", args[0])
			return err
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (from %s)\n", cred.Name, cred.Masked(), cred.Source)
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsCheckCmd)
	rootCmd.AddCommand(credentialsCmd)
}
