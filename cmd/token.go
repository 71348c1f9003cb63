package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/gentyr/gentyr-sub005/internal/config"
	"github.com/spf13/cobra"
)

const tokenPrefix = "ctodash_token_"

var saveToken bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage dashboard access tokens",
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a token for remote dashboard access",
	Long: `Print a random 32-byte token. With --save it is appended to the token
file that 'ctodash serve --auth' reads when CTODASH_AUTH_TOKENS is unset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := generateSecureToken()
		if err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, token)

		if !saveToken {
			return nil
		}
		path, err := config.TokenFile()
		if err != nil {
			return fmt.Errorf("locating token file: %w", err)
		}
		if err := config.AppendToken(path, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved to %s\n", path)
		return nil
	},
}

func generateSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return tokenPrefix + hex.EncodeToString(buf), nil
}

func init() {
	tokenGenerateCmd.Flags().BoolVarP(&saveToken, "save", "s", false, "Append the token to ~/.ctodash/tokens")
	tokenCmd.AddCommand(tokenGenerateCmd)
	rootCmd.AddCommand(tokenCmd)
}
