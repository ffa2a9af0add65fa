package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// NewHashTokenCmd returns the command printing the digest clients send as
// their token.
func NewHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the client token for a GitHub token (default: $GITHUB_TOKEN)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("GITHUB_TOKEN")
			if len(args) == 1 {
				secret = args[0]
			}
			if secret == "" {
				return errors.New("no token given and GITHUB_TOKEN is not set")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), download.TokenDigest(secret))
			return err
		},
	}
}
