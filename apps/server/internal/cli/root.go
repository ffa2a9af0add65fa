// Package cli defines the dirpack command tree.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the dirpack root command. Run without a subcommand it
// serves HTTP, so the binary can be used as a container entrypoint as is.
func NewRootCmd(log *slog.Logger) *cobra.Command {
	serve := NewServeCmd(log)
	root := &cobra.Command{
		Use:          "dirpack",
		Short:        "Download a GitHub repository directory as a zip archive",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(serve)
	root.AddCommand(NewFetchCmd(log))
	root.AddCommand(NewHashTokenCmd())
	return root
}
