package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/tilsley/dirpack/apps/server/internal/download"
	"github.com/tilsley/dirpack/apps/server/internal/platform/config"
)

const progressTemplate pb.ProgressBarTemplate = `{{ string . "files" }} {{ counters . }} {{ speed . }}`

// NewFetchCmd returns the command that mirrors a directory to local disk.
func NewFetchCmd(log *slog.Logger) *cobra.Command {
	var (
		output  string
		zipPath string
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <github-url>",
		Short: "Download a repository directory to a local folder",
		Long: `Resolve a github.com directory URL and write every file below it to a
local folder, or to a zip archive with --zip. Exits non-zero if any path
could not be fetched; everything that could be fetched is still written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			loc, err := download.Resolve(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = defaultOutputDir(loc)
			}

			remote, err := newRemote(cfg)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.ErrOrStderr()
			if quiet {
				out = io.Discard
			}
			fmt.Fprintf(out, "[-] Repository: %s/%s (branch %s)\n", loc.Owner, loc.Repo, loc.Branch) //nolint:errcheck
			fmt.Fprintf(out, "[-] Directory: /%s\n", loc.Path)                                       //nolint:errcheck

			return fetch(cmd, cfg, remote, log, loc, output, zipPath, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination folder (default: last path segment, or the repo name)")
	cmd.Flags().StringVar(&zipPath, "zip", "", "Write a zip archive to this path instead of a folder")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

func fetch(cmd *cobra.Command, cfg *config.Config, remote download.Remote, log *slog.Logger,
	loc download.RepoLocation, output, zipPath string, out io.Writer,
) error {
	dest := output
	if zipPath != "" {
		tmp, err := os.MkdirTemp(cfg.Download.WorkDir, "dirpack-fetch-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp) //nolint:errcheck
		dest = tmp
	} else if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	bar := pb.New64(0).
		SetTemplate(progressTemplate).
		Set(pb.Bytes, true).
		Set("files", "0 files").
		SetWriter(out)
	bar.Start()
	var files int
	progress := func(_ string, n int64) {
		files++
		bar.Set("files", fmt.Sprintf("%d files", files))
		bar.Add64(n)
	}

	res := newFetcher(cfg, remote, log, progress).FetchTree(cmd.Context(), loc, dest)
	bar.Finish()

	if res.RootErr != nil {
		return fmt.Errorf("list %s: %w", loc.Path, res.RootErr)
	}
	if zipPath != "" && res.Files > 0 {
		if _, err := download.ZipDir(dest, zipPath); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		dest = zipPath
	}
	fmt.Fprintf(out, "[-] Wrote %d files (%d bytes) to %s\n", res.Files, res.Bytes, dest) //nolint:errcheck

	if !res.AllSucceeded() {
		for _, f := range res.Failures {
			fmt.Fprintf(out, "[!] %s (%s): %v\n", f.Path, f.Kind, f.Err) //nolint:errcheck
		}
		return fmt.Errorf("%d paths could not be fetched", len(res.Failures))
	}
	if res.Files == 0 {
		return fmt.Errorf("no files found under %s/%s/%s", loc.Owner, loc.Repo, loc.Path)
	}
	return nil
}

func defaultOutputDir(loc download.RepoLocation) string {
	if loc.Path == "" {
		return loc.Repo
	}
	return path.Base(loc.Path)
}
