package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"lastmodified/pkg/app"
	"lastmodified/pkg/client"
	"lastmodified/pkg/exporter"
	"lastmodified/pkg/gitrepo"
	"lastmodified/pkg/history"
	"lastmodified/pkg/types"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Show the commit that last changed a file",
	Long: `PATH is a file in the working tree or a slash separated path inside the
repository. With --remote the question goes to a running "lastmod serve".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rev := startRev(cmd)
		remote, _ := cmd.Flags().GetString("remote")

		loc, err := LM.Settings.Annotation.Location()
		if err != nil {
			return err
		}

		var c *history.Commit
		if remote != "" {
			c, err = resolveRemote(ctx, remote, repoPath(args[0]), rev)
		} else {
			c, err = resolveLocal(ctx, repoPath(args[0]), rev)
		}
		if err != nil {
			return err
		}

		exporter.PrintCommitLog(cmd.OutOrStdout(), c, loc)
		return nil
	},
}

func resolveLocal(ctx context.Context, path types.RepoPath, rev string) (*history.Commit, error) {
	if LM.History == nil {
		return nil, app.ErrNoHistory
	}
	start, err := LM.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, err
	}
	return history.Resolve(ctx, LM.History, start, path, history.WithPolicy(LM.Policy))
}

func resolveRemote(ctx context.Context, addr string, path types.RepoPath, rev string) (*history.Commit, error) {
	cli, err := client.NewClient(addr)
	if err != nil {
		return nil, err
	}
	defer cli.Close()
	return cli.Resolve(ctx, string(path), rev)
}

// repoPath maps an existing working tree file to its repository path.
// Anything else is taken as a repository path already.
func repoPath(arg string) types.RepoPath {
	if root := LM.Root(); root != "" {
		if abs, err := filepath.Abs(arg); err == nil {
			if _, err := os.Stat(abs); err == nil {
				rel, err := gitrepo.RelativePath(root, filepath.ToSlash(abs))
				if err == nil {
					return rel
				}
				if !errors.Is(err, gitrepo.ErrOutsideRepository) {
					LM.Logger.Debug("path not mapped", "path", arg, "error", err)
				}
			}
		}
	}
	return types.RepoPath(arg).Clean()
}

func init() {
	resolveCmd.Flags().String("rev", "", "start revision (default: source.rev)")
	resolveCmd.Flags().String("remote", "", "address of a lastmod server, e.g. localhost:8080")
	rootCmd.AddCommand(resolveCmd)
}

// startRev falls back to source.rev when the flag is empty.
func startRev(cmd *cobra.Command) string {
	if rev, _ := cmd.Flags().GetString("rev"); rev != "" {
		return rev
	}
	return LM.Settings.Source.Rev
}
