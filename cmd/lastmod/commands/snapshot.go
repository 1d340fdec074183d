package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"lastmodified/pkg/core"
	"lastmodified/pkg/refs"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/treebuilder"
	"lastmodified/pkg/types"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [DIR]",
	Short: "Record a source directory as a new commit in the mirror",
	Long: `For sources delivered without git history. Every file under DIR (default:
repo.path) becomes a commit on top of the mirror's HEAD, so later annotate
runs against the mirror date each page by the snapshot that changed it.
An unchanged tree records nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if LM.Store == nil || LM.Refs == nil {
			return fmt.Errorf("snapshot needs storage.type disk or s3, got %q", LM.Settings.Storage.Type)
		}

		root := LM.Root()
		dir := root
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			dir = abs
		}

		// 1. Files, keyed relative to the repository root
		files, err := treebuilder.ReadFiles(root, dir, ".git", ".lastmod")
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files under %s", dir)
		}

		b := treebuilder.NewBuilder(LM.Store)
		tree, err := b.Build(ctx, files)
		if err != nil {
			return err
		}

		// 2. Parent is the mirror's HEAD, if any
		var parents []types.Hash
		head, err := LM.Refs.GetHead()
		switch {
		case errors.Is(err, refs.ErrNoHead):
		case err != nil:
			return err
		default:
			prev, err := storage.ReadCommit(ctx, LM.Store, head)
			if err != nil {
				return err
			}
			if prev.TreeHash == tree {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing changed since %s\n", head.Short())
				return nil
			}
			parents = []types.Hash{head}
		}

		// 3. Commit and move HEAD
		name, _ := cmd.Flags().GetString("author")
		email, _ := cmd.Flags().GetString("email")
		msg, _ := cmd.Flags().GetString("message")
		sig := core.Signature{Name: name, Email: email, When: time.Now()}

		commit, err := b.Commit(ctx, tree, parents, sig, msg)
		if err != nil {
			return err
		}
		if err := LM.Refs.UpdateRef("HEAD", commit); err != nil {
			return err
		}

		LM.Logger.Info("snapshot recorded", "commit", commit, "files", len(files))
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s (%d files)\n", commit, len(files))
		return nil
	},
}

func init() {
	snapshotCmd.Flags().String("author", "lastmod", "author name of the snapshot commit")
	snapshotCmd.Flags().String("email", "lastmod@localhost", "author email of the snapshot commit")
	snapshotCmd.Flags().StringP("message", "m", "snapshot", "commit message")
	rootCmd.AddCommand(snapshotCmd)
}
