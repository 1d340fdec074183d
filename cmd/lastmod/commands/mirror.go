package commands

import (
	"fmt"

	"lastmodified/pkg/gitrepo"
	"lastmodified/pkg/mirror"

	"github.com/spf13/cobra"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy commit and tree objects of the local repository into the configured store",
	Long: `Walks every commit reachable from source.rev and writes commits and trees
to the disk or S3 store, then points the mirror's HEAD at the start commit.
Objects already in the store are skipped, so repeated runs are incremental.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := LM.Settings
		if LM.Store == nil {
			return fmt.Errorf("mirror needs storage.type disk or s3, got %q", s.Storage.Type)
		}

		repo, err := gitrepo.Discover(s.Repo.Dir())
		if err != nil {
			return err
		}
		defer repo.Close()

		start, err := repo.ResolveRevision(s.Source.Rev)
		if err != nil {
			return err
		}

		st, err := mirror.New(repo, LM.Store).Run(ctx, start)
		if err != nil {
			return err
		}
		if err := LM.Refs.UpdateRef("HEAD", start); err != nil {
			return fmt.Errorf("update mirror HEAD: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "mirrored %s: %d commits, %d trees written, %d already present\n",
			start.Short(), st.Commits, st.Trees, st.Present)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}
