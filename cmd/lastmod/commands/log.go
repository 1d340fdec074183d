package commands

import (
	"lastmodified/pkg/app"
	"lastmodified/pkg/exporter"
	"lastmodified/pkg/history"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log PATH",
	Short: "Show the commits that changed a file, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if LM.History == nil {
			return app.ErrNoHistory
		}
		limit, _ := cmd.Flags().GetInt("max-count")

		loc, err := LM.Settings.Annotation.Location()
		if err != nil {
			return err
		}
		start, err := LM.ResolveRevision(ctx, startRev(cmd))
		if err != nil {
			return err
		}

		commits, err := history.Log(ctx, LM.History, start, repoPath(args[0]), limit, history.WithPolicy(LM.Policy))
		// Print what was found before the error
		for _, c := range commits {
			exporter.PrintCommitLog(cmd.OutOrStdout(), c, loc)
		}
		return err
	},
}

func init() {
	logCmd.Flags().String("rev", "", "start revision (default: source.rev)")
	logCmd.Flags().IntP("max-count", "n", 0, "limit the number of commits (0 means all)")
	rootCmd.AddCommand(logCmd)
}
