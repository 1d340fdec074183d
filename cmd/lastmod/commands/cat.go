package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lastmodified/pkg/exporter"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat HASH",
	Short: "Print a commit, tree or blob",
	Long: `Reads the object from the configured history source: the git repository
in git mode, the mirror otherwise. Object ids of any type, full or
abbreviated, are looked up directly; anything else is resolved as a revision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		raw, _ := cmd.Flags().GetBool("raw")

		var exp *exporter.Exporter
		switch {
		case LM.Repo != nil:
			exp = exporter.NewExporter(LM.Repo)
		case LM.Store != nil:
			exp = exporter.NewExporter(exporter.FromStore(LM.Store))
		default:
			return fmt.Errorf("no object source: not inside a git repository and no mirror configured")
		}

		hash, err := resolveObject(ctx, args[0])
		if err != nil {
			return fmt.Errorf("invalid object argument %q: %w", args[0], err)
		}

		if raw {
			return exp.PrintRaw(ctx, hash, cmd.OutOrStdout())
		}
		return exp.PrintObject(ctx, hash, cmd.OutOrStdout())
	},
}

// resolveObject expands hex ids against the object database so trees and
// blobs are found, then falls back to revision syntax.
func resolveObject(ctx context.Context, arg string) (types.Hash, error) {
	if isHexID(arg) {
		var (
			h   types.Hash
			err error
		)
		switch {
		case LM.Repo != nil:
			h, err = LM.Repo.ExpandHash(ctx, types.HashPrefix(arg))
		case LM.Store != nil:
			h, err = LM.Store.ExpandHash(ctx, types.HashPrefix(arg))
		default:
			err = storage.ErrNotFound
		}
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	return LM.ResolveRevision(ctx, arg)
}

func isHexID(s string) bool {
	if len(s) < storage.MinPrefixLen || len(s) > types.HashLen {
		return false
	}
	return strings.Trim(strings.ToLower(s), "0123456789abcdef") == ""
}

func init() {
	catCmd.Flags().Bool("raw", false, "print the payload as stored")
	rootCmd.AddCommand(catCmd)
}
