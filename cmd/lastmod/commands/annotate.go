package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"lastmodified/pkg/annotate"
	"lastmodified/pkg/ignore"
	"lastmodified/pkg/manifest"
	"lastmodified/pkg/processor"

	"github.com/spf13/cobra"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Add the last modified line to every conceptual page of a DocFX build",
	Long: `Reads manifest.json, finds the commit that last changed each conceptual
source file and writes its date and author into the generated pages.
Files without history get their file modification time instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := LM.Settings

		manifestPath, _ := cmd.Flags().GetString("manifest")
		outputDir, _ := cmd.Flags().GetString("output")
		if outputDir == "" {
			outputDir = filepath.Dir(manifestPath)
		}

		m, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}

		// 1. Page writer
		loc, err := s.Annotation.Location()
		if err != nil {
			return err
		}
		writer := annotate.NewWriter(annotate.Options{
			Locale:      s.Annotation.Locale,
			Label:       s.Annotation.Label,
			AuthorLabel: s.Annotation.AuthorLabel,
			DateLayout:  s.Annotation.DateFormat,
			Location:    loc,
		})

		// 2. Ignore rules and the repository live next to the sources
		ignoreDir := ignoreRoot(m, s.Source.StripSegments)
		LM.AdoptSourceRepository(ignoreDir)
		matcher, err := ignore.NewMatcher(ignoreDir)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Join(ignoreDir, ignore.FileName), err)
		}

		opts := processor.Options{
			Writer:  writer,
			Ignore:  matcher,
			Workers: s.Processor.Workers,
			Policy:  LM.Policy,
			Strip:   s.Source.StripSegments,
			Logger:  LM.Logger,
			Root:    LM.Root(),
		}
		if LM.Ledger != nil {
			opts.Ledger = LM.Ledger
		}

		// 3. Start commit, once for the whole run
		if LM.History != nil {
			start, err := LM.ResolveRevision(ctx, s.Source.Rev)
			if err != nil {
				LM.Logger.Warn("cannot resolve start revision, dates will come from the filesystem",
					"rev", s.Source.Rev, "error", err)
			} else {
				opts.Accessor = LM.History
				opts.Start = start
			}
		}

		sum, err := processor.New(opts).Process(ctx, m, outputDir)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d pages could not be annotated\n", sum.Failed, sum.Total)
		}
		return nil
	},
}

// ignoreRoot is the local source directory when it exists, else the
// working directory.
func ignoreRoot(m *manifest.Manifest, strip []string) string {
	dir := filepath.FromSlash(manifest.SourcePath(m.SourceBasePath, "", strip))
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return dir
	}
	return "."
}

func init() {
	annotateCmd.Flags().String("manifest", "_site/manifest.json", "DocFX manifest.json")
	annotateCmd.Flags().String("output", "", "DocFX output directory (default: directory of the manifest)")
	annotateCmd.Flags().Int("workers", 0, "pages processed in parallel")
	mustBind("processor.workers", annotateCmd.Flags().Lookup("workers"))

	rootCmd.AddCommand(annotateCmd)
}
