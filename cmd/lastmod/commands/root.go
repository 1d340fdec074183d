package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"lastmodified/pkg/app"
	"lastmodified/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// LM is the application shared by all subcommands.
	LM *app.App
)

var rootCmd = &cobra.Command{
	Use:   "lastmod",
	Short: "Stamp DocFX pages with the commit that last changed their source",
	// Runs before every subcommand
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Get()
		if err != nil {
			return err
		}
		app.NewLogger(cmd.ErrOrStderr(), s.Log)

		LM, err = app.NewApp(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("failed to initialize lastmod: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the command line and releases the application afterwards,
// also when the command failed.
func Execute() (err error) {
	defer func() {
		if LM != nil {
			err = errors.Join(err, LM.Close())
			LM = nil
		}
	}()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	// 1. Global --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, .lastmod/ or $HOME/.lastmod/)")

	// 2. Flags that override config keys
	flags := []struct {
		name, key, usage string
	}{
		{"repo", "repo.path", "path inside the git repository (default: next to the DocFX sources, else .)"},
		{"storage-type", "storage.type", "history source: git, disk or s3"},
		{"storage-path", "storage.path", "objects directory of the disk mirror"},
		{"policy", "resolver.policy", "merge policy: first-stop or earliest-stop"},
		{"log-level", "log.level", "debug, info, warn or error"},
	}
	for _, f := range flags {
		rootCmd.PersistentFlags().String(f.name, "", f.usage)
		mustBind(f.key, rootCmd.PersistentFlags().Lookup(f.name))
	}
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
