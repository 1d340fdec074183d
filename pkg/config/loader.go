package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load initialises viper: defaults, config file, LASTMOD_* environment.
// cfgFile is optional; without it config.yaml is searched in ".",
// ".lastmod" and "$HOME/.lastmod".
func Load(cfgFile string) error {
	// 1. Defaults
	setDefaults()

	// 2. Search paths
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(".lastmod")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".lastmod"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. Environment, e.g. LASTMOD_STORAGE_TYPE for storage.type
	viper.SetEnvPrefix("LASTMOD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. File
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	} else {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// Repository
	// repo.path stays empty: annotate then looks next to the DocFX sources
	viper.SetDefault("source.rev", "HEAD")
	viper.SetDefault("source.strip_segments", []string{"_work/"})

	// History source: the repository itself, or a mirror
	viper.SetDefault("storage.type", "git")
	viper.SetDefault("storage.path", filepath.Join(".lastmod", "objects"))
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("cache.ttl", "24h")

	viper.SetDefault("resolver.policy", "first-stop")
	viper.SetDefault("processor.workers", 1)

	viper.SetDefault("annotation.locale", "de")
	viper.SetDefault("annotation.timezone", "Local")

	viper.SetDefault("ledger.enabled", false)
	viper.SetDefault("ledger.driver", "sqlite")
	viper.SetDefault("ledger.dsn", "file:"+filepath.Join(".lastmod", "ledger.db"))

	viper.SetDefault("server.addr", ":8080")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
