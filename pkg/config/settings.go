package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Settings struct {
	Repo       RepoSettings       `mapstructure:"repo"`
	Source     SourceSettings     `mapstructure:"source"`
	Storage    StorageSettings    `mapstructure:"storage"`
	Cache      CacheSettings      `mapstructure:"cache"`
	Resolver   ResolverSettings   `mapstructure:"resolver"`
	Processor  ProcessorSettings  `mapstructure:"processor"`
	Annotation AnnotationSettings `mapstructure:"annotation"`
	Ledger     LedgerSettings     `mapstructure:"ledger"`
	Server     ServerSettings     `mapstructure:"server"`
	Log        LogSettings        `mapstructure:"log"`
}

type RepoSettings struct {
	Path string `mapstructure:"path"`
}

// Dir is where repository discovery starts. An empty path means the
// working directory.
func (r RepoSettings) Dir() string {
	if r.Path == "" {
		return "."
	}
	return r.Path
}

type SourceSettings struct {
	Rev           string   `mapstructure:"rev"`
	StripSegments []string `mapstructure:"strip_segments"`
}

type StorageSettings struct {
	Type string     `mapstructure:"type"` // git, disk or s3
	Path string     `mapstructure:"path"` // disk objects directory, or git dir with refs
	S3   S3Settings `mapstructure:"s3"`
}

type S3Settings struct {
	Endpoint  string `mapstructure:"endpoint"` // with scheme, e.g. http://localhost:9000
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type CacheSettings struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ResolverSettings struct {
	Policy string `mapstructure:"policy"`
}

type ProcessorSettings struct {
	Workers int `mapstructure:"workers"`
}

type AnnotationSettings struct {
	Locale      string `mapstructure:"locale"`
	Label       string `mapstructure:"label"`
	AuthorLabel string `mapstructure:"author_label"`
	DateFormat  string `mapstructure:"date_format"`
	Timezone    string `mapstructure:"timezone"`
}

type LedgerSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Get decodes the current viper state.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.Processor.Workers < 1 {
		s.Processor.Workers = 1
	}
	return &s, nil
}

// Location returns the display time zone for annotations.
func (a AnnotationSettings) Location() (*time.Location, error) {
	switch a.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("annotation.timezone: %w", err)
	}
	return loc, nil
}
