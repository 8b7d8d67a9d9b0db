// Package config loads the loader's settings.
//
// Settings are layered, later layers winning:
//  1. built-in defaults
//  2. an optional YAML file ($ETL_CONFIG, else ./etl.yaml when present)
//  3. ETL_-prefixed environment variables: ETL_<SECTION>_<KEY>, for example
//     ETL_DATABASE_DSN or ETL_LOAD_STAGE_SONGPLAYS
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"sparkify/internal/logging"
	"sparkify/internal/schema"
)

const (
	// PathEnvVar overrides the config file location.
	PathEnvVar = "ETL_CONFIG"
	// DefaultPath is read when present and PathEnvVar is unset.
	DefaultPath = "etl.yaml"

	envPrefix = "ETL_"
)

// Metrics backends.
const (
	MetricsNone        = "none"
	MetricsDatadog     = "datadog"
	MetricsPushgateway = "pushgateway"
)

// Config is the full loader configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Data     DataConfig     `koanf:"data"`
	Load     LoadConfig     `koanf:"load"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// DatabaseConfig selects the warehouse backend.
type DatabaseConfig struct {
	// Kind is postgres, sqlite or mssql.
	Kind string `koanf:"kind"`
	DSN  string `koanf:"dsn"`
}

// DataConfig locates the input trees.
type DataConfig struct {
	SongPath string `koanf:"song_path"`
	LogPath  string `koanf:"log_path"`
	// Pattern is matched against file base names.
	Pattern string `koanf:"pattern"`
}

// LoadConfig tunes how rows are loaded.
type LoadConfig struct {
	// StageSongplays routes songplays through temp_songplays so re-runs are
	// idempotent. When false they are copied directly into songplays.
	StageSongplays bool `koanf:"stage_songplays"`
	// Timezone is the IANA zone used for the time table breakdown.
	Timezone string `koanf:"timezone"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig selects and configures the metrics backend.
type MetricsConfig struct {
	Backend        string        `koanf:"backend"`
	Job            string        `koanf:"job"`
	PushgatewayURL string        `koanf:"pushgateway_url"`
	Tags           []string      `koanf:"tags"`
	FlushEvery     time.Duration `koanf:"flush_every"`
}

// Default returns the built-in configuration: a local Postgres warehouse
// and the data/ trees of the working directory.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Kind: schema.Postgres,
			DSN:  "host=127.0.0.1 dbname=sparkifydb user=student password=student",
		},
		Data: DataConfig{
			SongPath: "data/song_data",
			LogPath:  "data/log_data",
			Pattern:  "*.json",
		},
		Load: LoadConfig{
			StageSongplays: true,
			Timezone:       "UTC",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Backend:    MetricsNone,
			Job:        "sparkify_etl",
			FlushEvery: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file; an empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps ETL_SECTION_SOME_KEY to section.some_key. Variables
// without a section (ETL_CONFIG) are skipped.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || section == "" || rest == "" {
		return ""
	}
	return section + "." + rest
}

// sliceKeys are list settings that arrive from the environment as
// comma-separated strings.
var sliceKeys = []string{"metrics.tags"}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0, strings.Count(s, ",")+1)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	return nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(PathEnvVar)); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Kind {
	case schema.Postgres, schema.SQLite, schema.MSSQL:
	default:
		errs = append(errs, fmt.Errorf("database.kind: unsupported %q (want %s, %s or %s)",
			c.Database.Kind, schema.Postgres, schema.SQLite, schema.MSSQL))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}

	if c.Data.SongPath == "" {
		errs = append(errs, errors.New("data.song_path: required"))
	}
	if c.Data.LogPath == "" {
		errs = append(errs, errors.New("data.log_path: required"))
	}
	if c.Data.Pattern == "" {
		errs = append(errs, errors.New("data.pattern: required"))
	} else if _, err := filepath.Match(c.Data.Pattern, ""); err != nil {
		errs = append(errs, fmt.Errorf("data.pattern: %w", err))
	}

	if _, err := time.LoadLocation(c.Load.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("load.timezone: %w", err))
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q (want json or console)", c.Log.Format))
	}

	switch c.Metrics.Backend {
	case MetricsNone, "":
	case MetricsDatadog:
	case MetricsPushgateway:
		if c.Metrics.PushgatewayURL == "" {
			errs = append(errs, errors.New("metrics.pushgateway_url: required for the pushgateway backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("metrics.backend: unsupported %q", c.Metrics.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Load.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Logging converts the log section for logging.Init.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Caller = c.Log.Caller
	return cfg
}
