package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ROMSORT_TWILIGHT=true.
const EnvPrefix = "ROMSORT"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// CacheConfig configures the digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HistoryConfig configures per-run manifests.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	DAT      string        `mapstructure:"dat"`
	Twilight bool          `mapstructure:"twilight"`
	Workers  int           `mapstructure:"workers"`
	Exclude  []string      `mapstructure:"exclude"`
	DryRun   bool          `mapstructure:"dry_run"`
	Output   string        `mapstructure:"output"`
	Cache    CacheConfig   `mapstructure:"cache"`
	History  HistoryConfig `mapstructure:"history"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// New returns a viper instance with romsort's defaults, search paths and
// environment binding. When file is set it is read instead of searching.
// A missing config file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dat", "")
	v.SetDefault("twilight", false)
	v.SetDefault("workers", 0) // 0 means one per CPU, capped
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("dry_run", false)
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath())

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use logging.DefaultLogPath
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponents)
}

// Decode unmarshals v into a Config and expands ~ in paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.DAT, &cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Load loads configuration from the default config file and environment.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/romsort/config.yaml
//   - $HOME/.config/romsort/config.yaml
func Load() (*Config, error) {
	v, err := New("")
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// LoggingConfig converts the logging section into a logging.Config.
func (c *Config) LoggingConfig() (logging.Config, error) {
	rotation := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		rotation.MaxSize = int64(size)
	}

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rotation,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "romsort"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "romsort"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file and returns its path.
// An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# romsort configuration

# Catalog (DAT) file used when --dat is not given
dat: ""

# Split region folders into Batch_N folders of 200 files
twilight: false

# Files digested in parallel (0 = one per CPU, at most 8)
workers: 0

# Patterns skipped while walking (base name, full path or directory)
exclude:
  - .git
  - .romsort
  - "*.part"

# Plan moves without performing them
dry_run: false

# Output format: pretty, plain, json, yaml
output: %s

# Digest cache, keyed by path, size and modification time
cache:
  enabled: true
  path: %s

# Per-run history manifests
history:
  enabled: true
  path: %s
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/romsort/romsort.log)
  path: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    organize: info
    digest: warn
    relocate: info
    watcher: info
`, DefaultOutput, DefaultCachePath(), DefaultHistoryPath(), DefaultRetentionDays, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/romsort/ for logs, history and locks.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "romsort")
}

// CacheDir returns $XDG_CACHE_HOME/romsort/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "romsort")
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// DefaultHistoryPath returns the default run history directory.
func DefaultHistoryPath() string {
	return filepath.Join(StateDir(), "history")
}
