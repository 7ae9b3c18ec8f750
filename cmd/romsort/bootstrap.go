package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/romsort/pkg/romsort/config"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	appViper  *viper.Viper
	appConfig *config.Config
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"dat":      "dat",
	"twilight": "twilight",
	"workers":  "workers",
	"exclude":  "exclude",
	"dry-run":  "dry_run",
	"output":   "output",
	"quiet":    "quiet",
	"verbose":  "verbose",
}

// bootstrap is the root PersistentPreRunE: it loads configuration, binds the
// running command's flags over it, and starts logging.
func bootstrap(cmd *cobra.Command, _ []string) error {
	v, cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}
	appViper, appConfig = v, cfg

	return initializeLogging(cfg, v.GetBool("verbose"))
}

// loadConfig reads file (or the default search path) and lets any flag set
// on cmd take precedence.
func loadConfig(cmd *cobra.Command, file string) (*viper.Viper, *config.Config, error) {
	v, err := config.New(file)
	if err != nil {
		return nil, nil, err
	}

	if cmd != nil {
		for flag, key := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, nil, fmt.Errorf("binding --%s: %w", flag, err)
				}
			}
		}
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// initializeLogging creates the state directories and starts the log file.
// Verbose runs also log to stderr.
func initializeLogging(cfg *config.Config, verbose bool) error {
	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return err
	}

	for _, dir := range []string{config.StateDir(), config.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if verbose {
		logCfg.ConsoleLevel = "debug"
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}
