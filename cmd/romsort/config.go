package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/jamesainslie/romsort/pkg/romsort/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage romsort configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/romsort/config.yaml (if set)
  2. ~/.config/romsort/config.yaml

Environment variables can override config file settings using the ROMSORT_ prefix:
  ROMSORT_DAT=~/dats/nes.dat
  ROMSORT_TWILIGHT=true
  ROMSORT_CACHE_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// envOverrides lists the environment variables config show reports.
var envOverrides = []string{
	"dat",
	"twilight",
	"workers",
	"exclude",
	"dry_run",
	"output",
	"cache.enabled",
	"cache.path",
	"history.enabled",
	"history.path",
	"history.retention_days",
	"logging.level",
	"logging.path",
}

func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configFile := settings().ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	writeConfig(os.Stdout, appConfig)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	anyOverrides := false
	for _, key := range envOverrides {
		name := envName(key)
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

func writeConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "----------------------")
	fmt.Fprintf(w, "dat:                     %s\n", cfg.DAT)
	fmt.Fprintf(w, "twilight:                %t\n", cfg.Twilight)
	fmt.Fprintf(w, "workers:                 %d\n", cfg.Workers)
	fmt.Fprintf(w, "exclude:                 %v\n", cfg.Exclude)
	fmt.Fprintf(w, "dry_run:                 %t\n", cfg.DryRun)
	fmt.Fprintf(w, "output:                  %s\n", cfg.Output)
	fmt.Fprintf(w, "cache.enabled:           %t\n", cfg.Cache.Enabled)
	fmt.Fprintf(w, "cache.path:              %s\n", cfg.Cache.Path)
	fmt.Fprintf(w, "history.enabled:         %t\n", cfg.History.Enabled)
	fmt.Fprintf(w, "history.path:            %s\n", cfg.History.Path)
	fmt.Fprintf(w, "history.retention_days:  %d\n", cfg.History.RetentionDays)
	fmt.Fprintf(w, "logging.level:           %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "logging.path:            %s\n", cfg.Logging.Path)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'romsort config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
