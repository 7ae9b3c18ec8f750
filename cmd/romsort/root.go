package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "romsort",
		Short: "Verify ROM files against a DAT catalog and sort them by region",
		Long: `romsort checks every ROM image below a directory against a No-Intro style
DAT catalog, identifies it by MD5, verifies its size and CRC32, and renames
it into a folder for its region.

Examples:
  romsort organize ~/roms --dat nes.dat          # Sort into region folders
  romsort organize ~/roms --dat nes.dat -t       # Split regions into Batch_N folders
  romsort organize ~/roms --dat nes.dat --dry-run
  romsort organize ~/roms --dat nes.dat --watch  # Keep sorting as files arrive
  romsort catalog info nes.dat                   # Describe a catalog
  romsort history                                # View past runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: bootstrap,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/romsort/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
}

// errRunFailed marks a run that completed but could not read or move some
// files. The details have already been printed.
var errRunFailed = errors.New("some files could not be processed")

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil && !errors.Is(err, errRunFailed) {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return settings().GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return settings().GetBool("quiet")
}

// settings returns the viper instance loaded by bootstrap, or an empty one
// before bootstrap has run.
func settings() *viper.Viper {
	if appViper == nil {
		return viper.New()
	}
	return appViper
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
