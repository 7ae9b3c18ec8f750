package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"github.com/jamesainslie/romsort/pkg/romsort/output"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect DAT catalogs",
}

var catalogInfoCmd = &cobra.Command{
	Use:   "info <dat>",
	Short: "Describe a DAT catalog",
	Long: `Parses a DAT catalog and prints its header, the number of games and ROM
entries it describes, and the regions files would be sorted into.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogInfo,
}

func init() {
	catalogInfoCmd.Flags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")

	catalogCmd.AddCommand(catalogInfoCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	info, err := describeCatalog(path, appConfig.Output)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(info)
	return err
}

// describeCatalog builds the index at path and renders it in format.
func describeCatalog(path, format string) ([]byte, error) {
	idx, err := catalog.Build(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := output.FormatCatalog(&buf, format, output.NewCatalogInfo(path, idx)); err != nil {
		return nil, fmt.Errorf("failed to format catalog: %w", err)
	}
	return buf.Bytes(), nil
}
