// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/digitize/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and export the project metadata",
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the parsed metadata to YAML, JSON, or Parquet",
	Long: `Export parses the metadata CSV and writes the collection and its items
to a file. Parquet output has one row per item with the collection ID
repeated on each row.`,
	Args: cobra.NoArgs,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := catalog.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Project.MetadataPath == "" {
		return fmt.Errorf("no metadata CSV configured (set --metadata)")
	}
	cat, err := catalog.Load(cfg.Project.MetadataPath)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cat.CollectionID + "." + string(format)
	}
	if err := catalog.Export(cat, format, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(cat.Items), output)
	return nil
}

func init() {
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml, json, or parquet")
	catalogExportCmd.Flags().StringP("output", "o", "", "output file (default: <collection_id>.<format>)")

	catalogCmd.AddCommand(catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}
