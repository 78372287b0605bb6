// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/digitize/pkg/types"
)

// Format is a catalog export format.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Formats lists the supported export formats.
func Formats() []Format {
	return []Format{FormatYAML, FormatJSON, FormatParquet}
}

// ParseFormat maps a format name, case-insensitively, to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported export format %q", types.ErrConfig, s)
}

// Row is one item flattened with its collection, as written to Parquet.
type Row struct {
	CollectionID string `json:"collection_id" parquet:"collection_id"`
	Identifier   string `json:"item_identifier" parquet:"item_identifier"`
	Title        string `json:"title" parquet:"title"`
	Dates        string `json:"dates" parquet:"dates"`
	Box          string `json:"box" parquet:"box"`
	Folder       string `json:"folder" parquet:"folder,optional"`
	URI          string `json:"uri" parquet:"uri"`
}

// Rows flattens cat into one Row per item, in catalog order.
func Rows(cat *types.Catalog) []Row {
	rows := make([]Row, len(cat.Items))
	for i, it := range cat.Items {
		rows[i] = Row{
			CollectionID: cat.CollectionID,
			Identifier:   it.Identifier,
			Title:        it.Title,
			Dates:        it.Dates,
			Box:          it.Box,
			Folder:       it.Folder,
			URI:          it.URI,
		}
	}
	return rows
}

// Export writes cat to path in the given format.
func Export(cat *types.Catalog, format Format, path string) error {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(cat)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return os.WriteFile(path, data, 0o644)

	case FormatJSON:
		data, err := json.MarshalIndent(cat, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return os.WriteFile(path, append(data, '\n'), 0o644)

	case FormatParquet:
		if err := parquet.WriteFile(path, Rows(cat)); err != nil {
			return fmt.Errorf("writing parquet: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unsupported export format %q", types.ErrConfig, format)
	}
}
