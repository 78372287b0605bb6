// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads the project metadata CSV that lists the items of a
// collection, and exports the parsed catalog to other formats.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdiddy/digitize/pkg/types"
)

// ErrInvalid is returned for metadata that cannot describe a project.
var ErrInvalid = errors.New("invalid metadata")

// Column names in the metadata CSV.
const (
	colComponentID  = "component_id"
	colCollectionID = "collection_id"
	colTitle        = "title"
	colBox          = "box"
	colFolder       = "folder"
	colURI          = "uri"
	datePrefix      = "date"
)

var requiredColumns = []string{colComponentID, colTitle, colBox, colURI}

// Load parses the metadata CSV at path.
func Load(path string) (*types.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	defer f.Close()

	cat, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("loading metadata %s: %w", path, err)
	}
	return cat, nil
}

// ParseCSV reads a metadata CSV. The header must include component_id,
// title, box, and uri; folder, collection_id, and any number of date*
// columns are optional. Non-empty date columns are joined with ", " in
// header order.
//
// The collection ID comes from the first row's collection_id, or from the
// first row's component_id up to its first underscore.
func ParseCSV(r io.Reader) (*types.Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols.index[name]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrInvalid, name)
		}
	}

	cat := &types.Catalog{}
	seen := make(map[string]int)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		it := cols.item(record)
		if it.Identifier == "" {
			return nil, fmt.Errorf("%w: line %d: empty %s", ErrInvalid, line, colComponentID)
		}
		if !isPathSafe(it.Identifier) {
			return nil, fmt.Errorf("%w: line %d: %s %q is not a plain directory name", ErrInvalid, line, colComponentID, it.Identifier)
		}
		if prev, dup := seen[it.Identifier]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate %s %q (first on line %d)", ErrInvalid, line, colComponentID, it.Identifier, prev)
		}
		seen[it.Identifier] = line

		if cat.CollectionID == "" {
			cat.CollectionID = cols.get(record, colCollectionID)
			if cat.CollectionID == "" {
				cat.CollectionID, _, _ = strings.Cut(it.Identifier, "_")
			}
			if !isPathSafe(cat.CollectionID) {
				return nil, fmt.Errorf("%w: line %d: %s %q is not a plain directory name", ErrInvalid, line, colCollectionID, cat.CollectionID)
			}
		}
		cat.Items = append(cat.Items, it)
	}

	if len(cat.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalid)
	}
	return cat, nil
}

// isPathSafe reports whether id can be used as a single directory name.
func isPathSafe(id string) bool {
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..") && id != "."
}

// columns maps header names to record positions.
type columns struct {
	index map[string]int
	dates []int
}

func indexColumns(header []string) columns {
	c := columns{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := c.index[h]; !dup {
			c.index[h] = i
		}
		if strings.HasPrefix(h, datePrefix) {
			c.dates = append(c.dates, i)
		}
	}
	return c
}

// get returns the named field, or "" when the column is absent or the
// record is short.
func (c columns) get(record []string, name string) string {
	i, ok := c.index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) item(record []string) types.ItemMetadata {
	var dates []string
	for _, i := range c.dates {
		if i < len(record) {
			if d := strings.TrimSpace(record[i]); d != "" {
				dates = append(dates, d)
			}
		}
	}
	return types.ItemMetadata{
		Identifier: c.get(record, colComponentID),
		Title:      c.get(record, colTitle),
		Dates:      strings.Join(dates, ", "),
		Box:        c.get(record, colBox),
		Folder:     c.get(record, colFolder),
		URI:        c.get(record, colURI),
	}
}
