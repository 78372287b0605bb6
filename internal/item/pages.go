// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package item

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzPageCounter counts PDF pages with MuPDF.
type FitzPageCounter struct{}

// PageCount opens the PDF at path and returns its number of pages.
func (FitzPageCounter) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
