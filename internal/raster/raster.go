// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package raster inspects preservation TIFFs without decoding pixel data.
// Only the file header and the first image file directory are read. The
// derivative pipeline uses it to refuse sources that carry an alpha channel
// before any conversion starts.
package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/tiff"
)

// TIFF tag IDs read from the first image file directory.
const (
	tagPhotometric     = 262
	tagSamplesPerPixel = 277
	tagExtraSamples    = 338
)

// ExtraSamples values from the TIFF 6.0 specification.
const (
	extraUnspecified       = 0
	extraAssociatedAlpha   = 1
	extraUnassociatedAlpha = 2
)

// Photometric interpretations and the number of color samples each carries.
var baseSamples = map[int]int{
	0: 1, // WhiteIsZero
	1: 1, // BlackIsZero
	2: 3, // RGB
	3: 1, // Palette
	5: 4, // CMYK
	6: 3, // YCbCr
	8: 3, // CIELab
}

var errNotTIFF = errors.New("not a TIFF file")

// Info describes the color layout of the first image in a TIFF.
type Info struct {
	Path            string
	Photometric     int
	SamplesPerPixel int
	ExtraSamples    []int
}

// HasAlpha reports whether any extra sample is associated or unassociated
// alpha. Without an ExtraSamples tag, a sample beyond the color samples of
// the photometric interpretation is taken as alpha, as RGBA and LA readers do.
func (i Info) HasAlpha() bool {
	for _, s := range i.ExtraSamples {
		if s == extraAssociatedAlpha || s == extraUnassociatedAlpha {
			return true
		}
	}
	if len(i.ExtraSamples) > 0 {
		return false
	}
	base, ok := baseSamples[i.Photometric]
	return ok && i.SamplesPerPixel > base
}

// Inspect reads the TIFF header and first image directory of the file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dir, err := firstDir(f)
	if err != nil {
		return Info{}, fmt.Errorf("reading TIFF header of %s: %w", path, err)
	}

	info := Info{Path: path, SamplesPerPixel: 1}
	for _, tag := range dir.Tags {
		switch tag.Id {
		case tagPhotometric:
			if v, err := tag.Int(0); err == nil {
				info.Photometric = v
			}
		case tagSamplesPerPixel:
			if v, err := tag.Int(0); err == nil {
				info.SamplesPerPixel = v
			}
		case tagExtraSamples:
			for i := 0; i < int(tag.Count); i++ {
				v, err := tag.Int(i)
				if err != nil {
					return Info{}, fmt.Errorf("reading ExtraSamples of %s: %w", path, err)
				}
				info.ExtraSamples = append(info.ExtraSamples, v)
			}
		}
	}
	return info, nil
}

// firstDir decodes the first image file directory in place, reading tag
// values with ReadAt instead of loading the whole file.
func firstDir(f *os.File) (*tiff.Dir, error) {
	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, errNotTIFF
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, errNotTIFF
	}

	offset := order.Uint32(header[4:8])
	if offset == 0 {
		return nil, errors.New("no image directories")
	}
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	dir, _, err := tiff.DecodeDir(f, order)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// Inspector satisfies the derivative pipeline's alpha check using TIFF headers.
type Inspector struct{}

// HasAlpha reports whether the TIFF at path carries an alpha channel.
func (Inspector) HasAlpha(path string) (bool, error) {
	info, err := Inspect(path)
	if err != nil {
		return false, err
	}
	return info.HasAlpha(), nil
}
