// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// DerivativeKind identifies the access derivative format. The set is closed:
// DerivativeJP2 and DerivativeJPG are the only valid values.
type DerivativeKind int

const (
	derivativeUnknown DerivativeKind = iota
	DerivativeJP2
	DerivativeJPG
)

// ParseDerivativeKind maps "jp2" or "jpg" to a DerivativeKind. Anything else
// is a configuration error.
func ParseDerivativeKind(s string) (DerivativeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jp2":
		return DerivativeJP2, nil
	case "jpg":
		return DerivativeJPG, nil
	default:
		return derivativeUnknown, fmt.Errorf("%w: unsupported derivative type: %s", ErrConfig, s)
	}
}

// Valid reports whether k is one of the supported kinds.
func (k DerivativeKind) Valid() bool {
	return k == DerivativeJP2 || k == DerivativeJPG
}

// String returns the config tag, which is also the subdirectory name under access/.
func (k DerivativeKind) String() string {
	switch k {
	case DerivativeJP2:
		return "jp2"
	case DerivativeJPG:
		return "jpg"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Ext returns the file extension, including the dot.
func (k DerivativeKind) Ext() string {
	return "." + k.String()
}

// MarshalText implements encoding.TextMarshaler.
func (k DerivativeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: unsupported derivative type: %s", ErrConfig, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DerivativeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseDerivativeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// JP2Options are the OpenJPEG encoder parameters for JP2 derivatives.
type JP2Options struct {
	// CompressionRatio is the rate passed to -r.
	CompressionRatio string
	// Precincts lists precinct sizes per resolution level (-c).
	Precincts string
	// CodeBlock is the code-block size (-b).
	CodeBlock string
	// Progression is the progression order (-p).
	Progression string
	// Resolutions is the number of resolution levels (-n).
	Resolutions int
	// SOP enables start-of-packet markers.
	SOP bool
}

// JPEGOptions are the ImageMagick encoder parameters for JPG derivatives.
type JPEGOptions struct {
	// Quality is the JPEG quality, 1-100.
	Quality int
}

// DefaultJP2Options and DefaultJPEGOptions are the fixed parameters used for
// access derivatives.
var (
	DefaultJP2Options = JP2Options{
		CompressionRatio: "2.4",
		Precincts:        "[256,256],[256,256],[128,128]",
		CodeBlock:        "64,64",
		Progression:      "RPCL",
		Resolutions:      7,
		SOP:              true,
	}
	DefaultJPEGOptions = JPEGOptions{Quality: 92}
)
