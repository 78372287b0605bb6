// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrConfig marks configuration errors: missing base or remote directories,
// unsupported derivative types, unknown items. Callers wrap it with detail.
var ErrConfig = errors.New("configuration error")

// ProjectConfig holds the collection-level paths for a digitization project.
type ProjectConfig struct {
	// BaseDir is the output directory that holds one subdirectory per collection.
	BaseDir string `json:"base_dir" yaml:"base_dir" mapstructure:"base_dir"`

	// MetadataPath is the CSV file describing the catalogued items.
	MetadataPath string `json:"metadata" yaml:"metadata" mapstructure:"metadata"`

	// RemoteRoot is an optional directory that receives per-collection mirrors.
	// When set it must already exist.
	RemoteRoot string `json:"remote_root,omitempty" yaml:"remote_root,omitempty" mapstructure:"remote_root"`
}

// ToolsConfig overrides the commands used for external tools. Empty values
// fall back to resolving the default binary name on PATH.
type ToolsConfig struct {
	OpenJPEG    string `json:"opj_compress,omitempty" yaml:"opj_compress,omitempty" mapstructure:"opj_compress"`
	ImageMagick string `json:"magick,omitempty" yaml:"magick,omitempty" mapstructure:"magick"`
	Img2PDF     string `json:"img2pdf,omitempty" yaml:"img2pdf,omitempty" mapstructure:"img2pdf"`
	Ghostscript string `json:"gs,omitempty" yaml:"gs,omitempty" mapstructure:"gs"`
	OCRmyPDF    string `json:"ocrmypdf,omitempty" yaml:"ocrmypdf,omitempty" mapstructure:"ocrmypdf"`
	Rsync       string `json:"rsync,omitempty" yaml:"rsync,omitempty" mapstructure:"rsync"`
}

// PipelineConfig is the immutable configuration threaded through every
// derivative pipeline call.
type PipelineConfig struct {
	// Kind selects the access derivative format.
	Kind DerivativeKind `json:"derivative" yaml:"derivative"`

	// Strict compares derivatives to sources by derived filename instead of
	// by count when deciding whether image conversion is complete.
	Strict bool `json:"strict_derivatives" yaml:"strict_derivatives"`
}

// Validate reports an ErrConfig when the pipeline configuration cannot be used.
func (c PipelineConfig) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unsupported derivative type: %s", ErrConfig, c.Kind)
	}
	return nil
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups everything read from the config file, environment, and flags.
type Config struct {
	Project  ProjectConfig  `json:"project" yaml:"project"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Tools    ToolsConfig    `json:"tools" yaml:"tools"`
	Log      LogConfig      `json:"log" yaml:"log"`
}
