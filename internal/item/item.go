// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package item drives the per-item operations of a digitization project:
// renaming preservation scans, generating access derivatives, copying the
// item to remote storage, and checking that an item is complete.
package item

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/digitize/internal/derivative"
	"github.com/pdiddy/digitize/internal/naming"
	"github.com/pdiddy/digitize/pkg/types"
)

// Subdirectory names inside an item directory.
const (
	PreservationDir = "preservation"
	AccessDir       = "access"
)

// Generator produces access derivatives for an item.
type Generator interface {
	Run(ctx context.Context, paths derivative.Paths, cfg types.PipelineConfig) (derivative.Result, error)
	Inspect(paths derivative.Paths, cfg types.PipelineConfig) (derivative.Stage, error)
}

// Syncer copies a directory into a destination directory.
type Syncer interface {
	Sync(ctx context.Context, src, dstDir string) error
}

// PageCounter reports the number of pages in a PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Deps are the collaborators an Item delegates to. Any may be nil when the
// caller never uses the operations that need it.
type Deps struct {
	Generator Generator
	Syncer    Syncer
	Pages     PageCounter
}

// Item is the controller for one item directory.
type Item struct {
	identifier    string
	collectionDir string
	dir           string
	remoteDir     string
	deps          Deps
}

// New binds an Item to <collectionDir>/<identifier>. remoteDir is the
// collection's remote mirror directory, or empty when there is none.
func New(collectionDir, identifier, remoteDir string, deps Deps) *Item {
	return &Item{
		identifier:    identifier,
		collectionDir: collectionDir,
		dir:           filepath.Join(collectionDir, identifier),
		remoteDir:     remoteDir,
		deps:          deps,
	}
}

func (it *Item) Identifier() string      { return it.identifier }
func (it *Item) Dir() string             { return it.dir }
func (it *Item) PreservationDir() string { return filepath.Join(it.dir, PreservationDir) }
func (it *Item) AccessDir() string       { return filepath.Join(it.dir, AccessDir) }
func (it *Item) RemoteDir() string       { return it.remoteDir }

// DerivativeDir returns access/<kind>.
func (it *Item) DerivativeDir(kind types.DerivativeKind) string {
	return it.Paths().DerivativeDir(kind)
}

// PDFPath returns access/<identifier>_001.pdf.
func (it *Item) PDFPath() string {
	return it.Paths().PDF()
}

// Paths returns the locations the derivative pipeline works on.
func (it *Item) Paths() derivative.Paths {
	return derivative.Paths{
		Identifier:   it.identifier,
		Preservation: it.PreservationDir(),
		Access:       it.AccessDir(),
	}
}

// Exists reports whether the item directory is present.
func (it *Item) Exists() bool {
	return isDir(it.dir)
}

// RenamePreservationScans applies the naming convention to the preservation
// scans. A batch that is already correctly named is reported, not rejected.
func (it *Item) RenamePreservationScans() (naming.Result, error) {
	return naming.RenameDir(it.PreservationDir(), it.identifier)
}

// GenerateDerivatives runs the derivative pipeline for the item.
func (it *Item) GenerateDerivatives(ctx context.Context, cfg types.PipelineConfig) (derivative.Result, error) {
	if err := cfg.Validate(); err != nil {
		return derivative.Result{}, err
	}
	if !it.Exists() {
		return derivative.Result{}, fmt.Errorf("%w: item directory not found: %s", types.ErrConfig, it.dir)
	}
	if it.deps.Generator == nil {
		return derivative.Result{}, errors.New("generating derivatives: no derivative generator configured")
	}
	return it.deps.Generator.Run(ctx, it.Paths(), cfg)
}

// CopyToRemote mirrors the item directory into the remote directory,
// creating it when needed. Files present only on the remote side are kept.
func (it *Item) CopyToRemote(ctx context.Context) (string, error) {
	if it.remoteDir == "" {
		return "", fmt.Errorf("%w: cannot copy files: no remote scans dir defined", types.ErrConfig)
	}
	if !it.Exists() {
		return "", fmt.Errorf("%w: item directory not found: %s", types.ErrConfig, it.dir)
	}
	if it.deps.Syncer == nil {
		return "", errors.New("copying to remote: no syncer configured")
	}
	if err := os.MkdirAll(it.remoteDir, 0o755); err != nil {
		return "", fmt.Errorf("creating remote directory: %w", err)
	}
	if err := it.deps.Syncer.Sync(ctx, it.dir, it.remoteDir); err != nil {
		return "", fmt.Errorf("copying %s to remote: %w", it.identifier, err)
	}
	return "copied to " + it.remoteDir, nil
}

// Status is a filesystem snapshot of an item.
type Status struct {
	Identifier  string           `json:"item_identifier" yaml:"item_identifier"`
	Exists      bool             `json:"exists" yaml:"exists"`
	Scans       int              `json:"scans" yaml:"scans"`
	Derivatives int              `json:"derivatives" yaml:"derivatives"`
	PDF         bool             `json:"pdf" yaml:"pdf"`
	Stage       derivative.Stage `json:"-" yaml:"-"`
	StageName   string           `json:"stage" yaml:"stage"`
}

// Status counts scans and derivatives and reports the pipeline stage.
func (it *Item) Status(cfg types.PipelineConfig) (Status, error) {
	st := Status{Identifier: it.identifier, Stage: derivative.NotStarted}
	if err := cfg.Validate(); err != nil {
		return st, err
	}
	st.StageName = st.Stage.String()
	if !it.Exists() {
		return st, nil
	}
	st.Exists = true

	var err error
	if st.Scans, err = it.scanCount(); err != nil {
		return st, err
	}
	derivs, err := derivative.ListDerivatives(it.DerivativeDir(cfg.Kind), cfg.Kind)
	if err != nil {
		return st, err
	}
	st.Derivatives = len(derivs)
	st.PDF = isFile(it.PDFPath())

	if it.deps.Generator != nil && st.Scans > 0 {
		if st.Stage, err = it.deps.Generator.Inspect(it.Paths(), cfg); err != nil {
			return st, err
		}
		st.StageName = st.Stage.String()
	}
	return st, nil
}

// Completeness is the outcome of CheckComplete.
type Completeness struct {
	Identifier  string   `json:"item_identifier" yaml:"item_identifier"`
	Complete    bool     `json:"complete" yaml:"complete"`
	Scans       int      `json:"scans" yaml:"scans"`
	Derivatives int      `json:"derivatives" yaml:"derivatives"`
	Pages       int      `json:"pages" yaml:"pages"`
	Problems    []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// CheckComplete verifies that every scan has a derivative and that the PDF
// exists with one page per scan.
func (it *Item) CheckComplete(cfg types.PipelineConfig) (Completeness, error) {
	c := Completeness{Identifier: it.identifier}
	if err := cfg.Validate(); err != nil {
		return c, err
	}
	if !it.Exists() {
		return c, fmt.Errorf("%w: item directory not found: %s", types.ErrConfig, it.dir)
	}

	var err error
	if c.Scans, err = it.scanCount(); err != nil {
		return c, err
	}
	derivs, err := derivative.ListDerivatives(it.DerivativeDir(cfg.Kind), cfg.Kind)
	if err != nil {
		return c, err
	}
	c.Derivatives = len(derivs)

	if c.Scans == 0 {
		c.Problems = append(c.Problems, "no preservation scans")
	}
	if c.Derivatives != c.Scans {
		c.Problems = append(c.Problems, fmt.Sprintf("%d %ss for %d scans", c.Derivatives, cfg.Kind, c.Scans))
	}

	pdf := it.PDFPath()
	switch {
	case !isFile(pdf):
		c.Problems = append(c.Problems, "PDF missing")
	case it.deps.Pages == nil:
		return c, errors.New("checking PDF: no page counter configured")
	default:
		if c.Pages, err = it.deps.Pages.PageCount(pdf); err != nil {
			c.Problems = append(c.Problems, fmt.Sprintf("PDF unreadable: %v", err))
		} else if c.Pages != c.Scans {
			c.Problems = append(c.Problems, fmt.Sprintf("PDF has %d pages for %d scans", c.Pages, c.Scans))
		}
	}

	c.Complete = len(c.Problems) == 0
	return c, nil
}

func (it *Item) scanCount() (int, error) {
	if !isDir(it.PreservationDir()) {
		return 0, nil
	}
	names, err := naming.TIFFNames(it.PreservationDir())
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
