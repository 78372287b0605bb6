// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package derivative produces access derivatives for one item: derivative
// images converted from the preservation TIFFs, and a single compressed,
// OCR'd PDF assembled from those images.
//
// Every stage is idempotent. Image conversion is skipped when the
// derivatives are already complete, and the PDF stages are skipped when the
// final PDF exists. The PDF is built on a hidden working file that is only
// renamed into place after OCR succeeds, so an interrupted run never leaves
// a final PDF behind.
package derivative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/digitize/internal/naming"
	"github.com/pdiddy/digitize/internal/toolchain"
	"github.com/pdiddy/digitize/pkg/types"
)

// Input validation errors.
var (
	ErrNoSources     = errors.New("no TIFF files found")
	ErrNoDerivatives = errors.New("no derivative images found")
	ErrAlphaChannel  = errors.New("source images have an alpha channel")
	ErrMissingOutput = errors.New("expected output was not produced")
	ErrDuplicateScan = errors.New("scans share a derivative name")
)

// Stage is the position of an item in the derivative state machine.
type Stage int

const (
	NotStarted Stage = iota
	ImagesConverted
	PdfAssembled
	PdfCompressed
	PdfOcred
	Complete
)

func (s Stage) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case ImagesConverted:
		return "images converted"
	case PdfAssembled:
		return "pdf assembled"
	case PdfCompressed:
		return "pdf compressed"
	case PdfOcred:
		return "pdf ocr'd"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Toolchain is the subset of external tools the pipeline drives.
type Toolchain interface {
	Require(tools ...toolchain.Tool) error
	EncodeJP2(ctx context.Context, src, dst string, opts types.JP2Options) error
	EncodeJPEG(ctx context.Context, src, dst string, opts types.JPEGOptions) error
	AssemblePDF(ctx context.Context, images []string, dst string) error
	CompressPDF(ctx context.Context, src, dst string) error
	OCR(ctx context.Context, src, dst string) error
}

// AlphaInspector reports whether a source raster carries an alpha channel.
type AlphaInspector interface {
	HasAlpha(path string) (bool, error)
}

// ProgressFunc is called with the number of images converted so far.
type ProgressFunc func(done, total int)

// Options holds optional pipeline collaborators.
type Options struct {
	Logger   *slog.Logger
	Progress ProgressFunc
}

// Pipeline runs the derivative stages for one item at a time.
type Pipeline struct {
	tools     Toolchain
	inspector AlphaInspector
	logger    *slog.Logger
	progress  ProgressFunc
}

// New creates a pipeline. A nil logger discards log output.
func New(tools Toolchain, inspector AlphaInspector, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		tools:     tools,
		inspector: inspector,
		logger:    logger,
		progress:  opts.Progress,
	}
}

// Paths locates one item's preservation and access directories.
type Paths struct {
	Identifier   string
	Preservation string
	Access       string
}

// DerivativeDir returns access/<kind>.
func (p Paths) DerivativeDir(kind types.DerivativeKind) string {
	return filepath.Join(p.Access, kind.String())
}

// PDF returns the path of the final PDF, access/<identifier>_001.pdf.
func (p Paths) PDF() string {
	return filepath.Join(p.Access, p.Identifier+"_001.pdf")
}

func (p Paths) workingPDF() string {
	return filepath.Join(p.Access, "."+p.Identifier+"_001.partial.pdf")
}

func (p Paths) compressedPDF() string {
	return filepath.Join(p.Access, "."+p.Identifier+"_001.compressed.pdf")
}

// Outcome records whether a stage group did work.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
)

// Result describes one Run.
type Result struct {
	Stage     Stage   `json:"stage" yaml:"stage"`
	Kind      string  `json:"derivative" yaml:"derivative"`
	Images    Outcome `json:"images" yaml:"images"`
	Converted int     `json:"converted" yaml:"converted"`
	PDF       Outcome `json:"pdf" yaml:"pdf"`
	PDFPath   string  `json:"pdf_path" yaml:"pdf_path"`
}

// Skipped reports whether the run found everything already done.
func (r Result) Skipped() bool {
	return r.Images == OutcomeSkipped && r.PDF == OutcomeSkipped
}

// Summary is a one-line description of what the run did.
func (r Result) Summary() string {
	images := "created derivative images"
	if r.Images == OutcomeSkipped {
		images = fmt.Sprintf("an equal number of %ss to tiffs already exist", r.Kind)
	}
	pdf := "PDF created"
	if r.PDF == OutcomeSkipped {
		pdf = "PDF already exists"
	}
	return images + ", " + pdf
}

// conversion is one source TIFF and the derivative it produces.
type conversion struct {
	src string
	dst string
}

// Run brings the item at paths to Complete. It fails before touching the
// filesystem when a tool needed by a pending stage is missing, or when any
// source TIFF has an alpha channel and images still need converting.
func (p *Pipeline) Run(ctx context.Context, paths Paths, cfg types.PipelineConfig) (Result, error) {
	res := Result{Stage: NotStarted, Kind: cfg.Kind.String(), PDFPath: paths.PDF()}
	if err := cfg.Validate(); err != nil {
		return res, err
	}

	sources, err := sourceFiles(paths.Preservation)
	if err != nil {
		return res, err
	}
	if len(sources) == 0 {
		return res, fmt.Errorf("creating derivative images: %w for %s", ErrNoSources, paths.Identifier)
	}
	if err := checkDuplicates(sources, cfg.Kind); err != nil {
		return res, err
	}

	derivDir := paths.DerivativeDir(cfg.Kind)
	pending, err := pendingConversions(sources, derivDir, cfg)
	if err != nil {
		return res, err
	}
	pdfDone := fileExists(paths.PDF())

	if err := p.tools.Require(requiredTools(cfg.Kind, len(pending) > 0, !pdfDone)...); err != nil {
		return res, err
	}

	log := p.logger.With("item", paths.Identifier, "derivative", cfg.Kind.String())

	if len(pending) == 0 {
		res.Images = OutcomeSkipped
		log.Info("derivative images already exist", "count", len(sources))
	} else {
		if err := p.checkAlpha(sources); err != nil {
			return res, err
		}
		if err := os.MkdirAll(derivDir, 0o755); err != nil {
			return res, fmt.Errorf("creating derivative directory: %w", err)
		}
		n, err := p.convert(ctx, pending, cfg)
		res.Converted = n
		if err != nil {
			return res, err
		}
		res.Images = OutcomeDone
		log.Info("created derivative images", "converted", n, "total", len(sources))
	}
	res.Stage = ImagesConverted

	if pdfDone {
		res.PDF = OutcomeSkipped
		res.Stage = Complete
		log.Info("PDF already exists", "path", paths.PDF())
		return res, nil
	}

	images, err := ListDerivatives(derivDir, cfg.Kind)
	if err != nil {
		return res, err
	}
	if len(images) == 0 {
		return res, fmt.Errorf("creating PDF: %w for %s", ErrNoDerivatives, paths.Identifier)
	}

	res.Stage, err = p.buildPDF(ctx, images, paths, log)
	if err != nil {
		return res, err
	}
	res.PDF = OutcomeDone
	return res, nil
}

// Inspect reports the stage Run would start from, without running anything.
func (p *Pipeline) Inspect(paths Paths, cfg types.PipelineConfig) (Stage, error) {
	if err := cfg.Validate(); err != nil {
		return NotStarted, err
	}
	sources, err := sourceFiles(paths.Preservation)
	if err != nil || len(sources) == 0 {
		return NotStarted, err
	}
	pending, err := pendingConversions(sources, paths.DerivativeDir(cfg.Kind), cfg)
	if err != nil {
		return NotStarted, err
	}
	switch {
	case len(pending) > 0:
		return NotStarted, nil
	case !fileExists(paths.PDF()):
		return ImagesConverted, nil
	default:
		return Complete, nil
	}
}

func requiredTools(kind types.DerivativeKind, convert, pdf bool) []toolchain.Tool {
	var tools []toolchain.Tool
	if convert {
		switch kind {
		case types.DerivativeJP2:
			tools = append(tools, toolchain.OpenJPEG)
		case types.DerivativeJPG:
			tools = append(tools, toolchain.ImageMagick)
		}
	}
	if pdf {
		tools = append(tools, toolchain.Img2PDF, toolchain.Ghostscript, toolchain.OCRmyPDF)
	}
	return tools
}

// checkAlpha inspects every source and names all offenders.
func (p *Pipeline) checkAlpha(sources []string) error {
	var offending []string
	for _, src := range sources {
		alpha, err := p.inspector.HasAlpha(src)
		if err != nil {
			return fmt.Errorf("checking %s for alpha channel: %w", filepath.Base(src), err)
		}
		if alpha {
			offending = append(offending, filepath.Base(src))
		}
	}
	if len(offending) > 0 {
		return fmt.Errorf("%w; remove the alpha channel from: %s", ErrAlphaChannel, strings.Join(offending, ", "))
	}
	return nil
}

func (p *Pipeline) convert(ctx context.Context, pending []conversion, cfg types.PipelineConfig) (int, error) {
	total := len(pending)
	p.reportProgress(0, total)
	for i, c := range pending {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		var err error
		switch cfg.Kind {
		case types.DerivativeJP2:
			err = p.tools.EncodeJP2(ctx, c.src, c.dst, types.DefaultJP2Options)
		case types.DerivativeJPG:
			err = p.tools.EncodeJPEG(ctx, c.src, c.dst, types.DefaultJPEGOptions)
		}
		if err == nil && !fileExists(c.dst) {
			err = fmt.Errorf("%w: %s", ErrMissingOutput, filepath.Base(c.dst))
		}
		if err != nil {
			// A partial derivative would count as done on the next run.
			_ = os.Remove(c.dst)
			return i, fmt.Errorf("converting %s: %w", filepath.Base(c.src), err)
		}

		p.logger.Debug("converted image", "source", c.src, "derivative", c.dst)
		p.reportProgress(i+1, total)
	}
	return total, nil
}

func (p *Pipeline) reportProgress(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}

// buildPDF assembles, compresses, and OCRs images into the final PDF. All
// three stages work on a hidden file that replaces the final path last.
func (p *Pipeline) buildPDF(ctx context.Context, images []string, paths Paths, log *slog.Logger) (stage Stage, err error) {
	work := paths.workingPDF()
	compressed := paths.compressedPDF()
	cleanup := func() {
		_ = os.Remove(work)
		_ = os.Remove(compressed)
	}
	cleanup()
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	stage = ImagesConverted

	if err := p.tools.AssemblePDF(ctx, images, work); err != nil {
		return stage, fmt.Errorf("assembling PDF: %w", err)
	}
	before, err := fileSize(work)
	if err != nil {
		return stage, fmt.Errorf("assembling PDF: %w", err)
	}
	stage = PdfAssembled

	if err := p.tools.CompressPDF(ctx, work, compressed); err != nil {
		return stage, fmt.Errorf("compressing PDF: %w", err)
	}
	after, err := fileSize(compressed)
	if err != nil {
		return stage, fmt.Errorf("compressing PDF: %w", err)
	}
	if err := os.Remove(work); err != nil {
		return stage, fmt.Errorf("replacing PDF with compressed copy: %w", err)
	}
	if err := os.Rename(compressed, work); err != nil {
		return stage, fmt.Errorf("replacing PDF with compressed copy: %w", err)
	}
	stage = PdfCompressed
	log.Info("compressed PDF", "before", humanize.Bytes(uint64(before)), "after", humanize.Bytes(uint64(after)))

	if err := p.tools.OCR(ctx, work, work); err != nil {
		return stage, fmt.Errorf("running OCR on PDF: %w", err)
	}
	if !fileExists(work) {
		return stage, fmt.Errorf("running OCR on PDF: %w: %s", ErrMissingOutput, filepath.Base(work))
	}
	stage = PdfOcred

	if err := os.Rename(work, paths.PDF()); err != nil {
		return stage, fmt.Errorf("moving PDF into place: %w", err)
	}
	log.Info("PDF created", "path", paths.PDF(), "pages", len(images))
	return Complete, nil
}

// pendingConversions lists the sources whose derivative still needs making.
// Outside strict mode, matching counts are taken as complete without
// comparing names.
func pendingConversions(sources []string, derivDir string, cfg types.PipelineConfig) ([]conversion, error) {
	existing, err := ListDerivatives(derivDir, cfg.Kind)
	if err != nil {
		return nil, err
	}
	if !cfg.Strict && len(existing) == len(sources) {
		return nil, nil
	}

	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[filepath.Base(e)] = true
	}

	var pending []conversion
	for _, src := range sources {
		name := derivedName(src, cfg.Kind)
		if have[name] {
			continue
		}
		pending = append(pending, conversion{src: src, dst: filepath.Join(derivDir, name)})
	}
	return pending, nil
}

// checkDuplicates fails when two sources, such as x_001.tif and x_001.tiff,
// would write the same derivative.
func checkDuplicates(sources []string, kind types.DerivativeKind) error {
	seen := make(map[string]string, len(sources))
	var clashes []string
	for _, src := range sources {
		name := derivedName(src, kind)
		if first, ok := seen[name]; ok {
			clashes = append(clashes, fmt.Sprintf("%s and %s", filepath.Base(first), filepath.Base(src)))
			continue
		}
		seen[name] = src
	}
	if len(clashes) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateScan, strings.Join(clashes, ", "))
	}
	return nil
}

func derivedName(src string, kind types.DerivativeKind) string {
	return strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + kind.Ext()
}

func sourceFiles(dir string) ([]string, error) {
	names, err := naming.TIFFNames(dir)
	if err != nil {
		return nil, fmt.Errorf("listing preservation scans: %w", err)
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// ListDerivatives returns the sorted derivative paths in dir. A missing
// directory has no derivatives.
func ListDerivatives(dir string, kind types.DerivativeKind) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing derivatives: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), kind.Ext()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrMissingOutput, filepath.Base(path))
		}
		return 0, err
	}
	return info.Size(), nil
}
