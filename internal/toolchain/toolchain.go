// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolchain detects and invokes the external tools the digitization
// pipeline delegates to: OpenJPEG, ImageMagick, img2pdf, Ghostscript,
// OCRmyPDF, and rsync.
//
// Detection happens once, at startup, through Detect. The resulting Toolchain
// is injected into the pipeline and item controllers, which never look tools
// up on PATH themselves.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pdiddy/digitize/pkg/types"
)

// ErrMissingDependency is returned when a required tool was not found at startup.
var ErrMissingDependency = errors.New("missing dependency")

// ErrToolFailed is returned when a tool exits unsuccessfully.
var ErrToolFailed = errors.New("external tool failed")

// Tool names an external tool.
type Tool string

const (
	OpenJPEG    Tool = "opj_compress"
	ImageMagick Tool = "magick"
	Img2PDF     Tool = "img2pdf"
	Ghostscript Tool = "gs"
	OCRmyPDF    Tool = "ocrmypdf"
	Rsync       Tool = "rsync"
)

// requirement describes how to find a tool and what it is for.
type requirement struct {
	tool        Tool
	candidates  []string // binary names tried in order when no override is set
	override    string
	description string
}

func requirements(cfg types.ToolsConfig) []requirement {
	return []requirement{
		{OpenJPEG, []string{"opj_compress"}, cfg.OpenJPEG, "JP2 derivative encoder"},
		{ImageMagick, []string{"magick", "convert"}, cfg.ImageMagick, "JPG derivative encoder"},
		{Img2PDF, []string{"img2pdf"}, cfg.Img2PDF, "PDF assembly from derivative images"},
		{Ghostscript, []string{"gs"}, cfg.Ghostscript, "PDF compression"},
		{OCRmyPDF, []string{"ocrmypdf"}, cfg.OCRmyPDF, "PDF text layer"},
		{Rsync, []string{"rsync"}, cfg.Rsync, "remote copy"},
	}
}

// Status reports the availability of one tool.
type Status struct {
	Tool        Tool   `json:"tool" yaml:"tool"`
	Command     string `json:"command" yaml:"command"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Description string `json:"description" yaml:"description"`
	Available   bool   `json:"available" yaml:"available"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

var defaultExec = &osExecutor{}

// Toolchain holds the resolved path of every detected tool.
type Toolchain struct {
	exec     executor
	paths    map[Tool]string
	statuses []Status
}

// Detect resolves every tool once. Missing tools are recorded, not fatal;
// callers use Require to fail when a tool they need is absent.
func Detect(cfg types.ToolsConfig) *Toolchain {
	return detect(cfg, defaultExec)
}

func detect(cfg types.ToolsConfig, exec executor) *Toolchain {
	tc := &Toolchain{exec: exec, paths: make(map[Tool]string)}
	for _, req := range requirements(cfg) {
		tc.statuses = append(tc.statuses, tc.resolve(req))
	}
	return tc
}

func (tc *Toolchain) resolve(req requirement) Status {
	status := Status{Tool: req.tool, Description: req.description}

	candidates := req.candidates
	if override := strings.TrimSpace(req.override); override != "" {
		candidates = []string{override}
	}
	status.Command = candidates[0]

	for _, c := range candidates {
		path, err := tc.exec.LookPath(c)
		if err != nil {
			continue
		}
		status.Command = c
		status.Path = path
		status.Available = true
		tc.paths[req.tool] = path
		return status
	}

	status.Detail = fmt.Sprintf("binary %q not found", strings.Join(candidates, `" or "`))
	return status
}

// Statuses returns the availability of every known tool, in a fixed order.
func (tc *Toolchain) Statuses() []Status {
	out := make([]Status, len(tc.statuses))
	copy(out, tc.statuses)
	return out
}

// Available reports whether tool was found.
func (tc *Toolchain) Available(tool Tool) bool {
	_, ok := tc.paths[tool]
	return ok
}

// Require returns ErrMissingDependency naming every tool in tools that was
// not found at startup.
func (tc *Toolchain) Require(tools ...Tool) error {
	var missing []string
	for _, t := range tools {
		if !tc.Available(t) {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: could not find %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// EncodeJP2 converts src to a JP2 at dst with OpenJPEG.
func (tc *Toolchain) EncodeJP2(ctx context.Context, src, dst string, opts types.JP2Options) error {
	return tc.run(ctx, OpenJPEG, jp2Args(src, dst, opts))
}

// EncodeJPEG converts src to a JPG at dst with ImageMagick. The embedded
// color profile is kept and any transparency is flattened to RGB.
func (tc *Toolchain) EncodeJPEG(ctx context.Context, src, dst string, opts types.JPEGOptions) error {
	return tc.run(ctx, ImageMagick, jpegArgs(src, dst, opts))
}

// AssemblePDF concatenates images, in the given order, into a PDF at dst.
func (tc *Toolchain) AssemblePDF(ctx context.Context, images []string, dst string) error {
	args := make([]string, 0, len(images)+2)
	args = append(args, images...)
	args = append(args, "-o", dst)
	return tc.run(ctx, Img2PDF, args)
}

// CompressPDF re-encodes src at screen quality into dst.
func (tc *Toolchain) CompressPDF(ctx context.Context, src, dst string) error {
	return tc.run(ctx, Ghostscript, []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/screen",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + dst,
		src,
	})
}

// OCR adds a text layer to src, writing dst. src and dst may be the same path.
func (tc *Toolchain) OCR(ctx context.Context, src, dst string) error {
	return tc.run(ctx, OCRmyPDF, []string{src, dst, "--optimize", "0", "--quiet"})
}

// Sync copies the directory src into dstDir, preserving timestamps. Files
// that exist only in dstDir are left alone.
func (tc *Toolchain) Sync(ctx context.Context, src, dstDir string) error {
	return tc.run(ctx, Rsync, []string{"-t", "-q", "-r", src, dstDir})
}

func (tc *Toolchain) run(ctx context.Context, tool Tool, args []string) error {
	path, ok := tc.paths[tool]
	if !ok {
		return fmt.Errorf("%w: could not find %s", ErrMissingDependency, tool)
	}

	var stderr bytes.Buffer
	if err := tc.exec.Run(ctx, path, args, io.Discard, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s: %v: %s", ErrToolFailed, tool, err, msg)
		}
		return fmt.Errorf("%w: %s: %v", ErrToolFailed, tool, err)
	}
	return nil
}

func jp2Args(src, dst string, opts types.JP2Options) []string {
	args := []string{
		"-i", src,
		"-o", dst,
		"-r", opts.CompressionRatio,
		"-c", opts.Precincts,
		"-b", opts.CodeBlock,
		"-p", opts.Progression,
		"-n", fmt.Sprint(opts.Resolutions),
	}
	if opts.SOP {
		args = append(args, "-SOP")
	}
	return args
}

func jpegArgs(src, dst string, opts types.JPEGOptions) []string {
	return []string{
		src,
		"-background", "white",
		"-alpha", "remove",
		"-alpha", "off",
		"-quality", fmt.Sprint(opts.Quality),
		dst,
	}
}
