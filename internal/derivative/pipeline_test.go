// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package derivative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/digitize/internal/toolchain"
	"github.com/pdiddy/digitize/pkg/types"
)

const testID = "UP001234_000005"

// fakeTools writes plausible outputs for every tool call and records them.
type fakeTools struct {
	missing  map[toolchain.Tool]bool
	failures map[string]error // call name -> error
	noOutput map[string]bool  // call name -> succeed without writing output
	calls    []string
	pdfPages []string // images passed to AssemblePDF
}

func newFakeTools() *fakeTools {
	return &fakeTools{
		missing:  map[toolchain.Tool]bool{},
		failures: map[string]error{},
		noOutput: map[string]bool{},
	}
}

func (f *fakeTools) Require(tools ...toolchain.Tool) error {
	var missing []string
	for _, t := range tools {
		if f.missing[t] {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: could not find %s", toolchain.ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

func (f *fakeTools) call(name, dst, content string) error {
	f.calls = append(f.calls, name)
	if err := f.failures[name]; err != nil {
		// Tools commonly leave truncated output behind on failure.
		_ = os.WriteFile(dst, []byte("partial"), 0o644)
		return err
	}
	if f.noOutput[name] {
		return nil
	}
	return os.WriteFile(dst, []byte(content), 0o644)
}

func (f *fakeTools) EncodeJP2(_ context.Context, src, dst string, _ types.JP2Options) error {
	return f.call("jp2", dst, "jp2:"+filepath.Base(src))
}

func (f *fakeTools) EncodeJPEG(_ context.Context, src, dst string, _ types.JPEGOptions) error {
	return f.call("jpg", dst, "jpg:"+filepath.Base(src))
}

func (f *fakeTools) AssemblePDF(_ context.Context, images []string, dst string) error {
	f.pdfPages = images
	return f.call("assemble", dst, strings.Repeat("page\n", len(images)))
}

func (f *fakeTools) CompressPDF(_ context.Context, src, dst string) error {
	return f.call("compress", dst, "compressed")
}

func (f *fakeTools) OCR(_ context.Context, src, dst string) error {
	return f.call("ocr", dst, "ocr")
}

func (f *fakeTools) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeInspector map[string]bool // basename -> has alpha

func (f fakeInspector) HasAlpha(path string) (bool, error) {
	return f[filepath.Base(path)], nil
}

// newItem lays out preservation scans 1..n and returns the item paths.
func newItem(t *testing.T, n int) Paths {
	t.Helper()
	root := t.TempDir()
	paths := Paths{
		Identifier:   testID,
		Preservation: filepath.Join(root, "preservation"),
		Access:       filepath.Join(root, "access"),
	}
	require.NoError(t, os.MkdirAll(paths.Preservation, 0o755))
	require.NoError(t, os.MkdirAll(paths.Access, 0o755))
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("%s_%03d.tif", testID, i)
		require.NoError(t, os.WriteFile(filepath.Join(paths.Preservation, name), []byte("tiff"), 0o644))
	}
	return paths
}

func jp2Config() types.PipelineConfig {
	return types.PipelineConfig{Kind: types.DerivativeJP2}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_ProducesDerivativesAndPDF(t *testing.T) {
	paths := newItem(t, 3)
	tools := newFakeTools()
	var progress [][2]int
	p := New(tools, fakeInspector{}, Options{Progress: func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}})

	res, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)

	assert.Equal(t, Complete, res.Stage)
	assert.Equal(t, OutcomeDone, res.Images)
	assert.Equal(t, OutcomeDone, res.PDF)
	assert.Equal(t, 3, res.Converted)
	assert.Equal(t, "created derivative images, PDF created", res.Summary())

	assert.Equal(t, []string{
		testID + "_001.jp2",
		testID + "_002.jp2",
		testID + "_003.jp2",
	}, listDir(t, paths.DerivativeDir(types.DerivativeJP2)))
	assert.Equal(t, []string{testID + "_001.pdf", "jp2"}, listDir(t, paths.Access))

	assert.Equal(t, []string{"jp2", "jp2", "jp2", "assemble", "compress", "ocr"}, tools.calls)
	require.Len(t, tools.pdfPages, 3)
	assert.Equal(t, testID+"_001.jp2", filepath.Base(tools.pdfPages[0]))
	assert.Equal(t, testID+"_003.jp2", filepath.Base(tools.pdfPages[2]))
	assert.Equal(t, [][2]int{{0, 3}, {1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestRun_Idempotent(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})

	_, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	before := listDir(t, paths.Access)
	tools.calls = nil

	res, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, Complete, res.Stage)
	assert.Empty(t, tools.calls)
	assert.Equal(t, before, listDir(t, paths.Access))
	assert.Equal(t, "an equal number of jp2s to tiffs already exist, PDF already exists", res.Summary())
}

func TestRun_JPG(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})

	res, err := p.Run(context.Background(), paths, types.PipelineConfig{Kind: types.DerivativeJPG})
	require.NoError(t, err)
	assert.Equal(t, Complete, res.Stage)
	assert.Equal(t, 2, tools.count("jpg"))
	assert.Zero(t, tools.count("jp2"))
	assert.Equal(t, []string{testID + "_001.jpg", testID + "_002.jpg"}, listDir(t, filepath.Join(paths.Access, "jpg")))
}

func TestRun_AlphaAbortsBeforeConversion(t *testing.T) {
	paths := newItem(t, 3)
	tools := newFakeTools()
	inspector := fakeInspector{testID + "_002.tif": true, testID + "_003.tif": true}
	p := New(tools, inspector, Options{})

	_, err := p.Run(context.Background(), paths, jp2Config())
	require.ErrorIs(t, err, ErrAlphaChannel)
	assert.Contains(t, err.Error(), testID+"_002.tif")
	assert.Contains(t, err.Error(), testID+"_003.tif")
	assert.NotContains(t, err.Error(), testID+"_001.tif")
	assert.Empty(t, tools.calls)
	assert.Empty(t, listDir(t, paths.Access))
}

func TestRun_TifAndTiffWithSameStemRejected(t *testing.T) {
	paths := newItem(t, 2)
	dup := filepath.Join(paths.Preservation, testID+"_001.tiff")
	require.NoError(t, os.WriteFile(dup, []byte("tiff"), 0o644))
	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})

	for run := 0; run < 2; run++ {
		_, err := p.Run(context.Background(), paths, jp2Config())
		require.ErrorIs(t, err, ErrDuplicateScan, "run %d", run)
		assert.Contains(t, err.Error(), testID+"_001.tif and "+testID+"_001.tiff")
	}
	assert.Empty(t, tools.calls)
	assert.Empty(t, listDir(t, paths.Access))
}

func TestRun_MissingToolFailsBeforeWork(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	tools.missing[toolchain.OCRmyPDF] = true
	p := New(tools, fakeInspector{}, Options{})

	_, err := p.Run(context.Background(), paths, jp2Config())
	require.ErrorIs(t, err, toolchain.ErrMissingDependency)
	assert.Contains(t, err.Error(), "ocrmypdf")
	assert.Empty(t, tools.calls)
	assert.Empty(t, listDir(t, paths.Access))
}

func TestRun_MissingToolForSkippedStageIsFine(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})
	_, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)

	tools.missing[toolchain.OCRmyPDF] = true
	tools.missing[toolchain.OpenJPEG] = true
	res, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	assert.True(t, res.Skipped())
}

func TestRun_PDFFailureLeavesNoPDF(t *testing.T) {
	for _, stage := range []string{"assemble", "compress", "ocr"} {
		t.Run(stage, func(t *testing.T) {
			paths := newItem(t, 2)
			tools := newFakeTools()
			tools.failures[stage] = fmt.Errorf("%w: boom", toolchain.ErrToolFailed)
			p := New(tools, fakeInspector{}, Options{})

			res, err := p.Run(context.Background(), paths, jp2Config())
			require.ErrorIs(t, err, toolchain.ErrToolFailed)
			assert.Equal(t, OutcomeDone, res.Images)
			assert.NotEqual(t, Complete, res.Stage)
			assert.Equal(t, []string{"jp2"}, listDir(t, paths.Access), "no final or working PDF should remain")

			// The next run keeps the images and retries the PDF.
			delete(tools.failures, stage)
			tools.calls = nil
			res, err = p.Run(context.Background(), paths, jp2Config())
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, res.Images)
			assert.Equal(t, OutcomeDone, res.PDF)
			assert.Equal(t, []string{"assemble", "compress", "ocr"}, tools.calls)
		})
	}
}

func TestRun_MissingOutputIsFailure(t *testing.T) {
	paths := newItem(t, 1)
	tools := newFakeTools()
	tools.noOutput["compress"] = true
	p := New(tools, fakeInspector{}, Options{})

	_, err := p.Run(context.Background(), paths, jp2Config())
	require.ErrorIs(t, err, ErrMissingOutput)
	assert.NoFileExists(t, paths.PDF())
}

func TestRun_EncoderFailureRemovesPartialDerivative(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	tools.failures["jp2"] = errors.New("corrupt input")
	p := New(tools, fakeInspector{}, Options{})

	res, err := p.Run(context.Background(), paths, jp2Config())
	require.Error(t, err)
	assert.Contains(t, err.Error(), testID+"_001.tif")
	assert.Equal(t, NotStarted, res.Stage)
	assert.Empty(t, listDir(t, paths.DerivativeDir(types.DerivativeJP2)))
	assert.Zero(t, tools.count("assemble"))
}

func TestRun_StaleWorkingFileIsReplaced(t *testing.T) {
	paths := newItem(t, 1)
	require.NoError(t, os.WriteFile(paths.workingPDF(), []byte("stale"), 0o644))
	p := New(newFakeTools(), fakeInspector{}, Options{})

	_, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	assert.NoFileExists(t, paths.workingPDF())
	assert.FileExists(t, paths.PDF())
}

func TestRun_PartialDerivativesConvertsOnlyMissing(t *testing.T) {
	paths := newItem(t, 3)
	dir := paths.DerivativeDir(types.DerivativeJP2)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, testID+"_002.jp2"), []byte("old"), 0o644))

	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})
	res, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Converted)
	assert.Equal(t, 2, tools.count("jp2"))

	old, err := os.ReadFile(filepath.Join(dir, testID+"_002.jp2"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestRun_CountOnlyCompleteness(t *testing.T) {
	paths := newItem(t, 2)
	dir := paths.DerivativeDir(types.DerivativeJP2)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Two derivatives with the wrong names still match the source count.
	for _, name := range []string{"other_001.jp2", "other_002.jp2"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})
	res, err := p.Run(context.Background(), paths, jp2Config())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Images)
	assert.Zero(t, tools.count("jp2"))

	strict := newItem(t, 2)
	sdir := strict.DerivativeDir(types.DerivativeJP2)
	require.NoError(t, os.MkdirAll(sdir, 0o755))
	for _, name := range []string{"other_001.jp2", "other_002.jp2"} {
		require.NoError(t, os.WriteFile(filepath.Join(sdir, name), []byte("x"), 0o644))
	}
	tools = newFakeTools()
	p = New(tools, fakeInspector{}, Options{})
	res, err = p.Run(context.Background(), strict, types.PipelineConfig{Kind: types.DerivativeJP2, Strict: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Images)
	assert.Equal(t, 2, tools.count("jp2"))
}

func TestRun_InputErrors(t *testing.T) {
	p := New(newFakeTools(), fakeInspector{}, Options{})

	_, err := p.Run(context.Background(), newItem(t, 0), jp2Config())
	require.ErrorIs(t, err, ErrNoSources)

	_, err = p.Run(context.Background(), newItem(t, 1), types.PipelineConfig{})
	require.ErrorIs(t, err, types.ErrConfig)
}

func TestInspect(t *testing.T) {
	paths := newItem(t, 2)
	tools := newFakeTools()
	p := New(tools, fakeInspector{}, Options{})
	cfg := jp2Config()

	stage, err := p.Inspect(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, NotStarted, stage)

	tools.failures["assemble"] = errors.New("boom")
	_, err = p.Run(context.Background(), paths, cfg)
	require.Error(t, err)
	stage, err = p.Inspect(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, ImagesConverted, stage)

	delete(tools.failures, "assemble")
	_, err = p.Run(context.Background(), paths, cfg)
	require.NoError(t, err)
	stage, err = p.Inspect(paths, cfg)
	require.NoError(t, err)
	assert.Equal(t, Complete, stage)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "not started", NotStarted.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
