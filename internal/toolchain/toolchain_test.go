// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/digitize/pkg/types"
)

// mockExecutor records command lines and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	failures      map[Tool]string // tool basename -> stderr to emit with a failure
	calls         []string        // "path arg1 arg2" per Run
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(_ context.Context, name string, args []string, _, stderr io.Writer) error {
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	base := Tool(strings.TrimPrefix(name, "/usr/bin/"))
	if msg, ok := m.failures[base]; ok {
		fmt.Fprintln(stderr, msg)
		return errors.New("exit status 1")
	}
	return nil
}

func allBins() map[string]bool {
	return map[string]bool{
		"opj_compress": true,
		"magick":       true,
		"img2pdf":      true,
		"gs":           true,
		"ocrmypdf":     true,
		"rsync":        true,
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		bins        map[string]bool
		cfg         types.ToolsConfig
		tool        Tool
		wantPath    string
		wantMissing bool
	}{
		{
			name:     "magick preferred",
			bins:     map[string]bool{"magick": true, "convert": true},
			tool:     ImageMagick,
			wantPath: "/usr/bin/magick",
		},
		{
			name:     "convert fallback",
			bins:     map[string]bool{"convert": true},
			tool:     ImageMagick,
			wantPath: "/usr/bin/convert",
		},
		{
			name:     "override replaces default name",
			bins:     map[string]bool{"opj_compress2": true, "opj_compress": true},
			cfg:      types.ToolsConfig{OpenJPEG: "opj_compress2"},
			tool:     OpenJPEG,
			wantPath: "/usr/bin/opj_compress2",
		},
		{
			name:        "override that is missing does not fall back",
			bins:        map[string]bool{"ocrmypdf": true},
			cfg:         types.ToolsConfig{OCRmyPDF: "/opt/ocrmypdf"},
			tool:        OCRmyPDF,
			wantMissing: true,
		},
		{
			name:        "missing tool",
			bins:        map[string]bool{},
			tool:        Rsync,
			wantMissing: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := detect(tt.cfg, &mockExecutor{availableBins: tt.bins})

			var got Status
			for _, s := range tc.Statuses() {
				if s.Tool == tt.tool {
					got = s
				}
			}
			if tt.wantMissing {
				assert.False(t, got.Available)
				assert.NotEmpty(t, got.Detail)
				assert.False(t, tc.Available(tt.tool))
				return
			}
			assert.True(t, got.Available)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Empty(t, got.Detail)
		})
	}
}

func TestStatusesCoverEveryTool(t *testing.T) {
	tc := detect(types.ToolsConfig{}, &mockExecutor{availableBins: allBins()})
	statuses := tc.Statuses()
	require.Len(t, statuses, 6)
	for _, s := range statuses {
		assert.True(t, s.Available, "%s should be available", s.Tool)
		assert.NotEmpty(t, s.Description)
	}
}

func TestRequire(t *testing.T) {
	tc := detect(types.ToolsConfig{}, &mockExecutor{availableBins: map[string]bool{"img2pdf": true, "gs": true}})

	require.NoError(t, tc.Require(Img2PDF, Ghostscript))
	require.NoError(t, tc.Require())

	err := tc.Require(Img2PDF, OCRmyPDF, Rsync)
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "ocrmypdf")
	assert.Contains(t, err.Error(), "rsync")
	assert.NotContains(t, err.Error(), "img2pdf")
}

func TestCommandLines(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		run  func(tc *Toolchain) error
		want string
	}{
		{
			name: "jp2",
			run: func(tc *Toolchain) error {
				return tc.EncodeJP2(ctx, "/p/a_001.tif", "/d/a_001.jp2", types.DefaultJP2Options)
			},
			want: "/usr/bin/opj_compress -i /p/a_001.tif -o /d/a_001.jp2 -r 2.4 -c [256,256],[256,256],[128,128] -b 64,64 -p RPCL -n 7 -SOP",
		},
		{
			name: "jpeg",
			run: func(tc *Toolchain) error {
				return tc.EncodeJPEG(ctx, "/p/a_001.tif", "/d/a_001.jpg", types.DefaultJPEGOptions)
			},
			want: "/usr/bin/magick /p/a_001.tif -background white -alpha remove -alpha off -quality 92 /d/a_001.jpg",
		},
		{
			name: "assemble",
			run: func(tc *Toolchain) error {
				return tc.AssemblePDF(ctx, []string{"/d/a_001.jp2", "/d/a_002.jp2"}, "/a/out.pdf")
			},
			want: "/usr/bin/img2pdf /d/a_001.jp2 /d/a_002.jp2 -o /a/out.pdf",
		},
		{
			name: "compress",
			run: func(tc *Toolchain) error {
				return tc.CompressPDF(ctx, "/a/in.pdf", "/a/out.pdf")
			},
			want: "/usr/bin/gs -sDEVICE=pdfwrite -dCompatibilityLevel=1.4 -dPDFSETTINGS=/screen -dNOPAUSE -dQUIET -dBATCH -sOutputFile=/a/out.pdf /a/in.pdf",
		},
		{
			name: "ocr",
			run: func(tc *Toolchain) error {
				return tc.OCR(ctx, "/a/in.pdf", "/a/in.pdf")
			},
			want: "/usr/bin/ocrmypdf /a/in.pdf /a/in.pdf --optimize 0 --quiet",
		},
		{
			name: "sync",
			run: func(tc *Toolchain) error {
				return tc.Sync(ctx, "/scans/COLL/item", "/remote/COLL")
			},
			want: "/usr/bin/rsync -t -q -r /scans/COLL/item /remote/COLL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{availableBins: allBins()}
			tc := detect(types.ToolsConfig{}, exec)
			require.NoError(t, tt.run(tc))
			require.Len(t, exec.calls, 1)
			assert.Equal(t, tt.want, exec.calls[0])
		})
	}
}

func TestRunFailureIncludesStderr(t *testing.T) {
	exec := &mockExecutor{
		availableBins: allBins(),
		failures:      map[Tool]string{Ghostscript: "Error: /syntaxerror in pdfmark"},
	}
	tc := detect(types.ToolsConfig{}, exec)

	err := tc.CompressPDF(context.Background(), "in.pdf", "out.pdf")
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "gs")
	assert.Contains(t, err.Error(), "syntaxerror")
}

func TestRunMissingTool(t *testing.T) {
	exec := &mockExecutor{availableBins: map[string]bool{}}
	tc := detect(types.ToolsConfig{}, exec)

	err := tc.OCR(context.Background(), "in.pdf", "in.pdf")
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Empty(t, exec.calls)
}
