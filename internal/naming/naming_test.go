// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "UP001234_000005"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantID  string
		wantHas bool
		wantNum string
		wantExt string
	}{
		{name: "bare number", in: "001.tif", wantNum: "001", wantExt: ".tif"},
		{name: "identifier and number", in: "UP001234_000005_002.tif", wantID: "UP001234_000005", wantHas: true, wantNum: "002", wantExt: ".tif"},
		{name: "splits on last underscore only", in: "a_b_c_7.tiff", wantID: "a_b_c", wantHas: true, wantNum: "7", wantExt: ".tiff"},
		{name: "trailing underscore", in: "scan_.tif", wantID: "scan", wantHas: true, wantNum: "", wantExt: ".tif"},
		{name: "non numeric", in: "cover.tif", wantNum: "cover", wantExt: ".tif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Parse(tt.in)
			assert.Equal(t, tt.wantID, r.Identifier)
			assert.Equal(t, tt.wantHas, r.HasIdentifier)
			assert.Equal(t, tt.wantNum, r.Number)
			assert.Equal(t, tt.wantExt, r.Ext)
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		want    Outcome
		wantErr error
	}{
		{
			name:  "already correctly named",
			names: []string{testID + "_001.tif", testID + "_002.tif", testID + "_003.tif"},
			want:  AlreadyNamed,
		},
		{
			name:  "already named in any order",
			names: []string{testID + "_3.tif", testID + "_1.tif", testID + "_2.tif"},
			want:  AlreadyNamed,
		},
		{
			name:  "bare numbers need rename",
			names: []string{"001.tif", "002.tif", "003.tif"},
			want:  NeedsRename,
		},
		{
			name:  "wrong identifier needs rename",
			names: []string{"other_001.tif", "other_002.tif"},
			want:  NeedsRename,
		},
		{
			name:  "mixed identifiers need rename",
			names: []string{testID + "_001.tif", "002.tif"},
			want:  NeedsRename,
		},
		{
			name:    "non digit number part",
			names:   []string{"001.tif", "002a.tif"},
			wantErr: ErrNotNumbered,
		},
		{
			name:    "non digit wins over identifier match",
			names:   []string{testID + "_001.tif", testID + "_cover.tif"},
			wantErr: ErrNotNumbered,
		},
		{
			name:    "gap in sequence",
			names:   []string{"001.tif", "002.tif", "004.tif"},
			wantErr: ErrUnexpectedNumbers,
		},
		{
			name:    "duplicate number",
			names:   []string{"001.tif", "1.tiff", "002.tif"},
			wantErr: ErrUnexpectedNumbers,
		},
		{
			name:    "starts at zero",
			names:   []string{"000.tif", "001.tif"},
			wantErr: ErrUnexpectedNumbers,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Check(tt.names, testID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan(t *testing.T) {
	renames, err := Plan([]string{"1.tif", "002.tiff", testID + "_003.tif"}, testID)
	require.NoError(t, err)
	assert.Equal(t, []Rename{
		{From: "1.tif", To: testID + "_001.tif"},
		{From: "002.tiff", To: testID + "_002.tif"},
	}, renames)
}

func TestRenameDir_PermutationWithoutIdentifiers(t *testing.T) {
	for _, n := range []int{1, 3, 12} {
		dir := t.TempDir()
		var want []string
		// Write in reverse so directory order never matches number order.
		for i := n; i >= 1; i-- {
			writeScan(t, dir, strconv.Itoa(i)+".tif")
			want = append(want, fmt.Sprintf("%s_%03d.tif", testID, i))
		}
		sort.Strings(want)

		res, err := RenameDir(dir, testID)
		require.NoError(t, err)
		assert.Equal(t, NeedsRename, res.Outcome)
		assert.Equal(t, "files renamed", res.Message)
		assert.Len(t, res.Renamed, n)
		assert.Equal(t, want, listDir(t, dir))
	}
}

func TestRenameDir_AlreadyNamed(t *testing.T) {
	dir := t.TempDir()
	names := []string{testID + "_002.tif", testID + "_001.tif"}
	for _, n := range names {
		writeScan(t, dir, n)
	}

	res, err := RenameDir(dir, testID)
	require.NoError(t, err)
	assert.Equal(t, AlreadyNamed, res.Outcome)
	assert.Equal(t, "files are already correctly named", res.Message)
	assert.Empty(t, res.Renamed)
	assert.Equal(t, []string{testID + "_001.tif", testID + "_002.tif"}, listDir(t, dir))
}

func TestRenameDir_NormalizesExtension(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, dir, "1.tiff")
	writeScan(t, dir, "2.tif")

	_, err := RenameDir(dir, testID)
	require.NoError(t, err)
	assert.Equal(t, []string{testID + "_001.tif", testID + "_002.tif"}, listDir(t, dir))
}

func TestRenameDir_RejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr error
	}{
		{name: "not numbered", files: []string{"001.tif", "back.tif"}, wantErr: ErrNotNumbered},
		{name: "gap", files: []string{"001.tif", "003.tif"}, wantErr: ErrUnexpectedNumbers},
		{name: "duplicate", files: []string{"a_1.tif", "b_1.tif"}, wantErr: ErrUnexpectedNumbers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeScan(t, dir, f)
			}
			before := listDir(t, dir)

			_, err := RenameDir(dir, testID)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, listDir(t, dir), "no files should be renamed")
		})
	}
}

func TestRenameDir_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, dir, "1.tif")
	writeScan(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2.tif"), 0o755))

	_, err := RenameDir(dir, testID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.tif", testID + "_001.tif", "notes.txt"}, listDir(t, dir))
}

func TestRenameDir_Fatal(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := RenameDir(filepath.Join(t.TempDir(), "nope"), testID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})
	t.Run("no tiffs", func(t *testing.T) {
		dir := t.TempDir()
		writeScan(t, dir, "readme.txt")
		_, err := RenameDir(dir, testID)
		require.ErrorIs(t, err, ErrNoImages)
	})
}

func writeScan(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("scan"), 0o644))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names
}
