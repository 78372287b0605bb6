// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package naming validates and renames preservation scans so that every page
// follows the <item_identifier>_<object_number>.tif convention.
//
// A batch of filenames is parsed by splitting each stem on its last
// underscore into an optional identifier component and a number component.
// The batch is renamed only when the numbers are exactly 1..N and the
// identifier components do not already match the item identifier.
package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Validation errors. RenameDir wraps them with the directory being processed.
var (
	ErrNoImages          = errors.New("no TIFFs found")
	ErrNotNumbered       = errors.New("existing filenames do not end in a numbered part (e.g., 001.tif)")
	ErrUnexpectedNumbers = errors.New("image numbers do not match expectations")
)

const (
	extTIF  = ".tif"
	extTIFF = ".tiff"
)

// Outcome is the decision reached for a batch of filenames.
type Outcome int

const (
	// NeedsRename means the batch is numbered 1..N but not yet named after the item.
	NeedsRename Outcome = iota
	// AlreadyNamed means every file already follows the convention.
	AlreadyNamed
)

func (o Outcome) String() string {
	switch o {
	case NeedsRename:
		return "needs rename"
	case AlreadyNamed:
		return "already named"
	default:
		return "unknown"
	}
}

// Record is a filename split into its naming components.
type Record struct {
	Name string
	Stem string
	Ext  string

	// Identifier is the part before the last underscore. HasIdentifier is
	// false when the stem has no underscore.
	Identifier    string
	HasIdentifier bool

	// Number is the part after the last underscore, or the whole stem.
	Number string
}

// Parse splits name into a Record.
func Parse(name string) Record {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	r := Record{Name: name, Stem: stem, Ext: ext}

	if i := strings.LastIndex(stem, "_"); i >= 0 {
		r.Identifier = stem[:i]
		r.HasIdentifier = true
		r.Number = stem[i+1:]
	} else {
		r.Number = stem
	}
	return r
}

// Classification holds the three batch-level checks.
type Classification struct {
	IdentifiersAlign   bool
	NumbersAreIntegers bool
	SequenceIsExpected bool
}

// Classify evaluates records against identifier. SequenceIsExpected is only
// meaningful when NumbersAreIntegers is true.
func Classify(records []Record, identifier string) Classification {
	c := Classification{IdentifiersAlign: true, NumbersAreIntegers: true}

	for _, r := range records {
		if !r.HasIdentifier || r.Identifier != identifier {
			c.IdentifiersAlign = false
		}
		if !isDigits(r.Number) {
			c.NumbersAreIntegers = false
		}
	}

	if c.NumbersAreIntegers {
		c.SequenceIsExpected = isExpectedSequence(records)
	}
	return c
}

// Check applies the decision table to names. It returns ErrNotNumbered or
// ErrUnexpectedNumbers when the batch cannot be renamed.
func Check(names []string, identifier string) (Outcome, error) {
	records := parseAll(names)
	c := Classify(records, identifier)

	switch {
	case !c.NumbersAreIntegers:
		return NeedsRename, ErrNotNumbered
	case !c.SequenceIsExpected:
		return NeedsRename, ErrUnexpectedNumbers
	case c.IdentifiersAlign:
		return AlreadyNamed, nil
	default:
		return NeedsRename, nil
	}
}

// Rename is one planned or completed filesystem rename.
type Rename struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Plan returns the renames needed to bring names in line with identifier.
// Files whose name is already correct are omitted. Plan fails with the same
// errors as Check, and returns no renames for an already named batch.
func Plan(names []string, identifier string) ([]Rename, error) {
	outcome, err := Check(names, identifier)
	if err != nil {
		return nil, err
	}
	if outcome == AlreadyNamed {
		return nil, nil
	}

	var renames []Rename
	for _, r := range parseAll(names) {
		target, err := TargetName(r, identifier)
		if err != nil {
			return nil, err
		}
		if target != r.Name {
			renames = append(renames, Rename{From: r.Name, To: target})
		}
	}
	return renames, nil
}

// TargetName returns the conventional filename for r.
func TargetName(r Record, identifier string) (string, error) {
	n, err := strconv.Atoi(r.Number)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotNumbered, r.Name)
	}
	return fmt.Sprintf("%s_%03d%s", identifier, n, canonicalExt(r.Ext)), nil
}

// Result describes what RenameDir did.
type Result struct {
	Outcome Outcome  `json:"outcome" yaml:"outcome"`
	Renamed []Rename `json:"renamed,omitempty" yaml:"renamed,omitempty"`
	Message string   `json:"message" yaml:"message"`
}

// RenameDir renames the TIFFs directly inside dir to follow the naming
// convention for identifier. A batch that is already correctly named is not
// an error; Result.Outcome reports AlreadyNamed and nothing is touched.
func RenameDir(dir, identifier string) (Result, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("renaming files: %s does not exist", dir)
	}

	names, err := TIFFNames(dir)
	if err != nil {
		return Result{}, fmt.Errorf("renaming files: %w", err)
	}
	if len(names) == 0 {
		return Result{}, fmt.Errorf("renaming files: %w in %s", ErrNoImages, dir)
	}

	outcome, err := Check(names, identifier)
	if err != nil {
		return Result{}, fmt.Errorf("renaming files in %s: %w", dir, err)
	}
	if outcome == AlreadyNamed {
		return Result{Outcome: AlreadyNamed, Message: "files are already correctly named"}, nil
	}

	renames, err := Plan(names, identifier)
	if err != nil {
		return Result{}, fmt.Errorf("renaming files in %s: %w", dir, err)
	}
	if err := checkTargets(dir, renames); err != nil {
		return Result{}, err
	}

	done := make([]Rename, 0, len(renames))
	for _, rn := range renames {
		if err := os.Rename(filepath.Join(dir, rn.From), filepath.Join(dir, rn.To)); err != nil {
			return Result{Outcome: NeedsRename, Renamed: done}, fmt.Errorf("renaming %s to %s: %w", rn.From, rn.To, err)
		}
		done = append(done, rn)
	}
	return Result{Outcome: NeedsRename, Renamed: done, Message: "files renamed"}, nil
}

// TIFFNames returns the sorted names of regular files in dir ending in .tif
// or .tiff.
func TIFFNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsTIFF(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsTIFF reports whether name carries a preservation scan extension.
func IsTIFF(name string) bool {
	return strings.HasSuffix(name, extTIF) || strings.HasSuffix(name, extTIFF)
}

// checkTargets refuses to overwrite existing files. Object numbers are unique
// within a valid batch, so no target can be another file's source.
func checkTargets(dir string, renames []Rename) error {
	for _, rn := range renames {
		if _, err := os.Lstat(filepath.Join(dir, rn.To)); err == nil {
			return fmt.Errorf("renaming %s: target %s already exists", rn.From, rn.To)
		}
	}
	return nil
}

func parseAll(names []string) []Record {
	records := make([]Record, len(names))
	for i, n := range names {
		records[i] = Parse(n)
	}
	return records
}

func canonicalExt(ext string) string {
	if ext == extTIFF {
		return extTIF
	}
	return ext
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isExpectedSequence reports whether the numbers are exactly {1..N}.
func isExpectedSequence(records []Record) bool {
	n := len(records)
	seen := make([]bool, n+1)
	for _, r := range records {
		v, err := strconv.Atoi(r.Number)
		if err != nil || v < 1 || v > n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
