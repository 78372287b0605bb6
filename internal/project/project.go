// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project binds a metadata catalog to an output directory and an
// optional remote root, lays out the collection's item directories, and
// hands out item controllers.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/digitize/internal/item"
	"github.com/pdiddy/digitize/pkg/types"
)

// Project is the controller for one collection.
type Project struct {
	baseDir       string
	catalog       *types.Catalog
	collectionDir string
	remoteDir     string
	deps          item.Deps
}

// New creates a Project. When cfg.RemoteRoot is set it must be an existing
// directory; the collection mirror is <RemoteRoot>/<collection_id>.
func New(cfg types.ProjectConfig, cat *types.Catalog, deps item.Deps) (*Project, error) {
	if cat == nil || cat.CollectionID == "" {
		return nil, fmt.Errorf("%w: catalog has no collection ID", types.ErrConfig)
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("%w: no base directory configured", types.ErrConfig)
	}

	p := &Project{
		baseDir:       cfg.BaseDir,
		catalog:       cat,
		collectionDir: filepath.Join(cfg.BaseDir, cat.CollectionID),
		deps:          deps,
	}
	if cfg.RemoteRoot != "" {
		if !isDir(cfg.RemoteRoot) {
			return nil, fmt.Errorf("%w: remote scan directory not found: %s", types.ErrConfig, cfg.RemoteRoot)
		}
		p.remoteDir = filepath.Join(cfg.RemoteRoot, cat.CollectionID)
	}
	return p, nil
}

func (p *Project) CollectionID() string    { return p.catalog.CollectionID }
func (p *Project) CollectionDir() string   { return p.collectionDir }
func (p *Project) RemoteDir() string       { return p.remoteDir }
func (p *Project) Catalog() *types.Catalog { return p.catalog }

// SetupResult lists the item directories Setup created and those it found
// already present.
type SetupResult struct {
	CollectionDir string   `json:"collection_dir" yaml:"collection_dir"`
	Created       []string `json:"created" yaml:"created"`
	Existing      []string `json:"existing" yaml:"existing"`
}

// Setup creates <base>/<collection_id> and, for every catalogued item whose
// directory does not yet exist, its preservation and access subdirectories.
// Existing item directories are not touched.
func (p *Project) Setup() (SetupResult, error) {
	res := SetupResult{CollectionDir: p.collectionDir}
	if !isDir(p.baseDir) {
		return res, fmt.Errorf("%w: error creating directories: %s does not exist", types.ErrConfig, p.baseDir)
	}
	if err := os.MkdirAll(p.collectionDir, 0o755); err != nil {
		return res, fmt.Errorf("creating collection directory: %w", err)
	}

	for _, id := range p.catalog.Identifiers() {
		dir := filepath.Join(p.collectionDir, id)
		if _, err := os.Stat(dir); err == nil {
			res.Existing = append(res.Existing, id)
			continue
		}
		for _, sub := range []string{item.PreservationDir, item.AccessDir} {
			if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
				return res, fmt.Errorf("creating directories for %s: %w", id, err)
			}
		}
		res.Created = append(res.Created, id)
	}
	return res, nil
}

// Item returns the controller for identifier. The identifier does not need
// to be catalogued.
func (p *Project) Item(identifier string) *item.Item {
	return item.New(p.collectionDir, identifier, p.remoteDir, p.deps)
}

// Items returns controllers for every catalogued item, in catalog order.
func (p *Project) Items() []*item.Item {
	ids := p.catalog.Identifiers()
	items := make([]*item.Item, len(ids))
	for i, id := range ids {
		items[i] = p.Item(id)
	}
	return items
}

// ItemsFor returns controllers for ids, or for every item when ids is empty.
// Identifiers missing from the catalog are a configuration error.
func (p *Project) ItemsFor(ids []string) ([]*item.Item, error) {
	if len(ids) == 0 {
		return p.Items(), nil
	}
	items := make([]*item.Item, 0, len(ids))
	for _, id := range ids {
		if _, ok := p.catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: item %q is not in the %s catalog", types.ErrConfig, id, p.catalog.CollectionID)
		}
		items = append(items, p.Item(id))
	}
	return items, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
