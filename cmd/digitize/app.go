// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/pdiddy/digitize/internal/catalog"
	"github.com/pdiddy/digitize/internal/derivative"
	"github.com/pdiddy/digitize/internal/item"
	"github.com/pdiddy/digitize/internal/logging"
	"github.com/pdiddy/digitize/internal/project"
	"github.com/pdiddy/digitize/internal/raster"
	"github.com/pdiddy/digitize/internal/toolchain"
	"github.com/pdiddy/digitize/pkg/types"
)

// loadConfig assembles the configuration from flags, environment, and the
// config file, in viper's precedence order.
func loadConfig() (types.Config, error) {
	var cfg types.Config

	kind, err := types.ParseDerivativeKind(viper.GetString("derivative"))
	if err != nil {
		return cfg, err
	}

	cfg.Project = types.ProjectConfig{
		BaseDir:      viper.GetString("base_dir"),
		MetadataPath: viper.GetString("metadata"),
		RemoteRoot:   viper.GetString("remote_root"),
	}
	cfg.Pipeline = types.PipelineConfig{
		Kind:   kind,
		Strict: viper.GetBool("strict_derivatives"),
	}
	cfg.Log = types.LogConfig{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}
	// Read key by key so DIGITIZE_TOOLS_* variables apply.
	cfg.Tools = types.ToolsConfig{
		OpenJPEG:    viper.GetString("tools.opj_compress"),
		ImageMagick: viper.GetString("tools.magick"),
		Img2PDF:     viper.GetString("tools.img2pdf"),
		Ghostscript: viper.GetString("tools.gs"),
		OCRmyPDF:    viper.GetString("tools.ocrmypdf"),
		Rsync:       viper.GetString("tools.rsync"),
	}
	return cfg, nil
}

// app holds what every project command needs, built once per invocation.
type app struct {
	cfg     types.Config
	logger  *slog.Logger
	tools   *toolchain.Toolchain
	project *project.Project
}

// newApp loads configuration, detects external tools, and opens the project
// described by the metadata CSV.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	if cfg.Project.MetadataPath == "" {
		return nil, fmt.Errorf("%w: no metadata CSV configured (set --metadata or metadata in digitize.yaml)", types.ErrConfig)
	}

	cat, err := catalog.Load(cfg.Project.MetadataPath)
	if err != nil {
		return nil, err
	}

	tools := toolchain.Detect(cfg.Tools)
	pipeline := derivative.New(tools, raster.Inspector{}, derivative.Options{
		Logger:   logger,
		Progress: newProgressReporter(os.Stderr).update,
	})

	proj, err := project.New(cfg.Project, cat, item.Deps{
		Generator: pipeline,
		Syncer:    tools,
		Pages:     item.FitzPageCounter{},
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("project loaded",
		"collection", proj.CollectionID(),
		"items", len(cat.Items),
		"collection_dir", proj.CollectionDir(),
		"derivative", cfg.Pipeline.Kind.String(),
	)
	return &app{cfg: cfg, logger: logger, tools: tools, project: proj}, nil
}

// requireCollection fails when setup has not created the collection directory.
func (a *app) requireCollection() error {
	info, err := os.Stat(a.project.CollectionDir())
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: collection directory %s does not exist; run setup first", types.ErrConfig, a.project.CollectionDir())
	}
	return nil
}
