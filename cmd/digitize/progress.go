// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// progressReporter draws one bar per item while derivative images are
// converted. It draws nothing unless w is a terminal.
type progressReporter struct {
	w       io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, enabled: isTerminal(w)}
}

func (p *progressReporter) update(done, total int) {
	if !p.enabled || total == 0 {
		return
	}
	if done == 0 || p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("converting images"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = p.bar.Set(done)
	if done >= total {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
