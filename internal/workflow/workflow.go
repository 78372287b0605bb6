// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow runs item operations across a batch of items. Items are
// processed one at a time, in order; a failure is reported and recorded and
// the batch moves on to the next item.
package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/digitize/internal/item"
	"github.com/pdiddy/digitize/internal/ledger"
	"github.com/pdiddy/digitize/internal/naming"
	"github.com/pdiddy/digitize/pkg/types"
)

// Operation names an item operation.
type Operation string

const (
	OpRename      Operation = "rename"
	OpDerivatives Operation = "derivatives"
	OpCopy        Operation = "copy"
)

// ParseOperation maps a name to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpRename, OpDerivatives, OpCopy:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unknown operation %q", types.ErrConfig, s)
	}
}

// Recorder persists the outcome of each operation.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
}

// BatchResult holds the outcome counts of a batch run, one per item and
// operation attempted.
type BatchResult struct {
	Done    int
	Skipped int
	Failed  int
}

// Total returns the number of operations attempted.
func (r BatchResult) Total() int {
	return r.Done + r.Skipped + r.Failed
}

// HasFailures reports whether any operation failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(o ledger.Outcome) {
	switch o {
	case ledger.OutcomeDone:
		r.Done++
	case ledger.OutcomeSkipped:
		r.Skipped++
	case ledger.OutcomeFailed:
		r.Failed++
	}
}

// Options configures a Runner.
type Options struct {
	Pipeline types.PipelineConfig

	// Recorder, when set, receives one entry per operation.
	Recorder Recorder

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes operations over items.
type Runner struct {
	cfg      types.PipelineConfig
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		cfg:      opts.Pipeline,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunItem performs op on it, printing one status line to w.
func (r *Runner) RunItem(ctx context.Context, it *item.Item, op Operation, w io.Writer) ledger.Outcome {
	started := r.now()
	outcome, msg, err := r.perform(ctx, it, op)
	if err != nil {
		outcome, msg = ledger.OutcomeFailed, err.Error()
	}

	switch outcome {
	case ledger.OutcomeDone:
		fmt.Fprintf(w, "done:    %s %s (%s)\n", it.Identifier(), op, msg)
	case ledger.OutcomeSkipped:
		fmt.Fprintf(w, "skipped: %s %s (%s)\n", it.Identifier(), op, msg)
	case ledger.OutcomeFailed:
		fmt.Fprintf(w, "failed:  %s %s (%s)\n", it.Identifier(), op, msg)
		r.logger.Error("operation failed", "item", it.Identifier(), "operation", string(op), "error", err)
	}

	if r.recorder != nil {
		entry := ledger.Entry{
			ItemID:     it.Identifier(),
			Operation:  string(op),
			Outcome:    outcome,
			Message:    msg,
			StartedAt:  started,
			FinishedAt: r.now(),
		}
		// Record even when ctx was cancelled mid-operation.
		if _, err := r.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
			r.logger.Warn("could not record operation", "item", it.Identifier(), "operation", string(op), "error", err)
		}
	}
	return outcome
}

func (r *Runner) perform(ctx context.Context, it *item.Item, op Operation) (ledger.Outcome, string, error) {
	switch op {
	case OpRename:
		res, err := it.RenamePreservationScans()
		if err != nil {
			return ledger.OutcomeFailed, "", err
		}
		if res.Outcome == naming.AlreadyNamed {
			return ledger.OutcomeSkipped, res.Message, nil
		}
		return ledger.OutcomeDone, fmt.Sprintf("%s: %d", res.Message, len(res.Renamed)), nil

	case OpDerivatives:
		res, err := it.GenerateDerivatives(ctx, r.cfg)
		if err != nil {
			return ledger.OutcomeFailed, "", err
		}
		if res.Skipped() {
			return ledger.OutcomeSkipped, res.Summary(), nil
		}
		return ledger.OutcomeDone, res.Summary(), nil

	case OpCopy:
		msg, err := it.CopyToRemote(ctx)
		if err != nil {
			return ledger.OutcomeFailed, "", err
		}
		return ledger.OutcomeDone, msg, nil

	default:
		return ledger.OutcomeFailed, "", fmt.Errorf("%w: unknown operation %q", types.ErrConfig, op)
	}
}

// Run performs ops, in order, on each item, in order. Once an operation
// fails the item's remaining operations are not attempted. Run stops early
// only when ctx is cancelled, returning ctx's error with the counts so far.
func (r *Runner) Run(ctx context.Context, items []*item.Item, ops []Operation, w io.Writer) (BatchResult, error) {
	var result BatchResult
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for _, op := range ops {
			outcome := r.RunItem(ctx, it, op, w)
			result.add(outcome)
			if outcome == ledger.OutcomeFailed {
				break
			}
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d done, %d skipped, %d failed (total: %d)\n",
		result.Done, result.Skipped, result.Failed, result.Total())
	return result, ctx.Err()
}
