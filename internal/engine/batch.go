package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/vidzoom/internal/config"
	"github.com/ivlev/vidzoom/internal/export"
	"github.com/ivlev/vidzoom/internal/source"
	"github.com/ivlev/vidzoom/internal/timeline"
)

// BatchStatus is the state of one batch item.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	StatusError      BatchStatus = "error"
)

// BatchItem reports the progress of one input.
type BatchItem struct {
	Input  string
	Status BatchStatus
	Report *Report
	Err    error
}

// Opener opens the source for a batch input.
type Opener func(ctx context.Context, path string) (source.Source, error)

// Batch exports a template over many inputs.
type Batch struct {
	Config  *config.Config
	Encoder export.Encoder
	Logger  *slog.Logger
	// Open defaults to source.Open with the render settings.
	Open Opener
	// OnStatus is called on every status change. Calls are serialized.
	OnStatus func(BatchItem)
}

// Run exports every input with fresh copies of the template, at most
// Config.Batch.Workers at a time. A failed item does not stop the others;
// the returned items hold every outcome in input order.
func (b *Batch) Run(ctx context.Context, inputs []string, template []timeline.Event) []BatchItem {
	items := make([]BatchItem, len(inputs))
	var mu sync.Mutex
	report := func(i int, status BatchStatus, r *Report, err error) {
		mu.Lock()
		defer mu.Unlock()
		items[i].Status, items[i].Report, items[i].Err = status, r, err
		if b.OnStatus != nil {
			b.OnStatus(items[i])
		}
	}
	for i, in := range inputs {
		items[i] = BatchItem{Input: in}
		report(i, StatusPending, nil, nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.Config.Batch.Workers))
	for i, in := range inputs {
		g.Go(func() error {
			report(i, StatusProcessing, nil, nil)
			r, err := b.exportOne(gctx, in, template)
			if err != nil {
				report(i, StatusError, nil, err)
				return nil
			}
			report(i, StatusCompleted, r, nil)
			return nil
		})
	}
	g.Wait()
	return items
}

func (b *Batch) exportOne(ctx context.Context, input string, template []timeline.Event) (*Report, error) {
	open := b.Open
	if open == nil {
		opts := source.Options{
			FPS:          float64(b.Config.Render.FPS),
			PageDuration: b.Config.Render.PageDuration,
			DPI:          b.Config.Render.DPI,
		}
		open = func(ctx context.Context, path string) (source.Source, error) {
			return source.Open(ctx, path, opts)
		}
	}

	src, err := open(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", input, err)
	}

	cfg := *b.Config
	cfg.InputPath = input
	p, err := NewProject(&cfg, src, b.Encoder, b.Logger)
	if err != nil {
		src.Close()
		return nil, err
	}
	defer p.Close()

	if _, err := p.ApplyTemplate(template); err != nil {
		return nil, err
	}
	return p.ExportToFile(ctx, OutputPath(cfg.Export.OutputDir, input, time.Now()), nil)
}
