package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

const defaultWorkers = 4

// ExtractionDeps wires the fetch and extraction adapters into the coordinator.
type ExtractionDeps struct {
	Source    ports.TranscriptSource
	Extractor ports.NewsExtractor
	Workers   int
	Logger    *slog.Logger
}

// ExtractionResult is the flattened output of one extraction run.
type ExtractionResult struct {
	Items   []domain.NewsItem
	Fetch   domain.StageReport
	Extract domain.StageReport
}

// ExtractionCoordinator fans sources and transcripts out over a bounded pool.
type ExtractionCoordinator struct {
	source    ports.TranscriptSource
	extractor ports.NewsExtractor
	workers   int
	logger    *slog.Logger
}

// NewExtractionCoordinator constructs the coordinator. Workers below 1 fall back to a small default.
func NewExtractionCoordinator(deps ExtractionDeps) *ExtractionCoordinator {
	workers := deps.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	return &ExtractionCoordinator{
		source:    deps.Source,
		extractor: deps.Extractor,
		workers:   workers,
		logger:    deps.Logger,
	}
}

// Run fetches every source, then extracts every transcript. Per-source and
// per-transcript failures are logged and contribute nothing; only a context
// cancelled before dispatch is returned as an error. Items come back in
// source order, then transcript order, regardless of the pool size.
func (c *ExtractionCoordinator) Run(ctx context.Context, sources []domain.SourceUnit) (ExtractionResult, error) {
	result := ExtractionResult{
		Fetch:   domain.StageReport{Stage: domain.StageFetch},
		Extract: domain.StageReport{Stage: domain.StageExtract},
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if c.source == nil || c.extractor == nil {
		return result, fmt.Errorf("extraction coordinator is not configured")
	}

	transcripts := c.fetchAll(ctx, sources, &result.Fetch)

	var queue []domain.Transcript
	for _, t := range transcripts {
		if strings.TrimSpace(t.Text) == "" {
			result.Extract.Skipped++
			c.debug("skip empty transcript", "video", t.VideoID)
			continue
		}
		queue = append(queue, t)
	}
	if len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	slots := make([][]domain.NewsItem, len(queue))
	failed := make([]bool, len(queue))
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i, t := range queue {
		i, t := i, t
		g.Go(func() error {
			items, err := c.extractOne(ctx, t)
			if err != nil {
				failed[i] = true
				c.warn("extraction unit failed", "video", t.VideoID, "source", t.Channel, "error", err)
				return nil
			}
			slots[i] = items
			return nil
		})
	}
	_ = g.Wait()

	result.Extract.Attempted = len(queue)
	for i, items := range slots {
		if failed[i] {
			result.Extract.Failed++
			continue
		}
		result.Extract.Succeeded++
		result.Items = append(result.Items, items...)
	}

	c.info("extraction finished",
		"sources", result.Fetch.Attempted,
		"transcripts", len(queue),
		"failed", result.Extract.Failed,
		"items", len(result.Items))
	return result, nil
}

func (c *ExtractionCoordinator) fetchAll(ctx context.Context, sources []domain.SourceUnit, report *domain.StageReport) []domain.Transcript {
	slots := make([][]domain.Transcript, len(sources))
	failed := make([]bool, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed[i] = true
					c.warn("fetch panicked", "source", src.Name, "panic", r)
				}
			}()
			transcripts, err := c.source.Fetch(ctx, src)
			if err != nil {
				failed[i] = true
				c.warn("fetch failed", "source", src.Name, "error", err)
				return nil
			}
			slots[i] = transcripts
			return nil
		})
	}
	_ = g.Wait()

	report.Attempted = len(sources)
	var out []domain.Transcript
	for i, transcripts := range slots {
		if failed[i] {
			report.Failed++
			continue
		}
		report.Succeeded++
		out = append(out, transcripts...)
	}
	return out
}

// extractOne runs a single extraction unit and turns a panic into an error.
func (c *ExtractionCoordinator) extractOne(ctx context.Context, t domain.Transcript) (items []domain.NewsItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("%w: video %s: panic: %v", domain.ErrExtraction, t.VideoID, r)
		}
	}()
	return c.extractor.Extract(ctx, t)
}

func (c *ExtractionCoordinator) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *ExtractionCoordinator) info(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *ExtractionCoordinator) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
