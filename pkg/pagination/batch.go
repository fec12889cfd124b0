package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchConfig holds batch walking configuration.
type BatchConfig struct {
	// MaxConcurrency is the number of sources walked at the same time.
	MaxConcurrency int

	// FailFast cancels the remaining sources after the first failure.
	FailFast bool
}

// DefaultBatchConfig returns a conservative configuration for public SaaS APIs.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
	}
}

// SourceResult holds everything one source produced. Pages fetched before a
// failure are kept.
type SourceResult struct {
	Source PageSource
	Pages  []Page
	Err    error
}

// Batch walks several independent sources concurrently. Each source gets its
// own Fetcher, so page order within a source stays strictly sequential.
type Batch struct {
	doer   Doer
	config BatchConfig
	opts   []Option
}

// NewBatch creates a Batch. opts are applied to every Fetcher it creates.
func NewBatch(doer Doer, config BatchConfig, opts ...Option) *Batch {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	return &Batch{
		doer:   doer,
		config: config,
		opts:   opts,
	}
}

// FetchAll walks every source and returns one result per source, in input
// order. The error joins all per-source failures.
func (b *Batch) FetchAll(ctx context.Context, sources []PageSource) ([]SourceResult, error) {
	start := time.Now()
	results := make([]SourceResult, len(sources))

	var g *errgroup.Group
	gctx := ctx
	if b.config.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(b.config.MaxConcurrency)

	for i, src := range sources {
		results[i].Source = src
		g.Go(func() error {
			pages, err := b.walk(gctx, src)
			results[i].Pages = pages
			results[i].Err = err
			if b.config.FailFast {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	pageCount := 0
	for _, r := range results {
		pageCount += len(r.Pages)
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}

	log.Debug().
		Int("sources", len(sources)).
		Int("pages", pageCount).
		Int("failed", len(errs)).
		Dur("duration", time.Since(start)).
		Msg("Batch walk complete")

	return results, errors.Join(errs...)
}

func (b *Batch) walk(ctx context.Context, src PageSource) ([]Page, error) {
	f, err := NewFetcher(b.doer, src, b.opts...)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.URL, err)
	}

	var pages []Page
	for page, err := range f.All(ctx) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
