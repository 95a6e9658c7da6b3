// Package recognize runs text recognition engines over preprocessed pages
// and merges their output into one span sequence per page.
package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// overlapThreshold is the IoU above which two spans from different engines
// are considered the same physical text and deduplicated.
const overlapThreshold = 0.5

// Adapter fans one page out to every configured engine and merges the
// results. One engine failing is tolerated as long as another succeeds;
// all engines failing fails the page.
type Adapter struct {
	engines []driven.Recognizer
	logger  *slog.Logger
}

// NewAdapter creates an Adapter over the given engines.
func NewAdapter(logger *slog.Logger, engines ...driven.Recognizer) *Adapter {
	return &Adapter{engines: engines, logger: logger}
}

// RecognizePage runs all engines concurrently and returns the merged span
// sequence in reading order.
func (a *Adapter) RecognizePage(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error) {
	if len(a.engines) == 0 {
		return nil, fmt.Errorf("%w: no engines configured", domain.ErrRecognition)
	}

	var mu sync.Mutex
	// Indexed by engine position so merge order follows the configured
	// engine order, not goroutine completion order. mergeSpans keeps the
	// first span on confidence ties, so ordering decides tie winners.
	results := make([][]domain.TextSpan, len(a.engines))
	succeeded := 0
	var failures []error

	g, gctx := errgroup.WithContext(ctx)
	for i, engine := range a.engines {
		g.Go(func() error {
			spans, err := engine.Detect(gctx, page)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn("recognition engine failed",
					"engine", engine.Name(),
					"page", page.Number,
					"error", err)
				failures = append(failures, err)
				return nil
			}
			results[i] = spans
			succeeded++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d engines failed on page %d: %v",
			domain.ErrRecognition, len(a.engines), page.Number, failures[0])
	}

	merged := mergeSpans(results)
	domain.SortSpans(merged)
	return merged, nil
}

// mergeSpans combines per-engine span lists, dropping duplicates where two
// engines read the same physical region. On overlap the higher-confidence
// span wins.
func mergeSpans(results [][]domain.TextSpan) []domain.TextSpan {
	var merged []domain.TextSpan
	for _, spans := range results {
		for _, s := range spans {
			replaced := false
			dropped := false
			for i := range merged {
				if merged[i].Page != s.Page {
					continue
				}
				if merged[i].BBox.IoU(s.BBox) <= overlapThreshold {
					continue
				}
				if s.Confidence > merged[i].Confidence {
					merged[i] = s
					replaced = true
				} else {
					dropped = true
				}
				break
			}
			if !replaced && !dropped {
				merged = append(merged, s)
			}
		}
	}
	return merged
}
