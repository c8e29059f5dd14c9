// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"math"
	"sort"

	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// DefaultFallbackThreshold is the best pattern confidence below which the
// fallback extractor is consulted.
const DefaultFallbackThreshold = 0.8

// corroborationTolerance is the largest difference, in percentage points,
// at which a fallback value counts as agreeing with a pattern value.
const corroborationTolerance = 0.05

// Hybrid runs the pattern extractor and, when it finds nothing or only weak
// matches, the fallback extractor.
type Hybrid struct {
	pattern      *PatternExtractor
	fallback     *FallbackExtractor
	threshold    float64
	abstractOnly bool
	metrics      *metrics.Metrics
}

// HybridOptions configures a Hybrid extractor.
type HybridOptions struct {
	// Threshold defaults to DefaultFallbackThreshold when zero.
	Threshold    float64
	AbstractOnly bool
	Metrics      *metrics.Metrics
}

// NewHybrid combines pattern and fallback. fallback may be nil.
func NewHybrid(pattern *PatternExtractor, fallback *FallbackExtractor, opts HybridOptions) *Hybrid {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultFallbackThreshold
	}
	return &Hybrid{
		pattern:      pattern,
		fallback:     fallback,
		threshold:    opts.Threshold,
		abstractOnly: opts.AbstractOnly,
		metrics:      opts.Metrics,
	}
}

// Extract returns all results for text sorted by confidence descending.
// A fallback result is appended when consulted and found; if its value
// agrees with a pattern value it is labelled hybrid.
func (h *Hybrid) Extract(ctx context.Context, text string) []types.ExtractionResult {
	results := h.pattern.Extract(text)
	h.metrics.Extracted(types.MethodPattern, len(results))

	if !h.needsFallback(results) {
		return results
	}

	fb, ok := h.fallback.Extract(ctx, text, h.abstractOnly)
	if !ok {
		return results
	}
	if corroborated(results, *fb.Value) {
		fb.Method = types.MethodHybrid
	}
	h.metrics.Extracted(fb.Method, 1)

	results = append(results, fb)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

func (h *Hybrid) needsFallback(results []types.ExtractionResult) bool {
	if !h.fallback.Available() {
		return false
	}
	return len(results) == 0 || results[0].Confidence < h.threshold
}

func corroborated(results []types.ExtractionResult, v float64) bool {
	for _, r := range results {
		if r.Value != nil && math.Abs(*r.Value-v) <= corroborationTolerance {
			return true
		}
	}
	return false
}
