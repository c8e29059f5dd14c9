// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Service sends one instruction and one user prompt to a text-understanding
// model and returns the raw text reply.
type Service interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// abstractLimit is the number of characters kept when abstractOnly is set.
const abstractLimit = 2000

// ErrMalformedResponse is returned by ParseResponse when the reply does not
// follow the requested JSON schema.
var ErrMalformedResponse = eris.New("fallback: malformed response")

// FallbackOptions configures a FallbackExtractor.
type FallbackOptions struct {
	// Timeout bounds one service call. Zero means 30s.
	Timeout time.Duration

	// MaxConcurrency bounds simultaneous service calls. Zero means 2.
	MaxConcurrency int

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// FallbackExtractor asks a Service for a single CVintra value. With a nil
// Service it is unavailable and every call returns no result.
type FallbackExtractor struct {
	service Service
	timeout time.Duration
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewFallbackExtractor returns an extractor backed by svc. svc may be nil.
func NewFallbackExtractor(svc Service, opts FallbackOptions) *FallbackExtractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if svc == nil {
		opts.Logger.Warn("fallback: no service configured, model-based extraction disabled")
	}
	return &FallbackExtractor{
		service: svc,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     time.Now,
	}
}

// Available reports whether a service is configured.
func (f *FallbackExtractor) Available() bool {
	return f != nil && f.service != nil
}

// Extract returns the model's CVintra reading of text. The second return is
// false when the service is unavailable, fails, times out, replies outside
// the schema, reports no value, or reports a value outside [5, 100].
// When abstractOnly is set only the first 2000 characters are sent.
func (f *FallbackExtractor) Extract(ctx context.Context, text string, abstractOnly bool) (types.ExtractionResult, bool) {
	if !f.Available() {
		f.metrics.Fallback(metrics.OutcomeUnavailable)
		return types.ExtractionResult{}, false
	}
	if abstractOnly {
		text = truncateRunes(text, abstractLimit)
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		f.metrics.Fallback(metrics.OutcomeError)
		return types.ExtractionResult{}, false
	}
	defer f.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	prompt, err := renderPrompt(text)
	if err != nil {
		f.log.Error("fallback: rendering prompt", zap.Error(err))
		f.metrics.Fallback(metrics.OutcomeError)
		return types.ExtractionResult{}, false
	}

	reply, err := f.service.Complete(callCtx, systemPrompt, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			f.log.Warn("fallback: service call timed out", zap.Duration("timeout", f.timeout))
			f.metrics.Fallback(metrics.OutcomeTimeout)
		} else {
			f.log.Warn("fallback: service call failed", zap.Error(err))
			f.metrics.Fallback(metrics.OutcomeError)
		}
		return types.ExtractionResult{}, false
	}

	parsed, err := ParseResponse(reply)
	if err != nil {
		f.log.Warn("fallback: discarding reply", zap.Error(err))
		f.metrics.Fallback(metrics.OutcomeError)
		return types.ExtractionResult{}, false
	}
	if parsed.Value == nil {
		f.metrics.Fallback(metrics.OutcomeEmpty)
		return types.ExtractionResult{}, false
	}
	res := types.ExtractionResult{
		Value:       types.Float(*parsed.Value),
		Confidence:  parsed.Confidence,
		Method:      types.MethodFallback,
		Evidence:    parsed.Evidence,
		ExtractedAt: f.now(),
	}
	if !res.HasPlausibleValue() {
		f.log.Debug("fallback: implausible reading",
			zap.Float64("value", *res.Value), zap.Float64("confidence", res.Confidence))
		f.metrics.Fallback(metrics.OutcomeEmpty)
		return types.ExtractionResult{}, false
	}

	f.metrics.Fallback(metrics.OutcomeFound)
	return res, true
}

// Reply is the structured content of a model reply.
type Reply struct {
	Value      *float64
	Confidence float64
	Evidence   string
}

// ParseResponse decodes a model reply of the form
// {"cvintra": number|null, "confidence": number, "evidence": string|null}.
// Surrounding prose and Markdown code fences are tolerated. Missing
// "cvintra" or "confidence" keys, wrong JSON types, and confidences outside
// [0, 1] wrap ErrMalformedResponse.
func ParseResponse(reply string) (Reply, error) {
	body := jsonObject(reply)
	if body == "" {
		return Reply{}, eris.Wrap(ErrMalformedResponse, "no JSON object in reply")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Reply{}, eris.Wrapf(ErrMalformedResponse, "decoding reply: %v", err)
	}

	rawValue, ok := raw["cvintra"]
	if !ok {
		return Reply{}, eris.Wrap(ErrMalformedResponse, `missing "cvintra"`)
	}
	rawConf, ok := raw["confidence"]
	if !ok {
		return Reply{}, eris.Wrap(ErrMalformedResponse, `missing "confidence"`)
	}

	var out Reply
	if err := json.Unmarshal(rawValue, &out.Value); err != nil {
		return Reply{}, eris.Wrapf(ErrMalformedResponse, `"cvintra" is not a number: %v`, err)
	}
	if err := json.Unmarshal(rawConf, &out.Confidence); err != nil {
		return Reply{}, eris.Wrapf(ErrMalformedResponse, `"confidence" is not a number: %v`, err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Reply{}, eris.Wrapf(ErrMalformedResponse, "confidence %v outside [0, 1]", out.Confidence)
	}
	if rawEvidence, ok := raw["evidence"]; ok {
		var ev *string
		if err := json.Unmarshal(rawEvidence, &ev); err != nil {
			return Reply{}, eris.Wrapf(ErrMalformedResponse, `"evidence" is not a string: %v`, err)
		}
		if ev != nil {
			out.Evidence = strings.TrimSpace(*ev)
		}
	}
	return out, nil
}

// jsonObject returns the span from the first '{' to the last '}' in s.
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
