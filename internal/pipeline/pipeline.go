// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one CVintra query end to end: query cache check,
// literature fetch, classification and deduplication, per-record
// extraction, aggregation, source ranking and the cache write.
//
// Every run ends in a types.QueryResponse. Failures never escape Run as
// errors or panics; they become a response with status error.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/cvintra-engine/internal/design"
	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/internal/rank"
	"github.com/pdiddy/cvintra-engine/internal/retrieval"
	"github.com/pdiddy/cvintra-engine/internal/search"
	"github.com/pdiddy/cvintra-engine/internal/validate"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Fetcher finds record ids for a term and fetches record details.
// An empty id list is a valid outcome.
type Fetcher interface {
	Search(ctx context.Context, term string, keywords []string) ([]string, error)
	Fetch(ctx context.Context, id string) (types.Record, error)
}

// Extractor returns the candidate CVintra values in a text, best first.
type Extractor interface {
	Extract(ctx context.Context, text string) []types.ExtractionResult
}

// Cache is the subset of the cache store the orchestrator uses. Lookups
// report misses as false and writes never fail the run.
type Cache interface {
	GetRecord(ctx context.Context, id string) (types.Record, bool)
	PutRecord(ctx context.Context, r types.Record)
	GetExtraction(ctx context.Context, recordID string) (types.ExtractionSummary, bool)
	PutExtraction(ctx context.Context, recordID, queryTerm string, summary types.ExtractionSummary)
	GetQueryResult(ctx context.Context, term string, maxAge time.Duration) (types.QueryResponse, bool)
	PutQueryResult(ctx context.Context, term string, resp types.QueryResponse, ttl time.Duration)
}

// Retriever ranks documents against a query.
type Retriever interface {
	Rank(ctx context.Context, query string, docs []retrieval.Document, topK int) ([]retrieval.Match, error)
}

// Defaults applied by New.
const (
	DefaultWorkers     = 4
	DefaultInsightTopK = 2
)

// insightQueries are the follow-up questions asked of the retriever, with
// the term substituted for %s.
var insightQueries = []string{
	"%s pharmacokinetics",
	"%s CVintra variability",
	"%s bioavailability",
}

// Options configures an Orchestrator. Fetcher and Extractor are required;
// every other collaborator is optional.
type Options struct {
	Fetcher   Fetcher
	Extractor Extractor
	Cache     Cache
	Retriever Retriever
	Ranker    *rank.Ranker
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	Pipeline types.PipelineConfig

	// QueryTTL and MaxAge govern the query-result cache.
	QueryTTL time.Duration
	MaxAge   time.Duration

	// InsightTopK is the number of records kept per follow-up question.
	InsightTopK int
}

// Orchestrator runs queries. It is safe for concurrent use when its
// collaborators are.
type Orchestrator struct {
	fetcher   Fetcher
	extractor Extractor
	cache     Cache
	retriever Retriever
	ranker    *rank.Ranker
	metrics   *metrics.Metrics
	log       *zap.Logger

	method          validate.Method
	dedupeThreshold float64
	workers         int
	queryTTL        time.Duration
	maxAge          time.Duration
	insightTopK     int

	now func() time.Time
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Fetcher == nil {
		return nil, eris.New("pipeline: fetcher is required")
	}
	if opts.Extractor == nil {
		return nil, eris.New("pipeline: extractor is required")
	}
	method, err := validate.ParseMethod(opts.Pipeline.Aggregation)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: aggregation")
	}

	o := &Orchestrator{
		fetcher:         opts.Fetcher,
		extractor:       opts.Extractor,
		cache:           opts.Cache,
		retriever:       opts.Retriever,
		ranker:          opts.Ranker,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		method:          method,
		dedupeThreshold: opts.Pipeline.DedupeThreshold,
		workers:         opts.Pipeline.Workers,
		queryTTL:        opts.QueryTTL,
		maxAge:          opts.MaxAge,
		insightTopK:     opts.InsightTopK,
		now:             time.Now,
	}
	if o.ranker == nil {
		o.ranker = rank.New()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.dedupeThreshold <= 0 {
		o.dedupeThreshold = search.DefaultDedupeThreshold
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	if o.insightTopK <= 0 {
		o.insightTopK = DefaultInsightTopK
	}
	return o, nil
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// Keywords replace the fetcher's configured keywords when non-nil.
	Keywords []string

	// NoCache skips cache lookups. Fresh results are still written.
	NoCache bool

	// Method overrides the configured aggregation method when set.
	Method validate.Method

	// NoFallback marks a run whose extractor has the fallback disabled.
	// Its per-record results are not written to the extraction cache.
	NoFallback bool
}

// bypassesQueryCache reports whether a run departs from the configured
// search or aggregation. Query results are keyed by term alone, so such a
// run neither reads nor writes them.
func (o *Orchestrator) bypassesQueryCache(opts RunOptions) bool {
	if opts.Keywords != nil || opts.NoFallback {
		return true
	}
	return opts.Method != "" && opts.Method != o.method
}

type state int

const (
	stateCacheCheck state = iota
	stateFetch
	stateClassify
	stateExtract
	stateAggregate
	stateRank
	stateCacheWrite
	stateDone
)

var stateNames = [...]string{
	stateCacheCheck: "cache_check",
	stateFetch:      "fetch",
	stateClassify:   "classify_dedupe",
	stateExtract:    "extract",
	stateAggregate:  "aggregate",
	stateRank:       "rank",
	stateCacheWrite: "cache_write",
	stateDone:       "done",
}

func (s state) String() string {
	return stateNames[s]
}

// run carries the working set of one query.
type run struct {
	term    string
	opts    RunOptions
	resp    types.QueryResponse
	records []types.Record
	results []types.ExtractionResult
	agg     types.Aggregate
}

// Run executes the query for term and returns its response.
func (o *Orchestrator) Run(ctx context.Context, term string, opts RunOptions) (resp types.QueryResponse) {
	started := time.Now()
	r := &run{
		term: term,
		opts: opts,
		resp: types.QueryResponse{
			RunID:     uuid.NewString(),
			Term:      term,
			Timestamp: o.now(),
		},
	}
	log := o.log.With(zap.String("term", term), zap.String("run_id", r.resp.RunID))
	current := stateCacheCheck

	defer func() {
		if p := recover(); p != nil {
			o.fail(log, r, current, eris.Errorf("pipeline: panic: %v", p))
		}
		resp = r.resp
		o.metrics.QueryDone(resp.Status, time.Since(started))
		log.Info("pipeline: run finished",
			zap.String("status", string(resp.Status)),
			zap.Int("records", resp.RecordCount),
			zap.Bool("from_cache", resp.FromCache),
			zap.Duration("elapsed", time.Since(started)))
	}()

	if term == "" {
		o.fail(log, r, current, eris.New("pipeline: empty query term"))
		return
	}

	for current != stateDone {
		if err := ctx.Err(); err != nil {
			o.fail(log, r, current, eris.Wrap(err, "pipeline: cancelled"))
			return
		}
		log.Debug("pipeline: entering state", zap.Stringer("state", current))

		next, err := o.step(ctx, log, r, current)
		if err != nil {
			o.fail(log, r, current, err)
			return
		}
		current = next
	}
	return
}

func (o *Orchestrator) step(ctx context.Context, log *zap.Logger, r *run, s state) (state, error) {
	switch s {
	case stateCacheCheck:
		return o.cacheCheck(ctx, r), nil
	case stateFetch:
		return o.fetch(ctx, log, r)
	case stateClassify:
		return o.classify(r), nil
	case stateExtract:
		return o.extract(ctx, r)
	case stateAggregate:
		return o.aggregate(r), nil
	case stateRank:
		return o.rank(ctx, log, r), nil
	case stateCacheWrite:
		if o.cache != nil && !o.bypassesQueryCache(r.opts) {
			o.cache.PutQueryResult(ctx, r.term, r.resp, o.queryTTL)
		}
		return stateDone, nil
	}
	return stateDone, eris.Errorf("pipeline: unknown state %d", s)
}

func (o *Orchestrator) fail(log *zap.Logger, r *run, s state, err error) {
	log.Error("pipeline: run failed", zap.Stringer("state", s), zap.Error(err))
	r.resp.Status = types.StatusError
	r.resp.Error = err.Error()
	r.resp.AggregatedValue = nil
	r.resp.AggregatedConfidence = 0
	r.resp.Recommendation = nil
}

func (o *Orchestrator) cacheCheck(ctx context.Context, r *run) state {
	if o.cache == nil || r.opts.NoCache || o.bypassesQueryCache(r.opts) {
		return stateFetch
	}
	cached, ok := o.cache.GetQueryResult(ctx, r.term, o.maxAge)
	if !ok {
		return stateFetch
	}
	cached.FromCache = true
	r.resp = cached
	return stateDone
}

func (o *Orchestrator) fetch(ctx context.Context, log *zap.Logger, r *run) (state, error) {
	ids, err := o.fetcher.Search(ctx, r.term, r.opts.Keywords)
	if err != nil {
		return stateDone, eris.Wrap(err, "pipeline: searching records")
	}
	if len(ids) == 0 {
		o.notFound(r)
		return stateDone, nil
	}

	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stateDone, eris.Wrap(err, "pipeline: fetching records")
		}
		if o.cache != nil && !r.opts.NoCache {
			if rec, ok := o.cache.GetRecord(ctx, id); ok {
				r.records = append(r.records, rec)
				continue
			}
		}
		rec, err := o.fetcher.Fetch(ctx, id)
		if err != nil {
			failed++
			log.Warn("pipeline: skipping record", zap.String("record_id", id), zap.Error(err))
			continue
		}
		if o.cache != nil {
			o.cache.PutRecord(ctx, rec)
		}
		r.records = append(r.records, rec)
	}

	if len(r.records) == 0 {
		return stateDone, eris.Errorf("pipeline: all %d record fetches failed", failed)
	}
	return stateClassify, nil
}

func (o *Orchestrator) notFound(r *run) {
	r.resp.Status = types.StatusNotFound
	r.resp.Records = []types.RecordView{}
	r.resp.RankedSources = []types.SourceEntry{}
}

func (o *Orchestrator) classify(r *run) state {
	for i := range r.records {
		r.records[i] = search.Classify(r.records[i])
	}
	kept, removed := search.Deduplicate(r.records, o.dedupeThreshold)
	r.records = kept
	r.resp.RecordCount = len(kept)
	r.resp.DuplicatesRemoved = removed
	r.resp.Records = make([]types.RecordView, len(kept))
	for i, rec := range kept {
		r.resp.Records[i] = rec.View()
	}
	return stateExtract
}

// extract runs per-record extraction with bounded concurrency. Results
// are collected in record order regardless of completion order.
func (o *Orchestrator) extract(ctx context.Context, r *run) (state, error) {
	perRecord := make([][]types.ExtractionResult, len(r.records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, rec := range r.records {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = eris.Errorf("pipeline: extracting record %s: panic: %v", rec.ID, p)
				}
			}()
			perRecord[i] = o.extractRecord(gctx, r, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stateDone, err
	}

	for _, results := range perRecord {
		r.results = append(r.results, results...)
	}
	return stateAggregate, nil
}

func (o *Orchestrator) extractRecord(ctx context.Context, r *run, rec types.Record) []types.ExtractionResult {
	if o.cache != nil && !r.opts.NoCache {
		if summary, ok := o.cache.GetExtraction(ctx, rec.ID); ok {
			return summary.Results
		}
	}

	results := o.extractor.Extract(ctx, rec.Text())
	for i := range results {
		results[i] = results[i].WithSource(rec.ID, rec.URL)
	}

	if o.cache != nil && !r.opts.NoFallback && ctx.Err() == nil {
		o.cache.PutExtraction(ctx, rec.ID, r.term, types.ExtractionSummary{Results: results})
	}
	return results
}

func (o *Orchestrator) aggregate(r *run) state {
	method := o.method
	if r.opts.Method != "" {
		method = r.opts.Method
	}
	r.agg = validate.Aggregate(r.results, method)
	r.resp.AggregatedValue = r.agg.Value
	r.resp.AggregatedConfidence = r.agg.Confidence
	return stateRank
}

func (o *Orchestrator) rank(ctx context.Context, log *zap.Logger, r *run) state {
	byID := make(map[string]types.Record, len(r.records))
	for _, rec := range r.records {
		byID[rec.ID] = rec
	}

	sources := make([]types.SourceEntry, len(r.agg.Sources))
	for i, s := range r.agg.Sources {
		if rec, ok := byID[s.RecordID]; ok {
			s.ArticleType = rec.ArticleType
			s.SubjectType = rec.SubjectType
			s.Year = rec.Year
		}
		sources[i] = s
	}
	r.resp.RankedSources = o.ranker.Rank(sources)

	r.resp.Insights = o.insights(ctx, log, r)

	if r.agg.Value != nil {
		rec, err := design.Recommend(*r.agg.Value)
		if err != nil {
			log.Warn("pipeline: design recommendation", zap.Error(err))
		} else {
			r.resp.Recommendation = &rec
		}
	}

	r.resp.Status = types.StatusSuccess
	return stateCacheWrite
}
