// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// --- test helpers ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testStore(t *testing.T) (*Store, *testClock, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cvintra.db"), Options{Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := &testClock{t: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	return s, clock, m
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func sampleResponse(term string) types.QueryResponse {
	return types.QueryResponse{
		RunID:                "run-1",
		Term:                 term,
		Status:               types.StatusSuccess,
		RecordCount:          2,
		AggregatedValue:      types.Float(23.4),
		AggregatedConfidence: 0.81,
		RankedSources: []types.SourceEntry{
			{URL: "https://pubmed.ncbi.nlm.nih.gov/1/", Method: types.MethodPattern, RecordID: "1", Value: 23.4, Confidence: 0.95, ReliabilityScore: 0.93},
		},
		Records: []types.RecordView{
			{ID: "1", Title: "Aspirin BE", Year: 2021, ArticleType: types.ArticleClinicalTrial, SubjectType: types.SubjectHuman},
		},
		Timestamp: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

// --- records ---

func TestRecords_RoundTripAndUpsert(t *testing.T) {
	s, _, m := testStore(t)
	ctx := context.Background()

	_, ok := s.GetRecord(ctx, "42")
	assert.False(t, ok)

	rec := types.Record{ID: "42", Title: "First title", Authors: []string{"Smith J"}, Year: 2020, URL: "https://pubmed.ncbi.nlm.nih.gov/42/"}
	s.PutRecord(ctx, rec)

	got, ok := s.GetRecord(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	rec.Title = "Corrected title"
	s.PutRecord(ctx, rec)
	got, ok = s.GetRecord(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "Corrected title", got.Title)
	assert.Equal(t, 1, countRows(t, s, "records"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.NamespaceRecords, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.NamespaceRecords, "miss")))
}

// --- extractions ---

func TestExtractions_LatestWinsAcrossTerms(t *testing.T) {
	s, clock, _ := testStore(t)
	ctx := context.Background()

	s.PutExtraction(ctx, "7", "aspirin", types.ExtractionSummary{
		Results: []types.ExtractionResult{{Value: types.Float(20), Confidence: 0.9, Method: types.MethodPattern}},
	})
	clock.Advance(time.Minute)
	s.PutExtraction(ctx, "7", "acetylsalicylic acid", types.ExtractionSummary{
		Results: []types.ExtractionResult{{Value: types.Float(22), Confidence: 0.7, Method: types.MethodFallback}},
	})

	got, ok := s.GetExtraction(ctx, "7")
	require.True(t, ok)
	assert.Equal(t, "7", got.RecordID)
	assert.Equal(t, "acetylsalicylic acid", got.QueryTerm)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 22.0, *got.Results[0].Value)
	assert.Equal(t, 2, countRows(t, s, "extractions"))

	// Rewriting the older key makes it the latest.
	clock.Advance(time.Minute)
	s.PutExtraction(ctx, "7", "ASPIRIN ", types.ExtractionSummary{})
	got, ok = s.GetExtraction(ctx, "7")
	require.True(t, ok)
	assert.Equal(t, "ASPIRIN ", got.QueryTerm)
	assert.Empty(t, got.Results)
	assert.Equal(t, 2, countRows(t, s, "extractions"))

	_, ok = s.GetExtraction(ctx, "unknown")
	assert.False(t, ok)
}

// --- query results ---

func TestQueryResults_RoundTripBeforeTTL(t *testing.T) {
	s, clock, _ := testStore(t)
	ctx := context.Background()

	want := sampleResponse("aspirin")
	s.PutQueryResult(ctx, "aspirin", want, time.Hour)
	clock.Advance(59 * time.Minute)

	got, ok := s.GetQueryResult(ctx, "Aspirin", 0)
	require.True(t, ok)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	got.Timestamp = want.Timestamp
	assert.Equal(t, want, got)
}

func TestQueryResults_ExpiredIsDeleted(t *testing.T) {
	s, clock, m := testStore(t)
	ctx := context.Background()

	s.PutQueryResult(ctx, "aspirin", sampleResponse("aspirin"), time.Hour)
	clock.Advance(time.Hour)

	_, ok := s.GetQueryResult(ctx, "aspirin", 48*time.Hour)
	assert.False(t, ok)
	assert.Equal(t, 0, countRows(t, s, "query_results"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.NamespaceQueries, "miss")))
}

func TestQueryResults_MaxAgeMissKeepsEntry(t *testing.T) {
	s, clock, _ := testStore(t)
	ctx := context.Background()

	s.PutQueryResult(ctx, "aspirin", sampleResponse("aspirin"), 48*time.Hour)
	clock.Advance(2 * time.Hour)

	_, ok := s.GetQueryResult(ctx, "aspirin", time.Hour)
	assert.False(t, ok)
	assert.Equal(t, 1, countRows(t, s, "query_results"))

	_, ok = s.GetQueryResult(ctx, "aspirin", 24*time.Hour)
	assert.True(t, ok)
}

func TestQueryResults_DefaultTTL(t *testing.T) {
	s, clock, _ := testStore(t)
	ctx := context.Background()

	s.PutQueryResult(ctx, "aspirin", sampleResponse("aspirin"), 0)
	clock.Advance(DefaultQueryTTL - time.Second)
	_, ok := s.GetQueryResult(ctx, "aspirin", 0)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.GetQueryResult(ctx, "aspirin", 0)
	assert.False(t, ok)
}

// --- maintenance ---

func TestPurge(t *testing.T) {
	s, clock, _ := testStore(t)
	ctx := context.Background()

	s.PutRecord(ctx, types.Record{ID: "old"})
	s.PutExtraction(ctx, "old", "aspirin", types.ExtractionSummary{})
	s.PutQueryResult(ctx, "aspirin", sampleResponse("aspirin"), time.Hour)

	clock.Advance(31 * 24 * time.Hour)
	s.PutRecord(ctx, types.Record{ID: "new"})
	s.PutExtraction(ctx, "new", "aspirin", types.ExtractionSummary{})
	s.PutQueryResult(ctx, "ibuprofen", sampleResponse("ibuprofen"), time.Hour)

	summary, err := s.Purge(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, PurgeSummary{Records: 1, Extractions: 1, QueryResults: 1}, summary)
	assert.Equal(t, int64(3), summary.Total())

	_, ok := s.GetRecord(ctx, "old")
	assert.False(t, ok)
	_, ok = s.GetRecord(ctx, "new")
	assert.True(t, ok)
	_, ok = s.GetExtraction(ctx, "new")
	assert.True(t, ok)
	_, ok = s.GetQueryResult(ctx, "ibuprofen", 0)
	assert.True(t, ok)
}

// --- degraded operation ---

func TestStorageErrorsDegradeToMiss(t *testing.T) {
	s, _, _ := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())

	assert.NotPanics(t, func() {
		s.PutRecord(ctx, types.Record{ID: "1"})
		s.PutExtraction(ctx, "1", "aspirin", types.ExtractionSummary{})
		s.PutQueryResult(ctx, "aspirin", sampleResponse("aspirin"), time.Hour)
	})

	_, ok := s.GetRecord(ctx, "1")
	assert.False(t, ok)
	_, ok = s.GetExtraction(ctx, "1")
	assert.False(t, ok)
	_, ok = s.GetQueryResult(ctx, "aspirin", 0)
	assert.False(t, ok)

	_, err := s.Purge(ctx, 0)
	assert.Error(t, err)
}

func TestCorruptPayloadIsMiss(t *testing.T) {
	s, _, _ := testStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO records (record_id, payload, cached_at) VALUES ('bad', '{not json', 0)`)
	require.NoError(t, err)

	_, ok := s.GetRecord(ctx, "bad")
	assert.False(t, ok)
}

func TestConcurrentWritesSameKey(t *testing.T) {
	s, _, _ := testStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.PutRecord(ctx, types.Record{ID: "shared", Title: fmt.Sprintf("title %d", i)})
			s.GetRecord(ctx, "shared")
		}(i)
	}
	wg.Wait()

	got, ok := s.GetRecord(ctx, "shared")
	require.True(t, ok)
	assert.Contains(t, got.Title, "title ")
	assert.Equal(t, 1, countRows(t, s, "records"))
}
