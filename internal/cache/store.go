// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists fetched records, per-record extraction summaries
// and whole query responses in SQLite so repeated queries skip the network
// and the extractors.
//
// Storage failures never reach the caller of a get or put: they are logged
// and treated as a miss or a skipped write. Only Open and Purge return
// errors.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Defaults for query-result freshness and record maintenance.
const (
	DefaultQueryTTL = 24 * time.Hour
	DefaultMaxAge   = 24 * time.Hour
	DefaultPurgeAge = 30 * 24 * time.Hour
)

// Store is a SQLite-backed cache with three namespaces: records keyed by
// record id, extraction summaries keyed by record id and query term, and
// query responses keyed by query term.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// Options configures a Store.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string, opts Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "creating cache directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "opening cache database")
	}
	db.SetMaxOpenConns(1)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Store{
		db:      db,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating cache schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			record_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			cached_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extractions (
			cache_key TEXT PRIMARY KEY,
			record_id TEXT NOT NULL,
			query_term TEXT NOT NULL,
			payload TEXT NOT NULL,
			cached_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_record ON extractions(record_id, cached_at)`,
		`CREATE TABLE IF NOT EXISTS query_results (
			cache_key TEXT PRIMARY KEY,
			query_term TEXT NOT NULL,
			payload TEXT NOT NULL,
			cached_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// hashKey returns the hex SHA-256 of the joined parts.
func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// normalizeTerm makes query keys insensitive to case and surrounding space.
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// --- records ---

// PutRecord stores r, replacing any earlier copy.
func (s *Store) PutRecord(ctx context.Context, r types.Record) {
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Warn("cache: encoding record", zap.String("record_id", r.ID), zap.Error(err))
		return
	}
	s.exec(ctx, "record", `INSERT INTO records (record_id, payload, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		r.ID, string(payload), s.now().UnixNano())
}

// GetRecord returns the cached record for id.
func (s *Store) GetRecord(ctx context.Context, id string) (types.Record, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE record_id = ?`, id).Scan(&payload)
	var r types.Record
	hit := s.decode(err, payload, &r, "record", id)
	s.metrics.CacheLookup(metrics.NamespaceRecords, hit)
	if !hit {
		return types.Record{}, false
	}
	return r, true
}

// --- extractions ---

// PutExtraction stores the extraction summary for a record under a query
// term. The summary's RecordID, QueryTerm and CachedAt are overwritten.
func (s *Store) PutExtraction(ctx context.Context, recordID, queryTerm string, summary types.ExtractionSummary) {
	now := s.now()
	summary.RecordID = recordID
	summary.QueryTerm = queryTerm
	summary.CachedAt = now

	payload, err := json.Marshal(summary)
	if err != nil {
		s.log.Warn("cache: encoding extraction", zap.String("record_id", recordID), zap.Error(err))
		return
	}
	s.exec(ctx, "extraction", `INSERT INTO extractions (cache_key, record_id, query_term, payload, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		hashKey(recordID, normalizeTerm(queryTerm)), recordID, queryTerm, string(payload), now.UnixNano())
}

// GetExtraction returns the most recently stored extraction summary for
// recordID under any query term.
func (s *Store) GetExtraction(ctx context.Context, recordID string) (types.ExtractionSummary, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM extractions WHERE record_id = ? ORDER BY cached_at DESC LIMIT 1`,
		recordID).Scan(&payload)
	var summary types.ExtractionSummary
	hit := s.decode(err, payload, &summary, "extraction", recordID)
	s.metrics.CacheLookup(metrics.NamespaceExtractions, hit)
	if !hit {
		return types.ExtractionSummary{}, false
	}
	return summary, true
}

// --- query results ---

// PutQueryResult stores resp for term, valid for ttl. A ttl of zero or
// less uses DefaultQueryTTL.
func (s *Store) PutQueryResult(ctx context.Context, term string, resp types.QueryResponse, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.log.Warn("cache: encoding query result", zap.String("term", term), zap.Error(err))
		return
	}
	now := s.now()
	s.exec(ctx, "query result", `INSERT INTO query_results (cache_key, query_term, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		hashKey(normalizeTerm(term)), term, string(payload), now.UnixNano(), now.Add(ttl).UnixNano())
}

// GetQueryResult returns the stored response for term. An entry at or past
// its expiry is deleted and reported as a miss. An unexpired entry older
// than maxAge is reported as a miss but kept. A maxAge of zero or less
// uses DefaultMaxAge.
func (s *Store) GetQueryResult(ctx context.Context, term string, maxAge time.Duration) (types.QueryResponse, bool) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	key := hashKey(normalizeTerm(term))

	var (
		payload   string
		cachedAt  int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, cached_at, expires_at FROM query_results WHERE cache_key = ?`,
		key).Scan(&payload, &cachedAt, &expiresAt)

	var resp types.QueryResponse
	if err == nil {
		now := s.now()
		switch {
		case now.UnixNano() >= expiresAt:
			s.exec(ctx, "expired query result", `DELETE FROM query_results WHERE cache_key = ?`, key)
			s.metrics.CacheLookup(metrics.NamespaceQueries, false)
			return resp, false
		case now.Sub(time.Unix(0, cachedAt)) >= maxAge:
			s.metrics.CacheLookup(metrics.NamespaceQueries, false)
			return resp, false
		}
	}

	hit := s.decode(err, payload, &resp, "query result", term)
	s.metrics.CacheLookup(metrics.NamespaceQueries, hit)
	if !hit {
		return types.QueryResponse{}, false
	}
	return resp, true
}

// --- maintenance ---

// PurgeSummary counts rows removed by Purge.
type PurgeSummary struct {
	Records      int64
	Extractions  int64
	QueryResults int64
}

// Total returns the number of rows removed.
func (p PurgeSummary) Total() int64 {
	return p.Records + p.Extractions + p.QueryResults
}

// Purge removes records and extraction summaries cached more than olderThan
// ago, and every expired query result. A non-positive olderThan uses
// DefaultPurgeAge.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (PurgeSummary, error) {
	if olderThan <= 0 {
		olderThan = DefaultPurgeAge
	}
	now := s.now()
	cutoff := now.Add(-olderThan).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PurgeSummary{}, eris.Wrap(err, "beginning purge transaction")
	}
	defer tx.Rollback()

	var summary PurgeSummary
	steps := []struct {
		query string
		arg   int64
		count *int64
	}{
		{`DELETE FROM records WHERE cached_at < ?`, cutoff, &summary.Records},
		{`DELETE FROM extractions WHERE cached_at < ?`, cutoff, &summary.Extractions},
		{`DELETE FROM query_results WHERE expires_at <= ?`, now.UnixNano(), &summary.QueryResults},
	}
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query, step.arg)
		if err != nil {
			return PurgeSummary{}, eris.Wrap(err, "purging cache")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return PurgeSummary{}, eris.Wrap(err, "counting purged rows")
		}
		*step.count = n
	}

	if err := tx.Commit(); err != nil {
		return PurgeSummary{}, eris.Wrap(err, "committing purge")
	}
	s.log.Info("cache: purge complete",
		zap.Int64("records", summary.Records),
		zap.Int64("extractions", summary.Extractions),
		zap.Int64("query_results", summary.QueryResults))
	return summary, nil
}

// exec runs a write under the store mutex. Failures are logged and dropped.
func (s *Store) exec(ctx context.Context, what, query string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.log.Warn("cache: write skipped", zap.String("entry", what), zap.Error(err))
	}
}

// decode unmarshals a row payload. Missing rows are a silent miss; any
// other failure is logged and also a miss.
func (s *Store) decode(err error, payload string, dst any, what, key string) bool {
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("cache: read failed", zap.String("entry", what), zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		s.log.Warn("cache: corrupt entry", zap.String("entry", what), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
