// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Config is the full runtime configuration loaded by internal/config.
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	PubMed    PubMedConfig    `json:"pubmed" yaml:"pubmed" mapstructure:"pubmed"`
	Fallback  FallbackConfig  `json:"fallback" yaml:"fallback" mapstructure:"fallback"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// HTTPConfig holds shared HTTP settings for network collaborators.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "cvintra-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds the backoff attempts on HTTP 429 responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig holds settings for the SQLite cache.
type CacheConfig struct {
	// Enabled turns the cache off entirely when false.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file (default cache/cvintra.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// QueryTTL is how long a stored query result stays valid (default 24h).
	QueryTTL time.Duration `json:"query_ttl" yaml:"query_ttl" mapstructure:"query_ttl"`

	// MaxAge is the oldest query result a lookup accepts (default 24h).
	MaxAge time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`

	// PurgeAge is the age past which maintenance removes records and
	// extractions (default 30 days).
	PurgeAge time.Duration `json:"purge_age" yaml:"purge_age" mapstructure:"purge_age"`
}

// PubMedConfig holds settings for the E-utilities fetch collaborator.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the E-utilities root.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Email identifies the caller to NCBI.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// APIKey raises the NCBI request quota when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxIDs is the esearch retmax (default 20).
	MaxIDs int `json:"max_ids" yaml:"max_ids" mapstructure:"max_ids"`

	// MaxRecords is how many of the returned ids get a detail fetch (default 10).
	MaxRecords int `json:"max_records" yaml:"max_records" mapstructure:"max_records"`

	// Keywords are OR-ed and AND-ed with the query term.
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`

	// Delay is the spacing between consecutive requests without an API key.
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// KeyedDelay is the spacing used when APIKey is set.
	KeyedDelay time.Duration `json:"keyed_delay" yaml:"keyed_delay" mapstructure:"keyed_delay"`
}

// RequestDelay returns the inter-request spacing for the configured quota.
func (c PubMedConfig) RequestDelay() time.Duration {
	if c.APIKey != "" {
		return c.KeyedDelay
	}
	return c.Delay
}

// FallbackConfig holds settings for the model-based fallback extractor.
type FallbackConfig struct {
	// Enabled turns the fallback off when false.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Model is the Anthropic model identifier (e.g. "claude-haiku-4-5-20251001").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the Anthropic API key. Without it the fallback is unavailable.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Timeout bounds a single fallback call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens caps the response length.
	MaxTokens int64 `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxConcurrency bounds simultaneous fallback calls.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// FallbackThreshold is the best pattern confidence below which the
	// fallback extractor is consulted (default 0.8).
	FallbackThreshold float64 `json:"fallback_threshold" yaml:"fallback_threshold" mapstructure:"fallback_threshold"`

	// Aggregation is weighted_mean, median or mean.
	Aggregation string `json:"aggregation" yaml:"aggregation" mapstructure:"aggregation"`

	// DedupeThreshold is the title similarity at which records merge (default 0.85).
	DedupeThreshold float64 `json:"dedupe_threshold" yaml:"dedupe_threshold" mapstructure:"dedupe_threshold"`

	// Workers bounds concurrent per-record extraction.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// AbstractOnly truncates fallback input to the abstract-sized prefix.
	AbstractOnly bool `json:"abstract_only" yaml:"abstract_only" mapstructure:"abstract_only"`
}

// RetrievalConfig holds settings for semantic insights.
type RetrievalConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// TopK is the number of records returned per follow-up question.
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// Dimensions is the size of the hashing embedding.
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
}
