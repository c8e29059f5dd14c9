// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads runtime configuration from a YAML file, CVINTRA_*
// environment variables and the .secrets/ directory, and builds the zap
// logger.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Name is the config file base name searched for when no path is given.
const Name = "cvintra-engine"

// EnvPrefix prefixes environment overrides, e.g. CVINTRA_CACHE_PATH.
const EnvPrefix = "CVINTRA"

// Load reads configuration. An explicit path must exist; otherwise
// cvintra-engine.yaml is looked up in the working directory and in
// ~/.config/cvintra-engine/, and a missing file leaves the defaults.
func Load(path string) (*types.Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join("cache", "cvintra.db"))
	v.SetDefault("cache.query_ttl", 24*time.Hour)
	v.SetDefault("cache.max_age", 24*time.Hour)
	v.SetDefault("cache.purge_age", 30*24*time.Hour)

	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.api_key", "")
	v.SetDefault("pubmed.max_ids", 20)
	v.SetDefault("pubmed.max_records", 10)
	v.SetDefault("pubmed.keywords", []string{"pharmacokinetics", "bioequivalence", "Cmax", "AUC"})
	v.SetDefault("pubmed.delay", 500*time.Millisecond)
	v.SetDefault("pubmed.keyed_delay", 100*time.Millisecond)
	v.SetDefault("pubmed.timeout", 30*time.Second)
	v.SetDefault("pubmed.max_retries", 0)
	v.SetDefault("pubmed.user_agent", "cvintra-engine/0.1")

	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.model", "claude-haiku-4-5-20251001")
	v.SetDefault("fallback.api_key", "")
	v.SetDefault("fallback.timeout", 30*time.Second)
	v.SetDefault("fallback.max_tokens", 512)
	v.SetDefault("fallback.max_concurrency", 2)

	v.SetDefault("pipeline.fallback_threshold", 0.8)
	v.SetDefault("pipeline.aggregation", "weighted_mean")
	v.SetDefault("pipeline.dedupe_threshold", 0.85)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.abstract_only", true)

	v.SetDefault("retrieval.enabled", true)
	v.SetDefault("retrieval.top_k", 2)
	v.SetDefault("retrieval.dimensions", 256)
}

// Validate rejects settings no component can run with.
func Validate(cfg *types.Config) error {
	p := cfg.Pipeline
	if p.FallbackThreshold < 0 || p.FallbackThreshold > 1 {
		return eris.Errorf("config: pipeline.fallback_threshold %v outside [0, 1]", p.FallbackThreshold)
	}
	if p.DedupeThreshold <= 0 || p.DedupeThreshold > 1 {
		return eris.Errorf("config: pipeline.dedupe_threshold %v outside (0, 1]", p.DedupeThreshold)
	}
	switch p.Aggregation {
	case "weighted_mean", "median", "mean":
	default:
		return eris.Errorf("config: unknown pipeline.aggregation %q", p.Aggregation)
	}
	if cfg.PubMed.MaxRetries < 0 {
		return eris.New("config: pubmed.max_retries must not be negative")
	}
	if cfg.Cache.Enabled && cfg.Cache.Path == "" {
		return eris.New("config: cache.path is required when the cache is enabled")
	}
	return nil
}

// InitLogger builds the logger described by cfg and installs it as the
// zap global. "json" selects the production encoder, anything else the
// development console encoder.
func InitLogger(cfg types.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, eris.Wrap(err, "config: parse log level")
		}
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
