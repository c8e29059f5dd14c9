// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/internal/cache"
	"github.com/pdiddy/cvintra-engine/internal/extract"
	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/internal/pipeline"
	"github.com/pdiddy/cvintra-engine/internal/retrieval"
	"github.com/pdiddy/cvintra-engine/internal/search"
	"github.com/pdiddy/cvintra-engine/internal/validate"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <drug>",
	Short: "Look up the CVintra of a drug",
	Long: `Query searches PubMed for the drug combined with the configured keywords,
extracts CVintra values from each record, and prints the aggregated estimate,
the contributing sources by reliability, and a study design suggestion.

A fresh cached result is returned without contacting PubMed unless --no-cache
is given. The exit status is non-zero only when the run ends in error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("keywords", "", "keywords OR-ed into the search (comma-separated, default from config)")
	queryCmd.Flags().String("format", pipeline.FormatTable, "output format: table, json, yaml")
	queryCmd.Flags().Bool("no-cache", false, "ignore cached results and fetch again")
	queryCmd.Flags().Bool("no-fallback", false, "use pattern extraction only")
	queryCmd.Flags().String("method", "", "aggregation: weighted_mean, median, mean (default from config)")
	queryCmd.Flags().String("metrics-file", "", "write Prometheus metrics for the run to this file")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	term := strings.Join(args, " ")
	format, _ := cmd.Flags().GetString("format")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	noFallback, _ := cmd.Flags().GetBool("no-fallback")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	opts := pipeline.RunOptions{NoCache: noCache, NoFallback: noFallback}
	if kw, _ := cmd.Flags().GetString("keywords"); kw != "" {
		opts.Keywords = splitList(kw)
	}
	if m, _ := cmd.Flags().GetString("method"); m != "" {
		method, err := validate.ParseMethod(m)
		if err != nil {
			return err
		}
		opts.Method = method
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	orch, closeFn, err := buildOrchestrator(cfg, m, noFallback)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt)
	defer stop()

	resp := orch.Run(ctx, term, opts)

	if err := pipeline.Write(resp, format, cmd.OutOrStdout()); err != nil {
		return err
	}
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return eris.Wrapf(err, "writing metrics to %s", metricsFile)
		}
	}
	if resp.Status == types.StatusError {
		return eris.Errorf("query %q failed: %s", term, resp.Error)
	}
	return nil
}

// buildOrchestrator wires the collaborators described by c. The returned
// func releases the cache.
func buildOrchestrator(c *types.Config, m *metrics.Metrics, noFallback bool) (*pipeline.Orchestrator, func(), error) {
	closeFn := func() {}

	var store pipeline.Cache
	if c.Cache.Enabled {
		s, err := cache.Open(c.Cache.Path, cache.Options{Metrics: m, Logger: logger})
		if err != nil {
			// The cache is an optimization; run without it.
			logger.Warn("cache unavailable", zap.String("path", c.Cache.Path), zap.Error(err))
		} else {
			store = s
			closeFn = func() {
				if err := s.Close(); err != nil {
					logger.Warn("closing cache", zap.Error(err))
				}
			}
		}
	}

	var retriever pipeline.Retriever
	if c.Retrieval.Enabled {
		retriever = retrieval.NewCoordinator(retrieval.NewHashEmbedder(c.Retrieval.Dimensions), logger)
	}

	orch, err := pipeline.New(pipeline.Options{
		Fetcher:     search.NewPubMed(c.PubMed, logger),
		Extractor:   newExtractor(c, m, noFallback),
		Cache:       store,
		Retriever:   retriever,
		Metrics:     m,
		Logger:      logger,
		Pipeline:    c.Pipeline,
		QueryTTL:    c.Cache.QueryTTL,
		MaxAge:      c.Cache.MaxAge,
		InsightTopK: c.Retrieval.TopK,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return orch, closeFn, nil
}

func newExtractor(c *types.Config, m *metrics.Metrics, noFallback bool) *extract.Hybrid {
	var svc extract.Service
	if !noFallback {
		svc = extract.ConfiguredService(c.Fallback)
	}
	fallback := extract.NewFallbackExtractor(svc, extract.FallbackOptions{
		Timeout:        c.Fallback.Timeout,
		MaxConcurrency: c.Fallback.MaxConcurrency,
		Metrics:        m,
		Logger:         logger,
	})
	return extract.NewHybrid(extract.NewPatternExtractor(extract.DefaultPatterns, logger), fallback, extract.HybridOptions{
		Threshold:    c.Pipeline.FallbackThreshold,
		AbstractOnly: c.Pipeline.AbstractOnly,
		Metrics:      m,
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// runContext returns the command context, or a background context when
// the command was executed without one.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
