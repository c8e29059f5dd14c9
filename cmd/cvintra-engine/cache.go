// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/cvintra-engine/internal/cache"
	"github.com/pdiddy/cvintra-engine/internal/pipeline"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove old records, extractions and expired query results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			olderThan = cfg.Cache.PurgeAge
		}

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := store.Purge(runContext(cmd), olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries older than %s (%d records, %d extractions, %d query results)\n",
			summary.Total(), durationDays(olderThan), summary.Records, summary.Extractions, summary.QueryResults)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <drug>",
	Short: "Print the cached query result for a drug",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		format, _ := cmd.Flags().GetString("format")

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		resp, ok := store.GetQueryResult(runContext(cmd), term, cfg.Cache.MaxAge)
		if !ok {
			return eris.Errorf("no cached result for %q", term)
		}
		resp.FromCache = true
		return pipeline.Write(resp, format, cmd.OutOrStdout())
	},
}

func init() {
	cachePurgeCmd.Flags().Duration("older-than", 0, "age past which records and extractions are removed (default cache.purge_age)")
	cacheShowCmd.Flags().String("format", pipeline.FormatTable, "output format: table, json, yaml")

	cacheCmd.AddCommand(cachePurgeCmd, cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, eris.New("cache is disabled (cache.enabled=false)")
	}
	return cache.Open(cfg.Cache.Path, cache.Options{Logger: logger})
}

// durationDays formats d in whole days when it divides evenly.
func durationDays(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}
