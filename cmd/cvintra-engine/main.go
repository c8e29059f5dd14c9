// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the cvintra-engine CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/internal/config"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Loaded by the root command before any subcommand runs.
var (
	cfg    *types.Config
	logger = zap.NewNop()
)

// rootCmd is the base command for the cvintra-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "cvintra-engine",
	Short: "Find intra-subject variability (CVintra) of drugs in the literature",
	Long: `cvintra-engine searches PubMed for a drug, extracts reported intra-subject
coefficients of variation from titles and abstracts, aggregates them into one
estimate ranked by source reliability, and suggests a bioequivalence study
design for the result.

Results, records and per-record extractions are cached in SQLite so repeated
queries do not hit PubMed or the fallback model again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		secrets, err := config.LoadSecrets(secretsDir, nil)
		if err != nil {
			return err
		}
		config.ApplySecrets(loaded, secrets)

		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			loaded.Log.Level = "debug"
		}
		l, err := config.InitLogger(loaded.Log)
		if err != nil {
			return err
		}

		cfg, logger = loaded, l
		logger.Debug("configuration loaded",
			zap.String("cache", cfg.Cache.Path),
			zap.Bool("fallback", cfg.Fallback.Enabled && cfg.Fallback.APIKey != ""),
			zap.Int("secrets", len(secrets)))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./cvintra-engine.yaml or ~/.config/cvintra-engine/cvintra-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", config.DefaultSecretsDir, "directory holding one credential per file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
