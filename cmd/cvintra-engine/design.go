// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/cvintra-engine/internal/design"
	"github.com/pdiddy/cvintra-engine/internal/pipeline"
)

var designCmd = &cobra.Command{
	Use:   "design <cv>",
	Short: "Suggest a bioequivalence study design for a CVintra value",
	Long: `Design maps a CVintra (in percent, e.g. 35 or 35%) to a crossover or
replicate design, its acceptance limits and an estimated sample size.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		cv, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(args[0]), "%"), 64)
		if err != nil {
			return eris.Wrapf(err, "parsing CVintra %q", args[0])
		}
		rec, err := design.Recommend(cv)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		switch format {
		case pipeline.FormatJSON:
			return pipeline.WriteJSON(rec, w)
		case pipeline.FormatYAML:
			return pipeline.WriteYAML(rec, w)
		}
		pipeline.WriteDesign(rec, w)
		return nil
	},
}

func init() {
	designCmd.Flags().String("format", pipeline.FormatTable, "output format: table, json, yaml")

	rootCmd.AddCommand(designCmd)
}
