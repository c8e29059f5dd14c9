// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/cvintra-engine/internal/metrics"
	"github.com/pdiddy/cvintra-engine/internal/pipeline"
	"github.com/pdiddy/cvintra-engine/internal/validate"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract CVintra values from free text",
	Long: `Extract runs pattern extraction, and the fallback model when patterns are
weak or absent, over the text of a file or standard input. It prints every
candidate value and the aggregate over the valid ones.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		noFallback, _ := cmd.Flags().GetBool("no-fallback")

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return eris.New("extract: no input text")
		}

		method, err := validate.ParseMethod(cfg.Pipeline.Aggregation)
		if err != nil {
			return err
		}

		x := newExtractor(cfg, metrics.New(prometheus.NewRegistry()), noFallback)
		results := x.Extract(runContext(cmd), text)
		out := extractOutput{
			Results:   results,
			Aggregate: validate.Aggregate(results, method),
		}

		w := cmd.OutOrStdout()
		switch format {
		case pipeline.FormatJSON:
			return pipeline.WriteJSON(out, w)
		case pipeline.FormatYAML:
			return pipeline.WriteYAML(out, w)
		}
		writeExtractTable(out, w)
		return nil
	},
}

type extractOutput struct {
	Results   []types.ExtractionResult `json:"results" yaml:"results"`
	Aggregate types.Aggregate          `json:"aggregate" yaml:"aggregate"`
}

func init() {
	extractCmd.Flags().String("format", pipeline.FormatTable, "output format: table, json, yaml")
	extractCmd.Flags().Bool("no-fallback", false, "use pattern extraction only")

	rootCmd.AddCommand(extractCmd)
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), eris.Wrap(err, "reading standard input")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", eris.Wrapf(err, "reading %s", args[0])
	}
	return string(data), nil
}

func writeExtractTable(out extractOutput, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No CVintra values found.")
		return
	}
	fmt.Fprintf(w, "%-8s  %-6s  %-8s  %s\n", "Value", "Conf", "Method", "Evidence")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range out.Results {
		fmt.Fprintf(w, "%-8.2f  %-6.2f  %-8s  %s\n", *r.Value, r.Confidence, r.Method, r.Evidence)
	}
	if out.Aggregate.Value != nil {
		fmt.Fprintf(w, "\nAggregate: %.2f%% (confidence %.2f, %d sources)\n",
			*out.Aggregate.Value, out.Aggregate.Confidence, len(out.Aggregate.Sources))
	}
}
