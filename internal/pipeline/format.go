// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Write renders resp to w in the named format.
func Write(resp types.QueryResponse, format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		WriteTable(resp, w)
		return nil
	case FormatJSON:
		return WriteJSON(resp, w)
	case FormatYAML:
		return WriteYAML(resp, w)
	}
	return eris.Errorf("pipeline: unknown output format %q", format)
}

// WriteTable writes a human-readable summary with one row per ranked source.
func WriteTable(resp types.QueryResponse, w io.Writer) {
	fmt.Fprintf(w, "Term:       %s\n", resp.Term)
	fmt.Fprintf(w, "Status:     %s", resp.Status)
	if resp.FromCache {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintln(w)
	if resp.Status == types.StatusError {
		fmt.Fprintf(w, "Error:      %s\n", resp.Error)
		return
	}

	fmt.Fprintf(w, "Records:    %d", resp.RecordCount)
	if resp.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", resp.DuplicatesRemoved)
	}
	fmt.Fprintln(w)

	if resp.AggregatedValue == nil {
		fmt.Fprintln(w, "CVintra:    not found")
	} else {
		fmt.Fprintf(w, "CVintra:    %.2f%% (confidence %.2f)\n", *resp.AggregatedValue, resp.AggregatedConfidence)
	}

	if len(resp.RankedSources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%-4s  %-10s  %-7s  %-6s  %-8s  %-14s  %-8s  %s\n",
			"Rank", "Record", "Value", "Conf", "Method", "Article", "Score", "URL")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for i, s := range resp.RankedSources {
			fmt.Fprintf(w, "%-4d  %-10s  %-7.2f  %-6.2f  %-8s  %-14s  %-8.3f  %s\n",
				i+1, s.RecordID, s.Value, s.Confidence, s.Method, s.ArticleType, s.ReliabilityScore, s.URL)
		}
	}

	if rec := resp.Recommendation; rec != nil {
		fmt.Fprintln(w)
		WriteDesign(*rec, w)
	}

	if len(resp.Insights) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Related records:")
		for _, in := range resp.Insights {
			title := in.Title
			if len(title) > 60 {
				title = title[:57] + "..."
			}
			fmt.Fprintf(w, "  [%s] %-60s  %.3f  (%s)\n", in.RecordID, title, in.Similarity, in.Query)
		}
	}
}

// WriteDesign writes a design recommendation as labelled lines.
func WriteDesign(rec types.DesignRecommendation, w io.Writer) {
	fmt.Fprintf(w, "Design:     %s (%s, sequences %s)\n", rec.Design, rec.Approach, strings.Join(rec.Sequences, "/"))
	fmt.Fprintf(w, "Limits:     %.2f%% - %.2f%%\n", rec.LowerLimit, rec.UpperLimit)
	fmt.Fprintf(w, "Subjects:   %d evaluable, %d to enrol\n", rec.SampleSize, rec.EnrolledSize)
	fmt.Fprintf(w, "Rationale:  %s\n", rec.Rationale)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "pipeline: encoding json")
}

// WriteYAML writes v as YAML.
func WriteYAML(v any, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "pipeline: encoding yaml")
	}
	return eris.Wrap(enc.Close(), "pipeline: encoding yaml")
}
