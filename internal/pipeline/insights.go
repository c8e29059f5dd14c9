// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/internal/retrieval"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// insights asks the retriever which records best answer each follow-up
// question. Retrieval problems are logged and yield no insights.
func (o *Orchestrator) insights(ctx context.Context, log *zap.Logger, r *run) []types.Insight {
	if o.retriever == nil || len(r.records) == 0 {
		return nil
	}

	docs := make([]retrieval.Document, len(r.records))
	byID := make(map[string]types.Record, len(r.records))
	for i, rec := range r.records {
		docs[i] = retrieval.Document{
			ID:      rec.ID,
			Content: rec.Text(),
			Metadata: map[string]string{
				"title": rec.Title,
				"url":   rec.URL,
			},
		}
		byID[rec.ID] = rec
	}

	var out []types.Insight
	for _, tmpl := range insightQueries {
		query := fmt.Sprintf(tmpl, r.term)
		matches, err := o.retriever.Rank(ctx, query, docs, o.insightTopK)
		if err != nil {
			log.Warn("pipeline: retrieval failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for _, m := range matches {
			rec := byID[m.ID]
			out = append(out, types.Insight{
				Query:      query,
				RecordID:   m.ID,
				Title:      rec.Title,
				URL:        rec.URL,
				Similarity: m.Score,
			})
		}
	}
	return out
}
