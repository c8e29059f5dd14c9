// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval ranks candidate documents against a query by vector
// similarity. A Coordinator is constructed explicitly and passed to its
// users; every Rank call works in its own short-lived collection so calls
// never see each other's documents.
package retrieval

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Document is a candidate for ranking.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Match is a ranked document with its cosine similarity to the query.
type Match struct {
	Document
	Score float64
}

// Coordinator ranks documents with an in-memory chromem database.
type Coordinator struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
	log   *zap.Logger
}

// NewCoordinator returns a coordinator that embeds text with embedder.
func NewCoordinator(embedder Embedder, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		db: chromem.NewDB(),
		embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
		log: logger,
	}
}

// Rank returns up to topK documents most similar to query, best first.
// Empty input, an empty query or a non-positive topK yield no matches.
func (c *Coordinator) Rank(ctx context.Context, query string, docs []Document, topK int) ([]Match, error) {
	if len(docs) == 0 || topK <= 0 || query == "" {
		return nil, nil
	}

	name := "rank-" + uuid.NewString()
	collection, err := c.db.CreateCollection(name, nil, c.embed)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: creating collection")
	}
	defer func() {
		if err := c.db.DeleteCollection(name); err != nil {
			c.log.Warn("retrieval: dropping collection", zap.String("collection", name), zap.Error(err))
		}
	}()

	cdocs := make([]chromem.Document, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ID == "" || seen[d.ID] || d.Content == "" {
			continue
		}
		seen[d.ID] = true
		cdocs = append(cdocs, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	if len(cdocs) == 0 {
		return nil, nil
	}

	if err := collection.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return nil, eris.Wrap(err, "retrieval: adding documents")
	}

	n := min(topK, collection.Count())
	results, err := collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: querying collection")
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			Document: Document{ID: r.ID, Content: r.Content, Metadata: r.Metadata},
			Score:    float64(r.Similarity),
		}
	}
	c.log.Debug("retrieval: ranked documents",
		zap.String("query", query), zap.Int("candidates", len(cdocs)), zap.Int("matches", len(matches)))
	return matches, nil
}
