// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_NormalizedAndDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Aspirin pharmacokinetics in healthy volunteers")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "aspirin PHARMACOKINETICS in healthy volunteers!")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbedder_EmptyTextHasDirection(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())

	v, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(v[len(v)-1]), 1e-6)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"cv", "intra", "25", "for", "cmax"}, tokenize("CV-intra: 25% for Cmax (a)"))
}

func testDocs() []Document {
	return []Document{
		{ID: "pk", Content: "Aspirin pharmacokinetics: absorption, Cmax and AUC after oral dosing"},
		{ID: "cv", Content: "Intra-subject variability of aspirin: CVintra variability for Cmax was 25%"},
		{ID: "ba", Content: "Relative bioavailability of two aspirin tablet formulations"},
	}
}

func TestCoordinator_Rank(t *testing.T) {
	c := NewCoordinator(NewHashEmbedder(256), nil)
	ctx := context.Background()

	matches, err := c.Rank(ctx, "aspirin CVintra variability", testDocs(), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "cv", matches[0].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	matches, err = c.Rank(ctx, "aspirin bioavailability", testDocs(), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ba", matches[0].ID)
}

func TestCoordinator_TopKCappedAtCandidates(t *testing.T) {
	c := NewCoordinator(NewHashEmbedder(128), nil)
	matches, err := c.Rank(context.Background(), "aspirin", testDocs(), 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestCoordinator_EmptyInputs(t *testing.T) {
	c := NewCoordinator(NewHashEmbedder(128), nil)
	ctx := context.Background()

	m, err := c.Rank(ctx, "aspirin", nil, 2)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = c.Rank(ctx, "", testDocs(), 2)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = c.Rank(ctx, "aspirin", testDocs(), 0)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = c.Rank(ctx, "aspirin", []Document{{ID: "", Content: "x"}, {ID: "a", Content: ""}}, 2)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestCoordinator_IndependentInstancesAndCalls(t *testing.T) {
	a := NewCoordinator(NewHashEmbedder(128), nil)
	b := NewCoordinator(NewHashEmbedder(128), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c *Coordinator) {
			defer wg.Done()
			matches, err := c.Rank(ctx, "aspirin pharmacokinetics", testDocs(), 3)
			assert.NoError(t, err)
			assert.Len(t, matches, 3)
		}([]*Coordinator{a, b}[i%2])
	}
	wg.Wait()

	// Per-call collections are dropped afterwards.
	assert.Empty(t, a.db.ListCollections())
	assert.Empty(t, b.db.ListCollections())
}
