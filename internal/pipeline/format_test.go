// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

func sampleResponse() types.QueryResponse {
	return types.QueryResponse{
		RunID:                "run-1",
		Term:                 "aspirin",
		Status:               types.StatusSuccess,
		RecordCount:          2,
		DuplicatesRemoved:    1,
		AggregatedValue:      types.Float(24.86),
		AggregatedConfidence: 0.925,
		RankedSources: []types.SourceEntry{
			{RecordID: "102", URL: "https://pubmed.ncbi.nlm.nih.gov/102/", Method: types.MethodPattern,
				Value: 20, Confidence: 0.95, ArticleType: types.ArticleClinicalTrial, ReliabilityScore: 0.97},
		},
		Recommendation: &types.DesignRecommendation{
			CVintra: 24.86, Design: "2x2x2 crossover", Periods: 2, Sequences: []string{"TR", "RT"},
			Approach: types.ApproachABE, LowerLimit: 80, UpperLimit: 125, SampleSize: 26, EnrolledSize: 30,
		},
		Insights: []types.Insight{
			{Query: "aspirin bioavailability", RecordID: "102", Title: "Bioavailability of aspirin", Similarity: 0.8},
		},
		Timestamp: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleResponse(), "table", &buf))
	out := buf.String()

	assert.Contains(t, out, "Term:       aspirin")
	assert.Contains(t, out, "(1 duplicates removed)")
	assert.Contains(t, out, "CVintra:    24.86% (confidence 0.93)")
	assert.Contains(t, out, "https://pubmed.ncbi.nlm.nih.gov/102/")
	assert.Contains(t, out, "Design:     2x2x2 crossover (ABE, sequences TR/RT)")
	assert.Contains(t, out, "Related records:")
}

func TestWriteTable_NotFoundAndError(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(types.QueryResponse{Term: "x", Status: types.StatusNotFound}, &buf)
	assert.Contains(t, buf.String(), "CVintra:    not found")

	buf.Reset()
	WriteTable(types.QueryResponse{Term: "x", Status: types.StatusError, Error: "eutils down"}, &buf)
	assert.Contains(t, buf.String(), "Error:      eutils down")
	assert.NotContains(t, buf.String(), "CVintra")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleResponse(), "JSON", &buf))

	var got types.QueryResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleResponse(), got)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(sampleResponse(), "yaml", &buf))
	assert.Contains(t, buf.String(), "status: success")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "aspirin", got["term"])
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(sampleResponse(), "xml", &bytes.Buffer{}))
}
