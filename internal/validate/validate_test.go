// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

func result(v, c float64, id string) types.ExtractionResult {
	return types.ExtractionResult{
		Value:      types.Float(v),
		Confidence: c,
		Method:     types.MethodPattern,
		RecordID:   id,
		SourceURL:  "https://pubmed.ncbi.nlm.nih.gov/" + id + "/",
	}
}

var allMethods = []Method{WeightedMean, Median, Mean}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		r    types.ExtractionResult
		want bool
	}{
		{"typical", result(25, 0.9, "1"), true},
		{"lower bound", result(5, 0.3, "1"), true},
		{"upper bound", result(100, 1, "1"), true},
		{"below range", result(4.9, 0.9, "1"), false},
		{"above range", result(100.1, 0.9, "1"), false},
		{"low confidence", result(25, 0.29, "1"), false},
		{"no value", types.ExtractionResult{Confidence: 0.9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.r))
		})
	}
}

func TestAggregate_Empty(t *testing.T) {
	for _, m := range allMethods {
		agg := Aggregate(nil, m)
		assert.Nil(t, agg.Value, m)
		assert.Zero(t, agg.Confidence, m)
		assert.Empty(t, agg.Sources, m)
	}
}

func TestAggregate_AllInvalid(t *testing.T) {
	in := []types.ExtractionResult{result(2, 0.9, "1"), result(30, 0.1, "2")}
	for _, m := range allMethods {
		agg := Aggregate(in, m)
		assert.Nil(t, agg.Value, m)
		assert.Empty(t, agg.Sources, m)
	}
}

func TestAggregate_SingleResultAgrees(t *testing.T) {
	in := []types.ExtractionResult{result(23.45, 0.8, "1")}
	for _, m := range allMethods {
		agg := Aggregate(in, m)
		require.NotNil(t, agg.Value, m)
		assert.Equal(t, 23.45, *agg.Value, m)
		assert.InDelta(t, 0.8, agg.Confidence, 1e-9, m)
	}
}

func TestAggregate_WeightedMeanDropsLowConfidence(t *testing.T) {
	// 0.1 is below MinConfidence, so only the first result contributes.
	agg := Aggregate([]types.ExtractionResult{result(20, 0.9, "1"), result(10, 0.1, "2")}, WeightedMean)
	require.NotNil(t, agg.Value)
	assert.Equal(t, 20.0, *agg.Value)
	assert.InDelta(t, 0.9, agg.Confidence, 1e-9)
	require.Len(t, agg.Sources, 1)
	assert.Equal(t, "1", agg.Sources[0].RecordID)
}

func TestAggregate_WeightedMean(t *testing.T) {
	// (18 + 3) / 1.2 = 17.5
	agg := Aggregate([]types.ExtractionResult{result(20, 0.9, "1"), result(10, 0.3, "2")}, WeightedMean)
	require.NotNil(t, agg.Value)
	assert.Equal(t, 17.5, *agg.Value)
	// Confidence is the unweighted mean of the inputs.
	assert.InDelta(t, 0.6, agg.Confidence, 1e-9)
	assert.Len(t, agg.Sources, 2)
}

func TestAggregate_WeightedMeanRounds(t *testing.T) {
	agg := Aggregate([]types.ExtractionResult{
		result(20, 0.7, "1"),
		result(30, 0.5, "2"),
		result(17, 0.9, "3"),
	}, WeightedMean)
	// (14 + 15 + 15.3) / 2.1 = 21.0952...
	assert.Equal(t, 21.1, *agg.Value)
	assert.InDelta(t, 0.7, agg.Confidence, 1e-9)
}

func TestAggregate_MedianUpper(t *testing.T) {
	in := []types.ExtractionResult{
		result(40, 0.9, "1"),
		result(10, 0.9, "2"),
		result(30, 0.9, "3"),
		result(20, 0.6, "4"),
	}
	agg := Aggregate(in, Median)
	// Sorted: 10, 20, 30, 40; element at n/2 is 30.
	assert.Equal(t, 30.0, *agg.Value)
	assert.InDelta(t, 0.825, agg.Confidence, 1e-9)
}

func TestAggregate_Mean(t *testing.T) {
	in := []types.ExtractionResult{result(10, 0.9, "1"), result(20, 0.5, "2"), result(20.005, 0.4, "3")}
	agg := Aggregate(in, Mean)
	assert.Equal(t, 16.67, *agg.Value)
	assert.InDelta(t, 0.6, agg.Confidence, 1e-9)
}

func TestAggregate_SourcesFollowInputOrder(t *testing.T) {
	in := []types.ExtractionResult{
		result(30, 0.9, "a"),
		result(200, 0.9, "bad"),
		result(25, 0.4, "b"),
	}
	agg := Aggregate(in, WeightedMean)
	require.Len(t, agg.Sources, 2)
	assert.Equal(t, "a", agg.Sources[0].RecordID)
	assert.Equal(t, "b", agg.Sources[1].RecordID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/a/", agg.Sources[0].URL)
	assert.Equal(t, types.MethodPattern, agg.Sources[0].Method)
	assert.Equal(t, 25.0, agg.Sources[1].Value)
	assert.Equal(t, 0.4, agg.Sources[1].Confidence)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, WeightedMean, m)

	m, err = ParseMethod("median")
	require.NoError(t, err)
	assert.Equal(t, Median, m)

	_, err = ParseMethod("mode")
	assert.Error(t, err)
}
