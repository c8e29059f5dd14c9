// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate filters extraction results and combines the survivors
// into a single CVintra estimate.
package validate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// MinConfidence is the lowest confidence a result may carry and still
// contribute to an aggregate.
const MinConfidence = 0.3

// Method selects how valid results are combined.
type Method string

const (
	WeightedMean Method = "weighted_mean"
	Median       Method = "median"
	Mean         Method = "mean"
)

// ParseMethod converts a configuration string into a Method. An empty
// string selects WeightedMean.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "":
		return WeightedMean, nil
	case WeightedMean, Median, Mean:
		return Method(s), nil
	default:
		return "", eris.Errorf("unknown aggregation method %q (want weighted_mean, median or mean)", s)
	}
}

// IsValid reports whether r has a value in [5, 100] and a confidence of at
// least MinConfidence.
func IsValid(r types.ExtractionResult) bool {
	if r.Value == nil {
		return false
	}
	v := *r.Value
	return v >= types.MinCVintra && v <= types.MaxCVintra && r.Confidence >= MinConfidence
}

// Aggregate combines the valid results in input order. With no valid
// results, or a zero weight sum under WeightedMean, the aggregate has no
// value, zero confidence and no sources.
//
// WeightedMean and Mean values are rounded to two decimals; Median takes
// the upper middle element without interpolation. Confidence is the plain
// mean of the contributing confidences for every method, capped at 1 for
// WeightedMean.
func Aggregate(results []types.ExtractionResult, method Method) types.Aggregate {
	var valid []types.ExtractionResult
	for _, r := range results {
		if IsValid(r) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return types.Aggregate{}
	}

	var value float64
	confidence := meanConfidence(valid)

	switch method {
	case Median:
		values := make([]float64, len(valid))
		for i, r := range valid {
			values[i] = *r.Value
		}
		sort.Float64s(values)
		value = values[len(values)/2]
	case Mean:
		var sum float64
		for _, r := range valid {
			sum += *r.Value
		}
		value = round2(sum / float64(len(valid)))
	default:
		var weighted, weights float64
		for _, r := range valid {
			weighted += *r.Value * r.Confidence
			weights += r.Confidence
		}
		if weights == 0 {
			return types.Aggregate{}
		}
		value = round2(weighted / weights)
		confidence = math.Min(1.0, confidence)
	}

	sources := make([]types.SourceEntry, len(valid))
	for i, r := range valid {
		sources[i] = types.SourceEntry{
			URL:        r.SourceURL,
			Method:     r.Method,
			RecordID:   r.RecordID,
			Value:      *r.Value,
			Confidence: r.Confidence,
		}
	}

	return types.Aggregate{
		Value:      types.Float(value),
		Confidence: confidence,
		Sources:    sources,
	}
}

func meanConfidence(results []types.ExtractionResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
