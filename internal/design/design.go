// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package design suggests a bioequivalence study design for a CVintra value
// and estimates the number of subjects it needs.
package design

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// CV thresholds in percent separating the design tiers.
const (
	HighlyVariableCV = 30.0
	ScalingCapCV     = 50.0
)

// Sample-size assumptions.
const (
	// zAlpha is the one-sided 95 % normal quantile (TOST at alpha 0.05).
	zAlpha = 1.6448536
	// zBeta is the 90 % normal quantile (power 0.80 split over two tests).
	zBeta = 1.2815516

	expectedGMR  = 0.95
	dropoutRate  = 0.10
	minEvaluable = 12

	// abelSlope is the regulatory constant k in exp(±k·s_wR).
	abelSlope = 0.760
)

// ErrInvalidCV is returned for values that are not a positive finite percent.
var ErrInvalidCV = eris.New("design: CVintra must be a positive percentage")

// Recommend returns the design for cv, given in percent.
func Recommend(cv float64) (types.DesignRecommendation, error) {
	if math.IsNaN(cv) || math.IsInf(cv, 0) || cv <= 0 {
		return types.DesignRecommendation{}, eris.Wrapf(ErrInvalidCV, "got %v", cv)
	}

	rec := types.DesignRecommendation{CVintra: cv}
	sw := withinSubjectSD(cv)

	var margin float64
	switch {
	case cv < HighlyVariableCV:
		rec.Design = "2x2x2 crossover"
		rec.Periods = 2
		rec.Sequences = []string{"TR", "RT"}
		rec.Approach = types.ApproachABE
		margin = math.Log(1.25)
		rec.Rationale = fmt.Sprintf("CVintra %.1f%% is below %.0f%%; a standard two-period crossover with 80.00-125.00%% limits is sufficient.",
			cv, HighlyVariableCV)
	case cv < ScalingCapCV:
		rec.Design = "3-period partial replicate"
		rec.Periods = 3
		rec.Sequences = []string{"TRR", "RTR", "RRT"}
		rec.Approach = types.ApproachABEL
		margin = abelSlope * sw
		rec.Rationale = fmt.Sprintf("CVintra %.1f%% marks a highly variable drug; replicating the reference allows limits widened with its within-subject variability.",
			cv)
	default:
		rec.Design = "4-period full replicate"
		rec.Periods = 4
		rec.Sequences = []string{"TRTR", "RTRT"}
		rec.Approach = types.ApproachABEL
		margin = abelSlope * withinSubjectSD(ScalingCapCV)
		rec.Rationale = fmt.Sprintf("CVintra %.1f%% is at or above %.0f%%; widening is capped at CV %.0f%% and a full replicate characterizes both formulations.",
			cv, ScalingCapCV, ScalingCapCV)
	}

	rec.LowerLimit = round2(100 * math.Exp(-margin))
	rec.UpperLimit = round2(100 * math.Exp(margin))
	rec.SampleSize = sampleSize(sw, margin, rec.Periods)
	rec.EnrolledSize = roundUpEven(float64(rec.SampleSize) * (1 + dropoutRate))
	return rec, nil
}

// withinSubjectSD converts a CV in percent to the log-scale standard deviation.
func withinSubjectSD(cv float64) float64 {
	c := cv / 100
	return math.Sqrt(math.Log(c*c + 1))
}

// sampleSize is the TOST normal approximation for a 2x2 crossover scaled
// down by the extra information of replicate periods.
func sampleSize(sw, margin float64, periods int) int {
	delta := margin - math.Abs(math.Log(expectedGMR))
	if delta <= 0 {
		return minEvaluable
	}
	z := zAlpha + zBeta
	n := 2 * z * z * sw * sw / (delta * delta)
	n /= float64(periods) / 2
	return max(roundUpEven(n), minEvaluable)
}

func roundUpEven(n float64) int {
	c := int(math.Ceil(n - 1e-9))
	if c%2 != 0 {
		c++
	}
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
