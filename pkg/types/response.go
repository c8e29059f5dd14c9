// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// QueryStatus is the terminal state of a query run.
type QueryStatus string

const (
	StatusSuccess  QueryStatus = "success"
	StatusNotFound QueryStatus = "not_found"
	StatusError    QueryStatus = "error"
)

// QueryResponse is the outcome of one orchestrated query. It is also the
// payload stored in the query-result cache.
type QueryResponse struct {
	// RunID identifies the run that produced the response. Cached responses
	// keep the id of the run that populated the cache.
	RunID string `json:"run_id" yaml:"run_id"`

	// Term is the query term (typically a drug INN).
	Term string `json:"term" yaml:"term"`

	Status QueryStatus `json:"status" yaml:"status"`

	// Error carries the failure message when Status is error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// RecordCount is the number of records left after deduplication.
	RecordCount int `json:"record_count" yaml:"record_count"`

	// DuplicatesRemoved counts records merged away by deduplication.
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`

	AggregatedValue      *float64 `json:"aggregated_value" yaml:"aggregated_value"`
	AggregatedConfidence float64  `json:"aggregated_confidence" yaml:"aggregated_confidence"`

	// RankedSources lists contributing sources by descending reliability.
	RankedSources []SourceEntry `json:"ranked_sources" yaml:"ranked_sources"`

	Records []RecordView `json:"records" yaml:"records"`

	// Insights holds records retrieved as most relevant to fixed follow-up
	// questions about the term.
	Insights []Insight `json:"insights,omitempty" yaml:"insights,omitempty"`

	// Recommendation is set when an aggregated value exists.
	Recommendation *DesignRecommendation `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`

	// FromCache is true when the response was served from the query cache.
	FromCache bool `json:"from_cache" yaml:"from_cache"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Insight is one record matched to a follow-up question.
type Insight struct {
	Query      string  `json:"query" yaml:"query"`
	RecordID   string  `json:"record_id" yaml:"record_id"`
	Title      string  `json:"title" yaml:"title"`
	URL        string  `json:"url" yaml:"url"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// RegulatoryApproach names how bioequivalence is concluded.
type RegulatoryApproach string

const (
	// ApproachABE is average bioequivalence with fixed 80.00-125.00 % limits.
	ApproachABE RegulatoryApproach = "ABE"
	// ApproachABEL is average bioequivalence with expanding limits scaled
	// to the reference within-subject variability.
	ApproachABEL RegulatoryApproach = "ABEL"
	// ApproachRSABE is reference-scaled average bioequivalence.
	ApproachRSABE RegulatoryApproach = "RSABE"
)

// DesignRecommendation is the bioequivalence study design suggested for a
// CVintra value.
type DesignRecommendation struct {
	CVintra   float64            `json:"cvintra" yaml:"cvintra"`
	Design    string             `json:"design" yaml:"design"`
	Periods   int                `json:"periods" yaml:"periods"`
	Sequences []string           `json:"sequences" yaml:"sequences"`
	Approach  RegulatoryApproach `json:"approach" yaml:"approach"`

	// LowerLimit and UpperLimit are the acceptance limits in percent.
	LowerLimit float64 `json:"lower_limit" yaml:"lower_limit"`
	UpperLimit float64 `json:"upper_limit" yaml:"upper_limit"`

	// SampleSize is the number of evaluable subjects; EnrolledSize adds the
	// dropout allowance.
	SampleSize   int `json:"sample_size" yaml:"sample_size"`
	EnrolledSize int `json:"enrolled_size" yaml:"enrolled_size"`

	Rationale string `json:"rationale" yaml:"rationale"`
}
