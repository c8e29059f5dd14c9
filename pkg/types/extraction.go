// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Method identifies how an extraction result was produced.
type Method string

const (
	MethodPattern  Method = "pattern"
	MethodFallback Method = "fallback"
	MethodHybrid   Method = "hybrid"
)

// Plausible CVintra range in percent. Values outside it are rejected
// everywhere a value is accepted.
const (
	MinCVintra = 5.0
	MaxCVintra = 100.0
)

// ExtractionResult holds one candidate CVintra value found in a text.
// Results are created once by an extractor and never modified.
type ExtractionResult struct {
	// Value is the CVintra in percent. Nil means nothing was found.
	Value *float64 `json:"value" yaml:"value"`

	// Confidence is the extractor's confidence in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Method records which extractor produced the result.
	Method Method `json:"method" yaml:"method"`

	// Evidence is the text surrounding the match.
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// RecordID is the source record, empty for free text.
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`

	// SourceURL is the record landing page, empty for free text.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// ExtractedAt is when the result was produced.
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`
}

// HasPlausibleValue reports whether the result carries a value inside the
// plausible range with positive confidence.
func (r ExtractionResult) HasPlausibleValue() bool {
	if r.Value == nil {
		return false
	}
	v := *r.Value
	return v >= MinCVintra && v <= MaxCVintra && r.Confidence > 0
}

// Float returns a pointer to v. Convenience for building results.
func Float(v float64) *float64 {
	return &v
}

// WithSource returns a copy of r attributed to the given record.
func (r ExtractionResult) WithSource(recordID, url string) ExtractionResult {
	r.RecordID = recordID
	r.SourceURL = url
	return r
}

// SourceEntry is one contributing result in an aggregate, enriched with the
// record attributes the reliability ranker needs.
type SourceEntry struct {
	URL         string      `json:"url" yaml:"url"`
	Method      Method      `json:"method" yaml:"method"`
	RecordID    string      `json:"record_id" yaml:"record_id"`
	Value       float64     `json:"value" yaml:"value"`
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	ArticleType ArticleType `json:"article_type,omitempty" yaml:"article_type,omitempty"`
	SubjectType SubjectType `json:"subject_type,omitempty" yaml:"subject_type,omitempty"`
	Year        int         `json:"year,omitempty" yaml:"year,omitempty"`

	// ReliabilityScore is assigned by the ranker.
	ReliabilityScore float64 `json:"reliability_score" yaml:"reliability_score"`
}

// Aggregate is the combined estimate over a set of extraction results.
type Aggregate struct {
	// Value is nil when no valid result contributed.
	Value      *float64      `json:"value" yaml:"value"`
	Confidence float64       `json:"confidence" yaml:"confidence"`
	Sources    []SourceEntry `json:"sources" yaml:"sources"`
}

// ExtractionSummary is the per-record extraction outcome stored in the
// extraction cache.
type ExtractionSummary struct {
	RecordID  string             `json:"record_id" yaml:"record_id"`
	QueryTerm string             `json:"query_term" yaml:"query_term"`
	Results   []ExtractionResult `json:"results" yaml:"results"`
	CachedAt  time.Time          `json:"cached_at" yaml:"cached_at"`
}
