// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores aggregate sources by how much their study design,
// subjects, extraction method, confidence and age should be trusted.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Component weights. They sum to 1.
const (
	weightArticle    = 0.35
	weightSubject    = 0.25
	weightMethod     = 0.20
	weightConfidence = 0.15
	weightRecency    = 0.05
)

// unknownScore is used for any category missing from a score table.
const unknownScore = 0.5

var articleScores = map[types.ArticleType]float64{
	types.ArticleClinicalTrial: 1.0,
	types.ArticleObservational: 0.8,
	types.ArticleReview:        0.7,
	types.ArticleMethodology:   0.6,
	types.ArticleOther:         0.5,
}

var subjectScores = map[types.SubjectType]float64{
	types.SubjectHuman:   1.0,
	types.SubjectAnimal:  0.5,
	types.SubjectInVitro: 0.3,
}

// methodScores accepts both the current method names and the legacy
// "regex" and "llm" labels found in older cache entries.
var methodScores = map[types.Method]float64{
	types.MethodHybrid:   0.9,
	types.MethodPattern:  0.8,
	"regex":              0.8,
	types.MethodFallback: 0.7,
	"llm":                0.7,
}

// Ranker computes reliability scores. The zero value is not usable; call New.
type Ranker struct {
	now func() time.Time
}

// New returns a Ranker that measures recency against the wall clock.
func New() *Ranker {
	return &Ranker{now: time.Now}
}

// Score returns the reliability of s in [0, 1].
func (r *Ranker) Score(s types.SourceEntry) float64 {
	score := weightArticle*lookup(articleScores, s.ArticleType) +
		weightSubject*lookup(subjectScores, s.SubjectType) +
		weightMethod*lookup(methodScores, s.Method) +
		weightConfidence*s.Confidence +
		weightRecency*r.recency(s.Year)
	return math.Min(1.0, score)
}

// Rank returns a copy of sources with ReliabilityScore set, ordered by
// descending score. Equal scores keep their input order.
func (r *Ranker) Rank(sources []types.SourceEntry) []types.SourceEntry {
	ranked := make([]types.SourceEntry, len(sources))
	copy(ranked, sources)
	for i := range ranked {
		ranked[i].ReliabilityScore = r.Score(ranked[i])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ReliabilityScore > ranked[j].ReliabilityScore
	})
	return ranked
}

// recency decays by 0.02 per year of age down to a floor of 0.5. Future
// years count as current.
func (r *Ranker) recency(year int) float64 {
	age := r.now().Year() - year
	if age < 0 {
		age = 0
	}
	return math.Max(0.5, 1.0-0.02*float64(age))
}

func lookup[K comparable](table map[K]float64, key K) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return unknownScore
}
