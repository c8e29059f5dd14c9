// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fetches literature records from PubMed, classifies them
// by study design and subject, and collapses near-duplicate titles.
package search

import (
	"strings"
	"unicode"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// DefaultDedupeThreshold is the title similarity at which two records are
// treated as the same publication.
const DefaultDedupeThreshold = 0.85

// Deduplicate collapses records whose normalized titles have a Jaccard
// word similarity of at least threshold. It makes one greedy pass: each
// record not yet grouped starts a group and claims every later ungrouped
// record similar to it. Each group keeps its most recent record, the
// earliest one on a tie. Groups appear in the order their first record
// appeared. The second return value counts the records removed.
func Deduplicate(records []types.Record, threshold float64) ([]types.Record, int) {
	n := len(records)
	if n == 0 {
		return nil, 0
	}

	words := make([]map[string]struct{}, n)
	for i, r := range records {
		words[i] = wordSet(normalizeTitle(r.Title))
	}

	grouped := make([]bool, n)
	out := make([]types.Record, 0, n)
	for i := range records {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		keep := i
		for j := i + 1; j < n; j++ {
			if grouped[j] {
				continue
			}
			if jaccard(words[i], words[j]) >= threshold {
				grouped[j] = true
				if records[j].Year > records[keep].Year {
					keep = j
				}
			}
		}
		out = append(out, records[keep])
	}
	return out, n - len(out)
}

// TitleSimilarity returns the Jaccard similarity of the normalized word
// sets of a and b. Two empty titles have similarity 0.
func TitleSimilarity(a, b string) float64 {
	return jaccard(wordSet(normalizeTitle(a)), wordSet(normalizeTitle(b)))
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
