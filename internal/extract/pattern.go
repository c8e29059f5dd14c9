// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds CVintra values in free text. PatternExtractor runs
// a fixed table of weighted regular expressions; FallbackExtractor asks a
// text-understanding model when the patterns come up empty or weak; Hybrid
// combines the two.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Pattern pairs a regular expression with the confidence assigned to its
// matches. The first capture group must hold the numeric value.
type Pattern struct {
	Expr       string
	Confidence float64
}

// DefaultPatterns is the ordered pattern table, strongest phrasing first.
// Expressions run against lower-cased text.
var DefaultPatterns = []Pattern{
	{`cv\s*intra[-\s]?subject\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.95},
	{`intra[-\s]?subject\s+cv\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.95},
	{`intra[-\s]?subject\s+coefficient\s+of\s+variation\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.95},
	{`cv\s*\(intra[-\s]?subject\)\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.93},
	{`cv\s*intra\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.92},
	{`cvintra\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.92},
	{`within[-\s]?subject\s+cv\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.90},
	{`within[-\s]?subject\s+coefficient\s+of\s+variation\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.90},
	{`intra[-\s]?individual\s+cv\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.88},
	{`intra[-\s]?individual\s+variability\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.88},
	{`cv[\s(]*intra\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.85},
	{`cvw\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.85},
	{`cv_w\s*[=:]\s*(\d+\.?\d*)\s*%`, 0.85},
	{`cv\s*intra[-\s]?subject\s*[=:]\s*(\d+\.?\d*)(?:\s|$|[,.])`, 0.70},
	{`intra[-\s]?subject\s+cv\s*[=:]\s*(\d+\.?\d*)(?:\s|$|[,.])`, 0.70},
}

// evidenceRadius is the number of bytes of context kept on each side of a match.
const evidenceRadius = 50

type compiledPattern struct {
	re         *regexp.Regexp
	confidence float64
}

// PatternExtractor extracts CVintra values with regular expressions.
// It holds no mutable state and is safe for concurrent use.
type PatternExtractor struct {
	patterns []compiledPattern
	now      func() time.Time
}

// NewPatternExtractor compiles patterns in order. A pattern that fails to
// compile is logged and skipped; the remaining patterns still run. A nil
// logger is replaced with a no-op logger.
func NewPatternExtractor(patterns []Pattern, logger *zap.Logger) *PatternExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PatternExtractor{now: time.Now}
	for _, pat := range patterns {
		re, err := regexp.Compile(pat.Expr)
		if err != nil {
			logger.Warn("pattern: skipping invalid expression",
				zap.String("expr", pat.Expr), zap.Error(err))
			continue
		}
		p.patterns = append(p.patterns, compiledPattern{re: re, confidence: pat.Confidence})
	}
	return p
}

// Len returns the number of usable patterns.
func (p *PatternExtractor) Len() int {
	return len(p.patterns)
}

// Extract returns every plausible CVintra value found in text, sorted by
// confidence descending. Ties keep the order in which matches were found.
// A value seen once in the text is not reported again, even by a later
// pattern.
func (p *PatternExtractor) Extract(text string) []types.ExtractionResult {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}

	now := p.now()
	seen := make(map[float64]bool)
	var results []types.ExtractionResult

	for _, cp := range p.patterns {
		for _, m := range cp.re.FindAllStringSubmatchIndex(normalized, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			if truncatedNumber(normalized, m[3]) {
				continue
			}
			value, err := strconv.ParseFloat(normalized[m[2]:m[3]], 64)
			if err != nil {
				continue
			}
			if seen[value] {
				continue
			}
			res := types.ExtractionResult{
				Value:       types.Float(value),
				Confidence:  cp.confidence,
				Method:      types.MethodPattern,
				Evidence:    evidence(normalized, m[0], m[1]),
				ExtractedAt: now,
			}
			if !res.HasPlausibleValue() {
				continue
			}
			seen[value] = true
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

// normalizeText lower-cases text and turns line breaks and tabs into spaces.
func normalizeText(text string) string {
	r := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	return strings.TrimSpace(r.Replace(strings.ToLower(text)))
}

// truncatedNumber reports whether a capture ending at end stops short of
// the number in the text, as when "31.5" is captured as "31" ahead of a
// trailing-punctuation terminator.
func truncatedNumber(text string, end int) bool {
	if end >= len(text) {
		return false
	}
	if isDigit(text[end]) {
		return true
	}
	return text[end] == '.' && end+1 < len(text) && isDigit(text[end+1])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// evidence returns the match with up to evidenceRadius bytes on each side,
// widened to rune boundaries.
func evidence(text string, start, end int) string {
	lo := max(0, start-evidenceRadius)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := min(len(text), end+evidenceRadius)
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
