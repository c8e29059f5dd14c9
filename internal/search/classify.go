// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"regexp"
	"strings"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Publication type labels assigned by PubMed indexers. They take precedence
// over keyword rules because they are curated.
var publicationTypeRules = []struct {
	labels []string
	kind   types.ArticleType
}{
	{[]string{"systematic review", "meta-analysis", "review"}, types.ArticleReview},
	{[]string{"randomized controlled trial", "clinical trial", "clinical trial, phase i", "controlled clinical trial", "equivalence trial"}, types.ArticleClinicalTrial},
	{[]string{"observational study", "multicenter study"}, types.ArticleObservational},
	{[]string{"validation study", "evaluation study"}, types.ArticleMethodology},
}

// Keyword rules over lower-cased title and abstract, first match wins.
var articleKeywordRules = []struct {
	re   *regexp.Regexp
	kind types.ArticleType
}{
	{regexp.MustCompile(`\b(systematic review|meta-analysis|meta analysis|review)\b`), types.ArticleReview},
	{regexp.MustCompile(`\b(randomi[sz]ed|cross-?over|bioequivalence study|clinical trial|open-label|double-blind|replicate design|two-period|healthy volunteers)\b`), types.ArticleClinicalTrial},
	{regexp.MustCompile(`\b(observational|cohort|retrospective|case-control|population pharmacokinetic|registry|real-world)\b`), types.ArticleObservational},
	{regexp.MustCompile(`\b(assay|method validation|validated method|lc-ms|hplc|simulation|modeling|modelling|in silico)\b`), types.ArticleMethodology},
}

var (
	inVitroPattern = regexp.MustCompile(`\b(in vitro|microsomes?|microsomal|hepatocytes?|cell lines?|caco-2)\b`)
	animalPattern  = regexp.MustCompile(`\b(rats?|mice|mouse|dogs?|beagles?|monkeys?|rabbits?|pigs?|minipigs?|animals?|murine|canine|porcine|primates?)\b`)
)

// Classify returns a copy of r with ArticleType and SubjectType set.
func Classify(r types.Record) types.Record {
	text := strings.ToLower(r.Title + " " + r.Abstract)
	r.ArticleType = articleType(r.PublicationTypes, text)
	r.SubjectType = subjectType(r.MeshHeadings, text)
	return r
}

func articleType(pubTypes []string, text string) types.ArticleType {
	for _, rule := range publicationTypeRules {
		for _, pt := range pubTypes {
			for _, label := range rule.labels {
				if strings.EqualFold(strings.TrimSpace(pt), label) {
					return rule.kind
				}
			}
		}
	}
	for _, rule := range articleKeywordRules {
		if rule.re.MatchString(text) {
			return rule.kind
		}
	}
	return types.ArticleOther
}

func subjectType(mesh []string, text string) types.SubjectType {
	if inVitroPattern.MatchString(text) {
		return types.SubjectInVitro
	}

	var humans, animals bool
	for _, h := range mesh {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "humans":
			humans = true
		case "animals":
			animals = true
		}
	}
	if animals && !humans {
		return types.SubjectAnimal
	}
	if humans {
		return types.SubjectHuman
	}
	if animalPattern.MatchString(text) {
		return types.SubjectAnimal
	}
	return types.SubjectHuman
}
