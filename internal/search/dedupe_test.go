// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

const (
	aspirinTitle       = "Bioavailability and Pharmacokinetics of Aspirin in Healthy Volunteers"
	aspirinAdultTitle  = "Bioavailability and pharmacokinetics of aspirin in healthy adult volunteers."
	aspirinRandomTitle = "Bioavailability and Pharmacokinetics of Aspirin in Healthy Volunteers: A Randomized Crossover Study"
	metforminTitle     = "Metformin Extended-Release Tablets Under Fed Conditions"
)

func rec(id, title string, year int) types.Record {
	return types.Record{ID: id, Title: title, Year: year}
}

func recordIDs(records []types.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "bioavailability of aspirin a study", normalizeTitle("  Bioavailability of Aspirin:\tA  Study! "))
	assert.Equal(t, "", normalizeTitle("?!."))
}

func TestTitleSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TitleSimilarity(aspirinTitle, aspirinTitle+"."), 1e-9)
	assert.InDelta(t, 8.0/9.0, TitleSimilarity(aspirinTitle, aspirinAdultTitle), 1e-9)
	assert.InDelta(t, 8.0/12.0, TitleSimilarity(aspirinTitle, aspirinRandomTitle), 1e-9)
	assert.Zero(t, TitleSimilarity(aspirinTitle, metforminTitle))
	assert.Zero(t, TitleSimilarity("", ""))
	assert.Zero(t, TitleSimilarity("...", ""))
}

func TestDeduplicate_CollapsesToLaterYear(t *testing.T) {
	in := []types.Record{
		rec("old", aspirinTitle, 2022),
		rec("new", aspirinAdultTitle, 2023),
	}
	out, removed := Deduplicate(in, DefaultDedupeThreshold)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, 1, removed)
}

func TestDeduplicate_BelowThresholdKeepsBoth(t *testing.T) {
	in := []types.Record{
		rec("a", aspirinTitle, 2022),
		rec("b", aspirinRandomTitle, 2023),
	}

	out, removed := Deduplicate(in, DefaultDedupeThreshold)
	assert.Equal(t, []string{"a", "b"}, recordIDs(out))
	assert.Zero(t, removed)

	out, removed = Deduplicate(in, 0.6)
	assert.Equal(t, []string{"b"}, recordIDs(out))
	assert.Equal(t, 1, removed)
}

func TestDeduplicate_UnrelatedNeverMerges(t *testing.T) {
	in := []types.Record{
		rec("aspirin", aspirinTitle, 2022),
		rec("metformin", metforminTitle, 2024),
	}
	for _, threshold := range []float64{0.01, 0.5, 0.85, 1.0} {
		out, _ := Deduplicate(in, threshold)
		assert.Len(t, out, 2, "threshold %v", threshold)
	}
}

func TestDeduplicate_TieKeepsEarliest(t *testing.T) {
	in := []types.Record{
		rec("first", aspirinTitle, 2020),
		rec("second", aspirinTitle, 2020),
		rec("third", aspirinTitle, 2019),
	}
	out, removed := Deduplicate(in, DefaultDedupeThreshold)
	assert.Equal(t, []string{"first"}, recordIDs(out))
	assert.Equal(t, 2, removed)
}

func TestDeduplicate_PreservesLeaderOrder(t *testing.T) {
	in := []types.Record{
		rec("aspirin-2022", aspirinTitle, 2022),
		rec("metformin", metforminTitle, 2021),
		rec("aspirin-2023", aspirinAdultTitle, 2023),
	}
	out, _ := Deduplicate(in, DefaultDedupeThreshold)
	assert.Equal(t, []string{"aspirin-2023", "metformin"}, recordIDs(out))
}

func TestDeduplicate_EmptyTitlesDoNotMerge(t *testing.T) {
	in := []types.Record{rec("x", "", 2020), rec("y", "", 2021)}
	out, removed := Deduplicate(in, DefaultDedupeThreshold)
	assert.Len(t, out, 2)
	assert.Zero(t, removed)
}

func TestDeduplicate_Empty(t *testing.T) {
	out, removed := Deduplicate(nil, DefaultDedupeThreshold)
	assert.Empty(t, out)
	assert.Zero(t, removed)
}
