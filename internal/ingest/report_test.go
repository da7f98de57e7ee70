package ingest

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullmind/leamatch/internal/match"
	"github.com/fullmind/leamatch/internal/registry"
)

func sampleOutputs() []match.Output {
	return []match.Output{
		{
			Name:        "Alief Isd",
			State:       "TX",
			LMSID:       "lms-1",
			LEAID:       "4807530",
			MatchedName: "Alief Independent School District",
			MatchType:   "EXACT_NORM",
			Confidence:  "HIGH",
			Score:       1.0,
			Scope:       match.ScopeState,
		},
		{
			Name:       "Valley Hills",
			State:      "AL",
			MatchType:  "LOW_CONFIDENCE",
			Confidence: "LOW",
			Scope:      match.ScopeState,
			Alternates: []match.Alternate{
				{District: &registry.District{LEAID: "0100101", Name: "Valley View School District"}, Score: 0.5},
				{District: &registry.District{LEAID: "0100102", Name: "Green Valley Public Schools"}, Score: 0.5},
			},
		},
		{
			Name:       "Somewhere Academy",
			MatchType:  "NO_MATCH",
			Confidence: "NONE",
			Scope:      match.ScopeGlobal,
			Note:       "(searched all states)",
		},
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleOutputs()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, reportHeader, rows[0])
	assert.Equal(t, []string{
		"Alief Isd", "TX", "lms-1", "", "4807530",
		"Alief Independent School District", "EXACT_NORM", "HIGH", "",
	}, rows[1])

	// Low-confidence rows carry their candidates in the Notes column.
	assert.Equal(t, "0100101=Valley View School District (50%); 0100102=Green Valley Public Schools (50%)", rows[2][8])

	assert.Equal(t, "(searched all states)", rows[3][8])
}

func TestFormatAlternates(t *testing.T) {
	assert.Empty(t, FormatAlternates(nil))

	got := FormatAlternates([]match.Alternate{
		{District: &registry.District{LEAID: "3904384", Name: "Dayton City School District"}, Score: 0.9},
	})
	assert.Equal(t, "3904384=Dayton City School District (90%)", got)
}

func TestReportNote_JoinsAlternatesAndNote(t *testing.T) {
	out := match.Output{
		Note: "(searched all states)",
		Alternates: []match.Alternate{
			{District: &registry.District{LEAID: "3904384", Name: "Dayton City School District"}, Score: 0.9},
		},
	}
	assert.Equal(t, "3904384=Dayton City School District (90%) (searched all states)", reportNote(out))
}

func TestResultRows(t *testing.T) {
	rows := ResultRows(sampleOutputs())
	require.Len(t, rows, 3)

	assert.Equal(t, 0, rows[0].Seq)
	assert.Equal(t, "4807530", rows[0].LEAID)
	assert.Equal(t, "state", rows[0].Scope)
	assert.Empty(t, rows[0].Alternates)

	assert.Equal(t, 1, rows[1].Seq)
	assert.Contains(t, rows[1].Alternates, "0100101=Valley View School District (50%)")

	assert.Equal(t, "all", rows[2].Scope)
}

func TestRunSummary(t *testing.T) {
	stats := match.NewStats()
	for _, out := range sampleOutputs() {
		stats.Record(out)
	}
	stats.Skipped = 2

	summary := RunSummary(stats)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 2, summary.Unmatched)
	assert.Equal(t, 1, summary.ByMethod["EXACT_NORM"])
	assert.Equal(t, 1, summary.ByTier["NONE"])
}
