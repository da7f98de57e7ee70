package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullmind/leamatch/internal/match"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverrides_YAML(t *testing.T) {
	path := writeTempFile(t, "overrides.yaml", `
overrides:
  - name: Alief Isd
    state: TX
    leaid: "4807530"
    matched_name: Alief Independent School District
    outcome: CORRECTED
    confidence: HIGH
  - name: Aurora Day School
    state: CO
    outcome: PRIVATE_SCHOOL
    confidence: HIGH
    note: private school, not an LEA
`)

	overrides, err := LoadOverrides(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	assert.Equal(t, "Alief Isd", overrides[0].RawName)
	assert.Equal(t, "TX", overrides[0].State)
	assert.Equal(t, "4807530", overrides[0].LEAID)
	assert.Equal(t, match.OutcomeCorrected, overrides[0].Outcome)

	assert.Equal(t, match.OutcomePrivateSchool, overrides[1].Outcome)
	assert.Empty(t, overrides[1].LEAID)
	assert.Equal(t, "private school, not an LEA", overrides[1].Note)
}

func TestLoadOverrides_CSV(t *testing.T) {
	path := writeTempFile(t, "overrides.csv", `name,state,leaid,matched_name,outcome,confidence,note
Alief Isd,tx,4807530,Alief Independent School District,corrected,high,
Ghost District,,,,NO_MATCH,NONE,not in registry
`)

	overrides, err := LoadOverrides(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	// Outcome, state, and confidence are case-folded on load.
	assert.Equal(t, "TX", overrides[0].State)
	assert.Equal(t, match.OutcomeCorrected, overrides[0].Outcome)
	assert.Equal(t, "HIGH", overrides[0].Confidence)

	assert.Empty(t, overrides[1].State)
	assert.Equal(t, match.OutcomeNoMatch, overrides[1].Outcome)
}

func TestLoadOverrides_UnknownOutcome(t *testing.T) {
	path := writeTempFile(t, "overrides.yaml", `
overrides:
  - name: Alief Isd
    state: TX
    outcome: MAYBE
`)

	_, err := LoadOverrides(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown outcome")
}

func TestLoadOverrides_CorrectedRequiresLEAID(t *testing.T) {
	path := writeTempFile(t, "overrides.yaml", `
overrides:
  - name: Alief Isd
    state: TX
    outcome: CORRECTED
`)

	_, err := LoadOverrides(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a leaid")
}

func TestLoadOverrides_CSVMissingOutcomeColumn(t *testing.T) {
	path := writeTempFile(t, "overrides.csv", `name,state
Alief Isd,TX
`)

	_, err := LoadOverrides(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing "outcome"`)
}

func TestOverrideRows_RoundTrip(t *testing.T) {
	overrides := []match.Override{
		{RawName: "  Alief Isd ", State: "tx", LEAID: "4807530", Name: "Alief Independent School District", Outcome: match.OutcomeCorrected, Confidence: "HIGH"},
	}

	rows := OverrideRows(overrides)
	require.Len(t, rows, 1)
	assert.Equal(t, "alief isd", rows[0].NameKey)
	assert.Equal(t, "TX", rows[0].StateKey)

	back := OverridesFromRows(rows)
	require.Len(t, back, 1)

	// The rebuilt table answers the same lookups.
	table := match.NewOverrideTable(back)
	o, ok := table.Lookup("Alief ISD", "tx")
	require.True(t, ok)
	assert.Equal(t, "4807530", o.LEAID)
}

func TestOverridesFromRows_Empty(t *testing.T) {
	assert.Empty(t, OverridesFromRows(nil))
	assert.Empty(t, OverrideRows(nil))
}
