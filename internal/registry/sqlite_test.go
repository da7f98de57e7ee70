package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedDistricts(t *testing.T, store *SQLiteStore) {
	t.Helper()
	_, err := store.UpsertDistricts(context.Background(), []District{
		{LEAID: "4807530", Name: "Alief Independent School District", StateAbbrev: "TX", Enrollment: 45000},
		{LEAID: "0100001", Name: "Jefferson School District", StateAbbrev: "AL", Enrollment: 1200},
		{LEAID: "3904384", Name: "Dayton City School District", StateAbbrev: "OH", Enrollment: 12000},
	})
	require.NoError(t, err)
}

func TestSQLiteDistricts_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	seedDistricts(t, store)

	districts, err := store.Districts(context.Background())
	require.NoError(t, err)
	require.Len(t, districts, 3)
	// LEAID order regardless of insert order.
	assert.Equal(t, "0100001", districts[0].LEAID)
	assert.Equal(t, "3904384", districts[1].LEAID)
	assert.Equal(t, "4807530", districts[2].LEAID)
	assert.Equal(t, 45000, districts[2].Enrollment)
}

func TestSQLiteUpsertDistricts_PreservesAccountName(t *testing.T) {
	store := newSQLiteStore(t)
	seedDistricts(t, store)
	ctx := context.Background()

	n, err := store.UpdateAccountNames(ctx, map[string]string{"4807530": "Alief ISD"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A registry refresh must not blank the CRM alias.
	_, err = store.UpsertDistricts(ctx, []District{
		{LEAID: "4807530", Name: "Alief Independent School District", StateAbbrev: "TX", Enrollment: 46000},
	})
	require.NoError(t, err)

	districts, err := store.Districts(ctx)
	require.NoError(t, err)
	for _, d := range districts {
		if d.LEAID == "4807530" {
			assert.Equal(t, "Alief ISD", d.AccountName)
			assert.Equal(t, 46000, d.Enrollment)
		}
	}
}

func TestSQLiteUpdateAccountNames_UnknownLEAID(t *testing.T) {
	store := newSQLiteStore(t)
	seedDistricts(t, store)

	n, err := store.UpdateAccountNames(context.Background(), map[string]string{"9999999": "Ghost District"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLiteSearchDistricts(t *testing.T) {
	store := newSQLiteStore(t)
	seedDistricts(t, store)
	ctx := context.Background()

	found, err := store.SearchDistricts(ctx, "", "alief", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "4807530", found[0].LEAID)

	found, err = store.SearchDistricts(ctx, "OH", "school district", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "3904384", found[0].LEAID)

	found, err = store.SearchDistricts(ctx, "TX", "dayton", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSQLiteOverrides_ReplaceAndList(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	n, err := store.ReplaceOverrides(ctx, []OverrideRow{
		{NameKey: "alief isd", StateKey: "TX", LEAID: "4807530", MatchedName: "Alief Independent School District", Outcome: "CORRECTED", Confidence: "HIGH"},
		{NameKey: "aurora public schools", StateKey: "CO", Outcome: "NO_MATCH", Confidence: "NONE"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Replace is wholesale: the old table is gone.
	n, err = store.ReplaceOverrides(ctx, []OverrideRow{
		{NameKey: "alief isd", StateKey: "TX", LEAID: "4807530", Outcome: "CORRECTED", Confidence: "HIGH"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := store.Overrides(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alief isd", rows[0].NameKey)
	assert.Equal(t, "CORRECTED", rows[0].Outcome)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "deduping.csv")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	_, err = store.SaveResults(ctx, run.ID, []ResultRow{
		{Name: "Alief Isd", State: "TX", LEAID: "4807530", MatchType: "EXACT_NORM", Confidence: "HIGH", Score: 1.0},
		{Name: "Aurora Public Schools", State: "CO", MatchType: "NO_MATCH", Confidence: "NONE"},
	})
	require.NoError(t, err)

	err = store.CompleteRun(ctx, run.ID, RunStatusComplete, &RunSummary{Total: 2, Matched: 1, Unmatched: 1})
	require.NoError(t, err)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.Total)

	results, err := store.ListResults(ctx, run.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Seq)
	assert.Equal(t, "4807530", results[0].LEAID)

	// Pagination.
	page, err := store.ListResults(ctx, run.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Seq)
}

func TestSQLiteCompleteRun_NotFound(t *testing.T) {
	store := newSQLiteStore(t)

	err := store.CompleteRun(context.Background(), "missing", RunStatusComplete, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteListRuns_Filter(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	a, err := store.CreateRun(ctx, "a.csv")
	require.NoError(t, err)
	_, err = store.CreateRun(ctx, "b.csv")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, a.ID, RunStatusComplete, &RunSummary{}))

	complete, err := store.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	all, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteCoverage(t *testing.T) {
	store := newSQLiteStore(t)
	seedDistricts(t, store)
	ctx := context.Background()

	_, err := store.UpdateAccountNames(ctx, map[string]string{"4807530": "Alief ISD"})
	require.NoError(t, err)
	_, err = store.ReplaceOverrides(ctx, []OverrideRow{
		{NameKey: "x", StateKey: "", Outcome: "NO_MATCH"},
	})
	require.NoError(t, err)

	cov, err := store.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cov.Districts)
	assert.Equal(t, 1, cov.WithAccount)
	assert.Equal(t, 1, cov.Overrides)
	assert.Equal(t, 0, cov.Runs)
	assert.Equal(t, 1, cov.DistrictsByState["TX"])
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}
