package edudata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullmind/leamatch/internal/fetcher"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: "test"})
	return NewClient(f, Options{BaseURL: srv.URL, DirectoryYear: 2022, MaxConcurrency: 2})
}

func TestDistricts_SingleState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/school-districts/ccd/directory/2022/", r.URL.Path)
		assert.Equal(t, "48", r.URL.Query().Get("fips"))
		fmt.Fprint(w, `{
			"count": 2,
			"next": "",
			"results": [
				{"leaid": "4807530", "lea_name": "Alief Independent School District", "state_location": "TX", "enrollment": 45000},
				{"leaid": "4816440", "lea_name": "Corpus Christi Independent School District", "state_location": "TX", "enrollment": 34000}
			]
		}`)
	})

	districts, err := client.Districts(context.Background(), []string{"tx"})
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "4807530", districts[0].LEAID)
	assert.Equal(t, "TX", districts[0].StateAbbrev)
	assert.Equal(t, 45000, districts[0].Enrollment)
	assert.False(t, districts[0].UpdatedAt.IsZero())
}

func TestDistricts_FollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"count": 2, "next": "", "results": [
				{"leaid": "3904384", "lea_name": "Dayton City School District", "state_location": "OH", "enrollment": 12000}
			]}`)
			return
		}
		fmt.Fprintf(w, `{"count": 2, "next": "%s/api/v1/school-districts/ccd/directory/2022/?fips=39&page=2", "results": [
			{"leaid": "3904378", "lea_name": "Columbus City School District", "state_location": "OH", "enrollment": 46000}
		]}`, srv.URL)
	}))
	t.Cleanup(srv.Close)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: "test"})
	client := NewClient(f, Options{BaseURL: srv.URL, DirectoryYear: 2022})

	districts, err := client.Districts(context.Background(), []string{"OH"})
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "3904378", districts[0].LEAID)
	assert.Equal(t, "3904384", districts[1].LEAID)
}

func TestDistricts_SkipsBlankAndClampsEnrollment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 3, "next": "", "results": [
			{"leaid": "", "lea_name": "Ghost District", "state_location": "TX", "enrollment": 10},
			{"leaid": "4800001", "lea_name": "", "state_location": "TX", "enrollment": 10},
			{"leaid": "4800002", "lea_name": "Real District", "state_location": "", "enrollment": -2}
		]}`)
	})

	districts, err := client.Districts(context.Background(), []string{"TX"})
	require.NoError(t, err)
	require.Len(t, districts, 1)
	assert.Equal(t, "4800002", districts[0].LEAID)
	// Missing state_location falls back to the requested state.
	assert.Equal(t, "TX", districts[0].StateAbbrev)
	// Negative sentinel enrollment reads as unknown.
	assert.Equal(t, 0, districts[0].Enrollment)
}

func TestDistricts_UnknownState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Districts(context.Background(), []string{"ZZ"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no FIPS code")
}

func TestDistricts_SortedAcrossStates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("fips") {
		case "48":
			fmt.Fprint(w, `{"count": 1, "next": "", "results": [
				{"leaid": "4807530", "lea_name": "Alief Independent School District", "state_location": "TX", "enrollment": 45000}
			]}`)
		case "1":
			fmt.Fprint(w, `{"count": 1, "next": "", "results": [
				{"leaid": "0100001", "lea_name": "Jefferson School District", "state_location": "AL", "enrollment": 1200}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	districts, err := client.Districts(context.Background(), []string{"TX", "AL"})
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "0100001", districts[0].LEAID)
	assert.Equal(t, "4807530", districts[1].LEAID)
}
