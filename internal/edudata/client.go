// Package edudata pulls LEA directory records from the Urban Institute
// Education Data API (educationdata.urban.org).
package edudata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/registry"
)

// DefaultBaseURL is the production Education Data API endpoint.
const DefaultBaseURL = "https://educationdata.urban.org"

// stateFIPS maps USPS codes to census FIPS codes, which the API uses
// as its jurisdiction filter.
var stateFIPS = map[string]int{
	"AL": 1, "AK": 2, "AZ": 4, "AR": 5, "CA": 6, "CO": 8, "CT": 9, "DE": 10,
	"DC": 11, "FL": 12, "GA": 13, "HI": 15, "ID": 16, "IL": 17, "IN": 18,
	"IA": 19, "KS": 20, "KY": 21, "LA": 22, "ME": 23, "MD": 24, "MA": 25,
	"MI": 26, "MN": 27, "MS": 28, "MO": 29, "MT": 30, "NE": 31, "NV": 32,
	"NH": 33, "NJ": 34, "NM": 35, "NY": 36, "NC": 37, "ND": 38, "OH": 39,
	"OK": 40, "OR": 41, "PA": 42, "RI": 44, "SC": 45, "SD": 46, "TN": 47,
	"TX": 48, "UT": 49, "VT": 50, "VA": 51, "WA": 53, "WV": 54, "WI": 55,
	"WY": 56,
}

// Options configures the client.
type Options struct {
	BaseURL        string
	DirectoryYear  int
	MaxConcurrency int
}

// Client fetches CCD district directory data.
type Client struct {
	f              fetcher.Fetcher
	baseURL        string
	year           int
	maxConcurrency int
}

// NewClient creates a directory client over the given fetcher.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	return &Client{
		f:              f,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		year:           opts.DirectoryYear,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// directoryPage is one page of the paginated API response.
type directoryPage struct {
	Count   int            `json:"count"`
	Next    string         `json:"next"`
	Results []directoryRow `json:"results"`
}

type directoryRow struct {
	LEAID         string `json:"leaid"`
	Name          string `json:"lea_name"`
	StateLocation string `json:"state_location"`
	Enrollment    int    `json:"enrollment"`
}

// Districts fetches directory records for the given USPS state codes.
// An empty list means every state plus DC. States are fetched in
// parallel, bounded by MaxConcurrency; results come back sorted by LEAID.
func (c *Client) Districts(ctx context.Context, states []string) ([]registry.District, error) {
	if len(states) == 0 {
		states = allStates()
	}

	log := zap.L().With(zap.String("component", "edudata"))
	log.Info("fetching district directory",
		zap.Int("year", c.year),
		zap.Int("states", len(states)),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	var mu sync.Mutex
	var all []registry.District

	for _, state := range states {
		state := strings.ToUpper(strings.TrimSpace(state))
		fips, ok := stateFIPS[state]
		if !ok {
			return nil, eris.Errorf("edudata: no FIPS code for state %q", state)
		}

		g.Go(func() error {
			districts, err := c.fetchState(gCtx, state, fips)
			if err != nil {
				return eris.Wrapf(err, "edudata: fetch state %s", state)
			}
			mu.Lock()
			all = append(all, districts...)
			mu.Unlock()
			log.Debug("state directory loaded",
				zap.String("state", state),
				zap.Int("districts", len(districts)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].LEAID < all[j].LEAID })
	log.Info("district directory fetched", zap.Int("districts", len(all)))
	return all, nil
}

// fetchState walks every page of one state's directory listing.
func (c *Client) fetchState(ctx context.Context, state string, fips int) ([]registry.District, error) {
	url := fmt.Sprintf("%s/api/v1/school-districts/ccd/directory/%d/?fips=%d", c.baseURL, c.year, fips)

	var districts []registry.District
	now := time.Now().UTC()

	for url != "" {
		body, err := c.f.Download(ctx, url)
		if err != nil {
			return nil, eris.Wrap(err, "download page")
		}

		page, err := fetcher.DecodeJSONObject[directoryPage](body)
		_ = body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "decode page")
		}

		for _, row := range page.Results {
			if row.LEAID == "" || row.Name == "" {
				continue
			}
			enrollment := row.Enrollment
			// The API encodes missing counts as negative sentinels.
			if enrollment < 0 {
				enrollment = 0
			}
			abbrev := strings.ToUpper(strings.TrimSpace(row.StateLocation))
			if abbrev == "" {
				abbrev = state
			}
			districts = append(districts, registry.District{
				LEAID:       row.LEAID,
				Name:        row.Name,
				StateAbbrev: abbrev,
				Enrollment:  enrollment,
				UpdatedAt:   now,
			})
		}

		url = page.Next
	}

	return districts, nil
}

func allStates() []string {
	states := make([]string, 0, len(stateFIPS))
	for state := range stateFIPS {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}
