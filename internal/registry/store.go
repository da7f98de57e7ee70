package registry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = eris.New("run not found")

// RunStatus tracks a match run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one batch match run.
type Run struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary is the aggregate outcome of a completed run.
type RunSummary struct {
	Total      int            `json:"total"`
	Skipped    int            `json:"skipped"`
	Matched    int            `json:"matched"`
	Unmatched  int            `json:"unmatched"`
	Overridden int            `json:"overridden"`
	Dupes      int            `json:"dupes,omitempty"`
	ByMethod   map[string]int `json:"by_method,omitempty"`
	ByTier     map[string]int `json:"by_tier,omitempty"`
}

// ResultRow is one persisted output row of a run. Alternates is the
// report formatting, "leaid=name (pct%)" joined with "; ".
type ResultRow struct {
	RunID       string  `json:"run_id"`
	Seq         int     `json:"seq"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	LMSID       string  `json:"lms_id"`
	GivenID     string  `json:"given_id"`
	LEAID       string  `json:"leaid"`
	MatchedName string  `json:"matched_name"`
	MatchType   string  `json:"match_type"`
	Confidence  string  `json:"confidence"`
	Note        string  `json:"note"`
	Score       float64 `json:"score"`
	Scope       string  `json:"scope"`
	Overridden  bool    `json:"overridden"`
	Alternates  string  `json:"alternates"`
}

// OverrideRow is the persisted form of one curated override. NameKey
// and StateKey are the lookup key (name lowered/trimmed, state
// uppercased, "" for no state).
type OverrideRow struct {
	NameKey     string `json:"name_key"`
	StateKey    string `json:"state_key"`
	LEAID       string `json:"leaid"`
	MatchedName string `json:"matched_name"`
	Outcome     string `json:"outcome"`
	Confidence  string `json:"confidence"`
	Note        string `json:"note"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Coverage summarizes registry contents for the status command.
type Coverage struct {
	Districts        int            `json:"districts"`
	WithAccount      int            `json:"with_account"`
	Overrides        int            `json:"overrides"`
	Runs             int            `json:"runs"`
	DistrictsByState map[string]int `json:"districts_by_state"`
}

// Store is the persistence interface for the registry, the curated
// override table, and match run history.
type Store interface {
	// Districts returns the full registry snapshot ordered by LEAID.
	// That order is the match engine's tie-break order.
	Districts(ctx context.Context) ([]District, error)
	UpsertDistricts(ctx context.Context, districts []District) (int64, error)
	// UpdateAccountNames sets CRM alias columns keyed by LEAID and
	// reports how many districts were updated.
	UpdateAccountNames(ctx context.Context, aliases map[string]string) (int64, error)
	// SearchDistricts is the curator lookup: case-insensitive pattern
	// match on name and account name, optionally scoped to a state.
	SearchDistricts(ctx context.Context, state, pattern string, limit int) ([]District, error)

	// Overrides
	ReplaceOverrides(ctx context.Context, rows []OverrideRow) (int64, error)
	Overrides(ctx context.Context) ([]OverrideRow, error)

	// Runs
	CreateRun(ctx context.Context, source string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus, summary *RunSummary) error
	SaveResults(ctx context.Context, runID string, rows []ResultRow) (int64, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	ListResults(ctx context.Context, runID string, limit, offset int) ([]ResultRow, error)

	// Stats
	Coverage(ctx context.Context) (*Coverage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
