package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fullmind/leamatch/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for subsystems that need direct
// query access (e.g., the boundary loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS districts (
	leaid        TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	state_abbrev TEXT NOT NULL DEFAULT '',
	account_name TEXT NOT NULL DEFAULT '',
	enrollment   INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS overrides (
	name_key     TEXT NOT NULL,
	state_key    TEXT NOT NULL DEFAULT '',
	leaid        TEXT NOT NULL DEFAULT '',
	matched_name TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	confidence   TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (name_key, state_key)
);

CREATE TABLE IF NOT EXISTS match_runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_results (
	run_id       TEXT NOT NULL REFERENCES match_runs(id),
	seq          INTEGER NOT NULL,
	name         TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT '',
	lms_id       TEXT NOT NULL DEFAULT '',
	given_id     TEXT NOT NULL DEFAULT '',
	leaid        TEXT NOT NULL DEFAULT '',
	matched_name TEXT NOT NULL DEFAULT '',
	match_type   TEXT NOT NULL,
	confidence   TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	scope        TEXT NOT NULL DEFAULT '',
	overridden   BOOLEAN NOT NULL DEFAULT false,
	alternates   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_districts_state ON districts(state_abbrev);
CREATE INDEX IF NOT EXISTS idx_districts_name ON districts(name);
CREATE INDEX IF NOT EXISTS idx_match_runs_status ON match_runs(status);
CREATE INDEX IF NOT EXISTS idx_match_results_leaid ON match_results(leaid);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Districts(ctx context.Context) ([]District, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT leaid, name, state_abbrev, account_name, enrollment, updated_at
		 FROM districts ORDER BY leaid`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query districts")
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.LEAID, &d.Name, &d.StateAbbrev, &d.AccountName, &d.Enrollment, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "postgres: iterate districts")
}

func (s *PostgresStore) UpsertDistricts(ctx context.Context, districts []District) (int64, error) {
	rows := make([][]any, 0, len(districts))
	now := time.Now().UTC()
	for _, d := range districts {
		rows = append(rows, []any{d.LEAID, d.Name, d.StateAbbrev, d.AccountName, d.Enrollment, now})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "districts",
		Columns:      []string{"leaid", "name", "state_abbrev", "account_name", "enrollment", "updated_at"},
		ConflictKeys: []string{"leaid"},
		// The alias column is owned by the CRM sync; loader refreshes
		// must not blank it.
		UpdateCols: []string{"name", "state_abbrev", "enrollment", "updated_at"},
	}, rows)
}

func (s *PostgresStore) UpdateAccountNames(ctx context.Context, aliases map[string]string) (int64, error) {
	var updated int64
	for leaid, alias := range aliases {
		tag, err := s.pool.Exec(ctx,
			`UPDATE districts SET account_name = $1, updated_at = now() WHERE leaid = $2`,
			alias, leaid)
		if err != nil {
			return updated, eris.Wrapf(err, "postgres: update account name %s", leaid)
		}
		updated += tag.RowsAffected()
	}
	return updated, nil
}

func (s *PostgresStore) SearchDistricts(ctx context.Context, state, pattern string, limit int) ([]District, error) {
	if limit <= 0 {
		limit = 25
	}
	query := `SELECT leaid, name, state_abbrev, account_name, enrollment, updated_at
	          FROM districts WHERE (name ILIKE $1 OR account_name ILIKE $1)`
	args := []any{"%" + pattern + "%"}
	if state != "" {
		query += ` AND state_abbrev = $2 ORDER BY name LIMIT $3`
		args = append(args, state, limit)
	} else {
		query += ` ORDER BY name LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search districts")
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.LEAID, &d.Name, &d.StateAbbrev, &d.AccountName, &d.Enrollment, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "postgres: iterate search")
}

func (s *PostgresStore) ReplaceOverrides(ctx context.Context, rows []OverrideRow) (int64, error) {
	upsert := make([][]any, 0, len(rows))
	for _, r := range rows {
		upsert = append(upsert, []any{r.NameKey, r.StateKey, r.LEAID, r.MatchedName, r.Outcome, r.Confidence, r.Note})
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM overrides`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear overrides")
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "overrides",
		Columns:      []string{"name_key", "state_key", "leaid", "matched_name", "outcome", "confidence", "note"},
		ConflictKeys: []string{"name_key", "state_key"},
	}, upsert)
}

func (s *PostgresStore) Overrides(ctx context.Context) ([]OverrideRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name_key, state_key, leaid, matched_name, outcome, confidence, note
		 FROM overrides ORDER BY name_key, state_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query overrides")
	}
	defer rows.Close()

	var out []OverrideRow
	for rows.Next() {
		var r OverrideRow
		if err := rows.Scan(&r.NameKey, &r.StateKey, &r.LEAID, &r.MatchedName, &r.Outcome, &r.Confidence, &r.Note); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate overrides")
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, source, string(RunStatusRunning), now, now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, Source: source, Status: RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status RunStatus, summary *RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "postgres: complete run %s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveResults(ctx context.Context, runID string, rows []ResultRow) (int64, error) {
	copyRows := make([][]any, 0, len(rows))
	for i, r := range rows {
		copyRows = append(copyRows, []any{
			runID, i, r.Name, r.State, r.LMSID, r.GivenID, r.LEAID, r.MatchedName,
			r.MatchType, r.Confidence, r.Note, r.Score, r.Scope, r.Overridden, r.Alternates,
		})
	}
	return db.CopyFrom(ctx, s.pool, "match_results", []string{
		"run_id", "seq", "name", "state", "lms_id", "given_id", "leaid", "matched_name",
		"match_type", "confidence", "note", "score", "scope", "overridden", "alternates",
	}, copyRows)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, summary, created_at, updated_at FROM match_runs WHERE id = $1`,
		runID)
	return scanRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, source, status, summary, created_at, updated_at FROM match_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string, limit, offset int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, seq, name, state, lms_id, given_id, leaid, matched_name,
		        match_type, confidence, note, score, scope, overridden, alternates
		 FROM match_results WHERE run_id = $1 ORDER BY seq LIMIT $2 OFFSET $3`,
		runID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Name, &r.State, &r.LMSID, &r.GivenID,
			&r.LEAID, &r.MatchedName, &r.MatchType, &r.Confidence, &r.Note,
			&r.Score, &r.Scope, &r.Overridden, &r.Alternates); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) Coverage(ctx context.Context) (*Coverage, error) {
	cov := &Coverage{DistrictsByState: make(map[string]int)}

	row := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE account_name <> '') FROM districts`)
	if err := row.Scan(&cov.Districts, &cov.WithAccount); err != nil {
		return nil, eris.Wrap(err, "postgres: count districts")
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM overrides`).Scan(&cov.Overrides); err != nil {
		return nil, eris.Wrap(err, "postgres: count overrides")
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM match_runs`).Scan(&cov.Runs); err != nil {
		return nil, eris.Wrap(err, "postgres: count runs")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT state_abbrev, count(*) FROM districts GROUP BY state_abbrev ORDER BY state_abbrev`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: per-state counts")
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan state count")
		}
		cov.DistrictsByState[st] = n
	}
	return cov, eris.Wrap(rows.Err(), "postgres: iterate state counts")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var summaryJSON []byte

	err := row.Scan(&r.ID, &r.Source, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrRunNotFound, "postgres: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if len(summaryJSON) > 0 {
		r.Summary = &RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}
