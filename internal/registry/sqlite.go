package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS districts (
	leaid        TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	state_abbrev TEXT NOT NULL DEFAULT '',
	account_name TEXT NOT NULL DEFAULT '',
	enrollment   INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	score        REAL NOT NULL DEFAULT 0,
	scope        TEXT NOT NULL DEFAULT '',
	overridden   INTEGER NOT NULL DEFAULT 0,
	alternates   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_districts_state ON districts(state_abbrev);
CREATE INDEX IF NOT EXISTS idx_districts_name ON districts(name);
CREATE INDEX IF NOT EXISTS idx_match_runs_status ON match_runs(status);
CREATE INDEX IF NOT EXISTS idx_match_results_leaid ON match_results(leaid);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Districts(ctx context.Context) ([]District, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT leaid, name, state_abbrev, account_name, enrollment, updated_at
		 FROM districts ORDER BY leaid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query districts")
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.LEAID, &d.Name, &d.StateAbbrev, &d.AccountName, &d.Enrollment, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "sqlite: iterate districts")
}

func (s *SQLiteStore) UpsertDistricts(ctx context.Context, districts []District) (int64, error) {
	if len(districts) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO districts (leaid, name, state_abbrev, account_name, enrollment, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (leaid) DO UPDATE SET
		   name = excluded.name,
		   state_abbrev = excluded.state_abbrev,
		   enrollment = excluded.enrollment,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, d := range districts {
		if _, err := stmt.ExecContext(ctx, d.LEAID, d.Name, d.StateAbbrev, d.AccountName, d.Enrollment, now); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert district %s", d.LEAID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) UpdateAccountNames(ctx context.Context, aliases map[string]string) (int64, error) {
	var updated int64
	for leaid, alias := range aliases {
		res, err := s.db.ExecContext(ctx,
			`UPDATE districts SET account_name = ?, updated_at = datetime('now') WHERE leaid = ?`,
			alias, leaid)
		if err != nil {
			return updated, eris.Wrapf(err, "sqlite: update account name %s", leaid)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return updated, eris.Wrap(err, "sqlite: rows affected")
		}
		updated += n
	}
	return updated, nil
}

func (s *SQLiteStore) SearchDistricts(ctx context.Context, state, pattern string, limit int) ([]District, error) {
	if limit <= 0 {
		limit = 25
	}
	query := `SELECT leaid, name, state_abbrev, account_name, enrollment, updated_at
	          FROM districts WHERE (name LIKE ? COLLATE NOCASE OR account_name LIKE ? COLLATE NOCASE)`
	like := "%" + pattern + "%"
	args := []any{like, like}
	if state != "" {
		query += ` AND state_abbrev = ?`
		args = append(args, state)
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search districts")
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.LEAID, &d.Name, &d.StateAbbrev, &d.AccountName, &d.Enrollment, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "sqlite: iterate search")
}

func (s *SQLiteStore) ReplaceOverrides(ctx context.Context, rows []OverrideRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM overrides`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear overrides")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO overrides (name_key, state_key, leaid, matched_name, outcome, confidence, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name_key, state_key) DO UPDATE SET
		   leaid = excluded.leaid,
		   matched_name = excluded.matched_name,
		   outcome = excluded.outcome,
		   confidence = excluded.confidence,
		   note = excluded.note`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare override insert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.NameKey, r.StateKey, r.LEAID, r.MatchedName, r.Outcome, r.Confidence, r.Note); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert override %q", r.NameKey)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit overrides")
	}
	return n, nil
}

func (s *SQLiteStore) Overrides(ctx context.Context) ([]OverrideRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name_key, state_key, leaid, matched_name, outcome, confidence, note
		 FROM overrides ORDER BY name_key, state_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query overrides")
	}
	defer rows.Close()

	var out []OverrideRow
	for rows.Next() {
		var r OverrideRow
		if err := rows.Scan(&r.NameKey, &r.StateKey, &r.LEAID, &r.MatchedName, &r.Outcome, &r.Confidence, &r.Note); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate overrides")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_runs (id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, source, string(RunStatusRunning), now, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, Source: source, Status: RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status RunStatus, summary *RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "sqlite: complete run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, rows []ResultRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_results (run_id, seq, name, state, lms_id, given_id, leaid, matched_name,
		   match_type, confidence, note, score, scope, overridden, alternates)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare result insert")
	}
	defer stmt.Close()

	var n int64
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, i, r.Name, r.State, r.LMSID, r.GivenID,
			r.LEAID, r.MatchedName, r.MatchType, r.Confidence, r.Note,
			r.Score, r.Scope, r.Overridden, r.Alternates); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert result %d", i)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit results")
	}
	return n, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, summary, created_at, updated_at FROM match_runs WHERE id = ?`,
		runID)

	var r Run
	var summaryJSON sql.NullString
	err := row.Scan(&r.ID, &r.Source, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrRunNotFound, "sqlite: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		r.Summary = &RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, source, status, summary, created_at, updated_at FROM match_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var summaryJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
			r.Summary = &RunSummary{}
			if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string, limit, offset int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, name, state, lms_id, given_id, leaid, matched_name,
		        match_type, confidence, note, score, scope, overridden, alternates
		 FROM match_results WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		runID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Name, &r.State, &r.LMSID, &r.GivenID,
			&r.LEAID, &r.MatchedName, &r.MatchType, &r.Confidence, &r.Note,
			&r.Score, &r.Scope, &r.Overridden, &r.Alternates); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) Coverage(ctx context.Context) (*Coverage, error) {
	cov := &Coverage{DistrictsByState: make(map[string]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT count(*), count(CASE WHEN account_name <> '' THEN 1 END) FROM districts`)
	if err := row.Scan(&cov.Districts, &cov.WithAccount); err != nil {
		return nil, eris.Wrap(err, "sqlite: count districts")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM overrides`).Scan(&cov.Overrides); err != nil {
		return nil, eris.Wrap(err, "sqlite: count overrides")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM match_runs`).Scan(&cov.Runs); err != nil {
		return nil, eris.Wrap(err, "sqlite: count runs")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state_abbrev, count(*) FROM districts GROUP BY state_abbrev ORDER BY state_abbrev`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: per-state counts")
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state count")
		}
		cov.DistrictsByState[st] = n
	}
	return cov, eris.Wrap(rows.Err(), "sqlite: iterate state counts")
}

// Open selects a Store driver by name: "postgres" or "sqlite".
func Open(ctx context.Context, driver, databaseURL, sqlitePath string) (Store, error) {
	switch strings.ToLower(driver) {
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "sqlite":
		return NewSQLite(sqlitePath)
	default:
		return nil, eris.Errorf("registry: unknown store driver %q", driver)
	}
}
