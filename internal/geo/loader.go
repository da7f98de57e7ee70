// Package geo loads NCES EDGE school district boundary shapefiles into
// PostGIS and answers point-in-district lookups.
package geo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/db"
	"github.com/fullmind/leamatch/internal/fetcher"
)

// DefaultBaseURL is the NCES EDGE download host.
const DefaultBaseURL = "https://nces.ed.gov"

const defaultBatchSize = 10000

// LoadOptions configures the boundary load.
type LoadOptions struct {
	BaseURL    string
	SchoolYear string // four digits, e.g. "2223"
	TempDir    string
	BatchSize  int
}

// StatusRow is one row of boundary_load_status.
type StatusRow struct {
	SchoolYear string
	RowCount   int
	LoadedAt   time.Time
	DurationMs int
}

// Load downloads the EDGE composite shapefile for the configured school
// year and replaces the district_boundaries table with its contents.
func Load(ctx context.Context, pool db.Pool, f fetcher.Fetcher, opts LoadOptions) (int64, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if len(opts.SchoolYear) != 4 {
		return 0, eris.Errorf("geo: school year must be four digits like 2223, got %q", opts.SchoolYear)
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "leamatch-boundaries")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "geo"),
		zap.String("school_year", opts.SchoolYear),
	)

	if err := EnsureSchema(ctx, pool); err != nil {
		return 0, err
	}

	start := time.Now()

	shpPath, err := download(ctx, f, opts)
	if err != nil {
		return 0, err
	}
	log.Info("boundary shapefile ready", zap.String("path", shpPath))

	rows, err := ParseBoundaries(shpPath)
	if err != nil {
		return 0, err
	}
	log.Info("boundary shapefile parsed", zap.Int("rows", len(rows)))

	if _, err := pool.Exec(ctx, "TRUNCATE district_boundaries"); err != nil {
		return 0, eris.Wrap(err, "geo: truncate district_boundaries")
	}

	loaded, err := bulkLoad(ctx, pool, rows, opts.BatchSize)
	if err != nil {
		return loaded, err
	}

	duration := time.Since(start)
	if err := recordLoad(ctx, pool, opts.SchoolYear, int(loaded), int(duration.Milliseconds())); err != nil {
		log.Warn("failed to record load status", zap.Error(err))
	}

	log.Info("boundary load complete",
		zap.Int64("rows", loaded),
		zap.Duration("duration", duration),
	)
	return loaded, nil
}

// download fetches and extracts the composite ZIP, reusing a previously
// downloaded archive when present. The archive name encodes both the
// school year and the TIGER vintage, SCHOOLDISTRICT_SY2223_TL23.zip.
func download(ctx context.Context, f fetcher.Fetcher, opts LoadOptions) (string, error) {
	archive := fmt.Sprintf("SCHOOLDISTRICT_SY%s_TL%s.zip", opts.SchoolYear, opts.SchoolYear[2:])
	url := fmt.Sprintf("%s/programs/edge/data/%s", strings.TrimRight(opts.BaseURL, "/"), archive)

	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create temp dir")
	}
	zipPath := filepath.Join(opts.TempDir, archive)

	if info, statErr := os.Stat(zipPath); statErr != nil || info.Size() == 0 {
		zap.L().Info("downloading boundary shapefile",
			zap.String("component", "geo"),
			zap.String("url", url),
		)
		if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "geo: download boundary archive")
		}
	}

	extractDir := filepath.Join(opts.TempDir, strings.TrimSuffix(archive, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create extract dir")
	}
	files, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "geo: extract boundary archive")
	}

	for _, path := range files {
		if strings.HasSuffix(strings.ToLower(path), ".shp") {
			return path, nil
		}
	}
	return "", eris.Errorf("geo: no .shp file in %s", archive)
}

// bulkLoad loads parsed rows via the COPY protocol in batches.
func bulkLoad(ctx context.Context, pool db.Pool, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(boundaryColumns)+1)
	columns = append(columns, "leaid", "name", "state_fips", "lo_grade", "hi_grade", "school_year")
	columns = append(columns, "the_geom")

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := pool.CopyFrom(
			ctx,
			pgx.Identifier{"district_boundaries"},
			columns,
			pgx.CopyFromRows(rows[i:end]),
		)
		if err != nil {
			return total, eris.Wrapf(err, "geo: COPY into district_boundaries (batch %d-%d)", i, end)
		}
		total += n
	}
	return total, nil
}

func recordLoad(ctx context.Context, pool db.Pool, schoolYear string, rowCount, durationMs int) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO boundary_load_status (school_year, row_count, duration_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (school_year) DO UPDATE SET
			row_count = EXCLUDED.row_count,
			loaded_at = now(),
			duration_ms = EXCLUDED.duration_ms`,
		schoolYear, rowCount, durationMs,
	)
	if err != nil {
		return eris.Wrap(err, "geo: record load status")
	}
	return nil
}

// LoadStatus returns past boundary loads, newest first.
func LoadStatus(ctx context.Context, pool db.Pool) ([]StatusRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT school_year, row_count, loaded_at, COALESCE(duration_ms, 0)
		FROM boundary_load_status
		ORDER BY loaded_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query load status")
	}
	defer rows.Close()

	var status []StatusRow
	for rows.Next() {
		var sr StatusRow
		if err := rows.Scan(&sr.SchoolYear, &sr.RowCount, &sr.LoadedAt, &sr.DurationMs); err != nil {
			return nil, eris.Wrap(err, "geo: scan load status row")
		}
		status = append(status, sr)
	}
	return status, rows.Err()
}
