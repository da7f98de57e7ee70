package geo

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fullmind/leamatch/internal/db"
)

// boundarySchema holds the district boundary table and its load log.
// The geometry column is PostGIS MultiPolygon in EPSG:4326.
var boundarySchema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS district_boundaries (
		leaid       text PRIMARY KEY,
		name        text,
		state_fips  text,
		lo_grade    text,
		hi_grade    text,
		school_year text,
		the_geom    geometry(MultiPolygon, 4326)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_district_boundaries_geom
		ON district_boundaries USING GIST (the_geom)`,
	`CREATE INDEX IF NOT EXISTS idx_district_boundaries_state
		ON district_boundaries (state_fips)`,
	`CREATE TABLE IF NOT EXISTS boundary_load_status (
		school_year text PRIMARY KEY,
		row_count   integer NOT NULL,
		loaded_at   timestamptz NOT NULL DEFAULT now(),
		duration_ms integer
	)`,
}

// EnsureSchema creates the boundary tables if they do not exist.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	for _, stmt := range boundarySchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "geo: ensure schema")
		}
	}
	return nil
}
