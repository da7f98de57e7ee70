package geo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/fullmind/leamatch/internal/db"
)

// Boundary identifies one district boundary record.
type Boundary struct {
	LEAID      string
	Name       string
	StateFIPS  string
	SchoolYear string
}

// DistrictAt finds the district whose boundary contains the given
// point. Returns nil when no boundary contains it.
func DistrictAt(ctx context.Context, pool db.Pool, lon, lat float64) (*Boundary, error) {
	row := pool.QueryRow(ctx, `
		SELECT leaid, COALESCE(name, ''), COALESCE(state_fips, ''), COALESCE(school_year, '')
		FROM district_boundaries
		WHERE ST_Contains(the_geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		LIMIT 1`,
		lon, lat,
	)

	var b Boundary
	err := row.Scan(&b.LEAID, &b.Name, &b.StateFIPS, &b.SchoolYear)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geo: district at point")
	}
	return &b, nil
}
