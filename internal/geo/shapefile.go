package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// boundaryColumns are the attribute columns loaded from the EDGE
// composite school district shapefile, in table order. A WKB geometry
// column is appended as the final element of each row.
var boundaryColumns = []string{"geoid", "name", "statefp", "lograde", "higrade", "schoolyear"}

// ParseBoundaries reads the EDGE shapefile and returns rows suitable
// for COPY loading. Records without a usable polygon are skipped.
func ParseBoundaries(shpPath string) ([][]any, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	var rows [][]any
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		row := make([]any, 0, len(boundaryColumns)+1)
		for _, col := range boundaryColumns {
			idx, ok := fieldIdx[col]
			if !ok {
				row = append(row, nil)
				continue
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val == "" {
				row = append(row, nil)
			} else {
				row = append(row, val)
			}
		}

		// The leaid attribute is the join key to the registry; a record
		// without it is unusable.
		if row[0] == nil {
			skipped++
			continue
		}

		wkb, encErr := EncodeWKB(shape)
		if encErr != nil || wkb == nil {
			skipped++
			continue
		}
		row = append(row, wkb)

		rows = append(rows, row)
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records", zap.Int("skipped", skipped))
	}

	return rows, nil
}
