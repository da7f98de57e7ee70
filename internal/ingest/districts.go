package ingest

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/registry"
	"github.com/fullmind/leamatch/internal/transform"
)

// districtAliases maps lowered header cells of an NCES directory export
// to logical columns. CCD files label these LEAID/LEA_NAME/ST/MEMBER.
var districtAliases = map[string]string{
	"leaid":      "leaid",
	"lea_id":     "leaid",
	"nces id":    "leaid",
	"lea_name":   "name",
	"name":       "name",
	"st":         "state",
	"state":      "state",
	"statename":  "state",
	"member":     "enrollment",
	"enrollment": "enrollment",
}

// ReadDistrictCSV loads an NCES directory CSV export into registry
// districts, sorted by LEAID. Rows without a LEAID or name are skipped.
func ReadDistrictCSV(ctx context.Context, path string) ([]registry.District, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open district csv")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: read district csv")
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, eris.New("ingest: district csv has no header row")
	}

	idx := map[string]int{"leaid": -1, "name": -1, "state": -1, "enrollment": -1}
	for i, cellText := range header {
		if key, ok := districtAliases[strings.ToLower(strings.TrimSpace(cellText))]; ok {
			idx[key] = i
		}
	}
	if idx["leaid"] < 0 || idx["name"] < 0 {
		return nil, eris.Errorf("ingest: district csv header needs LEAID and LEA_NAME columns (got %v)", header)
	}

	var skipped int
	districts := make([]registry.District, 0, len(rows))
	for _, row := range rows {
		d := registry.District{
			LEAID: cell(row, idx["leaid"]),
			Name:  cell(row, idx["name"]),
		}
		if d.LEAID == "" || d.Name == "" {
			skipped++
			continue
		}
		d.StateAbbrev, _ = transform.NormalizeState(cell(row, idx["state"]))
		// Negative counts are the CCD missing-data sentinel.
		if n, err := strconv.Atoi(cell(row, idx["enrollment"])); err == nil && n > 0 {
			d.Enrollment = n
		}
		districts = append(districts, d)
	}

	sort.Slice(districts, func(i, j int) bool { return districts[i].LEAID < districts[j].LEAID })

	zap.L().Info("district csv parsed",
		zap.String("component", "ingest"),
		zap.String("path", path),
		zap.Int("districts", len(districts)),
		zap.Int("skipped", skipped),
	)
	return districts, nil
}
