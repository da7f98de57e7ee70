// Package ingest reads deduping workbooks and curated override files,
// and renders match reports.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/match"
	"github.com/fullmind/leamatch/internal/transform"
)

// columns holds the resolved header positions of a workbook. Only the
// name column is mandatory.
type columns struct {
	name  int
	state int
	lms   int
	nces  int
	notes int
}

// headerAliases maps lowered header cells to logical columns. Workbooks
// arrive with slightly different labels depending on who exported them.
var headerAliases = map[string]string{
	"name":            "name",
	"district name":   "name",
	"state":           "state",
	"state abb.":      "state",
	"state abb":       "state",
	"state abbrev":    "state",
	"lms id":          "lms",
	"lms":             "lms",
	"nces id":         "nces",
	"nces id (given)": "nces",
	"nces":            "nces",
	"notes":           "notes",
}

// ReadWorkbook loads a deduping workbook into pipeline records. The
// format is chosen by file extension: .csv or .xlsx.
func ReadWorkbook(ctx context.Context, path string) ([]match.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open workbook")
		}
		defer f.Close() //nolint:errcheck
		return readCSVRows(ctx, f)
	case ".xlsx":
		return readXLSXRows(path)
	default:
		return nil, eris.Errorf("ingest: unsupported workbook format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func readCSVRows(ctx context.Context, f *os.File) ([]match.Record, error) {
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
		return nil, eris.Wrap(err, "ingest: read workbook")
	}

	select {
	case header := <-headerCh:
		return mapRows(header, rows)
	default:
		return nil, eris.New("ingest: workbook has no header row")
	}
}

func readXLSXRows(path string) ([]match.Record, error) {
	raw, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read workbook")
	}
	if len(raw) == 0 {
		return nil, eris.New("ingest: workbook has no header row")
	}
	return mapRows(raw[0], raw[1:])
}

func mapRows(header []string, rows [][]string) ([]match.Record, error) {
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	records := make([]match.Record, 0, len(rows))
	for _, row := range rows {
		rec := match.Record{
			Name:    cell(row, cols.name),
			LMSID:   cell(row, cols.lms),
			GivenID: cell(row, cols.nces),
			Notes:   cell(row, cols.notes),
		}
		// Keep unknown state values as-is (uppercased) so the resolver
		// can still fall back to a global search.
		rec.State, _ = transform.NormalizeState(cell(row, cols.state))
		records = append(records, rec)
	}

	zap.L().Debug("workbook parsed",
		zap.String("component", "ingest"),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

func mapColumns(header []string) (columns, error) {
	cols := columns{name: -1, state: -1, lms: -1, nces: -1, notes: -1}
	for i, cellText := range header {
		key, ok := headerAliases[strings.ToLower(strings.TrimSpace(cellText))]
		if !ok {
			continue
		}
		switch key {
		case "name":
			cols.name = i
		case "state":
			cols.state = i
		case "lms":
			cols.lms = i
		case "nces":
			cols.nces = i
		case "notes":
			cols.notes = i
		}
	}
	if cols.name < 0 {
		return cols, eris.Errorf("ingest: workbook header has no Name column (got %v)", header)
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
