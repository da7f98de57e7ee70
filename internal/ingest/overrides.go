package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/match"
	"github.com/fullmind/leamatch/internal/registry"
)

// overrideFile is the YAML shape of a curated override file.
type overrideFile struct {
	Overrides []overrideEntry `yaml:"overrides"`
}

type overrideEntry struct {
	Name        string `yaml:"name"`
	State       string `yaml:"state"`
	LEAID       string `yaml:"leaid"`
	MatchedName string `yaml:"matched_name"`
	Outcome     string `yaml:"outcome"`
	Confidence  string `yaml:"confidence"`
	Note        string `yaml:"note"`
}

// LoadOverrides reads a curated override file, .yaml/.yml or .csv, and
// validates each entry before returning it. A bad outcome or a
// CORRECTED/VERIFIED row without a LEAID fails the whole load: a
// silently dropped correction is worse than a hard error.
func LoadOverrides(ctx context.Context, path string) ([]match.Override, error) {
	var entries []overrideEntry
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = readOverrideYAML(path)
	case ".csv":
		entries, err = readOverrideCSV(ctx, path)
	default:
		return nil, eris.Errorf("ingest: unsupported override format %q (want .yaml, .yml, or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	overrides := make([]match.Override, 0, len(entries))
	for i, e := range entries {
		outcome := strings.ToUpper(strings.TrimSpace(e.Outcome))
		if !match.ValidOutcome(outcome) {
			return nil, eris.Errorf("ingest: override %d (%q): unknown outcome %q", i+1, e.Name, e.Outcome)
		}
		leaid := strings.TrimSpace(e.LEAID)
		if (outcome == string(match.OutcomeCorrected) || outcome == string(match.OutcomeVerified)) && leaid == "" {
			return nil, eris.Errorf("ingest: override %d (%q): outcome %s requires a leaid", i+1, e.Name, outcome)
		}
		overrides = append(overrides, match.Override{
			RawName:    strings.TrimSpace(e.Name),
			State:      strings.ToUpper(strings.TrimSpace(e.State)),
			LEAID:      leaid,
			Name:       strings.TrimSpace(e.MatchedName),
			Outcome:    match.Outcome(outcome),
			Confidence: strings.ToUpper(strings.TrimSpace(e.Confidence)),
			Note:       strings.TrimSpace(e.Note),
		})
	}
	return overrides, nil
}

func readOverrideYAML(path string) ([]overrideEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read override file")
	}
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "ingest: parse override yaml")
	}
	return file.Overrides, nil
}

// readOverrideCSV accepts the spreadsheet export shape with a
// name,state,leaid,matched_name,outcome,confidence,note header.
func readOverrideCSV(ctx context.Context, path string) ([]overrideEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open override file")
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
		return nil, eris.Wrap(err, "ingest: read override csv")
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, eris.New("ingest: override csv has no header row")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "outcome"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("ingest: override csv header missing %q column", required)
		}
	}

	col := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return cell(row, i)
	}

	entries := make([]overrideEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, overrideEntry{
			Name:        col(row, "name"),
			State:       col(row, "state"),
			LEAID:       col(row, "leaid"),
			MatchedName: col(row, "matched_name"),
			Outcome:     col(row, "outcome"),
			Confidence:  col(row, "confidence"),
			Note:        col(row, "note"),
		})
	}
	return entries, nil
}

// OverrideRows converts loaded overrides into store rows. The store
// keys on the same lowered-name/uppercased-state pair the lookup uses.
func OverrideRows(overrides []match.Override) []registry.OverrideRow {
	rows := make([]registry.OverrideRow, 0, len(overrides))
	for _, o := range overrides {
		rows = append(rows, registry.OverrideRow{
			NameKey:     strings.ToLower(strings.TrimSpace(o.RawName)),
			StateKey:    strings.ToUpper(strings.TrimSpace(o.State)),
			LEAID:       o.LEAID,
			MatchedName: o.Name,
			Outcome:     string(o.Outcome),
			Confidence:  o.Confidence,
			Note:        o.Note,
		})
	}
	return rows
}

// OverridesFromRows rebuilds pipeline overrides from persisted rows.
func OverridesFromRows(rows []registry.OverrideRow) []match.Override {
	overrides := make([]match.Override, 0, len(rows))
	for _, r := range rows {
		overrides = append(overrides, match.Override{
			RawName:    r.NameKey,
			State:      r.StateKey,
			LEAID:      r.LEAID,
			Name:       r.MatchedName,
			Outcome:    match.Outcome(r.Outcome),
			Confidence: r.Confidence,
			Note:       r.Note,
		})
	}
	return overrides
}
