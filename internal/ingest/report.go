package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fullmind/leamatch/internal/match"
	"github.com/fullmind/leamatch/internal/registry"
)

// reportHeader matches the review spreadsheet the curators work from.
var reportHeader = []string{
	"Name", "State", "LMS ID", "NCES ID (Given)",
	"Matched LEAID", "Matched DB Name", "Match Type", "Confidence", "Notes",
}

// WriteReport renders pipeline outputs as the review CSV.
func WriteReport(w io.Writer, outputs []match.Output) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return eris.Wrap(err, "ingest: write report header")
	}
	for _, out := range outputs {
		row := []string{
			out.Name,
			out.State,
			out.LMSID,
			out.GivenID,
			out.LEAID,
			out.MatchedName,
			out.MatchType,
			out.Confidence,
			reportNote(out),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "ingest: write report row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "ingest: flush report")
}

// FormatAlternates renders runner-up candidates as
// "leaid=name (pct%)" entries joined with "; ".
func FormatAlternates(alts []match.Alternate) string {
	if len(alts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(alts))
	for _, a := range alts {
		parts = append(parts, fmt.Sprintf("%s=%s (%.0f%%)", a.District.LEAID, a.District.Name, a.Score*100))
	}
	return strings.Join(parts, "; ")
}

// reportNote joins the alternates listing with any pipeline note, the
// way reviewers expect to read the Notes column.
func reportNote(out match.Output) string {
	alts := FormatAlternates(out.Alternates)
	switch {
	case alts == "":
		return out.Note
	case out.Note == "":
		return alts
	default:
		return alts + " " + out.Note
	}
}

// ResultRows converts pipeline outputs into persistable run results.
func ResultRows(outputs []match.Output) []registry.ResultRow {
	rows := make([]registry.ResultRow, 0, len(outputs))
	for i, out := range outputs {
		rows = append(rows, registry.ResultRow{
			Seq:         i,
			Name:        out.Name,
			State:       out.State,
			LMSID:       out.LMSID,
			GivenID:     out.GivenID,
			LEAID:       out.LEAID,
			MatchedName: out.MatchedName,
			MatchType:   out.MatchType,
			Confidence:  out.Confidence,
			Note:        out.Note,
			Score:       out.Score,
			Scope:       string(out.Scope),
			Overridden:  out.Overridden,
			Alternates:  FormatAlternates(out.Alternates),
		})
	}
	return rows
}

// RunSummary converts pipeline statistics into the persisted summary.
func RunSummary(stats *match.Stats) *registry.RunSummary {
	return &registry.RunSummary{
		Total:      stats.Total,
		Skipped:    stats.Skipped,
		Matched:    stats.Matched,
		Unmatched:  stats.Unmatched,
		Overridden: stats.Overridden,
		Dupes:      stats.Dupes,
		ByMethod:   stats.ByMethod,
		ByTier:     stats.ByTier,
	}
}
