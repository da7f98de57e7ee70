package match

import (
	"strings"

	"go.uber.org/zap"
)

// sentinelNames are placeholder rows that appear in revenue workbooks
// but are not organizations; they are skipped without an output row.
var sentinelNames = map[string]struct{}{
	"d2c":                         {},
	"events & engagement revenue": {},
	"events and engagement":       {},
	"events & engagement":         {},
}

// nonK12Keywords flag inputs that are not K-12 districts (universities,
// dioceses, enrichment programs). Checked against the lowered raw name.
var nonK12Keywords = []string{
	"university", "college", "upward bound", "gear up", "diocese",
	"metropolitan state", "state university", "community college",
	"technical college", "institute of technology",
	"d2c", "events & engagement", "events and engagement",
	"department of corrections", "board of education",
	"lulac national", "united friends", "parris foundation",
	"opportunity resource", "project stay", "learn inc",
	"catherine carlton", "methodist home",
}

// internationalState is the workbook's marker for non-US organizations.
const internationalState = "INT"

// Record is one workbook row entering the pipeline. LMSID passes
// through to the output; the workbook's own Notes column is kept on
// the record but the report writes a fresh Notes column.
type Record struct {
	Name    string
	State   string
	LMSID   string
	GivenID string
	Notes   string
}

// Output is one result row: the input identity columns plus the final
// classification after the override layer.
type Output struct {
	Name        string
	State       string
	LMSID       string
	GivenID     string
	LEAID       string
	MatchedName string
	// MatchType is the method tag for automated results or the outcome
	// for overridden ones.
	MatchType string
	// Confidence is the tier for automated results or the curated
	// confidence for overridden ones ("N/A" for non-entity outcomes).
	Confidence string
	Note       string
	Score      float64
	Scope      Scope
	Alternates []Alternate
	Overridden bool
}

// Pipeline drives resolve-then-override over a record stream. Single
// goroutine per run; the resolver and table are read-only.
type Pipeline struct {
	resolver  *Resolver
	overrides *OverrideTable
	log       *zap.Logger
}

// NewPipeline wires a resolver and an override table. overrides may be
// nil when no curated table is loaded.
func NewPipeline(resolver *Resolver, overrides *OverrideTable) *Pipeline {
	if overrides == nil {
		overrides = NewOverrideTable(nil)
	}
	return &Pipeline{
		resolver:  resolver,
		overrides: overrides,
		log:       zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run processes records in order and returns one output per
// non-skipped record plus run statistics.
func (p *Pipeline) Run(records []Record) ([]Output, *Stats) {
	stats := NewStats()
	outputs := make([]Output, 0, len(records))
	for _, rec := range records {
		out, ok := p.process(rec, stats)
		if ok {
			outputs = append(outputs, out)
		}
	}
	p.log.Info("run complete",
		zap.Int("records", len(records)),
		zap.Int("skipped", stats.Skipped),
		zap.Int("matched", stats.Matched),
		zap.Int("overridden", stats.Overridden),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("dupes", stats.Dupes))
	return outputs, stats
}

func (p *Pipeline) process(rec Record, stats *Stats) (Output, bool) {
	name := strings.TrimSpace(rec.Name)
	state := strings.ToUpper(strings.TrimSpace(rec.State))
	if name == "" || isSentinel(name) {
		stats.Skipped++
		return Output{}, false
	}

	out := Output{
		Name:    name,
		State:   state,
		LMSID:   strings.TrimSpace(rec.LMSID),
		GivenID: strings.TrimSpace(rec.GivenID),
	}

	// The override layer sees every record last and unconditionally,
	// including prefiltered ones, so a curated row always wins.
	if o, ok := p.overrides.Lookup(name, state); ok {
		out.LEAID = o.LEAID
		out.MatchedName = o.Name
		out.MatchType = string(o.Outcome)
		out.Confidence = o.Confidence
		out.Note = o.Note
		out.Overridden = true
		stats.Record(out)
		return out, true
	}

	if isNonK12(CleanInputName(name)) {
		out.MatchType = string(MethodNonK12)
		out.Confidence = "N/A"
		out.Note = "University/college/non-K12 entity"
		stats.Record(out)
		return out, true
	}
	if state == internationalState {
		out.MatchType = string(MethodInternational)
		out.Confidence = "N/A"
		out.Note = "International school - no NCES ID"
		stats.Record(out)
		return out, true
	}

	res := p.resolver.Resolve(Input{Name: name, State: state, GivenID: out.GivenID})
	if res.District != nil {
		out.LEAID = res.District.LEAID
		out.MatchedName = res.District.Name
	} else if res.Method == MethodGivenNotFound {
		out.LEAID = out.GivenID
		out.MatchedName = "(NOT IN DB)"
	}
	out.MatchType = string(res.Method)
	out.Confidence = string(res.Tier)
	out.Score = res.Score
	out.Scope = res.Scope
	out.Alternates = res.Alternates
	if res.Scope == ScopeGlobal && out.GivenID == "" {
		out.Note = "(searched all states)"
	}
	stats.Record(out)
	return out, true
}

func isSentinel(name string) bool {
	_, ok := sentinelNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func isNonK12(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range nonK12Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
