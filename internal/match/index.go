package match

import (
	"strings"

	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/registry"
)

// Candidate is one registry district with its comparison forms
// precomputed at index build time.
type Candidate struct {
	District *registry.District

	// NormName and NormAccount are Normalize() of the primary name and
	// the CRM alias. foldAccount is the alias lowered and trimmed, used
	// by the raw-equality rule.
	NormName    string
	NormAccount string
	foldAccount string
	nameTokens  map[string]struct{}
	acctTokens  map[string]struct{}
}

// Index is the in-memory candidate index for one match run. Built once
// from a registry snapshot and read-only afterwards.
type Index struct {
	byState map[string][]*Candidate
	all     []*Candidate
	byID    map[string]*Candidate
}

// NewIndex builds the index from districts in registry order. That order
// (LEAID ascending as loaded) is the tie-break order for equal scores,
// so bucket slices preserve it.
func NewIndex(districts []registry.District) *Index {
	idx := &Index{
		byState: make(map[string][]*Candidate),
		all:     make([]*Candidate, 0, len(districts)),
		byID:    make(map[string]*Candidate, len(districts)),
	}
	for i := range districts {
		d := &districts[i]
		c := &Candidate{
			District: d,
			NormName: Normalize(d.Name),
		}
		if d.AccountName != "" {
			c.NormAccount = Normalize(d.AccountName)
			c.foldAccount = foldName(d.AccountName)
		}
		c.nameTokens = tokenSet(c.NormName)
		c.acctTokens = tokenSet(c.NormAccount)
		idx.all = append(idx.all, c)
		idx.byID[d.LEAID] = c
		if st := strings.ToUpper(strings.TrimSpace(d.StateAbbrev)); st != "" {
			idx.byState[st] = append(idx.byState[st], c)
		}
	}
	zap.L().With(zap.String("component", "match")).Debug("index built",
		zap.Int("districts", len(idx.all)),
		zap.Int("states", len(idx.byState)))
	return idx
}

// Candidates returns the bucket for a state abbreviation, or nil when
// the state is unknown or has no districts.
func (idx *Index) Candidates(state string) []*Candidate {
	return idx.byState[strings.ToUpper(strings.TrimSpace(state))]
}

// Global returns every candidate in registry order.
func (idx *Index) Global() []*Candidate {
	return idx.all
}

// ByID looks up a candidate by LEAID.
func (idx *Index) ByID(leaid string) (*Candidate, bool) {
	c, ok := idx.byID[strings.TrimSpace(leaid)]
	return c, ok
}

// Size reports the number of indexed districts.
func (idx *Index) Size() int {
	return len(idx.all)
}

func tokenSet(norm string) map[string]struct{} {
	if norm == "" {
		return nil
	}
	fields := strings.Fields(norm)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
