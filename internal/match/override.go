package match

import (
	"strings"

	"go.uber.org/zap"
)

// Outcome classifies a curated override.
type Outcome string

const (
	OutcomeVerified         Outcome = "VERIFIED"
	OutcomeCorrected        Outcome = "CORRECTED"
	OutcomeNoMatch          Outcome = "NO_MATCH"
	OutcomePrivateSchool    Outcome = "PRIVATE_SCHOOL"
	OutcomeSchoolInDistrict Outcome = "SCHOOL_IN_DISTRICT"
	OutcomeNonK12           Outcome = "NON_K12"
	OutcomeAmbiguous        Outcome = "AMBIGUOUS"
	OutcomeDupe             Outcome = "DUPE"
)

// validOutcomes gates override loading; unknown outcomes are a data
// error in the curated file, not a soft default.
var validOutcomes = map[Outcome]struct{}{
	OutcomeVerified:         {},
	OutcomeCorrected:        {},
	OutcomeNoMatch:          {},
	OutcomePrivateSchool:    {},
	OutcomeSchoolInDistrict: {},
	OutcomeNonK12:           {},
	OutcomeAmbiguous:        {},
	OutcomeDupe:             {},
}

// ValidOutcome reports whether s names a known override outcome.
func ValidOutcome(s string) bool {
	_, ok := validOutcomes[Outcome(s)]
	return ok
}

// Override is one curated correction. LEAID and Name are empty for
// outcomes that assert the input has no registry entity (NO_MATCH,
// NON_K12, PRIVATE_SCHOOL, AMBIGUOUS, DUPE and friends).
type Override struct {
	RawName    string
	State      string
	LEAID      string
	Name       string
	Outcome    Outcome
	Confidence string
	Note       string
}

type overrideKey struct {
	name  string
	state string
}

// OverrideTable is the curated correction layer, keyed by the raw input
// name lowered and trimmed plus the state hint ("" is its own bucket).
// Immutable after construction; a hit fully replaces the automated
// resolution.
type OverrideTable struct {
	entries map[overrideKey]Override
}

// NewOverrideTable indexes entries. Later duplicates of the same
// (name, state) key win, matching curated-file edit order.
func NewOverrideTable(entries []Override) *OverrideTable {
	t := &OverrideTable{entries: make(map[overrideKey]Override, len(entries))}
	for _, e := range entries {
		t.entries[keyFor(e.RawName, e.State)] = e
	}
	zap.L().With(zap.String("component", "match")).Debug("override table built",
		zap.Int("entries", len(t.entries)))
	return t
}

// Lookup finds the override for a raw input name and state hint.
// Matching is exact on the folded name; no normalization is applied so
// curators control precisely which raw spellings are overridden.
func (t *OverrideTable) Lookup(rawName, state string) (Override, bool) {
	o, ok := t.entries[keyFor(rawName, state)]
	return o, ok
}

// Len reports the number of override entries.
func (t *OverrideTable) Len() int {
	return len(t.entries)
}

func keyFor(rawName, state string) overrideKey {
	return overrideKey{
		name:  strings.ToLower(strings.TrimSpace(rawName)),
		state: strings.ToUpper(strings.TrimSpace(state)),
	}
}
