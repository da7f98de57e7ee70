package match

import (
	"sort"

	"github.com/fullmind/leamatch/internal/registry"
)

// Tier is the confidence tier of a resolution.
type Tier string

const (
	TierVerified Tier = "VERIFIED"
	TierHigh     Tier = "HIGH"
	TierMedium   Tier = "MEDIUM"
	TierLow      Tier = "LOW"
	TierNone     Tier = "NONE"
)

// Scope records which candidate pool a resolution searched.
type Scope string

const (
	ScopeState  Scope = "state"
	ScopeGlobal Scope = "all"
)

// Tier thresholds for the best candidate score.
const (
	highThreshold = 0.90
	lowThreshold  = 0.60
)

// maxAlternates caps the ranked runner-up list on every result.
const maxAlternates = 3

// Input is one record to resolve.
type Input struct {
	Name string
	// State is a jurisdiction hint, a USPS abbreviation or "".
	State string
	// GivenID is a supplied NCES id; when present it short-circuits
	// name matching entirely.
	GivenID string
}

// Alternate is a ranked runner-up candidate.
type Alternate struct {
	District *registry.District
	Score    float64
	Method   Method
}

// Resolution is the automated outcome for one input.
type Resolution struct {
	// District is the chosen entity, nil when Tier is NONE.
	District   *registry.District
	Score      float64
	Method     Method
	Tier       Tier
	Scope      Scope
	Alternates []Alternate
}

// Resolver scores inputs against an immutable Index. Resolve is pure:
// same input and index, same resolution.
type Resolver struct {
	index *Index
	// minOverlapTokens is the input-token floor below which the overlap
	// rules decline (exact and substring rules still apply).
	minOverlapTokens int
}

// NewResolver builds a resolver over idx. minOverlapTokens below 1 is
// treated as 1.
func NewResolver(idx *Index, minOverlapTokens int) *Resolver {
	if minOverlapTokens < 1 {
		minOverlapTokens = 1
	}
	return &Resolver{index: idx, minOverlapTokens: minOverlapTokens}
}

// Resolve runs the supplied-id short-circuit, scope selection, scoring
// and tiering for one input.
func (r *Resolver) Resolve(in Input) Resolution {
	if in.GivenID != "" {
		if c, ok := r.index.ByID(in.GivenID); ok {
			return Resolution{
				District: c.District,
				Score:    1.00,
				Method:   MethodVerified,
				Tier:     TierVerified,
				Scope:    ScopeGlobal,
			}
		}
		return Resolution{Method: MethodGivenNotFound, Tier: TierNone, Scope: ScopeGlobal}
	}

	scope := ScopeGlobal
	candidates := r.index.Global()
	if in.State != "" {
		if bucket := r.index.Candidates(in.State); len(bucket) > 0 {
			scope = ScopeState
			candidates = bucket
		}
	}

	scored := r.scoreAll(CleanInputName(in.Name), candidates)
	if len(scored) == 0 {
		return Resolution{Method: MethodNoMatch, Tier: TierNone, Scope: scope}
	}

	best := scored[0]
	switch {
	case best.Score >= highThreshold:
		tier := TierHigh
		if scope == ScopeGlobal {
			tier = TierMedium
		}
		return Resolution{
			District:   best.District,
			Score:      best.Score,
			Method:     best.Method,
			Tier:       tier,
			Scope:      scope,
			Alternates: clip(scored[1:], maxAlternates-1),
		}
	case best.Score >= lowThreshold:
		tier := TierMedium
		if scope == ScopeGlobal {
			tier = TierLow
		}
		return Resolution{
			District:   best.District,
			Score:      best.Score,
			Method:     best.Method,
			Tier:       tier,
			Scope:      scope,
			Alternates: clip(scored[1:], maxAlternates-1),
		}
	default:
		return Resolution{
			Method:     MethodLowConfidence,
			Tier:       TierNone,
			Scope:      scope,
			Alternates: clip(scored, maxAlternates),
		}
	}
}

// scoreAll applies the rule ladder to every candidate and returns the
// hits sorted by score descending. The sort is stable so equal scores
// keep registry order.
func (r *Resolver) scoreAll(cleanName string, candidates []*Candidate) []Alternate {
	in := newScoreInput(cleanName)
	var scored []Alternate
	for _, c := range candidates {
		for _, rl := range rules {
			score, method, ok := rl(in, c, r.minOverlapTokens)
			if ok {
				scored = append(scored, Alternate{District: c.District, Score: score, Method: method})
				break
			}
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func clip(alts []Alternate, n int) []Alternate {
	if len(alts) > n {
		alts = alts[:n]
	}
	if len(alts) == 0 {
		return nil
	}
	out := make([]Alternate, len(alts))
	copy(out, alts)
	return out
}
