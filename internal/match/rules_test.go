package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullmind/leamatch/internal/registry"
)

func candidateFor(d registry.District) *Candidate {
	idx := NewIndex([]registry.District{d})
	return idx.Global()[0]
}

func TestExactNorm_Hit(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "4807530", Name: "Alief Independent School District", StateAbbrev: "TX"})
	score, method, ok := exactNorm(newScoreInput("Alief ISD"), c, 2)
	require.True(t, ok)
	assert.Equal(t, 1.00, score)
	assert.Equal(t, MethodExactNorm, method)
}

func TestExactNorm_EmptyNormNeverMatches(t *testing.T) {
	// Both sides normalize to "": still no match.
	c := candidateFor(registry.District{LEAID: "0000001", Name: "School District #1"})
	_, _, ok := exactNorm(newScoreInput("District"), c, 2)
	assert.False(t, ok)
}

func TestExactAccount_RawAliasEquality(t *testing.T) {
	c := candidateFor(registry.District{
		LEAID: "2900001", Name: "Mound City R-2 School District",
		StateAbbrev: "MO", AccountName: "Mound City Schools",
	})
	score, method, ok := exactAccount(newScoreInput("mound city schools"), c, 2)
	require.True(t, ok)
	assert.Equal(t, 0.99, score)
	assert.Equal(t, MethodExactAccount, method)
}

func TestExactAccount_NoAlias(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "2900001", Name: "Mound City R-2 School District"})
	_, _, ok := exactAccount(newScoreInput("mound city r-2 school district"), c, 2)
	assert.False(t, ok)
}

func TestExactNormAccount_NormalizedAliasEquality(t *testing.T) {
	c := candidateFor(registry.District{
		LEAID: "2900001", Name: "Mound City R-2 School District",
		StateAbbrev: "MO", AccountName: "Mound City Schools",
	})
	// Raw forms differ ("school" vs "schools") but both normalize to
	// "mound city".
	score, method, ok := exactNormAccount(newScoreInput("Mound City School"), c, 2)
	require.True(t, ok)
	assert.Equal(t, 0.98, score)
	assert.Equal(t, MethodExactNormAcct, method)
}

func TestSubstring_EitherDirection(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "0612345", Name: "Desert Sands Unified School District", StateAbbrev: "CA"})
	score, method, ok := substring(newScoreInput("Desert Sands Unified Community"), c, 2)
	require.True(t, ok)
	assert.Equal(t, 0.90, score)
	assert.Equal(t, MethodSubstring, method)

	// Candidate containing input.
	score, _, ok = substring(newScoreInput("Desert"), c, 2)
	require.True(t, ok)
	assert.Equal(t, 0.90, score)
}

func TestSubstring_EmptyNormDeclines(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "0612345", Name: "Desert Sands Unified School District"})
	_, _, ok := substring(newScoreInput("School District"), c, 2)
	assert.False(t, ok)
}

func TestWordOverlap_InputDenominator(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "0800001", Name: "Jefferson County School District", StateAbbrev: "CO"})
	// norm input "jefferson valley" vs candidate "jefferson": 1 of 2.
	score, method, ok := wordOverlap(newScoreInput("Jefferson Valley"), c, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, MethodWordOverlap, method)
}

func TestWordOverlap_BelowHalfDeclines(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "0800001", Name: "Jefferson County School District"})
	_, _, ok := wordOverlap(newScoreInput("North Jefferson Valley"), c, 2)
	assert.False(t, ok)
}

func TestWordOverlap_MinTokenFloor(t *testing.T) {
	c := candidateFor(registry.District{LEAID: "0800001", Name: "Jefferson County School District"})
	_, _, ok := wordOverlap(newScoreInput("Jefferson"), c, 2)
	assert.False(t, ok)

	// Floor of 1 lets single-token inputs through.
	score, _, ok := wordOverlap(newScoreInput("Jefferson"), c, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestWordOverlap_AccountSideWins(t *testing.T) {
	c := candidateFor(registry.District{
		LEAID: "3904384", Name: "Dayton City School District",
		StateAbbrev: "OH", AccountName: "Dayton Public Schools of Ohio",
	})
	// Alias norm "dayton of ohio" shares 2 of 2 input tokens, name norm
	// "dayton" shares 1 of 2.
	score, method, ok := wordOverlap(newScoreInput("Dayton Ohio"), c, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Equal(t, MethodAccountOverlap, method)
}

func TestRuleOrder_FirstHitWins(t *testing.T) {
	// A candidate whose name is both an exact normalized match and a
	// substring match reports EXACT_NORM.
	c := candidateFor(registry.District{LEAID: "4807530", Name: "Alief Independent School District", StateAbbrev: "TX"})
	in := newScoreInput("Alief ISD")
	for _, rl := range rules {
		score, method, ok := rl(in, c, 2)
		if ok {
			assert.Equal(t, MethodExactNorm, method)
			assert.Equal(t, 1.00, score)
			return
		}
	}
	t.Fatal("no rule fired")
}
