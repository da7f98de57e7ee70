package match

import "strings"

// Method tags how a result (or alternate) was produced.
type Method string

const (
	MethodVerified       Method = "VERIFIED"
	MethodGivenNotFound  Method = "GIVEN_NOT_FOUND"
	MethodExactNorm      Method = "EXACT_NORM"
	MethodExactAccount   Method = "EXACT_ACCOUNT"
	MethodExactNormAcct  Method = "EXACT_NORM_ACCOUNT"
	MethodSubstring      Method = "SUBSTRING"
	MethodWordOverlap    Method = "WORD_OVERLAP"
	MethodAccountOverlap Method = "ACCT_OVERLAP"
	MethodNoMatch        Method = "NO_MATCH"
	MethodLowConfidence  Method = "LOW_CONFIDENCE"
	MethodNonK12         Method = "NON_K12"
	MethodInternational  Method = "INTERNATIONAL"
)

// scoreInput carries the precomputed comparison forms of one input name.
type scoreInput struct {
	fold   string
	norm   string
	tokens map[string]struct{}
}

func newScoreInput(cleanName string) scoreInput {
	norm := Normalize(cleanName)
	return scoreInput{
		fold:   foldName(cleanName),
		norm:   norm,
		tokens: tokenSet(norm),
	}
}

// rule scores one candidate against the input. ok is false when the
// rule does not apply; rules are tried in order and the first hit wins.
type rule func(in scoreInput, c *Candidate, minOverlapTokens int) (float64, Method, bool)

// rules is the scoring ladder. Order is load-bearing: each rule only
// fires when every rule above it declined.
var rules = []rule{
	exactNorm,
	exactAccount,
	exactNormAccount,
	substring,
	wordOverlap,
}

// exactNorm: normalized input equals normalized registry name.
func exactNorm(in scoreInput, c *Candidate, _ int) (float64, Method, bool) {
	if in.norm != "" && in.norm == c.NormName {
		return 1.00, MethodExactNorm, true
	}
	return 0, "", false
}

// exactAccount: raw input equals the CRM alias, case-insensitive. Runs
// on the unnormalized forms so alias spellings match verbatim.
func exactAccount(in scoreInput, c *Candidate, _ int) (float64, Method, bool) {
	if c.foldAccount != "" && in.fold == c.foldAccount {
		return 0.99, MethodExactAccount, true
	}
	return 0, "", false
}

// exactNormAccount: normalized input equals the normalized CRM alias.
func exactNormAccount(in scoreInput, c *Candidate, _ int) (float64, Method, bool) {
	if in.norm != "" && c.NormAccount != "" && in.norm == c.NormAccount {
		return 0.98, MethodExactNormAcct, true
	}
	return 0, "", false
}

// substring: either normalized form contains the other.
func substring(in scoreInput, c *Candidate, _ int) (float64, Method, bool) {
	if in.norm == "" || c.NormName == "" {
		return 0, "", false
	}
	if strings.Contains(in.norm, c.NormName) || strings.Contains(c.NormName, in.norm) {
		return 0.90, MethodSubstring, true
	}
	return 0, "", false
}

// wordOverlap: |input ∩ candidate| / |input| against the registry name
// and the alias; the higher side wins and tags the method. Requires at
// least minOverlapTokens input tokens so single generic words cannot
// score a full overlap against everything sharing them.
func wordOverlap(in scoreInput, c *Candidate, minOverlapTokens int) (float64, Method, bool) {
	if len(in.tokens) < minOverlapTokens {
		return 0, "", false
	}
	nameScore := overlapScore(in.tokens, c.nameTokens)
	acctScore := overlapScore(in.tokens, c.acctTokens)
	score, method := nameScore, MethodWordOverlap
	if acctScore > nameScore {
		score, method = acctScore, MethodAccountOverlap
	}
	if score >= 0.5 {
		return score, method, true
	}
	return 0, "", false
}

// overlapScore divides the shared token count by the input token count.
// The input is the denominator: a short input fully contained in a long
// candidate name still scores 1.0.
func overlapScore(input, candidate map[string]struct{}) float64 {
	if len(input) == 0 || len(candidate) == 0 {
		return 0
	}
	shared := 0
	for tok := range input {
		if _, ok := candidate[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(input))
}
