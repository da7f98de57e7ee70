package match

import (
	"regexp"
	"sort"
	"strings"
)

// abbreviations expands common district-type shorthand to its spelled-out
// form before suffix stripping, so "Alief ISD" and "Alief Independent
// School District" converge on the same normalized name.
var abbreviations = [][2]string{
	{" isd", " independent school district"},
	{" cusd", " community unit school district"},
	{" usd", " unified school district"},
}

// suffixVocabulary lists organizational-type phrases removed during
// normalization. Processed longest-first so multi-word phrases are
// consumed whole before their shorter substrings.
var suffixVocabulary = []string{
	"school district", "public schools", "public school district",
	"community school district", "community unit school district",
	"unified school district", "independent school district",
	"central school district", "city school district",
	"community schools", "county schools", "county school district",
	"county school system", "city schools", "school corporation",
	"community consolidated school district",
	"consolidated school district",
	"exempted village school district",
	"township school district", "borough school district",
	"regional school district", "parish school board",
	"area schools", "area school district",
	"charter school", "charter schools", "charter academy",
	"charter", "academy", "school", "schools",
	"unified district", "elementary district",
	"high school district", "union school district",
	"reorganized school district", "school system",
	"supervisory union", "municipal schools",
	"public school", "school board",
	"elementary school district",
	"union free school district", "free school district",
	"enlarged school district",
	"county office of education",
	"county superintendent of schools",
	"office of education",
	"boces", "pcs",
	"district",
}

var (
	dupeTagRe       = regexp.MustCompile(`(?i)\s*\((?:dupe|district)\)\s*`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)
	districtNumRe   = regexp.MustCompile(`\s*#?\s*(?:no\.?\s*)?(?:re-?)?\d+[a-z]?\s*$`)
	trailingNumRe   = regexp.MustCompile(`\s*\d+[a-z]?\s*$`)
	nonAlphaRe      = regexp.MustCompile(`[^a-z\s]`)
	multiSpaceRe    = regexp.MustCompile(`\s+`)
	trailingDupeRe  = regexp.MustCompile(`(?i)\s*\(dupe\)\s*$`)
)

// suffixRes holds one whole-word pattern per vocabulary phrase, longest
// phrase first. Word boundaries keep "sd" and "charter" from eating the
// middle of unrelated words.
var suffixRes = func() []*regexp.Regexp {
	vocab := make([]string, len(suffixVocabulary))
	copy(vocab, suffixVocabulary)
	sort.SliceStable(vocab, func(i, j int) bool { return len(vocab[i]) > len(vocab[j]) })
	res := make([]*regexp.Regexp, len(vocab))
	for i, phrase := range vocab {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return res
}()

// Normalize reduces a district or school name to a canonical comparison
// form:
//  1. Lowercase and trim
//  2. Strip parenthetical annotations ("(dupe)", "(District)", "(Jpa)")
//  3. Expand district-type abbreviations (ISD, CUSD, USD)
//  4. Remove organizational-type suffix phrases, longest first
//  5. Strip trailing district numbers ("#1", "No. 2", "RE-8", "15")
//  6. Strip remaining non-alphabetic characters
//  7. Collapse runs of whitespace
//
// Total and idempotent; may return "" for names made up entirely of
// organizational vocabulary.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(name))
	s = dupeTagRe.ReplaceAllString(s, " ")
	s = parentheticalRe.ReplaceAllString(s, "")
	for _, ab := range abbreviations {
		s = strings.ReplaceAll(s, ab[0], ab[1])
	}
	for _, re := range suffixRes {
		s = re.ReplaceAllString(s, "")
	}
	s = districtNumRe.ReplaceAllString(s, "")
	s = trailingNumRe.ReplaceAllString(s, "")
	s = nonAlphaRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits a normalized name into its word set order-preserving
// slice. Callers treat the result as a set for overlap scoring.
func Tokens(norm string) []string {
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}

// CleanInputName strips a trailing "(dupe)" marker from a raw input name
// before matching. Override lookups still use the raw name.
func CleanInputName(name string) string {
	return strings.TrimSpace(trailingDupeRe.ReplaceAllString(name, ""))
}

// foldName is the comparison form for raw-name equality checks.
func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
