package match

// Stats aggregates one run. Written by the single pipeline goroutine.
type Stats struct {
	Total      int
	Skipped    int
	Matched    int
	Unmatched  int
	Overridden int
	// Dupes counts rows curated as duplicates of another input row.
	// They appear in the report but stay out of every other counter.
	Dupes int
	// ByMethod counts output rows per MatchType value.
	ByMethod map[string]int
	// ByTier counts output rows per Confidence value.
	ByTier map[string]int
}

// NewStats returns zeroed statistics.
func NewStats() *Stats {
	return &Stats{
		ByMethod: make(map[string]int),
		ByTier:   make(map[string]int),
	}
}

// Record folds one output row into the counters.
func (s *Stats) Record(out Output) {
	if out.MatchType == string(OutcomeDupe) {
		s.Dupes++
		return
	}
	s.Total++
	s.ByMethod[out.MatchType]++
	s.ByTier[out.Confidence]++
	if out.Overridden {
		s.Overridden++
	}
	if out.LEAID != "" && out.MatchType != string(MethodGivenNotFound) {
		s.Matched++
	} else {
		s.Unmatched++
	}
}
