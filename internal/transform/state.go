// Package transform converts raw workbook values into canonical forms.
package transform

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stateAbbrevs maps full state names to USPS two-letter codes.
var stateAbbrevs = map[string]string{
	"Alabama": "AL", "Alaska": "AK", "Arizona": "AZ", "Arkansas": "AR",
	"California": "CA", "Colorado": "CO", "Connecticut": "CT", "Delaware": "DE",
	"Florida": "FL", "Georgia": "GA", "Hawaii": "HI", "Idaho": "ID",
	"Illinois": "IL", "Indiana": "IN", "Iowa": "IA", "Kansas": "KS",
	"Kentucky": "KY", "Louisiana": "LA", "Maine": "ME", "Maryland": "MD",
	"Massachusetts": "MA", "Michigan": "MI", "Minnesota": "MN", "Mississippi": "MS",
	"Missouri": "MO", "Montana": "MT", "Nebraska": "NE", "Nevada": "NV",
	"New Hampshire": "NH", "New Jersey": "NJ", "New Mexico": "NM", "New York": "NY",
	"North Carolina": "NC", "North Dakota": "ND", "Ohio": "OH", "Oklahoma": "OK",
	"Oregon": "OR", "Pennsylvania": "PA", "Rhode Island": "RI", "South Carolina": "SC",
	"South Dakota": "SD", "Tennessee": "TN", "Texas": "TX", "Utah": "UT",
	"Vermont": "VT", "Virginia": "VA", "Washington": "WA", "West Virginia": "WV",
	"Wisconsin": "WI", "Wyoming": "WY", "District of Columbia": "DC",
}

// StateInternational marks rows for organizations outside the US.
const StateInternational = "INT"

var (
	stateNames = make(map[string]string, len(stateAbbrevs))
	titleCaser = cases.Title(language.AmericanEnglish)
)

func init() {
	for name, code := range stateAbbrevs {
		stateNames[code] = name
	}
}

// NormalizeState resolves a workbook state value to a USPS abbreviation.
// It accepts two-letter codes in any case, full state names in any case,
// and the INT sentinel. Unrecognized values come back unchanged, uppercased,
// with ok=false so callers can decide whether to widen to a global search.
func NormalizeState(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	upper := strings.ToUpper(s)
	if upper == StateInternational {
		return StateInternational, true
	}
	if len(upper) == 2 {
		if _, ok := stateNames[upper]; ok {
			return upper, true
		}
		return upper, false
	}

	// Full names arrive in mixed case ("new york", "NORTH CAROLINA").
	titled := titleCaser.String(strings.ToLower(s))
	// Title casing capitalizes "Of"; the map key uses the postal form.
	titled = strings.ReplaceAll(titled, " Of ", " of ")
	if code, ok := stateAbbrevs[titled]; ok {
		return code, true
	}
	return upper, false
}

// FullName returns the full state name for a USPS code.
func FullName(code string) (string, bool) {
	name, ok := stateNames[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// ValidAbbrev reports whether code is a recognized USPS state code.
func ValidAbbrev(code string) bool {
	_, ok := stateNames[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
