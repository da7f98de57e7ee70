// Package registry holds the canonical NCES district registry: the
// District model, the persistence Store, and the loaders' target schema.
package registry

import "time"

// District is one LEA (local education agency) row from the NCES
// directory, enriched with the CRM account alias when one is linked.
type District struct {
	// LEAID is the 7-digit NCES identifier, kept as a string to
	// preserve leading zeros.
	LEAID       string
	Name        string
	StateAbbrev string
	// AccountName is the CRM account alias for this district, "" when
	// no account is linked.
	AccountName string
	// Enrollment is the most recent reported student count, 0 when
	// unknown.
	Enrollment int
	UpdatedAt  time.Time
}
