package station

import "slices"

// usStates are the two-letter postal abbreviations station ids start with.
var usStates = []string{
	"AK", "AL", "AR", "AZ", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "IA", "ID", "IL", "IN", "KS", "KY", "LA", "MA", "MD",
	"ME", "MI", "MN", "MO", "MS", "MT", "NC", "ND", "NE", "NH",
	"NJ", "NM", "NV", "NY", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VA", "VT", "WA", "WI", "WV", "WY",
}

// IsStatePrefix reports whether s is a US state abbreviation. Matching is
// case sensitive; callers upper-case user input first.
func IsStatePrefix(s string) bool {
	_, found := slices.BinarySearch(usStates, s)
	return found
}
