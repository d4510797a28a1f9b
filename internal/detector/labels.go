package detector

import (
	"fmt"
	"slices"
)

// Label is the semantic role of a detected region.
type Label string

const (
	LabelGauge        Label = "gauge"
	LabelStationLabel Label = "station_label"
)

// Labels lists the roles a valid detection must contain, once each.
var Labels = []Label{LabelGauge, LabelStationLabel}

// Valid reports whether l is one of the known roles.
func (l Label) Valid() bool {
	return slices.Contains(Labels, l)
}

// ParseLabel converts a config string into a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown region label %q (must be %s or %s)", s, LabelGauge, LabelStationLabel)
	}
	return l, nil
}

// Roles maps model class ids to region labels. Class ids absent from the map
// are unlabelled.
type Roles map[int]Label

// DefaultRoles returns the class layout of the bundled detector.
func DefaultRoles() Roles {
	return Roles{0: LabelGauge, 1: LabelStationLabel}
}

// Lookup returns the label for classID.
func (r Roles) Lookup(classID int) (Label, bool) {
	l, ok := r[classID]
	return l, ok
}

// NumClasses returns one past the largest mapped class id.
func (r Roles) NumClasses() int {
	n := 0
	for id := range r {
		n = max(n, id+1)
	}
	return n
}

// Validate checks that every known label is mapped exactly once.
func (r Roles) Validate() error {
	seen := make(map[Label]int, len(r))
	for id, l := range r {
		if id < 0 {
			return fmt.Errorf("negative class id %d", id)
		}
		if !l.Valid() {
			return fmt.Errorf("class %d: unknown label %q", id, l)
		}
		if prev, dup := seen[l]; dup {
			return fmt.Errorf("label %q mapped to classes %d and %d", l, prev, id)
		}
		seen[l] = id
	}
	for _, l := range Labels {
		if _, ok := seen[l]; !ok {
			return fmt.Errorf("no class mapped to label %q", l)
		}
	}
	return nil
}
