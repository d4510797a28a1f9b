package detector

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Box is a labelled detection in source image pixels.
type Box struct {
	ClassID    int     `json:"class_id"`
	Label      Label   `json:"label,omitempty"`
	Confidence float32 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

// Rect returns the box as an image rectangle.
func (b Box) Rect() image.Rectangle { return image.Rect(b.X1, b.Y1, b.X2, b.Y2) }

// Width returns the box width.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box height.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Result holds the boxes found in one image. Found counts the boxes that
// survived NMS before the MaxDetections cap; zero means len(Boxes).
type Result struct {
	Boxes    []Box         `json:"boxes"`
	Found    int           `json:"found,omitempty"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Duration time.Duration `json:"duration_ns"`
}

// DetectionCountError reports a detection that is not exactly one gauge and
// one station label.
type DetectionCountError struct {
	Count  int
	Labels []Label
}

func (e *DetectionCountError) Error() string {
	names := make([]string, len(e.Labels))
	for i, l := range e.Labels {
		if l == "" {
			names[i] = "<unlabelled>"
		} else {
			names[i] = string(l)
		}
	}
	return fmt.Sprintf("expected exactly one %s and one %s, got %d boxes [%s]",
		LabelGauge, LabelStationLabel, e.Count, strings.Join(names, ", "))
}

// Labels returns the label of every box in order.
func (r *Result) Labels() []Label {
	if r == nil {
		return nil
	}
	out := make([]Label, len(r.Boxes))
	for i, b := range r.Boxes {
		out[i] = b.Label
	}
	return out
}

// Count returns the number of boxes the model found, including any dropped
// by the MaxDetections cap.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return max(r.Found, len(r.Boxes))
}

// Validate requires exactly two boxes carrying distinct known labels.
func (r *Result) Validate() error {
	if n := r.Count(); n != len(Labels) {
		return &DetectionCountError{Count: n, Labels: r.Labels()}
	}
	seen := make(map[Label]bool, len(Labels))
	for _, b := range r.Boxes {
		if !b.Label.Valid() || seen[b.Label] {
			return &DetectionCountError{Count: len(r.Boxes), Labels: r.Labels()}
		}
		seen[b.Label] = true
	}
	return nil
}

// Find returns the first box with the given label.
func (r *Result) Find(label Label) (Box, bool) {
	if r == nil {
		return Box{}, false
	}
	for _, b := range r.Boxes {
		if b.Label == label {
			return b, true
		}
	}
	return Box{}, false
}
