package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// decodeOutput turns a YOLOv8 head output into labelled boxes in source
// pixels. The head is [1, 4+classes, anchors]; each anchor holds a centre
// box (cx, cy, w, h) in letterboxed model space followed by class scores.
// The transposed [1, anchors, 4+classes] layout is accepted as well.
func decodeOutput(data []float32, shape []int64, cfg Config, lb utils.LetterboxInfo, src image.Rectangle) ([]Box, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	rows, cols := int(shape[1]), int(shape[2])
	if len(data) != rows*cols {
		return nil, fmt.Errorf("output data length %d != %d for shape %v", len(data), rows*cols, shape)
	}

	channels, anchors := rows, cols
	at := func(c, a int) float32 { return data[c*anchors+a] }
	if transposed(rows, cols, cfg.Roles.NumClasses()) {
		channels, anchors = cols, rows
		at = func(c, a int) float32 { return data[a*channels+c] }
	}
	numClasses := channels - 4
	if numClasses < 1 {
		return nil, fmt.Errorf("output has %d channels, need at least 5", channels)
	}

	var boxes []Box
	for a := range anchors {
		best, score := -1, float32(0)
		for c := range numClasses {
			if s := at(4+c, a); s > score {
				best, score = c, s
			}
		}
		if best < 0 || score < cfg.ConfidenceThreshold {
			continue
		}

		cx, cy, w, h := float64(at(0, a)), float64(at(1, a)), float64(at(2, a)), float64(at(3, a))
		x1, y1 := lb.ToSource(cx-w/2, cy-h/2)
		x2, y2 := lb.ToSource(cx+w/2, cy+h/2)
		rect := image.Rect(
			int(math.Floor(x1))+src.Min.X, int(math.Floor(y1))+src.Min.Y,
			int(math.Ceil(x2))+src.Min.X, int(math.Ceil(y2))+src.Min.Y,
		).Intersect(src)
		if rect.Empty() {
			continue
		}

		label, _ := cfg.Roles.Lookup(best)
		boxes = append(boxes, Box{
			ClassID:    best,
			Label:      label,
			Confidence: score,
			X1:         rect.Min.X,
			Y1:         rect.Min.Y,
			X2:         rect.Max.X,
			Y2:         rect.Max.Y,
		})
	}
	return boxes, nil
}

// transposed reports whether a [rows, cols] head stores one anchor per row.
// The class count decides when it matches exactly one axis; otherwise the
// shorter axis is taken as the channel axis.
func transposed(rows, cols, numClasses int) bool {
	switch {
	case rows == 4+numClasses:
		return false
	case cols == 4+numClasses:
		return true
	default:
		return rows > cols
	}
}
