package detector

import (
	"sort"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// NonMaxSuppression performs greedy class-aware NMS: a box only suppresses
// lower-scoring boxes of the same class. The result is sorted by confidence.
func NonMaxSuppression(boxes []Box, iouThreshold float64) []Box {
	if len(boxes) <= 1 {
		return boxes
	}

	indices := sortByConfidence(boxes)
	suppressed := make([]bool, len(boxes))
	kept := make([]Box, 0, len(boxes))

	for i, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, boxes[a])

		for _, b := range indices[i+1:] {
			if suppressed[b] || boxes[a].ClassID != boxes[b].ClassID {
				continue
			}
			if ComputeIoU(boxes[a], boxes[b]) > iouThreshold {
				suppressed[b] = true
			}
		}
	}

	return kept
}

// ComputeIoU computes intersection over union of two boxes.
func ComputeIoU(a, b Box) float64 {
	return toUtilsBox(a).IoU(toUtilsBox(b))
}

func toUtilsBox(b Box) utils.Box {
	return utils.NewBox(float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2))
}

// sortByConfidence returns box indices ordered by descending confidence.
// Ties keep input order.
func sortByConfidence(boxes []Box) []int {
	indices := make([]int, len(boxes))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return boxes[indices[i]].Confidence > boxes[indices[j]].Confidence
	})
	return indices
}
