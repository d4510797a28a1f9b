package detector

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// ROI is a region cropped from the source image. It belongs to the pipeline
// run that produced it.
type ROI struct {
	Label Label
	Box   Box
	Image *image.NRGBA
}

// ExtractROI validates result and crops the region carrying label. Boxes are
// chosen by label, never by position, and clamped to the image bounds.
func ExtractROI(img image.Image, result *Result, label Label) (ROI, error) {
	if err := result.Validate(); err != nil {
		return ROI{}, err
	}
	box, ok := result.Find(label)
	if !ok {
		return ROI{}, &DetectionCountError{Count: result.Count(), Labels: result.Labels()}
	}
	if img == nil {
		return ROI{}, fmt.Errorf("extract %s: input image is nil", label)
	}

	rect := box.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return ROI{}, fmt.Errorf("extract %s: box %v lies outside image %v", label, box.Rect(), img.Bounds())
	}
	return ROI{Label: label, Box: box, Image: utils.CropImageRect(img, rect)}, nil
}

// ExtractROIs returns the gauge and station-label regions of one image.
func ExtractROIs(img image.Image, result *Result) (gauge, stationLabel ROI, err error) {
	gauge, err = ExtractROI(img, result, LabelGauge)
	if err != nil {
		return ROI{}, ROI{}, err
	}
	stationLabel, err = ExtractROI(img, result, LabelStationLabel)
	if err != nil {
		return ROI{}, ROI{}, err
	}
	return gauge, stationLabel, nil
}
