package detector

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
	"github.com/disintegration/imaging"
)

var labelColors = map[Label]color.NRGBA{
	LabelGauge:        {R: 0, G: 200, B: 255, A: 255},
	LabelStationLabel: {R: 255, G: 170, B: 0, A: 255},
}

// Visualize returns a copy of img with every box outlined; unlabelled boxes
// are drawn in magenta.
func Visualize(img image.Image, result *Result) *image.NRGBA {
	out := imaging.Clone(img)
	if result == nil {
		return out
	}
	origin := img.Bounds().Min
	for _, b := range result.Boxes {
		col, ok := labelColors[b.Label]
		if !ok {
			col = color.NRGBA{R: 255, B: 255, A: 255}
		}
		utils.DrawRect(out, b.Rect().Sub(origin), col, 3)
	}
	return out
}
