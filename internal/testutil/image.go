package testutil

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// StationLabel renders a station id plate: dark text on a light plate,
// scaled up from the 7x13 bitmap font.
func StationLabel(id string, width, height int) *image.NRGBA {
	face := basicfont.Face7x13
	tw := font.MeasureString(face, id).Ceil() + 4
	th := face.Metrics().Height.Ceil() + 4

	small := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{235, 235, 225, 255}), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.RGBA{20, 20, 30, 255}),
		Face: face,
		Dot:  fixed.P(2, th-4),
	}
	d.DrawString(id)

	return imaging.Resize(small, width, height, imaging.NearestNeighbor)
}

// Scene is a synthetic MMS photo holding a gauge and a station label at
// known places.
type Scene struct {
	Image     *image.NRGBA
	GaugeRect image.Rectangle
	LabelRect image.Rectangle
	GaugeSpec GaugeSpec
	StationID string
}

// NewScene composes gauge and label onto a plain background.
func NewScene(spec GaugeSpec, stationID string) Scene {
	const w, h = 800, 800
	bg := imaging.New(w, h, color.NRGBA{R: 90, G: 110, B: 80, A: 255})

	gaugeAt := image.Pt(100, 100)
	bg = imaging.Paste(bg, spec.RGBA(), gaugeAt)
	gaugeRect := image.Rectangle{Min: gaugeAt, Max: gaugeAt.Add(image.Pt(spec.Width, spec.Height))}

	labelAt := image.Pt(400, 200)
	label := StationLabel(stationID, 280, 120)
	bg = imaging.Paste(bg, label, labelAt)
	labelRect := image.Rectangle{Min: labelAt, Max: labelAt.Add(label.Bounds().Size())}

	return Scene{
		Image:     bg,
		GaugeRect: gaugeRect,
		LabelRect: labelRect,
		GaugeSpec: spec,
		StationID: stationID,
	}
}

// RedLineRow returns the first row of img whose pixels are mostly pure red,
// or -1 when no such row exists.
func RedLineRow(img image.Image) int {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		red := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r>>8 > 200 && g>>8 < 60 && bl>>8 < 60 {
				red++
			}
		}
		if red*10 >= b.Dx()*9 {
			return y - b.Min.Y
		}
	}
	return -1
}
