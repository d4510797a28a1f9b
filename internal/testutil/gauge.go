package testutil

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GaugeSpec describes a synthetic staff gauge face. Marks and the waterline
// band are bright on a dark face so they survive a white top-hat.
type GaugeSpec struct {
	Width  int
	Height int

	Face      uint8 // gauge face brightness
	Mark      uint8 // mark and waterline brightness
	Offset    int   // uniform brightness offset applied to every pixel
	NoiseStd  float64
	NoiseSeed uint64

	// WaterlineRow is the lower edge of the waterline band. Negative means
	// no waterline is drawn.
	WaterlineRow  int
	BandThickness int

	// MajorTop is the row of the first major mark; marks repeat every
	// TickSpacing rows and every (MinorPerMajor+1)th mark is a major.
	MajorTop      int
	TickSpacing   int
	MinorPerMajor int
	MajorLabels   []string
	MarkThickness int
}

// DefaultGaugeSpec returns a 120x600 gauge with majors 1.0, 1.1, 1.2 and nine
// minors between each, no noise and no waterline.
func DefaultGaugeSpec() GaugeSpec {
	return GaugeSpec{
		Width:         120,
		Height:        600,
		Face:          40,
		Mark:          220,
		WaterlineRow:  -1,
		BandThickness: 9,
		MajorTop:      100,
		TickSpacing:   12,
		MinorPerMajor: 9,
		MajorLabels:   []string{"1.0", "1.1", "1.2", "1.3"},
		MarkThickness: 6,
	}
}

// WithTicksBelowMajor places the waterline n minor ticks below the first
// major mark.
func (s GaugeSpec) WithTicksBelowMajor(n int) GaugeSpec {
	s.WaterlineRow = s.MajorTop + n*s.TickSpacing
	return s
}

// TickRow returns the top row of mark i counted from MajorTop.
func (s GaugeSpec) TickRow(i int) int { return s.MajorTop + i*s.TickSpacing }

// Gray renders the gauge as an 8-bit gray image.
func (s GaugeSpec) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	fillRows(g, 0, s.Height, s.Width, s.Face)

	bandTop := s.Height
	if s.WaterlineRow >= 0 {
		bandTop = s.WaterlineRow - s.BandThickness + 1
	}

	// Marks are only visible above the water.
	majorEvery := s.MinorPerMajor + 1
	for i := 0; ; i++ {
		top := s.TickRow(i)
		if top+s.MarkThickness > bandTop-4 || top+s.MarkThickness > s.Height {
			break
		}
		width := s.Width / 4
		if i%majorEvery == 0 {
			width = s.Width * 2 / 5
			if idx := i / majorEvery; idx < len(s.MajorLabels) {
				drawLabel(g, s.MajorLabels[idx], width+6, top+s.MarkThickness, s.Mark)
			}
		}
		fillRows(g, top, top+s.MarkThickness, width, s.Mark)
	}

	if s.WaterlineRow >= 0 {
		fillRows(g, max(0, bandTop), min(s.Height, s.WaterlineRow+1), s.Width, s.Mark)
	}

	applyOffsetAndNoise(g, s.Offset, s.NoiseStd, s.NoiseSeed)
	return g
}

// RGBA renders the gauge with a slight colour cast, as a camera would.
func (s GaugeSpec) RGBA() *image.NRGBA {
	g := s.Gray()
	out := image.NewNRGBA(g.Rect)
	for y := range g.Rect.Dy() {
		for x := range g.Rect.Dx() {
			v := g.GrayAt(x, y).Y
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: sat(int(v) + 6), A: 255})
		}
	}
	return out
}

// String describes the gauge for test failure messages.
func (s GaugeSpec) String() string {
	return fmt.Sprintf("gauge(%dx%d row=%d noise=%.1f offset=%d)",
		s.Width, s.Height, s.WaterlineRow, s.NoiseStd, s.Offset)
}

func fillRows(g *image.Gray, from, to, width int, v uint8) {
	for y := max(0, from); y < min(to, g.Rect.Dy()); y++ {
		for x := range min(width, g.Rect.Dx()) {
			g.Pix[y*g.Stride+x] = v
		}
	}
}

func drawLabel(g *image.Gray, text string, x, baseline int, v uint8) {
	d := &font.Drawer{
		Dst:  g,
		Src:  image.NewUniform(color.Gray{Y: v}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

func applyOffsetAndNoise(g *image.Gray, offset int, std float64, seed uint64) {
	var rng *rand.Rand
	if std > 0 {
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	for i, v := range g.Pix {
		n := int(v) + offset
		if rng != nil {
			n += int(rng.NormFloat64() * std)
		}
		g.Pix[i] = sat(n)
	}
}

func sat(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
