package preprocess

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func grayFrom(w, h int, vals []uint8) *image.Gray {
	g := newGray(w, h)
	copy(g.Pix, vals)
	return g
}

func TestMorph_ErodeDilateSinglePixel(t *testing.T) {
	g := newGray(5, 5)
	g.Pix[2*5+2] = 255

	dil := Morph(g, MorphDilate, 3)
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			assert.Equal(t, uint8(255), dil.GrayAt(x, y).Y, "dilate (%d,%d)", x, y)
		}
	}
	assert.Equal(t, uint8(0), dil.GrayAt(0, 0).Y)

	ero := Morph(g, MorphErode, 3)
	for _, v := range ero.Pix {
		assert.Equal(t, uint8(0), v)
	}
}

func TestMorph_OpenRemovesSpeckKeepsBlock(t *testing.T) {
	g := newGray(20, 20)
	g.Pix[1*20+1] = 255 // isolated speck
	for y := 8; y < 16; y++ {
		for x := 8; x < 16; x++ {
			g.Pix[y*20+x] = 255
		}
	}

	opened := Morph(g, MorphOpen, 5)
	assert.Equal(t, uint8(0), opened.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(255), opened.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(255), opened.GrayAt(8, 15).Y)
}

func TestMorph_CloseFillsGap(t *testing.T) {
	g := newGray(20, 5)
	for x := range 20 {
		if x != 10 {
			for y := range 5 {
				g.Pix[y*20+x] = 255
			}
		}
	}
	closed := Morph(g, MorphClose, 3)
	assert.Equal(t, uint8(255), closed.GrayAt(10, 2).Y)
}

func TestMorph_TopHatCancelsIllumination(t *testing.T) {
	// A thin bright line on a horizontal brightness ramp.
	g := newGray(60, 40)
	for y := range 40 {
		for x := range 60 {
			g.Pix[y*60+x] = uint8(30 + x)
		}
	}
	for x := range 60 {
		g.Pix[20*60+x] = 250
	}

	th := Morph(g, MorphTopHat, 15)
	assert.Greater(t, th.GrayAt(30, 20).Y, uint8(150))
	// Away from the line only the ramp's local slope remains.
	assert.Less(t, th.GrayAt(30, 5).Y, uint8(16))
}

func TestMorphologicalOp_String(t *testing.T) {
	assert.Equal(t, "tophat", MorphTopHat.String())
	assert.Equal(t, "morph(42)", MorphologicalOp(42).String())
}

func TestMorphStep_RejectsBadKernel(t *testing.T) {
	_, err := MorphStep(MorphOpen, 0).Apply(newGray(2, 2))
	assert.Error(t, err)
}

func TestMorph_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genImage := gen.SliceOfN(64, gen.UInt8())

	properties.Property("open <= src <= close pixelwise", prop.ForAll(
		func(vals []uint8, k int) bool {
			g := grayFrom(8, 8, vals)
			opened := Morph(g, MorphOpen, k)
			closed := Morph(g, MorphClose, k)
			for i := range g.Pix {
				if opened.Pix[i] > g.Pix[i] || closed.Pix[i] < g.Pix[i] {
					return false
				}
			}
			return true
		},
		genImage,
		gen.OneConstOf(1, 3, 5),
	))

	properties.Property("top-hat ignores constant offset", prop.ForAll(
		func(vals []uint8, offset int) bool {
			g := grayFrom(8, 8, vals)
			shifted := newGray(8, 8)
			for i, v := range g.Pix {
				g.Pix[i] = v / 2
				shifted.Pix[i] = v/2 + uint8(offset)
			}
			a := Morph(g, MorphTopHat, 3)
			b := Morph(shifted, MorphTopHat, 3)
			for i := range a.Pix {
				if a.Pix[i] != b.Pix[i] {
					return false
				}
			}
			return true
		},
		genImage,
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
