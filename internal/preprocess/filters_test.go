package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContrastPercent(t *testing.T) {
	assert.InDelta(t, 0, ContrastPercent(1), 1e-9)
	assert.InDelta(t, 60, ContrastPercent(2.5), 1e-9)
	assert.InDelta(t, 66.6667, ContrastPercent(3), 1e-3)
	assert.InDelta(t, -50, ContrastPercent(0.5), 1e-9)
	assert.InDelta(t, -100, ContrastPercent(0), 1e-9)
}

func TestMedian_RemovesImpulse(t *testing.T) {
	g := newGray(5, 5)
	for i := range g.Pix {
		g.Pix[i] = 100
	}
	g.Pix[2*5+2] = 255
	out := Median(g, 3)
	assert.Equal(t, uint8(100), out.GrayAt(2, 2).Y)

	same := Median(g, 1)
	assert.Equal(t, g.Pix, same.Pix)
}

func TestEqualize_SpreadsRange(t *testing.T) {
	g := grayFrom(4, 1, []uint8{100, 101, 102, 103})
	out := Equalize(g)
	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[3])
	assert.Less(t, out.Pix[1], out.Pix[2])

	flat := grayFrom(2, 1, []uint8{7, 7})
	assert.Equal(t, flat.Pix, Equalize(flat).Pix)
}

func TestAdaptiveGaussianThreshold(t *testing.T) {
	// Dark text stroke on a light plate: stroke goes black, plate white.
	g := newGray(21, 21)
	for i := range g.Pix {
		g.Pix[i] = 200
	}
	for y := range 21 {
		g.Pix[y*21+10] = 30
	}

	out, err := AdaptiveGaussianThreshold(g, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(255), out.GrayAt(2, 10).Y)
	for _, v := range out.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}

	_, err = AdaptiveGaussianThreshold(g, 8, 2)
	assert.Error(t, err)
}

func TestGaussianKernel_Normalized(t *testing.T) {
	k := gaussianKernel(9)
	var sum float64
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.InDelta(t, k[0], k[8], 1e-12)
	assert.Greater(t, k[4], k[3])
}

func TestSharpen_KeepsFlatRegions(t *testing.T) {
	g := newGray(6, 6)
	for i := range g.Pix {
		g.Pix[i] = 120
	}
	out := Sharpen(g)
	assert.Equal(t, image.Rect(0, 0, 6, 6), out.Bounds())
	assert.Equal(t, uint8(120), out.NRGBAAt(3, 3).R)
}
