package utils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.webp", true},
		{"f.tiff", false},
		{"g.gif", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImage(t *testing.T) {
	path := writeTempPNG(t, t.TempDir(), 12, 7, color.White)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 7, meta.Height)
	assert.Equal(t, path, meta.Path)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("doc.tiff")
	require.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, _, err := DecodeImage([]byte("not an image"))
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)

	_, _, err = DecodeImage(nil)
	require.Error(t, err)
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	data, err := EncodeJPEG(img, 0)
	require.NoError(t, err)

	decoded, meta, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestBox_IoUAndRect(t *testing.T) {
	a := NewBox(10, 10, 0, 0)
	assert.InDelta(t, 0, a.MinX, 1e-9)
	assert.InDelta(t, 100, a.Area(), 1e-9)

	b := NewBox(5, 0, 15, 10)
	assert.InDelta(t, 50.0/150.0, a.IoU(b), 1e-9)
	assert.InDelta(t, 0, a.IoU(NewBox(20, 20, 30, 30)), 1e-9)

	r := NewBox(-5, 2.5, 8.2, 40).ToRect(image.Rect(0, 0, 8, 20))
	assert.Equal(t, image.Rect(0, 2, 8, 20), r)
}

func TestCropImageBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	out := CropImageBox(img, NewBox(2, 3, 12, 8))
	assert.Equal(t, image.Rect(0, 0, 10, 5), out.Bounds())

	empty := CropImageRect(img, image.Rect(30, 30, 40, 40))
	assert.True(t, empty.Bounds().Empty())
}

func TestDrawHorizontalLine(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 10))
	red := color.NRGBA{R: 255, A: 255}
	DrawHorizontalLine(img, 4, red, 2)

	for x := range 5 {
		assert.Equal(t, red, img.NRGBAAt(x, 4))
		assert.Equal(t, red, img.NRGBAAt(x, 5))
		assert.NotEqual(t, red, img.NRGBAAt(x, 3))
		assert.NotEqual(t, red, img.NRGBAAt(x, 6))
	}

	// Clipped at the last row without panicking.
	DrawHorizontalLine(img, 9, red, 2)
	assert.Equal(t, red, img.NRGBAAt(0, 9))
}

func TestDrawRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawRect(img, image.Rect(2, 2, 8, 8), color.White, 1)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(5, 5))
}
