package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			val := uint8((x + y) % 256)
			img.Set(x, y, color.RGBA{val, val, val, 255})
		}
	}
	return img
}

func TestResizeToHeight_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output height always matches target", prop.ForAll(
		func(width, height, target int) bool {
			out, err := ResizeToHeight(genTestImage(width, height), target)
			if err != nil {
				return false
			}
			return out.Bounds().Dy() == target && out.Bounds().Dx() >= 1
		},
		gen.IntRange(1, 200),
		gen.IntRange(1, 200),
		gen.IntRange(1, 300),
	))

	properties.Property("aspect ratio preserved within one pixel", prop.ForAll(
		func(width, height int) bool {
			out, err := ResizeToHeight(genTestImage(width, height), 120)
			if err != nil {
				return false
			}
			want := float64(width) * 120 / float64(height)
			got := float64(out.Bounds().Dx())
			return got >= want-1 && got <= want+1
		},
		gen.IntRange(4, 200),
		gen.IntRange(4, 200),
	))

	properties.TestingRun(t)
}

func TestLetterbox_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("source corners map back inside the source image", prop.ForAll(
		func(width, height int) bool {
			_, info, err := Letterbox(genTestImage(width, height), 96)
			if err != nil {
				return false
			}
			x0, y0 := info.ToSource(float64(info.PadX), float64(info.PadY))
			return x0 > -1e-6 && y0 > -1e-6 && x0 < 1 && y0 < 1
		},
		gen.IntRange(8, 300),
		gen.IntRange(8, 300),
	))

	properties.TestingRun(t)
}
