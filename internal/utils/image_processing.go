package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/crowdgauge/internal/mempool"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToGray converts any image to an 8-bit grayscale image with origin (0,0).
// Luma follows ITU-R 601 weights, matching imaging.Grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	gs := imaging.Grayscale(img)
	b := gs.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		src := gs.Pix[y*gs.Stride : y*gs.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// GrayToNRGBA expands a gray image into an opaque NRGBA image.
func GrayToNRGBA(g *image.Gray) *image.NRGBA {
	b := g.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), g, b.Min, draw.Src)
	return out
}

// ResizeToHeight scales img to the given height, preserving aspect ratio.
// Uses Lanczos resampling.
func ResizeToHeight(img image.Image, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if height <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid target height %d", height)}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("empty image")}
	}
	width := int(float64(b.Dx()) * float64(height) / float64(b.Dy()))
	if width < 1 {
		width = 1
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// ResizeExact scales img to exactly width x height using Lanczos resampling.
func ResizeExact(img image.Image, width, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", width, height),
		}
	}
	if img.Bounds().Empty() {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("empty image")}
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// LetterboxInfo records how an image was placed inside a square canvas so
// that model-space coordinates can be mapped back to the source image.
type LetterboxInfo struct {
	Scale float64
	PadX  int
	PadY  int
}

// ToSource maps a point in letterboxed model space back to source pixels.
func (l LetterboxInfo) ToSource(x, y float64) (float64, float64) {
	if l.Scale == 0 {
		return x, y
	}
	return (x - float64(l.PadX)) / l.Scale, (y - float64(l.PadY)) / l.Scale
}

// Letterbox resizes img to fit inside size x size preserving aspect ratio and
// pads the remainder with a neutral gray, centered.
func Letterbox(img image.Image, size int) (*image.NRGBA, LetterboxInfo, error) {
	if img == nil {
		return nil, LetterboxInfo{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, LetterboxInfo{}, &ImageProcessingError{
			Operation: "letterbox",
			Err:       fmt.Errorf("invalid target size %d", size),
		}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, LetterboxInfo{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("empty image")}
	}

	scale := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	newW := max(1, int(math.Round(float64(b.Dx())*scale)))
	newH := max(1, int(math.Round(float64(b.Dy())*scale)))
	resized := imaging.Resize(img, newW, newH, imaging.Linear)

	canvas := imaging.New(size, size, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	padX := (size - newW) / 2
	padY := (size - newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, LetterboxInfo{Scale: scale, PadX: padX, PadY: padY}, nil
}

// NormalizeImage converts an image to a float32 NCHW tensor buffer with
// channels in RGB order and values scaled to [0,1]. The buffer comes from
// mempool; callers on a hot path hand it back through onnx.Tensor.Release.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	width := nrgba.Bounds().Dx()
	height := nrgba.Bounds().Dy()
	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)

	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			i := y*width + x
			tensor[i] = float32(row[x*4]) / 255.0
			tensor[plane+i] = float32(row[x*4+1]) / 255.0
			tensor[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}

	return tensor, width, height, nil
}
