package preprocess

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
	"github.com/disintegration/imaging"
)

// sharpenKernel is the classic 3x3 sharpen mask (centre 32, ring -2),
// normalized by its sum of 16.
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// ContrastPercent converts a multiplicative contrast factor (1 = unchanged,
// 2.5 = strong) into the percentage imaging.AdjustContrast expects.
// Factors above 1 map into (0,100); factors below 1 map into (-100,0).
func ContrastPercent(factor float64) float64 {
	switch {
	case factor <= 0:
		return -100
	case factor >= 1:
		return 100 * (1 - 1/factor)
	default:
		return 100 * (factor - 1)
	}
}

// ResizeHeightStep scales to the given height preserving aspect ratio.
// Post: height == h.
func ResizeHeightStep(h int) Step {
	return Step{
		Name: fmt.Sprintf("resize_height_%d", h),
		Apply: func(g *image.Gray) (*image.Gray, error) {
			out, err := utils.ResizeToHeight(g, h)
			if err != nil {
				return nil, err
			}
			return utils.ToGray(out), nil
		},
	}
}

// ResizeStep scales to exactly w x h.
func ResizeStep(w, h int) Step {
	return Step{
		Name: fmt.Sprintf("resize_%dx%d", w, h),
		Apply: func(g *image.Gray) (*image.Gray, error) {
			out, err := utils.ResizeExact(g, w, h)
			if err != nil {
				return nil, err
			}
			return utils.ToGray(out), nil
		},
	}
}

// GaussianBlurStep smooths sensor noise with a Gaussian of the given sigma.
func GaussianBlurStep(sigma float64) Step {
	return Step{
		Name: "gaussian_blur",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			if sigma <= 0 {
				return cloneGray(g), nil
			}
			return utils.ToGray(imaging.Blur(g, sigma)), nil
		},
	}
}

// MedianStep removes impulse noise with a window x window median.
func MedianStep(window int) Step {
	return Step{
		Name: "median",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return Median(g, window), nil
		},
	}
}

// ContrastStep scales deviation from mid-gray by factor.
func ContrastStep(factor float64) Step {
	return Step{
		Name: "contrast",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return utils.ToGray(imaging.AdjustContrast(g, ContrastPercent(factor))), nil
		},
	}
}

// SharpenStep applies the 3x3 sharpen mask.
func SharpenStep() Step {
	return Step{
		Name: "sharpen",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return utils.ToGray(Sharpen(g)), nil
		},
	}
}

// EqualizeStep spreads the histogram over the full range.
func EqualizeStep() Step {
	return Step{
		Name: "equalize",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return Equalize(g), nil
		},
	}
}

// AdaptiveThresholdStep binarizes against a Gaussian-weighted local mean.
// Post: every pixel is 0 or 255.
func AdaptiveThresholdStep(blockSize int, c float64) Step {
	return Step{
		Name: "adaptive_threshold",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return AdaptiveGaussianThreshold(g, blockSize, c)
		},
	}
}

// Sharpen applies the 3x3 sharpen mask to any image.
func Sharpen(img image.Image) *image.NRGBA {
	return imaging.Convolve3x3(img, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
}

// Median returns the window x window median of g. Edges replicate the border.
func Median(g *image.Gray, window int) *image.Gray {
	if window <= 1 {
		return cloneGray(g)
	}
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGray(w, h)
	half := window / 2
	buf := make([]uint8, 0, window*window)
	for y := range h {
		for x := range w {
			buf = buf[:0]
			for ky := -half; ky < window-half; ky++ {
				for kx := -half; kx < window-half; kx++ {
					buf = append(buf, at(g, x+kx, y+ky))
				}
			}
			slices.Sort(buf)
			out.Pix[y*out.Stride+x] = buf[len(buf)/2]
		}
	}
	return out
}

// Equalize performs histogram equalization. An image with a single gray
// level is returned unchanged.
func Equalize(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	hist := histogram(g)
	total := w * h

	first := 0
	for first < 256 && hist[first] == 0 {
		first++
	}
	if first == 256 || hist[first] == total {
		return cloneGray(g)
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for v := first + 1; v < 256; v++ {
		sum += hist[v]
		lut[v] = clampUint8(float64(sum) * scale)
	}

	out := newGray(w, h)
	for y := range h {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}

// AdaptiveGaussianThreshold marks a pixel white when it is brighter than its
// Gaussian-weighted blockSize x blockSize neighbourhood mean minus c.
func AdaptiveGaussianThreshold(g *image.Gray, blockSize int, c float64) (*image.Gray, error) {
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("block size must be odd and >= 3, got %d", blockSize)
	}
	w, h := g.Rect.Dx(), g.Rect.Dy()
	kernel := gaussianKernel(blockSize)
	half := blockSize / 2

	// Separable blur with replicated borders.
	tmp := make([]float64, w*h)
	for y := range h {
		for x := range w {
			var s float64
			for k, wt := range kernel {
				s += wt * float64(at(g, x+k-half, y))
			}
			tmp[y*w+x] = s
		}
	}

	delta := int(math.Ceil(c))
	out := newGray(w, h)
	for y := range h {
		for x := range w {
			var s float64
			for k, wt := range kernel {
				yy := min(max(y+k-half, 0), h-1)
				s += wt * tmp[yy*w+x]
			}
			mean := int(clampUint8(s))
			if int(g.Pix[y*g.Stride+x])-mean > -delta {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, nil
}

// gaussianKernel returns normalized 1D Gaussian weights for size n, with
// sigma derived from the size as 0.3*((n-1)*0.5-1)+0.8.
func gaussianKernel(n int) []float64 {
	sigma := 0.3*((float64(n)-1)*0.5-1) + 0.8
	k := make([]float64, n)
	half := n / 2
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func histogram(g *image.Gray) [256]int {
	var hist [256]int
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := range h {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	return hist
}

func cloneGray(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGray(w, h)
	for y := range h {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}
