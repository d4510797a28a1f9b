package preprocess

import "image"

// ContrastStretchStep linearly maps [min,max] to [0,255]. A flat image has
// no contrast to stretch and becomes all zero.
func ContrastStretchStep() Step {
	return Step{
		Name: "contrast_stretch",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return ContrastStretch(g), nil
		},
	}
}

// OtsuStep binarizes with an automatically chosen global threshold.
// Post: every pixel is 0 or 255.
func OtsuStep() Step {
	return Step{
		Name: "otsu",
		Apply: func(g *image.Gray) (*image.Gray, error) {
			return Binarize(g, OtsuThreshold(g)), nil
		},
	}
}

// ContrastStretch maps the darkest pixel to 0 and the brightest to 255.
func ContrastStretch(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	lo, hi := uint8(255), uint8(0)
	for y := range h {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	out := newGray(w, h)
	if hi <= lo {
		return out
	}
	span := int(hi - lo)
	for y := range h {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			dst[x] = uint8(int(v-lo) * 255 / span)
		}
	}
	return out
}

// OtsuThreshold returns the level t maximizing between-class variance when
// pixels <= t form the background. A single-level image returns that level,
// so nothing is strictly above it.
func OtsuThreshold(g *image.Gray) uint8 {
	hist := histogram(g)
	total := g.Rect.Dx() * g.Rect.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	levels := 0
	single := 0
	for i, c := range hist {
		sum += float64(i) * float64(c)
		if c > 0 {
			levels++
			single = i
		}
	}
	if levels <= 1 {
		return uint8(single)
	}

	var sumB, maxVariance float64
	best := 0
	wB := 0
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > maxVariance {
			maxVariance = between
			best = t
		}
	}
	return uint8(best)
}

// Binarize sets pixels strictly above t to 255 and the rest to 0.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newGray(w, h)
	for y := range h {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v > t {
				dst[x] = 255
			}
		}
	}
	return out
}
