package preprocess

import (
	"fmt"
	"image"
)

// MorphologicalOp represents the type of morphological operation to perform.
type MorphologicalOp int

const (
	MorphErode MorphologicalOp = iota
	MorphDilate
	MorphOpen    // erode then dilate, removes bright specks
	MorphClose   // dilate then erode, fills dark gaps
	MorphTopHat  // src minus its opening, keeps small bright structure
)

func (op MorphologicalOp) String() string {
	switch op {
	case MorphErode:
		return "erode"
	case MorphDilate:
		return "dilate"
	case MorphOpen:
		return "open"
	case MorphClose:
		return "close"
	case MorphTopHat:
		return "tophat"
	default:
		return fmt.Sprintf("morph(%d)", int(op))
	}
}

// MorphStep applies op with a kernelSize x kernelSize rectangular kernel.
func MorphStep(op MorphologicalOp, kernelSize int) Step {
	return Step{
		Name: op.String(),
		Apply: func(g *image.Gray) (*image.Gray, error) {
			if kernelSize < 1 {
				return nil, fmt.Errorf("kernel size must be positive, got %d", kernelSize)
			}
			return Morph(g, op, kernelSize), nil
		},
	}
}

// Morph applies a morphological operation with a square rectangular kernel.
// Pixels outside the image never contribute to the min or max.
func Morph(g *image.Gray, op MorphologicalOp, kernelSize int) *image.Gray {
	switch op {
	case MorphErode:
		return rankFilter(g, kernelSize, false)
	case MorphDilate:
		return rankFilter(g, kernelSize, true)
	case MorphOpen:
		return rankFilter(rankFilter(g, kernelSize, false), kernelSize, true)
	case MorphClose:
		return rankFilter(rankFilter(g, kernelSize, true), kernelSize, false)
	case MorphTopHat:
		opened := Morph(g, MorphOpen, kernelSize)
		w, h := g.Rect.Dx(), g.Rect.Dy()
		out := newGray(w, h)
		for y := range h {
			for x := range w {
				v := g.Pix[y*g.Stride+x]
				o := opened.Pix[y*opened.Stride+x]
				if v > o {
					out.Pix[y*out.Stride+x] = v - o
				}
			}
		}
		return out
	default:
		return cloneGray(g)
	}
}

// rankFilter computes a min (erode) or max (dilate) over a k x k window.
// A rectangular window is separable, so rows and columns are filtered in
// two 1D passes.
func rankFilter(g *image.Gray, k int, takeMax bool) *image.Gray {
	if k <= 1 {
		return cloneGray(g)
	}
	w, h := g.Rect.Dx(), g.Rect.Dy()
	lo := k / 2
	hi := k - 1 - lo

	pick := func(a, b uint8) uint8 {
		if takeMax == (b > a) {
			return b
		}
		return a
	}

	tmp := newGray(w, h)
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := range w {
			best := row[x]
			for xx := max(0, x-lo); xx <= min(w-1, x+hi); xx++ {
				best = pick(best, row[xx])
			}
			tmp.Pix[y*tmp.Stride+x] = best
		}
	}

	out := newGray(w, h)
	for y := range h {
		for x := range w {
			best := tmp.Pix[y*tmp.Stride+x]
			for yy := max(0, y-lo); yy <= min(h-1, y+hi); yy++ {
				best = pick(best, tmp.Pix[yy*tmp.Stride+x])
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}
