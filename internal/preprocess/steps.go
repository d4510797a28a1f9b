// Package preprocess holds the image transforms applied to detected regions
// before they are read: the gauge waterline chain, the waterline annotator
// and the station-label legibility chain.
//
// Every transform is a Step: a named, pure function from one 8-bit gray
// image to a new one. Steps never modify their input and always return an
// image with origin (0,0).
package preprocess

import (
	"errors"
	"fmt"
	"image"
)

// ErrEmptyImage is returned when a step receives an image with no pixels.
var ErrEmptyImage = errors.New("empty image")

// Step is a single named transform.
type Step struct {
	Name  string
	Apply func(*image.Gray) (*image.Gray, error)
}

// Chain is an ordered list of steps, each feeding the next.
type Chain []Step

// StepHook observes the output of each step as the chain runs.
type StepHook func(index int, name string, out *image.Gray)

// Run applies every step in order.
func (c Chain) Run(img *image.Gray) (*image.Gray, error) {
	return c.RunWithHook(img, nil)
}

// RunWithHook applies every step in order and reports each intermediate
// result to hook when it is non-nil.
func (c Chain) RunWithHook(img *image.Gray, hook StepHook) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	cur := img
	for i, s := range c {
		out, err := s.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Name, err)
		}
		if hook != nil {
			hook(i, s.Name, out)
		}
		cur = out
	}
	return cur, nil
}

// Names lists the step names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

func newGray(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// at returns the pixel at (x,y) with coordinates clamped to the image.
func at(g *image.Gray, x, y int) uint8 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if x < 0 {
		x = 0
	} else if x >= w {
		x = w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= h {
		y = h - 1
	}
	return g.Pix[y*g.Stride+x]
}

func clampUint8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
