package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// LabelConfig holds the station-label chain parameters.
type LabelConfig struct {
	Width        int
	Height       int
	Contrast     float64
	MedianWindow int
	BlockSize    int
	C            float64
}

// DefaultLabelConfig returns a 400x300 canvas, which suits label text.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Width:        400,
		Height:       300,
		Contrast:     2.5,
		MedianWindow: 3,
		BlockSize:    9,
		C:            2,
	}
}

// Validate checks the label configuration.
func (c LabelConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("label size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.BlockSize < 3 || c.BlockSize%2 == 0 {
		return fmt.Errorf("block size must be odd and >= 3, got %d", c.BlockSize)
	}
	if c.Contrast <= 0 {
		return fmt.Errorf("contrast factor must be positive, got %.2f", c.Contrast)
	}
	return nil
}

// LabelPreprocessor makes a station-label ROI legible. It does not judge
// whether the label is valid.
type LabelPreprocessor struct {
	cfg   LabelConfig
	chain Chain
}

// NewLabelPreprocessor builds the fixed label chain.
func NewLabelPreprocessor(cfg LabelConfig) (*LabelPreprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid label config: %w", err)
	}
	return &LabelPreprocessor{
		cfg: cfg,
		chain: Chain{
			ResizeStep(cfg.Width, cfg.Height),
			ContrastStep(cfg.Contrast),
			MedianStep(cfg.MedianWindow),
			EqualizeStep(),
			SharpenStep(),
			AdaptiveThresholdStep(cfg.BlockSize, cfg.C),
		},
	}, nil
}

// Steps returns the label chain.
func (p *LabelPreprocessor) Steps() Chain { return p.chain }

// Process returns the binarized label at the configured size.
func (p *LabelPreprocessor) Process(roi image.Image) (*image.Gray, error) {
	return p.ProcessWithHook(roi, nil)
}

// ProcessWithHook is Process with visibility into each chain step.
func (p *LabelPreprocessor) ProcessWithHook(roi image.Image, hook StepHook) (*image.Gray, error) {
	if roi == nil || roi.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	out, err := p.chain.RunWithHook(utils.ToGray(roi), hook)
	if err != nil {
		return nil, fmt.Errorf("station label: %w", err)
	}
	return out, nil
}

// Normalized is a gray image scaled to [0,1]. It satisfies image.Image so
// it can be handed to a vision.Reader; encoders see it as 8-bit gray.
type Normalized struct {
	Width  int
	Height int
	Pix    []float32
}

// Value returns the value at (x,y).
func (n Normalized) Value(x, y int) float32 { return n.Pix[y*n.Width+x] }

func (n Normalized) ColorModel() color.Model { return color.GrayModel }

func (n Normalized) Bounds() image.Rectangle { return image.Rect(0, 0, n.Width, n.Height) }

func (n Normalized) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(n.Bounds())) {
		return color.Gray{}
	}
	return color.Gray{Y: uint8(n.Value(x, y)*255 + 0.5)}
}

// Normalize scales g to [0,1].
func Normalize(g *image.Gray) Normalized {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	pix := make([]float32, w*h)
	for y := range h {
		for x, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			pix[y*w+x] = float32(v) / 255.0
		}
	}
	return Normalized{Width: w, Height: h, Pix: pix}
}
