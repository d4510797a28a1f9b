package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
	"github.com/disintegration/imaging"
)

// GaugeConfig holds the gauge chain parameters. Kernel sizes are calibrated
// for CanonicalHeight.
type GaugeConfig struct {
	CanonicalHeight  int
	BlurSigma        float64
	MedianWindow     int
	TopHatKernel     int
	CleanKernel      int
	Waterline        WaterlineConfig
	AnnotateContrast float64
	LineWidth        int
	LineColor        color.NRGBA
}

// DefaultGaugeConfig returns the calibrated defaults.
func DefaultGaugeConfig() GaugeConfig {
	return GaugeConfig{
		CanonicalHeight:  600,
		BlurSigma:        1.5,
		MedianWindow:     3,
		TopHatKernel:     15,
		CleanKernel:      5,
		Waterline:        DefaultWaterlineConfig(),
		AnnotateContrast: 3.0,
		LineWidth:        2,
		LineColor:        color.NRGBA{R: 255, A: 255},
	}
}

// Validate checks the gauge configuration.
func (c GaugeConfig) Validate() error {
	if c.CanonicalHeight < 16 {
		return fmt.Errorf("canonical height too small: %d", c.CanonicalHeight)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must be non-negative, got %.2f", c.BlurSigma)
	}
	if c.MedianWindow < 1 || c.TopHatKernel < 1 || c.CleanKernel < 1 {
		return errors.New("median window and kernel sizes must be positive")
	}
	if c.LineWidth < 1 {
		return fmt.Errorf("line width must be positive, got %d", c.LineWidth)
	}
	return c.Waterline.Validate()
}

// GaugeResult is the output of gauge preprocessing.
type GaugeResult struct {
	Waterline Waterline
	// Annotated is the enhanced ROI at canonical height with the waterline
	// marked. It is left unmarked when no waterline was found.
	Annotated *image.NRGBA
}

// GaugePreprocessor estimates the waterline and renders the annotated gauge.
type GaugePreprocessor struct {
	cfg   GaugeConfig
	chain Chain
}

// NewGaugePreprocessor builds the fixed gauge chain.
func NewGaugePreprocessor(cfg GaugeConfig) (*GaugePreprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gauge config: %w", err)
	}
	return &GaugePreprocessor{cfg: cfg, chain: gaugeChain(cfg)}, nil
}

// gaugeChain is the mask pipeline. Input is gray; output is a cleaned binary
// mask at canonical height.
func gaugeChain(cfg GaugeConfig) Chain {
	return Chain{
		ResizeHeightStep(cfg.CanonicalHeight),
		GaussianBlurStep(cfg.BlurSigma),
		MedianStep(cfg.MedianWindow),
		MorphStep(MorphTopHat, cfg.TopHatKernel),
		ContrastStretchStep(),
		OtsuStep(),
		MorphStep(MorphClose, cfg.CleanKernel),
		MorphStep(MorphOpen, cfg.CleanKernel),
	}
}

// Config returns the preprocessor configuration.
func (p *GaugePreprocessor) Config() GaugeConfig { return p.cfg }

// Steps returns the mask chain.
func (p *GaugePreprocessor) Steps() Chain { return p.chain }

// Mask runs the chain on roi and returns the cleaned binary mask.
func (p *GaugePreprocessor) Mask(roi image.Image, hook StepHook) (*image.Gray, error) {
	if roi == nil || roi.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return p.chain.RunWithHook(utils.ToGray(roi), hook)
}

// Process estimates the waterline of roi and annotates it. A blank mask is
// reported through Waterline.Found and does not fail the call.
func (p *GaugePreprocessor) Process(roi image.Image) (GaugeResult, error) {
	return p.ProcessWithHook(roi, nil)
}

// ProcessWithHook is Process with visibility into each chain step.
func (p *GaugePreprocessor) ProcessWithHook(roi image.Image, hook StepHook) (GaugeResult, error) {
	mask, err := p.Mask(roi, hook)
	if err != nil {
		return GaugeResult{}, fmt.Errorf("gauge mask: %w", err)
	}

	wl, err := LocateWaterline(mask, p.cfg.Waterline)
	if err != nil && !errors.Is(err, ErrWaterlineNotFound) {
		return GaugeResult{}, fmt.Errorf("locate waterline: %w", err)
	}

	annotated, err := p.Annotate(roi, wl.Row)
	if err != nil {
		return GaugeResult{}, err
	}
	return GaugeResult{Waterline: wl, Annotated: annotated}, nil
}

// Enhance renders roi at canonical height with boosted contrast and sharpening.
func (p *GaugePreprocessor) Enhance(roi image.Image) (*image.NRGBA, error) {
	resized, err := utils.ResizeToHeight(roi, p.cfg.CanonicalHeight)
	if err != nil {
		return nil, fmt.Errorf("enhance: %w", err)
	}
	contrasted := imaging.AdjustContrast(resized, ContrastPercent(p.cfg.AnnotateContrast))
	return Sharpen(contrasted), nil
}

// Annotate draws the waterline marker across the enhanced roi at row.
// A negative row leaves the image unmarked.
func (p *GaugePreprocessor) Annotate(roi image.Image, row int) (*image.NRGBA, error) {
	out, err := p.Enhance(roi)
	if err != nil {
		return nil, err
	}
	if row >= 0 {
		top := row - (p.cfg.LineWidth-1)/2
		utils.DrawHorizontalLine(out, top, p.cfg.LineColor, p.cfg.LineWidth)
	}
	return out, nil
}
