package preprocess

import (
	"errors"
	"fmt"
	"image"
)

// ScanDirection selects the order in which mask rows are examined.
type ScanDirection string

const (
	// ScanBottomUp reports the lowest strong horizontal structure, which
	// favours the water surface over printed numerals higher on the gauge.
	ScanBottomUp ScanDirection = "bottom_up"
	// ScanTopDown reports the highest strong horizontal structure.
	ScanTopDown ScanDirection = "top_down"
)

// ErrWaterlineNotFound reports a blank mask. It is a soft failure: the
// caller should continue without a confident row rather than use row 0.
var ErrWaterlineNotFound = errors.New("waterline not found")

// WaterlineConfig tunes the row-sum scan.
type WaterlineConfig struct {
	ThresholdRatio float64       // fraction of the max row sum a row must exceed
	Direction      ScanDirection // scan order
}

// DefaultWaterlineConfig returns a half-of-max threshold scanned bottom-up.
func DefaultWaterlineConfig() WaterlineConfig {
	return WaterlineConfig{ThresholdRatio: 0.5, Direction: ScanBottomUp}
}

// Validate checks the ratio and direction.
func (c WaterlineConfig) Validate() error {
	if c.ThresholdRatio <= 0 || c.ThresholdRatio >= 1 {
		return fmt.Errorf("waterline threshold ratio must be in (0,1), got %.2f", c.ThresholdRatio)
	}
	switch c.Direction {
	case ScanBottomUp, ScanTopDown:
		return nil
	default:
		return fmt.Errorf("invalid scan direction %q (must be %s or %s)", c.Direction, ScanBottomUp, ScanTopDown)
	}
}

// Waterline is the estimated waterline row and the evidence behind it.
type Waterline struct {
	Row       int         `json:"row"`
	Found     bool        `json:"found"`
	Threshold float64     `json:"threshold"`
	RowSums   []int       `json:"-"`
	Mask      *image.Gray `json:"-"`
}

// RowSums counts foreground (non-zero) pixels in each row of mask.
func RowSums(mask *image.Gray) []int {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	sums := make([]int, h)
	for y := range h {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		n := 0
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
		sums[y] = n
	}
	return sums
}

// LocateWaterline finds the first row, in cfg.Direction order, whose
// foreground count strictly exceeds cfg.ThresholdRatio times the maximum.
// A mask with no foreground returns Found=false, Row=-1 and
// ErrWaterlineNotFound.
func LocateWaterline(mask *image.Gray, cfg WaterlineConfig) (Waterline, error) {
	if mask == nil || mask.Bounds().Empty() {
		return Waterline{Row: -1}, ErrEmptyImage
	}
	if err := cfg.Validate(); err != nil {
		return Waterline{Row: -1}, err
	}

	sums := RowSums(mask)
	peak := 0
	for _, s := range sums {
		peak = max(peak, s)
	}
	wl := Waterline{Row: -1, RowSums: sums, Mask: mask}
	if peak == 0 {
		return wl, ErrWaterlineNotFound
	}

	wl.Threshold = cfg.ThresholdRatio * float64(peak)
	n := len(sums)
	for i := range n {
		row := i
		if cfg.Direction == ScanBottomUp {
			row = n - 1 - i
		}
		if float64(sums[row]) > wl.Threshold {
			wl.Row = row
			wl.Found = true
			return wl, nil
		}
	}
	// Unreachable with peak > 0 and ratio < 1.
	return wl, ErrWaterlineNotFound
}
