package vision

import (
	"context"
	"image"
)

// StaticReader answers every call with the same reading. It serves offline
// runs and tests.
type StaticReader struct {
	Reading Reading
	Err     error
}

// NewStaticReader returns a reader that reports a valid station and gauge.
func NewStaticReader(stationID string, height float64) *StaticReader {
	return &StaticReader{Reading: Reading{
		StationLabel: StationLabel{IsValidStationLabel: true, StationID: &stationID},
		GaugeReading: GaugeReading{IsValidGauge: true, GaugeReading: &height},
	}}
}

func (s *StaticReader) Read(ctx context.Context, _ string, _, _ image.Image) (*Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Provider: "static", Err: err}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	r := s.Reading
	return &r, nil
}
