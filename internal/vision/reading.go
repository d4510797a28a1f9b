// Package vision asks a multimodal model to read the annotated gauge and the
// station label, and validates what it answers.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

// StationLabel is the model's verdict on the station-label image.
type StationLabel struct {
	IsValidStationLabel bool    `json:"is_valid_station_label"`
	StationID           *string `json:"station_id"`
}

// GaugeReading is the model's verdict on the annotated gauge image.
type GaugeReading struct {
	IsValidGauge bool     `json:"is_valid_gauge"`
	GaugeReading *float64 `json:"gauge_reading"`
}

// Reading is the answer to one model call.
type Reading struct {
	StationLabel StationLabel `json:"station_label"`
	GaugeReading GaugeReading `json:"gauge_reading"`
}

// Verdict exposes the two halves of a reading separately so validation can
// stop after the station label.
type Verdict interface {
	Label() StationLabel
	Gauge() GaugeReading
}

func (r *Reading) Label() StationLabel { return r.StationLabel }
func (r *Reading) Gauge() GaugeReading { return r.GaugeReading }

// Reader reads a gauge and station label pair.
type Reader interface {
	Read(ctx context.Context, prompt string, gauge, label image.Image) (*Reading, error)
}

// TransportError means the model could not be reached or did not answer in
// time. It is worth retrying.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError means the model answered with something that is not a
// reading.
type ResponseError struct {
	Body string
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// ParseReading decodes a JSON answer and downgrades anything the pipeline
// must not trust: unknown station ids, and missing, non-finite or negative
// gauge readings. Readings are rounded to two decimals.
func ParseReading(data []byte, registry *station.Registry) (*Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &ResponseError{Body: string(data), Err: err}
	}
	Sanitize(&r, registry)
	return &r, nil
}

// Sanitize applies the ParseReading checks to an already decoded reading.
func Sanitize(r *Reading, registry *station.Registry) {
	sl := &r.StationLabel
	if sl.StationID != nil {
		id := strings.ToUpper(strings.TrimSpace(*sl.StationID))
		sl.StationID = &id
	}
	if !sl.IsValidStationLabel || sl.StationID == nil || (registry != nil && !registry.Contains(*sl.StationID)) {
		sl.IsValidStationLabel = false
		sl.StationID = nil
	}

	g := &r.GaugeReading
	if !g.IsValidGauge || g.GaugeReading == nil ||
		math.IsNaN(*g.GaugeReading) || math.IsInf(*g.GaugeReading, 0) || *g.GaugeReading < 0 {
		g.IsValidGauge = false
		g.GaugeReading = nil
		return
	}
	rounded := Round2(*g.GaugeReading)
	g.GaugeReading = &rounded
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
