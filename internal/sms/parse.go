// Package sms parses plain-text gauge contributions such as "NY1000 2.5 80".
package sms

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"

	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

// Parse errors. Reply maps each to its contributor-facing text.
var (
	ErrUnreadable             = errors.New("message is not in the station measurement format")
	ErrUnknownStation         = errors.New("station id is not registered")
	ErrTemperatureOutOfBounds = errors.New("temperature out of bounds")
	ErrWaterHeightOutOfBounds = errors.New("water height out of bounds")
)

// Temperature limits in degrees Fahrenheit, both exclusive. A measurement at
// or below the freezing point is taken to be a water height.
const (
	freezingF = 32.0
	maxTempF  = 150.0
)

// Result is an accepted text contribution. WaterHeight is nil when only a
// temperature was sent.
type Result struct {
	StationID   string
	WaterHeight *float64
	Temperature *float64
}

var upper = cases.Upper(language.Und)

// Normalize folds full-width characters and upper-cases body.
func Normalize(body string) string {
	return strings.TrimSpace(upper.String(width.Narrow.String(body)))
}

// Parse reads "<station> <measurement> [<measurement>]". The station id is a
// state prefix and four digits, optionally split by a space ("NY 1000").
func Parse(body string, registry *station.Registry) (Result, error) {
	fields := strings.Fields(Normalize(body))
	if len(fields) < 2 {
		return Result{}, ErrUnreadable
	}

	id, rest, ok := extractStation(fields)
	if !ok {
		return Result{}, ErrUnreadable
	}
	st, ok := registry.Lookup(id)
	if !ok {
		return Result{}, ErrUnknownStation
	}

	values := make([]float64, 0, 2)
	for _, f := range rest {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, ErrUnreadable
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}

	res := Result{StationID: st.ID}
	switch len(values) {
	case 0:
		return Result{}, ErrUnreadable
	case 1:
		v := values[0]
		if !st.Bounded() || v <= st.UpperBound {
			res.WaterHeight = &v
		} else {
			res.Temperature = &v
		}
	default:
		h, tmp := values[0], values[1]
		if h > freezingF {
			h, tmp = tmp, h
		}
		res.WaterHeight, res.Temperature = &h, &tmp
	}

	if res.Temperature != nil && (*res.Temperature <= freezingF || *res.Temperature >= maxTempF) {
		return Result{}, ErrTemperatureOutOfBounds
	}
	if res.WaterHeight != nil && (*res.WaterHeight < 0 || !st.InBounds(*res.WaterHeight)) {
		return Result{}, ErrWaterHeightOutOfBounds
	}
	return res, nil
}

// extractStation finds the first token that starts with a state prefix and
// returns the station id with the remaining tokens.
func extractStation(fields []string) (string, []string, bool) {
	for i, f := range fields {
		if len(f) < 2 || !station.IsStatePrefix(f[:2]) {
			continue
		}
		id, skip := f, 1
		if len(f) == 2 && i+1 < len(fields) && isDigits(fields[i+1]) {
			id, skip = f+fields[i+1], 2
		}
		rest := make([]string, 0, len(fields)-skip)
		rest = append(rest, fields[:i]...)
		rest = append(rest, fields[i+skip:]...)
		return id, rest, true
	}
	return "", nil, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Reply returns the text sent back for a Parse error.
func Reply(err error) string {
	switch {
	case errors.Is(err, ErrUnknownStation):
		return messaging.SMSUnknownStationText
	case errors.Is(err, ErrTemperatureOutOfBounds):
		return messaging.SMSTemperatureText
	case errors.Is(err, ErrWaterHeightOutOfBounds):
		return messaging.SMSWaterHeightText
	default:
		return messaging.SMSUnreadableText
	}
}
