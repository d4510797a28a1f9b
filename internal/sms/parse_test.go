package sms

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

func testRegistry(t *testing.T) *station.Registry {
	t.Helper()
	r, err := station.New([]station.Station{
		{ID: "NY1000"},
		{ID: "PA1002", LowerBound: 0.5, UpperBound: 6},
	})
	require.NoError(t, err)
	return r
}

func TestParse(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name   string
		body   string
		id     string
		height *float64
		temp   *float64
	}{
		{"height only", "NY1000 2.5", "NY1000", ptr(2.5), nil},
		{"lower case", "  ny1000 2.5 ", "NY1000", ptr(2.5), nil},
		{"split id", "NY 1000 2.5", "NY1000", ptr(2.5), nil},
		{"height then temperature", "NY1000 2.5 80", "NY1000", ptr(2.5), ptr(80)},
		{"temperature then height", "NY1000 75.5 1.2", "NY1000", ptr(1.2), ptr(75.5)},
		{"full width digits", "ＮＹ１０００ ２.５", "NY1000", ptr(2.5), nil},
		{"bounded height", "PA1002 5.9", "PA1002", ptr(5.9), nil},
		{"bounded temperature only", "PA1002 70", "PA1002", nil, ptr(70)},
		{"measurement first", "2.5 NY1000", "NY1000", ptr(2.5), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.body, reg)
			require.NoError(t, err)
			assert.Equal(t, tt.id, res.StationID)
			assertFloatPtr(t, tt.height, res.WaterHeight)
			assertFloatPtr(t, tt.temp, res.Temperature)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", ErrUnreadable},
		{"single token", "NY1000", ErrUnreadable},
		{"no state", "XX1000 2.5", ErrUnreadable},
		{"not a number", "NY1000 high", ErrUnreadable},
		{"unknown station", "NY9998 2.5", ErrUnknownStation},
		{"temperature too cold", "NY1000 2.5 31", ErrTemperatureOutOfBounds},
		{"temperature too hot", "NY1000 2.5 150", ErrTemperatureOutOfBounds},
		{"height above bound", "PA1002 6.5 70", ErrWaterHeightOutOfBounds},
		{"not finite", "NY1000 NaN", ErrUnreadable},
		{"height below bound", "PA1002 0.2", ErrWaterHeightOutOfBounds},
		{"negative height", "NY1000 -1", ErrWaterHeightOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.body, reg)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReply(t *testing.T) {
	assert.Equal(t, messaging.SMSUnreadableText, Reply(ErrUnreadable))
	assert.Equal(t, messaging.SMSUnknownStationText, Reply(ErrUnknownStation))
	assert.Equal(t, messaging.SMSTemperatureText, Reply(fmt.Errorf("wrapped: %w", ErrTemperatureOutOfBounds)))
	assert.Equal(t, messaging.SMSWaterHeightText, Reply(ErrWaterHeightOutOfBounds))
}

func TestParse_DefaultRegistryHeights(t *testing.T) {
	reg := station.Default()
	var ids []string
	for _, id := range reg.IDs() {
		if station.IsStatePrefix(id[:2]) {
			ids = append(ids, id)
		}
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any registered id with a height up to freezing parses", prop.ForAll(
		func(idx int, cm int) bool {
			id := ids[idx]
			h := float64(cm) / 100
			res, err := Parse(fmt.Sprintf("%s %.2f", id, h), reg)
			if err != nil || res.StationID != id || res.WaterHeight == nil {
				return false
			}
			return *res.WaterHeight == h && res.Temperature == nil
		},
		gen.IntRange(0, len(ids)-1),
		gen.IntRange(0, 3200),
	))

	properties.TestingRun(t)
}

func ptr(v float64) *float64 { return &v }

func assertFloatPtr(t *testing.T, want, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.InDelta(t, *want, *got, 1e-9)
}
