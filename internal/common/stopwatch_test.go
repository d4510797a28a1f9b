package common

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every read.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestStopwatch_Laps(t *testing.T) {
	sw := newStopwatch(fakeClock(10 * time.Millisecond))

	assert.Equal(t, 10*time.Millisecond, sw.Lap("fetch"))
	assert.Equal(t, 10*time.Millisecond, sw.Lap("detect"))

	stages := sw.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "fetch", stages[0].Name)
	assert.Equal(t, "detect", stages[1].Name)
	assert.Equal(t, 30*time.Millisecond, sw.Total())
	assert.Equal(t, "fetch=10ms detect=10ms", sw.String())
}

func TestStopwatch_LogValue(t *testing.T) {
	sw := newStopwatch(fakeClock(1500 * time.Microsecond))
	sw.Lap("read")

	v := sw.LogValue()
	require.Equal(t, slog.KindGroup, v.Kind())
	attrs := v.Group()
	require.Len(t, attrs, 1)
	assert.Equal(t, "read_ms", attrs[0].Key)
	assert.InDelta(t, 1.5, attrs[0].Value.Float64(), 1e-9)
}

func TestStopwatch_RealClock(t *testing.T) {
	sw := NewStopwatch()
	time.Sleep(time.Millisecond)
	assert.Positive(t, sw.Lap("sleep"))
	assert.GreaterOrEqual(t, sw.Total(), sw.Stages()[0].Duration)
}

func TestGetMemoryStats(t *testing.T) {
	m := GetMemoryStats()
	assert.Positive(t, m.Sys)
	assert.Positive(t, m.Goroutines)
	assert.Contains(t, m.String(), "Alloc:")
}
