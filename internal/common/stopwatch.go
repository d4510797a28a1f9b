// Package common provides small shared utilities: per-stage timing and
// runtime memory snapshots.
package common

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Stage is one timed section of work.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Stopwatch times consecutive named stages. Each Lap closes the current
// stage and opens the next one. It is safe for concurrent use.
type Stopwatch struct {
	mu     sync.Mutex
	start  time.Time
	last   time.Time
	stages []Stage
	now    func() time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	return newStopwatch(time.Now)
}

func newStopwatch(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{start: t, last: t, now: now}
}

// Lap records the time since the previous lap under name and returns it.
func (s *Stopwatch) Lap(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.stages = append(s.stages, Stage{Name: name, Duration: d})
	return d
}

// Stages returns a copy of the recorded stages in order.
func (s *Stopwatch) Stages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Stage(nil), s.stages...)
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.start)
}

// LogValue renders the stages as a slog group of millisecond values.
func (s *Stopwatch) LogValue() slog.Value {
	stages := s.Stages()
	attrs := make([]slog.Attr, 0, len(stages))
	for _, st := range stages {
		attrs = append(attrs, slog.Float64(st.Name+"_ms", float64(st.Duration.Microseconds())/1000))
	}
	return slog.GroupValue(attrs...)
}

// String returns "name=duration" pairs.
func (s *Stopwatch) String() string {
	stages := s.Stages()
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = fmt.Sprintf("%s=%v", st.Name, st.Duration)
	}
	return strings.Join(parts, " ")
}
