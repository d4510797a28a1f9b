// Package pipelinetest provides fakes and a media server for exercising the
// pipeline end to end without a model file or network access.
package pipelinetest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/media"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
	"github.com/MeKo-Tech/crowdgauge/internal/testutil"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// SceneDetector answers every Detect call with fixed boxes.
type SceneDetector struct {
	Boxes []detector.Box
	Err   error
	Panic any
	calls atomic.Int32
}

func (d *SceneDetector) Detect(ctx context.Context, img image.Image) (*detector.Result, error) {
	d.calls.Add(1)
	if d.Panic != nil {
		panic(d.Panic)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	b := img.Bounds()
	return &detector.Result{Boxes: append([]detector.Box(nil), d.Boxes...), Width: b.Dx(), Height: b.Dy()}, nil
}

// Calls returns how often Detect ran.
func (d *SceneDetector) Calls() int { return int(d.calls.Load()) }

// SceneBoxes returns the station label and gauge boxes of s, label first.
func SceneBoxes(s testutil.Scene) []detector.Box {
	return []detector.Box{
		rectBox(1, detector.LabelStationLabel, 0.91, s.LabelRect),
		rectBox(0, detector.LabelGauge, 0.88, s.GaugeRect),
	}
}

func rectBox(class int, label detector.Label, conf float32, r image.Rectangle) detector.Box {
	return detector.Box{
		ClassID: class, Label: label, Confidence: conf,
		X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y,
	}
}

// TickReader stands in for the vision model. It finds the red waterline on
// the annotated gauge, counts minor ticks below the first major mark and
// reports Base + n*Unit.
type TickReader struct {
	Spec         testutil.GaugeSpec
	StationID    string
	StationValid bool
	Base         float64
	Unit         float64
	Err          error

	lastRow atomic.Int64
	calls   atomic.Int32
	mu      sync.Mutex
	label   image.Image
}

// NewTickReader reads gauges drawn from spec as belonging to stationID.
func NewTickReader(spec testutil.GaugeSpec, stationID string) *TickReader {
	return &TickReader{Spec: spec, StationID: stationID, StationValid: true, Base: 1.0, Unit: 0.01}
}

func (r *TickReader) Read(ctx context.Context, _ string, gauge, label image.Image) (*vision.Reading, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.label = label
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &vision.TransportError{Provider: "fake", Err: err}
	}
	if r.Err != nil {
		return nil, r.Err
	}

	reading := &vision.Reading{}
	if r.StationValid {
		id := r.StationID
		reading.StationLabel = vision.StationLabel{IsValidStationLabel: true, StationID: &id}
	}

	row := testutil.RedLineRow(gauge)
	r.lastRow.Store(int64(row))
	if row < 0 {
		return reading, nil
	}
	scale := float64(gauge.Bounds().Dy()) / float64(r.Spec.Height)
	n := math.Round((float64(row)/scale - float64(r.Spec.MajorTop)) / float64(r.Spec.TickSpacing))
	h := vision.Round2(r.Base + n*r.Unit)
	reading.GaugeReading = vision.GaugeReading{IsValidGauge: true, GaugeReading: &h}
	return reading, nil
}

// LastRow returns the red line row seen by the latest Read, or -1.
func (r *TickReader) LastRow() int { return int(r.lastRow.Load()) }

// LastLabel returns the station label image passed to the latest Read.
func (r *TickReader) LastLabel() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.label
}

// Calls returns how often Read ran.
func (r *TickReader) Calls() int { return int(r.calls.Load()) }

// PanicOnGauge is a verdict whose station label is given and whose gauge
// half panics when looked at.
type PanicOnGauge struct {
	Station vision.StationLabel
}

func (p PanicOnGauge) Label() vision.StationLabel { return p.Station }

func (p PanicOnGauge) Gauge() vision.GaugeReading {
	panic("gauge reading inspected")
}

// MediaServer serves submission media over HTTP.
type MediaServer struct {
	*httptest.Server
	mu    sync.RWMutex
	items map[string]mediaItem
}

type mediaItem struct {
	status      int
	contentType string
	data        []byte
}

// NewMediaServer starts a server. Close it when done.
func NewMediaServer() *MediaServer {
	m := &MediaServer{items: make(map[string]mediaItem)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MediaServer) serve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/media/")
	m.mu.RLock()
	item, ok := m.items[name]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if item.status != http.StatusOK {
		http.Error(w, http.StatusText(item.status), item.status)
		return
	}
	w.Header().Set("Content-Type", item.contentType)
	_, _ = w.Write(item.data)
}

// Put serves data under name and returns its URL.
func (m *MediaServer) Put(name, contentType string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = mediaItem{status: http.StatusOK, contentType: contentType, data: data}
	return m.URL + "/media/" + name
}

// PutImage serves img as PNG under name.
func (m *MediaServer) PutImage(name string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return m.Put(name, "image/png", buf.Bytes()), nil
}

// Fail makes name answer with status.
func (m *MediaServer) Fail(name string, status int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = mediaItem{status: status}
	return m.URL + "/media/" + name
}

// Harness wires an Orchestrator to in-memory collaborators.
type Harness struct {
	Registry *station.Registry
	Store    *contribution.MemoryStore
	Notifier *messaging.Recorder
	Detector *SceneDetector
	Reader   vision.Reader
	Media    *MediaServer

	seq atomic.Int32
}

// NewHarness builds a harness over the default station registry. The
// detector and reader are left for the caller to set.
func NewHarness() *Harness {
	return &Harness{
		Registry: station.Default(),
		Store:    contribution.NewMemoryStore(),
		Notifier: &messaging.Recorder{},
		Detector: &SceneDetector{},
		Media:    NewMediaServer(),
	}
}

// Orchestrator builds an orchestrator from the harness state.
func (h *Harness) Orchestrator() (*pipeline.Orchestrator, error) {
	cfg := media.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return pipeline.NewOrchestrator(pipeline.Deps{
		Fetcher:  media.NewFetcher(cfg, h.Media.Client()),
		Detector: h.Detector,
		Reader:   h.Reader,
		Registry: h.Registry,
		Store:    h.Store,
		Notifier: h.Notifier,
	})
}

// Submission addresses a media URL from a fixed contributor.
func (h *Harness) Submission(url string) pipeline.Submission {
	n := h.seq.Add(1)
	return pipeline.Submission{
		MessageID:  fmt.Sprintf("MM%04d", n),
		From:       "+17165551234",
		To:         "+17160000000",
		MediaURL:   url,
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, int(n), 0, time.UTC),
	}
}

// Close stops the media server.
func (h *Harness) Close() { h.Media.Close() }
