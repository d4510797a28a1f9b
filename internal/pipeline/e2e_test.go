package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline/pipelinetest"
	"github.com/MeKo-Tech/crowdgauge/internal/preprocess"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
	"github.com/MeKo-Tech/crowdgauge/internal/testutil"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

func newHarness(t *testing.T) *pipelinetest.Harness {
	t.Helper()
	h := pipelinetest.NewHarness()
	t.Cleanup(h.Close)
	return h
}

func orchestrator(t *testing.T, h *pipelinetest.Harness) *pipeline.Orchestrator {
	t.Helper()
	o, err := h.Orchestrator()
	require.NoError(t, err)
	return o
}

func sceneURL(t *testing.T, h *pipelinetest.Harness, scene testutil.Scene) string {
	t.Helper()
	url, err := h.Media.PutImage("scene.png", scene.Image)
	require.NoError(t, err)
	return url
}

func TestProcess_AcceptsTickReading(t *testing.T) {
	for _, ticks := range []int{3, 7, 15, 24} {
		t.Run(fmt.Sprintf("ticks_%d", ticks), func(t *testing.T) {
			h := newHarness(t)
			spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(ticks)
			scene := testutil.NewScene(spec, "NY1000")
			h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
			reader := pipelinetest.NewTickReader(spec, "NY1000")
			h.Reader = reader

			out := orchestrator(t, h).Process(context.Background(), h.Submission(sceneURL(t, h, scene)))

			require.Equal(t, pipeline.StateAccepted, out.State, "err: %v", out.Err)
			want := vision.Round2(1.0 + float64(ticks)*0.01)
			require.NotNil(t, out.Contribution)
			assert.InDelta(t, want, *out.Contribution.WaterHeight, 1e-9)
			assert.Equal(t, "NY1000", out.Contribution.StationID)

			label, ok := reader.LastLabel().(preprocess.Normalized)
			require.True(t, ok, "reader gets the [0,1] label plane")
			for _, v := range label.Pix {
				require.True(t, v == 0 || v == 1, "label plane is binary, got %v", v)
			}
			assert.Equal(t, contribution.SourceMMS, out.Contribution.Source)
			assert.Equal(t, contribution.HashContributor("+17165551234"), out.Contribution.ContributorID)
			assert.InDelta(t, spec.WaterlineRow, out.Waterline, 2)
			assert.Equal(t, out.Waterline, reader.LastRow())

			assert.Len(t, h.Store.Valid(), 1)
			assert.Empty(t, h.Store.Invalid())

			msg, ok := h.Notifier.Last()
			require.True(t, ok)
			assert.Equal(t, "+17165551234", msg.To)
			assert.Equal(t, "+17160000000", msg.From)
			assert.Equal(t, messaging.AcceptedText("NY1000", want), msg.Body)
			assert.Equal(t, msg.Body, out.Reply)
		})
	}
}

func TestProcess_OneBoxIsUnclear(t *testing.T) {
	h := newHarness(t)
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(5)
	scene := testutil.NewScene(spec, "NY1000")
	h.Detector.Boxes = pipelinetest.SceneBoxes(scene)[1:]
	reader := pipelinetest.NewTickReader(spec, "NY1000")
	h.Reader = reader
	url := sceneURL(t, h, scene)

	out := orchestrator(t, h).Process(context.Background(), h.Submission(url))

	assert.Equal(t, pipeline.StateRejectedUnclearImage, out.State)
	var countErr *detector.DetectionCountError
	require.ErrorAs(t, out.Err, &countErr)
	assert.Equal(t, 1, countErr.Count)
	assert.Equal(t, messaging.UnclearImageText, out.Reply)
	assert.Zero(t, reader.Calls())

	assert.Empty(t, h.Store.Valid())
	audit := h.Store.Invalid()
	require.Len(t, audit, 1)
	assert.Equal(t, url, audit[0].Reference)
	assert.Equal(t, string(pipeline.StateRejectedUnclearImage), audit[0].Reason)
}

func TestProcess_MediaFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.Reader = vision.NewStaticReader("NY1000", 1.0)
	url := h.Media.Fail("gone.jpg", http.StatusNotFound)

	out := orchestrator(t, h).Process(context.Background(), h.Submission(url))

	assert.Equal(t, pipeline.StateRejectedTransportError, out.State)
	assert.Equal(t, messaging.ErrorText, out.Reply)
	assert.NotEqual(t, messaging.UnclearImageText, out.Reply)
	assert.Zero(t, h.Detector.Calls())
	assert.Empty(t, h.Store.Valid())
	assert.Empty(t, h.Store.Invalid(), "nothing to audit when the media never arrived")

	msg, ok := h.Notifier.Last()
	require.True(t, ok)
	assert.Equal(t, messaging.ErrorText, msg.Body)
}

func TestProcess_InvalidStationSkipsGauge(t *testing.T) {
	h := newHarness(t)
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(5)
	scene := testutil.NewScene(spec, "XX0000")
	h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
	reader := pipelinetest.NewTickReader(spec, "")
	reader.StationValid = false
	h.Reader = reader

	out := orchestrator(t, h).Process(context.Background(), h.Submission(sceneURL(t, h, scene)))

	assert.Equal(t, pipeline.StateRejectedInvalidStation, out.State)
	assert.ErrorIs(t, out.Err, pipeline.ErrInvalidStationLabel)
	assert.Equal(t, messaging.InvalidStationText, out.Reply)
	assert.Empty(t, h.Store.Valid())
	assert.Len(t, h.Store.Invalid(), 1)
}

func TestValidate_StationFailureNeverInspectsGauge(t *testing.T) {
	reg := station.Default()
	bogus := "ZZ9999"
	for _, label := range []vision.StationLabel{
		{IsValidStationLabel: false},
		{IsValidStationLabel: true},
		{IsValidStationLabel: true, StationID: &bogus},
	} {
		assert.NotPanics(t, func() {
			_, _, err := pipeline.Validate(pipelinetest.PanicOnGauge{Station: label}, reg)
			assert.ErrorIs(t, err, pipeline.ErrInvalidStationLabel)
		})
	}
}

func TestValidate_Order(t *testing.T) {
	reg, err := station.New([]station.Station{{ID: "PA1002", LowerBound: 0.5, UpperBound: 6}})
	require.NoError(t, err)
	id := "PA1002"
	h := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		gauge vision.GaugeReading
		want  error
	}{
		{"gauge invalid", vision.GaugeReading{IsValidGauge: false, GaugeReading: h(2)}, pipeline.ErrInvalidGaugeReading},
		{"gauge missing", vision.GaugeReading{IsValidGauge: true}, pipeline.ErrInvalidGaugeReading},
		{"below bounds", vision.GaugeReading{IsValidGauge: true, GaugeReading: h(0.2)}, pipeline.ErrInvalidGaugeReading},
		{"above bounds", vision.GaugeReading{IsValidGauge: true, GaugeReading: h(6.01)}, pipeline.ErrInvalidGaugeReading},
		{"accepted", vision.GaugeReading{IsValidGauge: true, GaugeReading: h(2.5)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &vision.Reading{
				StationLabel: vision.StationLabel{IsValidStationLabel: true, StationID: &id},
				GaugeReading: tt.gauge,
			}
			st, height, err := pipeline.Validate(r, reg)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				assert.Equal(t, pipeline.StateRejectedInvalidGauge, pipeline.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "PA1002", st.ID)
			assert.InDelta(t, 2.5, height, 1e-9)
		})
	}
}

func TestProcess_RejectionPaths(t *testing.T) {
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(5)
	scene := testutil.NewScene(spec, "NY1000")

	tests := []struct {
		name    string
		setup   func(h *pipelinetest.Harness) string
		state   pipeline.State
		reply   string
		audited bool
	}{
		{
			name: "vision transport failure",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = &vision.StaticReader{Err: &vision.TransportError{Provider: "gemini", Err: context.DeadlineExceeded}}
				url, _ := h.Media.PutImage("s.png", scene.Image)
				return url
			},
			state: pipeline.StateRejectedTransportError, reply: messaging.ErrorText, audited: true,
		},
		{
			name: "media server error",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = vision.NewStaticReader("NY1000", 1.05)
				return h.Media.Fail("s.png", http.StatusBadGateway)
			},
			state: pipeline.StateRejectedTransportError, reply: messaging.ErrorText, audited: false,
		},
		{
			name: "unsupported media",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = vision.NewStaticReader("NY1000", 1.05)
				return h.Media.Put("clip.gif", "image/gif", []byte("GIF89a"))
			},
			state: pipeline.StateRejectedUnsupportedMedia, reply: messaging.UnsupportedMediaText, audited: true,
		},
		{
			name: "undecodable media",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = vision.NewStaticReader("NY1000", 1.05)
				return h.Media.Put("bad.jpg", "image/jpeg", []byte("not really a jpeg"))
			},
			state: pipeline.StateRejectedError, reply: messaging.ErrorText, audited: true,
		},
		{
			name: "malformed model response",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = &vision.StaticReader{Err: &vision.ResponseError{Err: errors.New("eof")}}
				url, _ := h.Media.PutImage("s.png", scene.Image)
				return url
			},
			state: pipeline.StateRejectedError, reply: messaging.ErrorText, audited: true,
		},
		{
			name: "detector panic",
			setup: func(h *pipelinetest.Harness) string {
				h.Detector.Panic = "index out of range"
				h.Reader = vision.NewStaticReader("NY1000", 1.05)
				url, _ := h.Media.PutImage("s.png", scene.Image)
				return url
			},
			state: pipeline.StateRejectedError, reply: messaging.ErrorText, audited: true,
		},
		{
			name: "invalid gauge",
			setup: func(h *pipelinetest.Harness) string {
				h.Reader = &vision.StaticReader{Reading: vision.Reading{
					StationLabel: vision.StationLabel{IsValidStationLabel: true, StationID: ptr("NY1000")},
				}}
				url, _ := h.Media.PutImage("s.png", scene.Image)
				return url
			},
			state: pipeline.StateRejectedInvalidGauge, reply: messaging.InvalidGaugeText, audited: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
			url := tt.setup(h)

			out := orchestrator(t, h).Process(context.Background(), h.Submission(url))

			assert.Equal(t, tt.state, out.State, "err: %v", out.Err)
			assert.Equal(t, tt.reply, out.Reply)
			assert.Empty(t, h.Store.Valid())
			if tt.audited {
				require.Len(t, h.Store.Invalid(), 1)
				assert.Equal(t, string(tt.state), h.Store.Invalid()[0].Reason)
			} else {
				assert.Empty(t, h.Store.Invalid())
			}
			_, sent := h.Notifier.Last()
			assert.True(t, sent)
		})
	}
}

func TestProcess_StoreFailureIsUnexpected(t *testing.T) {
	h := newHarness(t)
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(4)
	scene := testutil.NewScene(spec, "NY1000")
	h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
	h.Reader = pipelinetest.NewTickReader(spec, "NY1000")
	url := sceneURL(t, h, scene)
	o := orchestrator(t, h)
	require.NoError(t, h.Store.Close())

	out := o.Process(context.Background(), h.Submission(url))

	assert.Equal(t, pipeline.StateRejectedError, out.State)
	var unexpected *pipeline.UnexpectedError
	require.ErrorAs(t, out.Err, &unexpected)
	assert.Equal(t, "store", unexpected.Stage)
	assert.ErrorIs(t, out.Err, contribution.ErrClosed)
}

func TestProcess_NotifierFailureKeepsOutcome(t *testing.T) {
	h := newHarness(t)
	h.Notifier.Err = errors.New("twilio down")
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(6)
	scene := testutil.NewScene(spec, "NY1000")
	h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
	h.Reader = pipelinetest.NewTickReader(spec, "NY1000")

	out := orchestrator(t, h).Process(context.Background(), h.Submission(sceneURL(t, h, scene)))
	assert.Equal(t, pipeline.StateAccepted, out.State)
	assert.Len(t, h.Store.Valid(), 1)
}

func TestProcessImage(t *testing.T) {
	h := newHarness(t)
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(9)
	scene := testutil.NewScene(spec, "NY1000")
	h.Detector.Boxes = pipelinetest.SceneBoxes(scene)
	h.Reader = pipelinetest.NewTickReader(spec, "NY1000")

	report, err := orchestrator(t, h).ProcessImage(context.Background(), scene.Image)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateAccepted, report.State)
	assert.InDelta(t, 1.09, *report.Reading.GaugeReading.GaugeReading, 1e-9)
	assert.Equal(t, 600, report.Annotated.Bounds().Dy())
	assert.Equal(t, 400, report.Label.Bounds().Dx())
	assert.Empty(t, h.Store.Valid(), "ProcessImage does not persist")
	_, sent := h.Notifier.Last()
	assert.False(t, sent)
}

func TestNewOrchestrator_RequiresDeps(t *testing.T) {
	_, err := pipeline.NewOrchestrator(pipeline.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher is required")
}

func ptr(s string) *string { return &s }
