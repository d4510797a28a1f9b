// Package pipeline turns an MMS submission into an accepted contribution or
// a rejection: fetch, detect, preprocess, read, validate, persist, reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/common"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/media"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/preprocess"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// Detector locates the gauge and station label in a photo.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detector.Result, error)
}

// Fetcher downloads submission media.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*media.Media, error)
}

// Deps are the collaborators of an Orchestrator. Gauge and Label default to
// the calibrated preprocessors; Notifier defaults to logging.
type Deps struct {
	Fetcher  Fetcher
	Detector Detector
	Gauge    *preprocess.GaugePreprocessor
	Label    *preprocess.LabelPreprocessor
	Reader   vision.Reader
	Registry *station.Registry
	Store    contribution.Store
	Notifier messaging.Notifier
	// Prompt overrides vision.DefaultPrompt.
	Prompt string
}

// Orchestrator runs one submission at a time through the state machine. It
// holds no per-submission state and is safe for concurrent use.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator checks deps and fills defaults.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Detector == nil:
		return nil, errors.New("pipeline: detector is required")
	case deps.Reader == nil:
		return nil, errors.New("pipeline: vision reader is required")
	case deps.Registry == nil:
		return nil, errors.New("pipeline: station registry is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: contribution store is required")
	}
	if deps.Gauge == nil {
		g, err := preprocess.NewGaugePreprocessor(preprocess.DefaultGaugeConfig())
		if err != nil {
			return nil, err
		}
		deps.Gauge = g
	}
	if deps.Label == nil {
		l, err := preprocess.NewLabelPreprocessor(preprocess.DefaultLabelConfig())
		if err != nil {
			return nil, err
		}
		deps.Label = l
	}
	if deps.Notifier == nil {
		deps.Notifier = messaging.LogNotifier{}
	}
	if deps.Prompt == "" {
		deps.Prompt = vision.DefaultPrompt
	}
	return &Orchestrator{deps: deps}, nil
}

// Registry returns the station registry the orchestrator validates against.
func (o *Orchestrator) Registry() *station.Registry { return o.deps.Registry }

// reading carries what the stages learned about a submission so far.
type reading struct {
	verdict   *vision.Reading
	waterline int
	station   station.Station
	height    float64
}

// Process runs sub to a terminal state, persists the result, and replies to
// the contributor. It never returns an error: failures become rejections.
func (o *Orchestrator) Process(ctx context.Context, sub Submission) Outcome {
	sw := common.NewStopwatch()
	contributor := contribution.HashContributor(sub.From)

	res, err := o.safeRun(ctx, sub, sw)
	out := Outcome{MessageID: sub.MessageID, Reading: res.verdict, Waterline: res.waterline}

	if err == nil {
		saved, saveErr := o.deps.Store.SaveValid(ctx, contribution.Contribution{
			ContributorID: contributor,
			StationID:     res.station.ID,
			WaterHeight:   contribution.Float(res.height),
			Source:        contribution.SourceMMS,
			ReceivedAt:    sub.ReceivedAt,
		})
		if saveErr != nil {
			err = &UnexpectedError{Stage: "store", Err: saveErr}
		} else {
			out.State = StateAccepted
			out.Contribution = &saved
			out.Reply = messaging.AcceptedText(saved.StationID, res.height)
		}
	}

	if err != nil {
		out.State = Classify(err)
		out.Err = err
		out.Reply = out.State.Reply()
		if audited(err) {
			auditErr := o.deps.Store.SaveInvalid(ctx, contribution.InvalidContribution{
				ContributorID: contributor,
				Reference:     sub.MediaURL,
				Reason:        string(out.State),
				ReceivedAt:    sub.ReceivedAt,
			})
			if auditErr != nil {
				slog.Error("Failed to save audit record", "message_id", sub.MessageID, "error", auditErr)
			}
		}
	}
	sw.Lap("persist")

	if sendErr := o.deps.Notifier.Send(ctx, sub.From, sub.To, out.Reply); sendErr != nil {
		slog.Error("Failed to send reply", "message_id", sub.MessageID, "state", out.State, "error", sendErr)
	}

	out.Duration = sw.Total()
	o.record(sub, out, sw)
	return out
}

func (o *Orchestrator) record(sub Submission, out Outcome, sw *common.Stopwatch) {
	outcomesTotal.WithLabelValues(string(out.State)).Inc()
	for _, s := range sw.Stages() {
		stageDuration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
	}

	attrs := []any{
		"message_id", sub.MessageID,
		"state", out.State,
		"waterline", out.Waterline,
		"timing", sw,
	}
	if out.Contribution != nil {
		attrs = append(attrs, "station", out.Contribution.StationID, "water_height", *out.Contribution.WaterHeight)
	}
	switch out.State {
	case StateAccepted:
		slog.Info("Submission accepted", attrs...)
	case StateRejectedError:
		slog.Error("Submission failed", append(attrs, "error", out.Err)...)
	default:
		slog.Warn("Submission rejected", append(attrs, "error", out.Err)...)
	}
}

// safeRun recovers a panic in any stage into an UnexpectedError.
func (o *Orchestrator) safeRun(ctx context.Context, sub Submission, sw *common.Stopwatch) (res reading, err error) {
	res.waterline = -1
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in pipeline", "message_id", sub.MessageID, "panic", r,
				"stack", string(debug.Stack()))
			err = &UnexpectedError{Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	err = o.run(ctx, sub, sw, &res)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, sub Submission, sw *common.Stopwatch, res *reading) error {
	// received_media
	m, err := o.deps.Fetcher.Fetch(ctx, sub.MediaURL)
	sw.Lap("fetch")
	if err != nil {
		var fetchErr *media.FetchError
		var typeErr *media.UnsupportedTypeError
		if errors.As(err, &fetchErr) || errors.As(err, &typeErr) {
			return err
		}
		return &UnexpectedError{Stage: "fetch", Err: err}
	}

	// received_media -> detected
	det, err := o.deps.Detector.Detect(ctx, m.Image)
	sw.Lap("detect")
	if err != nil {
		return &UnexpectedError{Stage: "detect", Err: err}
	}
	gaugeROI, labelROI, err := detector.ExtractROIs(m.Image, det)
	if err != nil {
		var countErr *detector.DetectionCountError
		if errors.As(err, &countErr) {
			return err
		}
		return &UnexpectedError{Stage: "detect", Err: err}
	}

	// detected -> preprocessed
	gauge, err := o.deps.Gauge.Process(gaugeROI.Image)
	if err != nil {
		return &UnexpectedError{Stage: "preprocess", Err: err}
	}
	res.waterline = gauge.Waterline.Row
	if !gauge.Waterline.Found {
		waterlineMissing.Inc()
		slog.Warn("Waterline not found, sending unmarked gauge", "message_id", sub.MessageID)
	}
	label, err := o.deps.Label.Process(labelROI.Image)
	if err != nil {
		return &UnexpectedError{Stage: "preprocess", Err: err}
	}
	sw.Lap("preprocess")

	// preprocessed -> read
	verdict, err := o.deps.Reader.Read(ctx, o.deps.Prompt, gauge.Annotated, preprocess.Normalize(label))
	sw.Lap("read")
	if err != nil {
		var transportErr *vision.TransportError
		if errors.As(err, &transportErr) {
			return err
		}
		return &UnexpectedError{Stage: "read", Err: err}
	}
	res.verdict = verdict

	// read -> validated
	st, height, err := Validate(verdict, o.deps.Registry)
	sw.Lap("validate")
	if err != nil {
		return err
	}
	res.station, res.height = st, height
	return nil
}

// Validate applies the acceptance policy to a model verdict, in order:
// station label, gauge validity, station bounds. The gauge is never looked
// at when the station label fails.
func Validate(v vision.Verdict, registry *station.Registry) (station.Station, float64, error) {
	label := v.Label()
	if !label.IsValidStationLabel || label.StationID == nil {
		return station.Station{}, 0, ErrInvalidStationLabel
	}
	st, ok := registry.Lookup(*label.StationID)
	if !ok {
		return station.Station{}, 0, fmt.Errorf("%w: %s", ErrInvalidStationLabel, *label.StationID)
	}

	gauge := v.Gauge()
	if !gauge.IsValidGauge || gauge.GaugeReading == nil {
		return st, 0, ErrInvalidGaugeReading
	}
	h := *gauge.GaugeReading
	if h < 0 || !st.InBounds(h) {
		return st, h, fmt.Errorf("%w: %.2f outside [%.2f, %.2f] at %s",
			ErrInvalidGaugeReading, h, st.LowerBound, st.UpperBound, st.ID)
	}
	return st, h, nil
}

// ProcessImage runs detection, preprocessing and reading on an image that is
// already in hand, without persisting or replying. It backs the read command.
func (o *Orchestrator) ProcessImage(ctx context.Context, img image.Image) (*ImageReport, error) {
	start := time.Now()
	det, err := o.deps.Detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	report := &ImageReport{Detection: det, Waterline: -1}
	gaugeROI, labelROI, err := detector.ExtractROIs(img, det)
	if err != nil {
		return report, err
	}
	gauge, err := o.deps.Gauge.Process(gaugeROI.Image)
	if err != nil {
		return report, err
	}
	report.Waterline = gauge.Waterline.Row
	report.Annotated = gauge.Annotated
	label, err := o.deps.Label.Process(labelROI.Image)
	if err != nil {
		return report, err
	}
	report.Label = label

	verdict, err := o.deps.Reader.Read(ctx, o.deps.Prompt, gauge.Annotated, preprocess.Normalize(label))
	if err != nil {
		return report, err
	}
	report.Reading = verdict
	_, _, report.ValidationErr = Validate(verdict, o.deps.Registry)
	report.State = Classify(report.ValidationErr)
	report.Duration = time.Since(start)
	return report, nil
}

// ImageReport is the result of ProcessImage.
type ImageReport struct {
	Detection     *detector.Result
	Waterline     int
	Annotated     *image.NRGBA
	Label         *image.Gray
	Reading       *vision.Reading
	State         State
	ValidationErr error
	Duration      time.Duration
}
