package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/crowdgauge/internal/config"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/media"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/preprocess"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// loadRegistry returns the registry from stations_file, or the built-in
// station list when none is configured.
func loadRegistry(cfg *config.Config) (*station.Registry, error) {
	if cfg.StationsFile == "" {
		return station.Default(), nil
	}
	return station.LoadFile(cfg.StationsFile)
}

// parseStaticReading parses "STATION:HEIGHT", e.g. "NY1000:1.5".
func parseStaticReading(s string) (string, float64, error) {
	id, h, ok := strings.Cut(s, ":")
	id = strings.ToUpper(strings.TrimSpace(id))
	if !ok || id == "" {
		return "", 0, fmt.Errorf("invalid static reading %q (want STATION:HEIGHT)", s)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid static reading height %q: %w", h, err)
	}
	return id, height, nil
}

// newReader builds the vision reader. A static reading forces the static
// provider.
func newReader(ctx context.Context, cfg *config.Config, registry *station.Registry,
	staticReading string,
) (vision.Reader, error) {
	if staticReading == "" && cfg.Vision.Provider == config.ProviderStatic {
		return nil, errors.New("the static vision provider needs --static-reading STATION:HEIGHT")
	}
	if staticReading != "" {
		id, height, err := parseStaticReading(staticReading)
		if err != nil {
			return nil, err
		}
		slog.Warn("Using static vision reader", "station", id, "water_height", height)
		return vision.NewStaticReader(id, height), nil
	}
	return vision.NewGeminiReader(ctx, cfg.ToGeminiConfig(), registry)
}

// newNotifier returns a Twilio notifier when credentials are configured and
// a logging notifier otherwise.
func newNotifier(cfg *config.Config) (messaging.Notifier, error) {
	if cfg.Twilio.AccountSID == "" && cfg.Twilio.AuthToken == "" {
		slog.Warn("Twilio credentials not set, replies will only be logged")
		return messaging.LogNotifier{}, nil
	}
	return messaging.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
}

// pipelineParts are the collaborators shared by serve and read.
type pipelineParts struct {
	registry     *station.Registry
	detector     *detector.Detector
	orchestrator *pipeline.Orchestrator
}

func (p *pipelineParts) Close() error {
	if p.detector == nil {
		return nil
	}
	return p.detector.Close()
}

// buildPipeline loads the detector and wires an orchestrator around store
// and notifier.
func buildPipeline(ctx context.Context, cfg *config.Config, store contribution.Store,
	notifier messaging.Notifier, staticReading string,
) (*pipelineParts, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	reader, err := newReader(ctx, cfg, registry, staticReading)
	if err != nil {
		return nil, err
	}
	prompt, err := cfg.Prompt()
	if err != nil {
		return nil, err
	}
	gauge, err := preprocess.NewGaugePreprocessor(cfg.ToGaugeConfig())
	if err != nil {
		return nil, err
	}
	label, err := preprocess.NewLabelPreprocessor(cfg.ToLabelConfig())
	if err != nil {
		return nil, err
	}

	det, err := detector.NewDetector(cfg.ToDetectorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Fetcher:  media.NewFetcher(cfg.ToMediaConfig(), nil),
		Detector: det,
		Gauge:    gauge,
		Label:    label,
		Reader:   reader,
		Registry: registry,
		Store:    store,
		Notifier: notifier,
		Prompt:   prompt,
	})
	if err != nil {
		_ = det.Close()
		return nil, err
	}

	slog.Info("Pipeline ready",
		"stations", registry.Len(),
		"vision_provider", cfg.Vision.Provider,
		"model_path", det.GetConfig().ModelPath)
	return &pipelineParts{registry: registry, detector: det, orchestrator: orch}, nil
}
