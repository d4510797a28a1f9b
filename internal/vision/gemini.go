package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/MeKo-Tech/crowdgauge/internal/station"
	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// Gemini defaults.
const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// contentGenerator is the part of the genai client the reader calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures GeminiReader.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	JPEGQuality int
}

// GeminiReader reads gauges with Google's Gemini models.
type GeminiReader struct {
	cfg      GeminiConfig
	models   contentGenerator
	registry *station.Registry
	schema   *genai.Schema
}

// NewGeminiReader creates a Gemini API client. The station enum in the
// response schema comes from registry.
func NewGeminiReader(ctx context.Context, cfg GeminiConfig, registry *station.Registry) (*GeminiReader, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiReader(cfg, client.Models, registry), nil
}

func newGeminiReader(cfg GeminiConfig, models contentGenerator, registry *station.Registry) *GeminiReader {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = utils.DefaultJPEGQuality
	}
	return &GeminiReader{
		cfg:      cfg,
		models:   models,
		registry: registry,
		schema:   ResponseSchema(registry),
	}
}

// Read sends the gauge and label as JPEG parts followed by the prompt and
// parses the schema-constrained answer.
func (g *GeminiReader) Read(ctx context.Context, prompt string, gauge, label image.Image) (*Reading, error) {
	gaugeJPEG, err := utils.EncodeJPEG(gauge, g.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode gauge image: %w", err)
	}
	labelJPEG, err := utils.EncodeJPEG(label, g.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode station label image: %w", err)
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(gaugeJPEG, "image/jpeg"),
		genai.NewPartFromBytes(labelJPEG, "image/jpeg"),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   g.schema,
	})
	if err != nil {
		return nil, &TransportError{Provider: "gemini", Err: err}
	}
	if resp == nil {
		return nil, &ResponseError{Err: errors.New("empty response")}
	}
	text := resp.Text()
	if text == "" {
		return nil, &ResponseError{Err: errors.New("response has no text")}
	}

	reading, err := ParseReading([]byte(text), g.registry)
	if err != nil {
		return nil, err
	}
	slog.Debug("Model reading received",
		"model", g.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"valid_station", reading.StationLabel.IsValidStationLabel,
		"valid_gauge", reading.GaugeReading.IsValidGauge)
	return reading, nil
}

// ResponseSchema mirrors Reading. Station ids are restricted to registry.
func ResponseSchema(registry *station.Registry) *genai.Schema {
	nullable := true
	stationID := &genai.Schema{Type: genai.TypeString, Nullable: &nullable}
	if registry != nil {
		stationID.Format = "enum"
		stationID.Enum = registry.IDs()
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"station_label": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"is_valid_station_label": {Type: genai.TypeBoolean},
					"station_id":             stationID,
				},
				Required: []string{"is_valid_station_label", "station_id"},
			},
			"gauge_reading": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"is_valid_gauge": {Type: genai.TypeBoolean},
					"gauge_reading":  {Type: genai.TypeNumber, Nullable: &nullable},
				},
				Required: []string{"is_valid_gauge", "gauge_reading"},
			},
		},
		Required:         []string{"station_label", "gauge_reading"},
		PropertyOrdering: []string{"station_label", "gauge_reading"},
	}
}
