package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/crowdgauge/internal/batch"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// readResult is the per-image output of the read command.
type readResult struct {
	File        string         `json:"file" yaml:"file"`
	State       pipeline.State `json:"state" yaml:"state"`
	Reply       string         `json:"reply" yaml:"reply"`
	StationID   string         `json:"station_id,omitempty" yaml:"station_id,omitempty"`
	WaterHeight *float64       `json:"water_height,omitempty" yaml:"water_height,omitempty"`
	Waterline   int            `json:"waterline" yaml:"waterline"`
	Boxes       []detector.Box `json:"boxes" yaml:"boxes"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs  int64          `json:"duration_ms" yaml:"duration_ms"`
}

// readCmd represents the read command.
var readCmd = &cobra.Command{
	Use:   "read [images or directories...]",
	Short: "Read gauge photos from disk",
	Long: `Run the photo pipeline on local image files without storing anything or
sending replies: detect the gauge and station label, mark the waterline, ask
the vision model, and apply the station checks.

Supported formats: JPEG, PNG, BMP, WebP

Examples:
  crowdgauge read photo.jpg
  crowdgauge read photo.jpg --format json --annotated gauge.png
  crowdgauge read *.jpg --static-reading NY1000:1.5 --visualize-dir out/
  crowdgauge read photos/ --recursive --workers 4 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, _ := cmd.Flags().GetString("format")
		staticReading, _ := cmd.Flags().GetString("static-reading")
		annotated, _ := cmd.Flags().GetString("annotated")
		visualizeDir, _ := cmd.Flags().GetString("visualize-dir")

		switch format {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("invalid format %q (must be text, json or yaml)", format)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		workers, _ := cmd.Flags().GetInt("workers")

		paths, err := batch.Discover(args, batch.DiscoverOptions{
			Recursive: recursive,
			Include:   include,
			Exclude:   exclude,
		})
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no image files found")
		}
		if annotated != "" && len(paths) > 1 {
			return errors.New("--annotated takes a single image; use --visualize-dir for several")
		}
		if visualizeDir != "" {
			if err := os.MkdirAll(visualizeDir, 0o755); err != nil {
				return fmt.Errorf("create visualize dir: %w", err)
			}
		}

		parts, err := buildPipeline(ctx, cfg, contribution.NewMemoryStore(), messaging.LogNotifier{}, staticReading)
		if err != nil {
			return err
		}
		defer func() { _ = parts.Close() }()

		results, err := batch.Map(ctx, paths, workers, func(ctx context.Context, path string) (readResult, error) {
			return readImage(ctx, parts.orchestrator, path, annotated, visualizeDir)
		})
		if err != nil {
			return err
		}
		return writeReadResults(cmd.OutOrStdout(), format, results)
	},
}

// readImage runs one file through the pipeline and writes the requested
// debug images.
func readImage(ctx context.Context, orch *pipeline.Orchestrator, path, annotated, visualizeDir string,
) (readResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return readResult{}, err
	}

	start := time.Now()
	report, err := orch.ProcessImage(ctx, img)
	if report == nil {
		return readResult{}, fmt.Errorf("%s: %w", path, err)
	}

	res := readResult{File: path, Waterline: report.Waterline, Boxes: report.Detection.Boxes}
	if res.Boxes == nil {
		res.Boxes = []detector.Box{}
	}
	switch {
	case err != nil:
		res.State = pipeline.Classify(err)
		res.Error = err.Error()
	default:
		res.State = report.State
		if report.ValidationErr != nil {
			res.Error = report.ValidationErr.Error()
		}
	}
	if r := report.Reading; r != nil {
		if r.StationLabel.StationID != nil {
			res.StationID = *r.StationLabel.StationID
		}
		res.WaterHeight = r.GaugeReading.GaugeReading
	}
	if res.State == pipeline.StateAccepted && res.WaterHeight != nil {
		res.Reply = messaging.AcceptedText(res.StationID, *res.WaterHeight)
	} else {
		res.Reply = res.State.Reply()
	}
	res.DurationMs = time.Since(start).Milliseconds()

	if annotated != "" && report.Annotated != nil {
		if err := imaging.Save(report.Annotated, annotated); err != nil {
			return res, fmt.Errorf("save annotated gauge: %w", err)
		}
	}
	if visualizeDir != "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out := filepath.Join(visualizeDir, base+"_boxes.png")
		if err := imaging.Save(detector.Visualize(img, report.Detection), out); err != nil {
			return res, fmt.Errorf("save visualization: %w", err)
		}
		if report.Annotated != nil {
			if err := imaging.Save(report.Annotated, filepath.Join(visualizeDir, base+"_gauge.png")); err != nil {
				return res, fmt.Errorf("save annotated gauge: %w", err)
			}
		}
	}

	slog.Debug("Read image", "file", path, "state", res.State, "duration_ms", res.DurationMs)
	return res, nil
}

func writeReadResults(w io.Writer, format string, results []readResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "File:      %s\n", r.File)
		_, _ = fmt.Fprintf(w, "State:     %s\n", r.State)
		if r.StationID != "" {
			_, _ = fmt.Fprintf(w, "Station:   %s\n", r.StationID)
		}
		if r.WaterHeight != nil {
			_, _ = fmt.Fprintf(w, "Height:    %.2f ft\n", *r.WaterHeight)
		}
		if r.Waterline >= 0 {
			_, _ = fmt.Fprintf(w, "Waterline: row %d\n", r.Waterline)
		} else {
			_, _ = fmt.Fprintln(w, "Waterline: not found")
		}
		_, _ = fmt.Fprintf(w, "Regions:   %d\n", len(r.Boxes))
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "Error:     %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(w, "Reply:     %s\n", r.Reply)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
	readCmd.Flags().String("static-reading", "",
		"answer with STATION:HEIGHT instead of calling the vision model")
	readCmd.Flags().String("annotated", "", "write the waterline-marked gauge to this file")
	readCmd.Flags().String("visualize-dir", "", "write detection boxes and the marked gauge per image to this directory")
	readCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories of directory arguments")
	readCmd.Flags().StringSlice("include", nil, "base name patterns to read from directories (default: supported images)")
	readCmd.Flags().StringSlice("exclude", nil, "base name patterns to skip")
	readCmd.Flags().IntP("workers", "w", 1, "images read in parallel")
}
