package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/crowdgauge/internal/testutil"
)

// sceneFixture records what a generated photo should read as.
type sceneFixture struct {
	Name         string          `json:"name"`
	InputFile    string          `json:"input_file"`
	StationID    string          `json:"station_id"`
	Ticks        int             `json:"ticks_below_major"`
	WaterHeight  float64         `json:"water_height"`
	WaterlineRow int             `json:"waterline_row"`
	NoiseStd     float64         `json:"noise_std,omitempty"`
	GaugeRect    image.Rectangle `json:"gauge_rect"`
	LabelRect    image.Rectangle `json:"label_rect"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir    = flag.String("out", "testdata", "output directory, relative to the project root")
		stationID = flag.String("station", "NY1000", "station id drawn on the label plate")
		ticksCSV  = flag.String("ticks", "3,7,15,24", "comma-separated minor ticks below the first major mark")
		noise     = flag.Float64("noise", 6, "noise std for the noisy variant of each scene (0 disables)")
		verbose   = flag.Bool("v", false, "Verbose output")
		help      = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic gauge photos and their expected readings.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                       # Default scenes for NY1000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -station PA1002 -ticks 5 # One scene for PA1002\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	ticks, err := parseTicks(*ticksCSV)
	if err != nil {
		slog.Error("Invalid -ticks", "error", err)
		os.Exit(1)
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root)
	}

	dir := filepath.Join(root, *outDir)
	fixtures, err := generateScenes(dir, strings.ToUpper(*stationID), ticks, *noise)
	if err != nil {
		slog.Error("Failed to generate scenes", "error", err)
		os.Exit(1)
	}
	if err := saveFixtures(filepath.Join(dir, "fixtures", "scenes.json"), fixtures); err != nil {
		slog.Error("Failed to write fixtures", "error", err)
		os.Exit(1)
	}

	slog.Info("Test data generation completed", "scenes", len(fixtures), "dir", dir)
}

func parseTicks(csv string) ([]int, error) {
	var ticks []int
	for _, f := range strings.Split(csv, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid tick count %q", f)
		}
		ticks = append(ticks, n)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no tick counts in %q", csv)
	}
	return ticks, nil
}

// generateScenes writes a clean and optionally a noisy JPEG per tick count.
// The gauge reads 1.00 at the first major mark plus 0.01 per minor tick.
func generateScenes(dir, stationID string, ticks []int, noise float64) ([]sceneFixture, error) {
	imagesDir := filepath.Join(dir, "images", "scenes")
	if err := testutil.EnsureDir(imagesDir); err != nil {
		return nil, fmt.Errorf("failed to create scenes directory: %w", err)
	}

	var fixtures []sceneFixture
	for _, n := range ticks {
		spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(n)
		variants := []testutil.GaugeSpec{spec}
		if noise > 0 {
			noisy := spec
			noisy.NoiseStd = noise
			noisy.NoiseSeed = uint64(n) + 1
			variants = append(variants, noisy)
		}

		for _, v := range variants {
			name := fmt.Sprintf("%s_ticks_%02d", strings.ToLower(stationID), n)
			if v.NoiseStd > 0 {
				name += "_noisy"
			}
			scene := testutil.NewScene(v, stationID)
			file := filepath.Join(imagesDir, name+".jpg")
			if err := imaging.Save(scene.Image, file, imaging.JPEGQuality(92)); err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", file, err)
			}
			slog.Debug("Wrote scene", "file", file, "spec", v.String())

			fixtures = append(fixtures, sceneFixture{
				Name:         name,
				InputFile:    filepath.Join("images", "scenes", name+".jpg"),
				StationID:    stationID,
				Ticks:        n,
				WaterHeight:  float64(100+n) / 100,
				WaterlineRow: v.WaterlineRow,
				NoiseStd:     v.NoiseStd,
				GaugeRect:    scene.GaugeRect,
				LabelRect:    scene.LabelRect,
			})
		}
	}
	return fixtures, nil
}

func saveFixtures(path string, fixtures []sceneFixture) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
