package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/crowdgauge/internal/config"
	"github.com/MeKo-Tech/crowdgauge/internal/models"
	"github.com/MeKo-Tech/crowdgauge/internal/onnx"
)

// modelsCmd represents the models command.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the detector model and check it against ONNX Runtime",
	Long: `Show where the gauge detector model is resolved from and whether it exists.
With --inspect, load ONNX Runtime and print the model's inputs, outputs and
metadata.

Examples:
  crowdgauge models
  crowdgauge models --inspect --models-dir /opt/crowdgauge/models`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		inspect, _ := cmd.Flags().GetBool("inspect")
		return describeModels(cmd.OutOrStdout(), cfg, inspect)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().Bool("inspect", false, "initialize ONNX Runtime and print model inputs and outputs")
}

// describeModels reports every known model. It returns an error when the
// detector model is missing or, with inspect, cannot be opened.
func describeModels(w io.Writer, cfg *config.Config, inspect bool) error {
	detPath := cfg.ToDetectorConfig().ModelPath
	_, _ = fmt.Fprintf(w, "Models directory: %s\n\n", models.GetModelsDir(cfg.ModelsDir))

	var missing bool
	for _, m := range models.ListAvailableModels() {
		path := models.ResolveModelPath(cfg.ModelsDir, m.Type, m.Filename)
		if m.Type == models.TypeDetection {
			path = detPath
		}
		status := "found"
		if err := models.ValidateModelExists(path); err != nil {
			status = "missing"
			missing = true
		}
		_, _ = fmt.Fprintf(w, "%s (%s): %s\n", m.Name, status, m.Description)
		_, _ = fmt.Fprintf(w, "  path:    %s\n", path)
		_, _ = fmt.Fprintf(w, "  classes: %v\n", m.Classes)
	}
	if missing {
		return fmt.Errorf("detector model not found: %s", detPath)
	}
	if !inspect {
		return nil
	}

	if err := onnx.InitializeEnvironment(cfg.GPU.Enabled); err != nil {
		return err
	}
	defer func() {
		if err := onnx.DestroyEnvironment(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", "error", err)
		}
	}()
	return inspectModel(w, detPath)
}

func inspectModel(w io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}

	_, _ = fmt.Fprintf(w, "\nInputs: %d\n", len(inputs))
	for i, in := range inputs {
		_, _ = fmt.Fprintf(w, "  [%d] %s: %v (type: %s)\n", i, in.Name, in.Dimensions, in.DataType)
	}
	_, _ = fmt.Fprintf(w, "Outputs: %d\n", len(outputs))
	for i, out := range outputs {
		_, _ = fmt.Fprintf(w, "  [%d] %s: %v (type: %s)\n", i, out.Name, out.Dimensions, out.DataType)
	}

	metadata, err := onnxruntime_go.GetModelMetadata(path)
	if err != nil {
		slog.Debug("No model metadata", "path", path, "error", err)
		return nil
	}
	if producer, err := metadata.GetProducerName(); err == nil && producer != "" {
		_, _ = fmt.Fprintf(w, "Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		_, _ = fmt.Fprintf(w, "Version: %d\n", version)
	}
	return metadata.Destroy()
}
