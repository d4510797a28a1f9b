package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// EnvLibraryPath overrides the ONNX Runtime shared library location.
const EnvLibraryPath = "CROWDGAUGE_ONNXRUNTIME_LIB"

// getSystemLibraryPaths returns system library paths to try, prioritizing GPU or CPU based on useGPU.
func getSystemLibraryPaths(useGPU bool) []string {
	if useGPU {
		return []string{
			"/opt/onnxruntime/gpu/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
}

// findProjectRoot finds the project root directory by looking for go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	projectRoot := cwd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			return projectRoot, nil
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			return "", errors.New("could not find project root")
		}
		projectRoot = parent
	}
}

// getLibraryName returns the appropriate library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// candidateLibraryPaths lists every location SetONNXLibraryPath tries, in order.
func candidateLibraryPaths(useGPU bool) []string {
	var paths []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, getSystemLibraryPaths(useGPU)...)

	root, err := findProjectRoot()
	if err != nil {
		return paths
	}
	libName, err := getLibraryName()
	if err != nil {
		return paths
	}
	if useGPU {
		paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", libName))
	}
	return append(paths, filepath.Join(root, "onnxruntime", "lib", libName))
}

// SetONNXLibraryPath points onnxruntime_go at the first shared library found.
// CROWDGAUGE_ONNXRUNTIME_LIB wins over system and project-relative paths.
func SetONNXLibraryPath(useGPU bool) error {
	paths := candidateLibraryPaths(useGPU)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			onnxruntime_go.SetSharedLibraryPath(path)
			return nil
		}
	}
	return fmt.Errorf("ONNX Runtime library not found (tried %d locations, set %s)", len(paths), EnvLibraryPath)
}

// InitializeEnvironment sets the library path and initializes the shared
// ONNX Runtime environment once per process.
func InitializeEnvironment(useGPU bool) error {
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if err := SetONNXLibraryPath(useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// DestroyEnvironment tears down the shared environment. Call it once at
// process shutdown after every session is destroyed.
func DestroyEnvironment() error {
	if !onnxruntime_go.IsInitialized() {
		return nil
	}
	return onnxruntime_go.DestroyEnvironment()
}
