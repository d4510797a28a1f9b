package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSystemLibraryPaths(t *testing.T) {
	gpu := getSystemLibraryPaths(true)
	cpu := getSystemLibraryPaths(false)

	assert.Len(t, gpu, 4)
	assert.Len(t, cpu, 3)
	assert.Contains(t, gpu[0], "gpu")
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	switch runtime.GOOS {
	case osLinux:
		require.NoError(t, err)
		assert.Equal(t, libLinux, name)
	case osDarwin:
		require.NoError(t, err)
		assert.Equal(t, libDarwin, name)
	case osWindows:
		require.NoError(t, err)
		assert.Equal(t, libWindows, name)
	default:
		assert.Error(t, err)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, err)
}

func TestCandidateLibraryPaths_EnvOverrideFirst(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/custom/libonnxruntime.so")

	paths := candidateLibraryPaths(false)
	require.NotEmpty(t, paths)
	assert.Equal(t, "/custom/libonnxruntime.so", paths[0])

	gpu := candidateLibraryPaths(true)
	assert.Greater(t, len(gpu), len(paths))
}

func TestSetONNXLibraryPath_UsesEnvOverride(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o600))
	t.Setenv(EnvLibraryPath, lib)

	assert.NoError(t, SetONNXLibraryPath(false))
}
