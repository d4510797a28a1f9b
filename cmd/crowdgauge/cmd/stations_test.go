package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

func TestStationsCommand_JSON(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"stations", "--format", "json"})
	require.NoError(t, err)

	var list []station.Station
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	assert.Len(t, list, station.Default().Len())
}

func TestStationsCommand_FileAndFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`stations:
  - id: NY1000
    name: Ellicott Creek
    lower_bound: 0.5
    upper_bound: 6
  - id: PA1002
`), 0o600))
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("stations-file", "") })

	output, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"stations", "--stations-file", path, "--format", "text"})
	require.NoError(t, err)
	assert.Contains(t, output, "Ellicott Creek")
	assert.Contains(t, output, "0.50..6.00")
	assert.Contains(t, output, "2 stations")

	output, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"stations", "--stations-file", path, "--format", "yaml"})
	require.NoError(t, err)
	var doc struct {
		Stations []station.Station `yaml:"stations"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(output), &doc))
	require.Len(t, doc.Stations, 2)
	assert.Equal(t, "PA1002", doc.Stations[1].ID)
}

func TestStationsCommand_BadFormat(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"stations", "--format", "csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
