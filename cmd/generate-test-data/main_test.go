package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

func TestParseTicks(t *testing.T) {
	ticks, err := parseTicks(" 3, 7,,15 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 15}, ticks)

	for _, bad := range []string{"", "a", "-1", ", ,"} {
		_, err := parseTicks(bad)
		assert.Error(t, err, bad)
	}
}

func TestGenerateScenes(t *testing.T) {
	dir := t.TempDir()
	fixtures, err := generateScenes(dir, "PA1002", []int{4, 10}, 5)
	require.NoError(t, err)
	require.Len(t, fixtures, 4)

	assert.Equal(t, "pa1002_ticks_04", fixtures[0].Name)
	assert.Equal(t, "pa1002_ticks_04_noisy", fixtures[1].Name)
	assert.InDelta(t, 1.10, fixtures[2].WaterHeight, 1e-9)
	assert.Greater(t, fixtures[0].WaterlineRow, 0)

	for _, f := range fixtures {
		img, _, err := utils.LoadImage(filepath.Join(dir, f.InputFile))
		require.NoError(t, err, f.Name)
		assert.True(t, f.GaugeRect.In(img.Bounds()), f.Name)
		assert.True(t, f.LabelRect.In(img.Bounds()), f.Name)
	}

	path := filepath.Join(dir, "fixtures", "scenes.json")
	require.NoError(t, saveFixtures(path, fixtures))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back []sceneFixture
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, fixtures, back)
}
