package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoles(t *testing.T) {
	r := DefaultRoles()
	require.NoError(t, r.Validate())
	assert.Equal(t, 2, r.NumClasses())

	l, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, LabelStationLabel, l)

	_, ok = r.Lookup(7)
	assert.False(t, ok)
}

func TestRoles_Validate(t *testing.T) {
	assert.NoError(t, Roles{3: LabelStationLabel, 7: LabelGauge}.Validate())
	assert.Error(t, Roles{0: LabelGauge}.Validate())
	assert.Error(t, Roles{0: LabelGauge, 1: LabelGauge}.Validate())
	assert.Error(t, Roles{0: LabelGauge, 1: "plate"}.Validate())
	assert.Error(t, Roles{-1: LabelGauge, 1: LabelStationLabel}.Validate())
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("gauge")
	require.NoError(t, err)
	assert.Equal(t, LabelGauge, l)

	_, err = ParseLabel("GAUGE")
	assert.Error(t, err)
}
