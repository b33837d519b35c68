// Package presets_test tests the preset table and parameter validation.
package presets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tts-studio/internal/core"
	"tts-studio/internal/presets"
)

func TestAllPresetsFallInsideDocumentedRanges(t *testing.T) {
	t.Parallel()

	all := presets.All()
	require.NotEmpty(t, all)

	for _, preset := range all {
		assert.GreaterOrEqual(t, preset.Exaggeration, presets.MinExaggeration, preset.Name)
		assert.LessOrEqual(t, preset.Exaggeration, presets.MaxExaggeration, preset.Name)
		assert.GreaterOrEqual(t, preset.CFGWeight, presets.MinCFGWeight, preset.Name)
		assert.LessOrEqual(t, preset.CFGWeight, presets.MaxCFGWeight, preset.Name)
		assert.GreaterOrEqual(t, preset.Temperature, presets.MinTemperature, preset.Name)
		assert.LessOrEqual(t, preset.Temperature, presets.MaxTemperature, preset.Name)
	}
}

func TestAllIsSortedByName(t *testing.T) {
	t.Parallel()

	all := presets.All()

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestApplyOverridesSliderValues(t *testing.T) {
	t.Parallel()

	params := core.SpeechParams{
		Exaggeration: 1.9,
		CFGWeight:    0.1,
		Temperature:  1.5,
		Seed:         42,
	}

	applied, err := presets.Apply("Dramatic & Intense", params)
	require.NoError(t, err)

	assert.InEpsilon(t, 1.2, applied.Exaggeration, 0.001)
	assert.InEpsilon(t, 0.2, applied.CFGWeight, 0.001)
	assert.InEpsilon(t, 1.0, applied.Temperature, 0.001)

	// The seed is not part of any preset.
	assert.Equal(t, 42, applied.Seed)
}

func TestApplyCustomKeepsSliderValues(t *testing.T) {
	t.Parallel()

	params := core.SpeechParams{
		Exaggeration: 1.9,
		CFGWeight:    0.1,
		Temperature:  1.5,
		Seed:         0,
	}

	for _, name := range []string{"", presets.PresetCustom} {
		applied, err := presets.Apply(name, params)
		require.NoError(t, err)
		assert.Equal(t, params, applied)
	}
}

func TestApplyUnknownPresetFails(t *testing.T) {
	t.Parallel()

	_, err := presets.Apply("Whispering", presets.Defaults())
	require.ErrorIs(t, err, presets.ErrUnknownPreset)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	defaults := presets.Defaults()

	assert.InEpsilon(t, 0.5, defaults.Exaggeration, 0.001)
	assert.InEpsilon(t, 0.5, defaults.CFGWeight, 0.001)
	assert.InEpsilon(t, 0.8, defaults.Temperature, 0.001)
	assert.Zero(t, defaults.Seed)
}

func TestValidateRejectsOutOfRangeParameters(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		params  core.SpeechParams
		wantErr error
	}{
		{
			name:    "exaggeration too high",
			params:  core.SpeechParams{Exaggeration: 2.5, CFGWeight: 0.5, Temperature: 0.8, Seed: 0},
			wantErr: presets.ErrExaggerationRange,
		},
		{
			name:    "negative exaggeration",
			params:  core.SpeechParams{Exaggeration: -0.1, CFGWeight: 0.5, Temperature: 0.8, Seed: 0},
			wantErr: presets.ErrExaggerationRange,
		},
		{
			name:    "cfg weight too high",
			params:  core.SpeechParams{Exaggeration: 0.5, CFGWeight: 1.1, Temperature: 0.8, Seed: 0},
			wantErr: presets.ErrCFGWeightRange,
		},
		{
			name:    "temperature below floor",
			params:  core.SpeechParams{Exaggeration: 0.5, CFGWeight: 0.5, Temperature: 0.05, Seed: 0},
			wantErr: presets.ErrTemperatureRange,
		},
		{
			name:    "negative seed",
			params:  core.SpeechParams{Exaggeration: 0.5, CFGWeight: 0.5, Temperature: 0.8, Seed: -1},
			wantErr: presets.ErrSeedNegative,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := presets.Validate(testCase.params)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestValidateAcceptsBoundaryValues(t *testing.T) {
	t.Parallel()

	params := core.SpeechParams{
		Exaggeration: presets.MaxExaggeration,
		CFGWeight:    presets.MaxCFGWeight,
		Temperature:  presets.MinTemperature,
		Seed:         0,
	}

	require.NoError(t, presets.Validate(params))
}

func TestResolveSeedKeepsExplicitSeed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 42, presets.ResolveSeed(42))
}

func TestResolveSeedReplacesZero(t *testing.T) {
	t.Parallel()

	for range 100 {
		seed := presets.ResolveSeed(0)
		assert.GreaterOrEqual(t, seed, 1)
		assert.LessOrEqual(t, seed, 1000000)
	}
}
