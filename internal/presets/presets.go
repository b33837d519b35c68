// Package presets maps preset labels to generation parameters and validates
// parameter ranges before they are forwarded to the inference engine.
package presets

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"tts-studio/internal/core"
)

// PresetCustom leaves the caller-supplied slider values untouched.
const PresetCustom = "Custom"

// Parameter ranges as documented in the UI.
const (
	MinExaggeration = 0.0
	MaxExaggeration = 2.0
	MinCFGWeight    = 0.0
	MaxCFGWeight    = 1.0
	MinTemperature  = 0.1
	MaxTemperature  = 2.0
)

// Default slider values used by the Custom preset.
const (
	DefaultExaggeration = 0.5
	DefaultCFGWeight    = 0.5
	DefaultTemperature  = 0.8
)

// maxRandomSeed bounds the seed chosen when the caller asks for a random one.
const maxRandomSeed = 1000000

// Static errors.
var (
	ErrUnknownPreset     = errors.New("unknown preset")
	ErrExaggerationRange = errors.New("exaggeration must be between 0.0 and 2.0")
	ErrCFGWeightRange    = errors.New("cfg_weight must be between 0.0 and 1.0")
	ErrTemperatureRange  = errors.New("temperature must be between 0.1 and 2.0")
	ErrSeedNegative      = errors.New("seed must be non-negative")
)

// Preset is one named parameter configuration.
type Preset struct {
	Name         string  `json:"name"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Temperature  float64 `json:"temperature"`
}

// table holds the preset configurations from the original studio UI.
var table = map[string]Preset{
	"Neutral":               {Name: "Neutral", Exaggeration: 0.5, CFGWeight: 0.5, Temperature: 0.8},
	"Calm & Controlled":     {Name: "Calm & Controlled", Exaggeration: 0.2, CFGWeight: 0.7, Temperature: 0.6},
	"Expressive & Dynamic":  {Name: "Expressive & Dynamic", Exaggeration: 0.8, CFGWeight: 0.3, Temperature: 0.9},
	"Dramatic & Intense":    {Name: "Dramatic & Intense", Exaggeration: 1.2, CFGWeight: 0.2, Temperature: 1.0},
	"Robotic & Stable":      {Name: "Robotic & Stable", Exaggeration: 0.1, CFGWeight: 0.8, Temperature: 0.5},
	"Creative & Varied":     {Name: "Creative & Varied", Exaggeration: 0.7, CFGWeight: 0.4, Temperature: 1.2},
}

// All returns the preset table sorted by name for stable API output.
func All() []Preset {
	out := make([]Preset, 0, len(table))
	for _, p := range table {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Apply overwrites the slider values in params with the named preset. The
// Custom preset and an empty name return params unchanged, matching the
// original UI behavior where manual sliders only apply under Custom.
func Apply(name string, params core.SpeechParams) (core.SpeechParams, error) {
	if name == "" || name == PresetCustom {
		return params, nil
	}

	preset, ok := table[name]
	if !ok {
		return params, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	params.Exaggeration = preset.Exaggeration
	params.CFGWeight = preset.CFGWeight
	params.Temperature = preset.Temperature

	return params, nil
}

// Defaults returns the slider defaults used before any preset is applied.
func Defaults() core.SpeechParams {
	return core.SpeechParams{
		Exaggeration: DefaultExaggeration,
		CFGWeight:    DefaultCFGWeight,
		Temperature:  DefaultTemperature,
		Seed:         0,
	}
}

// Validate checks that the parameters fall inside the documented ranges.
func Validate(params core.SpeechParams) error {
	if params.Exaggeration < MinExaggeration || params.Exaggeration > MaxExaggeration {
		return fmt.Errorf("%w: got %g", ErrExaggerationRange, params.Exaggeration)
	}

	if params.CFGWeight < MinCFGWeight || params.CFGWeight > MaxCFGWeight {
		return fmt.Errorf("%w: got %g", ErrCFGWeightRange, params.CFGWeight)
	}

	if params.Temperature < MinTemperature || params.Temperature > MaxTemperature {
		return fmt.Errorf("%w: got %g", ErrTemperatureRange, params.Temperature)
	}

	if params.Seed < 0 {
		return fmt.Errorf("%w: got %d", ErrSeedNegative, params.Seed)
	}

	return nil
}

// ResolveSeed replaces a zero seed with a random one in [1, 1000000] so the
// seed actually used can be reported back for reproducibility.
func ResolveSeed(seed int) int {
	if seed != 0 {
		return seed
	}

	return rand.IntN(maxRandomSeed) + 1
}
