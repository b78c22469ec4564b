package talemate

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/presets.yaml
var presetsYAML []byte

// Tuning presets are defaults, not policy: they only fill parameters the
// orchestrator left unset, and the remote API remains the source of truth
// for what a parameter may be. The embedded table can be replaced at startup
// via LoadPresetsFromFile or adjusted programmatically via RegisterPreset.

// KindPreset holds the default sampling parameters for one generation kind.
// Nil fields contribute nothing during tuning.
type KindPreset struct {
	Temperature       *float64 `yaml:"temperature"`
	TopP              *float64 `yaml:"top_p"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
	MaxTokens         *int     `yaml:"max_tokens"`
}

type presetTable struct {
	Version string                        `yaml:"version"`
	Kinds   map[GenerationKind]KindPreset `yaml:"kinds"`
	Default KindPreset                    `yaml:"default"`
}

var (
	presets     presetTable
	presetsOnce sync.Once
	presetsMu   sync.RWMutex
)

func loadEmbeddedPresets() {
	presetsOnce.Do(func() {
		if err := yaml.Unmarshal(presetsYAML, &presets); err != nil {
			// The embedded table ships with the library; failing to parse it
			// is a build defect, not a runtime condition.
			panic(fmt.Sprintf("talemate: embedded presets are invalid: %v", err))
		}
	})
}

// PresetFor returns the tuning preset for a generation kind, falling back to
// the default preset for kinds without a dedicated entry.
func PresetFor(kind GenerationKind) KindPreset {
	loadEmbeddedPresets()

	presetsMu.RLock()
	defer presetsMu.RUnlock()

	if p, ok := presets.Kinds[kind]; ok {
		return p
	}
	return presets.Default
}

// RegisterPreset installs or replaces the preset for a generation kind.
func RegisterPreset(kind GenerationKind, preset KindPreset) {
	loadEmbeddedPresets()

	presetsMu.Lock()
	defer presetsMu.Unlock()

	if presets.Kinds == nil {
		presets.Kinds = make(map[GenerationKind]KindPreset)
	}
	presets.Kinds[kind] = preset
}

// LoadPresetsFromFile replaces the preset table with one read from a YAML
// file. Intended for deployments that want different sampling defaults
// without rebuilding.
func LoadPresetsFromFile(path string) error {
	loadEmbeddedPresets()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read presets file: %w", err)
	}

	var table presetTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("failed to parse presets file: %w", err)
	}

	presetsMu.Lock()
	defer presetsMu.Unlock()
	presets = table
	return nil
}
