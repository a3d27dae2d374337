package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the gameplay constants of the tick loop. Values live in
// tuning.yaml so playtests can adjust pacing without a rebuild.
type Tuning struct {
	TickDurationMs     int    `yaml:"tick_duration_ms"`
	DecisionEveryTicks uint64 `yaml:"decision_every_ticks"`
	DetectEveryTicks   uint64 `yaml:"detect_every_ticks"`
	SpiritEveryTicks   uint64 `yaml:"spirit_every_ticks"`

	HungerPerTick float32 `yaml:"hunger_per_tick"`
	EnergyPerTick float32 `yaml:"energy_per_tick"`
	SocialPerTick float32 `yaml:"social_per_tick"`

	CropStageTicks uint64 `yaml:"crop_stage_ticks"`

	SpiritPeacePerTick  float32 `yaml:"spirit_peace_per_tick"`
	SpiritTetherPerTick float32 `yaml:"spirit_tether_per_tick"`

	EventQueueSize int `yaml:"event_queue_size"`
}

// Default returns the tuning used when no tuning.yaml is provided.
func Default() Tuning {
	return Tuning{
		TickDurationMs:     500,
		DecisionEveryTicks: 40,
		DetectEveryTicks:   20,
		SpiritEveryTicks:   10,

		HungerPerTick: 0.004,
		EnergyPerTick: 0.003,
		SocialPerTick: 0.002,

		CropStageTicks: 60,

		SpiritPeacePerTick:  0.005,
		SpiritTetherPerTick: 0.004,

		EventQueueSize: 256,
	}
}

// Load reads tuning from a YAML file. Fields missing from the file keep
// their defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
