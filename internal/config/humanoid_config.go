// File: internal/config/humanoid_config.go
// HumanoidConfig tunes the pointer motion model used when the orchestrator
// acts on a located element. The values describe a "persona": how fast the
// hand travels (Fitts's law), how much it trembles, and how long the button
// is held down.
package config

import "github.com/spf13/viper"

// HumanoidConfig holds the tunable parameters of the pointer motion model.
type HumanoidConfig struct {
	// Enabled switches between simulated travel and an instant jump to the target.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Fitts's law: MT = A + B * log2(1 + D/W), in milliseconds.
	FittsA float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b" yaml:"fitts_b"`

	// GaussianStrength is the per-step jitter standard deviation in pixels.
	GaussianStrength float64 `mapstructure:"gaussian_strength" yaml:"gaussian_strength"`
	// TremorAmplitude scales the correlated (pink) noise drift in pixels.
	TremorAmplitude float64 `mapstructure:"tremor_amplitude" yaml:"tremor_amplitude"`

	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("humanoid.enabled", true)
	v.SetDefault("humanoid.fitts_a", 100.0)
	v.SetDefault("humanoid.fitts_b", 120.0)
	v.SetDefault("humanoid.gaussian_strength", 0.5)
	v.SetDefault("humanoid.tremor_amplitude", 1.5)
	v.SetDefault("humanoid.click_hold_min_ms", 50)
	v.SetDefault("humanoid.click_hold_max_ms", 120)
}
