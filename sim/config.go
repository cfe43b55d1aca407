package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("sim: invalid config")

// Simulation defaults
const (
	DefaultWidth             = 800.0
	DefaultHeight            = 600.0
	DefaultParticles         = 600
	DefaultInteractionRadius = 60.0
	DefaultG                 = 40.0
	DefaultSoftening         = 4.0
	DefaultDT                = 0.05
	DefaultTheta             = 0.6
	DefaultTrailLength       = 12
)

// Config holds every tunable parameter of a run. It doubles as the preset
// file format.
type Config struct {
	Width             float64 `json:"width"`
	Height            float64 `json:"height"`
	InitialParticles  int     `json:"initialParticles"`
	InteractionRadius float64 `json:"interactionRadius"` // also the grid cell size

	G           float64 `json:"g"`
	Softening   float64 `json:"softening"`
	DT          float64 `json:"dt"`
	Damping     float64 `json:"damping"`
	Restitution float64 `json:"restitution"`

	MinMass      float64 `json:"minMass"`
	MaxMass      float64 `json:"maxMass"`
	RadiusScale  float64 `json:"radiusScale"`
	InitialSpeed float64 `json:"initialSpeed"`
	NoiseScale   float64 `json:"noiseScale"`

	Toroidal    bool    `json:"toroidal"`
	Merge       bool    `json:"merge"`
	BarnesHut   bool    `json:"barnesHut"`
	Theta       float64 `json:"theta"`
	Trails      bool    `json:"trails"`
	TrailLength int     `json:"trailLength"`

	Seed int64 `json:"seed"` // 0 picks a time-based seed
}

// DefaultConfig returns the parameters the lab starts with
func DefaultConfig() Config {
	return Config{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		InitialParticles:  DefaultParticles,
		InteractionRadius: DefaultInteractionRadius,
		G:                 DefaultG,
		Softening:         DefaultSoftening,
		DT:                DefaultDT,
		Damping:           0.01,
		Restitution:       0.8,
		MinMass:           1,
		MaxMass:           6,
		RadiusScale:       1.2,
		InitialSpeed:      2,
		NoiseScale:        0.006,
		Toroidal:          true,
		Merge:             true,
		Theta:             DefaultTheta,
		TrailLength:       DefaultTrailLength,
	}
}

// Validate checks parameter sanity. Particle-level values (positions,
// velocities) are not checked here.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"width", c.Width},
		{"height", c.Height},
		{"interactionRadius", c.InteractionRadius},
		{"dt", c.DT},
		{"minMass", c.MinMass},
		{"maxMass", c.MaxMass},
		{"radiusScale", c.RadiusScale},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"g", c.G},
		{"softening", c.Softening},
		{"damping", c.Damping},
		{"initialSpeed", c.InitialSpeed},
		{"noiseScale", c.NoiseScale},
		{"theta", c.Theta},
	}
	for _, f := range nonNegative {
		if !(f.v >= 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	switch {
	case c.MinMass > c.MaxMass:
		return fmt.Errorf("%w: minMass %v exceeds maxMass %v", ErrInvalidConfig, c.MinMass, c.MaxMass)
	case c.Restitution < 0 || c.Restitution > 1:
		return fmt.Errorf("%w: restitution must be in [0,1], got %v", ErrInvalidConfig, c.Restitution)
	case c.Damping*c.DT >= 1:
		return fmt.Errorf("%w: damping*dt must stay below 1", ErrInvalidConfig)
	case c.InitialParticles < 0:
		return fmt.Errorf("%w: initialParticles must be non-negative", ErrInvalidConfig)
	case c.TrailLength < 0:
		return fmt.Errorf("%w: trailLength must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a preset. Fields missing from the file keep their
// default values.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("load preset: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse preset %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("preset %s: %w", filename, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON
func SaveConfig(filename string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("save preset: %w", err)
	}
	return nil
}
