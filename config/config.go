// Package config holds the process configuration of the boids simulation, loaded from an optional
// YAML file and overridden by command line flags.
package config

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBoids is the population size used when none is configured.
const DefaultBoids = 100

// Config is the full configuration of one simulation run.
type Config struct {
	Simulation struct {
		Boids uint32 `yaml:"boids"`
		Seed  uint64 `yaml:"seed"`
		Spawn string `yaml:"spawn"`

		// Disk spawn annulus and initial speed bounds, in clip space units.
		InnerRadius float32 `yaml:"inner_radius"`
		OuterRadius float32 `yaml:"outer_radius"`
		MinSpeed    float32 `yaml:"min_speed"`
		MaxSpeed    float32 `yaml:"max_speed"`
	} `yaml:"simulation"`

	Window struct {
		Title  string `yaml:"title"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
	} `yaml:"window"`

	Renderer struct {
		VSync         bool    `yaml:"vsync"`
		Software      bool    `yaml:"software"`
		ComputeShader string  `yaml:"compute_shader"`
		FrameLimit    float64 `yaml:"frame_limit"`
	} `yaml:"renderer"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - *Config: a new configuration holding the defaults
func Default() *Config {
	c := &Config{}
	c.Simulation.Boids = DefaultBoids
	c.Simulation.Spawn = boid.SpawnPolicyDisk.String()
	c.Simulation.InnerRadius = boid.DefaultInnerRadius
	c.Simulation.OuterRadius = boid.DefaultOuterRadius
	c.Simulation.MinSpeed = boid.DefaultMinSpeed
	c.Simulation.MaxSpeed = boid.DefaultMaxSpeed
	c.Window.Title = "Boids"
	c.Window.Width = 1280
	c.Window.Height = 720
	c.Renderer.VSync = true
	c.Log.Level = "info"
	return c
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their default value,
// empty strings fall back to the default. An explicit population of 0 is kept.
// An empty path returns the defaults.
//
// Parameters:
//   - path: the YAML file to read
//
// Returns:
//   - *Config: the loaded configuration
//   - error: an error if the file cannot be read or parsed
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	c.Simulation.Spawn = common.Coalesce(c.Simulation.Spawn, boid.SpawnPolicyDisk.String())
	c.Window.Title = common.Coalesce(c.Window.Title, "Boids")
	c.Log.Level = common.Coalesce(c.Log.Level, "info")
	return c, nil
}

// SpawnPolicy parses the configured spawn policy.
//
// Returns:
//   - boid.SpawnPolicy: the parsed policy
//   - error: an error if the name is not a known policy
func (c *Config) SpawnPolicy() (boid.SpawnPolicy, error) {
	return boid.ParseSpawnPolicy(c.Simulation.Spawn)
}

// GeneratorOptions maps the simulation section onto population generator options.
// A zero seed leaves the generator to pick a random one.
//
// Returns:
//   - []boid.GeneratorBuilderOption: the generator options
//   - error: an error if the spawn policy is unknown
func (c *Config) GeneratorOptions() ([]boid.GeneratorBuilderOption, error) {
	policy, err := c.SpawnPolicy()
	if err != nil {
		return nil, err
	}
	opts := []boid.GeneratorBuilderOption{
		boid.WithSpawnPolicy(policy),
		boid.WithDiskRadii(c.Simulation.InnerRadius, c.Simulation.OuterRadius),
		boid.WithSpeedRange(c.Simulation.MinSpeed, c.Simulation.MaxSpeed),
	}
	if c.Simulation.Seed != 0 {
		opts = append(opts, boid.WithSeed(c.Simulation.Seed))
	}
	return opts, nil
}

// Validate reports the first invalid setting.
//
// Returns:
//   - error: nil if the configuration can be used to start a run
func (c *Config) Validate() error {
	if _, err := c.SpawnPolicy(); err != nil {
		return err
	}
	s := c.Simulation
	if s.InnerRadius < 0 || s.OuterRadius <= 0 || s.InnerRadius > s.OuterRadius {
		return fmt.Errorf("spawn radii must satisfy 0 <= inner <= outer and outer > 0, got %v and %v", s.InnerRadius, s.OuterRadius)
	}
	if s.MinSpeed <= 0 || s.MinSpeed > s.MaxSpeed {
		return fmt.Errorf("speed range must satisfy 0 < min <= max, got %v and %v", s.MinSpeed, s.MaxSpeed)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FrameLimit < 0 {
		return fmt.Errorf("frame limit must not be negative, got %v", c.Renderer.FrameLimit)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
