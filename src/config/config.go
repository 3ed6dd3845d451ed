package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"toruslife/src/universe"
)

//ErrInvalidConfig is the cause of every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

//Seed modes
const (
	SeedTemplate = "template"
	SeedRandom   = "random"
	SeedNoise    = "noise"
	SeedNone     = "none"
)

//Config holds the host configuration
type Config struct {
	Width     uint32           `yaml:"width"`
	Height    uint32           `yaml:"height"`
	Interval  time.Duration    `yaml:"interval"`  //pause between generations while running
	MaxSteps  int              `yaml:"max_steps"` //0 = unlimited
	Seed      SeedConfig       `yaml:"seed"`
	Templates []TemplateConfig `yaml:"templates"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

//SeedConfig selects how the universe is populated on start
type SeedConfig struct {
	Mode      string  `yaml:"mode"`
	Template  string  `yaml:"template"`
	Density   float64 `yaml:"density"`    //random mode: probability of a live cell
	Threshold float64 `yaml:"threshold"`  //noise mode: noise level above which a cell lives
	NoiseSeed int64   `yaml:"noise_seed"` //noise and random modes
}

//TemplateConfig is a user defined seeding template
type TemplateConfig struct {
	Name  string      `yaml:"name"`
	Descr string      `yaml:"descr"`
	Cells [][2]uint32 `yaml:"cells"` //row, col pairs
}

//TelemetryConfig holds telemetry output settings
type TelemetryConfig struct {
	CSV string `yaml:"csv"` //per-generation CSV file, empty disables it
	Log string `yaml:"log"` //log file, empty keeps stderr (discarded in interactive mode)
}

//Default returns the default configuration
func Default() *Config {
	return &Config{
		Width:    universe.DefWidth,
		Height:   universe.DefHeight,
		Interval: 100 * time.Millisecond,
		MaxSteps: 1000,
		Seed: SeedConfig{
			Mode:      SeedTemplate,
			Template:  universe.GliderGunTemplate,
			Density:   0.2,
			Threshold: 0.1,
			NoiseSeed: 1,
		},
	}
}

//Load reads the YAML file at path over the defaults, the caller validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

//Validate checks the values which the host cannot work with
func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return errors.Wrapf(ErrInvalidConfig, "dimension %dx%d must be at least 1x1", c.Width, c.Height)
	}
	if c.Interval < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative interval %v", c.Interval)
	}
	if c.MaxSteps < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative max_steps %d", c.MaxSteps)
	}
	switch c.Seed.Mode {
	case SeedTemplate, SeedNoise, SeedNone:
	case SeedRandom:
		if c.Seed.Density < 0 || c.Seed.Density > 1 {
			return errors.Wrapf(ErrInvalidConfig, "density %v outside [0, 1]", c.Seed.Density)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown seed mode %q", c.Seed.Mode)
	}
	for i, t := range c.Templates {
		if t.Name == "" {
			return errors.Wrapf(ErrInvalidConfig, "template #%d has no name", i)
		}
	}
	return nil
}

//UniverseTemplates converts the configured templates
func (c *Config) UniverseTemplates() []universe.Template {
	templates := make([]universe.Template, 0, len(c.Templates))
	for _, t := range c.Templates {
		coords := make([]universe.Coord, 0, len(t.Cells))
		for _, cell := range t.Cells {
			coords = append(coords, universe.Coord{Row: cell[0], Col: cell[1]})
		}
		templates = append(templates, universe.Template{Name: t.Name, Descr: t.Descr, Coordinates: coords})
	}
	return templates
}
