// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all promptbeam configuration.
type Config struct {
	Run      Run      `yaml:"run"`
	Provider Provider `yaml:"provider"`
	Limits   Limits   `yaml:"limits"`
	Ranking  Ranking  `yaml:"ranking"`
	Output   Output   `yaml:"output"`
	Logging  Logging  `yaml:"logging"`
}

// Run holds the beam-search parameters.
type Run struct {
	BeamWidth   int     `yaml:"beam_width"`
	KeepTop     int     `yaml:"keep_top"`
	Iterations  int     `yaml:"iterations"`
	Alpha       float64 `yaml:"alpha"`
	Temperature float64 `yaml:"temperature"`
}

// Provider holds backend selection and image options.
type Provider struct {
	Name         string        `yaml:"name"`
	ImageModel   string        `yaml:"image_model"`
	ImageSize    string        `yaml:"image_size"`
	ImageQuality string        `yaml:"image_quality"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Limits holds per-class concurrency bounds.
type Limits struct {
	LLM      int `yaml:"llm"`
	ImageGen int `yaml:"image_gen"`
	Vision   int `yaml:"vision"`
}

// Ranking holds comparative-ranking settings.
type Ranking struct {
	EnsembleSize        int  `yaml:"ensemble_size"`
	GracefulDegradation bool `yaml:"graceful_degradation"`
}

// Output holds session-output settings.
type Output struct {
	BaseDir string `yaml:"base_dir"`
}

// Logging holds log output settings.
type Logging struct {
	Level  string `yaml:"level"`  // trace | debug | info | warn | error
	Format string `yaml:"format"` // "text" | "json"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Run: Run{
			BeamWidth:   4,
			KeepTop:     2,
			Iterations:  3,
			Alpha:       0.7,
			Temperature: 0.7,
		},
		Provider: Provider{
			Name:    "mock",
			Timeout: 5 * time.Minute,
		},
		Limits: Limits{
			LLM:      8,
			ImageGen: 4,
			Vision:   6,
		},
		Ranking: Ranking{
			EnsembleSize:        1,
			GracefulDegradation: true,
		},
		Output: Output{
			BaseDir: ".promptbeam/sessions",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable. Beam-parameter coherence
// (keep_top dividing beam_width, alpha range) is enforced again at run
// construction; this catches it early with a config-shaped error.
func (c *Config) Validate() error {
	if c.Run.BeamWidth < 1 {
		return fmt.Errorf("config: run.beam_width must be >= 1, got %d", c.Run.BeamWidth)
	}
	if c.Run.KeepTop < 1 || c.Run.KeepTop > c.Run.BeamWidth {
		return fmt.Errorf("config: run.keep_top must be in [1, beam_width], got %d", c.Run.KeepTop)
	}
	if c.Run.BeamWidth%c.Run.KeepTop != 0 {
		return fmt.Errorf("config: run.beam_width must be a multiple of run.keep_top, got %d/%d", c.Run.BeamWidth, c.Run.KeepTop)
	}
	if c.Run.Iterations < 1 {
		return fmt.Errorf("config: run.iterations must be >= 1, got %d", c.Run.Iterations)
	}
	if c.Run.Alpha < 0 || c.Run.Alpha > 1 {
		return fmt.Errorf("config: run.alpha must be in [0, 1], got %g", c.Run.Alpha)
	}
	if c.Provider.Name == "" {
		return errors.New("config: provider.name cannot be empty")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("config: provider.timeout must be positive, got %v", c.Provider.Timeout)
	}
	if c.Limits.LLM < 1 || c.Limits.ImageGen < 1 || c.Limits.Vision < 1 {
		return fmt.Errorf("config: limits must all be >= 1, got llm=%d image_gen=%d vision=%d",
			c.Limits.LLM, c.Limits.ImageGen, c.Limits.Vision)
	}
	if c.Ranking.EnsembleSize < 1 {
		return fmt.Errorf("config: ranking.ensemble_size must be >= 1, got %d", c.Ranking.EnsembleSize)
	}
	if c.Output.BaseDir == "" {
		return errors.New("config: output.base_dir cannot be empty")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("config: logging.level must be one of trace/debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("config: logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: PROMPTBEAM_PROVIDER, PROMPTBEAM_TIMEOUT,
// PROMPTBEAM_OUTPUT_DIR, PROMPTBEAM_LOG_LEVEL, PROMPTBEAM_LOG_FORMAT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PROMPTBEAM_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("PROMPTBEAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid PROMPTBEAM_TIMEOUT %q: %w", v, err)
		}
		c.Provider.Timeout = d
	}
	if v := os.Getenv("PROMPTBEAM_OUTPUT_DIR"); v != "" {
		c.Output.BaseDir = v
	}
	if v := os.Getenv("PROMPTBEAM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROMPTBEAM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Run      *rawRun      `yaml:"run"`
	Provider *rawProvider `yaml:"provider"`
	Limits   *rawLimits   `yaml:"limits"`
	Ranking  *rawRanking  `yaml:"ranking"`
	Output   *rawOutput   `yaml:"output"`
	Logging  *rawLogging  `yaml:"logging"`
}

type rawRun struct {
	BeamWidth   *int     `yaml:"beam_width"`
	KeepTop     *int     `yaml:"keep_top"`
	Iterations  *int     `yaml:"iterations"`
	Alpha       *float64 `yaml:"alpha"`
	Temperature *float64 `yaml:"temperature"`
}

type rawProvider struct {
	Name         *string        `yaml:"name"`
	ImageModel   *string        `yaml:"image_model"`
	ImageSize    *string        `yaml:"image_size"`
	ImageQuality *string        `yaml:"image_quality"`
	Timeout      *time.Duration `yaml:"timeout"`
}

type rawLimits struct {
	LLM      *int `yaml:"llm"`
	ImageGen *int `yaml:"image_gen"`
	Vision   *int `yaml:"vision"`
}

type rawRanking struct {
	EnsembleSize        *int  `yaml:"ensemble_size"`
	GracefulDegradation *bool `yaml:"graceful_degradation"`
}

type rawOutput struct {
	BaseDir *string `yaml:"base_dir"`
}

type rawLogging struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Run != nil {
		if layer.Run.BeamWidth != nil {
			c.Run.BeamWidth = *layer.Run.BeamWidth
		}
		if layer.Run.KeepTop != nil {
			c.Run.KeepTop = *layer.Run.KeepTop
		}
		if layer.Run.Iterations != nil {
			c.Run.Iterations = *layer.Run.Iterations
		}
		if layer.Run.Alpha != nil {
			c.Run.Alpha = *layer.Run.Alpha
		}
		if layer.Run.Temperature != nil {
			c.Run.Temperature = *layer.Run.Temperature
		}
	}
	if layer.Provider != nil {
		if layer.Provider.Name != nil {
			c.Provider.Name = *layer.Provider.Name
		}
		if layer.Provider.ImageModel != nil {
			c.Provider.ImageModel = *layer.Provider.ImageModel
		}
		if layer.Provider.ImageSize != nil {
			c.Provider.ImageSize = *layer.Provider.ImageSize
		}
		if layer.Provider.ImageQuality != nil {
			c.Provider.ImageQuality = *layer.Provider.ImageQuality
		}
		if layer.Provider.Timeout != nil {
			c.Provider.Timeout = *layer.Provider.Timeout
		}
	}
	if layer.Limits != nil {
		if layer.Limits.LLM != nil {
			c.Limits.LLM = *layer.Limits.LLM
		}
		if layer.Limits.ImageGen != nil {
			c.Limits.ImageGen = *layer.Limits.ImageGen
		}
		if layer.Limits.Vision != nil {
			c.Limits.Vision = *layer.Limits.Vision
		}
	}
	if layer.Ranking != nil {
		if layer.Ranking.EnsembleSize != nil {
			c.Ranking.EnsembleSize = *layer.Ranking.EnsembleSize
		}
		if layer.Ranking.GracefulDegradation != nil {
			c.Ranking.GracefulDegradation = *layer.Ranking.GracefulDegradation
		}
	}
	if layer.Output != nil {
		if layer.Output.BaseDir != nil {
			c.Output.BaseDir = *layer.Output.BaseDir
		}
	}
	if layer.Logging != nil {
		if layer.Logging.Level != nil {
			c.Logging.Level = *layer.Logging.Level
		}
		if layer.Logging.Format != nil {
			c.Logging.Format = *layer.Logging.Format
		}
	}
}
