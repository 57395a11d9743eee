// Package config provides unified configuration loading for risp.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/hostcpu"
	"github.com/nvandessel/risp/internal/logging"
	"github.com/nvandessel/risp/internal/processor"
)

// DefaultDir is where traces and recordings go unless configured otherwise.
const DefaultDir = ".risp"

// Config contains all risp configuration settings.
type Config struct {
	// Processor holds the processor parameters. A processor section in a
	// file replaces the defaults as a whole.
	Processor processor.Params `json:"processor" yaml:"processor"`

	// AutoLanes sizes the vectorized engine's lanes from the host CPU.
	AutoLanes bool `json:"auto_lanes" yaml:"auto_lanes"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Recorder contains settings for the run database.
	Recorder RecorderConfig `json:"recorder" yaml:"recorder"`
}

// LoggingConfig configures risp's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the JSONL simulation trace in Dir.
	Level string `json:"level" yaml:"level"`

	// Dir is the directory the trace file is written to.
	Dir string `json:"dir" yaml:"dir"`
}

// RecorderConfig configures the SQLite run recorder.
type RecorderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir holds runs.db. Supports ${VAR} expansion.
	Dir string `json:"dir" yaml:"dir"`
}

// Default returns a Config with sensible defaults: a continuous scalar
// processor with weights and thresholds in [-1,1].
func Default() *Config {
	return &Config{
		Processor: defaultParams(),
		Logging: LoggingConfig{
			Level: "info",
			Dir:   DefaultDir,
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Dir:     DefaultDir,
		},
	}
}

func defaultParams() processor.Params {
	return processor.Params{
		Engine:       engine.KindScalar,
		MinWeight:    processor.Float(-1),
		MaxWeight:    processor.Float(1),
		MinThreshold: -1,
		MaxThreshold: 1,
		MinPotential: -1,
		MaxDelay:     5,
		LeakMode:     engine.LeakNone,
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.risp/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, DefaultDir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads path when it is non-empty and falls back to Load otherwise.
// Environment overrides are applied in both cases.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	config := Default()

	var sections map[string]yaml.Node
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if _, ok := sections["processor"]; ok {
		config.Processor = processor.Params{}
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Logging.Dir = expandEnvVars(config.Logging.Dir)
	config.Recorder.Dir = expandEnvVars(config.Recorder.Dir)

	return config, nil
}

// ProcessorParams returns the processor parameters with host-derived values
// filled in.
func (c *Config) ProcessorParams() processor.Params {
	p := c.Processor
	if c.AutoLanes && p.Engine == engine.KindVectorized {
		p.Lanes = hostcpu.LaneWidth()
	}
	return p
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Recorder.Enabled && c.Recorder.Dir == "" {
		return fmt.Errorf("recorder.dir is required when the recorder is enabled")
	}

	if _, err := processor.New(c.ProcessorParams()); err != nil {
		return fmt.Errorf("processor: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numbers are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RISP_ENGINE"); v != "" {
		config.Processor.Engine = engine.Kind(v)
	}

	if v := os.Getenv("RISP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("RISP_NOISY_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.Processor.NoisySeed = uint32(n)
		}
	}

	if v := os.Getenv("RISP_TRACKED_TIMESTEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Processor.TrackedTimesteps = n
		}
	}

	if v := os.Getenv("RISP_LANES"); v != "" {
		if v == "auto" {
			config.AutoLanes = true
		} else if n, err := strconv.Atoi(v); err == nil {
			config.AutoLanes = false
			config.Processor.Lanes = n
		}
	}

	if v := os.Getenv("RISP_RECORDER_DIR"); v != "" {
		config.Recorder.Enabled = true
		config.Recorder.Dir = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
