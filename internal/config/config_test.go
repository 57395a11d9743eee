package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/hostcpu"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Processor.Engine != engine.KindScalar {
		t.Errorf("expected scalar engine, got '%s'", config.Processor.Engine)
	}
	if config.Processor.MaxWeight == nil || *config.Processor.MaxWeight != 1 {
		t.Errorf("expected max_weight 1, got %v", config.Processor.MaxWeight)
	}
	if config.Processor.LeakMode != engine.LeakNone {
		t.Errorf("expected leak_mode none, got '%s'", config.Processor.LeakMode)
	}

	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Recorder.Enabled {
		t.Error("expected Recorder.Enabled to be false by default")
	}
	if config.Recorder.Dir != DefaultDir {
		t.Errorf("expected Recorder.Dir %q, got %q", DefaultDir, config.Recorder.Dir)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
processor:
  engine: vectorized
  min_weight: -7
  max_weight: 7
  min_threshold: 0
  max_threshold: 7
  min_potential: -7
  max_delay: 5
  discrete: true
  tracked_timesteps: 8
  leak_mode: all

logging:
  level: debug

recorder:
  enabled: true
  dir: /tmp/runs
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	p := config.Processor
	if p.Engine != engine.KindVectorized {
		t.Errorf("expected engine vectorized, got '%s'", p.Engine)
	}
	if p.TrackedTimesteps != 8 || p.MaxDelay != 5 {
		t.Errorf("expected tracked_timesteps 8 / max_delay 5, got %d / %d", p.TrackedTimesteps, p.MaxDelay)
	}
	if p.LeakMode != engine.LeakAll {
		t.Errorf("expected leak_mode all, got '%s'", p.LeakMode)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if !config.Recorder.Enabled || config.Recorder.Dir != "/tmp/runs" {
		t.Errorf("unexpected recorder config %+v", config.Recorder)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestLoadFromFile_ProcessorSectionReplacesDefaults(t *testing.T) {
	path := writeConfig(t, `
processor:
  weights: [0.1, 0.5, 0.9]
  inputs_from_weights: true
  min_threshold: 0
  max_threshold: 1
  min_potential: 0
  max_delay: 3
  discrete: false
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Processor.MinWeight != nil || config.Processor.MaxWeight != nil {
		t.Error("default min/max weight leaked into a file processor section")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestLoadFromFile_KeepsDefaultProcessor(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: trace
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
	if config.Processor.MaxWeight == nil {
		t.Error("default processor params were dropped")
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_RISP_HOME", "/data/risp")
	path := writeConfig(t, `
recorder:
  dir: ${TEST_RISP_HOME}/runs
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Recorder.Dir != "/data/risp/runs" {
		t.Errorf("expected Recorder.Dir '/data/risp/runs', got '%s'", config.Recorder.Dir)
	}
}

func TestLoadFromFile_LegacyParam(t *testing.T) {
	path := writeConfig(t, `
processor:
  min_weight: -1
  max_weight: 1
  min_threshold: 0
  max_threshold: 1
  min_potential: 0
  max_delay: 3
  discrete: false
  non_negative_charge: true
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if err := config.Validate(); !errors.Is(err, engine.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RISP_ENGINE", "vectorized")
	t.Setenv("RISP_LOG_LEVEL", "debug")
	t.Setenv("RISP_NOISY_SEED", "1234")
	t.Setenv("RISP_TRACKED_TIMESTEPS", "16")
	t.Setenv("RISP_LANES", "32")
	t.Setenv("RISP_RECORDER_DIR", "/var/lib/risp")

	config := Default()
	applyEnvOverrides(config)

	if config.Processor.Engine != engine.KindVectorized {
		t.Errorf("expected engine vectorized, got '%s'", config.Processor.Engine)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if config.Processor.NoisySeed != 1234 {
		t.Errorf("expected NoisySeed 1234, got %d", config.Processor.NoisySeed)
	}
	if config.Processor.TrackedTimesteps != 16 {
		t.Errorf("expected TrackedTimesteps 16, got %d", config.Processor.TrackedTimesteps)
	}
	if config.Processor.Lanes != 32 || config.AutoLanes {
		t.Errorf("expected Lanes 32 without auto, got %d / %v", config.Processor.Lanes, config.AutoLanes)
	}
	if !config.Recorder.Enabled || config.Recorder.Dir != "/var/lib/risp" {
		t.Errorf("unexpected recorder config %+v", config.Recorder)
	}
}

func TestEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv("RISP_NOISY_SEED", "-3")
	t.Setenv("RISP_TRACKED_TIMESTEPS", "many")

	config := Default()
	applyEnvOverrides(config)

	if config.Processor.NoisySeed != 0 || config.Processor.TrackedTimesteps != 0 {
		t.Errorf("invalid values applied: seed %d, tracked %d", config.Processor.NoisySeed, config.Processor.TrackedTimesteps)
	}
}

func TestProcessorParams_AutoLanes(t *testing.T) {
	t.Setenv("RISP_LANES", "auto")

	config := Default()
	applyEnvOverrides(config)
	if !config.AutoLanes {
		t.Fatal("expected AutoLanes after RISP_LANES=auto")
	}

	if got := config.ProcessorParams().Lanes; got != 0 {
		t.Errorf("scalar engine should not get lanes, got %d", got)
	}

	config.Processor.Engine = engine.KindVectorized
	if got, want := config.ProcessorParams().Lanes, hostcpu.LaneWidth(); got != want {
		t.Errorf("expected host lane width %d, got %d", want, got)
	}
}

func TestLoadPath(t *testing.T) {
	t.Setenv("RISP_LOG_LEVEL", "trace")
	path := writeConfig(t, `
logging:
  level: debug
`)

	config, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("environment should override the file, got '%s'", config.Logging.Level)
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidProcessor(t *testing.T) {
	config := Default()
	config.Processor.MinPotential = 1
	if err := config.Validate(); !errors.Is(err, engine.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidate_RecorderWithoutDir(t *testing.T) {
	config := Default()
	config.Recorder.Enabled = true
	config.Recorder.Dir = ""
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for recorder without dir")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	config := Default()
	config.Logging.Level = "verbose"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
processor:
  engine: [invalid yaml
`)

	_, err := LoadFromFile(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
