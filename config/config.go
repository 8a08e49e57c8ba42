// Package config loads simulator settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/rv64sim/emu"
	"github.com/sarchlab/rv64sim/timing/cache"
	"github.com/sarchlab/rv64sim/timing/core"
	"github.com/sarchlab/rv64sim/timing/latency"
)

// Memory backends.
const (
	BackendFlat  = "flat"
	BackendPaged = "paged"
)

// ErrUnknownFormat is returned for a config file whose extension is not
// .yaml, .yml or .json.
var ErrUnknownFormat = errors.New("unknown config file format")

// MemoryConfig selects and sizes the memory.
type MemoryConfig struct {
	// Size is the capacity in bytes.
	Size uint64 `json:"size" yaml:"size"`
	// Backend is BackendFlat or BackendPaged.
	Backend string `json:"backend" yaml:"backend"`
}

// TimingSection configures the optional timing model.
type TimingSection struct {
	Enabled bool                 `json:"enabled" yaml:"enabled"`
	Latency latency.TimingConfig `json:"latency" yaml:"latency"`
	// DataCache enables the L1 data cache model.
	DataCache bool         `json:"data_cache" yaml:"data_cache"`
	Cache     cache.Config `json:"cache" yaml:"cache"`
	// BranchPredictor charges the branch penalty on mispredictions only.
	BranchPredictor bool                 `json:"branch_predictor" yaml:"branch_predictor"`
	Predictor       core.PredictorConfig `json:"predictor" yaml:"predictor"`
}

// Config holds every simulator setting.
type Config struct {
	Memory MemoryConfig `json:"memory" yaml:"memory"`

	// FaultVector is the PC a faulting step redirects to.
	FaultVector uint64 `json:"fault_vector" yaml:"fault_vector"`
	// MaxSteps bounds a run.
	MaxSteps uint64 `json:"max_steps" yaml:"max_steps"`
	// HaltOnFault stops a run at the first fault.
	HaltOnFault bool `json:"halt_on_fault" yaml:"halt_on_fault"`
	// Trace logs every step.
	Trace bool `json:"trace" yaml:"trace"`

	Timing TimingSection `json:"timing" yaml:"timing"`
}

// Default returns the default configuration: a 128 KiB flat memory, fault
// vector 0, one million steps and timing disabled.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			Size:    emu.DefaultMemorySize,
			Backend: BackendFlat,
		},
		FaultVector: emu.DefaultFaultVector,
		MaxSteps:    1_000_000,
		Timing: TimingSection{
			Latency:   *latency.DefaultTimingConfig(),
			Cache:     cache.DefaultL1DConfig(),
			Predictor: core.DefaultPredictorConfig(),
		},
	}
}

// Load reads a configuration file. The format follows the extension.
// Settings absent from the file keep their defaults. The result is
// validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Save writes the configuration to path in the format its extension
// names.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the memory settings and, when timing is enabled, the
// timing settings.
func (c *Config) Validate() error {
	if c.Memory.Size < emu.WordSize {
		return fmt.Errorf("memory.size must be at least %d bytes", emu.WordSize)
	}
	switch c.Memory.Backend {
	case BackendFlat, BackendPaged:
	default:
		return fmt.Errorf("memory.backend must be %q or %q, got %q",
			BackendFlat, BackendPaged, c.Memory.Backend)
	}
	if c.FaultVector&1 != 0 {
		return fmt.Errorf("fault_vector must be 2-byte aligned")
	}

	if !c.Timing.Enabled {
		return nil
	}
	if err := c.Timing.Latency.Validate(); err != nil {
		return fmt.Errorf("timing.latency: %w", err)
	}
	if c.Timing.DataCache {
		if err := c.Timing.Cache.Validate(); err != nil {
			return fmt.Errorf("timing.cache: %w", err)
		}
	}
	if c.Timing.BranchPredictor {
		if err := c.Timing.Predictor.Validate(); err != nil {
			return fmt.Errorf("timing.predictor: %w", err)
		}
	}
	return nil
}

// NewMemory builds the configured memory.
func (c *Config) NewMemory() emu.Memory {
	if c.Memory.Backend == BackendPaged {
		return emu.NewPagedMemory(c.Memory.Size)
	}
	return emu.NewFlatMemory(c.Memory.Size)
}

// EmulatorOptions returns the emulator options the configuration implies.
func (c *Config) EmulatorOptions() []emu.EmulatorOption {
	return []emu.EmulatorOption{
		emu.WithFaultVector(c.FaultVector),
		emu.WithHaltOnFault(c.HaltOnFault),
	}
}
