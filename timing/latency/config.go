package latency

import "fmt"

// TimingConfig holds latency values for different instruction classes.
// The defaults describe a simple in-order scalar core. Data cache
// latencies belong to cache.Config.
type TimingConfig struct {
	// ALULatency is the execution latency of integer ALU operations
	// (OP, OP-IMM, their 32-bit forms, LUI and AUIPC). Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// BranchLatency is the base execution latency of branches and jumps.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// BranchTakenPenalty is the additional cycles lost when control leaves
	// the sequential path. The front end always fetches PC+len, so every
	// taken branch and every jump pays it. Default: 2 cycles.
	BranchTakenPenalty uint64 `json:"branch_taken_penalty" yaml:"branch_taken_penalty"`

	// LoadLatency is the latency of a load when no data cache is modeled.
	// Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the latency of a store. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// FaultPenalty is the cost of redirecting to the fault vector.
	// Default: 10 cycles.
	FaultPenalty uint64 `json:"fault_penalty" yaml:"fault_penalty"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:         1,
		BranchLatency:      1,
		BranchTakenPenalty: 2,
		LoadLatency:        3,
		StoreLatency:       1,
		FaultPenalty:       10,
	}
}

// Validate checks that all latency values are valid (> 0). Penalties may
// be zero.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
