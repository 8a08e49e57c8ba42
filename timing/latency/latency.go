// Package latency provides instruction timing models for cycle-level
// accounting.
//
// Latencies are looked up by major opcode class and can be configured via
// TimingConfig.
package latency

import (
	"github.com/sarchlab/rv64sim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing
// configuration. The table keeps its own copy; later changes to config do
// not affect it.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config.Clone(),
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Opcodes the engine does not execute cost 1 cycle.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch {
	case t.IsALUOp(inst):
		return t.config.ALULatency
	case t.IsBranchOp(inst):
		return t.config.BranchLatency
	case t.IsLoadOp(inst):
		return t.config.LoadLatency
	case t.IsStoreOp(inst):
		return t.config.StoreLatency
	default:
		return 1
	}
}

// IsALUOp returns true if the instruction executes on the integer ALU.
func (t *Table) IsALUOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Opcode {
	case insts.OpcodeOp, insts.OpcodeOpImm, insts.OpcodeOp32, insts.OpcodeOpImm32,
		insts.OpcodeLui, insts.OpcodeAuiPC:
		return true
	default:
		return false
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Opcode == insts.OpcodeLoad
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Opcode == insts.OpcodeStore
}

// IsBranchOp returns true if the instruction is a branch or a jump.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Opcode {
	case insts.OpcodeBranch, insts.OpcodeJal, insts.OpcodeJalr:
		return true
	default:
		return false
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
