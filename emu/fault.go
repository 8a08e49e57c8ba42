package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv64sim/insts"
)

// Execution errors.
var (
	// ErrUnimplementedOpcode is raised for a recognized opcode, or a
	// funct combination, that the engine does not execute.
	ErrUnimplementedOpcode = errors.New("unimplemented opcode")

	// ErrUnknownOpcode is raised when the low 7 bits match no major
	// opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// Stage identifies where in the step a fault was raised.
type Stage uint8

// Step stages.
const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageDecode:
		return "decode"
	case StageExecute:
		return "execute"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// Fault records a failed step. When a step faults, no register is
// written and the PC moves to the fault vector.
type Fault struct {
	Stage Stage
	// PC is the address of the faulting instruction.
	PC uint64
	// Inst is the decoded instruction, nil for fetch and decode faults.
	Inst *insts.Instruction
	Err  error
}

func (f *Fault) Error() string {
	if f.Inst != nil {
		return fmt.Sprintf("%s fault at 0x%X (%s 0x%08X): %v",
			f.Stage, f.PC, f.Inst.Opcode, f.Inst.Raw, f.Err)
	}
	return fmt.Sprintf("%s fault at 0x%X: %v", f.Stage, f.PC, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
