package emu

import "github.com/sarchlab/rv64sim/insts"

// BranchUnit resolves conditional branches and jumps.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Branch conditions by funct3.
const (
	condEq  = 0b000
	condNe  = 0b001
	condLt  = 0b100
	condGe  = 0b101
	condLtu = 0b110
	condGeu = 0b111
)

// CheckCondition evaluates the comparison of a BRANCH instruction.
func (b *BranchUnit) CheckCondition(inst *insts.Instruction) (bool, error) {
	x := b.regFile.ReadReg(inst.Rs1)
	y := b.regFile.ReadReg(inst.Rs2)

	switch inst.Funct3 {
	case condEq:
		return x == y, nil
	case condNe:
		return x != y, nil
	case condLt:
		return int64(x) < int64(y), nil
	case condGe:
		return int64(x) >= int64(y), nil
	case condLtu:
		return x < y, nil
	case condGeu:
		return x >= y, nil
	default:
		return false, ErrUnimplementedOpcode
	}
}

// Branch returns the next PC of a BRANCH instruction at pc.
func (b *BranchUnit) Branch(inst *insts.Instruction, pc uint64) (uint64, error) {
	taken, err := b.CheckCondition(inst)
	if err != nil {
		return 0, err
	}
	if taken {
		return pc + uint64(inst.Imm), nil
	}
	return pc + inst.Length, nil
}

// Jal returns the link value and target of a JAL instruction at pc.
func (b *BranchUnit) Jal(inst *insts.Instruction, pc uint64) (link, target uint64) {
	return pc + inst.Length, pc + uint64(inst.Imm)
}

// Jalr returns the link value and target of a JALR instruction at pc.
// The target is computed from rs1 before rd is written, so rd == rs1 is
// safe.
func (b *BranchUnit) Jalr(inst *insts.Instruction, pc uint64) (link, target uint64, err error) {
	if inst.Funct3 != 0 {
		return 0, 0, ErrUnimplementedOpcode
	}
	target = (b.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm)) &^ 1
	return pc + inst.Length, target, nil
}
