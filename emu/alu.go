package emu

import "github.com/sarchlab/rv64sim/insts"

// ALU implements the RV64I integer arithmetic and logic operations. It
// reads operands from the register file and returns the result; the
// Emulator commits it.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// funct3 values shared by the OP and OP-IMM groups.
const (
	functAdd  = 0b000
	functSll  = 0b001
	functSlt  = 0b010
	functSltu = 0b011
	functXor  = 0b100
	functSr   = 0b101
	functOr   = 0b110
	functAnd  = 0b111
)

const (
	funct7Base = 0x00
	funct7Alt  = 0x20
)

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

// OpImm executes an OP-IMM instruction: addi, slti, sltiu, xori, ori,
// andi, slli, srli and srai. Shifts use a 6-bit shamt and take funct7's
// upper six bits as the shift kind.
func (a *ALU) OpImm(inst *insts.Instruction) (uint64, error) {
	src := a.regFile.ReadReg(inst.Rs1)
	imm := uint64(inst.Imm)
	shamt := uint(inst.Imm) & 0x3F
	kind := inst.Funct7 >> 1

	switch inst.Funct3 {
	case functAdd:
		return src + imm, nil
	case functSlt:
		return boolToReg(int64(src) < inst.Imm), nil
	case functSltu:
		return boolToReg(src < imm), nil
	case functXor:
		return src ^ imm, nil
	case functOr:
		return src | imm, nil
	case functAnd:
		return src & imm, nil
	case functSll:
		if kind != funct7Base>>1 {
			return 0, ErrUnimplementedOpcode
		}
		return src << shamt, nil
	case functSr:
		switch kind {
		case funct7Base >> 1:
			return src >> shamt, nil
		case funct7Alt >> 1:
			return uint64(int64(src) >> shamt), nil
		}
	}
	return 0, ErrUnimplementedOpcode
}

// OpImm32 executes an OP-IMM-32 instruction: addiw, slliw, srliw and
// sraiw. Results are sign-extended from 32 bits.
func (a *ALU) OpImm32(inst *insts.Instruction) (uint64, error) {
	src := uint32(a.regFile.ReadReg(inst.Rs1))
	shamt := uint(inst.Imm) & 0x1F

	switch inst.Funct3 {
	case functAdd:
		return sext32(uint64(src + uint32(inst.Imm))), nil
	case functSll:
		if inst.Funct7 == funct7Base {
			return sext32(uint64(src << shamt)), nil
		}
	case functSr:
		switch inst.Funct7 {
		case funct7Base:
			return sext32(uint64(src >> shamt)), nil
		case funct7Alt:
			return sext32(uint64(uint32(int32(src) >> shamt))), nil
		}
	}
	return 0, ErrUnimplementedOpcode
}

// Op executes a register-register OP instruction.
func (a *ALU) Op(inst *insts.Instruction) (uint64, error) {
	x := a.regFile.ReadReg(inst.Rs1)
	y := a.regFile.ReadReg(inst.Rs2)
	shamt := y & 0x3F

	switch inst.Funct7 {
	case funct7Base:
		switch inst.Funct3 {
		case functAdd:
			return x + y, nil
		case functSll:
			return x << shamt, nil
		case functSlt:
			return boolToReg(int64(x) < int64(y)), nil
		case functSltu:
			return boolToReg(x < y), nil
		case functXor:
			return x ^ y, nil
		case functSr:
			return x >> shamt, nil
		case functOr:
			return x | y, nil
		case functAnd:
			return x & y, nil
		}
	case funct7Alt:
		switch inst.Funct3 {
		case functAdd:
			return x - y, nil
		case functSr:
			return uint64(int64(x) >> shamt), nil
		}
	}
	return 0, ErrUnimplementedOpcode
}

// Op32 executes an OP-32 instruction: addw, subw, sllw, srlw and sraw.
func (a *ALU) Op32(inst *insts.Instruction) (uint64, error) {
	x := uint32(a.regFile.ReadReg(inst.Rs1))
	y := uint32(a.regFile.ReadReg(inst.Rs2))
	shamt := y & 0x1F

	switch inst.Funct7 {
	case funct7Base:
		switch inst.Funct3 {
		case functAdd:
			return sext32(uint64(x + y)), nil
		case functSll:
			return sext32(uint64(x << shamt)), nil
		case functSr:
			return sext32(uint64(x >> shamt)), nil
		}
	case funct7Alt:
		switch inst.Funct3 {
		case functAdd:
			return sext32(uint64(x - y)), nil
		case functSr:
			return sext32(uint64(uint32(int32(x) >> shamt))), nil
		}
	}
	return 0, ErrUnimplementedOpcode
}

// Lui computes the LUI result: the in-place upper immediate, sign-extended.
func (a *ALU) Lui(inst *insts.Instruction) uint64 {
	return uint64(inst.Imm)
}

// AuiPC computes the AUIPC result for an instruction at pc.
func (a *ALU) AuiPC(inst *insts.Instruction, pc uint64) uint64 {
	return pc + uint64(inst.Imm)
}
