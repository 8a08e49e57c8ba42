package insts

import "fmt"

// Opcode is the major opcode held in the low 7 bits of a canonical
// instruction. The set of values is closed: anything not listed below
// classifies as OpcodeUnknown.
type Opcode uint8

// RV64 major opcodes.
const (
	OpcodeUnknown Opcode = 0b0_00_000_00
	OpcodeLoad    Opcode = 0b0_00_000_11
	OpcodeStore   Opcode = 0b0_01_000_11
	OpcodeMadd    Opcode = 0b0_10_000_11
	OpcodeMsub    Opcode = 0b0_10_001_11
	OpcodeBranch  Opcode = 0b0_11_000_11
	OpcodeJal     Opcode = 0b0_11_011_11
	OpcodeJalr    Opcode = 0b0_11_001_11
	OpcodeAuiPC   Opcode = 0b0_00_101_11
	OpcodeLui     Opcode = 0b0_01_101_11
	OpcodeSystem  Opcode = 0b0_11_100_11
	OpcodeMiscMem Opcode = 0b0_00_011_11
	OpcodeOpImm32 Opcode = 0b0_00_110_11
	OpcodeOp32    Opcode = 0b0_01_110_11
	OpcodeOpImm   Opcode = 0b0_00_100_11
	OpcodeOp      Opcode = 0b0_01_100_11
	OpcodeOpFp    Opcode = 0b0_10_100_11
	OpcodeLoadFp  Opcode = 0b0_00_001_11
	OpcodeStoreFp Opcode = 0b0_01_001_11
	OpcodeAmo     Opcode = 0b0_01_011_11
	OpcodeNmadd   Opcode = 0b0_10_011_11
	OpcodeNmsub   Opcode = 0b0_10_010_11
)

var opcodeNames = map[Opcode]string{
	OpcodeUnknown: "UNKNOWN",
	OpcodeLoad:    "LOAD",
	OpcodeStore:   "STORE",
	OpcodeMadd:    "MADD",
	OpcodeMsub:    "MSUB",
	OpcodeBranch:  "BRANCH",
	OpcodeJal:     "JAL",
	OpcodeJalr:    "JALR",
	OpcodeAuiPC:   "AUIPC",
	OpcodeLui:     "LUI",
	OpcodeSystem:  "SYSTEM",
	OpcodeMiscMem: "MISC-MEM",
	OpcodeOpImm32: "OP-IMM-32",
	OpcodeOp32:    "OP-32",
	OpcodeOpImm:   "OP-IMM",
	OpcodeOp:      "OP",
	OpcodeOpFp:    "OP-FP",
	OpcodeLoadFp:  "LOAD-FP",
	OpcodeStoreFp: "STORE-FP",
	OpcodeAmo:     "AMO",
	OpcodeNmadd:   "NMADD",
	OpcodeNmsub:   "NMSUB",
}

// Classify returns the opcode of a canonical instruction.
func Classify(word uint32) Opcode {
	op := Opcode(word & 0x7F)
	if _, ok := opcodeNames[op]; !ok {
		return OpcodeUnknown
	}
	return op
}

// Known reports whether the opcode is part of the recognized set.
func (o Opcode) Known() bool {
	return o != OpcodeUnknown
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%#02x)", uint8(o))
}

// Format returns the encoding format used by instructions of this opcode.
func (o Opcode) Format() Format {
	switch o {
	case OpcodeOp, OpcodeOp32, OpcodeOpFp, OpcodeAmo:
		return FormatR
	case OpcodeLoad, OpcodeLoadFp, OpcodeOpImm, OpcodeOpImm32,
		OpcodeJalr, OpcodeSystem, OpcodeMiscMem:
		return FormatI
	case OpcodeStore, OpcodeStoreFp:
		return FormatS
	case OpcodeBranch:
		return FormatB
	case OpcodeLui, OpcodeAuiPC:
		return FormatU
	case OpcodeJal:
		return FormatJ
	case OpcodeMadd, OpcodeMsub, OpcodeNmadd, OpcodeNmsub:
		return FormatR4
	default:
		return FormatUnknown
	}
}
