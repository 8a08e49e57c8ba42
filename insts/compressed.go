package insts

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCompressed is returned when a 16-bit instruction falls
// outside the supported RV64C integer subset.
var ErrUnsupportedCompressed = errors.New("unsupported compressed instruction")

// compactRegBias maps the 3-bit register fields onto x8-x15.
const compactRegBias = 8

// IsCompressed reports whether the low 16 bits of word hold a compact
// instruction. Canonical instructions always have both low bits set.
func IsCompressed(word uint32) bool {
	return word&0x3 != 0x3
}

func cQuadrant(c uint16) uint8 { return uint8(c & 0x3) }
func cFunct3(c uint16) uint8   { return uint8((c >> 13) & 0x7) }
func cRegFull(c uint16, shift uint) uint8 {
	return uint8((c >> shift) & 0x1F)
}
func cRegBiased(c uint16, shift uint) uint8 {
	return uint8((c>>shift)&0x7) + compactRegBias
}

// bit returns bit n of c shifted to position at.
func bit(c uint16, n, at uint) uint32 {
	return uint32((c>>n)&0x1) << at
}

// CR holds the fields of the compact register format.
type CR struct {
	Funct4 uint8
	RdRs1  uint8
	Rs2    uint8
}

// DecodeCR extracts the CR-format fields.
func DecodeCR(c uint16) CR {
	return CR{
		Funct4: uint8((c >> 12) & 0xF),
		RdRs1:  cRegFull(c, 7),
		Rs2:    cRegFull(c, 2),
	}
}

// CI holds the fields of the compact immediate format. Imm is the 6-bit
// immediate imm[5|4:0] = c[12|6:2] sign-extended; UImm is the same six
// bits unsigned, for the forms that scramble them.
type CI struct {
	Funct3 uint8
	RdRs1  uint8
	Imm    int8
	UImm   uint8
}

// DecodeCI extracts the CI-format fields.
func DecodeCI(c uint16) CI {
	raw := uint8(bit(c, 12, 5) | uint32((c>>2)&0x1F))
	return CI{
		Funct3: cFunct3(c),
		RdRs1:  cRegFull(c, 7),
		Imm:    int8(raw<<2) >> 2,
		UImm:   raw,
	}
}

// CSS holds the fields of the compact stack-relative store format.
// UImm holds c[12:7] unscrambled.
type CSS struct {
	Funct3 uint8
	Rs2    uint8
	UImm   uint8
}

// DecodeCSS extracts the CSS-format fields.
func DecodeCSS(c uint16) CSS {
	return CSS{
		Funct3: cFunct3(c),
		Rs2:    cRegFull(c, 2),
		UImm:   uint8((c >> 7) & 0x3F),
	}
}

// CIW holds the fields of the compact wide-immediate format.
// UImm holds c[12:5] unscrambled.
type CIW struct {
	Funct3 uint8
	Rd     uint8
	UImm   uint8
}

// DecodeCIW extracts the CIW-format fields.
func DecodeCIW(c uint16) CIW {
	return CIW{
		Funct3: cFunct3(c),
		Rd:     cRegBiased(c, 2),
		UImm:   uint8((c >> 5) & 0xFF),
	}
}

// CL holds the fields of the compact load format. ImmHi is c[12:10] and
// ImmLo is c[6:5].
type CL struct {
	Funct3 uint8
	Rs1    uint8
	Rd     uint8
	ImmHi  uint8
	ImmLo  uint8
}

// DecodeCL extracts the CL-format fields.
func DecodeCL(c uint16) CL {
	return CL{
		Funct3: cFunct3(c),
		Rs1:    cRegBiased(c, 7),
		Rd:     cRegBiased(c, 2),
		ImmHi:  uint8((c >> 10) & 0x7),
		ImmLo:  uint8((c >> 5) & 0x3),
	}
}

// CS holds the fields of the compact store format. The register-register
// arithmetic forms share this layout, with ImmLo acting as funct2.
type CS struct {
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	ImmHi  uint8
	ImmLo  uint8
}

// DecodeCS extracts the CS-format fields.
func DecodeCS(c uint16) CS {
	return CS{
		Funct3: cFunct3(c),
		Rs1:    cRegBiased(c, 7),
		Rs2:    cRegBiased(c, 2),
		ImmHi:  uint8((c >> 10) & 0x7),
		ImmLo:  uint8((c >> 5) & 0x3),
	}
}

// CB holds the fields of the compact branch format. Offset is the branch
// offset imm[8|4:3|7:6|2:1|5] = c[12|11:10|6:5|4:3|2]. The shift and
// and-immediate forms reuse the layout with Funct2 = c[11:10] and
// Imm = c[12|6:2] sign-extended.
type CB struct {
	Funct3 uint8
	Funct2 uint8
	Rs1    uint8
	Offset int16
	Imm    int8
}

// DecodeCB extracts the CB-format fields.
func DecodeCB(c uint16) CB {
	off := bit(c, 12, 8) |
		bit(c, 11, 4) | bit(c, 10, 3) |
		bit(c, 6, 7) | bit(c, 5, 6) |
		bit(c, 4, 2) | bit(c, 3, 1) |
		bit(c, 2, 5)
	raw := uint8(bit(c, 12, 5) | uint32((c>>2)&0x1F))
	return CB{
		Funct3: cFunct3(c),
		Funct2: uint8((c >> 10) & 0x3),
		Rs1:    cRegBiased(c, 7),
		Offset: int16(signExtend(off, 9)),
		Imm:    int8(raw<<2) >> 2,
	}
}

// CJ holds the fields of the compact jump format. Offset is
// imm[11|4|9:8|10|6|7|3:1|5] = c[12|11|10:9|8|7|6|5:3|2].
type CJ struct {
	Funct3 uint8
	Offset int16
}

// DecodeCJ extracts the CJ-format fields.
func DecodeCJ(c uint16) CJ {
	off := bit(c, 12, 11) |
		bit(c, 11, 4) |
		bit(c, 10, 9) | bit(c, 9, 8) |
		bit(c, 8, 10) |
		bit(c, 7, 6) |
		bit(c, 6, 7) |
		bit(c, 5, 3) | bit(c, 4, 2) | bit(c, 3, 1) |
		bit(c, 2, 5)
	return CJ{
		Funct3: cFunct3(c),
		Offset: int16(signExtend(off, 12)),
	}
}

func unsupported(c uint16) error {
	return fmt.Errorf("%w: %#04x", ErrUnsupportedCompressed, c)
}

// Expand converts a 16-bit compressed instruction into the equivalent
// canonical 32-bit instruction.
func Expand(c uint16) (uint32, error) {
	switch cQuadrant(c) {
	case 0b00:
		return expandQ0(c)
	case 0b01:
		return expandQ1(c)
	case 0b10:
		return expandQ2(c)
	default:
		return 0, unsupported(c)
	}
}

func expandQ0(c uint16) (uint32, error) {
	switch cFunct3(c) {
	case 0b000: // C.ADDI4SPN: nzuimm[5:4|9:6|2|3] = c[12:5]
		ciw := DecodeCIW(c)
		u := uint32(ciw.UImm)
		imm := ((u>>6)&0x3)<<4 | ((u>>2)&0xF)<<6 | ((u>>1)&0x1)<<2 | (u&0x1)<<3
		if imm == 0 {
			return 0, unsupported(c)
		}
		return IType{Imm: int16(imm), Rs1: 2, Funct3: 0b000, Rd: ciw.Rd}.Encode(OpcodeOpImm), nil

	case 0b010: // C.LW
		cl := DecodeCL(c)
		return IType{Imm: clWordOffset(cl.ImmHi, cl.ImmLo), Rs1: cl.Rs1, Funct3: 0b010, Rd: cl.Rd}.
			Encode(OpcodeLoad), nil

	case 0b011: // C.LD
		cl := DecodeCL(c)
		return IType{Imm: clDoubleOffset(cl.ImmHi, cl.ImmLo), Rs1: cl.Rs1, Funct3: 0b011, Rd: cl.Rd}.
			Encode(OpcodeLoad), nil

	case 0b110: // C.SW
		cs := DecodeCS(c)
		return SType{Imm: clWordOffset(cs.ImmHi, cs.ImmLo), Rs2: cs.Rs2, Rs1: cs.Rs1, Funct3: 0b010}.
			Encode(OpcodeStore), nil

	case 0b111: // C.SD
		cs := DecodeCS(c)
		return SType{Imm: clDoubleOffset(cs.ImmHi, cs.ImmLo), Rs2: cs.Rs2, Rs1: cs.Rs1, Funct3: 0b011}.
			Encode(OpcodeStore), nil
	}

	// C.FLD, C.FSD and the reserved slot.
	return 0, unsupported(c)
}

// clWordOffset assembles uimm[5:3|2|6] from c[12:10|6|5].
func clWordOffset(hi, lo uint8) int16 {
	return int16(hi)<<3 | int16((lo>>1)&0x1)<<2 | int16(lo&0x1)<<6
}

// clDoubleOffset assembles uimm[5:3|7:6] from c[12:10|6:5].
func clDoubleOffset(hi, lo uint8) int16 {
	return int16(hi)<<3 | int16(lo)<<6
}

func expandQ1(c uint16) (uint32, error) {
	switch cFunct3(c) {
	case 0b000: // C.NOP, C.ADDI
		ci := DecodeCI(c)
		return IType{Imm: int16(ci.Imm), Rs1: ci.RdRs1, Funct3: 0b000, Rd: ci.RdRs1}.Encode(OpcodeOpImm), nil

	case 0b001: // C.ADDIW
		ci := DecodeCI(c)
		if ci.RdRs1 == 0 {
			return 0, unsupported(c)
		}
		return IType{Imm: int16(ci.Imm), Rs1: ci.RdRs1, Funct3: 0b000, Rd: ci.RdRs1}.Encode(OpcodeOpImm32), nil

	case 0b010: // C.LI
		ci := DecodeCI(c)
		return IType{Imm: int16(ci.Imm), Rs1: 0, Funct3: 0b000, Rd: ci.RdRs1}.Encode(OpcodeOpImm), nil

	case 0b011:
		return expandLuiAddi16sp(c)

	case 0b100:
		return expandQ1Arith(c)

	case 0b101: // C.J
		cj := DecodeCJ(c)
		return JType{Imm: int32(cj.Offset), Rd: 0}.Encode(OpcodeJal), nil

	case 0b110: // C.BEQZ
		cb := DecodeCB(c)
		return BType{Imm: cb.Offset, Rs2: 0, Rs1: cb.Rs1, Funct3: 0b000}.Encode(OpcodeBranch), nil

	case 0b111: // C.BNEZ
		cb := DecodeCB(c)
		return BType{Imm: cb.Offset, Rs2: 0, Rs1: cb.Rs1, Funct3: 0b001}.Encode(OpcodeBranch), nil
	}

	return 0, unsupported(c)
}

func expandLuiAddi16sp(c uint16) (uint32, error) {
	ci := DecodeCI(c)
	switch ci.RdRs1 {
	case 0:
		return 0, unsupported(c)

	case 2: // C.ADDI16SP: nzimm[9|4|6|8:7|5] = c[12|6|5|4:3|2]
		imm := bit(c, 12, 9) | bit(c, 6, 4) | bit(c, 5, 6) |
			bit(c, 4, 8) | bit(c, 3, 7) | bit(c, 2, 5)
		if imm == 0 {
			return 0, unsupported(c)
		}
		return IType{Imm: int16(signExtend(imm, 10)), Rs1: 2, Funct3: 0b000, Rd: 2}.Encode(OpcodeOpImm), nil

	default: // C.LUI: nzimm[17|16:12] = c[12|6:2]
		if ci.Imm == 0 {
			return 0, unsupported(c)
		}
		return UType{Imm: int32(ci.Imm) << 12, Rd: ci.RdRs1}.Encode(OpcodeLui), nil
	}
}

func expandQ1Arith(c uint16) (uint32, error) {
	cb := DecodeCB(c)
	switch cb.Funct2 {
	case 0b00: // C.SRLI
		shamt := int16(uint8(cb.Imm) & 0x3F)
		return IType{Imm: shamt, Rs1: cb.Rs1, Funct3: 0b101, Rd: cb.Rs1}.Encode(OpcodeOpImm), nil

	case 0b01: // C.SRAI
		shamt := int16(uint8(cb.Imm) & 0x3F)
		return IType{Imm: 0x400 | shamt, Rs1: cb.Rs1, Funct3: 0b101, Rd: cb.Rs1}.Encode(OpcodeOpImm), nil

	case 0b10: // C.ANDI
		return IType{Imm: int16(cb.Imm), Rs1: cb.Rs1, Funct3: 0b111, Rd: cb.Rs1}.Encode(OpcodeOpImm), nil
	}

	cs := DecodeCS(c)
	r := RType{Rs2: cs.Rs2, Rs1: cs.Rs1, Rd: cs.Rs1}
	if (c>>12)&0x1 == 0 {
		switch cs.ImmLo {
		case 0b00: // C.SUB
			r.Funct7, r.Funct3 = 0b0100000, 0b000
		case 0b01: // C.XOR
			r.Funct3 = 0b100
		case 0b10: // C.OR
			r.Funct3 = 0b110
		case 0b11: // C.AND
			r.Funct3 = 0b111
		}
		return r.Encode(OpcodeOp), nil
	}

	switch cs.ImmLo {
	case 0b00: // C.SUBW
		r.Funct7, r.Funct3 = 0b0100000, 0b000
		return r.Encode(OpcodeOp32), nil
	case 0b01: // C.ADDW
		r.Funct3 = 0b000
		return r.Encode(OpcodeOp32), nil
	}

	return 0, unsupported(c)
}

func expandQ2(c uint16) (uint32, error) {
	switch cFunct3(c) {
	case 0b000: // C.SLLI
		ci := DecodeCI(c)
		return IType{Imm: int16(ci.UImm), Rs1: ci.RdRs1, Funct3: 0b001, Rd: ci.RdRs1}.Encode(OpcodeOpImm), nil

	case 0b010: // C.LWSP: uimm[5|4:2|7:6] = c[12|6:4|3:2]
		ci := DecodeCI(c)
		if ci.RdRs1 == 0 {
			return 0, unsupported(c)
		}
		u := int16(ci.UImm)
		imm := (u>>5&0x1)<<5 | (u>>2&0x7)<<2 | (u&0x3)<<6
		return IType{Imm: imm, Rs1: 2, Funct3: 0b010, Rd: ci.RdRs1}.Encode(OpcodeLoad), nil

	case 0b011: // C.LDSP: uimm[5|4:3|8:6] = c[12|6:5|4:2]
		ci := DecodeCI(c)
		if ci.RdRs1 == 0 {
			return 0, unsupported(c)
		}
		u := int16(ci.UImm)
		imm := (u>>5&0x1)<<5 | (u>>3&0x3)<<3 | (u&0x7)<<6
		return IType{Imm: imm, Rs1: 2, Funct3: 0b011, Rd: ci.RdRs1}.Encode(OpcodeLoad), nil

	case 0b100:
		return expandQ2Reg(c)

	case 0b110: // C.SWSP: uimm[5:2|7:6] = c[12:9|8:7]
		css := DecodeCSS(c)
		u := int16(css.UImm)
		imm := (u>>2&0xF)<<2 | (u&0x3)<<6
		return SType{Imm: imm, Rs2: css.Rs2, Rs1: 2, Funct3: 0b010}.Encode(OpcodeStore), nil

	case 0b111: // C.SDSP: uimm[5:3|8:6] = c[12:10|9:7]
		css := DecodeCSS(c)
		u := int16(css.UImm)
		imm := (u>>3&0x7)<<3 | (u&0x7)<<6
		return SType{Imm: imm, Rs2: css.Rs2, Rs1: 2, Funct3: 0b011}.Encode(OpcodeStore), nil
	}

	// C.FLDSP, C.FSDSP.
	return 0, unsupported(c)
}

// ebreak is the canonical EBREAK encoding.
const ebreak uint32 = 0x00100073

func expandQ2Reg(c uint16) (uint32, error) {
	cr := DecodeCR(c)
	switch {
	case cr.Funct4 == 0b1000 && cr.Rs2 == 0: // C.JR
		if cr.RdRs1 == 0 {
			return 0, unsupported(c)
		}
		return IType{Imm: 0, Rs1: cr.RdRs1, Funct3: 0b000, Rd: 0}.Encode(OpcodeJalr), nil

	case cr.Funct4 == 0b1000: // C.MV
		return RType{Rs2: cr.Rs2, Rs1: 0, Funct3: 0b000, Rd: cr.RdRs1}.Encode(OpcodeOp), nil

	case cr.RdRs1 == 0 && cr.Rs2 == 0: // C.EBREAK
		return ebreak, nil

	case cr.Rs2 == 0: // C.JALR
		return IType{Imm: 0, Rs1: cr.RdRs1, Funct3: 0b000, Rd: 1}.Encode(OpcodeJalr), nil

	default: // C.ADD
		return RType{Rs2: cr.Rs2, Rs1: cr.RdRs1, Funct3: 0b000, Rd: cr.RdRs1}.Encode(OpcodeOp), nil
	}
}
