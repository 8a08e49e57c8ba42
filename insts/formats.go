package insts

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatR4             // fused multiply-add (four registers)
	FormatI              // 12-bit immediate
	FormatS              // store
	FormatB              // conditional branch
	FormatU              // upper immediate
	FormatJ              // jump
)

var formatNames = [...]string{"?", "R", "R4", "I", "S", "B", "U", "J"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "?"
}

// signExtend interprets the low bits of v as a two's-complement value.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func regRd(word uint32) uint8       { return uint8((word >> 7) & 0x1F) }
func regRs1(word uint32) uint8      { return uint8((word >> 15) & 0x1F) }
func regRs2(word uint32) uint8      { return uint8((word >> 20) & 0x1F) }
func fieldFunct3(word uint32) uint8 { return uint8((word >> 12) & 0x7) }
func fieldFunct7(word uint32) uint8 { return uint8((word >> 25) & 0x7F) }

// RType holds the fields of a register-register instruction.
type RType struct {
	Funct7 uint8
	Rs2    uint8
	Rs1    uint8
	Funct3 uint8
	Rd     uint8
}

// DecodeR extracts the R-format fields.
func DecodeR(word uint32) RType {
	return RType{
		Funct7: fieldFunct7(word),
		Rs2:    regRs2(word),
		Rs1:    regRs1(word),
		Funct3: fieldFunct3(word),
		Rd:     regRd(word),
	}
}

// Encode builds the canonical word for r with the given opcode.
func (r RType) Encode(op Opcode) uint32 {
	return uint32(r.Funct7&0x7F)<<25 |
		uint32(r.Rs2&0x1F)<<20 |
		uint32(r.Rs1&0x1F)<<15 |
		uint32(r.Funct3&0x7)<<12 |
		uint32(r.Rd&0x1F)<<7 |
		uint32(op)
}

// IType holds the fields of an immediate instruction.
// Imm is imm[11:0] sign-extended.
type IType struct {
	Imm    int16
	Rs1    uint8
	Funct3 uint8
	Rd     uint8
}

// DecodeI extracts the I-format fields.
func DecodeI(word uint32) IType {
	return IType{
		Imm:    int16(signExtend(word>>20, 12)),
		Rs1:    regRs1(word),
		Funct3: fieldFunct3(word),
		Rd:     regRd(word),
	}
}

// Encode builds the canonical word for i with the given opcode.
func (i IType) Encode(op Opcode) uint32 {
	return (uint32(i.Imm)&0xFFF)<<20 |
		uint32(i.Rs1&0x1F)<<15 |
		uint32(i.Funct3&0x7)<<12 |
		uint32(i.Rd&0x1F)<<7 |
		uint32(op)
}

// SType holds the fields of a store instruction.
type SType struct {
	Imm    int16
	Rs2    uint8
	Rs1    uint8
	Funct3 uint8
}

// DecodeS extracts the S-format fields. The immediate is reassembled from
// imm[11:5] (bits 31:25) and imm[4:0] (bits 11:7).
func DecodeS(word uint32) SType {
	imm := ((word>>25)&0x7F)<<5 | (word>>7)&0x1F
	return SType{
		Imm:    int16(signExtend(imm, 12)),
		Rs2:    regRs2(word),
		Rs1:    regRs1(word),
		Funct3: fieldFunct3(word),
	}
}

// Encode builds the canonical word for s with the given opcode.
func (s SType) Encode(op Opcode) uint32 {
	imm := uint32(s.Imm) & 0xFFF
	return (imm>>5)<<25 |
		uint32(s.Rs2&0x1F)<<20 |
		uint32(s.Rs1&0x1F)<<15 |
		uint32(s.Funct3&0x7)<<12 |
		(imm&0x1F)<<7 |
		uint32(op)
}

// BType holds the fields of a conditional branch. Imm is the byte offset
// with bit 0 always clear.
type BType struct {
	Imm    int16
	Rs2    uint8
	Rs1    uint8
	Funct3 uint8
}

// DecodeB extracts the B-format fields. The offset is reassembled from
// imm[12] (bit 31), imm[11] (bit 7), imm[10:5] (bits 30:25) and imm[4:1]
// (bits 11:8).
func DecodeB(word uint32) BType {
	imm := ((word>>31)&0x1)<<12 |
		((word>>7)&0x1)<<11 |
		((word>>25)&0x3F)<<5 |
		((word>>8)&0xF)<<1
	return BType{
		Imm:    int16(signExtend(imm, 13)),
		Rs2:    regRs2(word),
		Rs1:    regRs1(word),
		Funct3: fieldFunct3(word),
	}
}

// Encode builds the canonical word for b with the given opcode.
func (b BType) Encode(op Opcode) uint32 {
	imm := uint32(b.Imm) & 0x1FFE
	return ((imm>>12)&0x1)<<31 |
		((imm>>5)&0x3F)<<25 |
		uint32(b.Rs2&0x1F)<<20 |
		uint32(b.Rs1&0x1F)<<15 |
		uint32(b.Funct3&0x7)<<12 |
		((imm>>1)&0xF)<<8 |
		((imm>>11)&0x1)<<7 |
		uint32(op)
}

// UType holds the fields of an upper-immediate instruction. Imm carries
// imm[31:12] already in place, with the low 12 bits clear.
type UType struct {
	Imm int32
	Rd  uint8
}

// DecodeU extracts the U-format fields.
func DecodeU(word uint32) UType {
	return UType{
		Imm: int32(word & 0xFFFFF000),
		Rd:  regRd(word),
	}
}

// Encode builds the canonical word for u with the given opcode.
func (u UType) Encode(op Opcode) uint32 {
	return uint32(u.Imm)&0xFFFFF000 | uint32(u.Rd&0x1F)<<7 | uint32(op)
}

// JType holds the fields of a jump. Imm is the byte offset with bit 0
// always clear.
type JType struct {
	Imm int32
	Rd  uint8
}

// DecodeJ extracts the J-format fields. The offset is reassembled from
// imm[20] (bit 31), imm[19:12] (bits 19:12), imm[11] (bit 20) and
// imm[10:1] (bits 30:21).
func DecodeJ(word uint32) JType {
	imm := ((word>>31)&0x1)<<20 |
		((word>>12)&0xFF)<<12 |
		((word>>20)&0x1)<<11 |
		((word>>21)&0x3FF)<<1
	return JType{
		Imm: signExtend(imm, 21),
		Rd:  regRd(word),
	}
}

// Encode builds the canonical word for j with the given opcode.
func (j JType) Encode(op Opcode) uint32 {
	imm := uint32(j.Imm) & 0x1FFFFE
	return ((imm>>20)&0x1)<<31 |
		((imm>>1)&0x3FF)<<21 |
		((imm>>11)&0x1)<<20 |
		((imm>>12)&0xFF)<<12 |
		uint32(j.Rd&0x1F)<<7 |
		uint32(op)
}
