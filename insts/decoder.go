package insts

// Instruction represents a decoded RV64 instruction in canonical form.
type Instruction struct {
	Opcode Opcode // Major opcode
	Format Format // Encoding format

	// Raw is the canonical 32-bit encoding.
	Raw uint32
	// Compressed holds the original 16-bit encoding when Length is 2.
	Compressed uint16
	// Length is the size of the fetched encoding in bytes (2 or 4).
	Length uint64

	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Funct3 uint8
	Funct7 uint8

	// Imm is the format's immediate, sign-extended to 64 bits.
	Imm int64
}

// IsCompressed reports whether the instruction was expanded from a 16-bit
// encoding.
func (i *Instruction) IsCompressed() bool {
	return i.Length == 2
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV64 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a fetched instruction word. If the low two bits mark a
// compressed instruction, only the low halfword is used and it is expanded
// first; the returned error then wraps ErrUnsupportedCompressed.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	if IsCompressed(word) {
		c := uint16(word)
		canonical, err := Expand(c)
		if err != nil {
			return nil, err
		}
		inst := d.DecodeCanonical(canonical)
		inst.Compressed = c
		inst.Length = 2
		return inst, nil
	}

	return d.DecodeCanonical(word), nil
}

// DecodeCanonical classifies a canonical 32-bit instruction and extracts
// the operand fields of its format. Decoding never fails; an unrecognized
// opcode yields OpcodeUnknown with no fields populated.
func (d *Decoder) DecodeCanonical(word uint32) *Instruction {
	op := Classify(word)
	inst := &Instruction{
		Opcode: op,
		Format: op.Format(),
		Raw:    word,
		Length: 4,
	}

	switch inst.Format {
	case FormatR, FormatR4:
		r := DecodeR(word)
		inst.Rd, inst.Rs1, inst.Rs2 = r.Rd, r.Rs1, r.Rs2
		inst.Funct3, inst.Funct7 = r.Funct3, r.Funct7
	case FormatI:
		i := DecodeI(word)
		inst.Rd, inst.Rs1, inst.Funct3 = i.Rd, i.Rs1, i.Funct3
		inst.Funct7 = fieldFunct7(word)
		inst.Imm = int64(i.Imm)
	case FormatS:
		s := DecodeS(word)
		inst.Rs1, inst.Rs2, inst.Funct3 = s.Rs1, s.Rs2, s.Funct3
		inst.Imm = int64(s.Imm)
	case FormatB:
		b := DecodeB(word)
		inst.Rs1, inst.Rs2, inst.Funct3 = b.Rs1, b.Rs2, b.Funct3
		inst.Imm = int64(b.Imm)
	case FormatU:
		u := DecodeU(word)
		inst.Rd = u.Rd
		inst.Imm = int64(u.Imm)
	case FormatJ:
		j := DecodeJ(word)
		inst.Rd = j.Rd
		inst.Imm = int64(j.Imm)
	}

	return inst
}

// WritesRd reports whether the instruction's format carries a destination
// register.
func (i *Instruction) WritesRd() bool {
	switch i.Format {
	case FormatR, FormatR4, FormatI, FormatU, FormatJ:
		return true
	default:
		return false
	}
}
