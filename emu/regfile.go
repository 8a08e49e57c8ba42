package emu

// NumSPRs is the number of special-purpose register slots.
const NumSPRs = 4096

// RegFile holds the architectural state of an RV64 hart.
type RegFile struct {
	// PC is the program counter.
	PC uint64

	// X holds the integer registers x0-x31. X[0] is hardwired to zero;
	// use WriteReg to keep that invariant.
	X [32]uint64

	// F holds the floating-point registers. They are carried but never
	// read or written by the supported instructions.
	F [32]uint64

	// SPR holds special-purpose registers, indexed by CSR number.
	SPR [NumSPRs]uint64
}

// NewRegFile creates a register file with all registers zero and the PC
// at boot.
func NewRegFile(boot uint64) *RegFile {
	return &RegFile{PC: boot}
}

// ReadReg reads an integer register. Register 0 and out-of-range indices
// read as 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes an integer register. Writes to register 0 and to
// out-of-range indices are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// Reset zeroes every register and sets the PC to boot.
func (r *RegFile) Reset(boot uint64) {
	*r = RegFile{PC: boot}
}
