package emu

import "github.com/sarchlab/rv64sim/insts"

// LoadStoreUnit implements RV64I loads and stores.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

type widthKind struct {
	size   int
	signed bool
}

// Load widths by funct3. 0b111 is absent.
var loadWidths = map[uint8]widthKind{
	0b000: {1, true},  // lb
	0b001: {2, true},  // lh
	0b010: {4, true},  // lw
	0b011: {8, true},  // ld
	0b100: {1, false}, // lbu
	0b101: {2, false}, // lhu
	0b110: {4, false}, // lwu
}

// Store widths by funct3.
var storeWidths = map[uint8]int{
	0b000: 1, // sb
	0b001: 2, // sh
	0b010: 4, // sw
	0b011: 8, // sd
}

// EffectiveAddress returns rs1 + imm with two's-complement wrap-around.
func (lsu *LoadStoreUnit) EffectiveAddress(inst *insts.Instruction) uint64 {
	return lsu.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm)
}

// Load performs the memory read of a LOAD instruction and returns the
// extended value for rd along with the access.
func (lsu *LoadStoreUnit) Load(inst *insts.Instruction) (uint64, *MemAccess, error) {
	w, ok := loadWidths[inst.Funct3]
	if !ok {
		return 0, nil, ErrUnimplementedOpcode
	}

	addr := lsu.EffectiveAddress(inst)
	raw, err := lsu.memory.Read(addr, w.size)
	if err != nil {
		return 0, nil, err
	}

	access := &MemAccess{Addr: addr, Size: w.size, Value: raw}
	return Extend(raw, w.size, w.signed), access, nil
}

// Store performs the memory write of a STORE instruction.
func (lsu *LoadStoreUnit) Store(inst *insts.Instruction) (*MemAccess, error) {
	size, ok := storeWidths[inst.Funct3]
	if !ok {
		return nil, ErrUnimplementedOpcode
	}

	addr := lsu.EffectiveAddress(inst)
	value := Extend(lsu.regFile.ReadReg(inst.Rs2), size, false)
	if err := lsu.memory.Write(addr, size, value); err != nil {
		return nil, err
	}

	return &MemAccess{Addr: addr, Size: size, Store: true, Value: value}, nil
}
