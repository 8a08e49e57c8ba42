package cache

import (
	"github.com/sarchlab/rv64sim/emu"
)

// MemoryBacking adapts an emu.Memory to a BackingStore. Lines are moved
// one doubleword at a time, so the block size must be a multiple of
// emu.WordSize and lines must be word aligned.
type MemoryBacking struct {
	memory emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches size bytes from the backing memory.
func (m *MemoryBacking) Read(addr uint64, size int) ([]byte, error) {
	data := make([]byte, size)
	for off := 0; off < size; off += emu.WordSize {
		v, err := m.memory.Read(addr+uint64(off), emu.WordSize)
		if err != nil {
			return nil, err
		}
		storeData(data, uint64(off), emu.WordSize, v)
	}
	return data, nil
}

// Write stores data to the backing memory.
func (m *MemoryBacking) Write(addr uint64, data []byte) error {
	for off := 0; off+emu.WordSize <= len(data); off += emu.WordSize {
		v := extractData(data, uint64(off), emu.WordSize)
		if err := m.memory.Write(addr+uint64(off), emu.WordSize, v); err != nil {
			return err
		}
	}
	return nil
}
