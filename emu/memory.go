// Package emu provides functional RV64 emulation.
package emu

import (
	"errors"
	"fmt"
)

// WordSize is the width in bytes of one storage word. Every access must
// fall inside a single word.
const WordSize = 8

const wordShift = 3

// DefaultMemorySize is the capacity of a memory created without an
// explicit size (128 KiB).
const DefaultMemorySize = 128 * 1024

// Memory access errors.
var (
	ErrOutOfRange  = errors.New("address out of range")
	ErrMisaligned  = errors.New("access crosses a storage word boundary")
	ErrInvalidSize = errors.New("invalid access size")
)

// AccessError describes a failed memory access.
type AccessError struct {
	Op   string
	Addr uint64
	Size int
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s of %d bytes at 0x%X: %v", e.Op, e.Size, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Memory is a byte-addressable little-endian address space.
type Memory interface {
	// Read returns the size-byte value stored at addr, zero-extended.
	Read(addr uint64, size int) (uint64, error)
	// Write replaces the size bytes at addr with the low bytes of value.
	Write(addr uint64, size int, value uint64) error
}

// sizeMask returns the low-bytes mask for a legal access size.
func sizeMask(size int) (uint64, bool) {
	switch size {
	case 1:
		return 0xFF, true
	case 2:
		return 0xFFFF, true
	case 4:
		return 0xFFFFFFFF, true
	case 8:
		return 0xFFFFFFFF_FFFFFFFF, true
	default:
		return 0, false
	}
}

// checkAccess validates an access against a store of numWords words and
// returns the word index, the bit shift within the word and the mask.
func checkAccess(op string, addr uint64, size int, numWords uint64) (uint64, uint, uint64, error) {
	mask, ok := sizeMask(size)
	if !ok {
		return 0, 0, 0, &AccessError{Op: op, Addr: addr, Size: size, Err: ErrInvalidSize}
	}

	index := addr >> wordShift
	offset := addr & (WordSize - 1)
	if index >= numWords {
		return 0, 0, 0, &AccessError{Op: op, Addr: addr, Size: size, Err: ErrOutOfRange}
	}
	if offset+uint64(size) > WordSize {
		return 0, 0, 0, &AccessError{Op: op, Addr: addr, Size: size, Err: ErrMisaligned}
	}

	return index, uint(offset * 8), mask, nil
}

// FlatMemory is a fixed-capacity, zero-initialized memory packed into
// 64-bit words.
type FlatMemory struct {
	words []uint64
}

// NewFlatMemory allocates a memory of at least size bytes, rounded up to
// a whole number of words.
func NewFlatMemory(size uint64) *FlatMemory {
	return &FlatMemory{
		words: make([]uint64, (size+WordSize-1)/WordSize),
	}
}

// NewMemory allocates a flat memory of DefaultMemorySize bytes.
func NewMemory() *FlatMemory {
	return NewFlatMemory(DefaultMemorySize)
}

// Size returns the capacity in bytes.
func (m *FlatMemory) Size() uint64 {
	return uint64(len(m.words)) * WordSize
}

// Read implements Memory.
func (m *FlatMemory) Read(addr uint64, size int) (uint64, error) {
	index, shift, mask, err := checkAccess("read", addr, size, uint64(len(m.words)))
	if err != nil {
		return 0, err
	}
	return (m.words[index] >> shift) & mask, nil
}

// Write implements Memory. Bytes of the word outside the access are
// preserved.
func (m *FlatMemory) Write(addr uint64, size int, value uint64) error {
	index, shift, mask, err := checkAccess("write", addr, size, uint64(len(m.words)))
	if err != nil {
		return err
	}
	m.words[index] = m.words[index]&^(mask<<shift) | (value&mask)<<shift
	return nil
}

// LoadBytes copies data into mem starting at addr, one byte at a time.
// It stops at the first failing byte.
func LoadBytes(mem Memory, addr uint64, data []byte) error {
	for i, b := range data {
		if err := mem.Write(addr+uint64(i), 1, uint64(b)); err != nil {
			return fmt.Errorf("failed to load byte %d: %w", i, err)
		}
	}
	return nil
}
