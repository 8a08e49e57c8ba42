package emu

import "fmt"

// Extend truncates raw to size bytes and widens it back to 64 bits, with
// sign extension when signed is set. Size must be 1, 2, 4 or 8; anything
// else is a programming error and panics.
func Extend(raw uint64, size int, signed bool) uint64 {
	switch size {
	case 1:
		if signed {
			return uint64(int64(int8(raw)))
		}
		return uint64(uint8(raw))
	case 2:
		if signed {
			return uint64(int64(int16(raw)))
		}
		return uint64(uint16(raw))
	case 4:
		if signed {
			return uint64(int64(int32(raw)))
		}
		return uint64(uint32(raw))
	case 8:
		return raw
	default:
		panic(fmt.Sprintf("emu: invalid extend size %d", size))
	}
}
