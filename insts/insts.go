// Package insts provides RV64 instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports:
//   - Opcode classification of canonical 32-bit instructions
//   - Field extraction for the R, I, S, B, U and J formats
//   - Field extraction for the compact CR, CI, CSS, CIW, CL, CS, CB and CJ formats
//   - Expansion of 16-bit compressed instructions into canonical form
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00500093) // addi x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Opcode, inst.Rd, inst.Rs1, inst.Imm)
package insts
