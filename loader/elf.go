// Package loader provides ELF binary loading for RISC-V executables.
package loader

import (
	"debug/elf"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv64sim/emu"
)

// SectionFlags represents the memory attributes of a section.
type SectionFlags uint32

const (
	// SectionFlagExecute indicates the section holds instructions.
	SectionFlagExecute SectionFlags = 1 << iota
	// SectionFlagWrite indicates the section is writable.
	SectionFlagWrite
)

// Section is an allocated PROGBITS section from an ELF file.
type Section struct {
	// Name is the section name, e.g. ".text".
	Name string
	// Addr is the address the section is loaded at.
	Addr uint64
	// Data contains the section contents from the file.
	Data []byte
	// Flags contains the section attributes.
	Flags SectionFlags
	// Failed counts the bytes that could not be written by CopyTo.
	Failed int
}

// Program represents a RISC-V ELF program.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Sections contains the loadable sections in file order.
	Sections []Section
}

// LoadFile parses a 64-bit RISC-V ELF file and collects every section of
// type SHT_PROGBITS that carries SHF_ALLOC.
func LoadFile(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: f.Entry}

	for _, s := range f.Sections {
		if s.Type != elf.SHT_PROGBITS || s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}

		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read section %s: %w", s.Name, err)
		}

		var flags SectionFlags
		if s.Flags&elf.SHF_EXECINSTR != 0 {
			flags |= SectionFlagExecute
		}
		if s.Flags&elf.SHF_WRITE != 0 {
			flags |= SectionFlagWrite
		}

		prog.Sections = append(prog.Sections, Section{
			Name:  s.Name,
			Addr:  s.Addr,
			Data:  data,
			Flags: flags,
		})
	}

	return prog, nil
}

// CopyTo writes every section into mem one byte at a time. A byte that
// cannot be written is logged and skipped; the rest of the section is
// still copied. It returns the total number of skipped bytes.
func (p *Program) CopyTo(mem emu.Memory, logger logr.Logger) int {
	failed := 0

	for i := range p.Sections {
		s := &p.Sections[i]
		logger.V(1).Info("loading section",
			"name", s.Name, "addr", fmt.Sprintf("%#x", s.Addr), "size", len(s.Data))

		s.Failed = 0
		for off, b := range s.Data {
			addr := s.Addr + uint64(off)
			if err := mem.Write(addr, 1, uint64(b)); err != nil {
				logger.Info("failed to write section byte",
					"section", s.Name, "addr", fmt.Sprintf("%#x", addr), "err", err.Error())
				s.Failed++
			}
		}
		failed += s.Failed
	}

	return failed
}

// Load parses the ELF file at path and copies its loadable sections into
// mem. Individual byte write failures do not fail the load; they are
// logged and reported through Section.Failed.
func Load(path string, mem emu.Memory, logger logr.Logger) (*Program, error) {
	prog, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	prog.CopyTo(mem, logger)

	return prog, nil
}
