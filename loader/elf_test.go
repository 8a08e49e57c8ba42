package loader_test

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv64sim/emu"
	"github.com/sarchlab/rv64sim/loader"
)

// testSection describes one section of a hand-built ELF file.
type testSection struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint64
	data  []byte
}

var (
	textCode = []byte{
		0x93, 0x00, 0x50, 0x00, // addi ra, zero, 5
		0x15, 0x45,             // c.li a0, 5
		0x01, 0x00,             // c.nop
	}
	dataBytes = []byte{0x01, 0x02, 0x03, 0x04}
)

func standardSections() []testSection {
	return []testSection{
		{".text", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_EXECINSTR, 0x1000, textCode},
		{".data", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0x2000, dataBytes},
		{".comment", elf.SHT_PROGBITS, 0, 0, []byte("GCC 13")},
		{".bss", elf.SHT_NOBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0x3000, nil},
	}
}

func newLogger(lines *[]string) logr.Logger {
	return funcr.New(func(prefix, args string) {
		*lines = append(*lines, args)
	}, funcr.Options{Verbosity: 1})
}

var _ = Describe("ELF Loader", func() {
	var (
		tempDir string
		lines   []string
		logger  logr.Logger
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())

		lines = nil
		logger = newLogger(&lines)
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("LoadFile", func() {
		Context("with a valid RISC-V ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				createRISCVELF(elfPath, elf.EM_RISCV, 0x1004, standardSections())
			})

			It("should extract the entry point", func() {
				prog, err := loader.LoadFile(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x1004)))
			})

			It("should keep only allocated PROGBITS sections", func() {
				prog, err := loader.LoadFile(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Sections).To(HaveLen(2))

				Expect(prog.Sections[0].Name).To(Equal(".text"))
				Expect(prog.Sections[0].Addr).To(Equal(uint64(0x1000)))
				Expect(prog.Sections[0].Data).To(Equal(textCode))
				Expect(prog.Sections[0].Flags & loader.SectionFlagExecute).NotTo(BeZero())

				Expect(prog.Sections[1].Name).To(Equal(".data"))
				Expect(prog.Sections[1].Data).To(Equal(dataBytes))
				Expect(prog.Sections[1].Flags & loader.SectionFlagWrite).NotTo(BeZero())
				Expect(prog.Sections[1].Flags & loader.SectionFlagExecute).To(BeZero())
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.LoadFile("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				Expect(os.WriteFile(notElfPath, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.LoadFile(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				Expect(os.WriteFile(emptyPath, []byte{}, 0644)).To(Succeed())

				_, err := loader.LoadFile(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a non-RISC-V ELF", func() {
			It("should return error for an AArch64 ELF", func() {
				elfPath := filepath.Join(tempDir, "arm64.elf")
				createRISCVELF(elfPath, elf.EM_AARCH64, 0x1000, standardSections())

				_, err := loader.LoadFile(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a RISC-V"))
			})
		})

		Context("with a 32-bit ELF", func() {
			It("should return error", func() {
				elfPath := filepath.Join(tempDir, "elf32.elf")
				createMinimal32BitELF(elfPath)

				_, err := loader.LoadFile(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 64-bit"))
			})
		})

		It("should return no sections for an ELF without PROGBITS", func() {
			elfPath := filepath.Join(tempDir, "empty-sections.elf")
			createRISCVELF(elfPath, elf.EM_RISCV, 0x400, nil)

			prog, err := loader.LoadFile(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Sections).To(BeEmpty())
			Expect(prog.EntryPoint).To(Equal(uint64(0x400)))
		})
	})

	Describe("Load", func() {
		It("should copy sections into memory", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createRISCVELF(elfPath, elf.EM_RISCV, 0x1000, standardSections())
			mem := emu.NewMemory()

			prog, err := loader.Load(elfPath, mem, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Sections[0].Failed).To(BeZero())

			w, err := mem.Read(0x1000, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(uint64(0x00500093)))
			d, err := mem.Read(0x2000, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(uint64(0x04030201)))

			Expect(lines).To(ContainElement(ContainSubstring(`"name"=".text"`)))
		})

		It("should skip and log bytes that do not fit", func() {
			elfPath := filepath.Join(tempDir, "overflow.elf")
			createRISCVELF(elfPath, elf.EM_RISCV, 0x10, []testSection{
				{".text", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_EXECINSTR, 60, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
			})
			mem := emu.NewFlatMemory(64)

			prog, err := loader.Load(elfPath, mem, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Sections[0].Failed).To(Equal(4))

			v, err := mem.Read(60, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0x04030201)))

			failures := 0
			for _, l := range lines {
				if strings.Contains(l, "failed to write") {
					failures++
				}
			}
			Expect(failures).To(Equal(4))
		})

		It("should run the loaded program", func() {
			elfPath := filepath.Join(tempDir, "run.elf")
			createRISCVELF(elfPath, elf.EM_RISCV, 0x1000, standardSections())
			mem := emu.NewMemory()

			prog, err := loader.Load(elfPath, mem, logr.Discard())
			Expect(err).NotTo(HaveOccurred())

			e := emu.NewEmulator(emu.WithMemory(mem), emu.WithBootAddress(prog.EntryPoint))
			e.Run(3)

			Expect(e.FaultCount()).To(BeZero())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(5)))
			Expect(e.RegFile().ReadReg(10)).To(Equal(uint64(5)))
			Expect(e.RegFile().PC).To(Equal(uint64(0x1008)))
		})
	})
})

// createRISCVELF writes an ELF64 executable with the given machine, entry
// point and sections. A null section and a .shstrtab are added around
// them; there are no program headers.
func createRISCVELF(path string, machine elf.Machine, entry uint64, sections []testSection) {
	const (
		ehdrSize = 64
		shdrSize = 64
	)

	shstrtab := []byte{0}
	nameOff := make([]uint32, len(sections)+1)
	for i, s := range sections {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, s.name...), 0)
	}
	nameOff[len(sections)] = uint32(len(shstrtab))
	shstrtab = append(append(shstrtab, ".shstrtab"...), 0)

	body := []byte{}
	dataOff := make([]uint64, len(sections))
	for i, s := range sections {
		dataOff[i] = ehdrSize + uint64(len(body))
		if s.typ != elf.SHT_NOBITS {
			body = append(body, s.data...)
		}
	}
	strOff := ehdrSize + uint64(len(body))
	body = append(body, shstrtab...)
	for len(body)%8 != 0 {
		body = append(body, 0)
	}
	shoff := ehdrSize + uint64(len(body))
	shnum := len(sections) + 2

	header := make([]byte, ehdrSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2                                                 // 64-bit
	header[5] = 1                                                 // little endian
	header[6] = 1                                                 // version
	binary.LittleEndian.PutUint16(header[16:18], 2)               // executable
	binary.LittleEndian.PutUint16(header[18:20], uint16(machine)) // machine
	binary.LittleEndian.PutUint32(header[20:24], 1)               // version
	binary.LittleEndian.PutUint64(header[24:32], entry)           // entry
	binary.LittleEndian.PutUint64(header[40:48], shoff)           // shoff
	binary.LittleEndian.PutUint16(header[52:54], ehdrSize)        // ehsize
	binary.LittleEndian.PutUint16(header[58:60], shdrSize)        // shentsize
	binary.LittleEndian.PutUint16(header[60:62], uint16(shnum))   // shnum
	binary.LittleEndian.PutUint16(header[62:64], uint16(shnum-1)) // shstrndx

	shdr := func(name uint32, typ elf.SectionType, flags elf.SectionFlag, addr, off, size uint64) []byte {
		h := make([]byte, shdrSize)
		binary.LittleEndian.PutUint32(h[0:4], name)
		binary.LittleEndian.PutUint32(h[4:8], uint32(typ))
		binary.LittleEndian.PutUint64(h[8:16], uint64(flags))
		binary.LittleEndian.PutUint64(h[16:24], addr)
		binary.LittleEndian.PutUint64(h[24:32], off)
		binary.LittleEndian.PutUint64(h[32:40], size)
		binary.LittleEndian.PutUint64(h[48:56], 1)
		return h
	}

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()

	_, _ = file.Write(header)
	_, _ = file.Write(body)
	_, _ = file.Write(make([]byte, shdrSize)) // SHN_UNDEF
	for i, s := range sections {
		size := uint64(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = 0x100
		}
		_, _ = file.Write(shdr(nameOff[i], s.typ, s.flags, s.addr, dataOff[i], size))
	}
	_, _ = file.Write(shdr(nameOff[len(sections)], elf.SHT_STRTAB, 0, 0, strOff, uint64(len(shstrtab))))
}

// createMinimal32BitELF creates a minimal 32-bit ELF to test rejection.
func createMinimal32BitELF(path string) {
	elfHeader := make([]byte, 52)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 1                                     // 32-bit (ELFCLASS32)
	elfHeader[5] = 1                                     // little endian
	elfHeader[6] = 1                                     // version
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)   // executable
	binary.LittleEndian.PutUint16(elfHeader[18:20], 243) // RISC-V
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)   // version

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
}
