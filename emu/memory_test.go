package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv64sim/emu"
)

type sizedMemory interface {
	emu.Memory
	Size() uint64
}

func truncate(v uint64, size int) uint64 {
	if size == 8 {
		return v
	}
	return v & (1<<(8*uint(size)) - 1)
}

func describeMemory(name string, newMemory func(size uint64) sizedMemory) {
	Describe(name, func() {
		var m sizedMemory

		BeforeEach(func() {
			m = newMemory(emu.DefaultMemorySize)
		})

		It("should report its capacity", func() {
			Expect(m.Size()).To(Equal(uint64(emu.DefaultMemorySize)))
		})

		It("should read zero from fresh memory", func() {
			v, err := m.Read(0x100, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeZero())
		})

		It("should round up a capacity to whole words", func() {
			Expect(newMemory(9).Size()).To(Equal(uint64(16)))
		})

		DescribeTable("write then read returns the truncated value",
			func(addr uint64, size int) {
				const pattern = 0x8877665544332211
				Expect(m.Write(addr, size, pattern)).To(Succeed())

				v, err := m.Read(addr, size)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(truncate(pattern, size)))
			},
			Entry("byte at word start", uint64(0x40), 1),
			Entry("byte at word end", uint64(0x47), 1),
			Entry("halfword at offset 6", uint64(0x46), 2),
			Entry("word at offset 4", uint64(0x44), 4),
			Entry("doubleword", uint64(0x48), 8),
			Entry("last doubleword", uint64(emu.DefaultMemorySize-8), 8),
			Entry("last byte", uint64(emu.DefaultMemorySize-1), 1),
		)

		DescribeTable("writes leave neighbouring bytes untouched",
			func(addr uint64, size int) {
				base := addr &^ 7
				Expect(m.Write(base-8, 8, 0xAAAAAAAAAAAAAAAA)).To(Succeed())
				Expect(m.Write(base, 8, 0xAAAAAAAAAAAAAAAA)).To(Succeed())
				Expect(m.Write(base+8, 8, 0xAAAAAAAAAAAAAAAA)).To(Succeed())

				Expect(m.Write(addr, size, 0)).To(Succeed())

				for a := base - 8; a < base+16; a++ {
					v, err := m.Read(a, 1)
					Expect(err).NotTo(HaveOccurred())
					if a >= addr && a < addr+uint64(size) {
						Expect(v).To(BeZero(), "byte 0x%X", a)
					} else {
						Expect(v).To(Equal(uint64(0xAA)), "byte 0x%X", a)
					}
				}
			},
			Entry("byte", uint64(0x83), 1),
			Entry("halfword", uint64(0x82), 2),
			Entry("word", uint64(0x84), 4),
			Entry("doubleword", uint64(0x88), 8),
		)

		It("should store little-endian within a word", func() {
			Expect(m.Write(0x10, 4, 0x11223344)).To(Succeed())
			b0, _ := m.Read(0x10, 1)
			b3, _ := m.Read(0x13, 1)
			h, _ := m.Read(0x12, 2)
			Expect(b0).To(Equal(uint64(0x44)))
			Expect(b3).To(Equal(uint64(0x11)))
			Expect(h).To(Equal(uint64(0x1122)))
		})

		DescribeTable("rejects illegal accesses",
			func(addr uint64, size int, want error) {
				_, rerr := m.Read(addr, size)
				Expect(errors.Is(rerr, want)).To(BeTrue(), "read: %v", rerr)

				werr := m.Write(addr, size, 0xFF)
				Expect(errors.Is(werr, want)).To(BeTrue(), "write: %v", werr)

				var accessErr *emu.AccessError
				Expect(errors.As(werr, &accessErr)).To(BeTrue())
				Expect(accessErr.Addr).To(Equal(addr))
				Expect(accessErr.Size).To(Equal(size))
			},
			Entry("size 0", uint64(0), 0, emu.ErrInvalidSize),
			Entry("size 3", uint64(0), 3, emu.ErrInvalidSize),
			Entry("size 16", uint64(0), 16, emu.ErrInvalidSize),
			Entry("first byte past the end", uint64(emu.DefaultMemorySize), 1, emu.ErrOutOfRange),
			Entry("far past the end", uint64(1)<<40, 8, emu.ErrOutOfRange),
			Entry("halfword crossing a word", uint64(7), 2, emu.ErrMisaligned),
			Entry("word crossing a word", uint64(6), 4, emu.ErrMisaligned),
			Entry("doubleword at offset 1", uint64(9), 8, emu.ErrMisaligned),
			Entry("invalid size wins over range", uint64(1)<<40, 3, emu.ErrInvalidSize),
			Entry("range wins over alignment", uint64(emu.DefaultMemorySize+7), 2, emu.ErrOutOfRange),
		)

		It("should not modify memory on a failed write", func() {
			Expect(m.Write(0, 8, 0x0102030405060708)).To(Succeed())
			Expect(m.Write(6, 4, 0)).NotTo(Succeed())

			v, err := m.Read(0, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0x0102030405060708)))
		})
	})
}

var _ = Describe("Memory", func() {
	describeMemory("FlatMemory", func(size uint64) sizedMemory {
		return emu.NewFlatMemory(size)
	})

	describeMemory("PagedMemory", func(size uint64) sizedMemory {
		return emu.NewPagedMemory(size)
	})

	Describe("PagedMemory allocation", func() {
		It("should allocate pages only on write", func() {
			m := emu.NewPagedMemory(1 << 32)
			_, err := m.Read(0x1234_0000, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.PageCount()).To(BeZero())

			Expect(m.Write(0x1234_0000, 8, 1)).To(Succeed())
			Expect(m.Write(0x1234_0FF8, 8, 1)).To(Succeed())
			Expect(m.PageCount()).To(Equal(1))

			Expect(m.Write(0x1234_1000, 1, 1)).To(Succeed())
			Expect(m.PageCount()).To(Equal(2))
		})
	})

	Describe("LoadBytes", func() {
		It("should copy bytes in order", func() {
			m := emu.NewMemory()
			Expect(emu.LoadBytes(m, 0x1006, []byte{0xDE, 0xAD, 0xBE, 0xEF})).To(Succeed())

			v, err := m.Read(0x1006, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xADDE)))
			v, err = m.Read(0x1008, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0xEFBE)))
		})

		It("should stop at the end of memory", func() {
			m := emu.NewFlatMemory(16)
			err := emu.LoadBytes(m, 14, []byte{1, 2, 3})
			Expect(errors.Is(err, emu.ErrOutOfRange)).To(BeTrue())

			v, _ := m.Read(14, 2)
			Expect(v).To(Equal(uint64(0x0201)))
		})
	})
})
