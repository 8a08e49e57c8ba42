package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv64sim/emu"
)

var _ = Describe("Extend", func() {
	It("should be the identity on 8-byte inputs", func() {
		for _, v := range []uint64{0, 1, 0x7FFFFFFFFFFFFFFF, 0x8000000000000000, 0xFFFFFFFFFFFFFFFF} {
			Expect(emu.Extend(v, 8, true)).To(Equal(v))
			Expect(emu.Extend(v, 8, false)).To(Equal(v))
			Expect(emu.Extend(emu.Extend(v, 8, true), 8, true)).To(Equal(v))
		}
	})

	DescribeTable("top-bit-set values",
		func(raw uint64, size int, signed, unsigned uint64) {
			Expect(emu.Extend(raw, size, true)).To(Equal(signed))
			Expect(emu.Extend(raw, size, false)).To(Equal(unsigned))
		},
		Entry("byte", uint64(0x80), 1, uint64(0xFFFFFFFFFFFFFF80), uint64(0x80)),
		Entry("byte 0xFF", uint64(0xFF), 1, uint64(0xFFFFFFFFFFFFFFFF), uint64(0xFF)),
		Entry("halfword", uint64(0x8001), 2, uint64(0xFFFFFFFFFFFF8001), uint64(0x8001)),
		Entry("word", uint64(0x80000000), 4, uint64(0xFFFFFFFF80000000), uint64(0x80000000)),
	)

	DescribeTable("top-bit-clear values",
		func(raw uint64, size int, want uint64) {
			Expect(emu.Extend(raw, size, true)).To(Equal(want))
			Expect(emu.Extend(raw, size, false)).To(Equal(want))
		},
		Entry("byte", uint64(0x7F), 1, uint64(0x7F)),
		Entry("halfword", uint64(0x7FFF), 2, uint64(0x7FFF)),
		Entry("word", uint64(0x7FFFFFFF), 4, uint64(0x7FFFFFFF)),
	)

	It("should truncate bits above the size", func() {
		Expect(emu.Extend(0x1234_5678_9ABC_DEF0, 1, false)).To(Equal(uint64(0xF0)))
		Expect(emu.Extend(0x1234_5678_9ABC_DEF0, 2, true)).To(Equal(uint64(0xFFFFFFFFFFFFDEF0)))
		Expect(emu.Extend(0x1234_5678_1ABC_DEF0, 4, true)).To(Equal(uint64(0x1ABCDEF0)))
	})

	It("should panic on an invalid size", func() {
		Expect(func() { emu.Extend(1, 3, true) }).To(Panic())
		Expect(func() { emu.Extend(1, 0, false) }).To(Panic())
	})
})
