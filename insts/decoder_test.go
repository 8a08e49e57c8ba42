package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv64sim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Canonical instructions", func() {
		// addi x1, x0, 5 -> 0x00500093
		It("should decode addi x1, x0, 5", func() {
			inst, err := decoder.Decode(0x00500093)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeOpImm))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Funct3).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(int64(5)))
			Expect(inst.Length).To(Equal(uint64(4)))
			Expect(inst.IsCompressed()).To(BeFalse())
		})

		// lbu x2, 0(x0) -> 0x00004103
		It("should decode lbu x2, 0(x0)", func() {
			inst, err := decoder.Decode(0x00004103)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeLoad))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Funct3).To(Equal(uint8(0b100)))
			Expect(inst.Imm).To(BeZero())
		})

		// srai x5, x6, 3 -> 0x40335293
		It("should keep funct7 for shift-immediate forms", func() {
			inst, err := decoder.Decode(0x40335293)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeOpImm))
			Expect(inst.Funct3).To(Equal(uint8(0b101)))
			Expect(inst.Funct7).To(Equal(uint8(0b0100000)))
		})

		// sd x2, 8(x1) -> 0x0020B423
		It("should decode sd x2, 8(x1)", func() {
			inst, err := decoder.Decode(0x0020B423)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeStore))
			Expect(inst.Format).To(Equal(insts.FormatS))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(int64(8)))
			Expect(inst.WritesRd()).To(BeFalse())
		})

		// beq x1, x2, -4 -> 0xFE208EE3
		It("should decode beq x1, x2, -4", func() {
			inst, err := decoder.Decode(0xFE208EE3)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeBranch))
			Expect(inst.Imm).To(Equal(int64(-4)))
		})

		// lui x5, 0xFFFFF -> 0xFFFFF2B7
		It("should sign-extend the upper immediate", func() {
			inst, err := decoder.Decode(0xFFFFF2B7)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeLui))
			Expect(inst.Imm).To(Equal(int64(-4096)))
		})

		// jal x1, 2048 -> 0x001000EF
		It("should decode jal x1, 2048", func() {
			inst, err := decoder.Decode(0x001000EF)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeJal))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int64(2048)))
		})

		It("should return unknown for unrecognized opcodes without failing", func() {
			inst, err := decoder.Decode(0x0000007F)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeUnknown))
			Expect(inst.Format).To(Equal(insts.FormatUnknown))
		})
	})

	Describe("Compressed instructions", func() {
		It("should expand c.li x1, 5 and record the original encoding", func() {
			// Upper halfword belongs to the next instruction and must be ignored.
			inst, err := decoder.Decode(0xDEAD4095)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Opcode).To(Equal(insts.OpcodeOpImm))
			Expect(inst.Raw).To(Equal(uint32(0x00500093)))
			Expect(inst.Compressed).To(Equal(uint16(0x4095)))
			Expect(inst.Length).To(Equal(uint64(2)))
			Expect(inst.IsCompressed()).To(BeTrue())
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int64(5)))
		})

		It("should report unsupported compact encodings", func() {
			inst, err := decoder.Decode(0x00002000) // c.fld

			Expect(err).To(MatchError(insts.ErrUnsupportedCompressed))
			Expect(inst).To(BeNil())
		})
	})
})
