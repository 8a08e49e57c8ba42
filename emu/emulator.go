package emu

import (
	"github.com/sarchlab/rv64sim/insts"
)

// DefaultFaultVector is the address the PC moves to when a step faults,
// unless configured otherwise.
const DefaultFaultVector = 0

// Emulator executes RV64I and RV64C instructions functionally, one
// instruction per Step.
type Emulator struct {
	regFile *RegFile
	memory  Memory
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	observer    Observer
	faultVector uint64
	bootAddress uint64
	haltOnFault bool

	// Execution state
	instructionCount uint64
	faultCount       uint64
	lastFault        *Fault
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory sets the memory the emulator executes from. The default is a
// FlatMemory of DefaultMemorySize bytes.
func WithMemory(m Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithBootAddress sets the initial PC.
func WithBootAddress(addr uint64) EmulatorOption {
	return func(e *Emulator) {
		e.bootAddress = addr
	}
}

// WithFaultVector sets the PC a faulting step redirects to.
func WithFaultVector(addr uint64) EmulatorOption {
	return func(e *Emulator) {
		e.faultVector = addr
	}
}

// WithObserver attaches an observer. Repeated use attaches several
// observers, notified in order.
func WithObserver(o Observer) EmulatorOption {
	return func(e *Emulator) {
		e.observer = Observers(e.observer, o)
	}
}

// WithHaltOnFault makes Run stop after the first faulting step.
func WithHaltOnFault(halt bool) EmulatorOption {
	return func(e *Emulator) {
		e.haltOnFault = halt
	}
}

// NewEmulator creates a new RV64 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		decoder:     insts.NewDecoder(),
		faultVector: DefaultFaultVector,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}

	e.regFile = NewRegFile(e.bootAddress)
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() Memory {
	return e.memory
}

// InstructionCount returns the number of instructions committed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// FaultCount returns the number of steps that faulted.
func (e *Emulator) FaultCount() uint64 {
	return e.faultCount
}

// LastFault returns the most recent fault, or nil if the emulator has
// never faulted.
func (e *Emulator) LastFault() *Fault {
	return e.lastFault
}

// FaultVector returns the PC a faulting step redirects to.
func (e *Emulator) FaultVector() uint64 {
	return e.faultVector
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint64) {
	e.regFile.PC = pc
}

// LoadProgram copies program into memory at entry and sets the PC to
// entry.
func (e *Emulator) LoadProgram(entry uint64, program []byte) error {
	if err := LoadBytes(e.memory, entry, program); err != nil {
		return err
	}
	e.regFile.PC = entry
	return nil
}

// Reset clears the register file and counters and sets the PC to the boot
// address. Memory is left untouched.
func (e *Emulator) Reset() {
	e.regFile.Reset(e.bootAddress)
	e.instructionCount = 0
	e.faultCount = 0
	e.lastFault = nil
}

// Step executes a single instruction. A step that faults writes no
// register and sets the PC to the fault vector; the fault is reported to
// the observer and kept as LastFault.
func (e *Emulator) Step() {
	pc := e.regFile.PC

	ev, fault := e.step(pc)
	if fault != nil {
		e.regFile.PC = e.faultVector
		e.faultCount++
		e.lastFault = fault
		e.observer.OnFault(fault)
		return
	}

	e.instructionCount++
	e.observer.OnStep(ev)
}

// Run executes up to maxSteps steps and returns the number taken. With
// WithHaltOnFault it returns early after the first faulting step.
func (e *Emulator) Run(maxSteps uint64) uint64 {
	var n uint64
	for n < maxSteps {
		faults := e.faultCount
		e.Step()
		n++
		if e.haltOnFault && e.faultCount != faults {
			break
		}
	}
	return n
}

// outcome is the effect of one instruction, applied by commit.
type outcome struct {
	rd      uint8
	value   uint64
	writeRd bool
	nextPC  uint64
	access  *MemAccess
}

func (e *Emulator) step(pc uint64) (StepEvent, *Fault) {
	word, err := e.fetch(pc)
	if err != nil {
		return StepEvent{}, &Fault{Stage: StageFetch, PC: pc, Err: err}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepEvent{}, &Fault{Stage: StageDecode, PC: pc, Err: err}
	}

	out, err := e.execute(inst, pc)
	if err != nil {
		return StepEvent{}, &Fault{Stage: StageExecute, PC: pc, Inst: inst, Err: err}
	}

	e.commit(out)

	return StepEvent{PC: pc, NextPC: out.nextPC, Inst: inst, Access: out.access}, nil
}

// fetch reads the instruction at pc. The low halfword is read first; the
// high halfword is read only when the low one does not mark a compressed
// instruction.
func (e *Emulator) fetch(pc uint64) (uint32, error) {
	if pc&1 != 0 {
		return 0, &AccessError{Op: "fetch", Addr: pc, Size: 2, Err: ErrMisaligned}
	}

	lo, err := e.memory.Read(pc, 2)
	if err != nil {
		return 0, err
	}
	if insts.IsCompressed(uint32(lo)) {
		return uint32(lo), nil
	}

	hi, err := e.memory.Read(pc+2, 2)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// commit is the only place an instruction's register result and next PC
// become architectural state.
func (e *Emulator) commit(out outcome) {
	if out.writeRd {
		e.regFile.WriteReg(out.rd, out.value)
	}
	e.regFile.PC = out.nextPC
}

// execute computes the effect of inst at pc. Stores reach memory here;
// everything else is deferred to commit.
func (e *Emulator) execute(inst *insts.Instruction, pc uint64) (outcome, error) {
	out := outcome{rd: inst.Rd, nextPC: pc + inst.Length}

	var err error
	switch inst.Opcode {
	case insts.OpcodeLoad:
		out.value, out.access, err = e.lsu.Load(inst)
		out.writeRd = true
	case insts.OpcodeStore:
		out.access, err = e.lsu.Store(inst)
	case insts.OpcodeLui:
		out.value, out.writeRd = e.alu.Lui(inst), true
	case insts.OpcodeAuiPC:
		out.value, out.writeRd = e.alu.AuiPC(inst, pc), true
	case insts.OpcodeOpImm:
		out.value, err = e.alu.OpImm(inst)
		out.writeRd = true
	case insts.OpcodeOpImm32:
		out.value, err = e.alu.OpImm32(inst)
		out.writeRd = true
	case insts.OpcodeOp:
		out.value, err = e.alu.Op(inst)
		out.writeRd = true
	case insts.OpcodeOp32:
		out.value, err = e.alu.Op32(inst)
		out.writeRd = true
	case insts.OpcodeBranch:
		out.nextPC, err = e.branchUnit.Branch(inst, pc)
	case insts.OpcodeJal:
		out.value, out.nextPC = e.branchUnit.Jal(inst, pc)
		out.writeRd = true
	case insts.OpcodeJalr:
		out.value, out.nextPC, err = e.branchUnit.Jalr(inst, pc)
		out.writeRd = true
	case insts.OpcodeUnknown:
		err = ErrUnknownOpcode
	default:
		err = ErrUnimplementedOpcode
	}

	return out, err
}
