package emu

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv64sim/insts"
)

// MemAccess describes the data access performed by a load or store.
type MemAccess struct {
	Addr  uint64
	Size  int
	Store bool
	// Value is the raw value read (before extension) or written.
	Value uint64
}

// StepEvent describes one committed instruction.
type StepEvent struct {
	PC     uint64
	NextPC uint64
	Inst   *insts.Instruction
	// Access is nil unless the instruction was a load or a store.
	Access *MemAccess
}

// Taken reports whether control left the sequential path.
func (e StepEvent) Taken() bool {
	return e.NextPC != e.PC+e.Inst.Length
}

// Observer receives execution events from the Emulator. Callbacks run
// synchronously inside Step.
type Observer interface {
	OnStep(ev StepEvent)
	OnFault(f *Fault)
}

type nopObserver struct{}

func (nopObserver) OnStep(StepEvent) {}
func (nopObserver) OnFault(*Fault)   {}

type multiObserver []Observer

func (m multiObserver) OnStep(ev StepEvent) {
	for _, o := range m {
		o.OnStep(ev)
	}
}

func (m multiObserver) OnFault(f *Fault) {
	for _, o := range m {
		o.OnFault(f)
	}
}

// Observers fans events out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// TraceObserver logs every step at verbosity 1 and every fault at
// verbosity 0.
type TraceObserver struct {
	logger logr.Logger
}

// NewTraceObserver creates a TraceObserver writing to logger.
func NewTraceObserver(logger logr.Logger) *TraceObserver {
	return &TraceObserver{logger: logger}
}

// OnStep implements Observer.
func (t *TraceObserver) OnStep(ev StepEvent) {
	log := t.logger.V(1)
	if !log.Enabled() {
		return
	}

	kv := []any{
		"pc", hex(ev.PC),
		"next", hex(ev.NextPC),
		"op", ev.Inst.Opcode.String(),
		"raw", hex(uint64(ev.Inst.Raw)),
	}
	if ev.Inst.IsCompressed() {
		kv = append(kv, "compressed", hex(uint64(ev.Inst.Compressed)))
	}
	if ev.Access != nil {
		kv = append(kv,
			"addr", hex(ev.Access.Addr),
			"size", ev.Access.Size,
			"store", ev.Access.Store,
			"value", hex(ev.Access.Value))
	}
	log.Info("step", kv...)
}

// OnFault implements Observer.
func (t *TraceObserver) OnFault(f *Fault) {
	t.logger.Info("fault", "stage", f.Stage.String(), "pc", hex(f.PC), "err", f.Err.Error())
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
