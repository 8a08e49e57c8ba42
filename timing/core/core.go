// Package core provides a cycle-level CPU core model.
// It drives the functional emulator and charges cycles for every event the
// emulator reports.
package core

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/rv64sim/emu"
	"github.com/sarchlab/rv64sim/timing/cache"
	"github.com/sarchlab/rv64sim/timing/latency"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Faults is the number of steps redirected to the fault vector.
	Faults uint64
	// Loads and Stores count retired memory instructions.
	Loads  uint64
	Stores uint64
	// TakenBranches counts control transfers that left the sequential path.
	TakenBranches uint64
	// Mispredictions counts control transfers the branch predictor got
	// wrong. It stays 0 without a predictor.
	Mispredictions uint64
	// Stalls is the number of cycles beyond one per retired instruction.
	Stalls uint64
}

// CPI returns cycles per retired instruction, or 0 before the first one.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core is an in-order scalar timing model. It observes the emulator it
// owns and accumulates cycles from a latency table, an optional L1 data
// cache and the branch and fault penalties.
//
// Without a branch predictor every taken control transfer pays the
// taken-branch penalty. With one, only mispredicted transfers pay it.
type Core struct {
	emulator  *emu.Emulator
	memory    emu.Memory
	table     *latency.Table
	dcache    *cache.Cache
	predictor *Predictor
	logger    logr.Logger

	emuOpts []emu.EmulatorOption
	stats   Stats
}

// Option configures a Core.
type Option func(*Core)

// WithLatencyTable sets the latency table. The default is latency.NewTable().
func WithLatencyTable(t *latency.Table) Option {
	return func(c *Core) {
		c.table = t
	}
}

// WithDataCache attaches an L1 data cache with the given geometry, backed
// by the core's memory. Loads then cost the cache's hit or miss latency.
func WithDataCache(config cache.Config) Option {
	return func(c *Core) {
		c.dcache = cache.New(config, cache.NewMemoryBacking(c.memory))
	}
}

// WithBranchPredictor attaches a bimodal branch predictor with the given
// table sizes.
func WithBranchPredictor(config PredictorConfig) Option {
	return func(c *Core) {
		c.predictor = NewPredictor(config)
	}
}

// WithLogger sets the logger used for cache errors.
func WithLogger(logger logr.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithEmulatorOptions passes options through to the emulator. WithMemory
// is applied by the core and must not be given here.
func WithEmulatorOptions(opts ...emu.EmulatorOption) Option {
	return func(c *Core) {
		c.emuOpts = append(c.emuOpts, opts...)
	}
}

// NewCore creates a new Core executing from memory.
func NewCore(memory emu.Memory, opts ...Option) *Core {
	c := &Core{
		memory: memory,
		table:  latency.NewTable(),
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	emuOpts := append([]emu.EmulatorOption{emu.WithMemory(memory)}, c.emuOpts...)
	emuOpts = append(emuOpts, emu.WithObserver(c))
	c.emulator = emu.NewEmulator(emuOpts...)

	return c
}

// Emulator returns the functional emulator the core drives.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// DataCache returns the L1 data cache, or nil if none is attached.
func (c *Core) DataCache() *cache.Cache {
	return c.dcache
}

// Predictor returns the branch predictor, or nil if none is attached.
func (c *Core) Predictor() *Predictor {
	return c.predictor
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint64) {
	c.emulator.SetPC(pc)
}

// Tick executes one instruction.
func (c *Core) Tick() {
	c.emulator.Step()
}

// Run executes up to maxSteps instructions and returns the number of
// steps taken.
func (c *Core) Run(maxSteps uint64) uint64 {
	return c.emulator.Run(maxSteps)
}

// RunCycles steps until at least cycles more cycles have elapsed. The last
// instruction may overshoot the budget.
func (c *Core) RunCycles(cycles uint64) {
	target := c.stats.Cycles + cycles
	for c.stats.Cycles < target {
		c.emulator.Step()
	}
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Reset clears the statistics, the emulator's registers and the data
// cache. Dirty cache lines are discarded; memory already holds every
// stored value.
func (c *Core) Reset() {
	c.stats = Stats{}
	c.emulator.Reset()
	if c.dcache != nil {
		c.dcache.Reset()
	}
	if c.predictor != nil {
		c.predictor.Reset()
	}
}

// OnStep implements emu.Observer.
func (c *Core) OnStep(ev emu.StepEvent) {
	lat := c.table.GetLatency(ev.Inst)
	config := c.table.Config()

	if ev.Access != nil {
		lat = c.memoryLatency(ev.Access, lat)
	}

	if c.table.IsBranchOp(ev.Inst) {
		lat += c.branchPenalty(ev, config.BranchTakenPenalty)
	}

	c.stats.Instructions++
	c.stats.Cycles += lat
	c.stats.Stalls += lat - 1
}

// OnFault implements emu.Observer. A faulting step occupies one cycle
// plus the fault penalty.
func (c *Core) OnFault(*emu.Fault) {
	c.stats.Faults++
	c.stats.Cycles += 1 + c.table.Config().FaultPenalty
}

func (c *Core) branchPenalty(ev emu.StepEvent, penalty uint64) uint64 {
	taken := ev.Taken()
	if taken {
		c.stats.TakenBranches++
	}

	if c.predictor == nil {
		if taken {
			return penalty
		}
		return 0
	}

	pred := c.predictor.Predict(ev.PC)
	c.predictor.Update(ev.PC, taken, ev.NextPC)
	if pred.Correct(taken, ev.NextPC) {
		return 0
	}
	c.stats.Mispredictions++
	return penalty
}

func (c *Core) memoryLatency(access *emu.MemAccess, lat uint64) uint64 {
	if access.Store {
		c.stats.Stores++
	} else {
		c.stats.Loads++
	}

	if c.dcache == nil {
		return lat
	}

	var (
		r   cache.AccessResult
		err error
	)
	if access.Store {
		_, err = c.dcache.Write(access.Addr, access.Size, access.Value)
	} else {
		r, err = c.dcache.Read(access.Addr, access.Size)
	}
	if err != nil {
		c.logger.Error(err, "data cache access failed", "addr", access.Addr)
		return lat
	}
	if access.Store {
		return lat
	}
	return r.Latency
}
