// Package main provides the entry point for rv64sim.
// rv64sim is an instruction-level RV64I/RV64C simulator with an optional
// timing model.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv64sim/config"
	"github.com/sarchlab/rv64sim/emu"
	"github.com/sarchlab/rv64sim/insts"
	"github.com/sarchlab/rv64sim/loader"
	"github.com/sarchlab/rv64sim/timing/core"
	"github.com/sarchlab/rv64sim/timing/latency"
)

// options holds the command line settings shared by the subcommands.
type options struct {
	configPath  string
	verbose     int
	maxSteps    uint64
	faultVector uint64
	haltOnFault bool
	timing      bool
	trace       bool
	memoryKind  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "rv64sim",
		Short: "RV64I/RV64C instruction-level simulator",
		Long: `rv64sim executes RISC-V RV64I and RV64C programs loaded from ELF
files, one instruction per step, and optionally models cycle timing.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON configuration file")
	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	rootCmd.AddCommand(newRunCmd(opts), newDecodeCmd())
	return rootCmd
}

func newRunCmd(opts *options) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <program.elf>",
		Short: "Load an ELF program and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolveConfig(cmd)
			if err != nil {
				return err
			}

			verbosity := opts.verbose
			if cfg.Trace && verbosity < 1 {
				verbosity = 1
			}
			logger := newLogger(cmd.ErrOrStderr(), verbosity)

			return runProgram(cmd.OutOrStdout(), cfg, args[0], logger)
		},
	}

	runCmd.Flags().Uint64Var(&opts.maxSteps, "max-steps", 0, "Maximum number of steps (overrides config)")
	runCmd.Flags().Uint64Var(&opts.faultVector, "fault-vector", 0, "PC a faulting step redirects to (overrides config)")
	runCmd.Flags().BoolVar(&opts.haltOnFault, "halt-on-fault", false, "Stop at the first fault")
	runCmd.Flags().BoolVar(&opts.timing, "timing", false, "Enable the timing model")
	runCmd.Flags().BoolVar(&opts.trace, "trace", false, "Log every executed instruction")
	runCmd.Flags().StringVar(&opts.memoryKind, "memory", "", "Memory backend: flat or paged (overrides config)")

	return runCmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <word>...",
		Short: "Decode instruction words given in hex",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeWords(cmd.OutOrStdout(), args)
		},
	}
}

// resolveConfig loads the configuration file, if any, and applies the
// flags the user set explicitly.
func (o *options) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("max-steps") {
		cfg.MaxSteps = o.maxSteps
	}
	if flags.Changed("fault-vector") {
		cfg.FaultVector = o.faultVector
	}
	if flags.Changed("halt-on-fault") {
		cfg.HaltOnFault = o.haltOnFault
	}
	if flags.Changed("timing") {
		cfg.Timing.Enabled = o.timing
	}
	if flags.Changed("trace") {
		cfg.Trace = o.trace
	}
	if flags.Changed("memory") {
		cfg.Memory.Backend = o.memoryKind
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns a logger writing text records to w. Verbosity n
// enables logr V(n) and below.
func newLogger(w io.Writer, verbosity int) logr.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.Level(-verbosity),
	})
	return logr.FromSlogHandler(handler)
}

// runProgram loads the program at path and runs it in functional or
// timing mode, then prints a report to out.
func runProgram(out io.Writer, cfg *config.Config, path string, logger logr.Logger) error {
	memory := cfg.NewMemory()

	prog, err := loader.Load(path, memory, logger)
	if err != nil {
		return fmt.Errorf("error loading program: %w", err)
	}
	logger.V(1).Info("program loaded",
		"path", path, "entry", fmt.Sprintf("%#x", prog.EntryPoint),
		"sections", len(prog.Sections))

	// Faults log at V(0); steps need V(1), which --trace turns on.
	emuOpts := append(cfg.EmulatorOptions(),
		emu.WithBootAddress(prog.EntryPoint),
		emu.WithObserver(emu.NewTraceObserver(logger)))

	if cfg.Timing.Enabled {
		return runTiming(out, cfg, path, memory, emuOpts, logger)
	}
	return runEmulation(out, cfg, path, memory, emuOpts)
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(
	out io.Writer,
	cfg *config.Config,
	path string,
	memory emu.Memory,
	emuOpts []emu.EmulatorOption,
) error {
	emulator := emu.NewEmulator(append(emuOpts, emu.WithMemory(memory))...)
	steps := emulator.Run(cfg.MaxSteps)

	fmt.Fprintf(out, "Program: %s\n", path)
	printEmulatorReport(out, emulator, steps)
	return nil
}

// runTiming runs the program under the timing model.
func runTiming(
	out io.Writer,
	cfg *config.Config,
	path string,
	memory emu.Memory,
	emuOpts []emu.EmulatorOption,
	logger logr.Logger,
) error {
	coreOpts := []core.Option{
		core.WithLatencyTable(latency.NewTableWithConfig(&cfg.Timing.Latency)),
		core.WithLogger(logger),
		core.WithEmulatorOptions(emuOpts...),
	}
	if cfg.Timing.DataCache {
		coreOpts = append(coreOpts, core.WithDataCache(cfg.Timing.Cache))
	}
	if cfg.Timing.BranchPredictor {
		coreOpts = append(coreOpts, core.WithBranchPredictor(cfg.Timing.Predictor))
	}

	c := core.NewCore(memory, coreOpts...)
	steps := c.Run(cfg.MaxSteps)

	if dcache := c.DataCache(); dcache != nil {
		if err := dcache.Flush(); err != nil {
			return fmt.Errorf("flushing data cache: %w", err)
		}
	}

	stats := c.Stats()

	fmt.Fprintf(out, "Program: %s\n", path)
	printEmulatorReport(out, c.Emulator(), steps)
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(out, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Breakdown:\n")
	fmt.Fprintf(out, "  Loads:          %d\n", stats.Loads)
	fmt.Fprintf(out, "  Stores:         %d\n", stats.Stores)
	fmt.Fprintf(out, "  Taken branches: %d\n", stats.TakenBranches)
	fmt.Fprintf(out, "  Stall cycles:   %d\n", stats.Stalls)

	if dcache := c.DataCache(); dcache != nil {
		cs := dcache.Stats()
		fmt.Fprintf(out, "\n")
		fmt.Fprintf(out, "L1D:\n")
		fmt.Fprintf(out, "  Hits:       %d\n", cs.Hits)
		fmt.Fprintf(out, "  Misses:     %d\n", cs.Misses)
		fmt.Fprintf(out, "  Hit rate:   %.1f%%\n", 100*cs.HitRate())
		fmt.Fprintf(out, "  Writebacks: %d\n", cs.Writebacks)
	}

	if p := c.Predictor(); p != nil {
		ps := p.Stats()
		fmt.Fprintf(out, "\n")
		fmt.Fprintf(out, "Branch predictor:\n")
		fmt.Fprintf(out, "  Predictions:    %d\n", ps.Predictions)
		fmt.Fprintf(out, "  Accuracy:       %.1f%%\n", ps.Accuracy())
		fmt.Fprintf(out, "  Mispredictions: %d\n", stats.Mispredictions)
	}
	return nil
}

func printEmulatorReport(out io.Writer, e *emu.Emulator, steps uint64) {
	fmt.Fprintf(out, "Steps: %d\n", steps)
	fmt.Fprintf(out, "Instructions executed: %d\n", e.InstructionCount())
	fmt.Fprintf(out, "Faults: %d\n", e.FaultCount())
	if f := e.LastFault(); f != nil {
		fmt.Fprintf(out, "Last fault: %v\n", f)
	}
	fmt.Fprintf(out, "Final PC: 0x%X\n", e.RegFile().PC)

	regs := e.RegFile()
	for i := uint8(1); i < 32; i++ {
		if v := regs.ReadReg(i); v != 0 {
			fmt.Fprintf(out, "  x%-2d = 0x%016X\n", i, v)
		}
	}
}

// decodeWords prints the decoding of each hex instruction word.
func decodeWords(out io.Writer, args []string) error {
	decoder := insts.NewDecoder()

	for _, arg := range args {
		word, err := parseWord(arg)
		if err != nil {
			return err
		}

		inst, err := decoder.Decode(word)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", arg, err)
			continue
		}
		fmt.Fprintln(out, describe(inst))
	}
	return nil
}

func parseWord(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid instruction word %q: %w", s, err)
	}
	return uint32(v), nil
}

func describe(inst *insts.Instruction) string {
	var b strings.Builder
	if inst.IsCompressed() {
		fmt.Fprintf(&b, "%04x -> %08x ", inst.Compressed, inst.Raw)
	} else {
		fmt.Fprintf(&b, "%08x ", inst.Raw)
	}
	fmt.Fprintf(&b, "%s (%s)", inst.Opcode, inst.Format)

	switch inst.Format {
	case insts.FormatR:
		fmt.Fprintf(&b, " rd=x%d rs1=x%d rs2=x%d funct3=%d funct7=%#x",
			inst.Rd, inst.Rs1, inst.Rs2, inst.Funct3, inst.Funct7)
	case insts.FormatI:
		fmt.Fprintf(&b, " rd=x%d rs1=x%d funct3=%d imm=%d",
			inst.Rd, inst.Rs1, inst.Funct3, inst.Imm)
	case insts.FormatS, insts.FormatB:
		fmt.Fprintf(&b, " rs1=x%d rs2=x%d funct3=%d imm=%d",
			inst.Rs1, inst.Rs2, inst.Funct3, inst.Imm)
	case insts.FormatU, insts.FormatJ:
		fmt.Fprintf(&b, " rd=x%d imm=%d", inst.Rd, inst.Imm)
	}
	return b.String()
}
