// Package main provides the r32vm command line interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/internal/translate"
	"github.com/sarchlab/r32vm/loader"
	"github.com/sarchlab/r32vm/mem"
	"github.com/sarchlab/r32vm/snapshot"
	"github.com/sarchlab/r32vm/timing/cache"
	"github.com/sarchlab/r32vm/timing/core"
	"github.com/sarchlab/r32vm/timing/latency"
)

type options struct {
	configPath       string
	timing           bool
	timingConfigPath string
	maxInstructions  uint64
	snapshotDir      string
	name             string
	resume           bool
	verbose          bool

	// interactive selects locale-formatted numbers.
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to memory configuration JSON file")
	flag.BoolVar(&opts.timing, "timing", false, "Enable cycle accounting")
	flag.StringVar(&opts.timingConfigPath, "timing-config", "", "Path to timing configuration JSON file")
	flag.Uint64Var(&opts.maxInstructions, "max", 0, "Stop after this many instructions (0 for no limit)")
	flag.StringVar(&opts.snapshotDir, "snapshot", "", "Snapshot database directory; the final state is saved there")
	flag.StringVar(&opts.name, "name", "last", "Snapshot name")
	flag.BoolVar(&opts.resume, "resume", false, "Resume from the named snapshot before running")
	flag.BoolVar(&opts.verbose, "v", false, "Trace each executed instruction")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: r32vm [options] <program.{bin,hex,s}>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts.interactive = term.IsTerminal(int(os.Stdout.Fd()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, flag.Arg(0), opts, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the program at path and reports on stdout. It returns the
// process exit code.
func run(ctx context.Context, path string, opts options, stdout, stderr io.Writer) int {
	if opts.resume && opts.snapshotDir == "" {
		fmt.Fprintf(stderr, "Error: -resume requires -snapshot\n")
		return 1
	}

	prog, err := loader.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	memConfig := mem.DefaultConfig()
	if opts.configPath != "" {
		memConfig, err = mem.LoadConfig(opts.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading memory config: %v\n", err)
			return 1
		}
	}

	vm, err := emu.NewVM(memConfig,
		emu.WithMaxInstructions(opts.maxInstructions),
		emu.WithLogger(log.New(stderr, "", 0)),
		emu.WithVerbose(opts.verbose),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating VM: %v\n", err)
		return 1
	}
	if err := prog.LoadInto(vm); err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	var store *snapshot.Store
	if opts.snapshotDir != "" {
		store, err = snapshot.Open(opts.snapshotDir)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()

		if opts.resume {
			if err := resume(store, opts.name, vm, prog); err != nil {
				fmt.Fprintf(stderr, "Error resuming %q: %v\n", opts.name, err)
				return 1
			}
		}
	}

	var stats *core.Stats
	if opts.timing {
		c, err := newCore(vm, opts.timingConfigPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading timing config: %v\n", err)
			return 1
		}
		err = c.RunContext(ctx)
		s := c.Stats()
		stats = &s
		return finish(vm, stats, store, path, opts, err, stdout, stderr)
	}

	err = vm.RunContext(ctx)
	return finish(vm, stats, store, path, opts, err, stdout, stderr)
}

func resume(store *snapshot.Store, name string, vm *emu.VM, prog *loader.Program) error {
	state, err := store.Load(name)
	if err != nil {
		return err
	}
	return state.RestoreProgram(vm, prog.Code)
}

func newCore(vm *emu.VM, configPath string) (*core.Core, error) {
	timingConfig := latency.DefaultTimingConfig()
	if configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	dcache, err := cache.New(cache.DefaultL1DConfig())
	if err != nil {
		return nil, err
	}

	return core.NewCore(vm,
		core.WithLatencyTable(latency.NewTableWithConfig(timingConfig)),
		core.WithDataCache(dcache),
	), nil
}

// finish reports the final state, saves it when a store is open, and maps
// the run error to an exit code.
func finish(
	vm *emu.VM,
	stats *core.Stats,
	store *snapshot.Store,
	path string,
	opts options,
	runErr error,
	stdout, stderr io.Writer,
) int {
	report(stdout, vm, stats, path, opts.interactive)

	code := 0
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		code = 1
		if errors.Is(runErr, context.Canceled) {
			code = 130
		}
	}

	if store != nil {
		if err := store.Save(opts.name, snapshot.Capture(vm)); err != nil {
			fmt.Fprintf(stderr, "Error saving snapshot %q: %v\n", opts.name, err)
			return 1
		}
	}

	return code
}

func report(w io.Writer, vm *emu.VM, stats *core.Stats, path string, interactive bool) {
	printf := func(format string, args ...any) {
		if interactive {
			_, _ = translate.Fprintf(w, format, args...)
			return
		}
		_, _ = fmt.Fprintf(w, format, args...)
	}

	state := "running"
	if vm.Halted() {
		state = "halted"
	}

	printf("Program: %s\n", path)
	printf("State: %s\n", state)
	printf("PC: 0x%08x\n", vm.CPU().PC)
	printf("Instructions: %d\n", vm.InstructionCount())

	if stats != nil {
		printf("Cycles: %d\n", stats.Cycles)
		printf("CPI: %.2f\n", stats.CPI())
		printf("Loads: %d  Stores: %d\n", stats.Loads, stats.Stores)
		printf("Cache hits: %d  misses: %d\n", stats.CacheHits, stats.CacheMisses)
		printf("Stalls: %d\n", stats.Stalls)
	}

	printf("\nRegisters:\n")
	regs := vm.Registers()
	for r := insts.Zero; r < insts.NumRegisters; r++ {
		v := regs.ReadReg(r)
		printf("  %-4s 0x%08x %11d\n", r, v, int32(v))
	}
}
