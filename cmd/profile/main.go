// Package main provides a profiling wrapper for r32vm to find hot spots in
// the VM and timing core.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/loader"
	"github.com/sarchlab/r32vm/mem"
	"github.com/sarchlab/r32vm/timing/cache"
	"github.com/sarchlab/r32vm/timing/core"
)

var (
	timing      = flag.Bool("timing", false, "Profile the timing core instead of the bare VM")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run")
	instruction = flag.Uint64("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.{bin,hex,s}>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Instructions in image: %d\n", prog.Instructions())

	vm, err := emu.NewVM(mem.DefaultConfig(), emu.WithMaxInstructions(*instruction))
	if err == nil {
		err = prog.LoadInto(vm)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	if *timing {
		err = runTimingProfile(ctx, vm)
	} else {
		err = vm.RunContext(ctx)
	}
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Printf("\nTimeout reached after %v - stopped execution\n", *duration)
	case errors.Is(err, emu.ErrInstructionLimit):
		fmt.Printf("\nInstruction limit reached\n")
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	instrCount := vm.InstructionCount()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Halted: %v\n", vm.Halted())
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runTimingProfile drives vm through a core with the default data cache.
func runTimingProfile(ctx context.Context, vm *emu.VM) error {
	dcache, err := cache.New(cache.DefaultL1DConfig())
	if err != nil {
		return err
	}

	c := core.NewCore(vm, core.WithDataCache(dcache))
	err = c.RunContext(ctx)

	stats := c.Stats()
	fmt.Printf("Cycles: %d  CPI: %.3f\n", stats.Cycles, stats.CPI())
	return err
}
