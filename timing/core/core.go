// Package core provides the cycle-accounting CPU core model. It drives a
// functional emu.VM one instruction at a time and charges each instruction
// the cycles given by the latency table and, for loads and stores, the data
// cache.
package core

import (
	"context"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/timing/cache"
	"github.com/sarchlab/r32vm/timing/latency"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Loads and Stores count retired memory instructions.
	Loads  uint64
	Stores uint64
	// CacheHits and CacheMisses count data cache outcomes.
	CacheHits   uint64
	CacheMisses uint64
	// Stalls is the number of cycles spent beyond one per instruction.
	Stalls uint64
}

// CPI returns cycles per instruction, or 0 before anything retired.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core is a timing model wrapped around a functional VM.
type Core struct {
	vm      *emu.VM
	latency *latency.Table
	dcache  *cache.Cache

	stats Stats
}

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithLatencyTable replaces the default latency table.
func WithLatencyTable(table *latency.Table) Option {
	return func(c *Core) {
		c.latency = table
	}
}

// WithDataCache models loads and stores through dcache instead of the
// latency table's flat load/store latencies.
func WithDataCache(dcache *cache.Cache) Option {
	return func(c *Core) {
		c.dcache = dcache
	}
}

// NewCore creates a Core that drives vm.
func NewCore(vm *emu.VM, opts ...Option) *Core {
	c := &Core{
		vm:      vm,
		latency: latency.NewTable(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// VM returns the functional VM the core drives.
func (c *Core) VM() *emu.VM {
	return c.vm
}

// DataCache returns the modeled data cache, or nil.
func (c *Core) DataCache() *cache.Cache {
	return c.dcache
}

// Halted returns true if the VM has halted.
func (c *Core) Halted() bool {
	return c.vm.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Tick retires one instruction and charges its cycles. Nothing is charged
// for an instruction that faults.
func (c *Core) Tick() error {
	if c.vm.Halted() {
		return emu.ErrHalted
	}

	inst, err := c.vm.Fetch()
	if err != nil {
		return err
	}

	// The base register may be overwritten by the instruction itself.
	var addr uint32
	if c.latency.IsMemoryOp(&inst) {
		regs := c.vm.Registers()
		addr = regs.ReadReg(inst.BaseRegister()) + uint32(inst.Imm.Value())
	}

	if err := c.vm.Step(); err != nil {
		return err
	}

	cycles := c.charge(&inst, addr)
	c.stats.Cycles += cycles
	c.stats.Stalls += cycles - 1
	c.stats.Instructions++

	return nil
}

func (c *Core) charge(inst *insts.Instruction, addr uint32) uint64 {
	cycles := c.latency.GetLatency(inst)
	if !c.latency.IsMemoryOp(inst) {
		return cycles
	}

	if c.latency.IsLoadOp(inst) {
		c.stats.Loads++
	} else {
		c.stats.Stores++
	}

	if c.dcache == nil {
		return cycles
	}

	var result cache.AccessResult
	if c.latency.IsLoadOp(inst) {
		result = c.dcache.Read(addr)
	} else {
		result = c.dcache.Write(addr)
	}

	if result.Hit {
		c.stats.CacheHits++
	} else {
		c.stats.CacheMisses++
	}

	return max(result.Latency, 1)
}

// Run ticks until the VM halts or an error occurs.
func (c *Core) Run() error {
	return c.RunContext(context.Background())
}

// RunContext is Run with cancellation checked between instructions.
func (c *Core) RunContext(ctx context.Context) error {
	for !c.vm.Halted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles ticks until at least cycles more cycles have elapsed or the VM
// halts. It returns true if the VM is still running.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	target := c.stats.Cycles + cycles
	for !c.vm.Halted() && c.stats.Cycles < target {
		if err := c.Tick(); err != nil {
			return false, err
		}
	}
	return !c.vm.Halted(), nil
}

// Reset resets the VM, the data cache and the statistics.
func (c *Core) Reset() {
	c.vm.Reset()
	if c.dcache != nil {
		c.dcache.Reset()
	}
	c.stats = Stats{}
}
