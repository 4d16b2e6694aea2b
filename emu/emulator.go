package emu

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

var (
	// ErrHalted is returned by Step once the VM has halted.
	ErrHalted = errors.New("emu: vm is halted")

	// ErrInstructionLimit is returned by Step when the configured maximum
	// number of instructions has been executed.
	ErrInstructionLimit = errors.New("emu: instruction limit reached")

	// ErrUnimplemented is returned for a decoded op no execution unit handles.
	ErrUnimplemented = errors.New("emu: unimplemented instruction")
)

// ExecError reports the pc of the instruction that failed.
type ExecError struct {
	PC  uint32
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("pc=0x%08x: %v", e.PC, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Status is the execution bookkeeping that is not part of the CPU.
type Status struct {
	Halted           bool
	InstructionCount uint64
}

// VM executes r32 programs functionally.
type VM struct {
	cpu            CPU
	memory         *mem.Manager
	decoder        *insts.Decoder
	syscallHandler SyscallHandler

	// Execution units
	alu *ALU
	lsu *LoadStoreUnit

	logger  *log.Logger
	verbose bool

	// Execution state
	halted           bool
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithSyscallHandler replaces the default halting syscall handler.
func WithSyscallHandler(handler SyscallHandler) Option {
	return func(vm *VM) {
		vm.syscallHandler = handler
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) Option {
	return func(vm *VM) {
		vm.maxInstructions = max
	}
}

// WithLogger sets the logger used for tracing.
func WithLogger(logger *log.Logger) Option {
	return func(vm *VM) {
		vm.logger = logger
	}
}

// WithVerbose enables a trace line per executed instruction.
func WithVerbose(verbose bool) Option {
	return func(vm *VM) {
		vm.verbose = verbose
	}
}

// NewVM creates a VM with a fresh address space in the Ready state. Every
// register starts at zero except SP, which holds StackStart() &^ 3, the
// highest word-aligned stack slot.
func NewVM(config mem.Config, opts ...Option) (*VM, error) {
	memory, err := mem.NewManager(config)
	if err != nil {
		return nil, err
	}

	vm := &VM{
		memory:         memory,
		decoder:        insts.NewDecoder(),
		syscallHandler: HaltHandler{},
		logger:         log.Default(),
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.alu = NewALU(&vm.cpu.Regs)
	vm.lsu = NewLoadStoreUnit(&vm.cpu.Regs, vm.memory)
	vm.cpu.Reset(vm.initialSP())

	return vm, nil
}

// initialSP is the highest word-aligned stack slot.
func (vm *VM) initialSP() uint32 {
	return vm.memory.StackStart() &^ 3
}

// CPU returns the VM's architectural state.
func (vm *VM) CPU() *CPU {
	return &vm.cpu
}

// Registers returns a copy of the register file.
func (vm *VM) Registers() Registers {
	return vm.cpu.Regs
}

// Memory returns the VM's memory manager.
func (vm *VM) Memory() *mem.Manager {
	return vm.memory
}

// Decoder returns the VM's instruction decoder.
func (vm *VM) Decoder() *insts.Decoder {
	return vm.decoder
}

// Halted reports whether a syscall has stopped the VM.
func (vm *VM) Halted() bool {
	return vm.halted
}

// InstructionCount returns the number of instructions executed.
func (vm *VM) InstructionCount() uint64 {
	return vm.instructionCount
}

// Status returns the execution bookkeeping.
func (vm *VM) Status() Status {
	return Status{Halted: vm.halted, InstructionCount: vm.instructionCount}
}

// SetStatus overwrites the execution bookkeeping, e.g. when restoring a
// snapshot.
func (vm *VM) SetStatus(s Status) {
	vm.halted = s.Halted
	vm.instructionCount = s.InstructionCount
}

// LoadProgram copies a program into the Code region and points PC at its
// first word.
func (vm *VM) LoadProgram(program []byte) error {
	if err := vm.memory.LoadProgram(program); err != nil {
		return err
	}
	vm.cpu.PC = 0

	if vm.verbose {
		vm.logger.Printf("emu: loaded %d instructions", len(program)/insts.InstructionSize)
	}

	return nil
}

// Reset returns the VM to the Ready state, clearing memory and registers. SP
// is set to StackStart() &^ 3 again. The program must be loaded again.
func (vm *VM) Reset() {
	vm.memory.Reset()
	vm.memory.ReserveStack()
	vm.cpu.Reset(vm.initialSP())
	vm.halted = false
	vm.instructionCount = 0

	if vm.verbose {
		vm.logger.Printf("emu: reset")
	}
}

// Fetch decodes the instruction at PC without executing it.
func (vm *VM) Fetch() (insts.Instruction, error) {
	pc := vm.cpu.PC

	word, err := mem.Read[uint32](vm.memory, pc)
	if err != nil {
		return insts.Instruction{}, &ExecError{PC: pc, Err: err}
	}

	inst, err := vm.decoder.Decode(word)
	if err != nil {
		return insts.Instruction{}, &ExecError{PC: pc, Err: err}
	}

	return inst, nil
}

// Step executes a single instruction.
func (vm *VM) Step() error {
	if vm.halted {
		return ErrHalted
	}

	if vm.maxInstructions > 0 && vm.instructionCount >= vm.maxInstructions {
		return ErrInstructionLimit
	}

	pc := vm.cpu.PC

	// 1. Fetch
	word, err := mem.Read[uint32](vm.memory, pc)
	if err != nil {
		return &ExecError{PC: pc, Err: err}
	}
	vm.cpu.PC = pc + insts.InstructionSize

	// 2. Decode
	inst, err := vm.decoder.Decode(word)
	if err != nil {
		return &ExecError{PC: pc, Err: err}
	}

	if vm.verbose {
		vm.logger.Printf("%08x: %08x  %v", pc, word, inst)
	}

	// 3. Execute
	if err := vm.execute(inst); err != nil {
		return &ExecError{PC: pc, Err: err}
	}

	vm.instructionCount++

	return nil
}

// Run executes instructions until the VM halts or an error occurs.
func (vm *VM) Run() error {
	return vm.RunContext(context.Background())
}

// RunContext is Run with cancellation checked between instructions.
func (vm *VM) RunContext(ctx context.Context) error {
	for !vm.halted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := vm.Step(); err != nil {
			return err
		}
	}

	if vm.verbose {
		vm.logger.Printf("emu: halted after %d instructions", vm.instructionCount)
	}

	return nil
}

// execute dispatches a decoded instruction to its execution unit.
func (vm *VM) execute(inst insts.Instruction) error {
	switch {
	case inst.Op == insts.OpSyscall:
		return vm.executeSyscall()
	case inst.IsLoad(), inst.IsStore():
		return vm.lsu.Execute(inst)
	case vm.alu.Execute(inst):
		return nil
	}

	return fmt.Errorf("%w: %v", ErrUnimplemented, inst.Op)
}

func (vm *VM) executeSyscall() error {
	result, err := vm.syscallHandler.Handle(&vm.cpu, vm.memory)
	if err != nil {
		return err
	}

	if result.Halted {
		vm.halted = true
	}

	return nil
}
