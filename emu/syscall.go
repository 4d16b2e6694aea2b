package emu

import "github.com/sarchlab/r32vm/mem"

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Halted is true if the syscall stops the machine.
	Halted bool
}

// SyscallHandler is the interface for handling the Syscall instruction.
// Handlers see the CPU with PC already past the Syscall instruction.
type SyscallHandler interface {
	Handle(cpu *CPU, memory *mem.Manager) (SyscallResult, error)
}

// SyscallHandlerFunc adapts a function to SyscallHandler.
type SyscallHandlerFunc func(cpu *CPU, memory *mem.Manager) (SyscallResult, error)

// Handle calls f.
func (f SyscallHandlerFunc) Handle(cpu *CPU, memory *mem.Manager) (SyscallResult, error) {
	return f(cpu, memory)
}

// HaltHandler is the default syscall handler. Every syscall halts the VM;
// there is no dispatch on a syscall number.
type HaltHandler struct{}

// Handle halts.
func (HaltHandler) Handle(*CPU, *mem.Manager) (SyscallResult, error) {
	return SyscallResult{Halted: true}, nil
}
