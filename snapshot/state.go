// Package snapshot captures and restores VM state and persists it in a
// pebble database.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

var (
	// ErrNotFound is returned for a snapshot name the store does not hold.
	ErrNotFound = errors.New("snapshot: not found")
	// ErrCorrupt is returned when stored bytes do not decode.
	ErrCorrupt = errors.New("snapshot: corrupt")
	// ErrProgramMismatch is returned when a snapshot is restored over a
	// different program than it was captured from.
	ErrProgramMismatch = errors.New("snapshot: program mismatch")
)

// Hash is a blake2b-256 digest.
type Hash [32]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// ProgramHash returns the digest identifying a program image.
func ProgramHash(code []byte) Hash {
	return blake2b.Sum256(code)
}

// State is the complete architectural state of a VM.
type State struct {
	CPU         emu.CPU
	Status      emu.Status
	Regions     []mem.Region
	Memory      []byte
	ProgramHash Hash
}

// Capture copies the state of vm.
func Capture(vm *emu.VM) *State {
	memory := vm.Memory()
	contents := memory.Bytes()

	code := memory.Region(mem.Code)
	var image []byte
	if !code.Empty() && code.Limit() <= uint64(len(contents)) {
		image = contents[code.Start:code.Limit()]
	}

	return &State{
		CPU:         *vm.CPU(),
		Status:      vm.Status(),
		Regions:     memory.Regions(),
		Memory:      contents,
		ProgramHash: ProgramHash(image),
	}
}

// Restore overwrites vm with the captured state. The VM must have been
// created with the same memory configuration.
func (s *State) Restore(vm *emu.VM) error {
	if err := vm.Memory().Restore(s.Memory, s.Regions); err != nil {
		return err
	}
	*vm.CPU() = s.CPU
	vm.SetStatus(s.Status)
	return nil
}

// RestoreProgram is Restore that first checks the snapshot was taken of the
// given program image.
func (s *State) RestoreProgram(vm *emu.VM, code []byte) error {
	if got := ProgramHash(code); got != s.ProgramHash {
		return fmt.Errorf("%w: snapshot of %v, program is %v", ErrProgramMismatch, s.ProgramHash, got)
	}
	return s.Restore(vm)
}

const (
	magic   = "r32s"
	version = 1

	// numRegions is the Code, Data, Heap, Stack layout mem.Manager restores.
	numRegions = int(mem.Stack) + 1
	// MaxMemorySize bounds the address space a snapshot may describe.
	MaxMemorySize = 1 << 30
)

// header is the fixed-size part of the encoding.
type header struct {
	Magic            [4]byte
	Version          uint8
	Halted           uint8
	Flags            uint32
	PC               uint32
	Regs             [insts.NumRegisters]uint32
	InstructionCount uint64
	MemorySize       uint32
	NumRegions       uint8
	ProgramHash      Hash
}

type region struct {
	Kind        uint8
	Permissions uint8
	Start       uint32
	Size        uint32
}

// MarshalMeta encodes everything but the memory contents.
func (s *State) MarshalMeta() ([]byte, error) {
	h := header{
		Version:          version,
		Flags:            uint32(s.CPU.Flags),
		PC:               s.CPU.PC,
		Regs:             s.CPU.Regs,
		InstructionCount: s.Status.InstructionCount,
		MemorySize:       uint32(len(s.Memory)),
		NumRegions:       uint8(len(s.Regions)),
		ProgramHash:      s.ProgramHash,
	}
	copy(h.Magic[:], magic)
	if s.Status.Halted {
		h.Halted = 1
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	for _, r := range s.Regions {
		rec := region{
			Kind:        uint8(r.Kind),
			Permissions: uint8(r.Permissions),
			Start:       r.Start,
			Size:        r.Size,
		}
		if err := binary.Write(buf, binary.LittleEndian, &rec); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalMeta decodes MarshalMeta output. Memory is allocated zeroed at
// the recorded size, which may not exceed MaxMemorySize.
func (s *State) UnmarshalMeta(data []byte) error {
	r := bytes.NewReader(data)

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if string(h.Magic[:]) != magic || h.Version != version {
		return fmt.Errorf("%w: bad header %q v%d", ErrCorrupt, h.Magic[:], h.Version)
	}
	if int(h.NumRegions) != numRegions {
		return fmt.Errorf("%w: %d regions", ErrCorrupt, h.NumRegions)
	}
	if h.MemorySize == 0 || h.MemorySize > MaxMemorySize {
		return fmt.Errorf("%w: memory size %d", ErrCorrupt, h.MemorySize)
	}

	regions := make([]mem.Region, numRegions)
	for i := range regions {
		var rec region
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("%w: region %d: %v", ErrCorrupt, i, err)
		}
		regions[i] = mem.Region{
			Kind:        mem.RegionKind(rec.Kind),
			Permissions: mem.Permission(rec.Permissions),
			Start:       rec.Start,
			Size:        rec.Size,
		}
		if regions[i].Kind != mem.RegionKind(i) || regions[i].Limit() > uint64(h.MemorySize) {
			return fmt.Errorf("%w: region %d out of place", ErrCorrupt, i)
		}
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}

	*s = State{
		CPU: emu.CPU{
			Regs:  h.Regs,
			PC:    h.PC,
			Flags: emu.Flags(h.Flags),
		},
		Status: emu.Status{
			Halted:           h.Halted != 0,
			InstructionCount: h.InstructionCount,
		},
		Regions:     regions,
		Memory:      make([]byte, h.MemorySize),
		ProgramHash: h.ProgramHash,
	}

	return nil
}
