// Package loader reads r32 program files.
//
// Three formats are recognized by file extension:
//
//	.bin  raw little-endian instruction words
//	.hex  one 0x-prefixed word per line, '#' starts a comment; words after a
//	      ".data" line form the initialized data segment
//	.s    assembly source, see package asm
package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarchlab/r32vm/asm"
	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
)

// ErrUnknownFormat is returned for a file extension the loader does not
// recognize.
var ErrUnknownFormat = errors.New("loader: unknown program format")

// Format is a program file format.
type Format int

// Program file formats.
const (
	FormatBinary Format = iota
	FormatHex
	FormatAssembly
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		return FormatBinary, nil
	case ".hex":
		return FormatHex, nil
	case ".s", ".asm":
		return FormatAssembly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Program is a program ready to be loaded into a VM.
type Program struct {
	// Code holds little-endian instruction words.
	Code []byte
	// Data is the initialized data segment placed after Code.
	Data []byte
}

// Instructions returns the number of words in Code.
func (p *Program) Instructions() int {
	return len(p.Code) / insts.InstructionSize
}

// LoadInto loads the program into a VM's memory.
func (p *Program) LoadInto(vm *emu.VM) error {
	if err := vm.LoadProgram(p.Code); err != nil {
		return err
	}
	if len(p.Data) == 0 {
		return nil
	}
	return vm.Memory().LoadData(p.Data)
}

// Load reads a program file.
func Load(path string) (*Program, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Parse(format, path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}

// Parse reads a program in the given format. name is used in diagnostics.
func Parse(format Format, name string, r io.Reader) (*Program, error) {
	switch format {
	case FormatBinary:
		return parseBinary(r)
	case FormatHex:
		return parseHex(r)
	case FormatAssembly:
		src, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		code, err := asm.New().Assemble(name, string(src))
		if err != nil {
			return nil, err
		}
		return &Program{Code: code}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
}

func parseBinary(r io.Reader) (*Program, error) {
	code, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(code)%insts.InstructionSize != 0 {
		return nil, fmt.Errorf("binary program of %d bytes is not whole words", len(code))
	}
	return &Program{Code: code}, nil
}

func parseHex(r io.Reader) (*Program, error) {
	prog := &Program{}
	target := &prog.Code

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == ".data":
			target = &prog.Data
			continue
		}

		digits, ok := strings.CutPrefix(strings.ToLower(line), "0x")
		if !ok {
			return nil, fmt.Errorf("line %d: word %q lacks 0x prefix", lineNo, line)
		}
		word, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		*target = binary.LittleEndian.AppendUint32(*target, uint32(word))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return prog, nil
}
