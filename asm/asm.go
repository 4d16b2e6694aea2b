// Package asm is a two-pass line assembler for r32.
//
// One statement per line. ';' and '#' start comments. A statement may be
// preceded by any number of "label:" definitions, which bind the label to the
// byte address of the statement.
//
//	.equ NAME expr      define a symbol
//	.word expr, ...     emit raw 32-bit words
//	addi t0, zero, 5    register/immediate operands in layout order
//	lw t1, -4(sp)       loads: destination, offset(base)
//	sw t1, 8(sp)        stores: source, offset(base)
//
// Immediates are decimal or 0x literals, symbols, or $(expr) with expr
// evaluated by starlark with every symbol predeclared.
package asm

import (
	"encoding/binary"
	"fmt"
	"log"
	"maps"
	"strings"

	"github.com/sarchlab/r32vm/insts"
)

// Assembler turns source text into little-endian instruction words. Its
// symbol table belongs to the Assembler and is rebuilt on every Assemble.
type Assembler struct {
	Verbose bool        // If set, logs each emitted word.
	Logger  *log.Logger // Defaults to log.Default().

	predefine map[string]int64
	symbols   map[string]int64
}

// New creates an assembler.
func New() *Assembler {
	return &Assembler{}
}

// Predefine defines a symbol visible to every subsequent Assemble.
func (a *Assembler) Predefine(name string, value int64) {
	if a.predefine == nil {
		a.predefine = make(map[string]int64)
	}
	a.predefine[name] = value
}

// Symbols returns the symbol table of the last Assemble.
func (a *Assembler) Symbols() map[string]int64 {
	return maps.Clone(a.symbols)
}

type statement struct {
	lineNo   int
	text     string
	addr     uint32
	mnemonic string
	operands string
}

// Assemble assembles src. name is used in diagnostics.
func (a *Assembler) Assemble(name, src string) ([]byte, error) {
	a.symbols = maps.Clone(a.predefine)
	if a.symbols == nil {
		a.symbols = make(map[string]int64)
	}

	stmts, err := a.scan(name, src)
	if err != nil {
		return nil, err
	}

	var out []byte
	for _, st := range stmts {
		words, err := a.emit(st)
		if err != nil {
			return nil, &ErrSyntax{Name: name, LineNo: st.lineNo, Line: st.text, Err: err}
		}
		for i, w := range words {
			if a.Verbose {
				a.logger().Printf("asm: %08x: %08x  %v", st.addr+uint32(4*i), w, st.text)
			}
			out = binary.LittleEndian.AppendUint32(out, w)
		}
	}

	return out, nil
}

func (a *Assembler) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}

// scan is the first pass: it binds labels and equates and sizes every
// statement.
func (a *Assembler) scan(name, src string) ([]statement, error) {
	var stmts []statement
	var addr uint32

	for n, raw := range strings.Split(src, "\n") {
		text := stripComment(raw)
		if text == "" {
			continue
		}

		err := func() error {
			rest := text
			for {
				head, tail, _ := strings.Cut(rest, " ")
				label, ok := strings.CutSuffix(head, ":")
				if !ok || !isIdent(label) {
					break
				}
				if err := a.define(label, int64(addr)); err != nil {
					return err
				}
				rest = strings.TrimSpace(tail)
			}
			if rest == "" {
				return nil
			}

			mnemonic, operands, _ := strings.Cut(rest, " ")
			mnemonic = strings.ToLower(mnemonic)
			operands = strings.TrimSpace(operands)

			switch mnemonic {
			case ".equ":
				return a.equate(operands)
			case ".word":
				stmts = append(stmts, statement{n + 1, text, addr, mnemonic, operands})
				addr += uint32(insts.InstructionSize * len(splitOperands(operands)))
			default:
				stmts = append(stmts, statement{n + 1, text, addr, mnemonic, operands})
				addr += insts.InstructionSize
			}
			return nil
		}()
		if err != nil {
			return nil, &ErrSyntax{Name: name, LineNo: n + 1, Line: text, Err: err}
		}
	}

	return stmts, nil
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, ";#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(line, "\t", " "))
}

func (a *Assembler) define(name string, value int64) error {
	if _, ok := a.symbols[name]; ok {
		return fmt.Errorf("%w: %v", ErrSymbolDuplicate, name)
	}
	if _, ok := insts.ParseRegister(strings.ToLower(name)); ok {
		return fmt.Errorf("%w: %v is a register", ErrSymbolDuplicate, name)
	}
	a.symbols[name] = value
	return nil
}

// equate handles ".equ NAME expr" and ".equ NAME, expr".
func (a *Assembler) equate(operands string) error {
	name, expr, ok := strings.Cut(operands, " ")
	name = strings.TrimSuffix(name, ",")
	expr = strings.TrimPrefix(strings.TrimSpace(expr), ",")
	if !ok || !isIdent(name) || strings.TrimSpace(expr) == "" {
		return ErrEquateSyntax
	}

	v, err := a.value(expr)
	if err != nil {
		return err
	}
	return a.define(name, v)
}

// emit is the second pass for one statement.
func (a *Assembler) emit(st statement) ([]uint32, error) {
	if st.mnemonic == ".word" {
		return a.words(splitOperands(st.operands))
	}

	inst, err := a.Instruction(st.mnemonic, st.operands)
	if err != nil {
		return nil, err
	}
	word, err := insts.Encode(inst)
	if err != nil {
		return nil, err
	}
	return []uint32{word}, nil
}

func (a *Assembler) words(ops []string) ([]uint32, error) {
	if len(ops) == 0 {
		return nil, ErrOperandCount
	}

	out := make([]uint32, 0, len(ops))
	for _, op := range ops {
		v, err := a.value(op)
		if err != nil {
			return nil, err
		}
		if v < -1<<31 || v > 1<<32-1 {
			return nil, fmt.Errorf("%w: %v does not fit in a word", ErrOperandSyntax, v)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

// Instruction assembles a single instruction against the current symbol
// table.
func (a *Assembler) Instruction(mnemonic, operands string) (insts.Instruction, error) {
	layout, ok := insts.LookupMnemonic(strings.ToLower(mnemonic))
	if !ok {
		return insts.Instruction{}, fmt.Errorf("%w: %v", ErrMnemonicInvalid, mnemonic)
	}

	inst := insts.Instruction{Op: layout.Op}
	ops := splitOperands(operands)

	if inst.IsLoad() || inst.IsStore() {
		if len(ops) != 2 {
			return inst, fmt.Errorf("%w: %v takes 2, got %d", ErrOperandCount, layout.Mnemonic, len(ops))
		}
		offset, base, err := splitMemOperand(ops[1])
		if err != nil {
			return inst, err
		}
		if inst.IsLoad() {
			ops = []string{ops[0], base, offset}
		} else {
			ops = []string{base, ops[0], offset}
		}
	}

	if len(ops) != len(layout.Fields) {
		return inst, fmt.Errorf("%w: %v takes %d, got %d",
			ErrOperandCount, layout.Mnemonic, len(layout.Fields), len(ops))
	}

	for i, field := range layout.Fields {
		if field.Kind == insts.FieldImmediate {
			v, err := a.value(ops[i])
			if err != nil {
				return inst, err
			}
			imm, err := insts.NewImmediate(field.Width, v)
			if err != nil {
				return inst, err
			}
			inst.Imm = imm
			continue
		}

		reg, ok := insts.ParseRegister(strings.ToLower(ops[i]))
		if !ok {
			return inst, fmt.Errorf("%w: %v", ErrRegisterInvalid, ops[i])
		}
		switch field.Slot {
		case insts.SlotDest:
			inst.Dest = reg
		case insts.SlotSrc1:
			inst.Src1 = reg
		case insts.SlotSrc2:
			inst.Src2 = reg
		}
	}

	return inst, nil
}

// splitMemOperand splits "offset(base)". An empty offset is 0.
func splitMemOperand(op string) (offset, base string, err error) {
	if !strings.HasSuffix(op, ")") {
		return "", "", fmt.Errorf("%w: %v is not offset(base)", ErrOperandSyntax, op)
	}

	open := strings.LastIndexByte(op, '(')
	if open < 0 || matchParen(op, open) != len(op)-1 {
		return "", "", fmt.Errorf("%w: %v is not offset(base)", ErrOperandSyntax, op)
	}

	offset = strings.TrimSpace(op[:open])
	if offset == "" {
		offset = "0"
	}
	return offset, strings.TrimSpace(op[open+1 : len(op)-1]), nil
}
