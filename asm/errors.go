package asm

import (
	"errors"

	"github.com/sarchlab/r32vm/internal/translate"
)

var f = translate.From

// Assembler errors.
var (
	ErrEquateSyntax     = errors.New(f(".equ syntax"))
	ErrSymbolDuplicate  = errors.New(f("symbol duplicated"))
	ErrMnemonicInvalid  = errors.New(f("mnemonic invalid"))
	ErrOperandCount     = errors.New(f("wrong number of operands"))
	ErrOperandSyntax    = errors.New(f("operand syntax"))
	ErrRegisterInvalid  = errors.New(f("register invalid"))
	ErrExpressionSyntax = errors.New(f("expression syntax"))
)

// ErrSymbolUndefined names a symbol that was used but never defined.
type ErrSymbolUndefined string

func (e ErrSymbolUndefined) Error() string {
	return f("symbol %v undefined", string(e))
}

// ErrParseExpression reports a $(...) expression starlark could not reduce
// to an integer.
type ErrParseExpression struct {
	Expr string
	Err  error
}

func (e *ErrParseExpression) Error() string {
	if e.Err != nil {
		return f("$(%v) is not a valid expression: %v", e.Expr, e.Err)
	}
	return f("$(%v) is not an integer expression", e.Expr)
}

func (e *ErrParseExpression) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExpressionSyntax
}

// ErrSyntax locates an assembly error in the source.
type ErrSyntax struct {
	Name   string
	LineNo int
	Line   string
	Err    error
}

func (e *ErrSyntax) Error() string {
	return f("%v:%v: '%v' %v", e.Name, e.LineNo, e.Line, e.Err)
}

func (e *ErrSyntax) Unwrap() error {
	return e.Err
}
