package asm

import (
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// evalExpr evaluates a $(...) body with starlark. Every symbol is
// predeclared as an int.
func (a *Assembler) evalExpr(expr string) (int64, error) {
	thread := starlark.Thread{Name: "asm"}
	opts := syntax.FileOptions{}
	pred := make(starlark.StringDict, len(a.symbols))
	for name, value := range a.symbols {
		pred[name] = starlark.MakeInt64(value)
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return 0, &ErrParseExpression{Expr: expr, Err: err}
	}

	rc, ok := dict["rc"].(starlark.Int)
	if !ok {
		return 0, &ErrParseExpression{Expr: expr}
	}
	v, ok := rc.Int64()
	if !ok {
		return 0, &ErrParseExpression{Expr: expr}
	}

	return v, nil
}

// value resolves an operand to an integer: a $(...) expression, a numeric
// literal, or a symbol, each optionally negated.
func (a *Assembler) value(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, ErrOperandSyntax
	}

	if body, ok := exprBody(tok); ok {
		return a.evalExpr(body)
	}

	if v, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseUint(tok, 0, 32); err == nil {
		return int64(v), nil
	}

	if name, ok := strings.CutPrefix(tok, "-"); ok {
		v, err := a.value(name)
		return -v, err
	}

	if v, ok := a.symbols[tok]; ok {
		return v, nil
	}
	if isIdent(tok) {
		return 0, ErrSymbolUndefined(tok)
	}

	return 0, ErrOperandSyntax
}

// exprBody returns the body of a token of the form $(body).
func exprBody(tok string) (string, bool) {
	if !strings.HasPrefix(tok, "$(") || !strings.HasSuffix(tok, ")") {
		return "", false
	}
	if end := matchParen(tok, 1); end != len(tok)-1 {
		return "", false
	}
	return tok[2 : len(tok)-1], true
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitOperands splits on top-level commas.
func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
