package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/tlang/pkg/bytecode"
)

// Error is a single lexing or assembling error.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %s: %s", e.Pos, e.Msg)
}

// Is makes every compiler error match bytecode.ErrCompile.
func (e *Error) Is(target error) bool {
	return target == bytecode.ErrCompile
}

// ErrorList collects errors in source order.
type ErrorList []*Error

// Add appends an error at pos.
func (l *ErrorList) Add(pos Position, msg string) {
	*l = append(*l, &Error{Pos: pos, Msg: msg})
}

// Addf appends a formatted error at pos.
func (l *ErrorList) Addf(pos Position, format string, args ...any) {
	l.Add(pos, fmt.Sprintf(format, args...))
}

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:", len(l))
	for _, e := range l {
		sb.WriteString("\n  ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Is makes a non-empty list match bytecode.ErrCompile.
func (l ErrorList) Is(target error) bool {
	return len(l) > 0 && target == bytecode.ErrCompile
}

// Err returns nil for an empty list and the list otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
