package bytecode

import (
	"errors"
	"fmt"
)

// Structural failures. Type mismatches and division by zero are not errors;
// they produce Null.
var (
	ErrEmptyProgram   = errors.New("no program to run")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrNotNumber      = errors.New("operand must be a number")
	ErrFetch          = errors.New("instruction pointer out of range")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrBadConstant    = errors.New("constant index out of range")
)

// RuntimeError is a structural failure that aborted a run.
type RuntimeError struct {
	Op     Opcode
	Offset int // Offset of the failing instruction, -1 if none was fetched
	Line   int // Source line, 0 if unknown
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("runtime error: %v", e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("runtime error: [line %d] %s at %04d: %v", e.Line, e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("runtime error: %s at %04d: %v", e.Op, e.Offset, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError reports whether err is (or wraps) a *RuntimeError.
func IsRuntimeError(err error) bool {
	var rt *RuntimeError
	return errors.As(err, &rt)
}
