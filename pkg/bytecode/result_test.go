package bytecode

import (
	"errors"
	"fmt"
	"testing"
)

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want InterpretResult
		code int
	}{
		{nil, InterpretOK, 0},
		{fmt.Errorf("assemble: %w", ErrCompile), InterpretCompileError, 65},
		{&RuntimeError{Offset: -1, Err: ErrEmptyProgram}, InterpretRuntimeError, 70},
		{errors.New("something else"), InterpretRuntimeError, 70},
	}
	for _, tt := range tests {
		got := ResultOf(tt.err)
		if got != tt.want {
			t.Errorf("ResultOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
		if got.ExitCode() != tt.code {
			t.Errorf("%s.ExitCode() = %d, want %d", got, got.ExitCode(), tt.code)
		}
	}
}

func TestRuntimeErrorMessage(t *testing.T) {
	err := &RuntimeError{Op: OpAdd, Offset: 3, Line: 12, Err: ErrStackUnderflow}
	want := "runtime error: [line 12] OP_ADD at 0003: stack underflow"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsRuntimeError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsRuntimeError should see through wrapping")
	}

	noLine := &RuntimeError{Op: OpNegate, Offset: 0, Err: ErrNotNumber}
	if got := noLine.Error(); got != "runtime error: OP_NEGATE at 0000: operand must be a number" {
		t.Errorf("Error() = %q", got)
	}
}
