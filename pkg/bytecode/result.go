package bytecode

import "errors"

// ErrCompile is matched (via errors.Is) by errors produced before a chunk
// exists: lexing and assembling failures.
var ErrCompile = errors.New("compile error")

// InterpretResult is the process-level outcome of running a program.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// Exit codes follow the sysexits.h conventions used by command-line tools.
const (
	ExitOK       = 0
	ExitUsage    = 64 // EX_USAGE: bad invocation or unreadable input
	ExitDataErr  = 65 // EX_DATAERR: compile-time error
	ExitSoftware = 70 // EX_SOFTWARE: runtime error
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	case InterpretRuntimeError:
		return "runtime error"
	default:
		return "unknown"
	}
}

// ExitCode maps the result to a process exit status.
func (r InterpretResult) ExitCode() int {
	switch r {
	case InterpretOK:
		return ExitOK
	case InterpretCompileError:
		return ExitDataErr
	default:
		return ExitSoftware
	}
}

// ResultOf classifies an error returned by the assembler or the VM.
// Errors that are neither compile errors nor runtime errors count as
// runtime errors.
func ResultOf(err error) InterpretResult {
	switch {
	case err == nil:
		return InterpretOK
	case errors.Is(err, ErrCompile):
		return InterpretCompileError
	default:
		return InterpretRuntimeError
	}
}
