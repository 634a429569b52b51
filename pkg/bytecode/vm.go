package bytecode

import (
	"fmt"
	"io"
	"os"
)

// DefaultStackMax is the operand stack depth used when none is configured.
const DefaultStackMax = 128

// Outcome is what a successful run reports: the value popped by RETURN, or
// Empty when RETURN found nothing on the stack.
type Outcome struct {
	Value Value
	Empty bool
	Steps int // Instructions executed, including the RETURN
}

// String renders the RETURN report.
func (o Outcome) String() string {
	if o.Empty {
		return "stack is empty!"
	}
	return "stack top = " + o.Value.String()
}

// VM executes a single chunk on an operand stack. A VM is not safe for
// concurrent use; run independent programs on independent VMs.
type VM struct {
	chunk  *Chunk
	ip     int
	halted bool // no program: the chunk is nil or has no instructions

	stack    []Value
	stackMax int

	trace    bool
	traceOut io.Writer
	report   io.Writer
}

// Option configures a VM.
type Option func(*VM)

// WithStackMax sets the maximum operand stack depth. Non-positive values
// select DefaultStackMax.
func WithStackMax(n int) Option {
	return func(vm *VM) { vm.SetStackMax(n) }
}

// WithTrace enables or disables per-instruction tracing.
func WithTrace(on bool) Option {
	return func(vm *VM) { vm.trace = on }
}

// WithTraceOutput sets where trace lines go (default os.Stdout).
func WithTraceOutput(w io.Writer) Option {
	return func(vm *VM) { vm.traceOut = w }
}

// WithReport makes RETURN print its report line to w.
func WithReport(w io.Writer) Option {
	return func(vm *VM) { vm.report = w }
}

// NewVM creates a VM for chunk. chunk may be nil or empty, in which case the
// VM starts halted and Run fails until SetChunk supplies a program.
func NewVM(chunk *Chunk, opts ...Option) *VM {
	vm := &VM{
		stackMax: DefaultStackMax,
		traceOut: os.Stdout,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.SetChunk(chunk)
	return vm
}

// SetChunk replaces the program, resetting the instruction pointer and
// clearing the stack.
func (vm *VM) SetChunk(c *Chunk) {
	vm.chunk = c
	vm.Reset()
}

// Reset rewinds the instruction pointer to the start of the current chunk
// and clears the stack.
func (vm *VM) Reset() {
	vm.ip = 0
	vm.halted = vm.chunk == nil || vm.chunk.Len() == 0
	if vm.stack == nil {
		vm.stack = make([]Value, 0, min(vm.stackMax, DefaultStackMax))
	}
	vm.stack = vm.stack[:0]
}

// SetStackMax changes the maximum operand stack depth.
func (vm *VM) SetStackMax(n int) {
	if n <= 0 {
		n = DefaultStackMax
	}
	vm.stackMax = n
}

// SetTrace enables or disables tracing.
func (vm *VM) SetTrace(on bool) {
	vm.trace = on
}

// Chunk returns the current program.
func (vm *VM) Chunk() *Chunk { return vm.chunk }

// StackMax returns the configured maximum stack depth.
func (vm *VM) StackMax() int { return vm.stackMax }

// Halted reports whether the VM has no program to run.
func (vm *VM) Halted() bool { return vm.halted }

// IP returns the offset of the next instruction to execute.
func (vm *VM) IP() int { return vm.ip }

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Run executes from the current instruction pointer until RETURN or the
// first structural failure. Failures are returned as *RuntimeError.
func (vm *VM) Run() (Outcome, error) {
	if vm.halted {
		return Outcome{}, &RuntimeError{Offset: -1, Err: ErrEmptyProgram}
	}

	steps := 0
	for {
		if vm.trace {
			vm.traceStep()
		}

		offset := vm.ip
		in, ok := vm.chunk.Instruction(offset)
		if !ok {
			return Outcome{}, &RuntimeError{
				Offset: -1,
				Err:    fmt.Errorf("%w: ip=%d, code length %d", ErrFetch, offset, vm.chunk.Len()),
			}
		}
		vm.ip++
		steps++

		switch in.Op {
		case OpConst:
			if len(vm.stack) >= vm.stackMax {
				return Outcome{}, vm.fail(in, offset, ErrStackOverflow)
			}
			v, ok := vm.chunk.Constant(int(in.Operand))
			if !ok {
				return Outcome{}, vm.fail(in, offset, ErrBadConstant)
			}
			vm.stack = append(vm.stack, v)

		case OpReturn:
			out := Outcome{Empty: len(vm.stack) == 0, Steps: steps}
			if !out.Empty {
				out.Value = vm.pop()
			}
			if vm.report != nil {
				fmt.Fprintln(vm.report, out.String())
			}
			return out, nil

		case OpNegate:
			top := len(vm.stack) - 1
			if top < 0 {
				return Outcome{}, vm.fail(in, offset, ErrStackUnderflow)
			}
			neg, ok := vm.stack[top].Negate()
			if !ok {
				return Outcome{}, vm.fail(in, offset,
					fmt.Errorf("%w, got %s", ErrNotNumber, vm.stack[top].Kind()))
			}
			vm.stack[top] = neg

		case OpAdd, OpSubtract, OpMultiply, OpDivide:
			if len(vm.stack) < 2 {
				return Outcome{}, vm.fail(in, offset, ErrStackUnderflow)
			}
			right := vm.pop()
			left := vm.pop()
			vm.stack = append(vm.stack, arith(in.Op, left, right))

		default:
			return Outcome{}, vm.fail(in, offset, ErrUnknownOpcode)
		}
	}
}

// arith applies a binary arithmetic opcode. Kind mismatches and division by
// zero come back as Null.
func arith(op Opcode, left, right Value) Value {
	switch op {
	case OpAdd:
		return left.Add(right)
	case OpSubtract:
		return left.Sub(right)
	case OpMultiply:
		return left.Mul(right)
	case OpDivide:
		return left.Div(right)
	default:
		return Null
	}
}

func (vm *VM) pop() Value {
	top := len(vm.stack) - 1
	v := vm.stack[top]
	vm.stack = vm.stack[:top]
	return v
}

func (vm *VM) fail(in Instruction, offset int, err error) *RuntimeError {
	line, _ := vm.chunk.LineFor(offset)
	return &RuntimeError{Op: in.Op, Offset: offset, Line: line, Err: err}
}

// traceStep prints the stack and the instruction about to execute.
func (vm *VM) traceStep() {
	fmt.Fprint(vm.traceOut, "stack:[")
	for i, v := range vm.stack {
		if i > 0 {
			fmt.Fprint(vm.traceOut, ", ")
		}
		fmt.Fprint(vm.traceOut, v.GoString())
	}
	fmt.Fprintln(vm.traceOut, "]")
	DisassembleInstruction(vm.traceOut, vm.chunk, vm.ip)
}
