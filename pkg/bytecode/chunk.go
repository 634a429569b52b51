package bytecode

import (
	"fmt"
	"sort"
)

// BytecodeVersion is the current chunk format version.
// Increment when making incompatible changes to the wire format.
const BytecodeVersion uint16 = 1

// LineStart marks the first instruction of a run of instructions that all
// came from the same source line.
type LineStart struct {
	Offset int // First instruction offset of the run
	Line   int // Source line number (1-based)
}

// Chunk is an append-only program: instructions, a constant pool and a
// run-length encoded line index. A chunk is read-only while a VM runs it.
type Chunk struct {
	code      []Instruction
	constants []Value

	// lines holds one entry per change of source line, sorted by Offset.
	// Once the chunk is non-empty lines[0].Offset is 0.
	lines []LineStart
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		code:      make([]Instruction, 0, 64),
		constants: make([]Value, 0, 8),
	}
}

// PushInstruction appends an instruction originating from line and returns
// its offset. A new line run starts when line differs from the previous
// instruction's line.
func (c *Chunk) PushInstruction(in Instruction, line int) int {
	offset := len(c.code)
	c.code = append(c.code, in)

	if n := len(c.lines); n == 0 || c.lines[n-1].Line != line {
		c.lines = append(c.lines, LineStart{Offset: offset, Line: line})
	}
	return offset
}

// Emit appends an operand-free instruction.
func (c *Chunk) Emit(op Opcode, line int) int {
	return c.PushInstruction(Simple(op), line)
}

// PushConstant adds a value to the constant pool and returns its index.
// Unlike a string-interning pool, duplicates get their own slot.
func (c *Chunk) PushConstant(v Value) int {
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

// EmitConstant adds v to the pool and appends an OpConst referencing it.
func (c *Chunk) EmitConstant(v Value, line int) int {
	return c.PushInstruction(Const(c.PushConstant(v)), line)
}

// Instruction returns the instruction at offset.
func (c *Chunk) Instruction(offset int) (Instruction, bool) {
	if c == nil || offset < 0 || offset >= len(c.code) {
		return Instruction{}, false
	}
	return c.code[offset], true
}

// Constant returns the constant at index.
func (c *Chunk) Constant(index int) (Value, bool) {
	if c == nil || index < 0 || index >= len(c.constants) {
		return Null, false
	}
	return c.constants[index], true
}

// LineFor returns the source line of the instruction at offset: the line of
// the last run starting at or before offset. ok is false only when the chunk
// has no instructions (or offset is negative).
func (c *Chunk) LineFor(offset int) (line int, ok bool) {
	if c == nil || len(c.lines) == 0 || offset < 0 {
		return 0, false
	}
	// First run starting after offset; the one before it covers offset.
	i := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].Offset > offset
	})
	if i == 0 {
		return 0, false
	}
	return c.lines[i-1].Line, true
}

// Len returns the number of instructions.
func (c *Chunk) Len() int {
	if c == nil {
		return 0
	}
	return len(c.code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.constants)
}

// LineRuns returns a copy of the run-length line index.
func (c *Chunk) LineRuns() []LineStart {
	out := make([]LineStart, len(c.lines))
	copy(out, c.lines)
	return out
}

// Validate checks the chunk invariants: every opcode is defined, every
// constant index is in range, and the line index is sorted and anchored at
// offset 0 whenever there are instructions.
func (c *Chunk) Validate() error {
	for offset, in := range c.code {
		if !in.Op.Valid() {
			return fmt.Errorf("offset %d: %w: 0x%02X", offset, ErrUnknownOpcode, byte(in.Op))
		}
		if GetOpcodeInfo(in.Op).HasOperand && int(in.Operand) >= len(c.constants) {
			return fmt.Errorf("offset %d: constant index %d out of range (pool has %d)",
				offset, in.Operand, len(c.constants))
		}
	}

	if len(c.code) == 0 {
		if len(c.lines) != 0 {
			return fmt.Errorf("line index has %d entries for an empty chunk", len(c.lines))
		}
		return nil
	}
	if len(c.lines) == 0 || c.lines[0].Offset != 0 {
		return fmt.Errorf("line index does not cover offset 0")
	}
	for i := 1; i < len(c.lines); i++ {
		if c.lines[i].Offset <= c.lines[i-1].Offset {
			return fmt.Errorf("line index not sorted at entry %d", i)
		}
		if c.lines[i].Offset >= len(c.code) {
			return fmt.Errorf("line index entry %d starts past the end of code", i)
		}
	}
	return nil
}
