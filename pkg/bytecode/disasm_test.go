package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	output := NewChunk().DisassembleWithName("empty")

	want := "====$ empty $====\n====$ over $====\n"
	if output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestDisassembleNilChunk(t *testing.T) {
	var buf bytes.Buffer
	if err := Disassemble(&buf, nil, "none"); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if want := "====$ none $====\n====$ over $====\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if got := FormatInstruction(nil, 0); got != "   ? 0000$ <end of code>," {
		t.Errorf("FormatInstruction(nil, 0) = %q", got)
	}
	var c *Chunk
	if c.Len() != 0 {
		t.Error("nil chunk should be empty")
	}
	if _, ok := c.LineFor(0); ok {
		t.Error("nil chunk has no lines")
	}
}

func TestDisassembleListing(t *testing.T) {
	c := NewChunk()
	c.EmitConstant(Double(1.2), 123)
	c.EmitConstant(String("x"), 123)
	c.Emit(OpAdd, 124)
	c.Emit(OpNegate, 124)
	c.Emit(OpReturn, 125)

	var buf bytes.Buffer
	if err := Disassemble(&buf, c, "test chunk"); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	want := strings.Join([]string{
		"====$ test chunk $====",
		"0123 0000$ OP_CONST 1.2,",
		`   | 0001$ OP_CONST "x",`,
		"0124 0002$ OP_ADD,",
		"   | 0003$ OP_NEGATE,",
		"0125 0004$ OP_RETURN,",
		"====$ over $====",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("listing =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestDisassembleSameLineMarker(t *testing.T) {
	c := NewChunk()
	c.Emit(OpReturn, 7)
	c.Emit(OpReturn, 7)

	first := FormatInstruction(c, 0)
	second := FormatInstruction(c, 1)

	if !strings.HasPrefix(first, "0007 ") {
		t.Errorf("first line = %q, want line number", first)
	}
	if !strings.HasPrefix(second, "   | ") {
		t.Errorf("second line = %q, want continuation marker", second)
	}
	if strings.Contains(second, "0007") {
		t.Errorf("second line repeats the line number: %q", second)
	}
}

func TestDisassembleAllMnemonics(t *testing.T) {
	c := NewChunk()
	c.EmitConstant(Null, 1)
	for _, op := range []Opcode{OpNegate, OpAdd, OpSubtract, OpMultiply, OpDivide, OpReturn} {
		c.Emit(op, 1)
	}

	output := c.Disassemble()
	for _, name := range []string{
		"OP_CONST null", "OP_NEGATE", "OP_ADD", "OP_SUBTRACT", "OP_MULTIPLY", "OP_DIVIDE", "OP_RETURN",
	} {
		if !strings.Contains(output, name) {
			t.Errorf("listing missing %q:\n%s", name, output)
		}
	}
}

func TestDisassembleInvalidOperands(t *testing.T) {
	c := NewChunk()
	c.PushInstruction(Const(9), 1)
	c.PushInstruction(Instruction{Op: Opcode(0xEE)}, 1)

	output := c.Disassemble()
	if !strings.Contains(output, "OP_CONST <invalid 9>") {
		t.Errorf("missing invalid constant marker:\n%s", output)
	}
	if !strings.Contains(output, "UNKNOWN(0xEE)") {
		t.Errorf("missing unknown opcode name:\n%s", output)
	}
}

func TestFormatInstructionOutOfRange(t *testing.T) {
	c := NewChunk()
	if got := FormatInstruction(c, 0); got != "   ? 0000$ <end of code>," {
		t.Errorf("FormatInstruction = %q", got)
	}
}

func TestDisassembleDoesNotMutate(t *testing.T) {
	c := NewChunk()
	c.EmitConstant(Double(1), 1)
	c.Emit(OpReturn, 2)
	before, _ := MarshalChunk(c)

	_ = c.Disassemble()

	after, _ := MarshalChunk(c)
	if !bytes.Equal(before, after) {
		t.Error("disassembly changed the chunk")
	}
}
