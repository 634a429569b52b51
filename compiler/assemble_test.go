package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/tlang/pkg/bytecode"
)

func mustAssemble(t *testing.T, source string) *bytecode.Chunk {
	t.Helper()
	c, err := Assemble(source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return c
}

func TestAssembleArithmetic(t *testing.T) {
	c := mustAssemble(t, `
CONST 1.2
CONST 3.4
ADD
CONST 5.6
DIVIDE
NEGATE
RETURN
`)
	if c.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", c.Len())
	}
	if c.ConstantCount() != 3 {
		t.Fatalf("ConstantCount() = %d, want 3", c.ConstantCount())
	}

	out, err := bytecode.NewVM(c).Run()
	if err != nil {
		t.Fatal(err)
	}
	a, b, d := 1.2, 3.4, 5.6
	want := -((a + b) / d)
	if got, _ := out.Value.AsDouble(); got != want {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestAssembleMnemonicSpellings(t *testing.T) {
	tests := []struct {
		word string
		want bytecode.Opcode
	}{
		{"RETURN", bytecode.OpReturn},
		{"return", bytecode.OpReturn},
		{"OP_RETURN", bytecode.OpReturn},
		{"op_add", bytecode.OpAdd},
		{"Sub", bytecode.OpSubtract},
		{"MUL", bytecode.OpMultiply},
		{"div", bytecode.OpDivide},
		{"neg", bytecode.OpNegate},
		{"OP_CONST", bytecode.OpConst},
	}
	for _, tc := range tests {
		op, ok := LookupMnemonic(tc.word)
		if !ok || op != tc.want {
			t.Errorf("LookupMnemonic(%q) = %v, %v; want %v", tc.word, op, ok, tc.want)
		}
	}
	if _, ok := LookupMnemonic("JUMP"); ok {
		t.Error("JUMP should not resolve")
	}
}

func TestAssembleOperands(t *testing.T) {
	c := mustAssemble(t, `CONST 7; CONST -2.5; CONST "hi there"; CONST null`)
	want := []bytecode.Value{
		bytecode.Double(7),
		bytecode.Double(-2.5),
		bytecode.String("hi there"),
		bytecode.Null,
	}
	for i, w := range want {
		got, ok := c.Constant(i)
		if !ok || !got.Equal(w) {
			t.Errorf("constant %d = %#v, want %#v", i, got, w)
		}
		in, _ := c.Instruction(i)
		if in.Op != bytecode.OpConst || int(in.Operand) != i {
			t.Errorf("instruction %d = %v", i, in)
		}
	}
}

func TestAssembleLines(t *testing.T) {
	c := mustAssemble(t, `// header comment
CONST 1; CONST 2
ADD

RETURN`)
	wantLines := []int{2, 2, 3, 5}
	for off, want := range wantLines {
		got, ok := c.LineFor(off)
		if !ok || got != want {
			t.Errorf("LineFor(%d) = %d, %v; want %d", off, got, ok, want)
		}
	}

	runs := c.LineRuns()
	wantRuns := []bytecode.LineStart{{Offset: 0, Line: 2}, {Offset: 2, Line: 3}, {Offset: 3, Line: 5}}
	if len(runs) != len(wantRuns) {
		t.Fatalf("LineRuns() = %v, want %v", runs, wantRuns)
	}
	for i := range runs {
		if runs[i] != wantRuns[i] {
			t.Errorf("run %d = %+v, want %+v", i, runs[i], wantRuns[i])
		}
	}
}

func TestAssembleEmpty(t *testing.T) {
	c := mustAssemble(t, "  // nothing here\n;;\n")
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		count   int
		message string
	}{
		{"unknown mnemonic", "JUMP 3", 1, `unknown instruction "JUMP"`},
		{"missing operand", "CONST\nRETURN", 1, "needs an operand"},
		{"bad operand", "CONST +", 1, "expected number, string or null operand"},
		{"dangling minus", "CONST - x", 1, "expected number after '-'"},
		{"not a mnemonic", "42", 1, "expected instruction mnemonic"},
		{"lex error", "CONST 1 @", 1, "unexpected character"},
		{"several", "FOO\nCONST 1\nBAR; CONST\n", 3, "3 errors"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Assemble(tc.source)
			if err == nil {
				t.Fatalf("expected error, got chunk with %d instructions", c.Len())
			}
			if c != nil {
				t.Error("chunk should be nil on error")
			}
			if !errors.Is(err, bytecode.ErrCompile) {
				t.Errorf("error %v does not match ErrCompile", err)
			}
			var list ErrorList
			if !errors.As(err, &list) {
				t.Fatalf("err is %T, want ErrorList", err)
			}
			if len(list) != tc.count {
				t.Errorf("got %d errors, want %d: %v", len(list), tc.count, err)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Errorf("error %q does not contain %q", err, tc.message)
			}
		})
	}
}

func TestAssembleErrorPosition(t *testing.T) {
	_, err := Assemble("CONST 1\n  BOGUS\n")
	var list ErrorList
	if !errors.As(err, &list) || len(list) != 1 {
		t.Fatalf("err = %v", err)
	}
	if list[0].Pos.Line != 2 || list[0].Pos.Column != 3 {
		t.Errorf("error at %s, want 2:3", list[0].Pos)
	}
	if !strings.HasPrefix(err.Error(), "line 2:3: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	c := mustAssemble(t, "CONST 1\nCONST 2\nSUBTRACT\nRETURN\n")
	var sb strings.Builder
	if err := bytecode.Disassemble(&sb, c, "asm"); err != nil {
		t.Fatal(err)
	}
	listing := sb.String()
	for _, want := range []string{"OP_CONST", "OP_SUBTRACT", "OP_RETURN", "====$ asm $===="} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}
