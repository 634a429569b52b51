package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	sameLineMarker    = "   |"
	unknownLineMarker = "   ?"
)

// Disassemble writes a listing of every instruction in the chunk to w,
// framed by a header naming label and a footer. A nil chunk lists as empty.
func Disassemble(w io.Writer, c *Chunk, label string) error {
	if _, err := fmt.Fprintf(w, "====$ %s $====\n", label); err != nil {
		return err
	}
	for offset := 0; offset < c.Len(); offset++ {
		if err := DisassembleInstruction(w, c, offset); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "====$ over $====")
	return err
}

// DisassembleInstruction writes the listing line for a single instruction.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) error {
	_, err := fmt.Fprintln(w, FormatInstruction(c, offset))
	return err
}

// FormatInstruction renders one instruction as
//
//	<line-or-marker> <offset>$ <MNEMONIC> [operand],
//
// The line column shows "   |" when the instruction shares its source line
// with the previous instruction and "   ?" when no line is known.
func FormatInstruction(c *Chunk, offset int) string {
	in, ok := c.Instruction(offset)
	if !ok {
		return fmt.Sprintf("%s %04d$ <end of code>,", unknownLineMarker, offset)
	}
	return fmt.Sprintf("%s %04d$ %s,", lineColumn(c, offset), offset, describe(c, in))
}

// Disassemble returns the listing as a string, labelled "chunk".
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("chunk")
}

// DisassembleWithName returns the listing as a string with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder
	// strings.Builder writes never fail.
	_ = Disassemble(&sb, c, name)
	return sb.String()
}

func lineColumn(c *Chunk, offset int) string {
	line, ok := c.LineFor(offset)
	if !ok {
		return unknownLineMarker
	}
	if offset > 0 {
		if prev, ok := c.LineFor(offset - 1); ok && prev == line {
			return sameLineMarker
		}
	}
	return fmt.Sprintf("%04d", line)
}

func describe(c *Chunk, in Instruction) string {
	switch in.Op {
	case OpConst:
		v, ok := c.Constant(int(in.Operand))
		if !ok {
			return fmt.Sprintf("%s <invalid %d>", in.Op, in.Operand)
		}
		return fmt.Sprintf("%s %s", in.Op, formatConstant(v))
	default:
		return in.Op.String()
	}
}

func formatConstant(v Value) string {
	if s, ok := v.AsString(); ok {
		return strconv.Quote(s)
	}
	return v.String()
}
