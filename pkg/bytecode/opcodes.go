package bytecode

import "fmt"

// Opcode identifies an instruction kind.
type Opcode byte

const (
	OpReturn   Opcode = 0x00 // Pop and report top of stack, halt
	OpConst    Opcode = 0x01 // Push constant: OpConst <index>
	OpNegate   Opcode = 0x02 // Negate top of stack in place
	OpAdd      Opcode = 0x03 // Pop two, push sum
	OpSubtract Opcode = 0x04 // Pop two, push difference (a - b where b is TOS)
	OpMultiply Opcode = 0x05 // Pop two, push product
	OpDivide   Opcode = 0x06 // Pop two, push quotient
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Mnemonic as printed by the disassembler
	StackPop   int    // Values popped from the stack
	StackPush  int    // Values pushed to the stack
	HasOperand bool   // Whether the instruction carries a constant index
}

// opcodeInfoTable is indexed by opcode; every defined opcode has an entry.
var opcodeInfoTable = [...]OpcodeInfo{
	OpReturn:   {"OP_RETURN", 1, 0, false},
	OpConst:    {"OP_CONST", 0, 1, true},
	OpNegate:   {"OP_NEGATE", 1, 1, false},
	OpAdd:      {"OP_ADD", 2, 1, false},
	OpSubtract: {"OP_SUBTRACT", 2, 1, false},
	OpMultiply: {"OP_MULTIPLY", 2, 1, false},
	OpDivide:   {"OP_DIVIDE", 2, 1, false},
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return int(op) < len(opcodeInfoTable)
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(0x..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsArithmetic reports whether op is one of the binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpDivide
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, len(opcodeInfoTable))
	for i := range opcodeInfoTable {
		ops[i] = Opcode(i)
	}
	return ops
}

// LookupOpcode finds an opcode by mnemonic. The OP_ prefix is optional and
// the match is exact on the upper-case name ("CONST", "OP_CONST").
func LookupOpcode(name string) (Opcode, bool) {
	for i, info := range opcodeInfoTable {
		if info.Name == name || info.Name == "OP_"+name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// Instruction is a fixed-size decoded instruction. Operand is only
// meaningful for opcodes whose info has HasOperand set.
type Instruction struct {
	Op      Opcode
	Operand uint32
}

// Simple returns an operand-free instruction.
func Simple(op Opcode) Instruction {
	return Instruction{Op: op}
}

// Const returns an OpConst instruction referencing constant index.
func Const(index int) Instruction {
	return Instruction{Op: OpConst, Operand: uint32(index)}
}

func (in Instruction) String() string {
	if GetOpcodeInfo(in.Op).HasOperand {
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	}
	return in.Op.String()
}
