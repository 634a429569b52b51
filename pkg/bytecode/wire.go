package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire form of a chunk. Integer keys keep the encoding compact; canonical
// encoding makes equal chunks encode to equal bytes, which the chunk store
// relies on for content addressing.

type wireChunk struct {
	Version   uint16            `cbor:"1,keyasint"`
	Code      []wireInstruction `cbor:"2,keyasint"`
	Constants []wireValue       `cbor:"3,keyasint"`
	Lines     []wireLine        `cbor:"4,keyasint"`
}

type wireInstruction struct {
	_       struct{} `cbor:",toarray"`
	Op      uint8
	Operand uint32
}

type wireValue struct {
	_    struct{} `cbor:",toarray"`
	Kind uint8
	Num  float64
	Str  string
}

type wireLine struct {
	_      struct{} `cbor:",toarray"`
	Offset int
	Line   int
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a chunk to canonical CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	w := wireChunk{
		Version:   BytecodeVersion,
		Code:      make([]wireInstruction, len(c.code)),
		Constants: make([]wireValue, len(c.constants)),
		Lines:     make([]wireLine, len(c.lines)),
	}
	for i, in := range c.code {
		w.Code[i] = wireInstruction{Op: uint8(in.Op), Operand: in.Operand}
	}
	for i, v := range c.constants {
		w.Constants[i] = wireValue{Kind: uint8(v.kind), Num: v.num, Str: v.str}
	}
	for i, l := range c.lines {
		w.Lines[i] = wireLine{Offset: l.Offset, Line: l.Line}
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalChunk deserializes a chunk from CBOR bytes and validates it.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if w.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: chunk version %d is newer than supported version %d",
			w.Version, BytecodeVersion)
	}

	c := &Chunk{
		code:      make([]Instruction, len(w.Code)),
		constants: make([]Value, len(w.Constants)),
		lines:     make([]LineStart, len(w.Lines)),
	}
	for i, in := range w.Code {
		c.code[i] = Instruction{Op: Opcode(in.Op), Operand: in.Operand}
	}
	for i, v := range w.Constants {
		switch Kind(v.Kind) {
		case KindNull:
			c.constants[i] = Null
		case KindDouble:
			c.constants[i] = Double(v.Num)
		case KindString:
			c.constants[i] = String(v.Str)
		default:
			return nil, fmt.Errorf("bytecode: constant %d has unknown kind %d", i, v.Kind)
		}
	}
	for i, l := range w.Lines {
		c.lines[i] = LineStart{Offset: l.Offset, Line: l.Line}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: invalid chunk: %w", err)
	}
	return c, nil
}
