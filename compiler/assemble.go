package compiler

import (
	"strconv"
	"strings"

	"github.com/chazu/tlang/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Assembler: text form of a chunk
//
//	// comments follow lexer rules
//	CONST 1.5
//	CONST -2; ADD          // several instructions may share a line
//	const "text"; op_add
//	CONST null
//	RETURN
//
// Mnemonics are case-insensitive and the OP_ prefix is optional. Every
// instruction is recorded with the source line of its mnemonic.
// ---------------------------------------------------------------------------

// mnemonicAliases maps short spellings onto canonical opcode names.
var mnemonicAliases = map[string]string{
	"SUB": "SUBTRACT",
	"MUL": "MULTIPLY",
	"DIV": "DIVIDE",
	"NEG": "NEGATE",
	"RET": "RETURN",
}

// LookupMnemonic resolves an assembler mnemonic to an opcode.
func LookupMnemonic(word string) (bytecode.Opcode, bool) {
	name := strings.TrimPrefix(strings.ToUpper(word), "OP_")
	if alias, ok := mnemonicAliases[name]; ok {
		name = alias
	}
	return bytecode.LookupOpcode(name)
}

type assembler struct {
	tokens []Token
	pos    int
	chunk  *bytecode.Chunk
	errs   ErrorList
}

// Assemble builds a chunk from assembler source. Lexing and assembling
// errors are all reported together as an ErrorList, which matches
// bytecode.ErrCompile.
func Assemble(source string) (*bytecode.Chunk, error) {
	tokens, err := Scan(source)

	a := &assembler{tokens: tokens, chunk: bytecode.NewChunk()}
	if list, ok := err.(ErrorList); ok {
		a.errs = append(a.errs, list...)
	}

	for !a.at(TokenEOF) {
		if a.at(TokenSemicolon) {
			a.pos++
			continue
		}
		if !a.instruction() {
			a.recover()
		}
	}

	if err := a.errs.Err(); err != nil {
		return nil, err
	}
	return a.chunk, nil
}

func (a *assembler) peek() Token {
	return a.tokens[a.pos]
}

func (a *assembler) at(typ TokenType) bool {
	return a.peek().Type == typ
}

func (a *assembler) next() Token {
	tok := a.tokens[a.pos]
	if tok.Type != TokenEOF {
		a.pos++
	}
	return tok
}

// instruction assembles one instruction. It returns false after recording
// an error.
func (a *assembler) instruction() bool {
	tok := a.next()
	if tok.Type != TokenIdentifier && !tok.Type.IsKeyword() {
		a.errs.Addf(tok.Pos, "expected instruction mnemonic, got %s", tok)
		return false
	}
	op, ok := LookupMnemonic(tok.Literal)
	if !ok {
		a.errs.Addf(tok.Pos, "unknown instruction %q", tok.Literal)
		return false
	}
	line := tok.Pos.Line

	if op != bytecode.OpConst {
		a.chunk.Emit(op, line)
		return true
	}

	v, ok := a.operand(tok)
	if !ok {
		return false
	}
	a.chunk.EmitConstant(v, line)
	return true
}

// operand parses the literal following a CONST mnemonic.
func (a *assembler) operand(mnemonic Token) (bytecode.Value, bool) {
	tok := a.peek()
	if tok.Pos.Line != mnemonic.Pos.Line && tok.Type != TokenEOF {
		a.errs.Addf(mnemonic.Pos, "%s needs an operand on the same line", mnemonic.Literal)
		return bytecode.Null, false
	}

	switch tok.Type {
	case TokenNumber:
		a.next()
		return a.number(tok, false)
	case TokenMinus:
		a.next()
		num := a.peek()
		if num.Type != TokenNumber {
			a.errs.Addf(num.Pos, "expected number after '-', got %s", num)
			return bytecode.Null, false
		}
		a.next()
		return a.number(num, true)
	case TokenString:
		a.next()
		return bytecode.String(tok.Literal), true
	case TokenNull:
		a.next()
		return bytecode.Null, true
	default:
		a.errs.Addf(tok.Pos, "expected number, string or null operand, got %s", tok)
		return bytecode.Null, false
	}
}

func (a *assembler) number(tok Token, negative bool) (bytecode.Value, bool) {
	f, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		a.errs.Addf(tok.Pos, "invalid number %q: %v", tok.Literal, err)
		return bytecode.Null, false
	}
	if negative {
		f = -f
	}
	return bytecode.Double(f), true
}

// recover skips to the start of the next statement: past a semicolon, or
// to the first token on a later line.
func (a *assembler) recover() {
	line := a.tokens[max(a.pos-1, 0)].Pos.Line
	for !a.at(TokenEOF) {
		tok := a.peek()
		if tok.Type == TokenSemicolon {
			a.pos++
			return
		}
		if tok.Pos.Line != line {
			return
		}
		a.pos++
	}
}
