package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for tlang source
// ---------------------------------------------------------------------------

// Lexer tokenizes tlang source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // line of ch (1-based)
	lineStart int  // offset of the first character of line

	colOffset int // offset of the last position reported
	column    int // column at colOffset (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character. Reading past a newline moves
// the lexer onto the next line.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the position of the current character. The column is
// counted on from the last position requested on the same line.
func (l *Lexer) position() Position {
	if l.colOffset < l.lineStart {
		l.colOffset, l.column = l.lineStart, 1
	}
	l.column += utf8.RuneCountInString(l.input[l.colOffset:l.pos])
	l.colOffset = l.pos
	return Position{Offset: l.pos, Line: l.line, Column: l.column}
}

// Scan tokenizes the whole input. The returned tokens always end with EOF
// and exclude erroneous lexemes; every error is collected into the
// returned ErrorList, and scanning continues past it.
func (l *Lexer) Scan() ([]Token, error) {
	var tokens []Token
	var errs ErrorList
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			errs.Add(tok.Pos, tok.Literal)
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, errs.Err()
}

// Scan tokenizes source. See Lexer.Scan.
func Scan(source string) ([]Token, error) {
	return NewLexer(source).Scan()
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()
	single := func(typ TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: typ, Literal: lit, Pos: pos}
	}
	// pair returns second if the next character is next, first otherwise.
	pair := func(next rune, second, first TokenType) Token {
		start := l.pos
		l.readChar()
		typ := first
		if l.ch == next {
			l.readChar()
			typ = second
		}
		return Token{Type: typ, Literal: l.input[start:l.pos], Pos: pos}
	}

	switch {
	case l.atEOF():
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == '.':
		return single(TokenDot)
	case l.ch == ',':
		return single(TokenComma)
	case l.ch == '+':
		return single(TokenPlus)
	case l.ch == '-':
		return single(TokenMinus)
	case l.ch == '*':
		return single(TokenStar)
	case l.ch == '/':
		return single(TokenSlash)
	case l.ch == ';':
		return single(TokenSemicolon)

	case l.ch == '!':
		return pair('=', TokenBangEqual, TokenBang)
	case l.ch == '=':
		return pair('=', TokenEqualEqual, TokenEqual)
	case l.ch == '<':
		return pair('=', TokenLessEqual, TokenLess)
	case l.ch == '>':
		return pair('=', TokenGreaterEqual, TokenGreater)
	case l.ch == '&':
		return pair('&', TokenAndAnd, TokenAnd)
	case l.ch == '|':
		return pair('|', TokenOrOr, TokenOr)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments. ok is false when a block comment is unterminated, in
// which case tok carries the error.
func (l *Lexer) skipWhitespaceAndComments() (tok Token, ok bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar() // /
			l.readChar() // *
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.atEOF() {
					return Token{Type: TokenError, Literal: "unterminated block comment", Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar() // *
			l.readChar() // /
			continue
		}

		return Token{}, true
	}
}

// readString reads a double-quoted string literal. Strings may span lines.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.atEOF() {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or decimal literal. A '.' is only part of
// the number when a digit follows it.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
