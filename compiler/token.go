package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the tlang lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Single-character tokens
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenDot       // .
	TokenComma     // ,
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenSemicolon // ;

	// One or two character tokens
	TokenBang         // !
	TokenBangEqual    // !=
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenAnd          // &
	TokenAndAnd       // &&
	TokenOr           // |
	TokenOrOr         // ||

	// Literals
	TokenIdentifier // foo, _bar
	TokenString     // "hello"
	TokenNumber     // 42, 3.14

	// Keywords
	TokenLet
	TokenFn
	TokenClass
	TokenFalse
	TokenTrue
	TokenThis
	TokenElse
	TokenIf
	TokenFor
	TokenWhile
	TokenNull
	TokenPrint
	TokenReturn
	TokenSuper
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenDot:          ".",
	TokenComma:        ",",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenSemicolon:    ";",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenAnd:          "&",
	TokenAndAnd:       "&&",
	TokenOr:           "|",
	TokenOrOr:         "||",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNumber:       "NUMBER",
	TokenLet:          "let",
	TokenFn:           "fn",
	TokenClass:        "class",
	TokenFalse:        "false",
	TokenTrue:         "true",
	TokenThis:         "this",
	TokenElse:         "else",
	TokenIf:           "if",
	TokenFor:          "for",
	TokenWhile:        "while",
	TokenNull:         "null",
	TokenPrint:        "print",
	TokenReturn:       "return",
	TokenSuper:        "super",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenLet && t <= TokenSuper
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; for strings, the contents without quotes
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"fn":     TokenFn,
	"class":  TokenClass,
	"false":  TokenFalse,
	"true":   TokenTrue,
	"this":   TokenThis,
	"else":   TokenElse,
	"if":     TokenIf,
	"for":    TokenFor,
	"while":  TokenWhile,
	"null":   TokenNull,
	"print":  TokenPrint,
	"return": TokenReturn,
	"super":  TokenSuper,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := reservedWords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}
