package compiler

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // decimal integer literal
	FLOAT      // decimal floating-point literal, e.g. 3.14
	STRING     // string literal "..." or '...'

	// Keywords
	INT_TYPE    // "int"
	FLOAT_TYPE  // "float"
	STRING_TYPE // "string"
	BOOL_TYPE   // "bool"
	VOID_TYPE   // "void"
	TRUE        // "true"
	FALSE       // "false"
	IF          // "if"
	ELSE        // "else"
	WHILE       // "while"
	FOR         // "for"
	RETURN      // "return"
	DEF         // "def"
	PRINT       // "print"
	READ        // "read"

	// Paired delimiters
	LBRACE // {
	RBRACE // }
	LPAREN // (
	RPAREN // )

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :

	// Arithmetic operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %

	// Logical operators
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	INTEGER:     "INTEGER",
	FLOAT:       "FLOAT",
	STRING:      "STRING",
	INT_TYPE:    "INT_TYPE",
	FLOAT_TYPE:  "FLOAT_TYPE",
	STRING_TYPE: "STRING_TYPE",
	BOOL_TYPE:   "BOOL_TYPE",
	VOID_TYPE:   "VOID_TYPE",
	TRUE:        "TRUE",
	FALSE:       "FALSE",
	IF:          "IF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	FOR:         "FOR",
	RETURN:      "RETURN",
	DEF:         "DEF",
	PRINT:       "PRINT",
	READ:        "READ",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	SEMICOLON:   "SEMICOLON",
	COMMA:       "COMMA",
	COLON:       "COLON",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	PERCENT:     "PERCENT",
	AND_LOGICAL: "AND_LOGICAL",
	OR_LOGICAL:  "OR_LOGICAL",
	NOT:         "NOT",
	ASSIGN:      "ASSIGN",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	LESS:        "LESS",
	GREATER:     "GREATER",
	LESS_EQ:     "LESS_EQ",
	GREATER_EQ:  "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched (escapes resolved for STRING)
	Pos    Pos
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s %s", t.Type, t.Lexeme, t.Pos)
}

// DumpTokens renders one token per line in the form the analysis artifact
// uses: kind, lexeme, line:col.
func DumpTokens(tokens []Token) string {
	out := ""
	for _, tok := range tokens {
		out += fmt.Sprintf("%s %s %s\n", tok.Type, tok.Lexeme, tok.Pos)
	}
	return out
}
