package compiler

import (
	"fmt"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":    INT_TYPE,
	"float":  FLOAT_TYPE,
	"string": STRING_TYPE,
	"bool":   BOOL_TYPE,
	"void":   VOID_TYPE,
	"true":   TRUE,
	"false":  FALSE,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"return": RETURN,
	"def":    DEF,
	"print":  PRINT,
	"read":   READ,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // current 1-based source column
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1, col: 1}
}

// here returns the position of the next rune to consume.
func (l *Lexer) here() Pos { return Pos{Line: l.line, Col: l.col} }

func (l *Lexer) errorf(pos Pos, format string, args ...any) error {
	return &LexicalError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to
// end-of-line. The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment(open Pos) error {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return l.errorf(open, "unterminated block comment")
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	pos := l.here()
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Pos: pos}
}

// scanNumber collects a decimal integer or float literal. A literal is a
// float when a '.' with a following digit appears.
// The first digit must still be at l.peek().
func (l *Lexer) scanNumber() Token {
	pos := l.here()
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && unicode.IsDigit(l.peek2()) {
		l.advance() // consume '.'
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
		return Token{Type: FLOAT, Lexeme: string(l.src[start:l.pos]), Pos: pos}
	}
	return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Pos: pos}
}

// scanString collects a string literal delimited by " or '. Escapes are
// resolved into the lexeme.
func (l *Lexer) scanString() (Token, error) {
	pos := l.here()
	quote := l.advance() // consume opening delimiter
	var val strings.Builder

	for l.pos < len(l.src) {
		r := l.peek()
		if r == quote {
			l.advance() // consume closing delimiter
			return Token{Type: STRING, Lexeme: val.String(), Pos: pos}, nil
		}
		if r == '\n' {
			return Token{}, l.errorf(pos, "unterminated string literal")
		}
		if r == '\\' {
			l.advance() // consume backslash
			next := l.peek()
			switch next {
			case 'n':
				val.WriteRune('\n')
			case 't':
				val.WriteRune('\t')
			case '\\':
				val.WriteRune('\\')
			case '"':
				val.WriteRune('"')
			case '\'':
				val.WriteRune('\'')
			default:
				return Token{}, l.errorf(l.here(), "unknown escape sequence \\%c", next)
			}
			l.advance()
			continue
		}
		val.WriteRune(r)
		l.advance()
	}
	return Token{}, l.errorf(pos, "unterminated string literal")
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	// Skip whitespace and both comment styles in a loop so that
	// a comment followed immediately by more whitespace is handled.
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Pos: l.here()}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			open := l.here()
			l.advance()
			l.advance()
			if err := l.skipBlockComment(open); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	pos := l.here()

	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber(), nil
	}
	if ch == '"' || ch == '\'' {
		return l.scanString()
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return Token{LBRACE, "{", pos}, nil
	case '}':
		return Token{RBRACE, "}", pos}, nil
	case '(':
		return Token{LPAREN, "(", pos}, nil
	case ')':
		return Token{RPAREN, ")", pos}, nil
	case ';':
		return Token{SEMICOLON, ";", pos}, nil
	case ',':
		return Token{COMMA, ",", pos}, nil
	case ':':
		return Token{COLON, ":", pos}, nil
	case '+':
		return Token{PLUS, "+", pos}, nil
	case '-':
		return Token{MINUS, "-", pos}, nil
	case '*':
		return Token{STAR, "*", pos}, nil
	case '/':
		return Token{SLASH, "/", pos}, nil
	case '%':
		return Token{PERCENT, "%", pos}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{AND_LOGICAL, "&&", pos}, nil
		}
		return Token{}, l.errorf(pos, "unexpected character %q (did you mean \"&&\"?)", ch)
	case '|':
		if l.peek() == '|' {
			l.advance()
			return Token{OR_LOGICAL, "||", pos}, nil
		}
		return Token{}, l.errorf(pos, "unexpected character %q (did you mean \"||\"?)", ch)
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{NOT_EQ, "!=", pos}, nil
		}
		return Token{NOT, "!", pos}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{LESS_EQ, "<=", pos}, nil
		}
		return Token{LESS, "<", pos}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{GREATER_EQ, ">=", pos}, nil
		}
		return Token{GREATER, ">", pos}, nil
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return Token{EQUALS, "==", pos}, nil
		}
		return Token{ASSIGN, "=", pos}, nil
	default:
		return Token{}, l.errorf(pos, "illegal character %q", ch)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil *LexicalError on the first illegal character or
// unterminated literal/comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
