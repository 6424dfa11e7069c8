package compiler

import "fmt"

// LexicalError is an illegal character or unterminated literal/comment.
type LexicalError struct {
	Msg string
	Pos Pos
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
}

// SyntaxError is an unexpected token reported by the parser.
type SyntaxError struct {
	Msg     string
	Pos     Pos
	Snippet string // trimmed source line where the token appears, may be empty
}

func (e *SyntaxError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
	}
	return fmt.Sprintf("%s at %s\n  |> %s", e.Msg, e.Pos, e.Snippet)
}

// SemanticErrorKind classifies analyzer rejections.
type SemanticErrorKind int

const (
	Redeclaration SemanticErrorKind = iota
	UndeclaredIdentifier
	TypeMismatch
	ArgumentCountMismatch
	ArgumentTypeMismatch
	MissingReturn
	InvalidOperandType
)

var semanticKindNames = [...]string{
	Redeclaration:         "Redeclaration",
	UndeclaredIdentifier:  "UndeclaredIdentifier",
	TypeMismatch:          "TypeMismatch",
	ArgumentCountMismatch: "ArgumentCountMismatch",
	ArgumentTypeMismatch:  "ArgumentTypeMismatch",
	MissingReturn:         "MissingReturn",
	InvalidOperandType:    "InvalidOperandType",
}

func (k SemanticErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(semanticKindNames) {
		return semanticKindNames[k]
	}
	return fmt.Sprintf("SemanticErrorKind(%d)", int(k))
}

// SemanticError is a user-facing analysis failure with a source position.
type SemanticError struct {
	Kind SemanticErrorKind
	Msg  string
	Pos  Pos
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Msg, e.Pos)
}

func semErr(kind SemanticErrorKind, pos Pos, format string, args ...any) *SemanticError {
	return &SemanticError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// InternalError marks a compiler bug (an invariant violation in a stage
// that must not fail on analyzer-accepted input). It is never caused by
// user input.
type InternalError struct {
	Stage string
	Err   error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error in %s: %v", e.Stage, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
