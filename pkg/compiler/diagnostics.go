package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic is one rendered compiler message with its source location.
type Diagnostic struct {
	Stage   string // "lexical", "syntax", "semantic", or "internal"
	Message string
	Pos     Pos
	File    string
}

// FromError classifies err into a Diagnostic. Unknown error types come
// back with an empty stage.
func FromError(file string, err error) Diagnostic {
	var lexErr *LexicalError
	var synErr *SyntaxError
	var semErr *SemanticError
	var intErr *InternalError
	switch {
	case errors.As(err, &lexErr):
		return Diagnostic{Stage: "lexical", Message: lexErr.Msg, Pos: lexErr.Pos, File: file}
	case errors.As(err, &synErr):
		return Diagnostic{Stage: "syntax", Message: synErr.Msg, Pos: synErr.Pos, File: file}
	case errors.As(err, &semErr):
		return Diagnostic{Stage: "semantic", Message: semErr.Error(), Pos: semErr.Pos, File: file}
	case errors.As(err, &intErr):
		return Diagnostic{Stage: "internal", Message: intErr.Error(), File: file}
	}
	return Diagnostic{Message: err.Error(), File: file}
}

// Render formats the diagnostic with the offending source line and a
// caret under the reported column.
func (d Diagnostic) Render(source string) string {
	var b strings.Builder
	if d.File != "" && d.Pos.Line > 0 {
		fmt.Fprintf(&b, "%s:%s: ", d.File, d.Pos)
	} else if d.File != "" {
		fmt.Fprintf(&b, "%s: ", d.File)
	}
	if d.Stage != "" {
		fmt.Fprintf(&b, "%s error: ", d.Stage)
	}
	b.WriteString(d.Message)

	if d.Pos.Line > 0 {
		lines := strings.Split(source, "\n")
		if d.Pos.Line <= len(lines) {
			line := lines[d.Pos.Line-1]
			fmt.Fprintf(&b, "\n\t%s", line)
			if d.Pos.Col > 0 && d.Pos.Col <= len(line)+1 {
				fmt.Fprintf(&b, "\n\t%s^", caretPad(line, d.Pos.Col-1))
			}
		}
	}
	return b.String()
}

// caretPad mirrors the line's leading tabs so the caret lines up under
// the reported column regardless of tab width.
func caretPad(line string, n int) string {
	var b strings.Builder
	for i, r := range line {
		if i >= n {
			break
		}
		if r == '\t' {
			b.WriteRune('\t')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}
