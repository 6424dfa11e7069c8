package compiler

import "strings"

func contains(s, substr string) bool { return strings.Contains(s, substr) }

// analyze runs the front end through semantic analysis for tests that
// only care about the final verdict.
func analyze(src string) (*Program, *SymbolTable, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, nil, err
	}
	prog, err := Parse(tokens, src)
	if err != nil {
		return nil, nil, err
	}
	syms, err := Analyze(prog)
	return prog, syms, err
}
