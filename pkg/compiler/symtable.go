package compiler

import (
	"fmt"
	"strings"
)

// SymbolKind distinguishes what a name was declared as.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymParameter
)

var symbolKindNames = [...]string{
	SymVariable:  "variable",
	SymFunction:  "function",
	SymParameter: "parameter",
}

func (k SymbolKind) String() string {
	if int(k) >= 0 && int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Signature is a function symbol's declared parameter and result types.
type Signature struct {
	Params []Type
	Result Type
}

func (s *Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("(%s): %s", strings.Join(parts, ", "), s.Result)
}

// Symbol is one declared name. Symbols are unique per declaration, so AST
// annotations can hold *Symbol and later stages never re-resolve names.
type Symbol struct {
	Name  string
	Type  Type // declared type; for functions, the result type
	Kind  SymbolKind
	Depth int        // scope depth: 0 = global
	Sig   *Signature // non-nil only for functions
	Pos   Pos        // declaration site
}

// Scope is one symbol table in the lexical chain. Scopes link to their
// parent by index so the whole chain survives analysis for the dump
// artifact; "popping" a scope only moves the cursor back to the parent.
type Scope struct {
	parent int // index into SymbolTable.scopes; -1 for the global scope
	depth  int
	names  map[string]*Symbol
	order  []string // insertion order, for deterministic dumps
}

// SymbolTable owns every scope created during one analysis run.
type SymbolTable struct {
	scopes  []*Scope
	current int
}

func NewSymbolTable() *SymbolTable {
	global := &Scope{parent: -1, depth: 0, names: make(map[string]*Symbol)}
	return &SymbolTable{scopes: []*Scope{global}, current: 0}
}

// Global returns the root scope.
func (st *SymbolTable) Global() *Scope { return st.scopes[0] }

// Depth returns the depth of the active scope.
func (st *SymbolTable) Depth() int { return st.scopes[st.current].depth }

// EnterScope creates a child of the active scope and makes it active.
func (st *SymbolTable) EnterScope() {
	child := &Scope{
		parent: st.current,
		depth:  st.scopes[st.current].depth + 1,
		names:  make(map[string]*Symbol),
	}
	st.scopes = append(st.scopes, child)
	st.current = len(st.scopes) - 1
}

// ExitScope makes the parent of the active scope active. The exited scope
// is retained.
func (st *SymbolTable) ExitScope() {
	parent := st.scopes[st.current].parent
	if parent < 0 {
		panic("ExitScope called on the global scope")
	}
	st.current = parent
}

// Declare adds a symbol to the active scope. It reports false when the
// name is already declared in that scope (shadowing an outer scope is
// legal and returns true).
func (st *SymbolTable) Declare(name string, typ Type, kind SymbolKind, pos Pos) (*Symbol, bool) {
	scope := st.scopes[st.current]
	if _, exists := scope.names[name]; exists {
		return nil, false
	}
	sym := &Symbol{Name: name, Type: typ, Kind: kind, Depth: scope.depth, Pos: pos}
	scope.names[name] = sym
	scope.order = append(scope.order, name)
	return sym, true
}

// Lookup walks the active scope chain child-to-parent and returns the
// first symbol bound to name, or false when the chain is exhausted.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := st.current; i >= 0; i = st.scopes[i].parent {
		if sym, ok := st.scopes[i].names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal checks only the active scope.
func (st *SymbolTable) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := st.scopes[st.current].names[name]
	return sym, ok
}

// Dump renders every retained scope in creation order, one symbol per
// line: name, type, scope depth, kind. Symbols keep their declaration
// order within a scope.
func (st *SymbolTable) Dump() string {
	var sb strings.Builder
	for _, scope := range st.scopes {
		for _, name := range scope.order {
			sym := scope.names[name]
			fmt.Fprintf(&sb, "%s %s %d %s\n", sym.Name, sym.Type, sym.Depth, sym.Kind)
		}
	}
	return sb.String()
}

func (st *SymbolTable) String() string { return st.Dump() }
