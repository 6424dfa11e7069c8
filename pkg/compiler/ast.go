package compiler

import (
	"fmt"
	"strings"
)

//  Expression nodes

// Expr is implemented by every node that produces a value. After semantic
// analysis every expression carries its resolved type.
type Expr interface {
	exprNode()
	ExprPos() Pos
	ResultType() Type
	String() string
}

// exprInfo is embedded in every expression node. The parser fills Pos;
// the semantic analyzer fills Typ.
type exprInfo struct {
	Pos Pos
	Typ Type
}

func (e *exprInfo) exprNode()        {}
func (e *exprInfo) ExprPos() Pos     { return e.Pos }
func (e *exprInfo) ResultType() Type { return e.Typ }

// IntLit is an integer constant.
//
//	int x = 10;
//	        ^^  IntLit{Value: 10}
type IntLit struct {
	exprInfo
	Value int64
}

func (l *IntLit) String() string { return fmt.Sprintf("%d", l.Value) }

// FloatLit is a floating-point constant.
type FloatLit struct {
	exprInfo
	Value float64
}

func (l *FloatLit) String() string { return fmt.Sprintf("%g", l.Value) }

// StringLit is a string constant "..."
type StringLit struct {
	exprInfo
	Value string
}

func (l *StringLit) String() string { return fmt.Sprintf("%q", l.Value) }

// BoolLit is true or false.
type BoolLit struct {
	exprInfo
	Value bool
}

func (l *BoolLit) String() string { return fmt.Sprintf("%t", l.Value) }

// VarRef is a read of a named variable.
//
//	return x;
//	       ^  VarRef{Name: "x"}
type VarRef struct {
	exprInfo
	Name string
	Sym  *Symbol // resolved by the semantic analyzer
}

func (v *VarRef) String() string { return v.Name }

// BinaryExpr represents an arithmetic or comparison operation: Left Op Right.
type BinaryExpr struct {
	exprInfo
	Op    TokenType
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// LogicalExpr represents Left && Right or Left || Right. It is separate
// from BinaryExpr because code generation lowers it with short-circuit
// branches.
type LogicalExpr struct {
	exprInfo
	Op    TokenType
	Left  Expr
	Right Expr
}

func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// UnaryExpr represents Op Right (e.g., -x, !ok).
type UnaryExpr struct {
	exprInfo
	Op    TokenType
	Right Expr
}

func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Right) }

// CallExpr represents name(args).
type CallExpr struct {
	exprInfo
	Name string
	Args []Expr
	Sym  *Symbol // resolved callee
}

func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	StmtPos() Pos
	String() string
}

type stmtInfo struct {
	Pos Pos
}

func (s *stmtInfo) stmtNode()    {}
func (s *stmtInfo) StmtPos() Pos { return s.Pos }

// VarDecl represents  type name = expr;  (Init may be nil).
type VarDecl struct {
	stmtInfo
	Name     string
	DeclType Type
	Init     Expr
	Sym      *Symbol // filled by the semantic analyzer
}

func (d *VarDecl) String() string {
	if d.Init == nil {
		return fmt.Sprintf("VarDecl(%s %s)", d.DeclType, d.Name)
	}
	return fmt.Sprintf("VarDecl(%s %s = %s)", d.DeclType, d.Name, d.Init)
}

// AssignStmt represents  name = expr;
type AssignStmt struct {
	stmtInfo
	Name  string
	Value Expr
	Sym   *Symbol // resolved target
}

func (a *AssignStmt) String() string {
	return fmt.Sprintf("Assign(%s = %s)", a.Name, a.Value)
}

// ReturnStmt represents  return expr;  (Expr is nil for bare return).
type ReturnStmt struct {
	stmtInfo
	Expr Expr
}

func (r *ReturnStmt) String() string {
	if r.Expr == nil {
		return "ReturnStmt()"
	}
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	stmtInfo
	Stmts []Stmt
}

func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) body [else elseBody]. ElseBody is a
// *BlockStmt or a chained *IfStmt, or nil.
type IfStmt struct {
	stmtInfo
	Condition Expr
	Body      *BlockStmt
	ElseBody  Stmt
}

func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// WhileStmt represents while (cond) body.
type WhileStmt struct {
	stmtInfo
	Condition Expr
	Body      *BlockStmt
}

func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// ForStmt represents for (init cond; post) body. Init is a *VarDecl and
// carries its own terminating semicolon in the grammar; Post is an
// *AssignStmt or *ExprStmt.
type ForStmt struct {
	stmtInfo
	Init Stmt
	Cond Expr
	Post Stmt
	Body *BlockStmt
}

func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%s, cond=%s, post=%s, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// PrintStmt represents print(expr);
type PrintStmt struct {
	stmtInfo
	Expr Expr
}

func (p *PrintStmt) String() string { return fmt.Sprintf("PrintStmt(%s)", p.Expr) }

// ReadStmt represents read(name); which reads an integer into a declared
// int variable.
type ReadStmt struct {
	stmtInfo
	Name string
	Sym  *Symbol // resolved target
}

func (r *ReadStmt) String() string { return fmt.Sprintf("ReadStmt(%s)", r.Name) }

// ExprStmt represents an expression evaluated for its side effects
// (in practice a function call).
type ExprStmt struct {
	stmtInfo
	Expr Expr
}

func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.Expr) }

// Param is one declared function parameter.
type Param struct {
	Name string
	Type Type
	Pos  Pos
	Sym  *Symbol // set by Analyze
}

func (p Param) String() string { return fmt.Sprintf("%s %s", p.Type, p.Name) }

// FuncDecl represents def name(params): ret { body }.
type FuncDecl struct {
	stmtInfo
	Name    string
	Params  []Param
	RetType Type
	Body    *BlockStmt
	Sym     *Symbol
}

func (f *FuncDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("FuncDecl(%s(%s): %s, body=%s)",
		f.Name, strings.Join(params, ", "), f.RetType, f.Body)
}

// Program is the AST root: top-level statements in source order. Function
// declarations may be interleaved with ordinary statements; the ordinary
// statements form the body of the implicit main function.
type Program struct {
	Stmts []Stmt
}

// Funcs returns the declared functions in source order.
func (p *Program) Funcs() []*FuncDecl {
	var fns []*FuncDecl
	for _, s := range p.Stmts {
		if fn, ok := s.(*FuncDecl); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// TopLevel returns the non-function statements in source order. They
// execute as the body of the implicit main.
func (p *Program) TopLevel() []Stmt {
	var stmts []Stmt
	for _, s := range p.Stmts {
		if _, ok := s.(*FuncDecl); !ok {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
