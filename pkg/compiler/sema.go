package compiler

// Analyzer walks a parsed program, enforces the scoping and typing rules,
// and annotates the AST in place: every expression gets its resolved type
// and every name reference gets its *Symbol. The completed symbol table is
// returned for the dump artifact; its scopes are retained after analysis.
type Analyzer struct {
	syms *SymbolTable

	// retType is the declared result type of the function being analyzed.
	// Top-level statements are analyzed as the body of the implicit int
	// main.
	retType Type
}

// Analyze checks prog and returns the completed symbol table. The first
// violation is returned as a *SemanticError; prog is only partially
// annotated in that case and must not be passed to later stages.
func Analyze(prog *Program) (*SymbolTable, error) {
	a := &Analyzer{syms: NewSymbolTable()}

	// Functions are declared before any body is checked so calls may
	// reference functions declared later in the file.
	for _, fn := range prog.Funcs() {
		sig := &Signature{Result: fn.RetType}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, p.Type)
		}
		sym, ok := a.syms.Declare(fn.Name, fn.RetType, SymFunction, fn.Pos)
		if !ok {
			return nil, semErr(Redeclaration, fn.Pos, "function %q already declared", fn.Name)
		}
		sym.Sig = sig
		fn.Sym = sym
	}

	// A user-defined main and loose top-level statements would both claim
	// the program entry point.
	if len(prog.TopLevel()) > 0 {
		for _, fn := range prog.Funcs() {
			if fn.Name == "main" {
				return nil, semErr(Redeclaration, fn.Pos,
					"function %q conflicts with top-level statements", fn.Name)
			}
		}
	}

	for _, fn := range prog.Funcs() {
		if err := a.analyzeFunc(fn); err != nil {
			return nil, err
		}
	}

	if top := prog.TopLevel(); len(top) > 0 {
		a.retType = TypeInt // implicit main
		a.syms.EnterScope()
		for _, s := range top {
			if err := a.analyzeStmt(s); err != nil {
				return nil, err
			}
		}
		a.syms.ExitScope()
	}

	return a.syms, nil
}

func (a *Analyzer) analyzeFunc(fn *FuncDecl) error {
	a.retType = fn.RetType

	// Parameters live in the function body's scope, so a local that
	// reuses a parameter name is a redeclaration, not a shadow.
	a.syms.EnterScope()
	defer a.syms.ExitScope()
	for i := range fn.Params {
		p := &fn.Params[i]
		sym, ok := a.syms.Declare(p.Name, p.Type, SymParameter, p.Pos)
		if !ok {
			return semErr(Redeclaration, p.Pos, "parameter %q already declared", p.Name)
		}
		p.Sym = sym
	}
	for _, s := range fn.Body.Stmts {
		if err := a.analyzeStmt(s); err != nil {
			return err
		}
	}

	if fn.RetType != TypeVoid && !stmtsReturn(fn.Body.Stmts) {
		return semErr(MissingReturn, fn.Pos,
			"function %q does not return on every path", fn.Name)
	}
	return nil
}

func (a *Analyzer) analyzeStmt(s Stmt) error {
	switch n := s.(type) {
	case *VarDecl:
		if n.Init != nil {
			t, err := a.analyzeExpr(n.Init)
			if err != nil {
				return err
			}
			if t != n.DeclType {
				return semErr(TypeMismatch, n.Init.ExprPos(),
					"cannot assign %s to variable %q of type %s", t, n.Name, n.DeclType)
			}
		}
		sym, ok := a.syms.Declare(n.Name, n.DeclType, SymVariable, n.Pos)
		if !ok {
			return semErr(Redeclaration, n.Pos, "%q already declared in this scope", n.Name)
		}
		n.Sym = sym
		return nil

	case *AssignStmt:
		sym, ok := a.syms.Lookup(n.Name)
		if !ok {
			return semErr(UndeclaredIdentifier, n.Pos, "undeclared identifier %q", n.Name)
		}
		if sym.Kind == SymFunction {
			return semErr(TypeMismatch, n.Pos, "cannot assign to function %q", n.Name)
		}
		t, err := a.analyzeExpr(n.Value)
		if err != nil {
			return err
		}
		if t != sym.Type {
			return semErr(TypeMismatch, n.Value.ExprPos(),
				"cannot assign %s to variable %q of type %s", t, n.Name, sym.Type)
		}
		n.Sym = sym
		return nil

	case *IfStmt:
		if err := a.analyzeCond(n.Condition); err != nil {
			return err
		}
		if err := a.analyzeStmt(n.Body); err != nil {
			return err
		}
		if n.ElseBody != nil {
			return a.analyzeStmt(n.ElseBody)
		}
		return nil

	case *WhileStmt:
		if err := a.analyzeCond(n.Condition); err != nil {
			return err
		}
		return a.analyzeStmt(n.Body)

	case *ForStmt:
		// The initializer's variable is scoped to the whole loop.
		a.syms.EnterScope()
		defer a.syms.ExitScope()
		if err := a.analyzeStmt(n.Init); err != nil {
			return err
		}
		if err := a.analyzeCond(n.Cond); err != nil {
			return err
		}
		if err := a.analyzeStmt(n.Post); err != nil {
			return err
		}
		return a.analyzeStmt(n.Body)

	case *ReturnStmt:
		if a.retType == TypeVoid {
			if n.Expr != nil {
				return semErr(TypeMismatch, n.Pos, "void function returns a value")
			}
			return nil
		}
		if n.Expr == nil {
			return semErr(TypeMismatch, n.Pos, "missing return value (function returns %s)", a.retType)
		}
		t, err := a.analyzeExpr(n.Expr)
		if err != nil {
			return err
		}
		if t != a.retType {
			return semErr(TypeMismatch, n.Expr.ExprPos(),
				"cannot return %s from function returning %s", t, a.retType)
		}
		return nil

	case *PrintStmt:
		t, err := a.analyzeExpr(n.Expr)
		if err != nil {
			return err
		}
		if !t.Printable() {
			return semErr(InvalidOperandType, n.Expr.ExprPos(), "cannot print %s value", t)
		}
		return nil

	case *ReadStmt:
		sym, ok := a.syms.Lookup(n.Name)
		if !ok {
			return semErr(UndeclaredIdentifier, n.Pos, "undeclared identifier %q", n.Name)
		}
		if sym.Kind == SymFunction {
			return semErr(TypeMismatch, n.Pos, "read target %q is a function", n.Name)
		}
		if sym.Type != TypeInt {
			return semErr(TypeMismatch, n.Pos, "read target %q must be int, is %s", n.Name, sym.Type)
		}
		n.Sym = sym
		return nil

	case *ExprStmt:
		_, err := a.analyzeExpr(n.Expr)
		return err

	case *BlockStmt:
		a.syms.EnterScope()
		defer a.syms.ExitScope()
		for _, s := range n.Stmts {
			if err := a.analyzeStmt(s); err != nil {
				return err
			}
		}
		return nil

	case *FuncDecl:
		// The parser only produces these at the top level, which Analyze
		// handles before statements are walked.
		return semErr(Redeclaration, n.Pos, "nested function declaration %q", n.Name)

	default:
		return semErr(InvalidOperandType, s.StmtPos(), "unhandled statement %T", s)
	}
}

// analyzeCond checks a loop or branch condition, which must be boolean.
func (a *Analyzer) analyzeCond(e Expr) error {
	t, err := a.analyzeExpr(e)
	if err != nil {
		return err
	}
	if t != TypeBool {
		return semErr(TypeMismatch, e.ExprPos(), "condition must be bool, got %s", t)
	}
	return nil
}

func (a *Analyzer) analyzeExpr(e Expr) (Type, error) {
	switch n := e.(type) {
	case *IntLit:
		n.Typ = TypeInt
	case *FloatLit:
		n.Typ = TypeFloat
	case *StringLit:
		n.Typ = TypeString
	case *BoolLit:
		n.Typ = TypeBool

	case *VarRef:
		sym, ok := a.syms.Lookup(n.Name)
		if !ok {
			return TypeInvalid, semErr(UndeclaredIdentifier, n.Pos, "undeclared identifier %q", n.Name)
		}
		if sym.Kind == SymFunction {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos, "function %q used as a value", n.Name)
		}
		n.Sym = sym
		n.Typ = sym.Type

	case *BinaryExpr:
		lt, err := a.analyzeExpr(n.Left)
		if err != nil {
			return TypeInvalid, err
		}
		rt, err := a.analyzeExpr(n.Right)
		if err != nil {
			return TypeInvalid, err
		}
		t, err := a.binaryResult(n, lt, rt)
		if err != nil {
			return TypeInvalid, err
		}
		n.Typ = t

	case *LogicalExpr:
		lt, err := a.analyzeExpr(n.Left)
		if err != nil {
			return TypeInvalid, err
		}
		rt, err := a.analyzeExpr(n.Right)
		if err != nil {
			return TypeInvalid, err
		}
		if lt != TypeBool || rt != TypeBool {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %s requires bool operands, got %s and %s", opLexeme(n.Op), lt, rt)
		}
		n.Typ = TypeBool

	case *UnaryExpr:
		t, err := a.analyzeExpr(n.Right)
		if err != nil {
			return TypeInvalid, err
		}
		switch n.Op {
		case MINUS:
			if !t.IsNumeric() {
				return TypeInvalid, semErr(InvalidOperandType, n.Pos,
					"unary - requires a numeric operand, got %s", t)
			}
			n.Typ = t
		case NOT:
			if t != TypeBool {
				return TypeInvalid, semErr(InvalidOperandType, n.Pos,
					"unary ! requires a bool operand, got %s", t)
			}
			n.Typ = TypeBool
		}

	case *CallExpr:
		sym, ok := a.syms.Lookup(n.Name)
		if !ok {
			return TypeInvalid, semErr(UndeclaredIdentifier, n.Pos, "undeclared function %q", n.Name)
		}
		if sym.Kind != SymFunction {
			return TypeInvalid, semErr(TypeMismatch, n.Pos, "%q is not a function", n.Name)
		}
		if len(n.Args) != len(sym.Sig.Params) {
			return TypeInvalid, semErr(ArgumentCountMismatch, n.Pos,
				"function %q expects %d argument(s), got %d", n.Name, len(sym.Sig.Params), len(n.Args))
		}
		for i, arg := range n.Args {
			t, err := a.analyzeExpr(arg)
			if err != nil {
				return TypeInvalid, err
			}
			if t != sym.Sig.Params[i] {
				return TypeInvalid, semErr(ArgumentTypeMismatch, arg.ExprPos(),
					"argument %d of %q must be %s, got %s", i+1, n.Name, sym.Sig.Params[i], t)
			}
		}
		n.Sym = sym
		n.Typ = sym.Sig.Result

	default:
		return TypeInvalid, semErr(InvalidOperandType, e.ExprPos(), "unhandled expression %T", e)
	}
	return e.ResultType(), nil
}

func (a *Analyzer) binaryResult(n *BinaryExpr, lt, rt Type) (Type, error) {
	switch n.Op {
	case PLUS, MINUS, STAR, SLASH:
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %s requires numeric operands, got %s and %s", opLexeme(n.Op), lt, rt)
		}
		if lt != rt {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %s requires matching operand types, got %s and %s", opLexeme(n.Op), lt, rt)
		}
		return lt, nil

	case PERCENT:
		if lt != TypeInt || rt != TypeInt {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %% requires int operands, got %s and %s", lt, rt)
		}
		return TypeInt, nil

	case LESS, GREATER, LESS_EQ, GREATER_EQ:
		if !lt.IsNumeric() || !rt.IsNumeric() || lt != rt {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %s requires matching numeric operands, got %s and %s", opLexeme(n.Op), lt, rt)
		}
		return TypeBool, nil

	case EQUALS, NOT_EQ:
		if lt != rt || !(lt.IsNumeric() || lt == TypeBool) {
			return TypeInvalid, semErr(InvalidOperandType, n.Pos,
				"operator %s requires matching numeric or bool operands, got %s and %s", opLexeme(n.Op), lt, rt)
		}
		return TypeBool, nil
	}
	return TypeInvalid, semErr(InvalidOperandType, n.Pos, "unknown operator %s", n.Op)
}

// opLexeme renders an operator token as it appears in source, for
// diagnostics.
func opLexeme(tt TokenType) string {
	switch tt {
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case PERCENT:
		return "%"
	case LESS:
		return "<"
	case GREATER:
		return ">"
	case LESS_EQ:
		return "<="
	case GREATER_EQ:
		return ">="
	case EQUALS:
		return "=="
	case NOT_EQ:
		return "!="
	case AND_LOGICAL:
		return "&&"
	case OR_LOGICAL:
		return "||"
	case NOT:
		return "!"
	}
	return tt.String()
}

// stmtsReturn reports whether a statement sequence definitely returns:
// some statement in it returns on every path through it.
func stmtsReturn(stmts []Stmt) bool {
	for _, s := range stmts {
		if stmtReturns(s) {
			return true
		}
	}
	return false
}

// stmtReturns is the structural reachable-return check: return always
// returns, if/else returns when both arms do, and loop bodies never count
// because they may not execute.
func stmtReturns(s Stmt) bool {
	switch n := s.(type) {
	case *ReturnStmt:
		return true
	case *BlockStmt:
		return stmtsReturn(n.Stmts)
	case *IfStmt:
		return n.ElseBody != nil && stmtReturns(n.Body) && stmtReturns(n.ElseBody)
	}
	return false
}
