// Package irgen lowers an analyzed program to the block-structured IR.
// Every source variable becomes a slot in its function's frame; control
// flow becomes explicit branches between named blocks; && and || become
// branch-and-phi so the right operand only evaluates when it must.
package irgen

import (
	"fmt"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/compiler"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
)

// Generate lowers prog, which must have been through Analyze, and
// verifies the result before returning it.
func Generate(prog *compiler.Program) (*ir.Module, error) {
	mod := &ir.Module{}

	for _, fn := range prog.Funcs() {
		g := newGen(mod)
		if err := g.genFunc(fn); err != nil {
			return nil, err
		}
	}

	// A program with no top-level statements and no explicit main still
	// gets an entry point that returns 0, so the output always links.
	if top := prog.TopLevel(); len(top) > 0 || mod.FuncByName("main") == nil {
		g := newGen(mod)
		if err := g.genImplicitMain(top); err != nil {
			return nil, err
		}
	}

	if err := ir.Verify(mod); err != nil {
		return nil, &compiler.InternalError{Stage: "irgen", Err: err}
	}
	return mod, nil
}

// gen holds per-function lowering state.
type gen struct {
	mod *ir.Module
	f   *ir.Func
	cur *ir.Block

	// slots maps each declared variable or parameter to its frame slot.
	// Symbols are unique per declaration, so shadowing needs no scope
	// bookkeeping here.
	slots map[*compiler.Symbol]*ir.Value

	names map[string]int // display-name uniquing for slots

	ifs, whiles, fors, logicals, deads int
}

func newGen(mod *ir.Module) *gen {
	return &gen{
		mod:   mod,
		slots: make(map[*compiler.Symbol]*ir.Value),
		names: make(map[string]int),
	}
}

func lowerType(t compiler.Type) ir.Type {
	switch t {
	case compiler.TypeInt:
		return ir.I64
	case compiler.TypeFloat:
		return ir.F64
	case compiler.TypeBool:
		return ir.I1
	case compiler.TypeString:
		return ir.Str
	}
	return ir.Void
}

// zeroOf is the implicit initial value of a declared variable.
func zeroOf(t ir.Type) ir.Operand {
	switch t {
	case ir.F64:
		return ir.ConstFloat{V: 0}
	case ir.I1:
		return ir.ConstBool{V: false}
	case ir.Str:
		return ir.ConstStr{V: ""}
	}
	return ir.ConstInt{V: 0}
}

func (g *gen) genFunc(fn *compiler.FuncDecl) error {
	g.f = &ir.Func{Name: fn.Name, Result: lowerType(fn.RetType)}
	g.mod.Funcs = append(g.mod.Funcs, g.f)
	g.cur = g.f.NewBlock("entry")

	// Parameters are spilled to slots so the body can reassign them like
	// any other variable.
	for i, p := range fn.Params {
		pv := g.f.NewValue(lowerType(p.Type), fmt.Sprintf("arg%d", i))
		g.f.Params = append(g.f.Params, pv)
	}
	for i, p := range fn.Params {
		slot := g.newSlot(p.Sym, p.Name, lowerType(p.Type))
		g.emit(&ir.Instr{Op: ir.Store, Args: []ir.Operand{ir.Ref{Val: slot}, ir.Ref{Val: g.f.Params[i]}}})
	}

	for _, s := range fn.Body.Stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	g.ensureTerminated(g.f.Result)
	return nil
}

func (g *gen) genImplicitMain(stmts []compiler.Stmt) error {
	g.f = &ir.Func{Name: "main", Result: ir.I64}
	g.mod.Funcs = append(g.mod.Funcs, g.f)
	g.cur = g.f.NewBlock("entry")
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	g.ensureTerminated(ir.I64)
	return nil
}

// ensureTerminated closes the current block if control can still fall off
// its end. For non-void functions the analyzer has proven this point
// unreachable, so the returned zero is never observed.
func (g *gen) ensureTerminated(result ir.Type) {
	if g.cur.Terminator() != nil {
		return
	}
	if result == ir.Void {
		g.emit(&ir.Instr{Op: ir.Ret})
		return
	}
	g.emit(&ir.Instr{Op: ir.Ret, Args: []ir.Operand{zeroOf(result)}})
}

// emit appends to the current block. Statements that follow a terminator
// land in a fresh block the optimizer later discards as unreachable.
func (g *gen) emit(in *ir.Instr) {
	if g.cur.Terminator() != nil {
		g.cur = g.f.NewBlock(fmt.Sprintf("dead%d", g.deads))
		g.deads++
	}
	g.cur.Instrs = append(g.cur.Instrs, in)
}

func (g *gen) newSlot(sym *compiler.Symbol, name string, t ir.Type) *ir.Value {
	display := name
	if n := g.names[name]; n > 0 {
		display = fmt.Sprintf("%s.%d", name, n)
	}
	g.names[name]++
	v := g.f.NewValue(t, display)
	g.emit(&ir.Instr{Op: ir.Slot, Dst: v})
	if sym != nil {
		g.slots[sym] = v
	}
	return v
}

func (g *gen) slotFor(sym *compiler.Symbol) (*ir.Value, error) {
	v, ok := g.slots[sym]
	if !ok {
		return nil, &compiler.InternalError{Stage: "irgen",
			Err: fmt.Errorf("no slot for %q", sym.Name)}
	}
	return v, nil
}

func (g *gen) genStmt(s compiler.Stmt) error {
	switch n := s.(type) {
	case *compiler.VarDecl:
		slot := g.newSlot(n.Sym, n.Name, lowerType(n.DeclType))
		init := zeroOf(slot.Type)
		if n.Init != nil {
			v, err := g.genExpr(n.Init)
			if err != nil {
				return err
			}
			init = v
		}
		g.emit(&ir.Instr{Op: ir.Store, Args: []ir.Operand{ir.Ref{Val: slot}, init}})
		return nil

	case *compiler.AssignStmt:
		slot, err := g.slotFor(n.Sym)
		if err != nil {
			return err
		}
		v, err := g.genExpr(n.Value)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Store, Args: []ir.Operand{ir.Ref{Val: slot}, v}})
		return nil

	case *compiler.IfStmt:
		return g.genIf(n)

	case *compiler.WhileStmt:
		id := g.whiles
		g.whiles++
		cond := fmt.Sprintf("while_cond%d", id)
		body := fmt.Sprintf("while_body%d", id)
		end := fmt.Sprintf("while_end%d", id)

		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: cond}}})
		g.cur = g.f.NewBlock(cond)
		c, err := g.genExpr(n.Condition)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.CondBr, Args: []ir.Operand{c, ir.Label{Name: body}, ir.Label{Name: end}}})

		g.cur = g.f.NewBlock(body)
		if err := g.genStmt(n.Body); err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: cond}}})

		g.cur = g.f.NewBlock(end)
		return nil

	case *compiler.ForStmt:
		id := g.fors
		g.fors++
		cond := fmt.Sprintf("for_cond%d", id)
		body := fmt.Sprintf("for_body%d", id)
		incr := fmt.Sprintf("for_incr%d", id)
		end := fmt.Sprintf("for_end%d", id)

		if err := g.genStmt(n.Init); err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: cond}}})
		g.cur = g.f.NewBlock(cond)
		c, err := g.genExpr(n.Cond)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.CondBr, Args: []ir.Operand{c, ir.Label{Name: body}, ir.Label{Name: end}}})

		g.cur = g.f.NewBlock(body)
		if err := g.genStmt(n.Body); err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: incr}}})

		g.cur = g.f.NewBlock(incr)
		if err := g.genStmt(n.Post); err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: cond}}})

		g.cur = g.f.NewBlock(end)
		return nil

	case *compiler.ReturnStmt:
		if n.Expr == nil {
			g.emit(&ir.Instr{Op: ir.Ret})
			return nil
		}
		v, err := g.genExpr(n.Expr)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Ret, Args: []ir.Operand{v}})
		return nil

	case *compiler.PrintStmt:
		v, err := g.genExpr(n.Expr)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Print, Args: []ir.Operand{v}})
		return nil

	case *compiler.ReadStmt:
		slot, err := g.slotFor(n.Sym)
		if err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Read, Args: []ir.Operand{ir.Ref{Val: slot}}})
		return nil

	case *compiler.BlockStmt:
		for _, s := range n.Stmts {
			if err := g.genStmt(s); err != nil {
				return err
			}
		}
		return nil

	case *compiler.ExprStmt:
		_, err := g.genExpr(n.Expr)
		return err
	}
	return &compiler.InternalError{Stage: "irgen", Err: fmt.Errorf("unhandled statement %T", s)}
}

func (g *gen) genIf(n *compiler.IfStmt) error {
	id := g.ifs
	g.ifs++
	thenName := fmt.Sprintf("then%d", id)
	endName := fmt.Sprintf("endif%d", id)
	elseName := endName
	if n.ElseBody != nil {
		elseName = fmt.Sprintf("else%d", id)
	}

	c, err := g.genExpr(n.Condition)
	if err != nil {
		return err
	}
	g.emit(&ir.Instr{Op: ir.CondBr, Args: []ir.Operand{c, ir.Label{Name: thenName}, ir.Label{Name: elseName}}})

	g.cur = g.f.NewBlock(thenName)
	if err := g.genStmt(n.Body); err != nil {
		return err
	}
	g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: endName}}})

	if n.ElseBody != nil {
		g.cur = g.f.NewBlock(elseName)
		if err := g.genStmt(n.ElseBody); err != nil {
			return err
		}
		g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: endName}}})
	}

	g.cur = g.f.NewBlock(endName)
	return nil
}

var binOps = map[compiler.TokenType]ir.Op{
	compiler.PLUS:       ir.Add,
	compiler.MINUS:      ir.Sub,
	compiler.STAR:       ir.Mul,
	compiler.SLASH:      ir.Div,
	compiler.PERCENT:    ir.Rem,
	compiler.EQUALS:     ir.CmpEQ,
	compiler.NOT_EQ:     ir.CmpNE,
	compiler.LESS:       ir.CmpLT,
	compiler.GREATER:    ir.CmpGT,
	compiler.LESS_EQ:    ir.CmpLE,
	compiler.GREATER_EQ: ir.CmpGE,
}

func (g *gen) genExpr(e compiler.Expr) (ir.Operand, error) {
	switch n := e.(type) {
	case *compiler.IntLit:
		return ir.ConstInt{V: n.Value}, nil
	case *compiler.FloatLit:
		return ir.ConstFloat{V: n.Value}, nil
	case *compiler.StringLit:
		return ir.ConstStr{V: n.Value}, nil
	case *compiler.BoolLit:
		return ir.ConstBool{V: n.Value}, nil

	case *compiler.VarRef:
		slot, err := g.slotFor(n.Sym)
		if err != nil {
			return nil, err
		}
		dst := g.f.NewValue(lowerType(n.ResultType()), "")
		g.emit(&ir.Instr{Op: ir.Load, Dst: dst, Args: []ir.Operand{ir.Ref{Val: slot}}})
		return ir.Ref{Val: dst}, nil

	case *compiler.BinaryExpr:
		l, err := g.genExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := g.genExpr(n.Right)
		if err != nil {
			return nil, err
		}
		op, ok := binOps[n.Op]
		if !ok {
			return nil, &compiler.InternalError{Stage: "irgen",
				Err: fmt.Errorf("unhandled operator %s", n.Op)}
		}
		dst := g.f.NewValue(lowerType(n.ResultType()), "")
		g.emit(&ir.Instr{Op: op, Dst: dst, Args: []ir.Operand{l, r}})
		return ir.Ref{Val: dst}, nil

	case *compiler.LogicalExpr:
		return g.genLogical(n)

	case *compiler.UnaryExpr:
		v, err := g.genExpr(n.Right)
		if err != nil {
			return nil, err
		}
		op := ir.Neg
		if n.Op == compiler.NOT {
			op = ir.Not
		}
		dst := g.f.NewValue(lowerType(n.ResultType()), "")
		g.emit(&ir.Instr{Op: op, Dst: dst, Args: []ir.Operand{v}})
		return ir.Ref{Val: dst}, nil

	case *compiler.CallExpr:
		var args []ir.Operand
		for _, a := range n.Args {
			v, err := g.genExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		in := &ir.Instr{Op: ir.Call, Callee: n.Name, Args: args}
		if n.ResultType() != compiler.TypeVoid {
			in.Dst = g.f.NewValue(lowerType(n.ResultType()), "")
		}
		g.emit(in)
		if in.Dst == nil {
			return ir.ConstInt{V: 0}, nil
		}
		return ir.Ref{Val: in.Dst}, nil
	}
	return nil, &compiler.InternalError{Stage: "irgen", Err: fmt.Errorf("unhandled expression %T", e)}
}

// genLogical lowers && and || with short-circuit control flow. The right
// operand evaluates in its own block; a phi at the join picks either the
// short-circuit constant or the right operand's value.
func (g *gen) genLogical(n *compiler.LogicalExpr) (ir.Operand, error) {
	id := g.logicals
	g.logicals++
	kind := "and"
	if n.Op == compiler.OR_LOGICAL {
		kind = "or"
	}
	rhsName := fmt.Sprintf("%s%d_rhs", kind, id)
	endName := fmt.Sprintf("%s%d_end", kind, id)

	l, err := g.genExpr(n.Left)
	if err != nil {
		return nil, err
	}
	// The block the phi sees as predecessor is whatever block the left
	// operand finished in, not necessarily where it started.
	fromLeft := g.cur.Name
	if n.Op == compiler.AND_LOGICAL {
		g.emit(&ir.Instr{Op: ir.CondBr, Args: []ir.Operand{l, ir.Label{Name: rhsName}, ir.Label{Name: endName}}})
	} else {
		g.emit(&ir.Instr{Op: ir.CondBr, Args: []ir.Operand{l, ir.Label{Name: endName}, ir.Label{Name: rhsName}}})
	}

	g.cur = g.f.NewBlock(rhsName)
	r, err := g.genExpr(n.Right)
	if err != nil {
		return nil, err
	}
	fromRight := g.cur.Name
	g.emit(&ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: endName}}})

	g.cur = g.f.NewBlock(endName)
	short := ir.ConstBool{V: n.Op == compiler.OR_LOGICAL}
	dst := g.f.NewValue(ir.I1, "")
	g.emit(&ir.Instr{Op: ir.Phi, Dst: dst, Incoming: []ir.Incoming{
		{Val: short, Block: fromLeft},
		{Val: r, Block: fromRight},
	}})
	return ir.Ref{Val: dst}, nil
}
