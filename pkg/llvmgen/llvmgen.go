// Package llvmgen emits LLVM IR for a lowered module, as a second
// backend next to the native assembly one. The textual output assembles
// with clang or llc unchanged.
package llvmgen

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
)

// Generate translates m to LLVM IR and returns it in textual form.
func Generate(m *ir.Module) (string, error) {
	g := newLgen()
	for _, f := range m.Funcs {
		g.declareFunc(f)
	}
	for _, f := range m.Funcs {
		if err := g.genFunc(f); err != nil {
			return "", err
		}
	}
	return g.mod.String(), nil
}

type lgen struct {
	mod    *llir.Module
	printf *llir.Func
	scanf  *llir.Func

	fmtInt   *llir.Global
	fmtFloat *llir.Global
	fmtStr   *llir.Global
	fmtRead  *llir.Global

	funcs map[string]*llir.Func
	strs  map[string]*llir.Global

	// per function
	vals   map[*ir.Value]value.Value
	blocks map[string]*llir.Block
}

func newLgen() *lgen {
	g := &lgen{
		mod:   llir.NewModule(),
		funcs: make(map[string]*llir.Func),
		strs:  make(map[string]*llir.Global),
	}
	i8ptr := types.NewPointer(types.I8)
	g.printf = g.mod.NewFunc("printf", types.I32, llir.NewParam("format", i8ptr))
	g.printf.Sig.Variadic = true
	g.scanf = g.mod.NewFunc("scanf", types.I32, llir.NewParam("format", i8ptr))
	g.scanf.Sig.Variadic = true

	g.fmtInt = g.strGlobal(".fmt_int", "%ld\n")
	g.fmtFloat = g.strGlobal(".fmt_float", "%f\n")
	g.fmtStr = g.strGlobal(".fmt_str", "%s\n")
	g.fmtRead = g.strGlobal(".fmt_read", "%ld")
	return g
}

func (g *lgen) strGlobal(name, s string) *llir.Global {
	gv := g.mod.NewGlobalDef(name, constant.NewCharArrayFromString(s+"\x00"))
	gv.Immutable = true
	return gv
}

// strPtr interns a string literal and returns an i8* to its first byte.
func (g *lgen) strPtr(s string) value.Value {
	gv, ok := g.strs[s]
	if !ok {
		gv = g.strGlobal(fmt.Sprintf(".str%d", len(g.strs)), s)
		g.strs[s] = gv
	}
	return gepFirst(gv)
}

func gepFirst(gv *llir.Global) constant.Constant {
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(gv.ContentType, gv, zero, zero)
}

func llType(t ir.Type) types.Type {
	switch t {
	case ir.I64:
		return types.I64
	case ir.F64:
		return types.Double
	case ir.I1:
		return types.I1
	case ir.Str:
		return types.NewPointer(types.I8)
	}
	return types.Void
}

func (g *lgen) declareFunc(f *ir.Func) {
	params := make([]*llir.Param, len(f.Params))
	for i, p := range f.Params {
		params[i] = llir.NewParam(p.String()[1:], llType(p.Type))
	}
	g.funcs[f.Name] = g.mod.NewFunc(f.Name, llType(f.Result), params...)
}

func (g *lgen) genFunc(f *ir.Func) error {
	fn := g.funcs[f.Name]
	g.vals = make(map[*ir.Value]value.Value)
	g.blocks = make(map[string]*llir.Block)

	for i, p := range f.Params {
		g.vals[p] = fn.Params[i]
	}
	for _, b := range f.Blocks {
		g.blocks[b.Name] = fn.NewBlock(b.Name)
	}

	// Phi operands may reference values on a back edge, so instructions
	// are translated in two passes: everything first, then phi arms.
	type pendingPhi struct {
		phi *llir.InstPhi
		in  *ir.Instr
	}
	var phis []pendingPhi

	for _, b := range f.Blocks {
		lb := g.blocks[b.Name]
		for _, in := range b.Instrs {
			if in.Op == ir.Phi {
				phi := &llir.InstPhi{Typ: llType(in.Dst.Type)}
				lb.Insts = append(lb.Insts, phi)
				g.vals[in.Dst] = phi
				phis = append(phis, pendingPhi{phi: phi, in: in})
				continue
			}
			if err := g.genInstr(lb, in); err != nil {
				return err
			}
		}
	}

	for _, p := range phis {
		for _, inc := range p.in.Incoming {
			p.phi.Incs = append(p.phi.Incs,
				llir.NewIncoming(g.operand(inc.Val), g.blocks[inc.Block]))
		}
	}
	return nil
}

func (g *lgen) operand(op ir.Operand) value.Value {
	switch o := op.(type) {
	case ir.ConstInt:
		return constant.NewInt(types.I64, o.V)
	case ir.ConstFloat:
		return constant.NewFloat(types.Double, o.V)
	case ir.ConstBool:
		return constant.NewBool(o.V)
	case ir.ConstStr:
		return g.strPtr(o.V)
	case ir.Ref:
		return g.vals[o.Val]
	}
	return nil
}

var icmpPreds = map[ir.Op]enum.IPred{
	ir.CmpEQ: enum.IPredEQ,
	ir.CmpNE: enum.IPredNE,
	ir.CmpLT: enum.IPredSLT,
	ir.CmpGT: enum.IPredSGT,
	ir.CmpLE: enum.IPredSLE,
	ir.CmpGE: enum.IPredSGE,
}

var fcmpPreds = map[ir.Op]enum.FPred{
	ir.CmpEQ: enum.FPredOEQ,
	ir.CmpNE: enum.FPredONE,
	ir.CmpLT: enum.FPredOLT,
	ir.CmpGT: enum.FPredOGT,
	ir.CmpLE: enum.FPredOLE,
	ir.CmpGE: enum.FPredOGE,
}

func isFloat(op ir.Operand) bool {
	switch o := op.(type) {
	case ir.ConstFloat:
		return true
	case ir.Ref:
		return o.Val.Type == ir.F64
	}
	return false
}

func (g *lgen) genInstr(b *llir.Block, in *ir.Instr) error {
	switch in.Op {
	case ir.Slot:
		g.vals[in.Dst] = b.NewAlloca(llType(in.Dst.Type))

	case ir.Load:
		slot := g.vals[in.Args[0].(ir.Ref).Val]
		g.vals[in.Dst] = b.NewLoad(llType(in.Dst.Type), slot)

	case ir.Store:
		slot := g.vals[in.Args[0].(ir.Ref).Val]
		b.NewStore(g.operand(in.Args[1]), slot)

	case ir.Add, ir.Sub, ir.Mul, ir.Div, ir.Rem:
		l, r := g.operand(in.Args[0]), g.operand(in.Args[1])
		var v value.Value
		if in.Dst.Type == ir.F64 {
			switch in.Op {
			case ir.Add:
				v = b.NewFAdd(l, r)
			case ir.Sub:
				v = b.NewFSub(l, r)
			case ir.Mul:
				v = b.NewFMul(l, r)
			case ir.Div:
				v = b.NewFDiv(l, r)
			}
		} else {
			switch in.Op {
			case ir.Add:
				v = b.NewAdd(l, r)
			case ir.Sub:
				v = b.NewSub(l, r)
			case ir.Mul:
				v = b.NewMul(l, r)
			case ir.Div:
				v = b.NewSDiv(l, r)
			case ir.Rem:
				v = b.NewSRem(l, r)
			}
		}
		g.vals[in.Dst] = v

	case ir.CmpEQ, ir.CmpNE, ir.CmpLT, ir.CmpGT, ir.CmpLE, ir.CmpGE:
		l, r := g.operand(in.Args[0]), g.operand(in.Args[1])
		if isFloat(in.Args[0]) {
			g.vals[in.Dst] = b.NewFCmp(fcmpPreds[in.Op], l, r)
		} else {
			g.vals[in.Dst] = b.NewICmp(icmpPreds[in.Op], l, r)
		}

	case ir.Neg:
		v := g.operand(in.Args[0])
		if in.Dst.Type == ir.F64 {
			g.vals[in.Dst] = b.NewFNeg(v)
		} else {
			g.vals[in.Dst] = b.NewSub(constant.NewInt(types.I64, 0), v)
		}

	case ir.Not:
		g.vals[in.Dst] = b.NewXor(g.operand(in.Args[0]), constant.NewBool(true))

	case ir.Call:
		callee, ok := g.funcs[in.Callee]
		if !ok {
			return fmt.Errorf("llvmgen: call to unknown function %q", in.Callee)
		}
		args := make([]value.Value, len(in.Args))
		for i, a := range in.Args {
			args[i] = g.operand(a)
		}
		call := b.NewCall(callee, args...)
		if in.Dst != nil {
			g.vals[in.Dst] = call
		}

	case ir.Print:
		g.genPrint(b, in.Args[0])

	case ir.Read:
		slot := g.vals[in.Args[0].(ir.Ref).Val]
		b.NewCall(g.scanf, gepFirst(g.fmtRead), slot)

	case ir.Br:
		b.NewBr(g.blocks[in.Args[0].(ir.Label).Name])

	case ir.CondBr:
		b.NewCondBr(g.operand(in.Args[0]),
			g.blocks[in.Args[1].(ir.Label).Name],
			g.blocks[in.Args[2].(ir.Label).Name])

	case ir.Ret:
		if len(in.Args) == 0 {
			b.NewRet(nil)
		} else {
			b.NewRet(g.operand(in.Args[0]))
		}

	default:
		return fmt.Errorf("llvmgen: unhandled op %s", in.Op)
	}
	return nil
}

func (g *lgen) genPrint(b *llir.Block, arg ir.Operand) {
	v := g.operand(arg)
	switch operandType(arg) {
	case ir.F64:
		b.NewCall(g.printf, gepFirst(g.fmtFloat), v)
	case ir.Str:
		b.NewCall(g.printf, gepFirst(g.fmtStr), v)
	case ir.I1:
		// Bools print as 0 or 1 through the integer format.
		b.NewCall(g.printf, gepFirst(g.fmtInt), b.NewZExt(v, types.I64))
	default:
		b.NewCall(g.printf, gepFirst(g.fmtInt), v)
	}
}

func operandType(op ir.Operand) ir.Type {
	switch o := op.(type) {
	case ir.ConstInt:
		return ir.I64
	case ir.ConstFloat:
		return ir.F64
	case ir.ConstBool:
		return ir.I1
	case ir.ConstStr:
		return ir.Str
	case ir.Ref:
		return o.Val.Type
	}
	return ir.Void
}
