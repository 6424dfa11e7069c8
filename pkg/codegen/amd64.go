// Package codegen lowers IR to x86-64 NASM assembly following the System
// V AMD64 calling convention. The output links against libc: print and
// read become printf and scanf calls, and the module's main is the C
// entry point.
//
// The generated code is deliberately simple: every IR value and slot owns
// an 8-byte cell in its function's frame, instructions load their
// operands from those cells into registers and store the result back.
// Register allocation is the optimizer's problem in some other life.
package codegen

import (
	"fmt"
	"math"
	"strings"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
)

// SysV register classes. Arguments beyond these are not supported.
var intArgRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

const maxFloatArgs = 8

// Error is a lowering failure for a construct the backend cannot express,
// such as too many arguments for the register convention.
type Error struct {
	Fn  string
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("codegen: %s: %s", e.Fn, e.Msg) }

// Generate emits a complete NASM translation unit for m.
func Generate(m *ir.Module) (string, error) {
	if m.FuncByName("main") == nil {
		return "", &Error{Fn: "main", Msg: "module has no main function"}
	}
	g := &generator{
		floats: make(map[uint64]string),
		strs:   make(map[string]string),
	}
	g.dataLine(`fmt_int: db "%ld", 10, 0`)
	g.dataLine(`fmt_float: db "%f", 10, 0`)
	g.dataLine(`fmt_str: db "%s", 10, 0`)
	g.dataLine(`fmt_read: db "%ld", 0`)
	g.dataLine("neg_mask: dq 0x8000000000000000")

	for _, f := range m.Funcs {
		if err := g.genFunc(f); err != nil {
			return "", err
		}
	}

	var out strings.Builder
	out.WriteString("global main\n")
	out.WriteString("extern printf\n")
	out.WriteString("extern scanf\n\n")
	out.WriteString("section .data\n")
	for _, d := range g.data {
		out.WriteString("\t" + d + "\n")
	}
	out.WriteString("\nsection .text\n")
	out.WriteString(g.text.String())
	return out.String(), nil
}

type generator struct {
	text strings.Builder
	data []string

	floats map[uint64]string // float bit pattern to data label
	strs   map[string]string // literal to data label

	// per function state
	fn      *ir.Func
	offsets map[*ir.Value]int
	frame   int
	// phiMoves holds, per predecessor block, the stores that realize phi
	// dataflow on the edges out of it.
	phiMoves map[string][]phiMove
}

type phiMove struct {
	dst *ir.Value
	val ir.Operand
}

func (g *generator) dataLine(s string) { g.data = append(g.data, s) }

func (g *generator) emit(format string, args ...any) {
	fmt.Fprintf(&g.text, "\t"+format+"\n", args...)
}

func (g *generator) label(format string, args ...any) {
	fmt.Fprintf(&g.text, format+":\n", args...)
}

// floatLabel interns a float constant in .data.
func (g *generator) floatLabel(v float64) string {
	bits := math.Float64bits(v)
	if l, ok := g.floats[bits]; ok {
		return l
	}
	l := fmt.Sprintf("LCf%d", len(g.floats))
	g.floats[bits] = l
	g.dataLine(fmt.Sprintf("%s: dq 0x%016x ; %g", l, bits, v))
	return l
}

// strLabel interns a string literal in .data.
func (g *generator) strLabel(s string) string {
	if l, ok := g.strs[s]; ok {
		return l
	}
	l := fmt.Sprintf("LCs%d", len(g.strs))
	g.strs[s] = l
	var b strings.Builder
	fmt.Fprintf(&b, "%s: db ", l)
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "%d, ", s[i])
	}
	b.WriteString("0")
	g.dataLine(b.String())
	return l
}

// cell returns the frame cell of v, allocating one on first use.
func (g *generator) cell(v *ir.Value) string {
	off, ok := g.offsets[v]
	if !ok {
		g.frame += 8
		off = g.frame
		g.offsets[v] = off
	}
	return fmt.Sprintf("qword [rbp-%d]", off)
}

func (g *generator) genFunc(f *ir.Func) error {
	g.fn = f
	g.offsets = make(map[*ir.Value]int)
	g.frame = 0
	g.phiMoves = make(map[string][]phiMove)

	// Reserve cells up front so the frame size is known before the
	// prologue is written.
	for _, p := range f.Params {
		g.cell(p)
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Dst != nil {
				g.cell(in.Dst)
			}
			if in.Op == ir.Phi {
				for _, inc := range in.Incoming {
					g.phiMoves[inc.Block] = append(g.phiMoves[inc.Block],
						phiMove{dst: in.Dst, val: inc.Val})
				}
			}
		}
	}

	nInt, nFloat := 0, 0
	for _, p := range f.Params {
		if p.Type == ir.F64 {
			nFloat++
		} else {
			nInt++
		}
	}
	if nInt > len(intArgRegs) {
		return &Error{Fn: f.Name, Msg: fmt.Sprintf("more than %d integer parameters", len(intArgRegs))}
	}
	if nFloat > maxFloatArgs {
		return &Error{Fn: f.Name, Msg: fmt.Sprintf("more than %d float parameters", maxFloatArgs)}
	}

	g.label("%s", f.Name)
	g.emit("push rbp")
	g.emit("mov rbp, rsp")
	frame := (g.frame + 15) &^ 15
	if frame > 0 {
		g.emit("sub rsp, %d", frame)
	}

	// Spill incoming arguments to their cells.
	iInt, iFloat := 0, 0
	for _, p := range f.Params {
		if p.Type == ir.F64 {
			g.emit("movsd %s, xmm%d", g.cell(p), iFloat)
			iFloat++
		} else {
			g.emit("mov %s, %s", g.cell(p), intArgRegs[iInt])
			iInt++
		}
	}

	for _, b := range f.Blocks {
		g.label(".%s", b.Name)
		for _, in := range b.Instrs {
			if in.Op.IsTerminator() {
				g.flushPhiMoves(b.Name)
			}
			if err := g.genInstr(in); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushPhiMoves materializes phi dataflow for edges leaving block: each
// successor phi's cell receives the value this predecessor contributes.
func (g *generator) flushPhiMoves(block string) {
	for _, mv := range g.phiMoves[block] {
		g.loadInt("rax", mv.val)
		g.emit("mov %s, rax", g.cell(mv.dst))
	}
}

// loadInt materializes an i64, i1, or str operand into reg. Strings are
// pointers into .data.
func (g *generator) loadInt(reg string, op ir.Operand) {
	switch o := op.(type) {
	case ir.ConstInt:
		g.emit("mov %s, %d", reg, o.V)
	case ir.ConstBool:
		n := 0
		if o.V {
			n = 1
		}
		g.emit("mov %s, %d", reg, n)
	case ir.ConstStr:
		g.emit("lea %s, [rel %s]", reg, g.strLabel(o.V))
	case ir.ConstFloat:
		// Bit pattern move; used for phi cells holding floats.
		g.emit("mov %s, 0x%016x", reg, math.Float64bits(o.V))
	case ir.Ref:
		g.emit("mov %s, %s", reg, g.cell(o.Val))
	}
}

// loadFloat materializes an f64 operand into an xmm register.
func (g *generator) loadFloat(reg string, op ir.Operand) {
	switch o := op.(type) {
	case ir.ConstFloat:
		g.emit("movsd %s, [rel %s]", reg, g.floatLabel(o.V))
	case ir.Ref:
		g.emit("movsd %s, %s", reg, g.cell(o.Val))
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

var intCmpSet = map[ir.Op]string{
	ir.CmpEQ: "sete",
	ir.CmpNE: "setne",
	ir.CmpLT: "setl",
	ir.CmpGT: "setg",
	ir.CmpLE: "setle",
	ir.CmpGE: "setge",
}

// Float comparisons use the unsigned condition codes comisd sets.
var floatCmpSet = map[ir.Op]string{
	ir.CmpEQ: "sete",
	ir.CmpNE: "setne",
	ir.CmpLT: "setb",
	ir.CmpGT: "seta",
	ir.CmpLE: "setbe",
	ir.CmpGE: "setae",
}

func (g *generator) genInstr(in *ir.Instr) error {
	switch in.Op {
	case ir.Slot:
		// A slot is just its cell; no code.

	case ir.Load:
		g.loadInt("rax", in.Args[0])
		g.emit("mov %s, rax", g.cell(in.Dst))

	case ir.Store:
		slot := in.Args[0].(ir.Ref).Val
		g.loadInt("rax", in.Args[1])
		g.emit("mov %s, rax", g.cell(slot))

	case ir.Add, ir.Sub, ir.Mul, ir.Div, ir.Rem:
		if in.Dst.Type == ir.F64 {
			g.genFloatArith(in)
			return nil
		}
		g.loadInt("rax", in.Args[0])
		g.loadInt("rcx", in.Args[1])
		switch in.Op {
		case ir.Add:
			g.emit("add rax, rcx")
		case ir.Sub:
			g.emit("sub rax, rcx")
		case ir.Mul:
			g.emit("imul rax, rcx")
		case ir.Div:
			g.emit("cqo")
			g.emit("idiv rcx")
		case ir.Rem:
			g.emit("cqo")
			g.emit("idiv rcx")
			g.emit("mov rax, rdx")
		}
		g.emit("mov %s, rax", g.cell(in.Dst))

	case ir.CmpEQ, ir.CmpNE, ir.CmpLT, ir.CmpGT, ir.CmpLE, ir.CmpGE:
		if operandType(in.Args[0]) == ir.F64 {
			g.loadFloat("xmm0", in.Args[0])
			g.loadFloat("xmm1", in.Args[1])
			g.emit("comisd xmm0, xmm1")
			g.emit("%s al", floatCmpSet[in.Op])
		} else {
			g.loadInt("rax", in.Args[0])
			g.loadInt("rcx", in.Args[1])
			g.emit("cmp rax, rcx")
			g.emit("%s al", intCmpSet[in.Op])
		}
		g.emit("movzx rax, al")
		g.emit("mov %s, rax", g.cell(in.Dst))

	case ir.Neg:
		if in.Dst.Type == ir.F64 {
			g.loadFloat("xmm0", in.Args[0])
			g.emit("movsd xmm1, [rel neg_mask]")
			g.emit("xorpd xmm0, xmm1")
			g.emit("movsd %s, xmm0", g.cell(in.Dst))
			return nil
		}
		g.loadInt("rax", in.Args[0])
		g.emit("neg rax")
		g.emit("mov %s, rax", g.cell(in.Dst))

	case ir.Not:
		g.loadInt("rax", in.Args[0])
		g.emit("xor rax, 1")
		g.emit("mov %s, rax", g.cell(in.Dst))

	case ir.Call:
		return g.genCall(in)

	case ir.Phi:
		// Realized by flushPhiMoves in each predecessor.

	case ir.Print:
		return g.genPrint(in)

	case ir.Read:
		slot := in.Args[0].(ir.Ref).Val
		off := g.offsets[slot]
		g.emit("lea rdi, [rel fmt_read]")
		g.emit("lea rsi, [rbp-%d]", off)
		g.emit("xor eax, eax")
		g.emit("call scanf")

	case ir.Br:
		g.emit("jmp .%s", in.Args[0].(ir.Label).Name)

	case ir.CondBr:
		g.loadInt("rax", in.Args[0])
		g.emit("test rax, rax")
		g.emit("jnz .%s", in.Args[1].(ir.Label).Name)
		g.emit("jmp .%s", in.Args[2].(ir.Label).Name)

	case ir.Ret:
		if len(in.Args) > 0 {
			if operandType(in.Args[0]) == ir.F64 {
				g.loadFloat("xmm0", in.Args[0])
			} else {
				g.loadInt("rax", in.Args[0])
			}
		}
		g.emit("mov rsp, rbp")
		g.emit("pop rbp")
		g.emit("ret")

	default:
		return &Error{Fn: g.fn.Name, Msg: fmt.Sprintf("unhandled op %s", in.Op)}
	}
	return nil
}

func (g *generator) genFloatArith(in *ir.Instr) {
	g.loadFloat("xmm0", in.Args[0])
	g.loadFloat("xmm1", in.Args[1])
	switch in.Op {
	case ir.Add:
		g.emit("addsd xmm0, xmm1")
	case ir.Sub:
		g.emit("subsd xmm0, xmm1")
	case ir.Mul:
		g.emit("mulsd xmm0, xmm1")
	case ir.Div:
		g.emit("divsd xmm0, xmm1")
	}
	g.emit("movsd %s, xmm0", g.cell(in.Dst))
}

func (g *generator) genCall(in *ir.Instr) error {
	// Arguments are classified left to right into the two register files.
	iInt, iFloat := 0, 0
	for _, a := range in.Args {
		if operandType(a) == ir.F64 {
			if iFloat >= maxFloatArgs {
				return &Error{Fn: g.fn.Name,
					Msg: fmt.Sprintf("call %s: more than %d float arguments", in.Callee, maxFloatArgs)}
			}
			g.loadFloat(fmt.Sprintf("xmm%d", iFloat), a)
			iFloat++
		} else {
			if iInt >= len(intArgRegs) {
				return &Error{Fn: g.fn.Name,
					Msg: fmt.Sprintf("call %s: more than %d integer arguments", in.Callee, len(intArgRegs))}
			}
			g.loadInt(intArgRegs[iInt], a)
			iInt++
		}
	}
	g.emit("call %s", in.Callee)
	if in.Dst != nil {
		if in.Dst.Type == ir.F64 {
			g.emit("movsd %s, xmm0", g.cell(in.Dst))
		} else {
			g.emit("mov %s, rax", g.cell(in.Dst))
		}
	}
	return nil
}

func (g *generator) genPrint(in *ir.Instr) error {
	switch operandType(in.Args[0]) {
	case ir.F64:
		g.emit("lea rdi, [rel fmt_float]")
		g.loadFloat("xmm0", in.Args[0])
		g.emit("mov al, 1")
		g.emit("call printf")
	case ir.Str:
		g.emit("lea rdi, [rel fmt_str]")
		g.loadInt("rsi", in.Args[0])
		g.emit("xor eax, eax")
		g.emit("call printf")
	default:
		// Ints and bools both print as decimal.
		g.emit("lea rdi, [rel fmt_int]")
		g.loadInt("rsi", in.Args[0])
		g.emit("xor eax, eax")
		g.emit("call printf")
	}
	return nil
}
