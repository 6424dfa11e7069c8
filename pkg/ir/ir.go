// Package ir defines the intermediate representation produced by the
// front end: a module of functions, each a list of basic blocks holding
// instructions in static single assignment form. Mutable source variables
// are modeled as slots (stack cells) accessed through explicit loads and
// stores, so only the optimizer has to reason about value flow.
package ir

import (
	"fmt"
	"strings"
)

// Type is the small value-type universe the IR works with.
type Type int

const (
	Void Type = iota
	I64
	F64
	I1
	Str
)

var typeNames = []string{
	Void: "void",
	I64:  "i64",
	F64:  "f64",
	I1:   "i1",
	Str:  "str",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Op enumerates the instruction kinds.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Rem
	Neg
	Not
	CmpEQ
	CmpNE
	CmpLT
	CmpGT
	CmpLE
	CmpGE
	Slot
	Load
	Store
	Call
	Phi
	Print
	Read
	Br
	CondBr
	Ret
)

var opNames = []string{
	Add:    "add",
	Sub:    "sub",
	Mul:    "mul",
	Div:    "div",
	Rem:    "rem",
	Neg:    "neg",
	Not:    "not",
	CmpEQ:  "cmpeq",
	CmpNE:  "cmpne",
	CmpLT:  "cmplt",
	CmpGT:  "cmpgt",
	CmpLE:  "cmple",
	CmpGE:  "cmpge",
	Slot:   "slot",
	Load:   "load",
	Store:  "store",
	Call:   "call",
	Phi:    "phi",
	Print:  "print",
	Read:   "read",
	Br:     "br",
	CondBr: "condbr",
	Ret:    "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool {
	return op == Br || op == CondBr || op == Ret
}

// IsPure reports whether an instruction with this op may be removed when
// its result is unused. Slots stay because stores into them are kept.
func (op Op) IsPure() bool {
	switch op {
	case Add, Sub, Mul, Div, Rem, Neg, Not,
		CmpEQ, CmpNE, CmpLT, CmpGT, CmpLE, CmpGE, Load, Phi:
		return true
	}
	return false
}

// Value is an SSA name: the result of an instruction, a slot address, or
// a function parameter. Name is used for display only; identity is the
// pointer.
type Value struct {
	ID   int
	Type Type
	Name string // empty for plain temporaries
}

func (v *Value) String() string {
	if v.Name != "" {
		return "%" + v.Name
	}
	return fmt.Sprintf("%%t%d", v.ID)
}

// Operand is an instruction argument: a constant, a value reference, or
// a block label.
type Operand interface {
	isOperand()
	String() string
}

type ConstInt struct{ V int64 }
type ConstFloat struct{ V float64 }
type ConstBool struct{ V bool }
type ConstStr struct{ V string }

// Ref refers to the result of another instruction or a parameter.
type Ref struct{ Val *Value }

// Label names a branch target block.
type Label struct{ Name string }

func (ConstInt) isOperand()   {}
func (ConstFloat) isOperand() {}
func (ConstBool) isOperand()  {}
func (ConstStr) isOperand()   {}
func (Ref) isOperand()        {}
func (Label) isOperand()      {}

func (c ConstInt) String() string   { return fmt.Sprintf("%d", c.V) }
func (c ConstFloat) String() string { return fmt.Sprintf("%g", c.V) }
func (c ConstBool) String() string  { return fmt.Sprintf("%t", c.V) }
func (c ConstStr) String() string   { return fmt.Sprintf("%q", c.V) }
func (r Ref) String() string        { return r.Val.String() }
func (l Label) String() string      { return l.Name }

// Incoming is one phi arm: the value flowing in when control arrives from
// Block.
type Incoming struct {
	Val   Operand
	Block string
}

// Instr is a single IR instruction. Dst is nil for instructions without a
// result (stores, branches, print). Callee is set only for Call,
// Incoming only for Phi.
type Instr struct {
	Op       Op
	Dst      *Value
	Args     []Operand
	Callee   string
	Incoming []Incoming
}

func (in *Instr) String() string {
	var b strings.Builder
	if in.Dst != nil {
		fmt.Fprintf(&b, "%s = ", in.Dst)
	}
	b.WriteString(in.Op.String())
	switch in.Op {
	case Slot:
		fmt.Fprintf(&b, " %s", in.Dst.Type)
	case Call:
		fmt.Fprintf(&b, " @%s", in.Callee)
		b.WriteString("(")
		for i, a := range in.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteString(")")
	case Phi:
		for i, inc := range in.Incoming {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " [%s, %s]", inc.Val, inc.Block)
		}
	default:
		for i, a := range in.Args {
			if i == 0 {
				b.WriteString(" ")
			} else {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
	}
	return b.String()
}

// Block is a basic block: a named straight-line instruction sequence
// ending in exactly one terminator.
type Block struct {
	Name   string
	Instrs []*Instr
}

// Terminator returns the block's final instruction if it is one, else nil.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if last.Op.IsTerminator() {
		return last
	}
	return nil
}

// Func is one IR function. Params holds the SSA values callers bind;
// Blocks[0] is the entry block.
type Func struct {
	Name   string
	Params []*Value
	Result Type
	Blocks []*Block

	nextID int
}

// NewValue allocates a fresh SSA value owned by the function.
func (f *Func) NewValue(t Type, name string) *Value {
	v := &Value{ID: f.nextID, Type: t, Name: name}
	f.nextID++
	return v
}

// NewBlock appends an empty block and returns it.
func (f *Func) NewBlock(name string) *Block {
	b := &Block{Name: name}
	f.Blocks = append(f.Blocks, b)
	return b
}

// BlockByName returns the named block, or nil.
func (f *Func) BlockByName(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (f *Func) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func @%s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", p, p.Type)
	}
	fmt.Fprintf(&b, ") %s {\n", f.Result)
	for _, blk := range f.Blocks {
		fmt.Fprintf(&b, "%s:\n", blk.Name)
		for _, in := range blk.Instrs {
			fmt.Fprintf(&b, "\t%s\n", in)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Module is a whole compiled program.
type Module struct {
	Funcs []*Func
}

// FuncByName returns the named function, or nil.
func (m *Module) FuncByName(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *Module) String() string {
	var b strings.Builder
	for i, f := range m.Funcs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(f.String())
	}
	return b.String()
}
