package ir

// Optimize returns an optimized deep copy of m; the input module is never
// mutated. The passes run to a fixed point, so optimizing an already
// optimized module changes nothing:
//
//   - constant folding of arithmetic, comparisons, and unary ops
//   - branch simplification of condbr on a constant condition
//   - removal of blocks unreachable from the entry block
//   - dead code elimination of pure instructions with unused results
//
// Division and remainder by a constant zero are left in place so the
// runtime behavior is preserved.
func Optimize(m *Module) *Module {
	out := cloneModule(m)
	for _, f := range out.Funcs {
		for {
			changed := foldConstants(f)
			changed = simplifyBranches(f) || changed
			changed = removeUnreachable(f) || changed
			changed = removeDeadCode(f) || changed
			if !changed {
				break
			}
		}
	}
	return out
}

func cloneModule(m *Module) *Module {
	out := &Module{}
	for _, f := range m.Funcs {
		out.Funcs = append(out.Funcs, cloneFunc(f))
	}
	return out
}

func cloneFunc(f *Func) *Func {
	nf := &Func{Name: f.Name, Result: f.Result, nextID: f.nextID}
	vals := make(map[*Value]*Value)
	cv := func(v *Value) *Value {
		if v == nil {
			return nil
		}
		if nv, ok := vals[v]; ok {
			return nv
		}
		nv := &Value{ID: v.ID, Type: v.Type, Name: v.Name}
		vals[v] = nv
		return nv
	}
	co := func(op Operand) Operand {
		if r, ok := op.(Ref); ok {
			return Ref{Val: cv(r.Val)}
		}
		return op
	}
	for _, p := range f.Params {
		nf.Params = append(nf.Params, cv(p))
	}
	for _, b := range f.Blocks {
		nb := nf.NewBlock(b.Name)
		for _, in := range b.Instrs {
			ni := &Instr{Op: in.Op, Dst: cv(in.Dst), Callee: in.Callee}
			for _, a := range in.Args {
				ni.Args = append(ni.Args, co(a))
			}
			for _, inc := range in.Incoming {
				ni.Incoming = append(ni.Incoming, Incoming{Val: co(inc.Val), Block: inc.Block})
			}
			nb.Instrs = append(nb.Instrs, ni)
		}
	}
	return nf
}

// foldConstants evaluates pure instructions whose operands are all
// constant and substitutes the result into every use. The folded
// instruction itself becomes dead and is collected by removeDeadCode.
func foldConstants(f *Func) bool {
	consts := make(map[*Value]Operand)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Dst == nil || !in.Op.IsPure() {
				continue
			}
			if _, done := consts[in.Dst]; done {
				continue
			}
			if c, ok := evalConst(in); ok {
				consts[in.Dst] = c
			}
		}
	}
	if len(consts) == 0 {
		return false
	}

	changed := false
	sub := func(op Operand) Operand {
		if r, ok := op.(Ref); ok {
			if c, ok := consts[r.Val]; ok {
				changed = true
				return c
			}
		}
		return op
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for i, a := range in.Args {
				in.Args[i] = sub(a)
			}
			for i := range in.Incoming {
				in.Incoming[i].Val = sub(in.Incoming[i].Val)
			}
		}
	}
	return changed
}

func evalConst(in *Instr) (Operand, bool) {
	switch in.Op {
	case Add, Sub, Mul, Div, Rem, CmpEQ, CmpNE, CmpLT, CmpGT, CmpLE, CmpGE:
		if len(in.Args) != 2 {
			return nil, false
		}
		switch l := in.Args[0].(type) {
		case ConstInt:
			r, ok := in.Args[1].(ConstInt)
			if !ok {
				return nil, false
			}
			return evalInt(in.Op, l.V, r.V)
		case ConstFloat:
			r, ok := in.Args[1].(ConstFloat)
			if !ok {
				return nil, false
			}
			return evalFloat(in.Op, l.V, r.V)
		case ConstBool:
			r, ok := in.Args[1].(ConstBool)
			if !ok {
				return nil, false
			}
			switch in.Op {
			case CmpEQ:
				return ConstBool{V: l.V == r.V}, true
			case CmpNE:
				return ConstBool{V: l.V != r.V}, true
			}
		}
	case Neg:
		switch a := in.Args[0].(type) {
		case ConstInt:
			return ConstInt{V: -a.V}, true
		case ConstFloat:
			return ConstFloat{V: -a.V}, true
		}
	case Not:
		if a, ok := in.Args[0].(ConstBool); ok {
			return ConstBool{V: !a.V}, true
		}
	}
	return nil, false
}

func evalInt(op Op, l, r int64) (Operand, bool) {
	switch op {
	case Add:
		return ConstInt{V: l + r}, true
	case Sub:
		return ConstInt{V: l - r}, true
	case Mul:
		return ConstInt{V: l * r}, true
	case Div:
		if r == 0 {
			return nil, false
		}
		return ConstInt{V: l / r}, true
	case Rem:
		if r == 0 {
			return nil, false
		}
		return ConstInt{V: l % r}, true
	case CmpEQ:
		return ConstBool{V: l == r}, true
	case CmpNE:
		return ConstBool{V: l != r}, true
	case CmpLT:
		return ConstBool{V: l < r}, true
	case CmpGT:
		return ConstBool{V: l > r}, true
	case CmpLE:
		return ConstBool{V: l <= r}, true
	case CmpGE:
		return ConstBool{V: l >= r}, true
	}
	return nil, false
}

func evalFloat(op Op, l, r float64) (Operand, bool) {
	switch op {
	case Add:
		return ConstFloat{V: l + r}, true
	case Sub:
		return ConstFloat{V: l - r}, true
	case Mul:
		return ConstFloat{V: l * r}, true
	case Div:
		if r == 0 {
			return nil, false
		}
		return ConstFloat{V: l / r}, true
	case CmpEQ:
		return ConstBool{V: l == r}, true
	case CmpNE:
		return ConstBool{V: l != r}, true
	case CmpLT:
		return ConstBool{V: l < r}, true
	case CmpGT:
		return ConstBool{V: l > r}, true
	case CmpLE:
		return ConstBool{V: l <= r}, true
	case CmpGE:
		return ConstBool{V: l >= r}, true
	}
	return nil, false
}

// simplifyBranches rewrites condbr on a constant condition into an
// unconditional br to the taken target.
func simplifyBranches(f *Func) bool {
	changed := false
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || t.Op != CondBr {
			continue
		}
		c, ok := t.Args[0].(ConstBool)
		if !ok {
			continue
		}
		target := t.Args[1]
		if !c.V {
			target = t.Args[2]
		}
		t.Op = Br
		t.Args = []Operand{target}
		changed = true
	}
	return changed
}

// removeUnreachable drops blocks no branch path from the entry block can
// reach, and prunes phi arms whose source block is no longer a
// predecessor.
func removeUnreachable(f *Func) bool {
	reach := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if reach[name] {
			return
		}
		reach[name] = true
		b := f.BlockByName(name)
		if b == nil {
			return
		}
		t := b.Terminator()
		if t == nil {
			return
		}
		for _, a := range t.Args {
			if l, ok := a.(Label); ok {
				walk(l.Name)
			}
		}
	}
	walk(f.Blocks[0].Name)

	changed := false
	if len(reach) != len(f.Blocks) {
		kept := f.Blocks[:0]
		for _, b := range f.Blocks {
			if reach[b.Name] {
				kept = append(kept, b)
			}
		}
		f.Blocks = kept
		changed = true
	}

	// Predecessor sets over the surviving graph. Branch simplification
	// can cut an edge without making either endpoint unreachable, and a
	// phi arm for a non-predecessor must go with the edge.
	preds := make(map[string]map[string]bool)
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil {
			continue
		}
		for _, a := range t.Args {
			if l, ok := a.(Label); ok {
				if preds[l.Name] == nil {
					preds[l.Name] = make(map[string]bool)
				}
				preds[l.Name][b.Name] = true
			}
		}
	}

	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Op != Phi {
				continue
			}
			arms := in.Incoming[:0]
			for _, inc := range in.Incoming {
				if preds[b.Name][inc.Block] {
					arms = append(arms, inc)
				}
			}
			if len(arms) != len(in.Incoming) {
				changed = true
			}
			in.Incoming = arms
			// A phi left with one arm is just that value.
			if len(in.Incoming) == 1 {
				in.Args = []Operand{in.Incoming[0].Val}
				in.Incoming = nil
				in.Op = copyOpFor(in)
				changed = true
			}
		}
	}
	return changed
}

// copyOpFor picks an op that forwards a single operand unchanged. Add
// with a zero identity keeps the instruction foldable without a dedicated
// copy opcode.
func copyOpFor(in *Instr) Op {
	switch in.Dst.Type {
	case F64:
		in.Args = append(in.Args, ConstFloat{V: 0})
		return Add
	case I1:
		in.Args = append(in.Args, ConstBool{V: false})
		return CmpNE
	default:
		in.Args = append(in.Args, ConstInt{V: 0})
		return Add
	}
}

// removeDeadCode deletes pure instructions whose result no instruction
// uses. Calls, stores, reads, prints, and terminators always stay.
func removeDeadCode(f *Func) bool {
	used := make(map[*Value]bool)
	mark := func(op Operand) {
		if r, ok := op.(Ref); ok {
			used[r.Val] = true
		}
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				mark(a)
			}
			for _, inc := range in.Incoming {
				mark(inc.Val)
			}
		}
	}

	changed := false
	for _, b := range f.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if in.Op.IsPure() && in.Dst != nil && !used[in.Dst] {
				changed = true
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
	return changed
}
