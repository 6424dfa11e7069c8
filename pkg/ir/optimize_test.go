package ir

import (
	"strings"
	"testing"
)

// buildArith returns a main computing (2+3)*4 and returning it through a
// chain of foldable instructions.
func buildArith() *Module {
	f := &Func{Name: "main", Result: I64}
	b := f.NewBlock("entry")
	t0 := f.NewValue(I64, "")
	t1 := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs,
		&Instr{Op: Add, Dst: t0, Args: []Operand{ConstInt{V: 2}, ConstInt{V: 3}}},
		&Instr{Op: Mul, Dst: t1, Args: []Operand{Ref{Val: t0}, ConstInt{V: 4}}},
		&Instr{Op: Ret, Args: []Operand{Ref{Val: t1}}},
	)
	return &Module{Funcs: []*Func{f}}
}

func TestOptimizeConstantFolding(t *testing.T) {
	out := Optimize(buildArith())
	text := out.String()
	if !strings.Contains(text, "ret 20") {
		t.Errorf("folded module does not return the constant:\n%s", text)
	}
	if strings.Contains(text, "add") || strings.Contains(text, "mul") {
		t.Errorf("folded instructions were not eliminated:\n%s", text)
	}
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	m := buildArith()
	before := m.String()
	Optimize(m)
	if after := m.String(); after != before {
		t.Errorf("input module changed:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	once := Optimize(buildArith())
	twice := Optimize(once)
	if once.String() != twice.String() {
		t.Errorf("second optimization changed the module:\nonce:\n%s\ntwice:\n%s",
			once.String(), twice.String())
	}
}

func TestOptimizeDeadCode(t *testing.T) {
	f := &Func{Name: "main", Result: I64}
	b := f.NewBlock("entry")
	dead := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs,
		&Instr{Op: Add, Dst: dead, Args: []Operand{ConstInt{V: 1}, ConstInt{V: 2}}},
		&Instr{Op: Print, Args: []Operand{ConstStr{V: "kept"}}},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}},
	)
	out := Optimize(&Module{Funcs: []*Func{f}})
	text := out.String()
	if strings.Contains(text, "add") {
		t.Errorf("unused add survived:\n%s", text)
	}
	if !strings.Contains(text, "print") {
		t.Errorf("print was removed:\n%s", text)
	}
}

func TestOptimizeKeepsImpureCalls(t *testing.T) {
	callee := &Func{Name: "noisy", Result: I64}
	cb := callee.NewBlock("entry")
	cb.Instrs = append(cb.Instrs,
		&Instr{Op: Print, Args: []Operand{ConstStr{V: "side effect"}}},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 1}}},
	)

	f := &Func{Name: "main", Result: I64}
	b := f.NewBlock("entry")
	unused := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs,
		&Instr{Op: Call, Dst: unused, Callee: "noisy"},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}},
	)

	out := Optimize(&Module{Funcs: []*Func{callee, f}})
	if !strings.Contains(out.FuncByName("main").String(), "call @noisy") {
		t.Errorf("call with unused result was removed:\n%s", out)
	}
}

func TestOptimizeDivisionByZeroNotFolded(t *testing.T) {
	f := &Func{Name: "main", Result: I64}
	b := f.NewBlock("entry")
	t0 := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs,
		&Instr{Op: Div, Dst: t0, Args: []Operand{ConstInt{V: 1}, ConstInt{V: 0}}},
		&Instr{Op: Ret, Args: []Operand{Ref{Val: t0}}},
	)
	out := Optimize(&Module{Funcs: []*Func{f}})
	if !strings.Contains(out.String(), "div") {
		t.Errorf("division by zero was folded away:\n%s", out)
	}
}

func TestOptimizeConstantBranch(t *testing.T) {
	f := &Func{Name: "main", Result: I64}
	entry := f.NewBlock("entry")
	thenB := f.NewBlock("then0")
	elseB := f.NewBlock("else0")

	entry.Instrs = append(entry.Instrs, &Instr{Op: CondBr, Args: []Operand{
		ConstBool{V: true}, Label{Name: "then0"}, Label{Name: "else0"},
	}})
	thenB.Instrs = append(thenB.Instrs, &Instr{Op: Ret, Args: []Operand{ConstInt{V: 1}}})
	elseB.Instrs = append(elseB.Instrs, &Instr{Op: Ret, Args: []Operand{ConstInt{V: 2}}})

	out := Optimize(&Module{Funcs: []*Func{f}})
	text := out.String()
	if strings.Contains(text, "condbr") {
		t.Errorf("constant condbr survived:\n%s", text)
	}
	if strings.Contains(text, "else0") {
		t.Errorf("unreachable block survived:\n%s", text)
	}
	if err := Verify(out); err != nil {
		t.Fatalf("optimized module fails verification: %v", err)
	}
}

// TestOptimizeConstantBranchPrunesPhiArms covers the short-circuit
// shape true && <non-constant>. Simplifying the constant condbr cuts
// the entry edge into the merge block while every block stays
// reachable, so the merge phi must lose its arm for the entry block.
func TestOptimizeConstantBranchPrunesPhiArms(t *testing.T) {
	f := &Func{Name: "main", Result: I64}
	entry := f.NewBlock("entry")
	rhs := f.NewBlock("and0_rhs")
	end := f.NewBlock("and0_end")

	x := f.NewValue(I64, "x")
	entry.Instrs = append(entry.Instrs,
		&Instr{Op: Slot, Dst: x},
		&Instr{Op: CondBr, Args: []Operand{
			ConstBool{V: true}, Label{Name: "and0_rhs"}, Label{Name: "and0_end"},
		}},
	)

	xv := f.NewValue(I64, "")
	nz := f.NewValue(I1, "")
	rhs.Instrs = append(rhs.Instrs,
		&Instr{Op: Read, Args: []Operand{Ref{Val: x}}},
		&Instr{Op: Load, Dst: xv, Args: []Operand{Ref{Val: x}}},
		&Instr{Op: CmpNE, Dst: nz, Args: []Operand{Ref{Val: xv}, ConstInt{V: 0}}},
		&Instr{Op: Br, Args: []Operand{Label{Name: "and0_end"}}},
	)

	phi := f.NewValue(I1, "")
	end.Instrs = append(end.Instrs,
		&Instr{Op: Phi, Dst: phi, Incoming: []Incoming{
			{Val: ConstBool{V: false}, Block: "entry"},
			{Val: Ref{Val: nz}, Block: "and0_rhs"},
		}},
		&Instr{Op: Print, Args: []Operand{Ref{Val: phi}}},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}},
	)

	out := Optimize(&Module{Funcs: []*Func{f}})
	of := out.FuncByName("main")

	preds := make(map[string]map[string]bool)
	for _, b := range of.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, a := range term.Args {
			if l, ok := a.(Label); ok {
				if preds[l.Name] == nil {
					preds[l.Name] = make(map[string]bool)
				}
				preds[l.Name][b.Name] = true
			}
		}
	}
	for _, b := range of.Blocks {
		for _, in := range b.Instrs {
			if in.Op != Phi {
				continue
			}
			for _, inc := range in.Incoming {
				if !preds[b.Name][inc.Block] {
					t.Errorf("phi in %s keeps arm for non-predecessor %s:\n%s",
						b.Name, inc.Block, of)
				}
			}
		}
	}
	if err := Verify(out); err != nil {
		t.Fatalf("optimized module fails verification: %v", err)
	}

	res, err := Interpret(out, []int64{5})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "1" {
		t.Errorf("output = %v, want [1]", res.Output)
	}
}

// TestOptimizePreservesBehavior interprets a loop with branches before
// and after optimization and compares everything observable.
func TestOptimizePreservesBehavior(t *testing.T) {
	// sum = 0; for i in 0..5 { if i % 2 == 0 { sum += i } }; print sum
	f := &Func{Name: "main", Result: I64}
	entry := f.NewBlock("entry")
	cond := f.NewBlock("for_cond0")
	body := f.NewBlock("for_body0")
	even := f.NewBlock("then0")
	endif := f.NewBlock("endif0")
	incr := f.NewBlock("for_incr0")
	end := f.NewBlock("for_end0")

	sum := f.NewValue(I64, "sum")
	i := f.NewValue(I64, "i")
	entry.Instrs = append(entry.Instrs,
		&Instr{Op: Slot, Dst: sum},
		&Instr{Op: Store, Args: []Operand{Ref{Val: sum}, ConstInt{V: 0}}},
		&Instr{Op: Slot, Dst: i},
		&Instr{Op: Store, Args: []Operand{Ref{Val: i}, ConstInt{V: 0}}},
		&Instr{Op: Br, Args: []Operand{Label{Name: "for_cond0"}}},
	)

	iv := f.NewValue(I64, "")
	lt := f.NewValue(I1, "")
	cond.Instrs = append(cond.Instrs,
		&Instr{Op: Load, Dst: iv, Args: []Operand{Ref{Val: i}}},
		&Instr{Op: CmpLT, Dst: lt, Args: []Operand{Ref{Val: iv}, ConstInt{V: 5}}},
		&Instr{Op: CondBr, Args: []Operand{Ref{Val: lt}, Label{Name: "for_body0"}, Label{Name: "for_end0"}}},
	)

	iv2 := f.NewValue(I64, "")
	rem := f.NewValue(I64, "")
	isEven := f.NewValue(I1, "")
	body.Instrs = append(body.Instrs,
		&Instr{Op: Load, Dst: iv2, Args: []Operand{Ref{Val: i}}},
		&Instr{Op: Rem, Dst: rem, Args: []Operand{Ref{Val: iv2}, ConstInt{V: 2}}},
		&Instr{Op: CmpEQ, Dst: isEven, Args: []Operand{Ref{Val: rem}, ConstInt{V: 0}}},
		&Instr{Op: CondBr, Args: []Operand{Ref{Val: isEven}, Label{Name: "then0"}, Label{Name: "endif0"}}},
	)

	sv := f.NewValue(I64, "")
	iv3 := f.NewValue(I64, "")
	added := f.NewValue(I64, "")
	even.Instrs = append(even.Instrs,
		&Instr{Op: Load, Dst: sv, Args: []Operand{Ref{Val: sum}}},
		&Instr{Op: Load, Dst: iv3, Args: []Operand{Ref{Val: i}}},
		&Instr{Op: Add, Dst: added, Args: []Operand{Ref{Val: sv}, Ref{Val: iv3}}},
		&Instr{Op: Store, Args: []Operand{Ref{Val: sum}, Ref{Val: added}}},
		&Instr{Op: Br, Args: []Operand{Label{Name: "endif0"}}},
	)
	endif.Instrs = append(endif.Instrs, &Instr{Op: Br, Args: []Operand{Label{Name: "for_incr0"}}})

	iv4 := f.NewValue(I64, "")
	next := f.NewValue(I64, "")
	incr.Instrs = append(incr.Instrs,
		&Instr{Op: Load, Dst: iv4, Args: []Operand{Ref{Val: i}}},
		&Instr{Op: Add, Dst: next, Args: []Operand{Ref{Val: iv4}, ConstInt{V: 1}}},
		&Instr{Op: Store, Args: []Operand{Ref{Val: i}, Ref{Val: next}}},
		&Instr{Op: Br, Args: []Operand{Label{Name: "for_cond0"}}},
	)

	fsum := f.NewValue(I64, "")
	end.Instrs = append(end.Instrs,
		&Instr{Op: Load, Dst: fsum, Args: []Operand{Ref{Val: sum}}},
		&Instr{Op: Print, Args: []Operand{Ref{Val: fsum}}},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}},
	)

	m := &Module{Funcs: []*Func{f}}
	if err := Verify(m); err != nil {
		t.Fatalf("test module invalid: %v", err)
	}

	before, err := Interpret(m, nil)
	if err != nil {
		t.Fatalf("interpret unoptimized: %v", err)
	}
	opt := Optimize(m)
	if err := Verify(opt); err != nil {
		t.Fatalf("optimized module fails verification: %v", err)
	}
	after, err := Interpret(opt, nil)
	if err != nil {
		t.Fatalf("interpret optimized: %v", err)
	}

	if len(before.Output) != 1 || before.Output[0] != "6" {
		t.Fatalf("unoptimized output = %v, want [6]", before.Output)
	}
	if len(after.Output) != len(before.Output) || after.Output[0] != before.Output[0] {
		t.Errorf("optimization changed output: %v vs %v", before.Output, after.Output)
	}
	if before.Exit != after.Exit {
		t.Errorf("optimization changed exit: %d vs %d", before.Exit, after.Exit)
	}
}
