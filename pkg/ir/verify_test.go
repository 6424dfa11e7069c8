package ir

import (
	"strings"
	"testing"
)

// retZero builds the smallest valid function: main returning a constant.
func retZero() *Func {
	f := &Func{Name: "main", Result: I64}
	b := f.NewBlock("entry")
	b.Instrs = append(b.Instrs, &Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}})
	return f
}

func wantVerifyErr(t *testing.T, m *Module, substr string) {
	t.Helper()
	err := Verify(m)
	if err == nil {
		t.Fatalf("Verify succeeded, want error containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("Verify error %q does not contain %q", err, substr)
	}
}

func TestVerifyValid(t *testing.T) {
	if err := Verify(&Module{Funcs: []*Func{retZero()}}); err != nil {
		t.Fatalf("Verify failed on a valid module: %v", err)
	}
}

func TestVerifyNoBlocks(t *testing.T) {
	m := &Module{Funcs: []*Func{{Name: "f", Result: Void}}}
	wantVerifyErr(t, m, "no blocks")
}

func TestVerifyEmptyBlock(t *testing.T) {
	f := retZero()
	f.NewBlock("hole")
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "empty block")
}

func TestVerifyMissingTerminator(t *testing.T) {
	f := &Func{Name: "f", Result: I64}
	b := f.NewBlock("entry")
	v := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs, &Instr{Op: Add, Dst: v, Args: []Operand{ConstInt{V: 1}, ConstInt{V: 2}}})
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "does not end in a terminator")
}

func TestVerifyTerminatorMidBlock(t *testing.T) {
	f := &Func{Name: "f", Result: I64}
	b := f.NewBlock("entry")
	b.Instrs = append(b.Instrs,
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}},
		&Instr{Op: Ret, Args: []Operand{ConstInt{V: 1}}},
	)
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "before end of block")
}

func TestVerifyUnknownBranchTarget(t *testing.T) {
	f := &Func{Name: "f", Result: Void}
	b := f.NewBlock("entry")
	b.Instrs = append(b.Instrs, &Instr{Op: Br, Args: []Operand{Label{Name: "nowhere"}}})
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "unknown block")
}

func TestVerifyUseBeforeDef(t *testing.T) {
	f := &Func{Name: "f", Result: I64}
	b := f.NewBlock("entry")
	ghost := f.NewValue(I64, "")
	b.Instrs = append(b.Instrs, &Instr{Op: Ret, Args: []Operand{Ref{Val: ghost}}})
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "before definition")
}

func TestVerifyDuplicateBlockName(t *testing.T) {
	f := retZero()
	dup := f.NewBlock("entry")
	dup.Instrs = append(dup.Instrs, &Instr{Op: Ret, Args: []Operand{ConstInt{V: 0}}})
	wantVerifyErr(t, &Module{Funcs: []*Func{f}}, "duplicate block")
}

func TestVerifyPhiBackEdge(t *testing.T) {
	// A phi may reference a value defined later in emission order when it
	// flows around a loop.
	f := &Func{Name: "f", Result: I64}
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")

	phi := f.NewValue(I64, "")
	next := f.NewValue(I64, "")

	entry.Instrs = append(entry.Instrs, &Instr{Op: Br, Args: []Operand{Label{Name: "loop"}}})
	loop.Instrs = append(loop.Instrs,
		&Instr{Op: Phi, Dst: phi, Incoming: []Incoming{
			{Val: ConstInt{V: 0}, Block: "entry"},
			{Val: Ref{Val: next}, Block: "loop"},
		}},
		&Instr{Op: Add, Dst: next, Args: []Operand{Ref{Val: phi}, ConstInt{V: 1}}},
		&Instr{Op: Ret, Args: []Operand{Ref{Val: next}}},
	)
	if err := Verify(&Module{Funcs: []*Func{f}}); err != nil {
		t.Fatalf("Verify rejected a loop-carried phi: %v", err)
	}
}
