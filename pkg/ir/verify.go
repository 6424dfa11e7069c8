package ir

import "fmt"

// VerifyError reports a structural defect in a module. These indicate a
// compiler bug, not a user error.
type VerifyError struct {
	Fn    string
	Block string
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("ir verify: %s/%s: %s", e.Fn, e.Block, e.Msg)
	}
	return fmt.Sprintf("ir verify: %s: %s", e.Fn, e.Msg)
}

// Verify checks the structural invariants every well-formed module holds:
// each function has at least one block, every block ends in exactly one
// terminator, branch and phi labels name real blocks, and every value is
// defined before it is used in block emission order.
func Verify(m *Module) error {
	for _, f := range m.Funcs {
		if err := verifyFunc(f); err != nil {
			return err
		}
	}
	return nil
}

func verifyFunc(f *Func) error {
	if len(f.Blocks) == 0 {
		return &VerifyError{Fn: f.Name, Msg: "function has no blocks"}
	}

	blocks := make(map[string]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		if b.Name == "" {
			return &VerifyError{Fn: f.Name, Msg: "unnamed block"}
		}
		if blocks[b.Name] {
			return &VerifyError{Fn: f.Name, Msg: fmt.Sprintf("duplicate block %q", b.Name)}
		}
		blocks[b.Name] = true
	}

	defined := make(map[*Value]bool)
	for _, p := range f.Params {
		defined[p] = true
	}

	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			return &VerifyError{Fn: f.Name, Block: b.Name, Msg: "empty block"}
		}
		for i, in := range b.Instrs {
			last := i == len(b.Instrs)-1
			if in.Op.IsTerminator() != last {
				if last {
					return &VerifyError{Fn: f.Name, Block: b.Name, Msg: "block does not end in a terminator"}
				}
				return &VerifyError{Fn: f.Name, Block: b.Name,
					Msg: fmt.Sprintf("terminator %s before end of block", in.Op)}
			}
			if err := verifyInstr(f, b, in, defined, blocks); err != nil {
				return err
			}
			if in.Dst != nil {
				defined[in.Dst] = true
			}
		}
	}
	return nil
}

func verifyInstr(f *Func, b *Block, in *Instr, defined map[*Value]bool, blocks map[string]bool) error {
	check := func(op Operand) error {
		switch o := op.(type) {
		case Ref:
			if !defined[o.Val] {
				return &VerifyError{Fn: f.Name, Block: b.Name,
					Msg: fmt.Sprintf("%s uses %s before definition", in.Op, o.Val)}
			}
		case Label:
			if !blocks[o.Name] {
				return &VerifyError{Fn: f.Name, Block: b.Name,
					Msg: fmt.Sprintf("%s targets unknown block %q", in.Op, o.Name)}
			}
		}
		return nil
	}

	for _, a := range in.Args {
		if err := check(a); err != nil {
			return err
		}
	}

	switch in.Op {
	case Phi:
		// Phi values may be defined later in emission order (loop back
		// edges), so only the labels are checked here.
		for _, inc := range in.Incoming {
			if !blocks[inc.Block] {
				return &VerifyError{Fn: f.Name, Block: b.Name,
					Msg: fmt.Sprintf("phi incoming from unknown block %q", inc.Block)}
			}
		}
	case CondBr:
		if len(in.Args) != 3 {
			return &VerifyError{Fn: f.Name, Block: b.Name,
				Msg: fmt.Sprintf("condbr has %d operands, want 3", len(in.Args))}
		}
	case Br:
		if len(in.Args) != 1 {
			return &VerifyError{Fn: f.Name, Block: b.Name,
				Msg: fmt.Sprintf("br has %d operands, want 1", len(in.Args))}
		}
	case Call:
		if in.Callee == "" {
			return &VerifyError{Fn: f.Name, Block: b.Name, Msg: "call without callee"}
		}
	}
	return nil
}
