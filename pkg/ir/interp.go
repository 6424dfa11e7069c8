package ir

import (
	"fmt"
	"strconv"
)

// ExecResult is what an interpreted program produced: one output entry
// per print instruction and the value main returned.
type ExecResult struct {
	Output []string
	Exit   int64
}

// interpStepLimit bounds total executed instructions so a miscompiled
// loop fails a test instead of hanging it.
const interpStepLimit = 10_000_000

// Interpret runs the module's main function directly on the IR. Reads
// are satisfied from input in order; running out of input is an error.
// It exists so tests can compare observable behavior across pipeline
// stages without assembling anything.
func Interpret(m *Module, input []int64) (*ExecResult, error) {
	main := m.FuncByName("main")
	if main == nil {
		return nil, fmt.Errorf("interpret: module has no main function")
	}
	it := &interp{mod: m, input: input}
	ret, err := it.call(main, nil)
	if err != nil {
		return nil, err
	}
	res := &ExecResult{Output: it.output}
	if n, ok := ret.(int64); ok {
		res.Exit = n
	}
	return res, nil
}

type interp struct {
	mod    *Module
	input  []int64
	output []string
	steps  int
}

// cell is one mutable slot; values are int64, float64, bool, or string.
type cell struct{ v any }

func (it *interp) call(f *Func, args []any) (any, error) {
	env := make(map[*Value]any)
	slots := make(map[*Value]*cell)
	for i, p := range f.Params {
		env[p] = args[i]
	}

	blk := f.Blocks[0]
	prev := ""
	for {
		var next string
		for _, in := range blk.Instrs {
			it.steps++
			if it.steps > interpStepLimit {
				return nil, fmt.Errorf("interpret: step limit exceeded in %s", f.Name)
			}
			done, ret, target, err := it.exec(f, in, env, slots, prev)
			if err != nil {
				return nil, err
			}
			if done {
				return ret, nil
			}
			if target != "" {
				next = target
			}
		}
		if next == "" {
			return nil, fmt.Errorf("interpret: block %s/%s fell through", f.Name, blk.Name)
		}
		nb := f.BlockByName(next)
		if nb == nil {
			return nil, fmt.Errorf("interpret: branch to unknown block %q in %s", next, f.Name)
		}
		prev, blk = blk.Name, nb
	}
}

// exec runs one instruction. It reports function return (done, ret) or a
// taken branch target.
func (it *interp) exec(f *Func, in *Instr, env map[*Value]any, slots map[*Value]*cell, prev string) (done bool, ret any, target string, err error) {
	eval := func(op Operand) (any, error) {
		switch o := op.(type) {
		case ConstInt:
			return o.V, nil
		case ConstFloat:
			return o.V, nil
		case ConstBool:
			return o.V, nil
		case ConstStr:
			return o.V, nil
		case Ref:
			v, ok := env[o.Val]
			if !ok {
				return nil, fmt.Errorf("interpret: %s has no value in %s", o.Val, f.Name)
			}
			return v, nil
		}
		return nil, fmt.Errorf("interpret: label operand in value position")
	}

	switch in.Op {
	case Slot:
		c := &cell{}
		switch in.Dst.Type {
		case F64:
			c.v = float64(0)
		case I1:
			c.v = false
		case Str:
			c.v = ""
		default:
			c.v = int64(0)
		}
		slots[in.Dst] = c
		env[in.Dst] = c

	case Load:
		src, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		c, ok := src.(*cell)
		if !ok {
			return false, nil, "", fmt.Errorf("interpret: load from non-slot in %s", f.Name)
		}
		env[in.Dst] = c.v

	case Store:
		dst, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		c, ok := dst.(*cell)
		if !ok {
			return false, nil, "", fmt.Errorf("interpret: store to non-slot in %s", f.Name)
		}
		v, err := eval(in.Args[1])
		if err != nil {
			return false, nil, "", err
		}
		c.v = v

	case Add, Sub, Mul, Div, Rem, CmpEQ, CmpNE, CmpLT, CmpGT, CmpLE, CmpGE:
		l, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		r, err := eval(in.Args[1])
		if err != nil {
			return false, nil, "", err
		}
		v, err := it.binop(f, in.Op, l, r)
		if err != nil {
			return false, nil, "", err
		}
		env[in.Dst] = v

	case Neg:
		v, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		switch n := v.(type) {
		case int64:
			env[in.Dst] = -n
		case float64:
			env[in.Dst] = -n
		default:
			return false, nil, "", fmt.Errorf("interpret: neg of %T in %s", v, f.Name)
		}

	case Not:
		v, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		b, ok := v.(bool)
		if !ok {
			return false, nil, "", fmt.Errorf("interpret: not of %T in %s", v, f.Name)
		}
		env[in.Dst] = !b

	case Phi:
		for _, inc := range in.Incoming {
			if inc.Block != prev {
				continue
			}
			v, err := eval(inc.Val)
			if err != nil {
				return false, nil, "", err
			}
			env[in.Dst] = v
			return false, nil, "", nil
		}
		return false, nil, "", fmt.Errorf("interpret: phi in %s has no arm for predecessor %q", f.Name, prev)

	case Call:
		callee := it.mod.FuncByName(in.Callee)
		if callee == nil {
			return false, nil, "", fmt.Errorf("interpret: call to unknown function %q", in.Callee)
		}
		var args []any
		for _, a := range in.Args {
			v, err := eval(a)
			if err != nil {
				return false, nil, "", err
			}
			args = append(args, v)
		}
		v, err := it.call(callee, args)
		if err != nil {
			return false, nil, "", err
		}
		if in.Dst != nil {
			env[in.Dst] = v
		}

	case Print:
		v, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		it.output = append(it.output, formatValue(v))

	case Read:
		dst, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		c, ok := dst.(*cell)
		if !ok {
			return false, nil, "", fmt.Errorf("interpret: read into non-slot in %s", f.Name)
		}
		if len(it.input) == 0 {
			return false, nil, "", fmt.Errorf("interpret: read past end of input in %s", f.Name)
		}
		c.v, it.input = it.input[0], it.input[1:]

	case Br:
		return false, nil, in.Args[0].(Label).Name, nil

	case CondBr:
		v, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		b, ok := v.(bool)
		if !ok {
			return false, nil, "", fmt.Errorf("interpret: condbr on %T in %s", v, f.Name)
		}
		if b {
			return false, nil, in.Args[1].(Label).Name, nil
		}
		return false, nil, in.Args[2].(Label).Name, nil

	case Ret:
		if len(in.Args) == 0 {
			return true, nil, "", nil
		}
		v, err := eval(in.Args[0])
		if err != nil {
			return false, nil, "", err
		}
		return true, v, "", nil

	default:
		return false, nil, "", fmt.Errorf("interpret: unhandled op %s in %s", in.Op, f.Name)
	}
	return false, nil, "", nil
}

func (it *interp) binop(f *Func, op Op, l, r any) (any, error) {
	switch lv := l.(type) {
	case int64:
		rv, ok := r.(int64)
		if !ok {
			break
		}
		switch op {
		case Add:
			return lv + rv, nil
		case Sub:
			return lv - rv, nil
		case Mul:
			return lv * rv, nil
		case Div:
			if rv == 0 {
				return nil, fmt.Errorf("interpret: integer division by zero in %s", f.Name)
			}
			return lv / rv, nil
		case Rem:
			if rv == 0 {
				return nil, fmt.Errorf("interpret: integer remainder by zero in %s", f.Name)
			}
			return lv % rv, nil
		case CmpEQ:
			return lv == rv, nil
		case CmpNE:
			return lv != rv, nil
		case CmpLT:
			return lv < rv, nil
		case CmpGT:
			return lv > rv, nil
		case CmpLE:
			return lv <= rv, nil
		case CmpGE:
			return lv >= rv, nil
		}
	case float64:
		rv, ok := r.(float64)
		if !ok {
			break
		}
		switch op {
		case Add:
			return lv + rv, nil
		case Sub:
			return lv - rv, nil
		case Mul:
			return lv * rv, nil
		case Div:
			return lv / rv, nil
		case CmpEQ:
			return lv == rv, nil
		case CmpNE:
			return lv != rv, nil
		case CmpLT:
			return lv < rv, nil
		case CmpGT:
			return lv > rv, nil
		case CmpLE:
			return lv <= rv, nil
		case CmpGE:
			return lv >= rv, nil
		}
	case bool:
		rv, ok := r.(bool)
		if !ok {
			break
		}
		switch op {
		case CmpEQ:
			return lv == rv, nil
		case CmpNE:
			return lv != rv, nil
		}
	}
	return nil, fmt.Errorf("interpret: %s on %T and %T in %s", op, l, r, f.Name)
}

// formatValue matches the printf formats the assembly backend uses, so
// interpreted and compiled output line up.
func formatValue(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return fmt.Sprintf("%f", n)
	case bool:
		if n {
			return "1"
		}
		return "0"
	case string:
		return n
	}
	return fmt.Sprintf("%v", v)
}
