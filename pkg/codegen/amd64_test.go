package codegen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/compiler"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/irgen"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	tokens, err := compiler.Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := compiler.Analyze(prog); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	mod, err := irgen.Generate(prog)
	if err != nil {
		t.Fatalf("irgen failed: %v", err)
	}
	asm, err := Generate(mod)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return asm
}

func assertContains(t *testing.T, asm string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(asm, want) {
			t.Errorf("assembly missing %q:\n%s", want, asm)
		}
	}
}

func TestGenerateSkeleton(t *testing.T) {
	asm := compile(t, "print(1);")
	assertContains(t, asm,
		"global main",
		"extern printf",
		"extern scanf",
		"section .data",
		"section .text",
		"main:",
		"push rbp",
		"mov rbp, rsp",
	)
}

func TestGenerateIntArithmetic(t *testing.T) {
	asm := compile(t, "int a = 7; int b = 3; print(a + b); print(a - b); print(a * b); print(a / b); print(a % b);")
	assertContains(t, asm, "add rax, rcx", "sub rax, rcx", "imul rax, rcx", "cqo", "idiv rcx", "mov rax, rdx")
}

func TestGenerateComparisonSetcc(t *testing.T) {
	asm := compile(t, "int a = 1; int b = 2; print(a < b); print(a == b); print(a >= b);")
	assertContains(t, asm, "cmp rax, rcx", "setl al", "sete al", "setge al", "movzx rax, al")
}

func TestGenerateFloatOps(t *testing.T) {
	asm := compile(t, "float x = 1.5; float y = x * 2.0; print(y); print(x < y);")
	assertContains(t, asm, "movsd", "mulsd xmm0, xmm1", "comisd xmm0, xmm1", "setb al", "fmt_float")
	// Float constants live in .data as bit patterns.
	if !strings.Contains(asm, "LCf") {
		t.Errorf("no interned float constant:\n%s", asm)
	}
}

func TestGenerateBranchLabels(t *testing.T) {
	asm := compile(t, `
		int n = 5;
		while (n > 0) {
			if (n == 2) {
				print(n);
			}
			n = n - 1;
		}
	`)
	assertContains(t, asm,
		".while_cond0:", ".while_body0:", ".while_end0:",
		".then0:", ".endif0:",
		"jmp .while_cond0",
		"test rax, rax",
		"jnz .",
	)
}

func TestGeneratePrintFormats(t *testing.T) {
	asm := compile(t, `print(1); print(2.5); print("hi"); print(true);`)
	assertContains(t, asm,
		"lea rdi, [rel fmt_int]",
		"lea rdi, [rel fmt_float]",
		"lea rdi, [rel fmt_str]",
		"mov al, 1",
		"call printf",
	)
	// String literals are interned once.
	if strings.Count(asm, "LCs0:") != 1 {
		t.Errorf("string literal not interned exactly once:\n%s", asm)
	}
}

func TestGenerateRead(t *testing.T) {
	asm := compile(t, "int x; read(x); print(x);")
	assertContains(t, asm, "lea rdi, [rel fmt_read]", "lea rsi, [rbp-", "call scanf")
}

func TestGenerateCallConvention(t *testing.T) {
	asm := compile(t, `
		def mix(int a, int b, float f) : float {
			return f * 2.0;
		}
		print(mix(1, 2, 3.5));
	`)
	// Integer args in rdi/rsi, float arg in xmm0, float result read
	// back from xmm0.
	assertContains(t, asm, "mov rdi,", "mov rsi,", "call mix", "movsd qword [rbp-")
}

func TestGenerateEpilogue(t *testing.T) {
	asm := compile(t, "def f() { return 42; } print(f());")
	assertContains(t, asm, "mov rsp, rbp", "pop rbp", "ret")
}

func TestGenerateFrameAlignment(t *testing.T) {
	asm := compile(t, "int a = 1; int b = 2; int c = 3; print(a + b + c);")
	for _, line := range strings.Split(asm, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "sub rsp, ") {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(trimmed, "sub rsp, %d", &n); err != nil {
			t.Fatalf("unparseable frame adjustment %q", trimmed)
		}
		if n%16 != 0 {
			t.Errorf("frame size %d not 16-byte aligned", n)
		}
	}
}

func TestGenerateTooManyArgs(t *testing.T) {
	src := `
		def wide(int a, int b, int c, int d, int e, int f, int g) {
			return a;
		}
		print(wide(1, 2, 3, 4, 5, 6, 7));
	`
	tokens, err := compiler.Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := compiler.Analyze(prog); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	mod, err := irgen.Generate(prog)
	if err != nil {
		t.Fatalf("irgen failed: %v", err)
	}
	if _, err := Generate(mod); err == nil {
		t.Fatal("seven integer parameters lowered without error")
	} else if _, ok := err.(*Error); !ok {
		t.Fatalf("error type %T, want *Error", err)
	}
}

func TestGenerateRequiresMain(t *testing.T) {
	callee := &ir.Func{Name: "helper", Result: ir.I64}
	b := callee.NewBlock("entry")
	b.Instrs = append(b.Instrs, &ir.Instr{Op: ir.Ret, Args: []ir.Operand{ir.ConstInt{V: 7}}})

	if _, err := Generate(&ir.Module{Funcs: []*ir.Func{callee}}); err == nil {
		t.Fatal("module without main lowered without error")
	} else if _, ok := err.(*Error); !ok {
		t.Fatalf("error type %T, want *Error", err)
	}
}

func TestGeneratePhiMoves(t *testing.T) {
	// Short-circuit evaluation lowers through phi moves in the
	// predecessor blocks.
	mod := &ir.Module{}
	f := &ir.Func{Name: "main", Result: ir.I64}
	mod.Funcs = append(mod.Funcs, f)

	entry := f.NewBlock("entry")
	rhs := f.NewBlock("rhs")
	end := f.NewBlock("end")
	phi := f.NewValue(ir.I1, "")

	entry.Instrs = append(entry.Instrs, &ir.Instr{Op: ir.CondBr, Args: []ir.Operand{
		ir.ConstBool{V: true}, ir.Label{Name: "rhs"}, ir.Label{Name: "end"},
	}})
	rhs.Instrs = append(rhs.Instrs, &ir.Instr{Op: ir.Br, Args: []ir.Operand{ir.Label{Name: "end"}}})
	end.Instrs = append(end.Instrs,
		&ir.Instr{Op: ir.Phi, Dst: phi, Incoming: []ir.Incoming{
			{Val: ir.ConstBool{V: false}, Block: "entry"},
			{Val: ir.ConstBool{V: true}, Block: "rhs"},
		}},
		&ir.Instr{Op: ir.Print, Args: []ir.Operand{ir.Ref{Val: phi}}},
		&ir.Instr{Op: ir.Ret, Args: []ir.Operand{ir.ConstInt{V: 0}}},
	)

	asm, err := Generate(mod)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Both predecessors must store into the phi's cell before branching.
	if got := strings.Count(asm, "mov rax, 0\n") + strings.Count(asm, "mov rax, 1\n"); got < 2 {
		t.Errorf("expected phi moves in both predecessors:\n%s", asm)
	}
}
