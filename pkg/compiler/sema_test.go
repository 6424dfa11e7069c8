package compiler

import "testing"

// wantSemErr asserts that src fails analysis with the given kind.
func wantSemErr(t *testing.T, src string, kind SemanticErrorKind) *SemanticError {
	t.Helper()
	_, _, err := analyze(src)
	if err == nil {
		t.Fatalf("Analyze(%q) succeeded, want %s", src, kind)
	}
	semErr, ok := err.(*SemanticError)
	if !ok {
		t.Fatalf("Analyze(%q) error type %T, want *SemanticError", src, err)
	}
	if semErr.Kind != kind {
		t.Fatalf("Analyze(%q) kind = %s, want %s (%v)", src, semErr.Kind, kind, semErr)
	}
	return semErr
}

func wantOK(t *testing.T, src string) *Program {
	t.Helper()
	prog, _, err := analyze(src)
	if err != nil {
		t.Fatalf("Analyze(%q) failed: %v", src, err)
	}
	return prog
}

func TestAnalyzeRedeclaration(t *testing.T) {
	wantSemErr(t, "int x; int x;", Redeclaration)
	wantSemErr(t, "int x; float x;", Redeclaration)
	wantSemErr(t, "def f() { return 0; } def f() { return 1; }", Redeclaration)
	wantSemErr(t, "def f(int a, int a) { return a; }", Redeclaration)
	// A local reusing a parameter name collides with it.
	wantSemErr(t, "def f(int a) { int a; return a; }", Redeclaration)
}

func TestAnalyzeShadowing(t *testing.T) {
	// Inner scopes may reuse outer names.
	wantOK(t, `
		int x = 1;
		{
			float x = 2.0;
			print(x);
		}
		print(x);
	`)
	wantOK(t, "int i = 0; for (int i = 0; i < 3; i = i + 1) { print(i); }")
}

func TestAnalyzeUndeclared(t *testing.T) {
	wantSemErr(t, "x = 1;", UndeclaredIdentifier)
	// The diagnostic points at the identifier itself.
	if err := wantSemErr(t, "print(y);", UndeclaredIdentifier); err.Pos != (Pos{Line: 1, Col: 7}) {
		t.Errorf("undeclared identifier reported at %s, want 1:7", err.Pos)
	}
	wantSemErr(t, "int r = f(1);", UndeclaredIdentifier)
	wantSemErr(t, "read(q);", UndeclaredIdentifier)
	// Block locals do not leak out of their scope.
	wantSemErr(t, "{ int inner = 1; } print(inner);", UndeclaredIdentifier)
	wantSemErr(t, "for (int i = 0; i < 3; i = i + 1) { } print(i);", UndeclaredIdentifier)
}

func TestAnalyzeTypeMismatch(t *testing.T) {
	wantSemErr(t, "int x = 1.5;", TypeMismatch)
	wantSemErr(t, "float y = 1;", TypeMismatch)
	wantSemErr(t, "int x; x = true;", TypeMismatch)
	wantSemErr(t, `string s = 5;`, TypeMismatch)
	wantSemErr(t, "if (1) { }", TypeMismatch)
	wantSemErr(t, "while (0) { }", TypeMismatch)
	wantSemErr(t, "for (int i = 0; i + 1; i = i + 1) { }", TypeMismatch)
	wantSemErr(t, "def f(): void { return 1; }", TypeMismatch)
	wantSemErr(t, "def f(): float { return 1; }", TypeMismatch)
	wantSemErr(t, "def f() { return; }", TypeMismatch)
}

func TestAnalyzeNoImplicitConversion(t *testing.T) {
	// int and float never mix silently.
	wantSemErr(t, "float f = 1 + 2.0;", InvalidOperandType)
	wantSemErr(t, "bool b = 1 < 2.0;", InvalidOperandType)
}

func TestAnalyzeInvalidOperands(t *testing.T) {
	wantSemErr(t, `string s = "a" + "b";`, InvalidOperandType)
	wantSemErr(t, "int x = true + false;", InvalidOperandType)
	wantSemErr(t, "int x = 1.0 % 2.0;", InvalidOperandType)
	wantSemErr(t, "bool b = true && 1;", InvalidOperandType)
	wantSemErr(t, "bool b = 1 || true;", InvalidOperandType)
	wantSemErr(t, "bool b = !5;", InvalidOperandType)
	wantSemErr(t, "int x = -true;", InvalidOperandType)
	wantSemErr(t, `bool b = "a" == "b";`, InvalidOperandType)
	wantSemErr(t, "def f() { return 0; } print(f + 1);", InvalidOperandType)
}

func TestAnalyzeCalls(t *testing.T) {
	wantSemErr(t, "def f(int a) { return a; } int r = f();", ArgumentCountMismatch)
	wantSemErr(t, "def f(int a) { return a; } int r = f(1, 2);", ArgumentCountMismatch)
	wantSemErr(t, "def f(int a) { return a; } int r = f(1.5);", ArgumentTypeMismatch)
	wantSemErr(t, "def f(int a, float b) { return a; } int r = f(1, 2);", ArgumentTypeMismatch)
	wantSemErr(t, "int x = 1; int r = x(2);", TypeMismatch)

	// Forward reference resolves: g is declared after its caller.
	wantOK(t, `
		def f(int n) { return g(n) + 1; }
		def g(int n) { return n * 2; }
		print(f(3));
	`)
}

func TestAnalyzeMissingReturn(t *testing.T) {
	wantSemErr(t, "def f() { print(1); }", MissingReturn)
	// One arm returning is not enough.
	wantSemErr(t, `
		def f(int n) {
			if (n > 0) {
				return 1;
			}
		}
	`, MissingReturn)
	// Loops may run zero times, so a return inside one does not count.
	wantSemErr(t, `
		def f(int n) {
			while (n > 0) {
				return 1;
			}
		}
	`, MissingReturn)

	wantOK(t, `
		def f(int n) {
			if (n > 0) {
				return 1;
			} else {
				return 2;
			}
		}
	`)
	wantOK(t, `
		def f(int n) {
			if (n > 0) {
				return 1;
			}
			return 2;
		}
	`)
	// Void functions need no return at all.
	wantOK(t, "def f(): void { print(1); }")
	// Top-level statements have no return requirement either.
	wantOK(t, "print(1);")
}

func TestAnalyzeImplicitMainConflict(t *testing.T) {
	err := wantSemErr(t, `
		print(1);
		def main() { return 0; }
	`, Redeclaration)
	if !contains(err.Error(), "main") {
		t.Errorf("error does not name main: %v", err)
	}

	// An explicit main with no loose statements is fine.
	wantOK(t, "def main() { return 0; }")
}

func TestAnalyzeRead(t *testing.T) {
	wantOK(t, "int x; read(x); print(x);")
	wantSemErr(t, "float f; read(f);", TypeMismatch)
	wantSemErr(t, `string s; read(s);`, TypeMismatch)
	wantSemErr(t, "def f() { return 0; } read(f);", TypeMismatch)
}

func TestAnalyzeAnnotations(t *testing.T) {
	prog := wantOK(t, "int x = 1; float y = 2.5; bool b = x < 2;")

	d := prog.Stmts[0].(*VarDecl)
	if d.Sym == nil || d.Sym.Type != TypeInt {
		t.Fatal("declaration not annotated with its symbol")
	}
	cmp := prog.Stmts[2].(*VarDecl).Init.(*BinaryExpr)
	if cmp.ResultType() != TypeBool {
		t.Errorf("comparison type = %s, want bool", cmp.ResultType())
	}
	ref := cmp.Left.(*VarRef)
	if ref.Sym != d.Sym {
		t.Error("variable reference not resolved to its declaration symbol")
	}
}

func TestAnalyzeSymbolDump(t *testing.T) {
	_, syms, err := analyze("def f(int a) { int b = a; return b; } int x = 1;")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	dump := syms.Dump()
	for _, want := range []string{"f int 0 function", "a int 1 parameter", "b int 1 variable", "x int 1 variable"} {
		if !contains(dump, want) {
			t.Errorf("symbol dump missing %q:\n%s", want, dump)
		}
	}
}
