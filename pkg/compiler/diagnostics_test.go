package compiler

import "testing"

func TestDiagnosticFromError(t *testing.T) {
	src := "int x = ;"
	_, _, err := analyze(src)
	if err == nil {
		t.Fatal("analyze succeeded on a syntax error")
	}

	d := FromError("prog.c", err)
	if d.Stage != "syntax" {
		t.Errorf("stage = %q, want syntax", d.Stage)
	}
	out := d.Render(src)
	for _, want := range []string{"prog.c:1:", "syntax error:", "int x = ;", "^"} {
		if !contains(out, want) {
			t.Errorf("rendered diagnostic missing %q:\n%s", want, out)
		}
	}
}

func TestDiagnosticStages(t *testing.T) {
	tests := []struct {
		src   string
		stage string
	}{
		{"@", "lexical"},
		{"int x", "syntax"},
		{"int x = true;", "semantic"},
	}
	for _, tt := range tests {
		_, _, err := analyze(tt.src)
		if err == nil {
			t.Errorf("analyze(%q) succeeded", tt.src)
			continue
		}
		if d := FromError("", err); d.Stage != tt.stage {
			t.Errorf("FromError(%q).Stage = %q, want %q", tt.src, d.Stage, tt.stage)
		}
	}
}
