// Package pipeline runs the whole compilation sequence and writes the
// per-stage artifacts. It is the only package that knows the front end
// and the back ends at the same time; the driver and the REPL both sit
// on top of it.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/codegen"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/compiler"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/irgen"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/llvmgen"
)

// Result holds the artifact of every stage for one source file. All
// fields up to the stage that failed are populated.
type Result struct {
	Tokens  []compiler.Token
	Program *compiler.Program
	Symbols *compiler.SymbolTable
	IR      *ir.Module
	IROpt   *ir.Module
	Asm     string
	LLVM    string
	LLVMOpt string
}

// Run compiles source through every stage and stops at the first error.
// The partial Result is returned alongside the error so callers can
// still dump the artifacts of the stages that succeeded.
func Run(source string) (*Result, error) {
	res := &Result{}

	tokens, err := compiler.Lex(source)
	if err != nil {
		return res, err
	}
	res.Tokens = tokens

	prog, err := compiler.Parse(tokens, source)
	if err != nil {
		return res, err
	}
	res.Program = prog

	syms, err := compiler.Analyze(prog)
	if err != nil {
		return res, err
	}
	res.Symbols = syms

	mod, err := irgen.Generate(prog)
	if err != nil {
		return res, err
	}
	res.IR = mod
	res.IROpt = ir.Optimize(mod)

	asm, err := codegen.Generate(res.IROpt)
	if err != nil {
		return res, err
	}
	res.Asm = asm

	ll, err := llvmgen.Generate(res.IR)
	if err != nil {
		return res, err
	}
	res.LLVM = ll

	llOpt, err := llvmgen.Generate(res.IROpt)
	if err != nil {
		return res, err
	}
	res.LLVMOpt = llOpt

	return res, nil
}

// Exit codes reported by the driver, one per failing stage class.
const (
	ExitOK       = 0
	ExitIO       = 1
	ExitLexical  = 2
	ExitSyntax   = 3
	ExitSemantic = 4
	ExitCodegen  = 5
)

// ExitCode classifies err into the driver's exit code scheme.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var lexErr *compiler.LexicalError
	var synErr *compiler.SyntaxError
	var semErr *compiler.SemanticError
	var cgErr *codegen.Error
	switch {
	case errors.As(err, &lexErr):
		return ExitLexical
	case errors.As(err, &synErr):
		return ExitSyntax
	case errors.As(err, &semErr):
		return ExitSemantic
	case errors.As(err, &cgErr):
		return ExitCodegen
	}
	return ExitCodegen
}

// WriteArtifacts dumps every populated stage artifact into dir, creating
// it if needed. Stages that did not run leave no file behind.
func WriteArtifacts(dir string, res *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	write := func(name, content string) error {
		if content == "" {
			return nil
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	if res.Tokens != nil {
		if err := write("tokens.txt", compiler.DumpTokens(res.Tokens)); err != nil {
			return err
		}
	}
	if res.Symbols != nil {
		if err := write("symbols.txt", res.Symbols.Dump()); err != nil {
			return err
		}
	}
	if res.IR != nil {
		if err := write("ir.txt", res.IR.String()); err != nil {
			return err
		}
	}
	if res.IROpt != nil {
		if err := write("ir_opt.txt", res.IROpt.String()); err != nil {
			return err
		}
	}
	if err := write("program.asm", res.Asm); err != nil {
		return err
	}
	if err := write("program.ll", res.LLVM); err != nil {
		return err
	}
	return write("program_opt.ll", res.LLVMOpt)
}
