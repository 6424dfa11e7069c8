// Command cforge compiles a source file through the full pipeline and
// writes the per-stage artifacts. With -run the compiled program is
// executed on the IR interpreter; with -repl an interactive session
// compiles and runs each entered snippet.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/peterh/liner"

	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/compiler"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/ir"
	"github.com/ahtishamdilawar/CForge-mini-compiler/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	outDir := flag.String("o", "analysis", "directory for per-stage artifacts")
	repl := flag.Bool("repl", false, "start an interactive session")
	exec := flag.Bool("run", false, "execute the compiled program on the IR interpreter")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *repl {
		return replLoop()
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return pipeline.ExitIO
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return pipeline.ExitIO
	}

	res, cerr := pipeline.Run(string(src))
	// Artifacts of the stages that succeeded are written even when a
	// later stage failed.
	if werr := pipeline.WriteArtifacts(*outDir, res); werr != nil {
		fmt.Fprintln(os.Stderr, werr)
		return pipeline.ExitIO
	}
	if cerr != nil {
		diag := compiler.FromError(flag.Arg(0), cerr)
		fmt.Fprintln(os.Stderr, diag.Render(string(src)))
		return pipeline.ExitCode(cerr)
	}

	if *exec {
		return interpret(res.IROpt)
	}
	return pipeline.ExitOK
}

// interpret runs the optimized module, feeding it whitespace-separated
// integers from stdin and echoing its output lines.
func interpret(mod *ir.Module) int {
	var input []int64
	sc := bufio.NewScanner(os.Stdin)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		n, err := strconv.ParseInt(sc.Text(), 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad input %q: expected an integer\n", sc.Text())
			return pipeline.ExitIO
		}
		input = append(input, n)
	}

	res, err := ir.Interpret(mod, input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return pipeline.ExitCodegen
	}
	for _, line := range res.Output {
		fmt.Println(line)
	}
	return int(res.Exit)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cforge_history")
}

// replLoop compiles and interprets each entered snippet as a complete
// program. Falls back to plain line reading when stdin is not a
// terminal.
func replLoop() int {
	stat, _ := os.Stdin.Stat()
	interactive := stat != nil && (stat.Mode()&os.ModeCharDevice) != 0
	if !interactive {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			evalLine(sc.Text())
		}
		return pipeline.ExitOK
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if p := historyPath(); p != "" {
		if f, err := os.Open(p); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	for {
		input, err := line.Prompt("cforge> ")
		if err != nil {
			if err != liner.ErrPromptAborted {
				fmt.Fprintln(os.Stderr)
			}
			break
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		evalLine(input)
	}

	if p := historyPath(); p != "" {
		if f, err := os.Create(p); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return pipeline.ExitOK
}

func evalLine(src string) {
	res, err := pipeline.Run(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	out, err := ir.Interpret(res.IROpt, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	for _, line := range out.Output {
		fmt.Println(line)
	}
}
