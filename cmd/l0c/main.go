// Command l0c is the L0 compiler driver: read source, parse, macro-expand,
// emit C, write the result — or, with -repl, drop into an interactive
// read-eval-print loop over the tree-walking evaluator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	l0 "github.com/l0-lang/l0"
)

const defaultWritePermission = 0644 // -rw-r--r--

func main() {
	var (
		outputPath = flag.String("output", "", "path to the generated C file (defaults to <input>.c)")
		repl       = flag.Bool("repl", false, "start an interactive read-eval-print loop instead of compiling")
	)
	flag.Parse()

	if *repl {
		runREPL()
		return
	}

	if flag.NArg() != 1 {
		log.Fatal("usage: l0c [-output path] <input-source-path>")
	}
	inputPath := flag.Arg(0)
	outPath := *outputPath
	if outPath == "" {
		outPath = inputPath + ".c"
	}

	if err := compile(inputPath, outPath); err != nil {
		printDiagnostic(err)
		os.Exit(1)
	}
	os.Exit(0)
}

// compile runs the full pipeline: parse, macro-expand every top-level form,
// emit C, write the output file.
func compile(inputPath, outputPath string) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return &l0.Diagnostic{Phase: l0.PhaseParse, Kind: l0.KindParseInvalidSyntax, Message: err.Error()}
	}

	cfg := l0.NewConfig()
	arena := l0.NewArenaFromConfig(cfg)
	forms, err := l0.Parse(arena, string(src))
	if err != nil {
		return err
	}

	ev := l0.NewEvaluatorFromConfig(arena, cfg)
	ev.SetCommandLineArgs(flag.Args()[1:])
	env, err := l0.NewGlobalEnv(ev)
	if err != nil {
		return err
	}

	items, ok := l0.ListToSlice(forms)
	if !ok {
		return l0.CodegenError("top-level program is not a proper list")
	}
	expanded := make([]*l0.Value, len(items))
	for i, form := range items {
		ex, err := l0.Macroexpand(ev, form, env)
		if err != nil {
			if d, ok := l0.AsDiagnostic(err); ok {
				d.Phase = l0.PhaseMacro
			}
			return err
		}
		expanded[i] = ex
	}
	program := arena.List(expanded...)

	csrc, err := l0.EmitCWithConfig(arena, program, cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(csrc), defaultWritePermission); err != nil {
		return &l0.Diagnostic{Phase: l0.PhaseWrite, Kind: l0.KindRuntime, Message: err.Error()}
	}
	return nil
}

// printDiagnostic writes a single phase-tagged diagnostic line: phase name,
// message, and position when available.
func printDiagnostic(err error) {
	tag := "l0"
	d, ok := l0.AsDiagnostic(err)
	if ok {
		tag = string(d.Phase)
	}
	fmt.Fprintf(os.Stdout, "%s: %s\n", color.New(color.FgRed, color.Bold).Sprint(tag), err.Error())
}
