package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	l0 "github.com/l0-lang/l0"
)

// runREPL starts an interactive read-eval-print loop over the tree-walking
// evaluator (not the emitter): read one form, macro-expand it, evaluate it
// in a persistent global environment, print its value. Line editing and
// phase-tagged coloring are drawn from the same CLI idiom as
// leinonen-go-lisp, the only Lisp-shaped interactive CLI in the pack.
func runREPL() {
	rl, err := readline.New(color.New(color.FgCyan, color.Bold).Sprint("l0> "))
	if err != nil {
		fmt.Println("l0: could not start line editor:", err)
		return
	}
	defer rl.Close()

	cfg := l0.NewConfig()
	arena := l0.NewArenaFromConfig(cfg)
	ev := l0.NewEvaluatorFromConfig(arena, cfg)
	env, err := l0.NewGlobalEnv(ev)
	if err != nil {
		fmt.Println("l0: could not initialize global environment:", err)
		return
	}

	errorTag := color.New(color.FgRed, color.Bold)
	for {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return
		}
		if err != nil {
			fmt.Println("l0:", err)
			return
		}
		if line == "" {
			continue
		}

		forms, perr := l0.Parse(arena, line)
		if perr != nil {
			fmt.Println(errorTag.Sprint("parse:"), perr)
			continue
		}

		items, ok := l0.ListToSlice(forms)
		if !ok {
			fmt.Println(errorTag.Sprint("parse:"), "incomplete expression")
			continue
		}

		var result *l0.Value
		failed := false
		for _, form := range items {
			expanded, merr := l0.Macroexpand(ev, form, env)
			if merr != nil {
				fmt.Println(errorTag.Sprint("macro-expansion:"), merr)
				failed = true
				break
			}
			value, eerr := ev.Eval(expanded, env)
			if eerr != nil {
				fmt.Println(errorTag.Sprint("eval:"), eerr)
				failed = true
				break
			}
			result = value
		}
		if !failed && result != nil {
			fmt.Println(result.String())
		}
	}
}
