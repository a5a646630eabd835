// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	"github.com/nanolisp/nanolisp/lisp"
)

// runOperatorShell opens a line-edited shell issuing host-level commands
// against a running *lisp.Runtime: spawn, send, kill,
// pause, continue, gc, state. It exercises the pause/continue/kill/send
// surface interactively without building a text tokenizer for the language
// itself, using github.com/ergochat/readline for the interactive loop.
func runOperatorShell(rt *lisp.Runtime) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "nanolisp> ",
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return err
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	fmt.Fprintln(os.Stdout, "nanolisp operator shell. Commands: spawn, send <ctx> <int>, kill <ctx>, pause, continue, gc, state, run, quit")
	for {
		line, err := rl.ReadSlice()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(string(line))
		if len(fields) == 0 {
			continue
		}
		if !dispatchShellCommand(rt, fields) {
			return nil
		}
	}
}

func dispatchShellCommand(rt *lisp.Runtime, fields []string) bool {
	switch fields[0] {
	case "quit", "exit":
		return false
	case "spawn":
		ctx := rt.Scheduler.Spawn(lisp.SymWord(lisp.SymNil), rt.GlobalEnv)
		fmt.Fprintf(os.Stdout, "spawned ctx=%d\n", ctx.ID)
	case "send":
		if len(fields) != 3 {
			fmt.Fprintln(os.Stderr, "usage: send <ctx> <int>")
			break
		}
		cid, err1 := strconv.Atoi(fields[1])
		val, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil {
			fmt.Fprintln(os.Stderr, "usage: send <ctx> <int>")
			break
		}
		ok := rt.SendMessage(lisp.ContextID(cid), lisp.SmallInt(val))
		fmt.Fprintf(os.Stdout, "send ok=%v\n", ok)
	case "kill":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: kill <ctx>")
			break
		}
		cid, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "usage: kill <ctx>")
			break
		}
		rt.Scheduler.Kill(lisp.ContextID(cid))
	case "pause":
		rt.PauseEvalWithGC(0)
	case "continue":
		rt.ContinueEval()
	case "gc":
		if err := rt.CollectGarbage(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Fprintf(os.Stdout, "heap_free=%d aux_free=%d\n", rt.Heap.HeapNumFree(), rt.Aux.NumFree())
	case "state":
		fmt.Fprintf(os.Stdout, "eval_state=%v\n", rt.GetEvalState())
	case "run":
		for rt.Scheduler.RunOnce() {
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
	}
	return true
}
