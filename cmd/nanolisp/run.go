// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/nanolisp/nanolisp/lisp"
)

var (
	runExpression  bool
	runInteractive bool
	runWatchImage  string
	runBootImage   string
)

var runCmd = &cobra.Command{
	Use:   "run [file.nl]",
	Short: "Load and evaluate a source file or expression",
	RunE:  doRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVarP(&runExpression, "expression", "e", false, "interpret the argument as a nanolisp expression")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false, "open an operator shell after loading")
	runCmd.Flags().StringVar(&runWatchImage, "watch-image", "", "re-run image_boot whenever this file changes")
	runCmd.Flags().StringVar(&runBootImage, "boot-image", "", "boot the runtime from a saved image instead of a fresh heap")
}

func newConfiguredRuntime() (*lisp.Runtime, error) {
	opts := []lisp.Config{
		lisp.WithHeapCells(viper.GetInt("heap_cells")),
		lisp.WithAuxWords(viper.GetInt("aux_words")),
		lisp.WithQuantum(viper.GetInt("quantum")),
		lisp.WithLogger(lisp.NewStdLogger(os.Stderr)),
	}
	if viper.GetBool("trace") {
		opts = append(opts, lisp.WithTracer(newStdoutTracer()))
	}
	if runBootImage != "" {
		f, err := os.Open(runBootImage)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rt, _, err := lisp.BootImage(f, opts...)
		return rt, err
	}
	return lisp.NewRuntime(opts...)
}

// newStdoutTracer is swapped in for the noop tracer when --trace is set.
// Kept in its own small function so the sdk import only has one call site.
func newStdoutTracer() trace.Tracer {
	tp := newStdoutTracerProvider()
	return tp.Tracer("nanolisp")
}

func doRun(cmd *cobra.Command, args []string) error {
	rt, err := newConfiguredRuntime()
	if err != nil {
		return fmt.Errorf("nanolisp: init runtime: %w", err)
	}
	installDemoExtensions(rt)

	ctx := rt.Scheduler.Spawn(lisp.SymWord(lisp.SymNil), rt.GlobalEnv)

	runOnce := func() {
		var src string
		switch {
		case runExpression && len(args) > 0:
			src = args[0]
		case len(args) > 0:
			b, rerr := os.ReadFile(args[0])
			if rerr != nil {
				fmt.Fprintln(os.Stderr, rerr)
				return
			}
			src = string(b)
		default:
			return
		}
		ch := newStringChannel(src)
		rt.LoadAndEvalProgramIncremental(ctx, ch, readForm, func(res lisp.ContextResult) {
			if res.Err != nil {
				fmt.Fprintln(os.Stderr, res.Err)
				return
			}
			fmt.Fprintln(os.Stdout, res.Value)
		})
	}
	runOnce()

	if runWatchImage != "" {
		watchImage(rt, runWatchImage)
	}

	if runInteractive {
		return runOperatorShell(rt)
	}
	return nil
}

// watchImage boots the watched image file into a fresh runtime whenever it
// changes and reports whether that succeeded, a convenience for checking a
// prelude image during development. The booted runtime is discarded; rt is
// not replaced.
func watchImage(rt *lisp.Runtime, path string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintln(os.Stderr, "nanolisp: watch-image:", err)
		return
	}
	if err := w.Add(path); err != nil {
		fmt.Fprintln(os.Stderr, "nanolisp: watch-image:", err)
		return
	}
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f, err := os.Open(path)
			if err != nil {
				fmt.Fprintln(os.Stderr, "nanolisp: watch-image reload:", err)
				continue
			}
			_, _, err = lisp.BootImage(f)
			f.Close()
			if err != nil {
				fmt.Fprintln(os.Stderr, "nanolisp: watch-image reload:", err)
				continue
			}
			fmt.Fprintln(os.Stderr, "nanolisp: reloaded image", path)
		}
	}()
}
