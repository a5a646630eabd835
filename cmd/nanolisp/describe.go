// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"os"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/nanolisp/nanolisp/lisp"
)

var descriptions = map[string]string{
	"cons":     "Allocate a new cons cell from the two given values.",
	"car":      "Return the first half of a cons cell.",
	"cdr":      "Return the second half of a cons cell.",
	"set-car!": "Mutate the first half of a cons cell in place.",
	"set-cdr!": "Mutate the second half of a cons cell in place.",
	"cons?":    "Report whether the argument is a cons cell.",
	"null?":    "Report whether the argument is nil.",
	"symbol?":  "Report whether the argument is a symbol.",
	"number?":  "Report whether the argument is any numeric kind.",
	"type-of":  "Return a symbol naming the argument's dynamic type.",
	"eq?":      "Report whether two values are the identical tagged word.",
	"not":      "Negate the argument by the evaluator's truthiness rule.",
	"list":     "Build a proper list from the given arguments.",
	"+":        "Sum the given numeric arguments, promoting to the widest operand type.",
	"-":        "Subtract the given numeric arguments left to right.",
	"*":        "Multiply the given numeric arguments.",
	"/":        "Divide the given numeric arguments left to right.",
	"=":        "Report whether the given numeric arguments are pairwise equal.",
	"<":        "Report whether the given numeric arguments are strictly increasing.",
	">":        "Report whether the given numeric arguments are strictly decreasing.",
	"<=":       "Report whether the given numeric arguments are non-decreasing.",
	">=":       "Report whether the given numeric arguments are non-increasing.",

	"string-upcase": "Upper-case a string array value (demo extension).",
	"now-us":        "Return the host timestamp in microseconds (demo extension).",
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List registered fundamentals and extensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newConfiguredRuntime()
		if err != nil {
			return err
		}
		installDemoExtensions(rt)

		rt.Symtab.Iterate(func(id lisp.SymbolID, name string) {
			if !rt.IsFundamental(id) && !rt.Extensions.IsExtension(id) {
				return
			}
			kind := "fundamental"
			if rt.Extensions.IsExtension(id) {
				kind = "extension"
			}
			desc := descriptions[name]
			if desc == "" {
				desc = "(no description)"
			}
			line := fmt.Sprintf("%-16s %-12s %s", name, kind, desc)
			fmt.Fprintln(os.Stdout, wordwrap.String(line, 72))
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
