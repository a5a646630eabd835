// Copyright © 2026 The nanolisp authors

package main

import (
	"strings"

	"github.com/nanolisp/nanolisp/lisp"
)

// installDemoExtensions registers a minimal string/time extension surface:
// a TTF rasterizer or display layer is explicitly out of scope for this
// core, but the registration pattern -- host functions wired through
// add_extension -- is worth exercising end to end.
func installDemoExtensions(rt *lisp.Runtime) {
	rt.AddExtension("string-upcase", func(rt *lisp.Runtime, args []lisp.Word) lisp.Word {
		if len(args) != 1 {
			return lisp.SymWord(lisp.SymEvalError)
		}
		s, ok := rt.GoString(args[0])
		if !ok {
			return lisp.SymWord(lisp.SymTypeError)
		}
		v, err := rt.NewString(strings.ToUpper(s))
		if err != nil {
			return lisp.SymWord(lisp.SymOutOfMemory)
		}
		return v
	})

	rt.AddExtension("now-us", func(rt *lisp.Runtime, args []lisp.Word) lisp.Word {
		return lisp.SmallInt(rt.TimestampUS())
	})
}
