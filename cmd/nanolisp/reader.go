// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nanolisp/nanolisp/lisp"
)

// The interpreter core deliberately excludes a textual tokenizer/parser: a
// parser is an external collaborator the host supplies. This file is that
// collaborator, kept as small as demonstrating load_and_eval_program_incremental
// requires -- a recursive-descent reader over symbols, small integers,
// characters, strings, and proper lists (a `.` inside a list is read as a
// symbol, not as dotted-pair syntax). It is not meant to grow into a
// general parser; a real embedding host (or, for text files, a project like
// goparsec's consumer package) owns that job.

// stringChannel adapts a Go string to the lisp.CharChannel contract,
// mirroring create_string_char_channel.
type stringChannel struct {
	runes []rune
	pos   int
}

func newStringChannel(s string) *stringChannel {
	return &stringChannel{runes: []rune(s)}
}

func (c *stringChannel) More() bool { return c.pos < len(c.runes) }

func (c *stringChannel) Get() (rune, error) {
	if c.pos >= len(c.runes) {
		return 0, io.EOF
	}
	r := c.runes[c.pos]
	c.pos++
	return r, nil
}

func (c *stringChannel) Peek(n int) (rune, error) {
	if c.pos+n >= len(c.runes) {
		return 0, io.EOF
	}
	return c.runes[c.pos+n], nil
}

func (c *stringChannel) Drop(n int) { c.pos += n }

func (c *stringChannel) Put(r rune) {
	c.runes = append(c.runes[:c.pos], append([]rune{r}, c.runes[c.pos:]...)...)
}

var _ lisp.CharChannel = (*stringChannel)(nil)

// readForm is the lisp.ParseFunc this demo host hands to
// LoadAndEvalProgramIncremental.
func readForm(rt *lisp.Runtime, ch lisp.CharChannel) (lisp.Word, error) {
	skipSpace(ch)
	if !ch.More() {
		return 0, io.EOF
	}
	return readExpr(rt, ch)
}

func skipSpace(ch lisp.CharChannel) {
	for ch.More() {
		r, err := ch.Peek(0)
		if err != nil {
			return
		}
		if r == ';' {
			for ch.More() {
				r, _ := ch.Get()
				if r == '\n' {
					break
				}
			}
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			ch.Drop(1)
			continue
		}
		return
	}
}

func readExpr(rt *lisp.Runtime, ch lisp.CharChannel) (lisp.Word, error) {
	skipSpace(ch)
	r, err := ch.Peek(0)
	if err != nil {
		return 0, err
	}
	switch {
	case r == '(':
		ch.Drop(1)
		return readList(rt, ch)
	case r == '\'':
		ch.Drop(1)
		inner, err := readExpr(rt, ch)
		if err != nil {
			return 0, err
		}
		return rt.ListOf(lisp.SymWord(lisp.SymQuote), inner)
	case r == '"':
		return readString(rt, ch)
	case r == '?':
		ch.Drop(1)
		cr, err := ch.Get()
		if err != nil {
			return 0, err
		}
		return lisp.Char(cr), nil
	default:
		return readAtom(rt, ch)
	}
}

func readList(rt *lisp.Runtime, ch lisp.CharChannel) (lisp.Word, error) {
	var elems []lisp.Word
	for {
		skipSpace(ch)
		r, err := ch.Peek(0)
		if err != nil {
			return 0, fmt.Errorf("nanolisp: unterminated list: %w", err)
		}
		if r == ')' {
			ch.Drop(1)
			return rt.ListOf(elems...)
		}
		e, err := readExpr(rt, ch)
		if err != nil {
			return 0, err
		}
		elems = append(elems, e)
	}
}

func readString(rt *lisp.Runtime, ch lisp.CharChannel) (lisp.Word, error) {
	ch.Drop(1) // opening quote
	var sb strings.Builder
	for {
		r, err := ch.Get()
		if err != nil {
			return 0, fmt.Errorf("nanolisp: unterminated string: %w", err)
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			esc, err := ch.Get()
			if err != nil {
				return 0, err
			}
			r = esc
		}
		sb.WriteRune(r)
	}
	return rt.NewString(sb.String())
}

func isDelim(r rune) bool {
	switch r {
	case '(', ')', ' ', '\t', '\n', '\r', '"', '\'':
		return true
	default:
		return false
	}
}

func readAtom(rt *lisp.Runtime, ch lisp.CharChannel) (lisp.Word, error) {
	var sb strings.Builder
	for ch.More() {
		r, err := ch.Peek(0)
		if err != nil || isDelim(r) {
			break
		}
		ch.Drop(1)
		sb.WriteRune(r)
	}
	tok := sb.String()
	if tok == "" {
		return 0, fmt.Errorf("nanolisp: empty atom")
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return lisp.SmallInt(n), nil
	}
	return lisp.SymWord(rt.Symtab.Intern(tok)), nil
}
