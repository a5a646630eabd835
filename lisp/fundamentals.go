// Copyright © 2026 The nanolisp authors

package lisp

// Fundamental is a host-implemented primitive identified by a reserved
// symbol id in [ReservedSymbolCeiling, FundamentalCeiling). Unlike an
// Extension, a
// fundamental's table is fixed at init and is never extended at runtime.
type Fundamental func(rt *Runtime, args []Word) Word

type fundamentalEntry struct {
	name string
	fn   Fundamental
}

var fundamentalTable []fundamentalEntry

func registerFundamental(name string, fn Fundamental) {
	fundamentalTable = append(fundamentalTable, fundamentalEntry{name, fn})
}

// installFundamentals interns every registered fundamental's name into the
// fundamental id range and records its implementation in rt.fundamentals,
// keyed by that id.
func (rt *Runtime) installFundamentals() {
	for _, e := range fundamentalTable {
		id := rt.Symtab.Intern(e.name)
		rt.fundamentals[id] = e.fn
	}
}

// IsFundamental reports whether id names a registered fundamental.
func (rt *Runtime) IsFundamental(id SymbolID) bool {
	_, ok := rt.fundamentals[id]
	return ok
}

func (rt *Runtime) invokeFundamental(id SymbolID, args []Word) Word {
	fn, ok := rt.fundamentals[id]
	if !ok {
		return SymWord(SymEvalError)
	}
	return fn(rt, args)
}

func init() {
	registerFundamental("cons", func(rt *Runtime, a []Word) Word {
		if len(a) != 2 {
			return SymWord(SymEvalError)
		}
		v, err := rt.Heap.Cons(a[0], a[1])
		if err != nil {
			return SymWord(SymOutOfMemory)
		}
		return v
	})
	registerFundamental("car", func(rt *Runtime, a []Word) Word {
		if len(a) != 1 {
			return SymWord(SymEvalError)
		}
		if rt.Heap.TypeOf(a[0]) != KindCons {
			return SymWord(SymTypeError)
		}
		return rt.Heap.Car(a[0])
	})
	registerFundamental("cdr", func(rt *Runtime, a []Word) Word {
		if len(a) != 1 {
			return SymWord(SymEvalError)
		}
		if rt.Heap.TypeOf(a[0]) != KindCons {
			return SymWord(SymTypeError)
		}
		return rt.Heap.Cdr(a[0])
	})
	registerFundamental("set-car!", func(rt *Runtime, a []Word) Word {
		if len(a) != 2 || rt.Heap.TypeOf(a[0]) != KindCons {
			return SymWord(SymEvalError)
		}
		rt.Heap.SetCar(a[0], a[1])
		return a[1]
	})
	registerFundamental("set-cdr!", func(rt *Runtime, a []Word) Word {
		if len(a) != 2 || rt.Heap.TypeOf(a[0]) != KindCons {
			return SymWord(SymEvalError)
		}
		rt.Heap.SetCdr(a[0], a[1])
		return a[1]
	})
	registerFundamental("cons?", unary(func(rt *Runtime, w Word) Word { return predicate(rt.Heap.TypeOf(w) == KindCons) }))
	registerFundamental("null?", unary(func(rt *Runtime, w Word) Word { return predicate(rt.Heap.TypeOf(w) == KindNil) }))
	registerFundamental("symbol?", unary(func(rt *Runtime, w Word) Word { return predicate(w.IsSymbol()) }))
	registerFundamental("number?", unary(func(rt *Runtime, w Word) Word { return predicate(rt.Heap.IsNumeric(w)) }))
	registerFundamental("type-of", unary(func(rt *Runtime, w Word) Word {
		return SymWord(rt.Symtab.Intern(kindName(rt.Heap.TypeOf(w))))
	}))
	registerFundamental("eq?", func(rt *Runtime, a []Word) Word {
		if len(a) != 2 {
			return SymWord(SymEvalError)
		}
		return predicate(a[0] == a[1])
	})
	registerFundamental("not", func(rt *Runtime, a []Word) Word {
		if len(a) != 1 {
			return SymWord(SymEvalError)
		}
		return predicate(!rt.Truthy(a[0]))
	})
	registerFundamental("list", func(rt *Runtime, a []Word) Word {
		v, err := rt.ListOf(a...)
		if err != nil {
			return SymWord(SymOutOfMemory)
		}
		return v
	})

	registerFundamental("+", arith("+", func(a, b float64) float64 { return a + b }))
	registerFundamental("-", arith("-", func(a, b float64) float64 { return a - b }))
	registerFundamental("*", arith("*", func(a, b float64) float64 { return a * b }))
	registerFundamental("/", arith("/", func(a, b float64) float64 { return a / b }))

	registerFundamental("=", compare(func(a, b float64) bool { return a == b }))
	registerFundamental("<", compare(func(a, b float64) bool { return a < b }))
	registerFundamental(">", compare(func(a, b float64) bool { return a > b }))
	registerFundamental("<=", compare(func(a, b float64) bool { return a <= b }))
	registerFundamental(">=", compare(func(a, b float64) bool { return a >= b }))
}

// unary wraps a one-argument fundamental with its arity check.
func unary(fn func(rt *Runtime, w Word) Word) Fundamental {
	return func(rt *Runtime, a []Word) Word {
		if len(a) != 1 {
			return SymWord(SymEvalError)
		}
		return fn(rt, a[0])
	}
}

func predicate(b bool) Word {
	if b {
		return SymWord(SymT)
	}
	return SymWord(SymNil)
}

func kindName(k ValueKind) string {
	switch k {
	case KindNil:
		return "nil"
	case KindSymbol:
		return "symbol"
	case KindSmallInt:
		return "int"
	case KindSmallUint:
		return "uint"
	case KindChar:
		return "char"
	case KindCons:
		return "cons"
	case KindClosure:
		return "closure"
	case KindArray:
		return "array"
	case KindBoxedInt32, KindBoxedUint32, KindBoxedInt64, KindBoxedUint64:
		return "int"
	case KindBoxedFloat32, KindBoxedFloat64:
		return "float"
	default:
		return "invalid"
	}
}

// arith implements the mixed-type promotion rule: arithmetic on mixed
// numeric types promotes to the widest operand type following the
// promotion order integer → unsigned → 32-bit integer → 32-bit unsigned →
// float → 64-bit integer → 64-bit unsigned → double (numericRank in
// heap.go). Arithmetic on a non-numeric operand yields type-error.
func arith(name string, op func(a, b float64) float64) Fundamental {
	return func(rt *Runtime, args []Word) Word {
		if len(args) == 0 {
			return SymWord(SymEvalError)
		}
		for _, a := range args {
			if !rt.Heap.IsNumeric(a) {
				return SymWord(SymTypeError)
			}
		}
		winner := args[0]
		acc, _ := rt.Heap.AsFloat64(args[0])
		for _, a := range args[1:] {
			v, _ := rt.Heap.AsFloat64(a)
			acc = op(acc, v)
			if numericRank(rt.Heap.TypeOf(a)) > numericRank(rt.Heap.TypeOf(winner)) {
				winner = a
			}
		}
		return rt.reboxAs(rt.Heap.TypeOf(winner), acc)
	}
}

func compare(op func(a, b float64) bool) Fundamental {
	return func(rt *Runtime, args []Word) Word {
		if len(args) < 2 {
			return SymWord(SymEvalError)
		}
		for _, a := range args {
			if !rt.Heap.IsNumeric(a) {
				return SymWord(SymTypeError)
			}
		}
		for i := 1; i < len(args); i++ {
			a, _ := rt.Heap.AsFloat64(args[i-1])
			b, _ := rt.Heap.AsFloat64(args[i])
			if !op(a, b) {
				return SymWord(SymNil)
			}
		}
		return SymWord(SymT)
	}
}

// reboxAs constructs a result value of the given promoted kind from a
// float64 accumulator. Small int/uint results are not promoted further:
// the immediate keeps the low 58 bits of the converted value, so a result
// outside that range loses its high bits.
func (rt *Runtime) reboxAs(kind ValueKind, f float64) Word {
	switch kind {
	case KindSmallInt:
		return SmallInt(int64(f))
	case KindSmallUint:
		return SmallUint(uint64(f))
	case KindBoxedInt32:
		v, _ := rt.Heap.BoxInt32(int32(f))
		return v
	case KindBoxedUint32:
		v, _ := rt.Heap.BoxUint32(uint32(f))
		return v
	case KindBoxedInt64:
		v, _ := rt.Heap.BoxInt64(int64(f))
		return v
	case KindBoxedUint64:
		v, _ := rt.Heap.BoxUint64(uint64(f))
		return v
	case KindBoxedFloat32:
		v, _ := rt.Heap.BoxFloat32(float32(f))
		return v
	default:
		v, _ := rt.Heap.BoxFloat64(f)
		return v
	}
}
