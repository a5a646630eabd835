// Copyright © 2026 The nanolisp authors

package lisp

import "fmt"

// Word is the tagged machine word that is the sole unit of value exchange in
// the runtime: expressions, environments, continuation-stack operands, and
// mailbox payloads are all Words. The low two bits are the pointer/value
// discriminator; when the discriminator marks an immediate, the next four
// bits select the immediate kind and the remainder is payload. When the
// discriminator marks a pointer the remainder is a cell index into the cons
// arena; the shape actually stored at that cell (plain cons, boxed
// numeric, array descriptor) is carried on the cell itself, not the word, so
// that GC can treat every pointer word identically while walking roots.
//
// This implementation targets the 64-bit layout only: Word is a uint64,
// and the payload is the 58 bits above the 2 discriminator bits and the 4
// immediate-kind bits.
type Word uint64

const (
	discBits = 2
	discMask = Word(1)<<discBits - 1

	discImmediate = Word(0)
	discPointer   = Word(1)

	immKindBits  = 4
	immKindShift = discBits
	immKindMask  = Word(1)<<immKindBits - 1

	payloadShift = discBits + immKindBits
)

// Immediate kinds.
const (
	immSmallInt = iota
	immSmallUint
	immChar
	immSymbol
)

// nil, t and the other reserved immediates are symbol-kind words whose
// payload is a reserved symbol id (see lang.go), built with SymWord, e.g.
// SymWord(SymNil).

func mkImmediate(kind Word, payload uint64) Word {
	return (Word(payload) << payloadShift) | (kind&immKindMask)<<immKindShift | discImmediate
}

func mkPointer(cellIndex int) Word {
	return (Word(uint64(cellIndex)) << payloadShift) | discPointer
}

// IsPointer reports whether w addresses a cell in the cons arena.
func (w Word) IsPointer() bool { return w&discMask == discPointer }

// IsImmediate reports whether w is a self-contained value with no heap
// backing.
func (w Word) IsImmediate() bool { return w&discMask == discImmediate }

func (w Word) immKind() Word { return (w >> immKindShift) & immKindMask }

// CellIndex returns the arena index addressed by a pointer word. The result
// is meaningless if !w.IsPointer().
func (w Word) CellIndex() int { return int(w >> payloadShift) }

func (w Word) payloadUint() uint64 { return uint64(w >> payloadShift) }

func (w Word) payloadInt() int64 {
	// Word is unsigned, so a signed right shift sign-extends from bit 63;
	// since payloadShift is fixed at compile time this recovers the
	// original signed payload regardless of its width.
	return int64(w) >> payloadShift
}

// SmallInt constructs an immediate signed integer word.
func SmallInt(n int64) Word {
	return mkImmediate(immSmallInt, uint64(n))
}

// IsSmallInt reports whether w is an immediate signed integer.
func (w Word) IsSmallInt() bool { return w.IsImmediate() && w.immKind() == immSmallInt }

// SmallIntValue extracts the payload of an immediate signed integer.
func (w Word) SmallIntValue() int64 { return w.payloadInt() }

// SmallUint constructs an immediate unsigned integer word.
func SmallUint(n uint64) Word { return mkImmediate(immSmallUint, n) }

// IsSmallUint reports whether w is an immediate unsigned integer.
func (w Word) IsSmallUint() bool { return w.IsImmediate() && w.immKind() == immSmallUint }

// SmallUintValue extracts the payload of an immediate unsigned integer.
func (w Word) SmallUintValue() uint64 { return w.payloadUint() }

// Char constructs an immediate character word.
func Char(r rune) Word { return mkImmediate(immChar, uint64(r)) }

// IsChar reports whether w is an immediate character.
func (w Word) IsChar() bool { return w.IsImmediate() && w.immKind() == immChar }

// CharValue extracts the rune of an immediate character.
func (w Word) CharValue() rune { return rune(w.payloadUint()) }

// SymWord constructs an immediate symbol-id word.
func SymWord(id SymbolID) Word { return mkImmediate(immSymbol, uint64(id)) }

// IsSymbol reports whether w is an immediate symbol id.
func (w Word) IsSymbol() bool { return w.IsImmediate() && w.immKind() == immSymbol }

// SymbolIDOf extracts the symbol id carried by a symbol word.
func (w Word) SymbolIDOf() SymbolID { return SymbolID(w.payloadUint()) }

func (w Word) String() string {
	switch {
	case w.IsPointer():
		return fmt.Sprintf("#<ptr:%d>", w.CellIndex())
	case w.IsSmallInt():
		return fmt.Sprintf("%d", w.SmallIntValue())
	case w.IsSmallUint():
		return fmt.Sprintf("%du", w.SmallUintValue())
	case w.IsChar():
		return fmt.Sprintf("%c", w.CharValue())
	case w.IsSymbol():
		return fmt.Sprintf("#<sym:%d>", w.SymbolIDOf())
	default:
		return "#<word:?>"
	}
}
