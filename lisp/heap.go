// Copyright © 2026 The nanolisp authors

package lisp

import (
	"errors"
	"math"
)

// ErrHeapExhausted is returned internally when the cell arena has no free
// cell; callers observe it as the out-of-memory symbol.
var ErrHeapExhausted = errors.New("nanolisp: cons heap exhausted")

// cellKind tags what a cell's halves actually mean, carried on the cell
// (not the pointer word) so that every pointer word looks identical to the
// garbage collector. A stolen low address bit could carry the cons/array
// distinction instead; an explicit field is simpler to audit in Go and
// costs nothing extra since cells already carry a tag word.
type cellKind uint8

const (
	kindFree cellKind = iota
	kindCons
	kindBoxedInt32
	kindBoxedUint32
	kindBoxedInt64
	kindBoxedUint64
	kindBoxedFloat32
	kindBoxedFloat64
	kindArrayDescriptor
)

// cell is one slot of the cons arena: two tagged words plus the kind tag
// that disambiguates how to interpret them. The free list threads through
// cdr: a free cell has kind kindFree and its cdr points at the next cell
// on the free chain.
type cell struct {
	kind cellKind
	car  Word
	cdr  Word
}

// arrayHeader carries the payload bookkeeping for every array-typed cell.
type arrayHeader struct {
	sizeBytes   int
	elementHint int
	data        Pointer
	readOnly    bool
	roData      []byte // backing store for read-only (constant-heap) arrays
}

// Heap is the fixed-count cons cell arena plus the supporting auxiliary
// memory region it allocates array payloads from. Cells are created
// only by allocation and destroyed only by the collector.
type Heap struct {
	cells    []cell
	freeHead int // 1-based index into cells, 0 means empty
	numFree  int
	aux      *AuxMem
	arrays   map[int]*arrayHeader // keyed by the cell index of the descriptor
}

// NewHeap allocates a cons arena of nCells cells backed by aux for array
// payloads.
func NewHeap(nCells int, aux *AuxMem) *Heap {
	h := &Heap{
		cells:  make([]cell, nCells+1), // index 0 unused; mkPointer uses 1-based indices
		aux:    aux,
		arrays: make(map[int]*arrayHeader),
	}
	for i := nCells; i >= 1; i-- {
		h.cells[i].cdr = mkPointer(h.freeHead)
		h.freeHead = i
	}
	h.numFree = nCells
	return h
}

// OutOfMemorySymbol is the value fallible constructors return on failure;
// callers that need a Go error use the accompanying bool/err return.
func OutOfMemorySymbol() Word { return SymWord(SymOutOfMemory) }

func (h *Heap) allocCell() (int, error) {
	if h.freeHead == 0 {
		return 0, ErrHeapExhausted
	}
	ix := h.freeHead
	h.freeHead = h.cells[ix].cdr.CellIndex()
	h.cells[ix] = cell{}
	h.numFree--
	return ix, nil
}

// Cons allocates a new cell with the given car/cdr. On exhaustion it
// returns the out-of-memory symbol and a non-nil error so callers can
// run the allocation-failure retry protocol.
func (h *Heap) Cons(a, d Word) (Word, error) {
	ix, err := h.allocCell()
	if err != nil {
		return OutOfMemorySymbol(), err
	}
	h.cells[ix] = cell{kind: kindCons, car: a, cdr: d}
	return mkPointer(ix), nil
}

func (h *Heap) cellAt(v Word) *cell {
	if !v.IsPointer() {
		return nil
	}
	ix := v.CellIndex()
	if ix <= 0 || ix >= len(h.cells) {
		return nil
	}
	return &h.cells[ix]
}

// Car returns the car of a cons-kind value, or the nil symbol if v is not a
// live cons cell.
func (h *Heap) Car(v Word) Word {
	c := h.cellAt(v)
	if c == nil || c.kind != kindCons {
		return SymWord(SymNil)
	}
	return c.car
}

// Cdr returns the cdr of a cons-kind value, or the nil symbol if v is not a
// live cons cell.
func (h *Heap) Cdr(v Word) Word {
	c := h.cellAt(v)
	if c == nil || c.kind != kindCons {
		return SymWord(SymNil)
	}
	return c.cdr
}

// SetCar mutates the car of a live cons cell. It is a no-op on anything
// else; re-tagging a cell through this entry point is forbidden.
func (h *Heap) SetCar(v, a Word) {
	if c := h.cellAt(v); c != nil && c.kind == kindCons {
		c.car = a
	}
}

// SetCdr mutates the cdr of a live cons cell.
func (h *Heap) SetCdr(v, d Word) {
	if c := h.cellAt(v); c != nil && c.kind == kindCons {
		c.cdr = d
	}
}

// ValueKind describes the dynamic type of a tagged value for dispatch and
// for the `type-of` fundamental.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindSymbol
	KindSmallInt
	KindSmallUint
	KindChar
	KindCons
	KindBoxedInt32
	KindBoxedUint32
	KindBoxedInt64
	KindBoxedUint64
	KindBoxedFloat32
	KindBoxedFloat64
	KindArray
	KindClosure
	KindInvalid
)

// TypeOf classifies v. Closures are cons-shaped values headed by the
// `closure` symbol; TypeOf recognizes that shape so
// fundamentals like `type-of` can report it distinctly from a plain list.
func (h *Heap) TypeOf(v Word) ValueKind {
	switch {
	case v.IsSymbol():
		if v.SymbolIDOf() == SymNil {
			return KindNil
		}
		return KindSymbol
	case v.IsSmallInt():
		return KindSmallInt
	case v.IsSmallUint():
		return KindSmallUint
	case v.IsChar():
		return KindChar
	case v.IsPointer():
		c := h.cellAt(v)
		if c == nil {
			return KindInvalid
		}
		switch c.kind {
		case kindCons:
			if c.car.IsSymbol() && c.car.SymbolIDOf() == SymClosure {
				return KindClosure
			}
			return KindCons
		case kindBoxedInt32:
			return KindBoxedInt32
		case kindBoxedUint32:
			return KindBoxedUint32
		case kindBoxedInt64:
			return KindBoxedInt64
		case kindBoxedUint64:
			return KindBoxedUint64
		case kindBoxedFloat32:
			return KindBoxedFloat32
		case kindBoxedFloat64:
			return KindBoxedFloat64
		case kindArrayDescriptor:
			return KindArray
		default:
			return KindInvalid
		}
	default:
		return KindInvalid
	}
}

// boxed numeric constructors: one cell each, car carries the raw bit
// pattern, kind carries the subtype. cdr is left zero; the kind tag
// already carries the subtype more legibly than a second tagged word.

func (h *Heap) boxNumeric(kind cellKind, bits uint64) (Word, error) {
	ix, err := h.allocCell()
	if err != nil {
		return OutOfMemorySymbol(), err
	}
	h.cells[ix] = cell{kind: kind, car: Word(bits)}
	return mkPointer(ix), nil
}

func (h *Heap) BoxInt32(n int32) (Word, error)   { return h.boxNumeric(kindBoxedInt32, uint64(uint32(n))) }
func (h *Heap) BoxUint32(n uint32) (Word, error) { return h.boxNumeric(kindBoxedUint32, uint64(n)) }
func (h *Heap) BoxInt64(n int64) (Word, error)   { return h.boxNumeric(kindBoxedInt64, uint64(n)) }
func (h *Heap) BoxUint64(n uint64) (Word, error) { return h.boxNumeric(kindBoxedUint64, n) }

func (h *Heap) BoxFloat32(f float32) (Word, error) {
	return h.boxNumeric(kindBoxedFloat32, uint64(math.Float32bits(f)))
}
func (h *Heap) BoxFloat64(f float64) (Word, error) {
	return h.boxNumeric(kindBoxedFloat64, math.Float64bits(f))
}

func (h *Heap) boxedBits(v Word) (uint64, cellKind, bool) {
	c := h.cellAt(v)
	if c == nil {
		return 0, 0, false
	}
	switch c.kind {
	case kindBoxedInt32, kindBoxedUint32, kindBoxedInt64, kindBoxedUint64, kindBoxedFloat32, kindBoxedFloat64:
		return uint64(c.car), c.kind, true
	}
	return 0, 0, false
}

// AllocateArray reserves sizeBytes of payload in auxiliary memory plus one
// descriptor cell, cross-linking them so GC can free the payload when the
// descriptor becomes unreachable.
func (h *Heap) AllocateArray(sizeBytes, elementHint int) (Word, error) {
	nWords := (sizeBytes + 7) / 8
	if nWords == 0 {
		nWords = 1
	}
	ptr, err := h.aux.Alloc(nWords)
	if err != nil {
		return OutOfMemorySymbol(), err
	}
	ix, err := h.allocCell()
	if err != nil {
		h.aux.Free(ptr)
		return OutOfMemorySymbol(), err
	}
	h.cells[ix] = cell{kind: kindArrayDescriptor, car: Word(ix)}
	h.arrays[ix] = &arrayHeader{sizeBytes: sizeBytes, elementHint: elementHint, data: ptr}
	return mkPointer(ix), nil
}

// ConstArray wraps an immutable byte slice (typically living in the
// constant heap's backing store) as a read-only array value. No auxiliary
// memory is consumed and GC never frees roData.
func (h *Heap) ConstArray(data []byte, elementHint int) (Word, error) {
	ix, err := h.allocCell()
	if err != nil {
		return OutOfMemorySymbol(), err
	}
	h.cells[ix] = cell{kind: kindArrayDescriptor, car: Word(ix)}
	h.arrays[ix] = &arrayHeader{sizeBytes: len(data), elementHint: elementHint, readOnly: true, roData: data}
	return mkPointer(ix), nil
}

func (h *Heap) arrayHeaderOf(v Word) *arrayHeader {
	c := h.cellAt(v)
	if c == nil || c.kind != kindArrayDescriptor {
		return nil
	}
	return h.arrays[v.CellIndex()]
}

// ArrayBytes returns the payload of an array value as a byte slice. For a
// mutable array the slice is a fresh copy of the payload read out of
// auxiliary memory; for a read-only array it is the array's own backing
// slice, not a copy.
func (h *Heap) ArrayBytes(v Word) ([]byte, bool) {
	hdr := h.arrayHeaderOf(v)
	if hdr == nil {
		return nil, false
	}
	if hdr.readOnly {
		return hdr.roData, true
	}
	buf := make([]byte, hdr.sizeBytes)
	n := h.aux.Len(hdr.data)
	for i := 0; i < n && i*8 < len(buf); i++ {
		w := h.aux.Get(hdr.data, i)
		for b := 0; b < 8 && i*8+b < len(buf); b++ {
			buf[i*8+b] = byte(w >> (8 * b))
		}
	}
	return buf, true
}

// SetArrayBytes overwrites the payload of a mutable array value in place.
func (h *Heap) SetArrayBytes(v Word, data []byte) bool {
	hdr := h.arrayHeaderOf(v)
	if hdr == nil || hdr.readOnly {
		return false
	}
	n := h.aux.Len(hdr.data)
	for i := 0; i < n; i++ {
		var w Word
		for b := 0; b < 8 && i*8+b < len(data); b++ {
			w |= Word(data[i*8+b]) << (8 * b)
		}
		h.aux.Set(hdr.data, i, w)
	}
	if len(data) < hdr.sizeBytes {
		hdr.sizeBytes = len(data)
	}
	return true
}

// FreeArray explicitly releases an array's auxiliary-memory payload and
// marks its descriptor cell free. GC independently frees arrays whose
// descriptor has become unreachable; explicit Free is for arrays a program
// is done with before the next GC cycle.
func (h *Heap) FreeArray(v Word) {
	c := h.cellAt(v)
	if c == nil || c.kind != kindArrayDescriptor {
		return
	}
	ix := v.CellIndex()
	if hdr := h.arrays[ix]; hdr != nil && !hdr.readOnly {
		h.aux.Free(hdr.data)
	}
	delete(h.arrays, ix)
	h.freeCellLocked(ix)
}

func (h *Heap) freeCellLocked(ix int) {
	h.cells[ix] = cell{cdr: mkPointer(h.freeHead)}
	h.freeHead = ix
	h.numFree++
}

// DefragmentAuxMemory compacts auxiliary memory, sliding every live array
// payload to the low end of the region and rewriting each moved payload's
// descriptor cell to point at its new location. It is run after
// every GC sweep so a long-lived program's array churn never strands free
// words in runs too short to satisfy a later allocation.
func (h *Heap) DefragmentAuxMemory() {
	moved := make(map[Pointer]Pointer)
	h.aux.Defragment(func(old, new Pointer) {
		moved[old] = new
	})
	if len(moved) == 0 {
		return
	}
	for _, hdr := range h.arrays {
		if hdr.readOnly {
			continue
		}
		if np, ok := moved[hdr.data]; ok {
			hdr.data = np
		}
	}
}

// HeapNumFree reports free cells remaining in the arena.
func (h *Heap) HeapNumFree() int { return h.numFree }

// NumCells reports the arena's total cell capacity.
func (h *Heap) NumCells() int { return len(h.cells) - 1 }

// UnboxInt32, UnboxUint32, UnboxInt64, UnboxUint64, UnboxFloat32 and
// UnboxFloat64 recover the numeric payload of a boxed value of the matching
// subtype. ok is false if v is not a boxed value of that subtype.
func (h *Heap) UnboxInt32(v Word) (int32, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedInt32 {
		return 0, false
	}
	return int32(uint32(bits)), true
}

func (h *Heap) UnboxUint32(v Word) (uint32, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedUint32 {
		return 0, false
	}
	return uint32(bits), true
}

func (h *Heap) UnboxInt64(v Word) (int64, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedInt64 {
		return 0, false
	}
	return int64(bits), true
}

func (h *Heap) UnboxUint64(v Word) (uint64, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedUint64 {
		return 0, false
	}
	return bits, true
}

func (h *Heap) UnboxFloat32(v Word) (float32, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedFloat32 {
		return 0, false
	}
	return math.Float32frombits(uint32(bits)), true
}

func (h *Heap) UnboxFloat64(v Word) (float64, bool) {
	bits, k, ok := h.boxedBits(v)
	if !ok || k != kindBoxedFloat64 {
		return 0, false
	}
	return math.Float64frombits(bits), true
}

// IsNumeric reports whether v is a small int/uint or a boxed numeric of any
// subtype (used by the arithmetic fundamentals' promotion logic).
func (h *Heap) IsNumeric(v Word) bool {
	switch h.TypeOf(v) {
	case KindSmallInt, KindSmallUint, KindBoxedInt32, KindBoxedUint32,
		KindBoxedInt64, KindBoxedUint64, KindBoxedFloat32, KindBoxedFloat64:
		return true
	default:
		return false
	}
}

// AsFloat64 widens any numeric value to float64, for comparisons and for
// fundamentals that don't need to preserve the promoted subtype.
func (h *Heap) AsFloat64(v Word) (float64, bool) {
	switch h.TypeOf(v) {
	case KindSmallInt:
		return float64(v.SmallIntValue()), true
	case KindSmallUint:
		return float64(v.SmallUintValue()), true
	case KindBoxedInt32:
		n, _ := h.UnboxInt32(v)
		return float64(n), true
	case KindBoxedUint32:
		n, _ := h.UnboxUint32(v)
		return float64(n), true
	case KindBoxedInt64:
		n, _ := h.UnboxInt64(v)
		return float64(n), true
	case KindBoxedUint64:
		n, _ := h.UnboxUint64(v)
		return float64(n), true
	case KindBoxedFloat32:
		n, _ := h.UnboxFloat32(v)
		return float64(n), true
	case KindBoxedFloat64:
		return h.UnboxFloat64(v)
	default:
		return 0, false
	}
}

// numericRank orders the numeric subtypes for promotion: int, uint,
// int32, uint32, float32, int64, uint64, float64. Arithmetic between two
// operands promotes to the operand with the higher rank.
func numericRank(k ValueKind) int {
	switch k {
	case KindSmallInt:
		return 0
	case KindSmallUint:
		return 1
	case KindBoxedInt32:
		return 2
	case KindBoxedUint32:
		return 3
	case KindBoxedFloat32:
		return 4
	case KindBoxedInt64:
		return 5
	case KindBoxedUint64:
		return 6
	case KindBoxedFloat64:
		return 7
	default:
		return -1
	}
}
