// Copyright © 2026 The nanolisp authors

package lisp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"
)

// imageMagic/imageVersion identify the on-disk image format: a full snapshot of the cons arena, auxiliary memory, and constant
// heap, plus the global environment root and a caller-chosen startup value
// to resume execution from. BuildID stamps each snapshot with an identity a host can log
// or compare, the way a storage shard stamps itself with a uuid (grounded
// on a sibling example's storageShard.uuid).
var imageMagic = [8]byte{'n', 'a', 'n', 'o', 'l', 'i', 's', 'p'}

const imageVersion uint32 = 1

// ErrImageMagic/ErrImageVersion are returned by BootImage for input that is
// not a recognizable nanolisp image, or one written by an incompatible
// version of this format.
var (
	ErrImageMagic   = errors.New("nanolisp: not a nanolisp image")
	ErrImageVersion = errors.New("nanolisp: unsupported image version")
	ErrImageBuildID = errors.New("nanolisp: image build_id does not match runtime's pinned build_id")
)

func writeU64(w io.Writer, v uint64) error { return binary.Write(w, binary.LittleEndian, v) }

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeU64(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveImage writes a full snapshot of rt to w: every cons cell (live and
// free, so the free-list threading survives intact), every auxiliary-memory
// word and its status, every interned symbol name above the reserved range,
// every committed constant-heap word, the global environment root, and
// startupValue -- the value a host boots the
// resulting image into, typically the entry-point closure the embedder
// wants running on the first scheduled context.
func SaveImage(rt *Runtime, w io.Writer, startupValue Word) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(imageMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, imageVersion); err != nil {
		return err
	}
	buildID := rt.ImageBuildID
	if buildID == uuid.Nil {
		buildID = uuid.New()
	}
	if _, err := bw.Write(buildID[:]); err != nil {
		return err
	}

	h := rt.Heap
	if err := writeU64(bw, uint64(len(h.cells))); err != nil {
		return err
	}
	for _, c := range h.cells {
		if err := writeU64(bw, uint64(c.kind)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(c.car)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(c.cdr)); err != nil {
			return err
		}
	}
	if err := writeU64(bw, uint64(h.freeHead)); err != nil {
		return err
	}

	if err := writeU64(bw, uint64(len(h.arrays))); err != nil {
		return err
	}
	for ix, hdr := range h.arrays {
		if err := writeU64(bw, uint64(ix)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(hdr.sizeBytes)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(hdr.elementHint)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(hdr.data)); err != nil {
			return err
		}
		ro := byte(0)
		if hdr.readOnly {
			ro = 1
		}
		if err := bw.WriteByte(ro); err != nil {
			return err
		}
		if hdr.readOnly {
			if err := writeBytes(bw, hdr.roData); err != nil {
				return err
			}
		}
	}

	aux := rt.Aux
	if err := writeU64(bw, uint64(len(aux.words))); err != nil {
		return err
	}
	for i, word := range aux.words {
		if err := writeU64(bw, uint64(word)); err != nil {
			return err
		}
		if err := bw.WriteByte(byte(aux.status[i])); err != nil {
			return err
		}
	}

	type frozenSym struct {
		id   SymbolID
		name string
	}
	var frozen []frozenSym
	rt.Symtab.Iterate(func(id SymbolID, name string) {
		if id >= ReservedSymbolCeiling {
			frozen = append(frozen, frozenSym{id, name})
		}
	})
	if err := writeU64(bw, uint64(len(frozen))); err != nil {
		return err
	}
	for _, fs := range frozen {
		if err := writeU64(bw, uint64(fs.id)); err != nil {
			return err
		}
		if err := writeBytes(bw, []byte(fs.name)); err != nil {
			return err
		}
	}

	tip := 0
	if rt.ConstHeap != nil {
		tip = rt.ConstHeap.Tip()
	}
	if err := writeU64(bw, uint64(tip)); err != nil {
		return err
	}
	for i := 0; i < tip; i++ {
		if err := writeU64(bw, uint64(rt.ConstHeap.At(i))); err != nil {
			return err
		}
	}

	if err := writeU64(bw, uint64(rt.GlobalEnv)); err != nil {
		return err
	}
	if err := writeU64(bw, uint64(startupValue)); err != nil {
		return err
	}
	return bw.Flush()
}

// BootImage rebuilds a Runtime from a snapshot written by SaveImage.
// opts configure everything SaveImage does not capture --
// logger, tracer, scheduler quantum, extension capacity -- exactly as
// NewRuntime does; the heap and auxiliary-memory sizes are instead taken
// from the image itself, overriding any WithHeapCells/WithAuxWords option.
// It returns the restored runtime and the startupValue SaveImage recorded.
func BootImage(r io.Reader, opts ...Config) (*Runtime, Word, error) {
	br := bufio.NewReader(r)

	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, 0, err
	}
	if magic != imageMagic {
		return nil, 0, ErrImageMagic
	}
	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, 0, err
	}
	if version != imageVersion {
		return nil, 0, ErrImageVersion
	}
	var buildID uuid.UUID
	if _, err := io.ReadFull(br, buildID[:]); err != nil {
		return nil, 0, err
	}

	nCells, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	cells := make([]cell, nCells)
	for i := range cells {
		kind, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		car, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		cdr, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		cells[i] = cell{kind: cellKind(kind), car: Word(car), cdr: Word(cdr)}
	}
	freeHead, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}

	nArrays, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	arrays := make(map[int]*arrayHeader, nArrays)
	for i := uint64(0); i < nArrays; i++ {
		ix, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		sizeBytes, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		elementHint, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		data, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		roByte, err := br.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		hdr := &arrayHeader{
			sizeBytes:   int(sizeBytes),
			elementHint: int(elementHint),
			data:        Pointer(data),
			readOnly:    roByte != 0,
		}
		if hdr.readOnly {
			hdr.roData, err = readBytes(br)
			if err != nil {
				return nil, 0, err
			}
		}
		arrays[int(ix)] = hdr
	}

	nAux, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	words := make([]Word, nAux)
	status := make([]auxStatus, nAux)
	for i := range words {
		w, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		words[i] = Word(w)
		b, err := br.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		status[i] = auxStatus(b)
	}

	nSyms, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	type frozenSym struct {
		id   SymbolID
		name string
	}
	frozen := make([]frozenSym, nSyms)
	for i := range frozen {
		id, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		name, err := readBytes(br)
		if err != nil {
			return nil, 0, err
		}
		frozen[i] = frozenSym{SymbolID(id), string(name)}
	}

	tip, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	constWords := make([]Word, tip)
	for i := range constWords {
		w, err := readU64(br)
		if err != nil {
			return nil, 0, err
		}
		constWords[i] = Word(w)
	}

	globalEnv, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}
	startupValue, err := readU64(br)
	if err != nil {
		return nil, 0, err
	}

	rt, err := NewRuntime(opts...)
	if err != nil {
		return nil, 0, err
	}
	if rt.ImageBuildID != uuid.Nil && rt.ImageBuildID != buildID {
		return nil, 0, ErrImageBuildID
	}

	for _, fs := range frozen {
		if rt.Symtab.LookupName(fs.id) == fs.name {
			continue // already interned at the same id (fundamentals)
		}
		rt.Symtab.InternConst(fs.name, fs.id)
	}

	numFreeCells := 0
	for i, c := range cells {
		if i > 0 && c.kind == kindFree {
			numFreeCells++
		}
	}
	rt.Heap.cells = cells
	rt.Heap.freeHead = int(freeHead)
	rt.Heap.numFree = numFreeCells
	rt.Heap.arrays = arrays

	numFreeWords := 0
	for _, s := range status {
		if s == auxFree {
			numFreeWords++
		}
	}
	rt.Aux.words = words
	rt.Aux.status = status
	rt.Aux.free = numFreeWords
	rt.Heap.aux = rt.Aux

	if len(constWords) > 0 {
		rt.ConstHeap = NewConstHeap(len(constWords), nil)
		for i, w := range constWords {
			if werr := rt.ConstHeap.Write(i, w); werr != nil {
				return nil, 0, werr
			}
		}
	}

	rt.GlobalEnv = Word(globalEnv)
	rt.Logger.Infof("image: booted build_id=%s cells=%d aux_words=%d const_tip=%d", buildID, len(cells), len(words), tip)
	return rt, Word(startupValue), nil
}
