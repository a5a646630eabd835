// Copyright © 2026 The nanolisp authors

package lisp

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Runtime aggregates every piece of process-wide mutable state the
// interpreter touches: the cons heap, auxiliary memory, symbol table,
// constant heap, extension registry, scheduler, and global environment.
// This is deliberately a single explicit value
// threaded through the public API rather than package-level singletons, so
// that multiple isolated runtimes can coexist in one process and tests
// never share hidden state.
type Runtime struct {
	Heap       *Heap
	Aux        *AuxMem
	Symtab     *SymbolTable
	GC         *GC
	ConstHeap  *ConstHeap
	Extensions *ExtensionRegistry
	Scheduler  *Scheduler

	fundamentals map[SymbolID]Fundamental

	GlobalEnv Word

	Stderr io.Writer
	Logger Logger
	Tracer trace.Tracer

	// StrictErrorTruthiness selects the strict variant of `if`: when true,
	// evaluating to the eval-error symbol in test position propagates the
	// error instead of treating it as false.
	// Default false matches the source's literal behavior.
	StrictErrorTruthiness bool

	// Quantum bounds the number of dispatch-loop iterations a context runs
	// before the scheduler preempts it.
	Quantum int

	// GCLowWater is the free-cell count below which the evaluator collects
	// at its next safepoint instead of waiting for an allocation failure.
	GCLowWater int

	gcLowWaterArmed bool

	// ImageBuildID pins the build_id a BootImage call against this runtime
	// must match; the zero UUID accepts any image.
	ImageBuildID uuid.UUID

	// Callbacks mirror the embedding API's host-supplied hooks.
	OnCriticalError func(error)
	OnContextDone   func(ctx *Context, result ContextResult)
	TimestampUS     func() int64
	USleep          func(us int64)

	// DynamicLoader, when set, is consulted for a symbol bound in no
	// environment before the evaluator raises eval-error: it may supply a
	// value for the name (typically by loading and evaluating more code).
	DynamicLoader func(rt *Runtime, name string) (Word, bool)

	ctx context.Context
}

// ContextResult is passed to OnContextDone. It distinguishes normal
// completion from termination with an error condition so the host never
// has to re-derive that from the final register value.
type ContextResult struct {
	Value Word
	Err   error
}

// NewRuntime builds a Runtime per the sizing and policy knobs in opts,
// applying each in order. The host supplies sizes once and the runtime owns
// everything after.
func NewRuntime(opts ...Config) (*Runtime, error) {
	rt := &Runtime{
		Stderr:      os.Stderr,
		Logger:      NopLogger{},
		Tracer:      trace.NewNoopTracerProvider().Tracer("nanolisp"),
		TimestampUS: defaultTimestampUS,
		USleep:      defaultUSleep,
		ctx:         context.Background(),
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	rt.Aux = NewAuxMem(cfg.auxWords)
	rt.Heap = NewHeap(cfg.heapCells, rt.Aux)
	rt.Symtab = NewSymbolTable()
	rt.GC = NewGC(rt.Heap, cfg.gcMarkStackSize)
	rt.Extensions = NewExtensionRegistry(cfg.extensionCapacity, rt.Symtab)
	rt.fundamentals = make(map[SymbolID]Fundamental)
	rt.installFundamentals()
	// User symbols are numbered from ExtensionCeiling, above the
	// fundamental and extension bands.
	if rt.Symtab.nextID < ExtensionCeiling {
		rt.Symtab.nextID = ExtensionCeiling
	}
	rt.GlobalEnv = SymWord(SymNil)
	rt.Quantum = cfg.quantum
	rt.GCLowWater = cfg.gcLowWater
	if rt.GCLowWater < 0 {
		rt.GCLowWater = cfg.heapCells / 64
	}
	rt.gcLowWaterArmed = true
	rt.StrictErrorTruthiness = cfg.strictErrorTruthiness
	rt.ImageBuildID = cfg.imageBuildID
	if cfg.logger != nil {
		rt.Logger = cfg.logger
	}
	if cfg.tracer != nil {
		rt.Tracer = cfg.tracer
	}
	if cfg.stderr != nil {
		rt.Stderr = cfg.stderr
	}
	rt.Scheduler = NewScheduler(rt, cfg.quantum, cfg.mailboxCapacity, cfg.contStackInit, cfg.contStackGrowable, cfg.eventQueueCapacity)
	return rt, nil
}

func defaultTimestampUS() int64 { return time.Now().UnixMicro() }
func defaultUSleep(us int64)    { time.Sleep(time.Duration(us) * time.Microsecond) }

// GCRoots implements RootProvider: the global environment plus every live
// context's registers and mailbox.
func (rt *Runtime) GCRoots() []Word {
	roots := []Word{rt.GlobalEnv}
	if rt.ConstHeap != nil {
		for i := 0; i < rt.ConstHeap.Tip(); i++ {
			roots = append(roots, rt.ConstHeap.At(i))
		}
	}
	if rt.Scheduler != nil {
		roots = append(roots, rt.Scheduler.allRoots()...)
	}
	return roots
}

// CollectGarbage runs one GC cycle over the runtime's full root set.
// Failure (mark stack overflow) is routed through CriticalError.
func (rt *Runtime) CollectGarbage() error {
	_, span := rt.Tracer.Start(rt.ctx, "gc.cycle")
	defer span.End()
	err := rt.GC.Collect(rt.GCRoots())
	if err != nil {
		return rt.CriticalError(err)
	}
	rt.Heap.DefragmentAuxMemory()
	rt.Logger.Debugf("gc: cycle=%d freed_cells=%d heap_free=%d aux_free=%d", rt.GC.Cycles, rt.GC.LastFreedCells, rt.Heap.HeapNumFree(), rt.Aux.NumFree())
	return nil
}
