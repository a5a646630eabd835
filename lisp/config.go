// Copyright © 2026 The nanolisp authors

package lisp

import (
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// runtimeConfig holds the knobs Config options mutate before NewRuntime
// constructs the fixed-size regions they describe. It is not exported;
// embedders interact with it exclusively through the With* constructors
// below, a functional-options pattern.
type runtimeConfig struct {
	heapCells             int
	auxWords              int
	gcMarkStackSize       int
	gcLowWater            int
	quantum               int
	mailboxCapacity       int
	eventQueueCapacity    int
	contStackInit         int
	contStackGrowable     bool
	extensionCapacity     int
	strictErrorTruthiness bool
	logger                Logger
	tracer                trace.Tracer
	stderr                io.Writer
	imageBuildID          uuid.UUID
}

func defaultConfig() *runtimeConfig {
	return &runtimeConfig{
		heapCells:          4096,
		auxWords:           4096,
		gcMarkStackSize:    256,
		gcLowWater:         -1, // sentinel: derive from heapCells
		quantum:            1000,
		mailboxCapacity:    64,
		eventQueueCapacity: 64,
		contStackInit:      256,
		contStackGrowable:  true,
		extensionCapacity:  128,
	}
}

// Config is a function that configures a Runtime's construction-time
// knobs: region sizes plus the ambient concerns of a Go embedding
// (logger, tracer, truthiness policy).
type Config func(*runtimeConfig)

// WithHeapCells sets the cons arena's fixed cell count.
func WithHeapCells(n int) Config { return func(c *runtimeConfig) { c.heapCells = n } }

// WithAuxWords sets the auxiliary memory region's word count.
func WithAuxWords(n int) Config { return func(c *runtimeConfig) { c.auxWords = n } }

// WithGCMarkStackSize sets the fixed capacity of the GC's explicit marking
// stack; overflow is fatal, so this should comfortably exceed the
// deepest structure the program under interpretation will build.
func WithGCMarkStackSize(n int) Config { return func(c *runtimeConfig) { c.gcMarkStackSize = n } }

// WithGCLowWater sets the free-cell count below which the evaluator runs a
// collection at its next safepoint without waiting for an allocation to
// fail. Zero disables the early trigger; the default is 1/64 of the arena.
func WithGCLowWater(n int) Config { return func(c *runtimeConfig) { c.gcLowWater = n } }

// WithQuantum sets the number of dispatch-loop reductions a context may run
// before the scheduler preempts it.
func WithQuantum(n int) Config { return func(c *runtimeConfig) { c.quantum = n } }

// WithMailboxCapacity sets the bounded FIFO capacity of every context's
// mailbox.
func WithMailboxCapacity(n int) Config { return func(c *runtimeConfig) { c.mailboxCapacity = n } }

// WithEventQueueCapacity sets the capacity of the scheduler's event queue.
func WithEventQueueCapacity(n int) Config {
	return func(c *runtimeConfig) { c.eventQueueCapacity = n }
}

// WithContStackPolicy sets the initial size and growth policy for every
// context's continuation stack.
func WithContStackPolicy(initialWords int, growable bool) Config {
	return func(c *runtimeConfig) {
		c.contStackInit = initialWords
		c.contStackGrowable = growable
	}
}

// WithExtensionCapacity sets the fixed capacity of the extension registry.
func WithExtensionCapacity(n int) Config { return func(c *runtimeConfig) { c.extensionCapacity = n } }

// WithStrictErrorTruthiness selects the strict variant of `if`'s
// truthiness rule: eval-error propagates through `if`
// rather than being treated as false.
func WithStrictErrorTruthiness() Config {
	return func(c *runtimeConfig) { c.strictErrorTruthiness = true }
}

// WithLogger attaches a Logger; the default is a silent NopLogger.
func WithLogger(l Logger) Config { return func(c *runtimeConfig) { c.logger = l } }

// WithTracer attaches an OpenTelemetry tracer wrapping GC cycles and
// scheduler quanta; the default is the noop tracer.
func WithTracer(t trace.Tracer) Config { return func(c *runtimeConfig) { c.tracer = t } }

// WithStderr redirects the runtime's default diagnostic stream.
func WithStderr(w io.Writer) Config { return func(c *runtimeConfig) { c.stderr = w } }

// WithImageBuildID pins the build_id a later BootImage call must
// match. The zero UUID (the default) accepts any image.
func WithImageBuildID(id uuid.UUID) Config {
	return func(c *runtimeConfig) { c.imageBuildID = id }
}
