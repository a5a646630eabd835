// Copyright © 2026 The nanolisp authors

package main

import (
	"context"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newStdoutTracerProvider builds a real OpenTelemetry tracer provider for
// the --trace flag. A stderr-backed span processor is enough to see
// gc.cycle/sched.quantum spans from this demo host without standing up a
// collector; embedders linking the lisp package directly never pay for this
// (WithTracer defaults to the noop tracer, runtime.go).
func newStdoutTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(stderrSpanExporter{}),
	)
}

// stderrSpanExporter is a minimal sdktrace.SpanExporter writing one line per
// completed span to stderr, avoiding a dependency on the separate
// stdouttrace exporter module this project does not otherwise need.
type stderrSpanExporter struct{}

func (stderrSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fmt.Fprintf(os.Stderr, "trace: %s (%s)\n", s.Name(), s.EndTime().Sub(s.StartTime()))
	}
	return nil
}

func (stderrSpanExporter) Shutdown(ctx context.Context) error { return nil }
