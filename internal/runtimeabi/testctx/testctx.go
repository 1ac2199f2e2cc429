// Package testctx provides a pre-configured runtimeabi.Runtime and
// TaskContext for hermetic tests: a fresh heap, a cleared error slot, and
// a Printer writing into an in-memory buffer instead of os.Stdout, so
// tests can assert on printed output without capturing the real stream.
package testctx

import (
	"bytes"

	"github.com/pluto-lang/plutoc/internal/runtimeabi"
)

// Harness bundles everything a runtimeabi-level test typically needs:
// a runtime, one task context, and a buffered printer.
type Harness struct {
	Runtime *runtimeabi.Runtime
	Task    *runtimeabi.TaskContext
	Out     *bytes.Buffer
	Printer *runtimeabi.Printer
}

// New returns a Harness with an empty heap and a cleared error slot,
// ready for a test to allocate into directly.
func New() *Harness {
	rt := runtimeabi.NewRuntime()
	var buf bytes.Buffer
	return &Harness{
		Runtime: rt,
		Task:    runtimeabi.NewTaskContext(rt),
		Out:     &buf,
		Printer: &runtimeabi.Printer{Out: &buf},
	}
}

// String interns a Go string into the harness's heap, a shorthand for
// h.Runtime.StringNew([]byte(s)) used throughout fixture setup.
func (h *Harness) String(s string) runtimeabi.Ref {
	return h.Runtime.StringNew([]byte(s))
}

// Printed returns everything written through h.Printer so far.
func (h *Harness) Printed() string {
	return h.Out.String()
}
