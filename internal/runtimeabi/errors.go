package runtimeabi

import "fmt"

// Object is the runtime shape every raised error value takes: a class
// instance reference plus enough of its identity for the error channel
// to report without needing the full class layout.
type Object struct {
	Class  string
	Fields map[string]Ref
}

// TaskContext is the per-logical-thread state the ABI documents as
// thread-local: one error slot, checked after every fallible call and
// cleared by a successful catch. Go has no addressable TLS, so codegen's
// generated calls thread a TaskContext explicitly instead; a native
// backend would instead pin it to a real OS thread's TLS block. One
// TaskContext is created per goroutine a Pluto program spawns (see
// concurrency.go), mirroring "new threads initialize TLS by zeroing the
// error slot".
type TaskContext struct {
	rt  *Runtime
	err *Object
}

// NewTaskContext returns a TaskContext with a cleared error slot, bound
// to rt's heap.
func NewTaskContext(rt *Runtime) *TaskContext {
	return &TaskContext{rt: rt}
}

// Runtime returns the heap this context allocates into.
func (tc *TaskContext) Runtime() *Runtime { return tc.rt }

// RaiseError mirrors __pluto_raise_error: sets the slot, overwriting
// whatever error (if any) was already pending. The generated code that
// calls this is expected to return immediately afterward, the same
// contract __pluto_raise_error documents.
func (tc *TaskContext) RaiseError(obj *Object) {
	tc.err = obj
}

// HasError mirrors __pluto_has_error.
func (tc *TaskContext) HasError() bool {
	return tc.err != nil
}

// GetError mirrors __pluto_get_error.
func (tc *TaskContext) GetError() *Object {
	return tc.err
}

// ClearError mirrors __pluto_clear_error, the step a catch handler takes
// after reading the slot.
func (tc *TaskContext) ClearError() {
	tc.err = nil
}

func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%v", o.Class, o.Fields)
}
