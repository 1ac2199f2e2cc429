// Package runtimeabi is the Go-side reference implementation of the fixed
// C-ABI symbol table internal/irgen compiles calls against: allocation,
// strings, arrays, maps, sets, the error channel, spawn/task/channel
// concurrency, and contract aborts. A real backend would emit native code
// that calls into a compiled runtime library; this package exists so the
// same symbol contract can be exercised and tested directly from Go,
// standing in for that native library the way internal/effects stands in
// for the teacher's own builtin surface.
//
// Object identity is modeled with handles (Ref) into a shared heap table
// rather than raw pointers, since a GC'd object graph has no safe Go
// pointer representation without cgo/unsafe — codegen's actual backend is
// out of scope, so this indirection is this package's own, not adapted
// from anywhere in the pack.
package runtimeabi

import "sync"

// Ref is an opaque handle to a heap-allocated runtime object, standing in
// for the abstract ABI's `*u8`/`*Array`/`*Map`/... pointer types.
type Ref uint64

// Runtime is the shared heap every TaskContext allocates into. One
// Runtime serves a whole program; TaskContext (errors.go) holds the
// per-logical-thread state (the error slot) the ABI documents as
// thread-local.
type Runtime struct {
	mu      sync.Mutex
	objects map[Ref]any
	nextRef Ref
}

// NewRuntime returns an empty heap, ready for the program's first Alloc.
func NewRuntime() *Runtime {
	return &Runtime{objects: make(map[Ref]any)}
}

// Alloc mirrors __pluto_alloc: a zeroed allocation of size bytes tagged
// with typeTag for the GC's scanning metadata. The reference runtime has
// no real GC, so it stores an opaque byte slice and returns its handle.
func (rt *Runtime) Alloc(size int, typeTag uint32) Ref {
	return rt.store(make([]byte, size))
}

func (rt *Runtime) store(v any) Ref {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextRef++
	ref := rt.nextRef
	rt.objects[ref] = v
	return ref
}

func (rt *Runtime) load(ref Ref) any {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.objects[ref]
}

// String is the runtime representation backing __pluto_string_new/concat.
type String struct{ Bytes []byte }

// StringNew mirrors __pluto_string_new.
func (rt *Runtime) StringNew(bytes []byte) Ref {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	return rt.store(&String{Bytes: cp})
}

// StringConcat mirrors __pluto_string_concat.
func (rt *Runtime) StringConcat(a, b Ref) Ref {
	as, _ := rt.load(a).(*String)
	bs, _ := rt.load(b).(*String)
	var buf []byte
	if as != nil {
		buf = append(buf, as.Bytes...)
	}
	if bs != nil {
		buf = append(buf, bs.Bytes...)
	}
	return rt.store(&String{Bytes: buf})
}

// Array is the runtime representation backing the __pluto_array_* family.
type Array struct {
	ElemSize int
	Elems    []Ref
}

// ArrayNew mirrors __pluto_array_new.
func (rt *Runtime) ArrayNew(elemSize int, capacity int) Ref {
	return rt.store(&Array{ElemSize: elemSize, Elems: make([]Ref, 0, capacity)})
}

// ArrayPush mirrors __pluto_array_push.
func (rt *Runtime) ArrayPush(arr Ref, elem Ref) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	a, _ := rt.objects[arr].(*Array)
	if a == nil {
		return
	}
	a.Elems = append(a.Elems, elem)
}

// ArrayLen mirrors __pluto_array_len.
func (rt *Runtime) ArrayLen(arr Ref) uint64 {
	a, _ := rt.load(arr).(*Array)
	if a == nil {
		return 0
	}
	return uint64(len(a.Elems))
}

// ArrayGet mirrors __pluto_array_get. Out-of-range access returns the
// zero Ref rather than panicking — bounds checking is the type checker's
// and the generated code's job, not this reference runtime's.
func (rt *Runtime) ArrayGet(arr Ref, idx uint64) Ref {
	a, _ := rt.load(arr).(*Array)
	if a == nil || idx >= uint64(len(a.Elems)) {
		return 0
	}
	return a.Elems[idx]
}

// Map is the runtime representation backing the __pluto_map_* family.
// Keys are compared by Ref handle, not by the contents they point to:
// StringNew and Alloc always return a fresh handle, so two equal source
// values are the same key only when they share one Ref. This runtime
// does not intern, matching the ABI's pointer-typed key contract rather
// than a value-typed one.
type Map struct {
	entries map[Ref]Ref
}

// MapNew mirrors __pluto_map_new.
func (rt *Runtime) MapNew() Ref {
	return rt.store(&Map{entries: map[Ref]Ref{}})
}

// MapGet mirrors __pluto_map_get.
func (rt *Runtime) MapGet(m Ref, key Ref) Ref {
	mv, _ := rt.load(m).(*Map)
	if mv == nil {
		return 0
	}
	return mv.entries[key]
}

// MapSet mirrors __pluto_map_set.
func (rt *Runtime) MapSet(m Ref, key, val Ref) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	mv, _ := rt.objects[m].(*Map)
	if mv == nil {
		return
	}
	mv.entries[key] = val
}

// Set is the runtime representation backing the __pluto_set_* family.
type Set struct{ members map[Ref]struct{} }

// SetNew mirrors __pluto_set_new.
func (rt *Runtime) SetNew() Ref {
	return rt.store(&Set{members: map[Ref]struct{}{}})
}

// SetAdd mirrors __pluto_set_add.
func (rt *Runtime) SetAdd(s Ref, elem Ref) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	sv, _ := rt.objects[s].(*Set)
	if sv == nil {
		return
	}
	sv.members[elem] = struct{}{}
}

// SetContains mirrors __pluto_set_contains.
func (rt *Runtime) SetContains(s Ref, elem Ref) bool {
	sv, _ := rt.load(s).(*Set)
	if sv == nil {
		return false
	}
	_, ok := sv.members[elem]
	return ok
}
