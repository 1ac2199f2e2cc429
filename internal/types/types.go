// Package types implements the two-phase type checker: declaration
// registration, body checking, whole-program error-effect inference, and
// DI-graph validation.
package types

import "strings"

// Type is a resolved, second-stage type: the output of resolving surface
// ast.TypeExpr syntax against the declaration tables built during
// registration. Unlike ast.TypeExpr, every Type is comparable with ==
// after interning through the constructors below, except the composite
// variants, which must be compared with Equal.
type Type interface {
	typeNode()
	String() string
}

type primitive struct{ name string }

func (primitive) typeNode()        {}
func (p primitive) String() string { return p.name }

var (
	Int    Type = primitive{"int"}
	Float  Type = primitive{"float"}
	Bool   Type = primitive{"bool"}
	String Type = primitive{"string"}
	Void   Type = primitive{"void"}
)

// Class is a nominal reference to a declared class, by name.
type Class struct{ Name string }

func (Class) typeNode()        {}
func (c Class) String() string { return c.Name }

// Enum is a nominal reference to a declared enum, by name.
type Enum struct{ Name string }

func (Enum) typeNode()        {}
func (e Enum) String() string { return e.Name }

// Trait is a structural reference to a declared trait, by name — any
// class implementing the trait's methods satisfies it.
type Trait struct{ Name string }

func (Trait) typeNode()        {}
func (t Trait) String() string { return t.Name }

// PlutoError is a nominal reference to a declared error type, by name.
type PlutoError struct{ Name string }

func (PlutoError) typeNode()        {}
func (e PlutoError) String() string { return e.Name }

// Array is `[T]`.
type Array struct{ Elem Type }

func (Array) typeNode()        {}
func (a Array) String() string { return "[" + a.Elem.String() + "]" }

// Map is `[K: V]`.
type Map struct{ Key, Val Type }

func (Map) typeNode()        {}
func (m Map) String() string { return "[" + m.Key.String() + ": " + m.Val.String() + "]" }

// Set is `{T}`.
type Set struct{ Elem Type }

func (Set) typeNode()        {}
func (s Set) String() string { return "{" + s.Elem.String() + "}" }

// Nullable is `T?`. Never nests: Inner is never itself Nullable, and is
// never Void — both are rejected by resolution (TYP007).
type Nullable struct{ Inner Type }

func (Nullable) typeNode()        {}
func (n Nullable) String() string { return n.Inner.String() + "?" }

// Fn is `fn(Params) Ret`. Ret is Void for a function with no return type.
type Fn struct {
	Params []Type
	Ret    Type
}

func (Fn) typeNode() {}
func (f Fn) String() string {
	var b strings.Builder
	b.WriteString("fn(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") ")
	b.WriteString(f.Ret.String())
	return b.String()
}

// Stream is a generator's element type, `Stream<T>`.
type Stream struct{ Elem Type }

func (Stream) typeNode()        {}
func (s Stream) String() string { return "Stream<" + s.Elem.String() + ">" }

// Task is a spawn handle's result type, `Task<T>`.
type Task struct{ Elem Type }

func (Task) typeNode()        {}
func (t Task) String() string { return "Task<" + t.Elem.String() + ">" }

// Channel is `Channel<T>`.
type Channel struct{ Elem Type }

func (Channel) typeNode()        {}
func (c Channel) String() string { return "Channel<" + c.Elem.String() + ">" }

// Generic is an unresolved type parameter, only valid inside the body of
// a generic function/class before monomorphization substitutes it.
type Generic struct{ Param string }

func (Generic) typeNode()        {}
func (g Generic) String() string { return g.Param }

// Equal reports whether two resolved types are structurally identical.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case primitive:
		bt, ok := b.(primitive)
		return ok && at.name == bt.name
	case Class:
		bt, ok := b.(Class)
		return ok && at.Name == bt.Name
	case Enum:
		bt, ok := b.(Enum)
		return ok && at.Name == bt.Name
	case Trait:
		bt, ok := b.(Trait)
		return ok && at.Name == bt.Name
	case PlutoError:
		bt, ok := b.(PlutoError)
		return ok && at.Name == bt.Name
	case Array:
		bt, ok := b.(Array)
		return ok && Equal(at.Elem, bt.Elem)
	case Map:
		bt, ok := b.(Map)
		return ok && Equal(at.Key, bt.Key) && Equal(at.Val, bt.Val)
	case Set:
		bt, ok := b.(Set)
		return ok && Equal(at.Elem, bt.Elem)
	case Nullable:
		bt, ok := b.(Nullable)
		return ok && Equal(at.Inner, bt.Inner)
	case Fn:
		bt, ok := b.(Fn)
		if !ok || len(at.Params) != len(bt.Params) || !Equal(at.Ret, bt.Ret) {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return true
	case Stream:
		bt, ok := b.(Stream)
		return ok && Equal(at.Elem, bt.Elem)
	case Task:
		bt, ok := b.(Task)
		return ok && Equal(at.Elem, bt.Elem)
	case Channel:
		bt, ok := b.(Channel)
		return ok && Equal(at.Elem, bt.Elem)
	case Generic:
		bt, ok := b.(Generic)
		return ok && at.Param == bt.Param
	}
	return false
}

// AssignableTo reports whether a value of type from may be stored into a
// location of type to: identical types, or the implicit T -> T? widening
// at an assignment site where the target is nullable.
func AssignableTo(from, to Type) bool {
	if Equal(from, to) {
		return true
	}
	if n, ok := to.(Nullable); ok {
		return Equal(from, n.Inner) || AssignableTo(from, n.Inner)
	}
	return false
}

// IsNumeric reports whether t supports the arithmetic operators.
func IsNumeric(t Type) bool {
	return Equal(t, Int) || Equal(t, Float)
}
