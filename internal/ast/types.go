package ast

// TypeExpr is the surface-level, unresolved type syntax written by the
// programmer. The type checker resolves these into PlutoType
// (internal/types.Type).
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedBase carries the span for leaf type-expression nodes.
type NamedBase struct {
	Base
}

func (NamedBase) typeExprNode() {}

// PrimitiveType is one of int | float | bool | string | void.
type PrimitiveType struct {
	NamedBase
	Name string // "int", "float", "bool", "string", "void"
}

// NamedType is a reference to a class/enum/trait/generic, optionally
// with type arguments: `Foo<int, string>`.
type NamedType struct {
	NamedBase
	Name     string
	TypeArgs []TypeExpr
}

// SelfType is the `Self` type expression used inside trait bodies.
type SelfType struct {
	NamedBase
}

// ArrayType is `[T]`.
type ArrayType struct {
	NamedBase
	Elem TypeExpr
}

// MapType is `[K: V]`.
type MapType struct {
	NamedBase
	Key TypeExpr
	Val TypeExpr
}

// SetType is `{T}` in type position.
type SetType struct {
	NamedBase
	Elem TypeExpr
}

// NullableType is `T?`. Nullable is not nestable: the parser/checker
// reject `T??`.
type NullableType struct {
	NamedBase
	Inner TypeExpr
}

// FnType is `fn(Params) Ret`.
type FnType struct {
	NamedBase
	Params []TypeExpr
	Ret    TypeExpr // nil means void
}

// StreamType is `Stream<T>` (generator element type).
type StreamType struct {
	NamedBase
	Elem TypeExpr
}

// TaskType is `Task<T>` (spawn handle).
type TaskType struct {
	NamedBase
	Elem TypeExpr
}

// ChannelType is `Channel<T>`.
type ChannelType struct {
	NamedBase
	Elem TypeExpr
}
