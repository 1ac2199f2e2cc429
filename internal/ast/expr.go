package ast

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// ExprBase carries the span every expression needs.
type ExprBase struct{ Base }

func (ExprBase) exprNode() {}

// Identifier is a bare name reference.
type Identifier struct {
	ExprBase
	Name string
}

// LiteralKind distinguishes the literal's underlying Go representation.
type LiteralKind int

const (
	IntLit LiteralKind = iota
	FloatLit
	StringLit
	BoolLit
	NoneLit
)

// Literal is an int/float/string/bool/none literal. String literals that
// contain interpolation are represented as InterpString, not Literal.
type Literal struct {
	ExprBase
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// InterpString is a `"…{expr}…"` interpolated string: alternating literal
// fragments and embedded expressions, Fragments always has len(Exprs)+1
// entries.
type InterpString struct {
	ExprBase
	Fragments []string
	Exprs     []Expr
}

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	ExprBase
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is `-x`, `!x`, `~x`.
type UnaryExpr struct {
	ExprBase
	Op   string
	Expr Expr
}

// CallExpr is `callee(args...)`. Propagate is true when `!` follows the
// call; the error-effect inference pass and codegen both key off it.
type CallExpr struct {
	ExprBase
	Callee    Expr
	Args      []Expr
	TypeArgs  []TypeExpr
	Propagate bool // trailing `!`
}

// FieldAccess is `recv.field`.
type FieldAccess struct {
	ExprBase
	Recv  Expr
	Field string
}

// MethodCall is `recv.method(args...)`.
type MethodCall struct {
	ExprBase
	Recv      Expr
	Method    string
	Args      []Expr
	TypeArgs  []TypeExpr
	Propagate bool
}

// IndexExpr is `arr[idx]`.
type IndexExpr struct {
	ExprBase
	Recv  Expr
	Index Expr
}

// NullableUnwrap is the postfix `x?` operator: produces T from T?,
// raising the built-in NoneError on none.
type NullableUnwrap struct {
	ExprBase
	Expr Expr
}

// CastExpr is `expr as Type`.
type CastExpr struct {
	ExprBase
	Expr Expr
	Type TypeExpr
}

// CatchExpr is `expr catch fallback` or `expr catch binder { block }`.
type CatchExpr struct {
	ExprBase
	Expr     Expr
	Binder   string // "" for the bare-fallback form
	Fallback Expr   // set for `expr catch fallback`
	Block    *Block // set for `expr catch binder { block }`
}

// RangeExpr is `a..b` or, with Inclusive set, `a..=b`.
type RangeExpr struct {
	ExprBase
	Start     Expr
	End       Expr
	Inclusive bool
}

// ClosureExpr is `(params) => body`. Body may be a single expression or a
// block; closure lifting (internal/lowering) rewrites this into a
// top-level function plus a closure object at the original site.
type ClosureExpr struct {
	ExprBase
	Params   []Param
	Body     Expr
	BodyStmt *Block // set when the body is a `{ ... }` block instead
}

// StructLiteral is `TypeName { field: expr, ... }`. An empty struct
// literal `Foo {}` is recognized by lookahead past `{` for `}`.
type StructLiteral struct {
	ExprBase
	TypeName string
	Fields   []StructFieldInit
}

// StructFieldInit is one `name: expr` inside a struct literal.
type StructFieldInit struct {
	Name  string
	Value Expr
}

// ArrayLiteral is `[e1, e2, ...]`.
type ArrayLiteral struct {
	ExprBase
	Elems []Expr
}

// MapEntry is one `key: value` inside a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLiteral is `[k1: v1, k2: v2]` in expression position.
type MapLiteral struct {
	ExprBase
	Entries []MapEntry
}

// SetLiteral is `{e1, e2, ...}`.
type SetLiteral struct {
	ExprBase
	Elems []Expr
}

// SpawnExpr is `spawn f(args...)`.
type SpawnExpr struct {
	ExprBase
	Call *CallExpr
}

// YieldExpr is `yield expr` inside a generator body.
type YieldExpr struct {
	ExprBase
	Value Expr
}

// OldExpr is `old(expr)`, valid only inside an `ensures` clause: snapshots
// expr's value at method entry for comparison against the post-state.
type OldExpr struct {
	ExprBase
	Inner Expr
}

// ResultExpr is the bare `result` keyword, valid only inside an `ensures`
// clause on a non-void function: refers to the function's return value.
type ResultExpr struct {
	ExprBase
}

// MatchArm is one `Enum.Variant { binds } block` arm of a match
// expression/statement.
type MatchArm struct {
	EnumName    string // "" for a wildcard arm
	VariantName string // "" for a wildcard arm
	Binds       []string
	Body        *Block
	IsWildcard  bool
}

// MatchExpr is `match subject { arm... }`.
type MatchExpr struct {
	ExprBase
	Subject Expr
	Arms    []MatchArm
}
