// Package irgen lowers a type-checked, lowered, monomorphized program into
// a per-function, block-structured instruction IR over an abstract
// register-allocating backend: arithmetic, load/store by byte offset,
// indirect calls, conditional branches, and GC allocation. The IR is the
// contract with a backend, not a concrete ISA — no instruction selection
// or register allocation happens here.
//
// Node shape (ID, Span, a private tag method, String()) follows the
// teacher's internal/core.CoreNode/CoreExpr idiom; decision-tree match
// compilation follows internal/dtree/decision_tree.go (see dtree.go).
package irgen

import (
	"fmt"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// Node carries the identity and source span every IR instruction needs so
// diagnostics raised during codegen (or a future backend) can still point
// back at the originating Pluto source.
type Node struct {
	NodeID uint64
	Span   ast.Span
}

func (n Node) ID() uint64      { return n.NodeID }
func (n Node) Position() ast.Span { return n.Span }

func newNode(span ast.Span) Node { return Node{NodeID: ast.NextNodeID(), Span: span} }

// ValueKind distinguishes an instruction operand's source.
type ValueKind int

const (
	ValTemp ValueKind = iota
	ValParam
	ValSelf
	ValIntConst
	ValFloatConst
	ValStrConst
	ValBoolConst
	ValNoneConst
)

// Value is an operand to an instruction: either a previously computed
// temporary, a reference to a function parameter, the implicit `self`,
// or a constant. Values are atomic — they never themselves require
// further instructions to produce, mirroring the atomic/complex split
// the teacher's Core IR makes between Var/Lit and everything else.
//
// A Temp names a mutable register, not an SSA value: an instruction's
// Dst may reference a temp id that already holds a value (e.g. a loop
// counter's increment writes back into the same slot the loop head
// reads), matching a plain register-allocating backend's expectations
// rather than an SSA-form one.
type Value struct {
	Kind  ValueKind
	Temp  int
	Param string

	IntConst   int64
	FloatConst float64
	StrConst   string
	BoolConst  bool
}

func (v Value) String() string {
	switch v.Kind {
	case ValTemp:
		return fmt.Sprintf("%%t%d", v.Temp)
	case ValParam:
		return v.Param
	case ValSelf:
		return "self"
	case ValIntConst:
		return fmt.Sprintf("%d", v.IntConst)
	case ValFloatConst:
		return fmt.Sprintf("%g", v.FloatConst)
	case ValStrConst:
		return fmt.Sprintf("%q", v.StrConst)
	case ValBoolConst:
		return fmt.Sprintf("%t", v.BoolConst)
	default:
		return "none"
	}
}

func Temp(n int) Value        { return Value{Kind: ValTemp, Temp: n} }
func ParamRef(name string) Value { return Value{Kind: ValParam, Param: name} }
func SelfRef() Value          { return Value{Kind: ValSelf} }
func IntConst(v int64) Value  { return Value{Kind: ValIntConst, IntConst: v} }
func FloatConst(v float64) Value { return Value{Kind: ValFloatConst, FloatConst: v} }
func StrConst(v string) Value { return Value{Kind: ValStrConst, StrConst: v} }
func BoolConst(v bool) Value  { return Value{Kind: ValBoolConst, BoolConst: v} }
func NoneConst() Value        { return Value{Kind: ValNoneConst} }

// Instr is implemented by every IR instruction.
type Instr interface {
	ast.Node
	instrNode()
	String() string
}

// Assign materializes an atomic value (a constant or another temp) into a
// destination temp, which may already hold a value (a catch's shared
// result temp is assigned on both paths).
type Assign struct {
	Node
	Dst int
	Val Value
}

func (*Assign) instrNode() {}
func (a *Assign) String() string { return fmt.Sprintf("%%t%d = %s", a.Dst, a.Val) }

// BinOp computes Left Op Right into Dst. Op is one of Pluto's surface
// binary operators ("+", "-", "==", "&&", ...); the backend lowers it to
// the concrete machine op for Left/Right's runtime representation.
type BinOp struct {
	Node
	Dst         int
	Op          string
	Left, Right Value
}

func (*BinOp) instrNode() {}
func (b *BinOp) String() string {
	return fmt.Sprintf("%%t%d = %s %s %s", b.Dst, b.Left, b.Op, b.Right)
}

// UnOp computes Op Operand into Dst.
type UnOp struct {
	Node
	Dst     int
	Op      string
	Operand Value
}

func (*UnOp) instrNode() {}
func (u *UnOp) String() string { return fmt.Sprintf("%%t%d = %s%s", u.Dst, u.Op, u.Operand) }

// Alloc calls __pluto_alloc(Size, TypeTag) and binds the zeroed pointer to
// Dst. TypeTag identifies the runtime shape (class, enum, closure, ...)
// for the GC's scanning metadata.
type Alloc struct {
	Node
	Dst     int
	Size    int
	TypeTag uint32
	Tag     string // human-readable type name, for IR dumps/diagnostics only
}

func (*Alloc) instrNode() {}
func (a *Alloc) String() string {
	return fmt.Sprintf("%%t%d = alloc(%d, %s)", a.Dst, a.Size, a.Tag)
}

// LoadField reads the one-word slot at byte Offset from Base into Dst.
type LoadField struct {
	Node
	Dst    int
	Base   Value
	Offset int
}

func (*LoadField) instrNode() {}
func (l *LoadField) String() string {
	return fmt.Sprintf("%%t%d = load %s[+%d]", l.Dst, l.Base, l.Offset)
}

// StoreField writes Val at byte Offset into Base.
type StoreField struct {
	Node
	Base   Value
	Offset int
	Val    Value
}

func (*StoreField) instrNode() {}
func (s *StoreField) String() string {
	return fmt.Sprintf("store %s[+%d] = %s", s.Base, s.Offset, s.Val)
}

// Call invokes Callee (a mangled function/method symbol, including a
// runtime ABI symbol) with Args. Dst is -1 for a void call. Fallible
// marks a call whose `!`/catch handling requires a following ErrorCheck.
type Call struct {
	Node
	Dst      int
	Callee   string
	Args     []Value
	Fallible bool
	Indirect Value // set instead of Callee for a vtable-slot indirect call; Callee == "" then
}

func (*Call) instrNode() {}
func (c *Call) String() string {
	target := c.Callee
	if target == "" {
		target = "*" + c.Indirect.String()
	}
	dst := "_"
	if c.Dst >= 0 {
		dst = fmt.Sprintf("%%t%d", c.Dst)
	}
	return fmt.Sprintf("%s = call %s(%v) fallible=%t", dst, target, c.Args, c.Fallible)
}

// ErrorCheck follows a Fallible Call: if the TLS error slot is set, it
// transfers control to CatchBlock (clearing the slot) or, if CatchBlock
// is -1, returns from the current function with the slot left set (the
// `!` propagation path). This instruction never falls through itself —
// the enclosing Block's Terminator still runs on the non-error path.
type ErrorCheck struct {
	Node
	CatchBlock int // -1 propagates instead of catching
}

func (*ErrorCheck) instrNode() {}
func (e *ErrorCheck) String() string {
	if e.CatchBlock < 0 {
		return "errcheck propagate"
	}
	return fmt.Sprintf("errcheck catch=block%d", e.CatchBlock)
}

// InvariantCall invokes the synthetic __invariants(self) method generated
// for a class with an `invariant` contract clause, immediately after
// construction and after every `mut self` method returns.
type InvariantCall struct {
	Node
	Self Value
}

func (*InvariantCall) instrNode() {}
func (i *InvariantCall) String() string { return fmt.Sprintf("invariants(%s)", i.Self) }

// ContractCheck evaluates Cond; if false, it calls
// __pluto_contract_abort(Msg), which never returns. Used to compile a
// method's `requires` clauses, checked at method entry; `ensures`
// clauses are not lowered.
type ContractCheck struct {
	Node
	Cond Value
	Msg  string
}

func (*ContractCheck) instrNode() {}
func (c *ContractCheck) String() string {
	return fmt.Sprintf("assert %s else abort(%q)", c.Cond, c.Msg)
}

// SnapshotOld copies the current value of an `old(e)` expression's
// argument into a fresh temp. It is emitted where the `old(e)`
// expression itself is lowered, not at method entry; since `ensures`
// clauses are not lowered, no pre-state snapshot is taken for them.
type SnapshotOld struct {
	Node
	Dst int
	Val Value
}

func (*SnapshotOld) instrNode() {}
func (s *SnapshotOld) String() string { return fmt.Sprintf("%%t%d = old(%s)", s.Dst, s.Val) }

// Terminator ends a Block: every Block has exactly one.
type Terminator interface {
	ast.Node
	termNode()
	String() string
}

// Jump unconditionally transfers control to Target.
type Jump struct {
	Node
	Target int
}

func (*Jump) termNode() {}
func (j *Jump) String() string { return fmt.Sprintf("jump block%d", j.Target) }

// Branch transfers control to True if Cond is nonzero, else False.
type Branch struct {
	Node
	Cond        Value
	True, False int
}

func (*Branch) termNode() {}
func (b *Branch) String() string {
	return fmt.Sprintf("branch %s ? block%d : block%d", b.Cond, b.True, b.False)
}

// Switch dispatches on Scrutinee's value (an enum discriminant or literal)
// to the matching entry in Cases, or Default if none match. Compiled from
// a match expression's decision tree (see dtree.go).
type Switch struct {
	Node
	Scrutinee Value
	Cases     map[int]int // discriminant -> target block
	Default   int
}

func (*Switch) termNode() {}
func (s *Switch) String() string {
	return fmt.Sprintf("switch %s cases=%d default=block%d", s.Scrutinee, len(s.Cases), s.Default)
}

// Return exits the current function. Value is nil for a void return.
type Return struct {
	Node
	Value *Value
}

func (*Return) termNode() {}
func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", *r.Value)
}

// Unreachable marks a block that control can never legally reach (e.g.
// the fallthrough off the end of a non-void body, or an exhaustive
// match's missing arm, the latter already rejected by TYP006 before
// codegen runs).
type Unreachable struct{ Node }

func (*Unreachable) termNode() {}
func (*Unreachable) String() string { return "unreachable" }

// Block is a straight-line sequence of Instrs ending in exactly one
// Terminator.
type Block struct {
	ID     int
	Instrs []Instr
	Term   Terminator
}

// Param is one formal parameter slot in a Func's calling convention.
type Param struct {
	Name      string
	ByPointer bool // heap objects pass by pointer; primitives pass by value
}

// Func is the fully lowered IR for one function or method body: the
// monomorphizer's output feeds one Func per concrete instantiation, and
// every non-generic declaration lowers to exactly one Func.
type Func struct {
	Name       string
	HasSelf    bool
	Params     []Param
	Blocks     []*Block
	Entry      int
	NumTemps   int
	ReturnVoid bool
	Fallible   bool // body can propagate an error to its own caller
}

// Module is the complete IR for a compiled program: every function plus
// every vtable codegen needs to construct trait-typed values.
type Module struct {
	Funcs   []*Func
	Vtables []*Vtable
}
