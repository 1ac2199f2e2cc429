// Package ast defines the typed abstract syntax tree produced by the
// parser: declarations, statements, expressions, and type expressions.
// Every node carries a Span so later passes and diagnostics can always
// point back at source text.
package ast

import "fmt"

// FileId identifies a source file within a compilation session.
type FileId uint32

// Pos is a single byte offset into a source file, decorated with the
// line/column the lexer computed while scanning it.
type Pos struct {
	Line   int
	Column int
	Offset int
	File   FileId
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d:%d", p.File, p.Line, p.Column) }

// Span is a byte range [Start, End) in one file.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string { return fmt.Sprintf("%s-%d", s.Start, s.End.Offset) }

// Node is implemented by every AST node.
type Node interface {
	Position() Span
}

// nodeIDCounter is a process-wide monotonically increasing counter handed out to
// every node at construction time, so later passes (monomorphizer, codegen)
// can key side tables by node identity instead of by pointer.
var nodeIDCounter uint64

// NextNodeID returns a fresh, session-unique node identifier.
func NextNodeID() uint64 {
	nodeIDCounter++
	return nodeIDCounter
}

// Base embeds the span and stable ID every concrete node needs.
type Base struct {
	ID   uint64
	Span Span
}

func (b Base) Position() Span { return b.Span }

// NewBase constructs a Base with a fresh node ID.
func NewBase(span Span) Base { return Base{ID: NextNodeID(), Span: span} }

// ---------------------------------------------------------------------
// Program / Module
// ---------------------------------------------------------------------

// Program is the result of module resolution: every module transitively
// reachable from the entry file, flattened into one list.
type Program struct {
	Modules []*Module
}

// ImportOrigin classifies where a module's sources were found.
type ImportOrigin int

const (
	OriginLocal ImportOrigin = iota
	OriginPackage
	OriginStdlib
)

// Module is one resolved import path's worth of declarations. Directory
// modules are the concatenation of every .pluto file in that directory,
// in deterministic (lexicographic) order.
type Module struct {
	Path    string
	Origin  ImportOrigin
	Files   []string
	Imports []*ImportDecl
	Decls   []Decl
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

// Decl is implemented by every top-level declaration.
type Decl interface {
	Node
	declNode()
	DeclName() string
	IsPub() bool
}

// Param is one function/method parameter.
type Param struct {
	Name string
	Type TypeExpr
	Mut  bool
}

// Contract holds the requires/ensures/invariant clauses attached to a
// function, method, or class.
type Contract struct {
	Requires  []Expr
	Ensures   []Expr
	Invariant []Expr
}

// FuncDecl is a `fn` declaration, at top level or as a class/trait method.
type FuncDecl struct {
	Base
	Name        string
	Pub         bool
	TypeParams  []string
	Params      []Param
	Return      TypeExpr // nil means void
	Body        *Block
	Contract    Contract
	IsGenerator bool // body uses `yield`
	IsOverride  bool // stage inheritance: `override fn`
	IsRequires  bool // stage inheritance: `requires fn` (signature only, body nil)
	IsMut       bool // `mut self` receiver, when used as a method
	HasSelf     bool // method vs free function
}

func (f *FuncDecl) declNode()        {}
func (f *FuncDecl) DeclName() string { return f.Name }
func (f *FuncDecl) IsPub() bool      { return f.Pub }

// Field is a regular (non-DI) class/error field.
type Field struct {
	Name string
	Type TypeExpr
}

// BracketDep is a `[name: Type]` dependency-injection field.
type BracketDep struct {
	Name string
	Type string // class/trait name, resolved later
}

// Lifecycle is the DI lifecycle lattice: Transient < Scoped < Singleton.
type Lifecycle int

const (
	LifecycleUnspecified Lifecycle = iota
	LifecycleTransient
	LifecycleScoped
	LifecycleSingleton
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleTransient:
		return "transient"
	case LifecycleScoped:
		return "scoped"
	case LifecycleSingleton:
		return "singleton"
	default:
		return "unspecified"
	}
}

// ClassDecl is a `class` declaration.
type ClassDecl struct {
	Base
	Name       string
	Pub        bool
	TypeParams []string
	Traits     []string // implemented trait names
	Uses       []string // ambient type names ("uses A, B")
	Brackets   []BracketDep
	Fields     []Field
	Methods    []*FuncDecl
	Contract   Contract
	Lifecycle  Lifecycle
}

func (c *ClassDecl) declNode()        {}
func (c *ClassDecl) DeclName() string { return c.Name }
func (c *ClassDecl) IsPub() bool      { return c.Pub }

// TraitDecl is a `trait` declaration.
type TraitDecl struct {
	Base
	Name     string
	Pub      bool
	Required []*FuncDecl // signature only, IsRequires == true
	Defaults []*FuncDecl // body-bearing
}

func (t *TraitDecl) declNode()        {}
func (t *TraitDecl) DeclName() string { return t.Name }
func (t *TraitDecl) IsPub() bool      { return t.Pub }

// EnumVariant is one arm of an enum: either unit or carries named fields.
type EnumVariant struct {
	Name   string
	Fields []Field // empty => unit variant
}

// EnumDecl is an `enum` declaration. Discriminants are assigned in
// declaration order starting at 0.
type EnumDecl struct {
	Base
	Name       string
	Pub        bool
	TypeParams []string
	Variants   []EnumVariant
}

func (e *EnumDecl) declNode()        {}
func (e *EnumDecl) DeclName() string { return e.Name }
func (e *EnumDecl) IsPub() bool      { return e.Pub }

// ErrorDecl is an `error` declaration: semantically a class whose
// instances live on the heap and whose address is stored in the TLS
// error slot when raised.
type ErrorDecl struct {
	Base
	Name   string
	Pub    bool
	Fields []Field
}

func (e *ErrorDecl) declNode()        {}
func (e *ErrorDecl) DeclName() string { return e.Name }
func (e *ErrorDecl) IsPub() bool      { return e.Pub }

// AmbientReg is an `ambient T` registration on an app/stage.
type AmbientReg struct {
	TypeName string
}

// LifecycleOverride is an app/stage-level override, e.g. `scoped ClassName`.
type LifecycleOverride struct {
	ClassName string
	Lifecycle Lifecycle
}

// StageDecl is an `app` or `stage` declaration. `app` is simply a stage
// with no parent and no `requires fn`.
type StageDecl struct {
	Base
	Name       string
	Pub        bool
	IsApp      bool
	Parent     string // empty if none
	Brackets   []BracketDep
	Ambient    []AmbientReg
	Overrides  []LifecycleOverride
	Methods    []*FuncDecl
	Contract   Contract
}

func (s *StageDecl) declNode()        {}
func (s *StageDecl) DeclName() string { return s.Name }
func (s *StageDecl) IsPub() bool      { return s.Pub }

// ImportDecl is a dotted module path import.
type ImportDecl struct {
	Base
	Path string // dotted, e.g. "std.io"
}

func (i *ImportDecl) declNode()        {}
func (i *ImportDecl) DeclName() string { return i.Path }
func (i *ImportDecl) IsPub() bool      { return false }

// ExternDecl binds a foreign function or foreign module.
type ExternDecl struct {
	Base
	Name    string
	Pub     bool
	Params  []Param
	Return  TypeExpr
	Symbol  string // runtime ABI symbol this binds to
}

func (e *ExternDecl) declNode()        {}
func (e *ExternDecl) DeclName() string { return e.Name }
func (e *ExternDecl) IsPub() bool      { return e.Pub }

// TestDecl is a named test block, compiled as a zero-argument function.
type TestDecl struct {
	Base
	Name string
	Body *Block
}

func (t *TestDecl) declNode()        {}
func (t *TestDecl) DeclName() string { return t.Name }
func (t *TestDecl) IsPub() bool      { return false }
