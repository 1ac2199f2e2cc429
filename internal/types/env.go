package types

import "github.com/pluto-lang/plutoc/internal/ast"

// FuncSig is a resolved function/method signature: parameter and return
// types, plus enough of the originating declaration for later passes
// (mutability, generator-ness, DI brackets) to consult without
// re-resolving anything.
type FuncSig struct {
	Decl   *ast.FuncDecl
	Params []Type
	Ret    Type
}

// EnumVariantInfo is one resolved enum variant: its field types, kept in
// declaration order so match-arm binds can be positionally associated.
type EnumVariantInfo struct {
	FieldNames []string
	FieldTypes map[string]Type
}

// EnumInfo is a fully resolved enum declaration.
type EnumInfo struct {
	Decl     *ast.EnumDecl
	Variants map[string]*EnumVariantInfo
	Order    []string // variant names, declaration order, for exhaustiveness messages
}

// ClassInfo is a fully resolved class declaration.
type ClassInfo struct {
	Decl      *ast.ClassDecl
	Fields    map[string]Type
	Methods   map[string]*FuncSig
	Traits    []string
	Uses      []string
	Brackets  []ast.BracketDep
	Lifecycle ast.Lifecycle
}

// TraitInfo is a fully resolved trait declaration.
type TraitInfo struct {
	Decl     *ast.TraitDecl
	Required map[string]*FuncSig
	Defaults map[string]*FuncSig
}

// ErrorInfo is a fully resolved error declaration.
type ErrorInfo struct {
	Decl   *ast.ErrorDecl
	Fields map[string]Type
}

// StageInfo is a fully resolved (already-flattened, by internal/lowering)
// app/stage declaration.
type StageInfo struct {
	Decl *ast.StageDecl
}

// Env is the declaration environment built by Register (Phase A) and
// consulted by every later pass: body checking, effect inference, and DI
// validation all resolve names through it rather than re-walking the
// program's declarations.
type Env struct {
	Classes   map[string]*ClassInfo
	Enums     map[string]*EnumInfo
	Traits    map[string]*TraitInfo
	Errors    map[string]*ErrorInfo
	Stages    map[string]*StageInfo
	Functions map[string]*FuncSig

	// ExprTypes is filled in by Check (Phase B) with every expression's
	// resolved type, keyed by node identity. internal/irgen consults it
	// directly instead of re-running type inference during IR lowering.
	ExprTypes map[ast.Expr]Type
}

// NewEnv returns an empty, ready-to-populate Env.
func NewEnv() *Env {
	return &Env{
		Classes:   make(map[string]*ClassInfo),
		Enums:     make(map[string]*EnumInfo),
		Traits:    make(map[string]*TraitInfo),
		Errors:    make(map[string]*ErrorInfo),
		Stages:    make(map[string]*StageInfo),
		Functions: make(map[string]*FuncSig),
		ExprTypes: make(map[ast.Expr]Type),
	}
}

// KnownTypeName reports whether name refers to any declared
// class/enum/trait/error, i.e. is a legal NamedType reference.
func (env *Env) KnownTypeName(name string) bool {
	if _, ok := env.Classes[name]; ok {
		return true
	}
	if _, ok := env.Enums[name]; ok {
		return true
	}
	if _, ok := env.Traits[name]; ok {
		return true
	}
	if _, ok := env.Errors[name]; ok {
		return true
	}
	return false
}

// ResolvedAsType renders whatever declaration name refers to as a Type.
// KnownTypeName(name) must already be true.
func (env *Env) ResolvedAsType(name string) Type {
	if _, ok := env.Classes[name]; ok {
		return Class{Name: name}
	}
	if _, ok := env.Enums[name]; ok {
		return Enum{Name: name}
	}
	if _, ok := env.Traits[name]; ok {
		return Trait{Name: name}
	}
	if _, ok := env.Errors[name]; ok {
		return PlutoError{Name: name}
	}
	return nil
}

// methodLookup is the result of resolving a method name against a class:
// either the class's own method, or a trait default it inherits.
type methodLookup struct {
	Sig        *FuncSig
	FromTrait  string // "" if found directly on the class
	Ambiguous  bool   // two+ trait defaults, no class override (TYP008)
	Candidates []string
}

// LookupMethod resolves methodName on className: the class's own method
// first, falling back to implemented traits' default bodies. When more
// than one implemented trait supplies a default and the class does not
// override it, the result is marked Ambiguous for the caller to report
// as TYP008.
func (env *Env) LookupMethod(className, methodName string) *methodLookup {
	ci, ok := env.Classes[className]
	if !ok {
		return nil
	}
	if sig, ok := ci.Methods[methodName]; ok {
		return &methodLookup{Sig: sig}
	}
	var fromTraits []string
	var sig *FuncSig
	for _, tn := range ci.Traits {
		ti, ok := env.Traits[tn]
		if !ok {
			continue
		}
		if s, ok := ti.Defaults[methodName]; ok {
			fromTraits = append(fromTraits, tn)
			sig = s
		}
	}
	switch len(fromTraits) {
	case 0:
		return nil
	case 1:
		return &methodLookup{Sig: sig, FromTrait: fromTraits[0]}
	default:
		return &methodLookup{Sig: sig, Ambiguous: true, Candidates: fromTraits}
	}
}

// ImplementsTrait reports whether className implements every required
// method of traitName, either directly or via another trait's default.
func (env *Env) ImplementsTrait(className, traitName string) bool {
	ti, ok := env.Traits[traitName]
	if !ok {
		return false
	}
	for name := range ti.Required {
		if env.LookupMethod(className, name) == nil {
			return false
		}
	}
	return true
}
