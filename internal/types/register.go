package types

import (
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// Register runs Phase A over prog: every class/enum/trait/error/stage/
// function signature is resolved into the Env's declaration tables, with
// no method or function body examined yet. Phase B (Check) depends on
// every name in Env already being resolvable, since a function may call
// another declared later in the same or a different module.
func Register(prog *ast.Program) (*Env, []error) {
	env := NewEnv()
	var errs []error

	seen := map[string]ast.Span{}
	declare := func(name string, n ast.Node) bool {
		if name == "" {
			return true
		}
		if prev, dup := seen[name]; dup {
			span := n.Position()
			errs = append(errs, &errors.ReportError{Rep: errors.New("type", errors.MOD001,
				"duplicate declaration of \""+name+"\"", &span,
				map[string]any{"name": name, "previous": prev.String()})})
			return false
		}
		seen[name] = n.Position()
		return true
	}

	// Pass 1: register every type-introducing declaration by name, with
	// empty bodies, so pass 2 can resolve forward references.
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			switch decl := d.(type) {
			case *ast.ClassDecl:
				if declare(decl.Name, decl) {
					env.Classes[decl.Name] = &ClassInfo{Decl: decl, Fields: map[string]Type{}, Methods: map[string]*FuncSig{}}
				}
			case *ast.EnumDecl:
				if declare(decl.Name, decl) {
					env.Enums[decl.Name] = &EnumInfo{Decl: decl, Variants: map[string]*EnumVariantInfo{}}
				}
			case *ast.TraitDecl:
				if declare(decl.Name, decl) {
					env.Traits[decl.Name] = &TraitInfo{Decl: decl, Required: map[string]*FuncSig{}, Defaults: map[string]*FuncSig{}}
				}
			case *ast.ErrorDecl:
				if declare(decl.Name, decl) {
					env.Errors[decl.Name] = &ErrorInfo{Decl: decl, Fields: map[string]Type{}}
				}
			case *ast.StageDecl:
				if declare(decl.Name, decl) {
					env.Stages[decl.Name] = &StageInfo{Decl: decl}
				}
			}
		}
	}

	// Pass 2: resolve field/method/signature types now that every name in
	// the program is known.
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			switch decl := d.(type) {
			case *ast.ClassDecl:
				errs = append(errs, registerClass(env, decl)...)
			case *ast.EnumDecl:
				errs = append(errs, registerEnum(env, decl)...)
			case *ast.TraitDecl:
				errs = append(errs, registerTrait(env, decl)...)
			case *ast.ErrorDecl:
				errs = append(errs, registerError(env, decl)...)
			case *ast.FuncDecl:
				if declare(decl.Name, decl) {
					sig, serrs := resolveFuncSig(env, decl, nil)
					errs = append(errs, serrs...)
					env.Functions[decl.Name] = sig
				}
			}
		}
	}

	return env, errs
}

func genericsOf(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func resolveFuncSig(env *Env, f *ast.FuncDecl, self Type) (*FuncSig, []error) {
	ctx := &ResolveCtx{Generics: genericsOf(f.TypeParams), Self: self}
	var errs []error
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		pt, perrs := env.ResolveType(p.Type, ctx)
		params[i] = pt
		errs = append(errs, perrs...)
	}
	ret, rerrs := env.ResolveType(f.Return, ctx)
	errs = append(errs, rerrs...)
	return &FuncSig{Decl: f, Params: params, Ret: ret}, errs
}

func registerClass(env *Env, decl *ast.ClassDecl) []error {
	ci := env.Classes[decl.Name]
	ci.Traits = decl.Traits
	ci.Uses = decl.Uses
	ci.Brackets = decl.Brackets
	ci.Lifecycle = decl.Lifecycle
	self := Class{Name: decl.Name}
	ctx := &ResolveCtx{Generics: genericsOf(decl.TypeParams), Self: self}
	var errs []error
	for _, f := range decl.Fields {
		ft, ferrs := env.ResolveType(f.Type, ctx)
		errs = append(errs, ferrs...)
		ci.Fields[f.Name] = ft
	}
	for _, bd := range decl.Brackets {
		if !env.KnownTypeName(bd.Type) {
			span := decl.Position()
			errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI002,
				"no provider for bracket dependency type \""+bd.Type+"\"", &span,
				map[string]any{"class": decl.Name, "dep": bd.Name, "type": bd.Type})})
			continue
		}
		ci.Fields[bd.Name] = env.ResolvedAsType(bd.Type)
	}
	for _, m := range decl.Methods {
		sig, serrs := resolveFuncSig(env, m, self)
		errs = append(errs, serrs...)
		ci.Methods[m.Name] = sig
	}
	for _, tn := range decl.Traits {
		if !env.KnownTypeName(tn) {
			span := decl.Position()
			errs = append(errs, &errors.ReportError{Rep: errors.New("type", errors.MOD002,
				"unknown trait \""+tn+"\"", &span, map[string]any{"trait": tn})})
		}
	}
	return errs
}

func registerEnum(env *Env, decl *ast.EnumDecl) []error {
	ei := env.Enums[decl.Name]
	ctx := &ResolveCtx{Generics: genericsOf(decl.TypeParams)}
	var errs []error
	for _, v := range decl.Variants {
		vi := &EnumVariantInfo{FieldTypes: map[string]Type{}}
		for _, f := range v.Fields {
			ft, ferrs := env.ResolveType(f.Type, ctx)
			errs = append(errs, ferrs...)
			vi.FieldNames = append(vi.FieldNames, f.Name)
			vi.FieldTypes[f.Name] = ft
		}
		ei.Variants[v.Name] = vi
		ei.Order = append(ei.Order, v.Name)
	}
	return errs
}

func registerTrait(env *Env, decl *ast.TraitDecl) []error {
	ti := env.Traits[decl.Name]
	self := Trait{Name: decl.Name}
	var errs []error
	for _, m := range decl.Required {
		sig, serrs := resolveFuncSig(env, m, self)
		errs = append(errs, serrs...)
		ti.Required[m.Name] = sig
	}
	for _, m := range decl.Defaults {
		sig, serrs := resolveFuncSig(env, m, self)
		errs = append(errs, serrs...)
		ti.Defaults[m.Name] = sig
	}
	return errs
}

func registerError(env *Env, decl *ast.ErrorDecl) []error {
	ei := env.Errors[decl.Name]
	ctx := noGenerics()
	var errs []error
	for _, f := range decl.Fields {
		ft, ferrs := env.ResolveType(f.Type, ctx)
		errs = append(errs, ferrs...)
		ei.Fields[f.Name] = ft
	}
	return errs
}

// sortedClassNames returns env's class names in deterministic order, for
// passes that must iterate a map but produce stable diagnostics/plans.
func sortedClassNames(env *Env) []string {
	names := make([]string, 0, len(env.Classes))
	for n := range env.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
