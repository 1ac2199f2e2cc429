package types

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// ResolveCtx carries the context ResolveType needs beyond the flat
// declaration tables: the type parameters in scope (so `T` inside a
// generic function resolves to Generic{"T"} instead of an unknown-name
// error) and, inside a trait body, what `Self` stands for.
type ResolveCtx struct {
	Generics map[string]bool
	Self     Type
}

func noGenerics() *ResolveCtx { return &ResolveCtx{Generics: map[string]bool{}} }

// ResolveType resolves a surface TypeExpr into a checked Type, reporting
// TYP007 for `void?`/`T??` and MOD002 for a name that names no declared
// class/enum/trait/error/generic.
func (env *Env) ResolveType(te ast.TypeExpr, ctx *ResolveCtx) (Type, []error) {
	if ctx == nil {
		ctx = noGenerics()
	}
	switch t := te.(type) {
	case nil:
		return Void, nil
	case *ast.PrimitiveType:
		switch t.Name {
		case "int":
			return Int, nil
		case "float":
			return Float, nil
		case "bool":
			return Bool, nil
		case "string":
			return String, nil
		case "void":
			return Void, nil
		}
		return nil, []error{unknownType(t.Name, t)}
	case *ast.NamedType:
		if ctx.Generics[t.Name] {
			return Generic{Param: t.Name}, nil
		}
		if !env.KnownTypeName(t.Name) {
			return nil, []error{unknownType(t.Name, t)}
		}
		return env.ResolvedAsType(t.Name), nil
	case *ast.SelfType:
		if ctx.Self == nil {
			return nil, []error{unknownType("Self", t)}
		}
		return ctx.Self, nil
	case *ast.ArrayType:
		elem, errs := env.ResolveType(t.Elem, ctx)
		return Array{Elem: elem}, errs
	case *ast.MapType:
		key, kerrs := env.ResolveType(t.Key, ctx)
		val, verrs := env.ResolveType(t.Val, ctx)
		return Map{Key: key, Val: val}, append(kerrs, verrs...)
	case *ast.SetType:
		elem, errs := env.ResolveType(t.Elem, ctx)
		return Set{Elem: elem}, errs
	case *ast.NullableType:
		inner, errs := env.ResolveType(t.Inner, ctx)
		if len(errs) > 0 {
			return nil, errs
		}
		if Equal(inner, Void) {
			return nil, []error{nullableErr("nullable void (`void?`) is not a valid type", t)}
		}
		if _, ok := inner.(Nullable); ok {
			return nil, []error{nullableErr("nested nullable (`T??`) is not a valid type", t)}
		}
		return Nullable{Inner: inner}, nil
	case *ast.FnType:
		var errs []error
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			pt, perrs := env.ResolveType(p, ctx)
			params[i] = pt
			errs = append(errs, perrs...)
		}
		ret, rerrs := env.ResolveType(t.Ret, ctx)
		errs = append(errs, rerrs...)
		return Fn{Params: params, Ret: ret}, errs
	case *ast.StreamType:
		elem, errs := env.ResolveType(t.Elem, ctx)
		return Stream{Elem: elem}, errs
	case *ast.TaskType:
		elem, errs := env.ResolveType(t.Elem, ctx)
		return Task{Elem: elem}, errs
	case *ast.ChannelType:
		elem, errs := env.ResolveType(t.Elem, ctx)
		return Channel{Elem: elem}, errs
	}
	return nil, []error{unknownType("<unrecognized type expression>", te)}
}

func unknownType(name string, n ast.Node) error {
	span := n.Position()
	return &errors.ReportError{Rep: errors.New("type", errors.MOD002,
		"unknown type name \""+name+"\"", &span, map[string]any{"name": name})}
}

func nullableErr(msg string, n ast.Node) error {
	span := n.Position()
	return &errors.ReportError{Rep: errors.New("type", errors.TYP007, msg, &span, nil)}
}
