// Package iface builds a deterministic, hashable summary of a module's
// public surface — its exported function signatures and class/enum
// shapes — whose digest is unchanged as long as that surface is.
// internal/orchestrate does not consult it: every Run recompiles every
// module.
package iface

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/types"
)

// FuncExport is one exported function or method's resolved signature.
type FuncExport struct {
	Name   string
	Params []string // resolved parameter types, rendered via Type.String()
	Ret    string   // "void" for no return value
}

// ClassExport is one exported class's field and method shape.
type ClassExport struct {
	Name    string
	Traits  []string
	Fields  map[string]string // field name -> resolved type string
	Methods map[string]FuncExport
}

// EnumExport is one exported enum's variant shape.
type EnumExport struct {
	Name     string
	Variants map[string][]string // variant name -> field type strings, declaration order
}

// Iface is one module's exported surface: every `pub` declaration's
// resolved shape, plus a digest summarizing all of it.
type Iface struct {
	Module  string
	Schema  string // "pluto.iface/v1"
	Funcs   map[string]FuncExport
	Classes map[string]ClassExport
	Enums   map[string]EnumExport
	Digest  string
}

// NewIface returns an empty interface for module, ready for Add* calls.
func NewIface(module string) *Iface {
	return &Iface{
		Module:  module,
		Schema:  "pluto.iface/v1",
		Funcs:   make(map[string]FuncExport),
		Classes: make(map[string]ClassExport),
		Enums:   make(map[string]EnumExport),
	}
}

func sigString(sig *types.Env, s *types.FuncSig) FuncExport {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	ret := "void"
	if s.Ret != nil {
		ret = s.Ret.String()
	}
	return FuncExport{Params: params, Ret: ret}
}

// Build extracts every `pub` top-level function, class, and enum in mod
// into an Iface, resolving their shapes through env (the output of
// types.Run), and computes its Digest.
func Build(mod *ast.Module, env *types.Env) *Iface {
	iface := NewIface(mod.Path)

	for _, d := range mod.Decls {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			if !decl.Pub {
				continue
			}
			sig, ok := env.Functions[decl.Name]
			if !ok {
				continue
			}
			fe := sigString(env, sig)
			fe.Name = decl.Name
			iface.Funcs[decl.Name] = fe

		case *ast.ClassDecl:
			if !decl.Pub {
				continue
			}
			ci, ok := env.Classes[decl.Name]
			if !ok {
				continue
			}
			ce := ClassExport{
				Name:    decl.Name,
				Traits:  append([]string{}, ci.Traits...),
				Fields:  map[string]string{},
				Methods: map[string]FuncExport{},
			}
			for name, t := range ci.Fields {
				ce.Fields[name] = t.String()
			}
			for name, sig := range ci.Methods {
				fe := sigString(env, sig)
				fe.Name = name
				ce.Methods[name] = fe
			}
			iface.Classes[decl.Name] = ce

		case *ast.EnumDecl:
			if !decl.Pub {
				continue
			}
			ei, ok := env.Enums[decl.Name]
			if !ok {
				continue
			}
			ee := EnumExport{Name: decl.Name, Variants: map[string][]string{}}
			for _, v := range decl.Variants {
				vi, ok := ei.Variants[v.Name]
				if !ok {
					continue
				}
				fields := make([]string, len(vi.FieldNames))
				for i, fname := range vi.FieldNames {
					fields[i] = vi.FieldTypes[fname].String()
				}
				ee.Variants[v.Name] = fields
			}
			iface.Enums[decl.Name] = ee
		}
	}

	iface.Digest = computeDigest(iface)
	return iface
}
