package lowering

import (
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// FlattenStages merges each stage's parent chain into it, root-first:
// bracket deps, ambient registrations, lifecycle overrides, and methods
// are all inherited, with a child's `override fn` replacing the parent's
// matching `requires fn`. Cycles in the parent chain and leaf stages
// that leave a `requires fn` unimplemented are reported as errors.
func FlattenStages(prog *ast.Program) []error {
	byName := make(map[string]*ast.StageDecl)
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			if s, ok := d.(*ast.StageDecl); ok {
				byName[s.Name] = s
			}
		}
	}

	stageNames := make([]string, 0, len(byName))
	for name := range byName {
		stageNames = append(stageNames, name)
	}
	sort.Strings(stageNames)

	f := &stageFlattener{byName: byName, done: make(map[string]bool), visiting: make(map[string]bool)}
	var errs []error
	for _, name := range stageNames {
		if _, ferrs := f.flatten(name); len(ferrs) > 0 {
			errs = append(errs, ferrs...)
		}
	}
	// Leaf check: any stage nobody else declares as their parent, with an
	// unresolved `requires fn` left after flattening, is an error — a
	// stage meant to be instantiated (the common case for `app`) must
	// have every abstract method filled in by the time it reaches here.
	hasChild := make(map[string]bool)
	for _, s := range byName {
		if s.Parent != "" {
			hasChild[s.Parent] = true
		}
	}
	for _, name := range stageNames {
		if hasChild[name] {
			continue
		}
		for _, m := range byName[name].Methods {
			if m.IsRequires {
				errs = append(errs, &errors.ReportError{Rep: errors.New("lowering", errors.LOW003,
					"stage \""+name+"\" leaves requires fn \""+m.Name+"\" unimplemented",
					spanOf(m), map[string]any{"stage": name, "fn": m.Name})})
			}
		}
	}
	return errs
}

func spanOf(n ast.Node) *ast.Span {
	s := n.Position()
	return &s
}

type stageFlattener struct {
	byName   map[string]*ast.StageDecl
	done     map[string]bool
	visiting map[string]bool
}

// flatten merges name's parent chain into name's own StageDecl in place
// and returns it (idempotent: already-flattened stages are returned
// immediately from the done set).
func (f *stageFlattener) flatten(name string) (*ast.StageDecl, []error) {
	s, ok := f.byName[name]
	if !ok {
		return nil, nil // unknown parent name: left for the type checker's registration pass
	}
	if f.done[name] {
		return s, nil
	}
	if f.visiting[name] {
		return nil, []error{&errors.ReportError{Rep: errors.New("lowering", errors.LOW001,
			"stage parent chain cycle involving \""+name+"\"", spanOf(s),
			map[string]any{"stage": name})}}
	}
	if s.Parent == "" {
		f.done[name] = true
		return s, nil
	}

	f.visiting[name] = true
	parent, errs := f.flatten(s.Parent)
	delete(f.visiting, name)
	if len(errs) > 0 {
		return nil, errs
	}
	if parent == nil {
		f.done[name] = true
		return s, nil
	}

	s.Brackets = append(append([]ast.BracketDep{}, parent.Brackets...), s.Brackets...)
	s.Ambient = append(append([]ast.AmbientReg{}, parent.Ambient...), s.Ambient...)
	s.Overrides = append(append([]ast.LifecycleOverride{}, parent.Overrides...), s.Overrides...)

	merged := append([]*ast.FuncDecl{}, parent.Methods...)
	for _, m := range s.Methods {
		if !m.IsOverride {
			merged = append(merged, m)
			continue
		}
		matched := false
		for i, pm := range merged {
			if pm.Name == m.Name && pm.IsRequires {
				if !signatureCompatible(pm, m) {
					errs = append(errs, &errors.ReportError{Rep: errors.New("lowering", errors.LOW002,
						"override fn \""+m.Name+"\" does not match parent's requires fn signature",
						spanOf(m), map[string]any{"fn": m.Name, "stage": name})})
				}
				merged[i] = m
				matched = true
				break
			}
		}
		if !matched {
			errs = append(errs, &errors.ReportError{Rep: errors.New("lowering", errors.LOW002,
				"override fn \""+m.Name+"\" has no matching parent requires fn",
				spanOf(m), map[string]any{"fn": m.Name, "stage": name})})
			merged = append(merged, m)
		}
	}
	s.Methods = merged

	f.done[name] = true
	return s, errs
}

// signatureCompatible does a structural arity/type check between a
// parent's `requires fn` stub and a child's `override fn` body. Full
// type resolution (generics, trait bounds) is the type checker's job;
// this only catches an override that plainly doesn't match the shape it
// claims to implement.
func signatureCompatible(requires, override *ast.FuncDecl) bool {
	if len(requires.Params) != len(override.Params) {
		return false
	}
	for i := range requires.Params {
		if !typeExprEqual(requires.Params[i].Type, override.Params[i].Type) {
			return false
		}
	}
	return typeExprEqual(requires.Return, override.Return)
}

// typeExprEqual is a shallow structural comparison of unresolved type
// expressions, sufficient for the override-shape check above; it is not
// a substitute for the type checker's full unification.
func typeExprEqual(a, b ast.TypeExpr) bool {
	return typeExprKey(a) == typeExprKey(b)
}

// typeExprKey renders a TypeExpr as a structural string for comparison,
// recursing into element/param types so e.g. `[int]` and `[string]`
// compare unequal.
func typeExprKey(t ast.TypeExpr) string {
	switch tt := t.(type) {
	case nil:
		return "<void>"
	case *ast.PrimitiveType:
		return "prim:" + tt.Name
	case *ast.NamedType:
		s := "named:" + tt.Name
		for _, a := range tt.TypeArgs {
			s += "," + typeExprKey(a)
		}
		return s
	case *ast.SelfType:
		return "self"
	case *ast.ArrayType:
		return "array:" + typeExprKey(tt.Elem)
	case *ast.MapType:
		return "map:" + typeExprKey(tt.Key) + ":" + typeExprKey(tt.Val)
	case *ast.SetType:
		return "set:" + typeExprKey(tt.Elem)
	case *ast.NullableType:
		return "nullable:" + typeExprKey(tt.Inner)
	case *ast.FnType:
		s := "fn("
		for _, p := range tt.Params {
			s += typeExprKey(p) + ","
		}
		return s + ")" + typeExprKey(tt.Ret)
	case *ast.StreamType:
		return "stream:" + typeExprKey(tt.Elem)
	case *ast.TaskType:
		return "task:" + typeExprKey(tt.Elem)
	case *ast.ChannelType:
		return "channel:" + typeExprKey(tt.Elem)
	default:
		return "?"
	}
}
