package types

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lowering"
)

// DIPlan is the resolved dependency-injection graph: a dependency-first
// construction order plus each class's effective lifecycle, ready for
// irgen to emit the container's allocation sequence from.
type DIPlan struct {
	Order      []string
	Lifecycles map[string]ast.Lifecycle
}

// lifecycleRank orders the DI lifecycle lattice by how long an instance
// lives: a shorter-lived class may depend on a longer-lived one (it will
// always outlive its own use), but not the reverse.
func lifecycleRank(l ast.Lifecycle) int {
	switch l {
	case ast.LifecycleSingleton:
		return 3
	case ast.LifecycleScoped:
		return 2
	case ast.LifecycleTransient:
		return 1
	default:
		return 1 // unspecified defaults to transient
	}
}

// ValidateDI builds the dependency-injection graph over env's classes —
// bracket-injected fields as edges — topologically sorts it with cycle
// detection (DI001), confirms every bracket dependency resolves to a
// known provider (DI002), defaults every class left without an explicit
// lifecycle annotation, flags captive dependencies where a longer-
// lived class depends on a shorter-lived one (DI003), confirms every
// `uses` ambient is registered by some stage (DI004), and flags direct
// construction of a DI-managed class outside the generated container
// (DI005).
func ValidateDI(prog *ast.Program, env *Env) (*DIPlan, []error) {
	var errs []error
	names := sortedClassNames(env)

	edges := make(map[string][]string, len(names))
	for _, name := range names {
		ci := env.Classes[name]
		for _, bd := range ci.Brackets {
			dep := resolveProvider(env, bd.Type)
			if dep == "" {
				span := ci.Decl.Position()
				errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI002,
					"no provider for bracket dependency \""+bd.Name+": "+bd.Type+"\" on \""+name+"\"", &span,
					map[string]any{"class": name, "dep": bd.Name, "type": bd.Type})})
				continue
			}
			edges[name] = append(edges[name], dep)
		}
	}

	order, cycleErrs := topoSortClasses(names, edges)
	errs = append(errs, cycleErrs...)

	lifecycles := make(map[string]ast.Lifecycle, len(names))
	for _, name := range names {
		lifecycles[name] = env.Classes[name].Lifecycle
	}
	applyLifecycleDefaults(order, edges, lifecycles)
	applyLifecycleOverrides(prog, lifecycles)

	for _, name := range names {
		for _, dep := range edges[name] {
			if lifecycleRank(lifecycles[name]) > lifecycleRank(lifecycles[dep]) {
				span := env.Classes[name].Decl.Position()
				errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI003,
					"captive dependency: "+lifecycles[name].String()+" class \""+name+"\" depends on "+
						lifecycles[dep].String()+" class \""+dep+"\"", &span,
					map[string]any{"class": name, "dep": dep})})
			}
		}
	}

	registeredAmbients := collectAmbientRegistrations(prog)
	for _, name := range names {
		ci := env.Classes[name]
		for _, use := range ci.Uses {
			if !registeredAmbients[use] {
				span := ci.Decl.Position()
				errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI004,
					"ambient \""+use+"\" used by \""+name+"\" is never registered by any app/stage", &span,
					map[string]any{"class": name, "ambient": use})})
			}
		}
	}

	errs = append(errs, checkManualConstruction(prog, env)...)

	return &DIPlan{Order: order, Lifecycles: lifecycles}, errs
}

// resolveProvider returns the class name that satisfies a bracket
// dependency of the given type name: the type itself if it names a
// class directly, or the sole class implementing it if it names a
// trait. A trait with zero or more than one implementor has no single
// provider and is reported as DI002 by the caller.
func resolveProvider(env *Env, typeName string) string {
	if _, ok := env.Classes[typeName]; ok {
		return typeName
	}
	if _, ok := env.Traits[typeName]; !ok {
		return ""
	}
	var impls []string
	for _, name := range sortedClassNames(env) {
		if env.ImplementsTrait(name, typeName) {
			impls = append(impls, name)
		}
	}
	if len(impls) == 1 {
		return impls[0]
	}
	return ""
}

// topoSortClasses performs a DFS-based topological sort with cycle
// detection: visited marks fully-processed nodes, inPath marks nodes on
// the current recursion stack, mirroring the pattern an import-graph
// resolver uses for circular-import detection. Post-order DFS yields a
// dependency-first order directly, with no reversal needed.
func topoSortClasses(names []string, edges map[string][]string) ([]string, []error) {
	visited := map[string]bool{}
	inPath := map[string]bool{}
	var order []string
	var errs []error
	var path []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		if inPath[name] {
			cycle := append(append([]string{}, path...), name)
			errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI001,
				"dependency cycle: "+joinNames(cycle), nil, map[string]any{"cycle": cycle})})
			return
		}
		inPath[name] = true
		path = append(path, name)
		for _, dep := range edges[name] {
			visit(dep)
		}
		path = path[:len(path)-1]
		inPath[name] = false
		visited[name] = true
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order, errs
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return s
}

// applyLifecycleDefaults resolves every class left without an explicit
// lifecycle annotation: a class with no bracket dependencies defaults to
// singleton, one with bracket dependencies defaults to the shortest-lived
// (min-rank) lifecycle among them. order is dependency-first, so every
// dependency's lifecycle is already resolved (explicit or defaulted) by
// the time its dependent is processed.
func applyLifecycleDefaults(order []string, edges map[string][]string, lifecycles map[string]ast.Lifecycle) {
	for _, name := range order {
		if lifecycles[name] != ast.LifecycleUnspecified {
			continue
		}
		deps := edges[name]
		if len(deps) == 0 {
			lifecycles[name] = ast.LifecycleSingleton
			continue
		}
		min := ast.LifecycleSingleton
		minRank := lifecycleRank(min)
		for _, dep := range deps {
			if r := lifecycleRank(lifecycles[dep]); r < minRank {
				minRank = r
				min = lifecycles[dep]
			}
		}
		lifecycles[name] = min
	}
}

// applyLifecycleOverrides folds every app/stage's `scoped ClassName` /
// `singleton ClassName` override into lifecycles. Stages are flattened
// by internal/lowering before this runs, so each stage's Overrides
// already includes whatever it inherited from its parent chain.
func applyLifecycleOverrides(prog *ast.Program, lifecycles map[string]ast.Lifecycle) {
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			stage, ok := d.(*ast.StageDecl)
			if !ok {
				continue
			}
			for _, ov := range stage.Overrides {
				lifecycles[ov.ClassName] = ov.Lifecycle
			}
		}
	}
}

// collectAmbientRegistrations gathers every `ambient T` registration
// made by any app/stage in the program.
func collectAmbientRegistrations(prog *ast.Program) map[string]bool {
	set := map[string]bool{}
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			stage, ok := d.(*ast.StageDecl)
			if !ok {
				continue
			}
			for _, a := range stage.Ambient {
				set[a.TypeName] = true
			}
		}
	}
	return set
}

// checkManualConstruction flags any `ClassName { ... }` struct literal,
// found anywhere in an ordinary function or method body, that names a
// DI-managed class (one with bracket dependencies): such a class can
// only be correctly wired by the generated container, since its
// brackets are filled in by the DI graph, not by the literal's fields.
func checkManualConstruction(prog *ast.Program, env *Env) []error {
	managed := map[string]bool{}
	for name, ci := range env.Classes {
		if len(ci.Brackets) > 0 {
			managed[name] = true
		}
	}
	if len(managed) == 0 {
		return nil
	}
	var errs []error
	rw := func(e ast.Expr) ast.Expr {
		sl, ok := e.(*ast.StructLiteral)
		if !ok || !managed[sl.TypeName] {
			return e
		}
		span := sl.Position()
		errs = append(errs, &errors.ReportError{Rep: errors.New("di", errors.DI005,
			"class \""+sl.TypeName+"\" is DI-managed and must not be constructed directly", &span,
			map[string]any{"class": sl.TypeName})})
		return e
	}
	lowering.WalkFuncBodies(prog, func(f *ast.FuncDecl) {
		lowering.RewriteBlock(f.Body, rw)
	})
	return errs
}
