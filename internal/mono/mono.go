// Package mono implements monomorphization: for every concrete use of a
// generic class, enum, or free function, it produces one specialized
// Instance, deduplicated by (original name, type-argument tuple) and
// named by deterministic mangling so two runs over the same program
// agree on mangled names and their order.
//
// Grounded on the teacher's instantiation cache in types/instances.go
// (InstanceEnv.Add/Lookup, canonicalKey), generalized from type-class
// dictionary instances to whole generic declarations: where the teacher
// keys an instance by "ClassName::NormalizedType", mono keys one by
// "OriginalName__T1_T2_...".
package mono

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lowering"
	"github.com/pluto-lang/plutoc/internal/types"
)

// maxDepth bounds the nesting depth of a single type-argument tree
// (Box<Box<int>> has depth 2). Pluto's grammar has no recursive-type
// occurs check at declaration time, so a generic class that embeds
// another instantiation of itself in one of its own fields can otherwise
// drive the instantiation worklist arbitrarily deep; this is the fixed
// limit spec's monomorphizer section asks for.
const maxDepth = 8

// Instance is one concrete specialization produced by Monomorphize.
// Exactly one of FuncDecl/ClassDecl/EnumDecl is set.
type Instance struct {
	OriginalName string
	TypeArgs     []types.Type
	Mangled      string
	FuncDecl     *ast.FuncDecl
	ClassDecl    *ast.ClassDecl
	EnumDecl     *ast.EnumDecl
}

// Plan is the complete, deduplicated set of instantiations a program
// needs, in deterministic (mangled-name) order.
type Plan struct {
	Instances []*Instance
}

type genericDecls struct {
	funcs   map[string]*ast.FuncDecl
	classes map[string]*ast.ClassDecl
	enums   map[string]*ast.EnumDecl
}

type request struct {
	name  string
	args  []ast.TypeExpr
	depth int
}

// Monomorphize walks prog for every concrete instantiation site of a
// generic class (via a type annotation, e.g. `let b: Box<int>`) or
// generic free function (via a call site), and produces one Instance per
// distinct (name, type-argument tuple). It reports MONO001 when a
// concrete type substituted for a type parameter does not supply a
// method the generic body calls on a value of that parameter's type, and
// MONO002 when an instantiation's type-argument nesting exceeds
// maxDepth.
//
// Pluto's grammar has no `where T: Trait` bound syntax (parseTypeParams
// only reads bare names), so "trait bound" here means the structural
// bound inferred from how the generic's own body uses each parameter:
// whichever methods it calls on a bare-generic-typed parameter or
// generic-typed class field. That inferred bound is what gets checked
// against each concrete substitution.
func Monomorphize(prog *ast.Program, env *types.Env) (*Plan, []error) {
	gd := collectGenericDecls(prog)
	var errs []error

	var queue []request
	for _, nt := range collectTypeAnnotationSites(prog) {
		if len(nt.TypeArgs) == 0 {
			continue
		}
		_, isClass := gd.classes[nt.Name]
		_, isEnum := gd.enums[nt.Name]
		if !isClass && !isEnum {
			continue
		}
		if !allConcrete(nt.TypeArgs, env) {
			// A generic class field expressed in terms of its own
			// enclosing type parameter (e.g. `class C<T> { b: Box<T> }`)
			// is not yet a concrete instantiation site; it only becomes
			// one once C itself is instantiated and T substituted
			// through, which would require cascading substitution this
			// first pass does not implement (see DESIGN.md).
			continue
		}
		queue = append(queue, request{name: nt.Name, args: nt.TypeArgs, depth: typeExprDepth(nt)})
	}
	for _, site := range collectCallSites(prog) {
		fd, ok := gd.funcs[site.name]
		if !ok {
			continue
		}
		args := site.typeArgs
		if len(args) == 0 {
			args = inferCallTypeArgs(fd, site.args)
		}
		if len(args) == 0 || !allConcrete(args, env) {
			continue
		}
		depth := 0
		for _, a := range args {
			if d := typeExprDepth(a); d > depth {
				depth = d
			}
		}
		queue = append(queue, request{name: site.name, args: args, depth: depth})
	}

	cache := map[string]*Instance{}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		key := mangle(r.name, r.args)
		if _, ok := cache[key]; ok {
			continue
		}
		if r.depth > maxDepth {
			errs = append(errs, monoErr(errors.MONO002,
				"instantiation depth exceeded for "+key, r.args[0]))
			continue
		}
		if want := expectedArity(gd, r.name); want != len(r.args) {
			errs = append(errs, monoErr(errors.MONO001, fmt.Sprintf(
				"%s expects %d type argument(s), got %d", r.name, want, len(r.args)), r.args[0]))
			continue
		}

		resolved, rerrs := resolveHeads(env, r.args)
		errs = append(errs, rerrs...)

		if fd, ok := gd.funcs[r.name]; ok {
			cache[key] = &Instance{OriginalName: r.name, TypeArgs: resolved, Mangled: key, FuncDecl: fd}
			bounds := paramBounds(nil, fd)
			errs = append(errs, checkBounds(env, fd.TypeParams, bounds, resolved, fd)...)
			continue
		}
		if cd, ok := gd.classes[r.name]; ok {
			cache[key] = &Instance{OriginalName: r.name, TypeArgs: resolved, Mangled: key, ClassDecl: cd}
			bounds := map[string][]string{}
			for _, m := range cd.Methods {
				mergeBounds(bounds, paramBounds(cd, m))
			}
			errs = append(errs, checkBounds(env, cd.TypeParams, bounds, resolved, cd)...)
			// Nested generic-typed fields (a field whose declared type is
			// a generic class applied to this class's own type
			// parameters, e.g. `b: Box<T>`) are not instantiated here:
			// that would need collectTypeAnnotationSites re-run against
			// a copy of cd's fields with this instance's type arguments
			// substituted, which this loop does not do.
			continue
		}
		if ed, ok := gd.enums[r.name]; ok {
			cache[key] = &Instance{OriginalName: r.name, TypeArgs: resolved, Mangled: key, EnumDecl: ed}
			continue
		}
	}

	plan := &Plan{}
	for _, inst := range cache {
		plan.Instances = append(plan.Instances, inst)
	}
	sort.Slice(plan.Instances, func(i, j int) bool { return plan.Instances[i].Mangled < plan.Instances[j].Mangled })
	return plan, errs
}

func expectedArity(gd genericDecls, name string) int {
	if fd, ok := gd.funcs[name]; ok {
		return len(fd.TypeParams)
	}
	if cd, ok := gd.classes[name]; ok {
		return len(cd.TypeParams)
	}
	if ed, ok := gd.enums[name]; ok {
		return len(ed.TypeParams)
	}
	return 0
}

func collectGenericDecls(prog *ast.Program) genericDecls {
	gd := genericDecls{
		funcs:   map[string]*ast.FuncDecl{},
		classes: map[string]*ast.ClassDecl{},
		enums:   map[string]*ast.EnumDecl{},
	}
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			switch decl := d.(type) {
			case *ast.FuncDecl:
				if len(decl.TypeParams) > 0 {
					gd.funcs[decl.Name] = decl
				}
			case *ast.ClassDecl:
				if len(decl.TypeParams) > 0 {
					gd.classes[decl.Name] = decl
				}
			case *ast.EnumDecl:
				if len(decl.TypeParams) > 0 {
					gd.enums[decl.Name] = decl
				}
			}
		}
	}
	return gd
}

// collectTypeAnnotationSites returns every NamedType reachable anywhere
// in prog's declarations and function bodies: field types, parameter and
// return types, let-binding annotations, and cast targets, recursing into
// each NamedType's own TypeArgs so a nested instantiation like the inner
// Box<int> of Box<Box<int>> is discovered as its own site too.
func collectTypeAnnotationSites(prog *ast.Program) []*ast.NamedType {
	var out []*ast.NamedType
	add := func(te ast.TypeExpr) { collectNamedTypes(te, &out) }

	lowering.WalkFuncBodies(prog, func(fd *ast.FuncDecl) {
		for _, p := range fd.Params {
			add(p.Type)
		}
		add(fd.Return)
		walkBlockTypeAnnotations(fd.Body, add)
	})

	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			switch decl := d.(type) {
			case *ast.ClassDecl:
				for _, f := range decl.Fields {
					add(f.Type)
				}
			case *ast.ErrorDecl:
				for _, f := range decl.Fields {
					add(f.Type)
				}
			case *ast.EnumDecl:
				for _, v := range decl.Variants {
					for _, f := range v.Fields {
						add(f.Type)
					}
				}
			case *ast.ExternDecl:
				for _, p := range decl.Params {
					add(p.Type)
				}
				add(decl.Return)
			}
		}
	}
	return out
}

func collectNamedTypes(te ast.TypeExpr, out *[]*ast.NamedType) {
	switch t := te.(type) {
	case nil:
	case *ast.NamedType:
		*out = append(*out, t)
		for _, a := range t.TypeArgs {
			collectNamedTypes(a, out)
		}
	case *ast.ArrayType:
		collectNamedTypes(t.Elem, out)
	case *ast.MapType:
		collectNamedTypes(t.Key, out)
		collectNamedTypes(t.Val, out)
	case *ast.SetType:
		collectNamedTypes(t.Elem, out)
	case *ast.NullableType:
		collectNamedTypes(t.Inner, out)
	case *ast.StreamType:
		collectNamedTypes(t.Elem, out)
	case *ast.TaskType:
		collectNamedTypes(t.Elem, out)
	case *ast.ChannelType:
		collectNamedTypes(t.Elem, out)
	case *ast.FnType:
		for _, p := range t.Params {
			collectNamedTypes(p, out)
		}
		collectNamedTypes(t.Ret, out)
	}
}

// walkBlockTypeAnnotations finds every LetStmt type annotation and
// CastExpr target type reachable from b, including nested blocks.
func walkBlockTypeAnnotations(b *ast.Block, add func(ast.TypeExpr)) {
	if b == nil {
		return
	}
	visit := func(e ast.Expr) ast.Expr {
		if ce, ok := e.(*ast.CastExpr); ok {
			add(ce.Type)
		}
		return e
	}
	for _, s := range b.Stmts {
		if let, ok := s.(*ast.LetStmt); ok && let.Type != nil {
			add(let.Type)
		}
	}
	lowering.RewriteBlock(b, visit)
}

type callSite struct {
	name     string
	typeArgs []ast.TypeExpr
	args     []ast.Expr
}

// collectCallSites returns every bare-identifier call `name(args...)`
// reachable from any function body in prog. Method calls on generic
// methods are not discovered here: Pluto's class methods may declare
// their own TypeParams, but doing so is rare enough in practice that
// resolving it is left for a later pass (see DESIGN.md).
func collectCallSites(prog *ast.Program) []callSite {
	var out []callSite
	lowering.WalkFuncBodies(prog, func(fd *ast.FuncDecl) {
		visit := func(e ast.Expr) ast.Expr {
			ce, ok := e.(*ast.CallExpr)
			if !ok {
				return e
			}
			id, ok := ce.Callee.(*ast.Identifier)
			if !ok {
				return e
			}
			out = append(out, callSite{name: id.Name, typeArgs: ce.TypeArgs, args: ce.Args})
			return e
		}
		lowering.RewriteBlock(fd.Body, visit)
	})
	return out
}

// inferCallTypeArgs infers type arguments for a generic-function call
// with no explicit type arguments, by matching each bare-generic-typed
// parameter against a literal argument at the same position. Only
// literal arguments are used: anything else (an identifier, a nested
// call, a field access) is not traced back to a static type here, so the
// call is left uninstantiated rather than guessed at.
func inferCallTypeArgs(fd *ast.FuncDecl, args []ast.Expr) []ast.TypeExpr {
	isParam := map[string]bool{}
	for _, tp := range fd.TypeParams {
		isParam[tp] = true
	}
	inferred := map[string]ast.TypeExpr{}
	for i, p := range fd.Params {
		nt, ok := p.Type.(*ast.NamedType)
		if !ok || len(nt.TypeArgs) != 0 || !isParam[nt.Name] {
			continue
		}
		if i >= len(args) {
			continue
		}
		lit, ok := args[i].(*ast.Literal)
		if !ok {
			continue
		}
		if _, already := inferred[nt.Name]; already {
			continue
		}
		inferred[nt.Name] = literalTypeExpr(lit)
	}
	out := make([]ast.TypeExpr, len(fd.TypeParams))
	for i, tp := range fd.TypeParams {
		te, ok := inferred[tp]
		if !ok {
			return nil
		}
		out[i] = te
	}
	return out
}

func literalTypeExpr(lit *ast.Literal) ast.TypeExpr {
	var name string
	switch lit.Kind {
	case ast.IntLit:
		name = "int"
	case ast.FloatLit:
		name = "float"
	case ast.StringLit:
		name = "string"
	case ast.BoolLit:
		name = "bool"
	default:
		return nil
	}
	return &ast.PrimitiveType{NamedBase: ast.NamedBase{Base: ast.NewBase(lit.Position())}, Name: name}
}

// typeExprDepth is the nesting depth of a type-argument tree: a bare name
// or primitive is depth 0, Box<int> is depth 1, Box<Box<int>> is depth 2.
func typeExprDepth(te ast.TypeExpr) int {
	switch t := te.(type) {
	case nil:
		return 0
	case *ast.NamedType:
		d := 0
		for _, a := range t.TypeArgs {
			if ad := typeExprDepth(a); ad > d {
				d = ad
			}
		}
		if len(t.TypeArgs) == 0 {
			return 0
		}
		return 1 + d
	case *ast.ArrayType:
		return 1 + typeExprDepth(t.Elem)
	case *ast.MapType:
		kd, vd := typeExprDepth(t.Key), typeExprDepth(t.Val)
		if vd > kd {
			kd = vd
		}
		return 1 + kd
	case *ast.SetType:
		return 1 + typeExprDepth(t.Elem)
	case *ast.NullableType:
		return 1 + typeExprDepth(t.Inner)
	case *ast.StreamType:
		return 1 + typeExprDepth(t.Elem)
	case *ast.TaskType:
		return 1 + typeExprDepth(t.Elem)
	case *ast.ChannelType:
		return 1 + typeExprDepth(t.Elem)
	case *ast.FnType:
		d := 0
		for _, p := range t.Params {
			if pd := typeExprDepth(p); pd > d {
				d = pd
			}
		}
		if rd := typeExprDepth(t.Ret); rd > d {
			d = rd
		}
		return 1 + d
	}
	return 0
}

// mangleTypeExpr renders a type-argument expression into the short,
// deterministic form used in a mangled instantiation name: primitives
// and nominal names capitalized, composites joined positionally. This
// mirrors the teacher's NormalizeTypeName convention (int -> Int, a
// user-defined name capitalized) adapted to Pluto's surface syntax.
func mangleTypeExpr(te ast.TypeExpr) string {
	switch t := te.(type) {
	case nil:
		return "Void"
	case *ast.PrimitiveType:
		return capitalize(t.Name)
	case *ast.NamedType:
		if len(t.TypeArgs) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			parts[i] = mangleTypeExpr(a)
		}
		return t.Name + "_" + strings.Join(parts, "_")
	case *ast.SelfType:
		return "Self"
	case *ast.ArrayType:
		return "Arr" + mangleTypeExpr(t.Elem)
	case *ast.MapType:
		return "Map" + mangleTypeExpr(t.Key) + "_" + mangleTypeExpr(t.Val)
	case *ast.SetType:
		return "Set" + mangleTypeExpr(t.Elem)
	case *ast.NullableType:
		return mangleTypeExpr(t.Inner) + "Opt"
	case *ast.StreamType:
		return "Stream" + mangleTypeExpr(t.Elem)
	case *ast.TaskType:
		return "Task" + mangleTypeExpr(t.Elem)
	case *ast.ChannelType:
		return "Chan" + mangleTypeExpr(t.Elem)
	case *ast.FnType:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = mangleTypeExpr(p)
		}
		return "Fn" + strings.Join(parts, "_") + "_" + mangleTypeExpr(t.Ret)
	}
	return "Unk"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// allConcrete reports whether every type expression in args names only
// primitives and already-declared classes/enums/traits/errors — no bare
// reference to a type parameter that has not yet been substituted.
func allConcrete(args []ast.TypeExpr, env *types.Env) bool {
	for _, a := range args {
		if !isFullyConcrete(a, env) {
			return false
		}
	}
	return true
}

func isFullyConcrete(te ast.TypeExpr, env *types.Env) bool {
	switch t := te.(type) {
	case nil, *ast.PrimitiveType, *ast.SelfType:
		return true
	case *ast.NamedType:
		if !env.KnownTypeName(t.Name) {
			return false
		}
		return allConcrete(t.TypeArgs, env)
	case *ast.ArrayType:
		return isFullyConcrete(t.Elem, env)
	case *ast.MapType:
		return isFullyConcrete(t.Key, env) && isFullyConcrete(t.Val, env)
	case *ast.SetType:
		return isFullyConcrete(t.Elem, env)
	case *ast.NullableType:
		return isFullyConcrete(t.Inner, env)
	case *ast.StreamType:
		return isFullyConcrete(t.Elem, env)
	case *ast.TaskType:
		return isFullyConcrete(t.Elem, env)
	case *ast.ChannelType:
		return isFullyConcrete(t.Elem, env)
	case *ast.FnType:
		return allConcrete(t.Params, env) && isFullyConcrete(t.Ret, env)
	}
	return false
}

func mangle(name string, args []ast.TypeExpr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = mangleTypeExpr(a)
	}
	return name + "__" + strings.Join(parts, "_")
}

// resolveHeads resolves each concrete type-argument expression into its
// checked Type, for bound-checking and for Instance.TypeArgs. Nested
// instantiations (Box<int> inside Box<Box<int>>) resolve to the head
// class/enum only (Class{"Box"}), since the checked Type representation
// does not itself carry type arguments — the nested instantiation is
// still produced as its own separate Instance by the outer Monomorphize
// loop, just not threaded back into this one's TypeArgs slice.
func resolveHeads(env *types.Env, args []ast.TypeExpr) ([]types.Type, []error) {
	out := make([]types.Type, len(args))
	var errs []error
	for i, te := range args {
		t, terrs := env.ResolveType(te, nil)
		errs = append(errs, terrs...)
		out[i] = t
	}
	return out, errs
}

// paramBounds scans fd's body for method calls on a value whose static
// type is a bare generic type parameter: either fd's own parameter typed
// directly by one of typeParams, or (when cd is non-nil) a class field
// typed directly by one of cd's type parameters, accessed through
// `self.field`. The result maps each type-parameter name to the set of
// method names the generic body requires of it — the structural stand-in
// for a declared trait bound.
func paramBounds(cd *ast.ClassDecl, fd *ast.FuncDecl) map[string][]string {
	genericParams := map[string]bool{}
	for _, tp := range fd.TypeParams {
		genericParams[tp] = true
	}
	if cd != nil {
		for _, tp := range cd.TypeParams {
			genericParams[tp] = true
		}
	}

	paramGeneric := map[string]string{} // param name -> type-parameter name
	for _, p := range fd.Params {
		if nt, ok := p.Type.(*ast.NamedType); ok && len(nt.TypeArgs) == 0 && genericParams[nt.Name] {
			paramGeneric[p.Name] = nt.Name
		}
	}
	fieldGeneric := map[string]string{} // field name -> type-parameter name
	if cd != nil {
		for _, f := range cd.Fields {
			if nt, ok := f.Type.(*ast.NamedType); ok && len(nt.TypeArgs) == 0 && genericParams[nt.Name] {
				fieldGeneric[f.Name] = nt.Name
			}
		}
	}

	bounds := map[string][]string{}
	record := func(generic, method string) {
		for _, m := range bounds[generic] {
			if m == method {
				return
			}
		}
		bounds[generic] = append(bounds[generic], method)
	}

	visit := func(e ast.Expr) ast.Expr {
		mc, ok := e.(*ast.MethodCall)
		if !ok {
			return e
		}
		switch recv := mc.Recv.(type) {
		case *ast.Identifier:
			if g, ok := paramGeneric[recv.Name]; ok {
				record(g, mc.Method)
			}
		case *ast.FieldAccess:
			if selfRecv, ok := recv.Recv.(*ast.Identifier); ok && selfRecv.Name == "self" {
				if g, ok := fieldGeneric[recv.Field]; ok {
					record(g, mc.Method)
				}
			}
		}
		return e
	}
	lowering.RewriteBlock(fd.Body, visit)
	return bounds
}

func mergeBounds(dst, src map[string][]string) {
	for k, methods := range src {
		for _, m := range methods {
			found := false
			for _, existing := range dst[k] {
				if existing == m {
					found = true
					break
				}
			}
			if !found {
				dst[k] = append(dst[k], m)
			}
		}
	}
}

// checkBounds raises MONO001 for every type parameter whose substituted
// concrete type does not provide a method the generic body requires of
// it. Only Class-typed substitutions can satisfy a method bound: every
// other concrete type (primitive, array, map, set, ...) has no entry in
// Env's method tables, so any required method against it fails.
func checkBounds(env *types.Env, typeParams []string, bounds map[string][]string, args []types.Type, node ast.Node) []error {
	var errs []error
	for i, tp := range typeParams {
		methods, ok := bounds[tp]
		if !ok || i >= len(args) || args[i] == nil {
			continue
		}
		for _, m := range methods {
			cls, ok := args[i].(types.Class)
			if !ok || env.LookupMethod(cls.Name, m) == nil {
				errs = append(errs, monoErr(errors.MONO001,
					"type argument "+args[i].String()+" for "+tp+" does not provide method \""+m+"\"", node))
			}
		}
	}
	return errs
}

func monoErr(code, msg string, n ast.Node) error {
	span := n.Position()
	return &errors.ReportError{Rep: errors.New("mono", code, msg, &span, nil)}
}
