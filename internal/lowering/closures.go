package lowering

import (
	"fmt"
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// LiftClosures rewrites every closure expression into a generated
// top-level function plus a `{ fn_ptr, captures }` closure object at the
// original site. Nested closures are lifted first because RewriteExpr
// descends post-order: by the time a closure's own rw fires, any
// closures nested in its body have already been replaced by their
// closure objects, so computing free variables over the (already
// lifted) body correctly threads inner captures into the outer
// environment.
func LiftClosures(prog *ast.Program) []error {
	globals := collectGlobalNames(prog)
	for _, mod := range prog.Modules {
		lifter := &closureLifter{globals: globals}
		for _, d := range mod.Decls {
			walkDeclFuncs(d, func(f *ast.FuncDecl) {
				RewriteBlock(f.Body, lifter.rw)
			})
		}
		mod.Decls = append(mod.Decls, lifter.lifted...)
	}
	return nil
}

func collectGlobalNames(prog *ast.Program) map[string]bool {
	names := make(map[string]bool)
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			names[d.DeclName()] = true
		}
	}
	return names
}

type closureLifter struct {
	globals map[string]bool
	counter int
	lifted  []ast.Decl
}

func (cl *closureLifter) rw(e ast.Expr) ast.Expr {
	clo, ok := e.(*ast.ClosureExpr)
	if !ok {
		return e
	}

	body := clo.BodyStmt
	if body == nil {
		body = &ast.Block{
			Base:  clo.Base,
			Stmts: []ast.Stmt{&ast.ReturnStmt{StmtBase: ast.StmtBase{Base: clo.Base}, Value: clo.Body}},
		}
	}

	bound := map[string]bool{}
	for _, p := range clo.Params {
		bound[p.Name] = true
	}
	collectBoundNames(body, bound)

	env := cl.freeVars(body, bound)

	cl.counter++
	name := fmt.Sprintf("__closure_%d", cl.counter)
	// Registered as global immediately: an enclosing closure's freeVars
	// scan runs after this one (post-order), and by then its body holds
	// a bare reference to name as the lifted function's fn_ptr — that
	// reference must not be mistaken for a capture to thread outward.
	cl.globals[name] = true

	params := append([]ast.Param{}, clo.Params...)
	for _, v := range env {
		params = append(params, ast.Param{Name: v})
	}

	cl.lifted = append(cl.lifted, &ast.FuncDecl{
		Base: clo.Base,
		Name: name,
		// Return left elided: closures carry no surface return-type
		// annotation, so the lifted function's return type is inferred
		// from its body during body checking, same as it would have
		// been inferred for the closure in place.
		Params: params,
		Body:   body,
	})

	captures := make([]ast.Expr, len(env))
	for i, v := range env {
		captures[i] = &ast.Identifier{ExprBase: ast.ExprBase{Base: clo.Base}, Name: v}
	}
	return &ast.StructLiteral{
		ExprBase: ast.ExprBase{Base: clo.Base},
		TypeName: "__Closure",
		Fields: []ast.StructFieldInit{
			{Name: "fn_ptr", Value: &ast.Identifier{ExprBase: ast.ExprBase{Base: clo.Base}, Name: name}},
			{Name: "captures", Value: &ast.ArrayLiteral{ExprBase: ast.ExprBase{Base: clo.Base}, Elems: captures}},
		},
	}
}

// freeVars returns, in deterministic sorted order, every identifier
// referenced in body that isn't locally bound (params, lets, for/match
// binds) and isn't a top-level declaration name — those resolve
// normally without needing to be threaded through the closure object.
func (cl *closureLifter) freeVars(body *ast.Block, bound map[string]bool) []string {
	seen := map[string]bool{}
	var free []string
	rw := func(e ast.Expr) ast.Expr {
		id, ok := e.(*ast.Identifier)
		if !ok || bound[id.Name] || cl.globals[id.Name] || seen[id.Name] {
			return e
		}
		seen[id.Name] = true
		free = append(free, id.Name)
		return e
	}
	RewriteBlock(body, rw)
	sort.Strings(free)
	return free
}
