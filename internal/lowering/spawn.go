package lowering

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// SpawnSite is one `spawn f(args...)` call site. The actual lowering to
// a heap argument struct and a `__pluto_spawn(thunk_ptr, arg_struct_ptr)`
// runtime call (§4.4 step 6) depends on f's resolved parameter types for
// the deep-copy thunk, so it happens at codegen; lowering's job is to
// locate every spawn site, validate its shape, and hand it forward.
type SpawnSite struct {
	FuncName string
	Call     *ast.CallExpr
	Span     ast.Span
}

// DesugarSpawns collects every SpawnExpr reachable from a function body
// and validates that its target is a bare function name — `spawn f(args)`,
// not `spawn recv.method(args)` or `spawn (closure)(args)` — since the
// synthetic thunk the runtime ABI expects is generated per named
// function, not per arbitrary callable.
func DesugarSpawns(prog *ast.Program) ([]*SpawnSite, []error) {
	var sites []*SpawnSite
	var errs []error
	WalkFuncBodies(prog, func(f *ast.FuncDecl) {
		rw := func(e ast.Expr) ast.Expr {
			sp, ok := e.(*ast.SpawnExpr)
			if !ok || sp.Call == nil {
				return e
			}
			id, ok := sp.Call.Callee.(*ast.Identifier)
			if !ok {
				errs = append(errs, &errors.ReportError{Rep: errors.New("lowering", errors.LOW005,
					"spawn target must be a bare function name", spanOf(sp), nil)})
				return e
			}
			sites = append(sites, &SpawnSite{FuncName: id.Name, Call: sp.Call, Span: sp.Position()})
			return e
		}
		RewriteBlock(f.Body, rw)
	})
	return sites, errs
}
