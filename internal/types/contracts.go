package types

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// contractCtx threads through decidable-fragment validation: whether
// `old`/`result` are allowed at all here (only inside an ensures
// clause), and whether `result` specifically is allowed (only on a
// non-void function's ensures clause).
type contractCtx struct {
	allowOldResult bool
	allowResult    bool
}

// ValidateDecidable checks that e belongs to the decidable fragment
// contract clauses are restricted to: field access, arithmetic,
// comparison, logical operators, literals, bare identifiers, `.len()`
// calls, and — only inside an ensures clause — `old(expr)` and (on a
// non-void function) `result`. Anything else (arbitrary calls, map
// indexing, closures) is rejected as CON001 so a contract can always be
// evaluated without running arbitrary Pluto code.
func ValidateDecidable(e ast.Expr, allowOldResult, allowResult bool) []error {
	ctx := contractCtx{allowOldResult: allowOldResult, allowResult: allowResult}
	var errs []error
	validateDecidableExpr(e, ctx, &errs)
	return errs
}

func validateDecidableExpr(e ast.Expr, ctx contractCtx, errs *[]error) {
	switch ex := e.(type) {
	case nil:
		return
	case *ast.Literal, *ast.Identifier:
		return
	case *ast.BinaryExpr:
		validateDecidableExpr(ex.Left, ctx, errs)
		validateDecidableExpr(ex.Right, ctx, errs)
	case *ast.UnaryExpr:
		validateDecidableExpr(ex.Expr, ctx, errs)
	case *ast.FieldAccess:
		validateDecidableExpr(ex.Recv, ctx, errs)
	case *ast.IndexExpr:
		*errs = append(*errs, conErr(errors.CON001, "contract expressions may not index into a map or array", ex))
	case *ast.MethodCall:
		if ex.Method != "len" || len(ex.Args) != 0 {
			*errs = append(*errs, conErr(errors.CON001, "contract expressions may only call `.len()`", ex))
			return
		}
		validateDecidableExpr(ex.Recv, ctx, errs)
	case *ast.NullableUnwrap:
		validateDecidableExpr(ex.Expr, ctx, errs)
	case *ast.OldExpr:
		if !ctx.allowOldResult {
			*errs = append(*errs, conErr(errors.CON002, "`old` is only valid inside an ensures clause", ex))
			return
		}
		validateDecidableExpr(ex.Inner, ctx, errs)
	case *ast.ResultExpr:
		if !ctx.allowOldResult {
			*errs = append(*errs, conErr(errors.CON002, "`result` is only valid inside an ensures clause", ex))
			return
		}
		if !ctx.allowResult {
			*errs = append(*errs, conErr(errors.CON002, "`result` is not valid in a void function's ensures clause", ex))
		}
	default:
		*errs = append(*errs, conErr(errors.CON001, "expression is not in the decidable contract fragment", ex))
	}
}

func conErr(code, msg string, n ast.Node) error {
	span := n.Position()
	return &errors.ReportError{Rep: errors.New("contract", code, msg, &span, nil)}
}

// CheckLiskov validates that a class's implementation of a trait-
// required method does not strengthen what the trait promised: an impl
// may add `ensures` clauses (a stronger postcondition only promises
// more to callers) but may never add `requires` clauses beyond the
// trait's own, since a caller coded against the trait is only prepared
// to satisfy the trait's (weaker) precondition — reported as TYP003.
func CheckLiskov(env *Env, classDecl *ast.ClassDecl) []error {
	var errs []error
	for _, tn := range classDecl.Traits {
		ti, ok := env.Traits[tn]
		if !ok {
			continue
		}
		for name, req := range ti.Required {
			for _, m := range classDecl.Methods {
				if m.Name != name {
					continue
				}
				if len(m.Contract.Requires) > len(req.Decl.Contract.Requires) {
					span := m.Position()
					errs = append(errs, &errors.ReportError{Rep: errors.New("type", errors.TYP003,
						"impl of \""+name+"\" adds requires clauses beyond trait \""+tn+"\"'s", &span,
						map[string]any{"method": name, "trait": tn})})
				}
			}
		}
	}
	return errs
}
