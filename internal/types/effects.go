package types

import (
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// EffectInfo is the result of whole-program error-effect inference: for
// every function/method, the set of error type names that can escape a
// call to it unhandled.
type EffectInfo struct {
	Fallible map[string]map[string]bool // funcKey -> set of error type names
}

func (ei *EffectInfo) isFallible(key string) bool {
	return len(ei.Fallible[key]) > 0
}

func funcKey(owner, name string) string {
	if owner == "" {
		return name
	}
	return owner + "." + name
}

type effectFunc struct {
	key   string
	owner string // class name, "" for free functions
	decl  *ast.FuncDecl
}

// Infer runs the whole-program fixed-point error-effect algorithm: every
// function's fallible set starts as the errors it directly raises, then
// repeatedly absorbs the fallible sets of every function it calls with
// `!` until a full pass adds nothing new. Only after the fixed point is
// reached does it re-walk every body to flag EFF001-003.
func Infer(prog *ast.Program, env *Env) (*EffectInfo, []error) {
	funcs := collectEffectFuncs(prog)
	ei := &EffectInfo{Fallible: make(map[string]map[string]bool, len(funcs))}
	for _, f := range funcs {
		ei.Fallible[f.key] = directRaises(f.decl, env)
	}

	edges := make(map[string][]string, len(funcs))
	for _, f := range funcs {
		edges[f.key] = propagatingCallees(f, funcs)
	}

	for changed := true; changed; {
		changed = false
		for _, f := range funcs {
			set := ei.Fallible[f.key]
			for _, callee := range edges[f.key] {
				for name := range ei.Fallible[callee] {
					if !set[name] {
						set[name] = true
						changed = true
					}
				}
			}
		}
	}

	var errs []error
	for _, f := range funcs {
		errs = append(errs, checkEffectUsage(f, ei, funcs)...)
	}
	return ei, errs
}

func collectEffectFuncs(prog *ast.Program) []*effectFunc {
	var funcs []*effectFunc
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			switch decl := d.(type) {
			case *ast.FuncDecl:
				if decl.Body != nil {
					funcs = append(funcs, &effectFunc{key: funcKey("", decl.Name), decl: decl})
				}
			case *ast.ClassDecl:
				for _, m := range decl.Methods {
					if m.Body != nil {
						funcs = append(funcs, &effectFunc{key: funcKey(decl.Name, m.Name), owner: decl.Name, decl: m})
					}
				}
			case *ast.TraitDecl:
				for _, m := range decl.Defaults {
					if m.Body != nil {
						funcs = append(funcs, &effectFunc{key: funcKey(decl.Name, m.Name), owner: decl.Name, decl: m})
					}
				}
			case *ast.StageDecl:
				for _, m := range decl.Methods {
					if m.Body != nil {
						funcs = append(funcs, &effectFunc{key: funcKey(decl.Name, m.Name), owner: decl.Name, decl: m})
					}
				}
			}
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].key < funcs[j].key })
	return funcs
}

// noneErrorName is the built-in error type `?` raises when unwrapping a
// none value; it has no *ast.ErrorDecl of its own, so it never appears
// in env.Errors the way a user-declared `raise T{...}` target does.
const noneErrorName = "NoneError"

// directRaises finds every `raise` statement and every `?` nullable
// unwrap reachable in f's body (without descending into nested
// closures, which by the time effect inference runs have already been
// lifted to their own top-level functions by internal/lowering) and
// records the named error type: a struct literal or a reference to a
// declared error type for `raise`, the built-in NoneError for every `?`.
func directRaises(f *ast.FuncDecl, env *Env) map[string]bool {
	set := map[string]bool{}
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch ex := e.(type) {
		case nil:
			return
		case *ast.NullableUnwrap:
			set[noneErrorName] = true
			walkExpr(ex.Expr)
		case *ast.CallExpr:
			walkExpr(ex.Callee)
			for _, a := range ex.Args {
				walkExpr(a)
			}
		case *ast.MethodCall:
			walkExpr(ex.Recv)
			for _, a := range ex.Args {
				walkExpr(a)
			}
		case *ast.BinaryExpr:
			walkExpr(ex.Left)
			walkExpr(ex.Right)
		case *ast.UnaryExpr:
			walkExpr(ex.Expr)
		case *ast.FieldAccess:
			walkExpr(ex.Recv)
		case *ast.IndexExpr:
			walkExpr(ex.Recv)
			walkExpr(ex.Index)
		case *ast.CastExpr:
			walkExpr(ex.Expr)
		case *ast.CatchExpr:
			walkExpr(ex.Expr)
			walkExpr(ex.Fallback)
		case *ast.RangeExpr:
			walkExpr(ex.Start)
			walkExpr(ex.End)
		case *ast.StructLiteral:
			for _, fl := range ex.Fields {
				walkExpr(fl.Value)
			}
		case *ast.ArrayLiteral:
			for _, el := range ex.Elems {
				walkExpr(el)
			}
		case *ast.MapLiteral:
			for _, en := range ex.Entries {
				walkExpr(en.Key)
				walkExpr(en.Value)
			}
		case *ast.SetLiteral:
			for _, el := range ex.Elems {
				walkExpr(el)
			}
		case *ast.InterpString:
			for _, sub := range ex.Exprs {
				walkExpr(sub)
			}
		}
	}
	var walk func(*ast.Block)
	walkStmt := func(s ast.Stmt) {
		switch st := s.(type) {
		case *ast.RaiseStmt:
			if name := raisedErrorName(st.Value, env); name != "" {
				set[name] = true
			}
			walkExpr(st.Value)
		case *ast.LetStmt:
			walkExpr(st.Value)
		case *ast.AssignStmt:
			walkExpr(st.Target)
			walkExpr(st.Value)
		case *ast.ExprStmt:
			walkExpr(st.Expr)
		case *ast.ReturnStmt:
			walkExpr(st.Value)
		case *ast.IfStmt:
			walkExpr(st.Cond)
		case *ast.WhileStmt:
			walkExpr(st.Cond)
		case *ast.ForStmt:
			walkExpr(st.Iter)
		case *ast.MatchStmt:
			walkExpr(st.Match.Subject)
		}
	}
	walk = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			walkStmt(s)
			switch st := s.(type) {
			case *ast.IfStmt:
				walk(st.Then)
				walk(st.Else)
			case *ast.WhileStmt:
				walk(st.Body)
			case *ast.ForStmt:
				walk(st.Body)
			case *ast.MatchStmt:
				for _, arm := range st.Match.Arms {
					walk(arm.Body)
				}
			}
		}
	}
	walk(f.Body)
	return set
}

func raisedErrorName(e ast.Expr, env *Env) string {
	switch ex := e.(type) {
	case *ast.StructLiteral:
		if _, ok := env.Errors[ex.TypeName]; ok {
			return ex.TypeName
		}
	case *ast.CallExpr:
		if id, ok := ex.Callee.(*ast.Identifier); ok {
			if _, ok := env.Errors[id.Name]; ok {
				return id.Name
			}
		}
	}
	return ""
}

// propagatingCallees finds every call in f's body marked with `!`
// (CallExpr.Propagate or MethodCall.Propagate) whose target resolves to
// another function/method in funcs, by structural lookup of either a
// bare-name free-function call or a `self.method(...)` call.
func propagatingCallees(f *effectFunc, funcs []*effectFunc) []string {
	byKey := map[string]bool{}
	for _, other := range funcs {
		byKey[other.key] = true
	}
	var callees []string
	var walkExpr func(ast.Expr)
	record := func(key string) {
		if byKey[key] {
			callees = append(callees, key)
		}
	}
	walkExpr = func(e ast.Expr) {
		switch ex := e.(type) {
		case nil:
			return
		case *ast.CallExpr:
			for _, a := range ex.Args {
				walkExpr(a)
			}
			walkExpr(ex.Callee)
			if ex.Propagate {
				if id, ok := ex.Callee.(*ast.Identifier); ok {
					record(funcKey("", id.Name))
				}
			}
		case *ast.MethodCall:
			walkExpr(ex.Recv)
			for _, a := range ex.Args {
				walkExpr(a)
			}
			if ex.Propagate && f.owner != "" {
				if id, ok := ex.Recv.(*ast.Identifier); ok && id.Name == "self" {
					record(funcKey(f.owner, ex.Method))
				}
			}
		case *ast.BinaryExpr:
			walkExpr(ex.Left)
			walkExpr(ex.Right)
		case *ast.UnaryExpr:
			walkExpr(ex.Expr)
		case *ast.FieldAccess:
			walkExpr(ex.Recv)
		case *ast.IndexExpr:
			walkExpr(ex.Recv)
			walkExpr(ex.Index)
		case *ast.NullableUnwrap:
			walkExpr(ex.Expr)
		case *ast.CastExpr:
			walkExpr(ex.Expr)
		case *ast.CatchExpr:
			walkExpr(ex.Expr)
			walkExpr(ex.Fallback)
		case *ast.RangeExpr:
			walkExpr(ex.Start)
			walkExpr(ex.End)
		case *ast.StructLiteral:
			for _, fl := range ex.Fields {
				walkExpr(fl.Value)
			}
		case *ast.ArrayLiteral:
			for _, el := range ex.Elems {
				walkExpr(el)
			}
		case *ast.MapLiteral:
			for _, en := range ex.Entries {
				walkExpr(en.Key)
				walkExpr(en.Value)
			}
		case *ast.SetLiteral:
			for _, el := range ex.Elems {
				walkExpr(el)
			}
		case *ast.InterpString:
			for _, sub := range ex.Exprs {
				walkExpr(sub)
			}
		}
	}
	var walkBlock func(*ast.Block)
	walkBlock = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			switch st := s.(type) {
			case *ast.LetStmt:
				walkExpr(st.Value)
			case *ast.AssignStmt:
				walkExpr(st.Target)
				walkExpr(st.Value)
			case *ast.ExprStmt:
				walkExpr(st.Expr)
			case *ast.IfStmt:
				walkExpr(st.Cond)
				walkBlock(st.Then)
				walkBlock(st.Else)
			case *ast.WhileStmt:
				walkExpr(st.Cond)
				walkBlock(st.Body)
			case *ast.ForStmt:
				walkExpr(st.Iter)
				walkBlock(st.Body)
			case *ast.MatchStmt:
				walkExpr(st.Match.Subject)
				for _, arm := range st.Match.Arms {
					walkBlock(arm.Body)
				}
			case *ast.ReturnStmt:
				walkExpr(st.Value)
			case *ast.RaiseStmt:
				walkExpr(st.Value)
			}
		}
	}
	walkBlock(f.decl.Body)
	return callees
}

// checkEffectUsage re-walks f's body after the fixed point is reached,
// flagging calls whose `!`/`catch` usage doesn't match the callee's now-
// known fallibility: EFF001 (fallible call neither propagated nor
// caught), EFF002 (`!` on an infallible call), EFF003 (`catch` on an
// infallible expression).
func checkEffectUsage(f *effectFunc, ei *EffectInfo, funcs []*effectFunc) []error {
	byKey := map[string]bool{}
	for _, other := range funcs {
		byKey[other.key] = true
	}
	var errs []error
	var walkExpr func(ast.Expr, bool) // caught reports whether e is directly wrapped by a catch
	calleeKey := func(e ast.Expr) (string, bool) {
		switch c := e.(type) {
		case *ast.CallExpr:
			if id, ok := c.Callee.(*ast.Identifier); ok {
				k := funcKey("", id.Name)
				return k, byKey[k]
			}
		case *ast.MethodCall:
			if f.owner != "" {
				if id, ok := c.Recv.(*ast.Identifier); ok && id.Name == "self" {
					k := funcKey(f.owner, c.Method)
					return k, byKey[k]
				}
			}
		}
		return "", false
	}
	walkExpr = func(e ast.Expr, caught bool) {
		switch ex := e.(type) {
		case nil:
			return
		case *ast.CallExpr:
			for _, a := range ex.Args {
				walkExpr(a, false)
			}
			walkExpr(ex.Callee, false)
			key, known := calleeKey(ex)
			if !known {
				return
			}
			fallible := ei.isFallible(key)
			if ex.Propagate && !fallible {
				errs = append(errs, effErr(errors.EFF002, "`!` used on a call to infallible function \""+key+"\"", ex))
			}
			if fallible && !ex.Propagate && !caught {
				errs = append(errs, effErr(errors.EFF001, "unhandled fallible call to \""+key+"\"", ex))
			}
		case *ast.MethodCall:
			walkExpr(ex.Recv, false)
			for _, a := range ex.Args {
				walkExpr(a, false)
			}
			key, known := calleeKey(ex)
			if !known {
				return
			}
			fallible := ei.isFallible(key)
			if ex.Propagate && !fallible {
				errs = append(errs, effErr(errors.EFF002, "`!` used on a call to infallible method \""+key+"\"", ex))
			}
			if fallible && !ex.Propagate && !caught {
				errs = append(errs, effErr(errors.EFF001, "unhandled fallible call to \""+key+"\"", ex))
			}
		case *ast.CatchExpr:
			_, known := calleeKey(ex.Expr)
			if known {
				key, _ := calleeKey(ex.Expr)
				if !ei.isFallible(key) {
					errs = append(errs, effErr(errors.EFF003, "`catch` used on infallible call to \""+key+"\"", ex))
				}
			}
			walkExpr(ex.Expr, true)
			walkExpr(ex.Fallback, false)
		case *ast.BinaryExpr:
			walkExpr(ex.Left, false)
			walkExpr(ex.Right, false)
		case *ast.UnaryExpr:
			walkExpr(ex.Expr, false)
		case *ast.FieldAccess:
			walkExpr(ex.Recv, false)
		case *ast.IndexExpr:
			walkExpr(ex.Recv, false)
			walkExpr(ex.Index, false)
		case *ast.NullableUnwrap:
			walkExpr(ex.Expr, false)
		case *ast.CastExpr:
			walkExpr(ex.Expr, false)
		case *ast.RangeExpr:
			walkExpr(ex.Start, false)
			walkExpr(ex.End, false)
		case *ast.StructLiteral:
			for _, fl := range ex.Fields {
				walkExpr(fl.Value, false)
			}
		case *ast.ArrayLiteral:
			for _, el := range ex.Elems {
				walkExpr(el, false)
			}
		case *ast.MapLiteral:
			for _, en := range ex.Entries {
				walkExpr(en.Key, false)
				walkExpr(en.Value, false)
			}
		case *ast.SetLiteral:
			for _, el := range ex.Elems {
				walkExpr(el, false)
			}
		case *ast.InterpString:
			for _, sub := range ex.Exprs {
				walkExpr(sub, false)
			}
		}
	}
	var walkBlock func(*ast.Block)
	walkBlock = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			switch st := s.(type) {
			case *ast.LetStmt:
				walkExpr(st.Value, false)
			case *ast.AssignStmt:
				walkExpr(st.Target, false)
				walkExpr(st.Value, false)
			case *ast.ExprStmt:
				walkExpr(st.Expr, false)
			case *ast.IfStmt:
				walkExpr(st.Cond, false)
				walkBlock(st.Then)
				walkBlock(st.Else)
			case *ast.WhileStmt:
				walkExpr(st.Cond, false)
				walkBlock(st.Body)
			case *ast.ForStmt:
				walkExpr(st.Iter, false)
				walkBlock(st.Body)
			case *ast.MatchStmt:
				walkExpr(st.Match.Subject, false)
				for _, arm := range st.Match.Arms {
					walkBlock(arm.Body)
				}
			case *ast.ReturnStmt:
				walkExpr(st.Value, false)
			case *ast.RaiseStmt:
				walkExpr(st.Value, false)
			}
		}
	}
	walkBlock(f.decl.Body)
	return errs
}

func effErr(code, msg string, n ast.Node) error {
	span := n.Position()
	return &errors.ReportError{Rep: errors.New("effect", code, msg, &span, nil)}
}
