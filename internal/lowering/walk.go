// Package lowering runs the fixed-order AST-rewriting passes between
// module resolution and type checking: prelude injection, stage
// flattening, ambient desugaring, closure lifting, generator desugaring,
// and spawn desugaring.
package lowering

import "github.com/pluto-lang/plutoc/internal/ast"

// ExprRewriter is applied post-order (children first) to every
// expression reachable from a statement or function body. Several
// passes only need to observe or replace expressions, so they share this
// walker instead of hand-rolling their own descent.
type ExprRewriter func(ast.Expr) ast.Expr

// RewriteBlock rewrites every statement in b in place.
func RewriteBlock(b *ast.Block, rw ExprRewriter) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		b.Stmts[i] = RewriteStmt(s, rw)
	}
}

// RewriteStmt rewrites the expressions held by one statement in place,
// recursing into nested blocks.
func RewriteStmt(s ast.Stmt, rw ExprRewriter) ast.Stmt {
	switch st := s.(type) {
	case *ast.LetStmt:
		st.Value = RewriteExpr(st.Value, rw)
	case *ast.AssignStmt:
		st.Target = RewriteExpr(st.Target, rw)
		st.Value = RewriteExpr(st.Value, rw)
	case *ast.ExprStmt:
		st.Expr = RewriteExpr(st.Expr, rw)
	case *ast.IfStmt:
		st.Cond = RewriteExpr(st.Cond, rw)
		RewriteBlock(st.Then, rw)
		RewriteBlock(st.Else, rw)
	case *ast.WhileStmt:
		st.Cond = RewriteExpr(st.Cond, rw)
		RewriteBlock(st.Body, rw)
	case *ast.ForStmt:
		st.Iter = RewriteExpr(st.Iter, rw)
		RewriteBlock(st.Body, rw)
	case *ast.MatchStmt:
		rewritten := RewriteExpr(st.Match, rw)
		if m, ok := rewritten.(*ast.MatchExpr); ok {
			st.Match = m
		}
	case *ast.ReturnStmt:
		st.Value = RewriteExpr(st.Value, rw)
	case *ast.RaiseStmt:
		st.Value = RewriteExpr(st.Value, rw)
	}
	return s
}

// RewriteExpr rewrites e's children post-order, then applies rw to e
// itself. rw may return a different node to replace e at its use site.
func RewriteExpr(e ast.Expr, rw ExprRewriter) ast.Expr {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case *ast.BinaryExpr:
		ex.Left = RewriteExpr(ex.Left, rw)
		ex.Right = RewriteExpr(ex.Right, rw)
	case *ast.UnaryExpr:
		ex.Expr = RewriteExpr(ex.Expr, rw)
	case *ast.CallExpr:
		ex.Callee = RewriteExpr(ex.Callee, rw)
		for i := range ex.Args {
			ex.Args[i] = RewriteExpr(ex.Args[i], rw)
		}
	case *ast.FieldAccess:
		ex.Recv = RewriteExpr(ex.Recv, rw)
	case *ast.MethodCall:
		ex.Recv = RewriteExpr(ex.Recv, rw)
		for i := range ex.Args {
			ex.Args[i] = RewriteExpr(ex.Args[i], rw)
		}
	case *ast.IndexExpr:
		ex.Recv = RewriteExpr(ex.Recv, rw)
		ex.Index = RewriteExpr(ex.Index, rw)
	case *ast.NullableUnwrap:
		ex.Expr = RewriteExpr(ex.Expr, rw)
	case *ast.CastExpr:
		ex.Expr = RewriteExpr(ex.Expr, rw)
	case *ast.CatchExpr:
		ex.Expr = RewriteExpr(ex.Expr, rw)
		ex.Fallback = RewriteExpr(ex.Fallback, rw)
		RewriteBlock(ex.Block, rw)
	case *ast.RangeExpr:
		ex.Start = RewriteExpr(ex.Start, rw)
		ex.End = RewriteExpr(ex.End, rw)
	case *ast.ClosureExpr:
		ex.Body = RewriteExpr(ex.Body, rw)
		RewriteBlock(ex.BodyStmt, rw)
	case *ast.StructLiteral:
		for i := range ex.Fields {
			ex.Fields[i].Value = RewriteExpr(ex.Fields[i].Value, rw)
		}
	case *ast.ArrayLiteral:
		for i := range ex.Elems {
			ex.Elems[i] = RewriteExpr(ex.Elems[i], rw)
		}
	case *ast.MapLiteral:
		for i := range ex.Entries {
			ex.Entries[i].Key = RewriteExpr(ex.Entries[i].Key, rw)
			ex.Entries[i].Value = RewriteExpr(ex.Entries[i].Value, rw)
		}
	case *ast.SetLiteral:
		for i := range ex.Elems {
			ex.Elems[i] = RewriteExpr(ex.Elems[i], rw)
		}
	case *ast.SpawnExpr:
		if ex.Call != nil {
			if c, ok := RewriteExpr(ex.Call, rw).(*ast.CallExpr); ok {
				ex.Call = c
			}
		}
	case *ast.YieldExpr:
		ex.Value = RewriteExpr(ex.Value, rw)
	case *ast.OldExpr:
		ex.Inner = RewriteExpr(ex.Inner, rw)
	case *ast.ResultExpr:
		// leaf node, nothing to recurse into
	case *ast.MatchExpr:
		ex.Subject = RewriteExpr(ex.Subject, rw)
		for i := range ex.Arms {
			RewriteBlock(ex.Arms[i].Body, rw)
		}
	case *ast.InterpString:
		for i := range ex.Exprs {
			ex.Exprs[i] = RewriteExpr(ex.Exprs[i], rw)
		}
	}
	return rw(e)
}

// WalkFuncBodies applies fn to the body block of every function and
// method declared anywhere in prog (free functions, class/trait methods,
// stage methods). Declarations with no body (trait requirements, externs)
// are skipped.
func WalkFuncBodies(prog *ast.Program, fn func(*ast.FuncDecl)) {
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			walkDeclFuncs(d, fn)
		}
	}
}

// collectBoundNames walks b, recording every name a statement introduces
// into scope: let bindings, for-loop variables, and match-arm binds. It
// does not descend into nested ClosureExpr bodies — a closure's own
// locals are private to it and irrelevant to an enclosing scope's bound
// set — but RewriteExpr never exposes those anyway once closures have
// been lifted, so plain recursion through statements suffices.
func collectBoundNames(b *ast.Block, names map[string]bool) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			names[st.Name] = true
		case *ast.ForStmt:
			names[st.Name] = true
			collectBoundNames(st.Body, names)
		case *ast.IfStmt:
			collectBoundNames(st.Then, names)
			collectBoundNames(st.Else, names)
		case *ast.WhileStmt:
			collectBoundNames(st.Body, names)
		case *ast.MatchStmt:
			for _, arm := range st.Match.Arms {
				for _, bind := range arm.Binds {
					names[bind] = true
				}
				collectBoundNames(arm.Body, names)
			}
		}
	}
}

func walkDeclFuncs(d ast.Decl, fn func(*ast.FuncDecl)) {
	switch decl := d.(type) {
	case *ast.FuncDecl:
		if decl.Body != nil {
			fn(decl)
		}
	case *ast.ClassDecl:
		for _, m := range decl.Methods {
			if m.Body != nil {
				fn(m)
			}
		}
	case *ast.TraitDecl:
		for _, m := range decl.Defaults {
			if m.Body != nil {
				fn(m)
			}
		}
	case *ast.StageDecl:
		for _, m := range decl.Methods {
			if m.Body != nil {
				fn(m)
			}
		}
	}
}
