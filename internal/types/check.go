package types

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// binding is one name's type and mutability inside a lexical scope.
type binding struct {
	typ Type
	mut bool
}

// scope is a singly-linked chain of block scopes, innermost first.
type scope struct {
	vars   map[string]*binding
	parent *scope
}

func newScope(parent *scope) *scope { return &scope{vars: map[string]*binding{}, parent: parent} }

func (s *scope) lookup(name string) (*binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (s *scope) define(name string, b *binding) { s.vars[name] = b }

// Checker runs Phase B: statement and expression typing over every
// function/method body, given the Env Register already built.
type Checker struct {
	env       *Env
	errs      []error
	ret       Type
	inEnsures bool
	retIsVoid bool
}

// Check runs Phase B over prog and returns every type/effect-adjacent
// error found in function and method bodies. Error-effect inference and
// DI validation are separate whole-program passes (see Infer and
// ValidateDI) since both need the full call graph, not a single body at
// a time.
func Check(prog *ast.Program, env *Env) []error {
	c := &Checker{env: env}
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			c.checkDecl(d)
		}
	}
	return c.errs
}

func (c *Checker) checkDecl(d ast.Decl) {
	switch decl := d.(type) {
	case *ast.FuncDecl:
		c.checkFunc(decl, nil)
	case *ast.ClassDecl:
		self := Class{Name: decl.Name}
		ci := c.env.Classes[decl.Name]
		for _, m := range decl.Methods {
			c.checkFunc(m, self)
		}
		c.errs = append(c.errs, CheckLiskov(c.env, decl)...)
		c.checkAmbiguousTraitMethods(decl, ci)
		c.checkClassContract(decl, self)
	case *ast.TraitDecl:
		self := Trait{Name: decl.Name}
		for _, m := range decl.Defaults {
			c.checkFunc(m, self)
		}
	case *ast.StageDecl:
		self := Class{Name: decl.Name}
		for _, m := range decl.Methods {
			c.checkFunc(m, self)
		}
	}
}

func (c *Checker) checkAmbiguousTraitMethods(decl *ast.ClassDecl, ci *ClassInfo) {
	seenNames := map[string]bool{}
	for _, tn := range decl.Traits {
		ti, ok := c.env.Traits[tn]
		if !ok {
			continue
		}
		for name := range ti.Required {
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
			lookup := c.env.LookupMethod(decl.Name, name)
			if lookup != nil && lookup.Ambiguous {
				c.err(errors.TYP008, "method \""+name+"\" has a default from multiple traits and no override on \""+decl.Name+"\"", decl)
			}
		}
	}
}

func (c *Checker) checkFunc(f *ast.FuncDecl, self Type) {
	if f.Body == nil {
		return
	}
	sig, _ := resolveFuncSig(c.env, f, self)
	sc := newScope(nil)
	if f.HasSelf {
		sc.define("self", &binding{typ: self, mut: f.IsMut})
	}
	for i, p := range f.Params {
		sc.define(p.Name, &binding{typ: sig.Params[i], mut: p.Mut})
	}
	prevRet, prevVoid := c.ret, c.retIsVoid
	c.ret, c.retIsVoid = sig.Ret, Equal(sig.Ret, Void)
	c.checkContract(f.Contract, sc)
	c.checkBlockIn(f.Body, sc)
	if f.IsGenerator && !Equal(sig.Ret, Void) {
		c.err(errors.TYP009, "generator \""+f.Name+"\" must not declare a non-void return type", f)
	}
	c.ret, c.retIsVoid = prevRet, prevVoid
}

func (c *Checker) checkContract(ct ast.Contract, sc *scope) {
	for _, e := range ct.Requires {
		t := c.checkExpr(e, sc)
		if t != nil && !Equal(t, Bool) {
			c.err(errors.TYP001, "requires clause must be bool", e)
		}
		for _, err := range ValidateDecidable(e, false, false) {
			c.errs = append(c.errs, err)
		}
	}
	prev := c.inEnsures
	c.inEnsures = true
	for _, e := range ct.Ensures {
		t := c.checkExpr(e, sc)
		if t != nil && !Equal(t, Bool) {
			c.err(errors.TYP001, "ensures clause must be bool", e)
		}
		for _, err := range ValidateDecidable(e, true, !c.retIsVoid) {
			c.errs = append(c.errs, err)
		}
	}
	c.inEnsures = prev
	for _, e := range ct.Invariant {
		t := c.checkExpr(e, sc)
		if t != nil && !Equal(t, Bool) {
			c.err(errors.TYP001, "invariant clause must be bool", e)
		}
		for _, err := range ValidateDecidable(e, false, false) {
			c.errs = append(c.errs, err)
		}
	}
}

func (c *Checker) checkClassContract(decl *ast.ClassDecl, self Type) {
	if len(decl.Contract.Requires) == 0 && len(decl.Contract.Ensures) == 0 && len(decl.Contract.Invariant) == 0 {
		return
	}
	sc := newScope(nil)
	sc.define("self", &binding{typ: self})
	c.checkContract(decl.Contract, sc)
}

func (c *Checker) checkBlockIn(b *ast.Block, parent *scope) {
	if b == nil {
		return
	}
	inner := newScope(parent)
	for _, s := range b.Stmts {
		c.checkStmt(s, inner)
	}
}

func (c *Checker) checkStmt(s ast.Stmt, sc *scope) {
	switch st := s.(type) {
	case *ast.LetStmt:
		vt := c.checkExpr(st.Value, sc)
		if st.Type != nil {
			declared, errs := c.env.ResolveType(st.Type, noGenerics())
			c.errs = append(c.errs, errs...)
			if vt != nil && declared != nil && !AssignableTo(vt, declared) {
				c.err(errors.TYP001, "cannot assign "+vt.String()+" to declared type "+declared.String(), st)
			}
			sc.define(st.Name, &binding{typ: declared, mut: st.Mut})
		} else {
			sc.define(st.Name, &binding{typ: vt, mut: st.Mut})
		}
	case *ast.AssignStmt:
		tt := c.checkExpr(st.Target, sc)
		vt := c.checkExpr(st.Value, sc)
		if id, ok := st.Target.(*ast.Identifier); ok {
			if b, found := sc.lookup(id.Name); found && !b.mut {
				c.err(errors.TYP004, "cannot assign to immutable binding \""+id.Name+"\"", st)
			}
		}
		if ix, ok := st.Target.(*ast.IndexExpr); ok {
			if _, isArr := c.env.ExprTypes[ix.Recv].(Array); isArr {
				c.err(errors.TYP001, "arrays do not support indexed assignment", st)
			}
		}
		if st.Op == "=" {
			if tt != nil && vt != nil && !AssignableTo(vt, tt) {
				c.err(errors.TYP001, "cannot assign "+vt.String()+" to "+tt.String(), st)
			}
		} else if tt != nil && !IsNumeric(tt) {
			c.err(errors.TYP001, "compound assignment operator \""+st.Op+"\" requires a numeric operand", st)
		}
	case *ast.ExprStmt:
		c.checkExpr(st.Expr, sc)
	case *ast.IfStmt:
		ct := c.checkExpr(st.Cond, sc)
		if ct != nil && !Equal(ct, Bool) {
			c.err(errors.TYP001, "if condition must be bool, got "+ct.String(), st)
		}
		c.checkBlockIn(st.Then, sc)
		c.checkBlockIn(st.Else, sc)
	case *ast.WhileStmt:
		ct := c.checkExpr(st.Cond, sc)
		if ct != nil && !Equal(ct, Bool) {
			c.err(errors.TYP001, "while condition must be bool, got "+ct.String(), st)
		}
		c.checkBlockIn(st.Body, sc)
	case *ast.ForStmt:
		it := c.checkExpr(st.Iter, sc)
		elem := c.iterableElemType(it, st)
		inner := newScope(sc)
		inner.define(st.Name, &binding{typ: elem})
		c.checkBlockIn(st.Body, inner)
	case *ast.MatchStmt:
		c.checkMatch(st.Match, sc)
	case *ast.ReturnStmt:
		vt := Type(Void)
		if st.Value != nil {
			vt = c.checkExpr(st.Value, sc)
		}
		if c.ret != nil && vt != nil && !AssignableTo(vt, c.ret) {
			c.err(errors.TYP001, "return type "+vt.String()+" incompatible with declared "+c.ret.String(), st)
		}
	case *ast.RaiseStmt:
		c.checkExpr(st.Value, sc)
	}
}

func (c *Checker) iterableElemType(it Type, n ast.Node) Type {
	switch t := it.(type) {
	case Array:
		return t.Elem
	case Set:
		return t.Elem
	case Stream:
		return t.Elem
	case nil:
		return nil
	default:
		c.err(errors.TYP001, "for-loop iterable must be an array, set, or stream, got "+t.String(), n)
		return nil
	}
}

// checkExpr types e and records the result in the environment's
// ExprTypes table (keyed by node identity) so later passes — chiefly
// internal/irgen — can consult an expression's type without re-running
// inference over the body.
func (c *Checker) checkExpr(e ast.Expr, sc *scope) Type {
	t := c.checkExprRaw(e, sc)
	if e != nil && t != nil {
		c.env.ExprTypes[e] = t
	}
	return t
}

func (c *Checker) checkExprRaw(e ast.Expr, sc *scope) Type {
	switch ex := e.(type) {
	case nil:
		return Void
	case *ast.Literal:
		switch ex.Kind {
		case ast.IntLit:
			return Int
		case ast.FloatLit:
			return Float
		case ast.StringLit:
			return String
		case ast.BoolLit:
			return Bool
		case ast.NoneLit:
			return Nullable{Inner: Generic{Param: "_"}}
		}
		return nil
	case *ast.InterpString:
		for _, sub := range ex.Exprs {
			c.checkExpr(sub, sc)
		}
		return String
	case *ast.Identifier:
		if b, ok := sc.lookup(ex.Name); ok {
			return b.typ
		}
		if sig, ok := c.env.Functions[ex.Name]; ok {
			return Fn{Params: sig.Params, Ret: sig.Ret}
		}
		c.err(errors.MOD002, "unknown identifier \""+ex.Name+"\"", ex)
		return nil
	case *ast.BinaryExpr:
		lt := c.checkExpr(ex.Left, sc)
		rt := c.checkExpr(ex.Right, sc)
		return c.binaryResult(ex, lt, rt)
	case *ast.UnaryExpr:
		t := c.checkExpr(ex.Expr, sc)
		if ex.Op == "!" {
			if t != nil && !Equal(t, Bool) {
				c.err(errors.TYP001, "`!` requires a bool operand", ex)
			}
			return Bool
		}
		if t != nil && !IsNumeric(t) {
			c.err(errors.TYP001, "unary \""+ex.Op+"\" requires a numeric operand", ex)
		}
		return t
	case *ast.CallExpr:
		ct := c.checkExpr(ex.Callee, sc)
		argTypes := make([]Type, len(ex.Args))
		for i, a := range ex.Args {
			argTypes[i] = c.checkExpr(a, sc)
		}
		fn, ok := ct.(Fn)
		if !ok {
			if ct != nil {
				c.err(errors.TYP001, "call target is not callable", ex)
			}
			return nil
		}
		if len(argTypes) != len(fn.Params) {
			c.err(errors.TYP001, "argument count mismatch", ex)
		} else {
			for i, at := range argTypes {
				if at != nil && !AssignableTo(at, fn.Params[i]) {
					c.err(errors.TYP001, "argument "+fn.Params[i].String()+" mismatch", ex.Args[i])
				}
			}
		}
		return fn.Ret
	case *ast.FieldAccess:
		rt := c.checkExpr(ex.Recv, sc)
		return c.fieldType(rt, ex.Field, ex)
	case *ast.MethodCall:
		rt := c.checkExpr(ex.Recv, sc)
		for _, a := range ex.Args {
			c.checkExpr(a, sc)
		}
		return c.methodCallType(rt, ex, sc)
	case *ast.IndexExpr:
		rt := c.checkExpr(ex.Recv, sc)
		it := c.checkExpr(ex.Index, sc)
		switch t := rt.(type) {
		case Array:
			if it != nil && !Equal(it, Int) {
				c.err(errors.TYP001, "array index must be int", ex)
			}
			return t.Elem
		case Map:
			if it != nil && !Equal(it, t.Key) {
				c.err(errors.TYP001, "map index must be "+t.Key.String(), ex)
			}
			return Nullable{Inner: t.Val}
		case nil:
			return nil
		default:
			c.err(errors.TYP001, "cannot index "+t.String(), ex)
			return nil
		}
	case *ast.NullableUnwrap:
		it := c.checkExpr(ex.Expr, sc)
		if n, ok := it.(Nullable); ok {
			return n.Inner
		}
		if it != nil {
			c.err(errors.TYP001, "`?` applied to non-nullable type "+it.String(), ex)
		}
		return it
	case *ast.CastExpr:
		c.checkExpr(ex.Expr, sc)
		t, errs := c.env.ResolveType(ex.Type, noGenerics())
		c.errs = append(c.errs, errs...)
		return t
	case *ast.CatchExpr:
		et := c.checkExpr(ex.Expr, sc)
		if ex.Fallback != nil {
			ft := c.checkExpr(ex.Fallback, sc)
			if et != nil && ft != nil && !AssignableTo(ft, et) && !AssignableTo(et, ft) {
				c.err(errors.TYP001, "catch fallback type does not match the caught expression's type", ex)
			}
		}
		if ex.Block != nil {
			inner := newScope(sc)
			if ex.Binder != "" {
				inner.define(ex.Binder, &binding{typ: PlutoError{Name: "Error"}})
			}
			c.checkBlockIn(ex.Block, inner)
		}
		return et
	case *ast.RangeExpr:
		c.checkExpr(ex.Start, sc)
		c.checkExpr(ex.End, sc)
		return Array{Elem: Int}
	case *ast.ClosureExpr:
		return c.checkClosure(ex, sc)
	case *ast.StructLiteral:
		return c.structLiteralType(ex, sc)
	case *ast.ArrayLiteral:
		var elem Type
		for _, el := range ex.Elems {
			t := c.checkExpr(el, sc)
			if elem == nil {
				elem = t
			}
		}
		if elem == nil {
			elem = Generic{Param: "_"}
		}
		return Array{Elem: elem}
	case *ast.MapLiteral:
		var kt, vt Type
		for _, entry := range ex.Entries {
			k := c.checkExpr(entry.Key, sc)
			v := c.checkExpr(entry.Value, sc)
			if kt == nil {
				kt = k
			}
			if vt == nil {
				vt = v
			}
		}
		if kt == nil {
			kt = Generic{Param: "_"}
		}
		if vt == nil {
			vt = Generic{Param: "_"}
		}
		return Map{Key: kt, Val: vt}
	case *ast.SetLiteral:
		var elem Type
		for _, el := range ex.Elems {
			t := c.checkExpr(el, sc)
			if elem == nil {
				elem = t
			}
		}
		if elem == nil {
			elem = Generic{Param: "_"}
		}
		return Set{Elem: elem}
	case *ast.SpawnExpr:
		if ex.Call != nil {
			rt := c.checkExpr(ex.Call, sc)
			return Task{Elem: rt}
		}
		return Task{Elem: Void}
	case *ast.YieldExpr:
		c.checkExpr(ex.Value, sc)
		return Void
	case *ast.OldExpr:
		if !c.inEnsures {
			c.err(errors.CON002, "`old` used outside an ensures clause", ex)
		}
		return c.checkExpr(ex.Inner, sc)
	case *ast.ResultExpr:
		if !c.inEnsures {
			c.err(errors.CON002, "`result` used outside an ensures clause", ex)
		} else if c.retIsVoid {
			c.err(errors.CON002, "`result` used in a void function's ensures clause", ex)
		}
		return c.ret
	case *ast.MatchExpr:
		return c.checkMatch(ex, sc)
	}
	return nil
}

func (c *Checker) checkClosure(ex *ast.ClosureExpr, sc *scope) Type {
	inner := newScope(sc)
	params := make([]Type, len(ex.Params))
	for i, p := range ex.Params {
		t, errs := c.env.ResolveType(p.Type, noGenerics())
		c.errs = append(c.errs, errs...)
		params[i] = t
		inner.define(p.Name, &binding{typ: t, mut: p.Mut})
	}
	ret := Type(Void)
	if ex.Body != nil {
		ret = c.checkExpr(ex.Body, inner)
	}
	if ex.BodyStmt != nil {
		c.checkBlockIn(ex.BodyStmt, inner)
	}
	return Fn{Params: params, Ret: ret}
}

func classNameOf(t Type) (string, bool) {
	if c, ok := t.(Class); ok {
		return c.Name, true
	}
	return "", false
}

func (c *Checker) fieldType(rt Type, field string, n ast.Node) Type {
	switch t := rt.(type) {
	case Class:
		ci, ok := c.env.Classes[t.Name]
		if !ok {
			return nil
		}
		if ft, ok := ci.Fields[field]; ok {
			return ft
		}
		c.err(errors.TYP001, "class \""+t.Name+"\" has no field \""+field+"\"", n)
		return nil
	case PlutoError:
		ei, ok := c.env.Errors[t.Name]
		if !ok {
			return nil
		}
		if ft, ok := ei.Fields[field]; ok {
			return ft
		}
		c.err(errors.TYP001, "error \""+t.Name+"\" has no field \""+field+"\"", n)
		return nil
	case nil:
		return nil
	default:
		c.err(errors.TYP001, "cannot access field \""+field+"\" on "+t.String(), n)
		return nil
	}
}

func (c *Checker) methodCallType(rt Type, ex *ast.MethodCall, sc *scope) Type {
	if _, ok := rt.(Generic); ok {
		// A method called on a bare type parameter can't be resolved until
		// monomorphization substitutes a concrete type for it; the structural
		// bound is checked at each instantiation site instead (internal/mono).
		return nil
	}
	className, ok := classNameOf(rt)
	if !ok {
		if rt != nil {
			c.err(errors.TYP001, "method call on non-class type "+rt.String(), ex)
		}
		return nil
	}
	lookup := c.env.LookupMethod(className, ex.Method)
	if lookup == nil {
		c.err(errors.TYP001, "class \""+className+"\" has no method \""+ex.Method+"\"", ex)
		return nil
	}
	if lookup.Ambiguous {
		c.err(errors.TYP008, "method \""+ex.Method+"\" is ambiguous between traits on \""+className+"\"", ex)
	}
	if lookup.Sig.Decl.IsMut {
		if id, ok := ex.Recv.(*ast.Identifier); ok {
			if b, found := sc.lookup(id.Name); found && !b.mut {
				c.err(errors.TYP004, "cannot call mutating method \""+ex.Method+"\" through an immutable binding", ex)
			}
		}
	}
	if len(ex.Args) != len(lookup.Sig.Params) {
		c.err(errors.TYP001, "argument count mismatch calling \""+ex.Method+"\"", ex)
	}
	return lookup.Sig.Ret
}

func (c *Checker) structLiteralType(ex *ast.StructLiteral, sc *scope) Type {
	if ci, ok := c.env.Classes[ex.TypeName]; ok {
		for _, f := range ex.Fields {
			ft := c.checkExpr(f.Value, sc)
			declared, ok := ci.Fields[f.Name]
			if !ok {
				c.err(errors.TYP001, "class \""+ex.TypeName+"\" has no field \""+f.Name+"\"", ex)
				continue
			}
			if ft != nil && declared != nil && !AssignableTo(ft, declared) {
				c.err(errors.TYP001, "field \""+f.Name+"\" expects "+declared.String()+", got "+ft.String(), ex)
			}
		}
		return Class{Name: ex.TypeName}
	}
	if ei, ok := c.env.Errors[ex.TypeName]; ok {
		for _, f := range ex.Fields {
			ft := c.checkExpr(f.Value, sc)
			declared, ok := ei.Fields[f.Name]
			if !ok {
				c.err(errors.TYP001, "error \""+ex.TypeName+"\" has no field \""+f.Name+"\"", ex)
				continue
			}
			if ft != nil && declared != nil && !AssignableTo(ft, declared) {
				c.err(errors.TYP001, "field \""+f.Name+"\" expects "+declared.String()+", got "+ft.String(), ex)
			}
		}
		return PlutoError{Name: ex.TypeName}
	}
	for _, f := range ex.Fields {
		c.checkExpr(f.Value, sc)
	}
	c.err(errors.MOD002, "unknown type \""+ex.TypeName+"\" in struct literal", ex)
	return nil
}

func (c *Checker) binaryResult(ex *ast.BinaryExpr, lt, rt Type) Type {
	switch ex.Op {
	case "+":
		if Equal(lt, String) && Equal(rt, String) {
			return String
		}
		if IsNumeric(lt) && Equal(lt, rt) {
			return lt
		}
		if lt != nil && rt != nil {
			c.err(errors.TYP001, "`+` requires two numeric or two string operands", ex)
		}
		return lt
	case "-", "*", "/", "%":
		if IsNumeric(lt) && Equal(lt, rt) {
			return lt
		}
		if lt != nil && rt != nil {
			c.err(errors.TYP001, "`"+ex.Op+"` requires two operands of the same numeric type", ex)
		}
		return lt
	case "<", "<=", ">", ">=":
		if IsNumeric(lt) && Equal(lt, rt) {
			return Bool
		}
		if lt != nil && rt != nil {
			c.err(errors.TYP001, "`"+ex.Op+"` requires two operands of the same numeric type", ex)
		}
		return Bool
	case "==", "!=":
		if lt != nil && rt != nil && !Equal(lt, rt) && !AssignableTo(lt, rt) && !AssignableTo(rt, lt) {
			c.err(errors.TYP001, "cannot compare "+lt.String()+" with "+rt.String(), ex)
		}
		return Bool
	case "&&", "||":
		if lt != nil && !Equal(lt, Bool) || rt != nil && !Equal(rt, Bool) {
			c.err(errors.TYP001, "`"+ex.Op+"` requires bool operands", ex)
		}
		return Bool
	default:
		return lt
	}
}

func (c *Checker) checkMatch(m *ast.MatchExpr, sc *scope) Type {
	subT := c.checkExpr(m.Subject, sc)
	en, ok := subT.(Enum)
	if !ok {
		if subT != nil {
			c.err(errors.TYP001, "match subject must be an enum, got "+subT.String(), m)
		}
		for _, arm := range m.Arms {
			c.checkBlockIn(arm.Body, sc)
		}
		return Void
	}
	ei, ok := c.env.Enums[en.Name]
	if !ok {
		return Void
	}
	covered := map[string]bool{}
	hasWildcard := false
	for _, arm := range m.Arms {
		if arm.IsWildcard {
			hasWildcard = true
			c.checkBlockIn(arm.Body, sc)
			continue
		}
		vi, ok := ei.Variants[arm.VariantName]
		if !ok {
			c.err(errors.TYP001, "enum \""+en.Name+"\" has no variant \""+arm.VariantName+"\"", m)
			continue
		}
		covered[arm.VariantName] = true
		armScope := newScope(sc)
		for i, bindName := range arm.Binds {
			if i < len(vi.FieldNames) {
				armScope.define(bindName, &binding{typ: vi.FieldTypes[vi.FieldNames[i]]})
			}
		}
		c.checkBlockIn(arm.Body, armScope)
	}
	if !hasWildcard {
		for _, vn := range ei.Order {
			if !covered[vn] {
				c.err(errors.TYP006, "match on \""+en.Name+"\" does not cover variant \""+vn+"\"", m)
			}
		}
	}
	return Void
}

func (c *Checker) err(code, msg string, n ast.Node) {
	span := n.Position()
	c.errs = append(c.errs, &errors.ReportError{Rep: errors.New("type", code, msg, &span, nil)})
}
