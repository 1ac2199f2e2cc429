package irgen

import (
	"fmt"
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/mono"
	"github.com/pluto-lang/plutoc/internal/types"
)

// Lower builds the complete IR Module for a program that has already run
// through internal/lowering, internal/types.Run, and internal/mono: one
// Func per non-generic top-level function, one Func per non-generic
// class's method, one Func per (function/method of a) monomorphized
// instance, and one Vtable per (trait, class) pair actually implemented.
//
// Monomorphized instances reuse the generic declaration's original body
// unchanged except for the mangled symbol name: every field, parameter,
// and local occupies exactly one word regardless of its substituted
// type (§4.7's fixed layout), so there is no type-specific instruction
// shape to specialize per instantiation — only the bound-checking
// internal/mono already performed distinguishes one instantiation from
// another.
func Lower(prog *ast.Program, res *types.Result, plan *mono.Plan) (*Module, []error) {
	b := &moduleBuilder{env: res.Env, effects: res.Effects, mod: &Module{}}
	var errs []error

	for _, m := range prog.Modules {
		for _, d := range m.Decls {
			switch decl := d.(type) {
			case *ast.FuncDecl:
				if len(decl.TypeParams) != 0 || decl.Body == nil {
					continue
				}
				fn, err := b.lowerFunc(decl.Name, "", decl)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				b.mod.Funcs = append(b.mod.Funcs, fn)
			case *ast.ClassDecl:
				if len(decl.TypeParams) != 0 {
					continue
				}
				for _, m := range decl.Methods {
					if m.Body == nil {
						continue
					}
					fn, err := b.lowerFunc(MethodSymbol(decl.Name, m.Name), decl.Name, m)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					b.mod.Funcs = append(b.mod.Funcs, fn)
				}
			}
		}
	}

	if plan != nil {
		for _, inst := range plan.Instances {
			switch {
			case inst.FuncDecl != nil:
				fn, err := b.lowerFunc(inst.Mangled, "", inst.FuncDecl)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				b.mod.Funcs = append(b.mod.Funcs, fn)
			case inst.ClassDecl != nil:
				for _, m := range inst.ClassDecl.Methods {
					if m.Body == nil {
						continue
					}
					fn, err := b.lowerFunc(MethodSymbol(inst.Mangled, m.Name), inst.ClassDecl.Name, m)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					b.mod.Funcs = append(b.mod.Funcs, fn)
				}
			}
		}
	}

	for className, ci := range res.Env.Classes {
		for _, traitName := range ci.Traits {
			vt, err := BuildVtable(res.Env, traitName, className)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			b.mod.Vtables = append(b.mod.Vtables, vt)
		}
	}

	return b.mod, errs
}

// moduleBuilder holds the whole-module context a function builder needs:
// the declaration environment (for field offsets, fallibility, method
// resolution) and the accumulated Module.
type moduleBuilder struct {
	env     *types.Env
	effects *types.EffectInfo
	mod     *Module
}

func (mb *moduleBuilder) lowerFunc(symbol, ownerClass string, fd *ast.FuncDecl) (*Func, error) {
	fb := &funcBuilder{
		mb:         mb,
		ownerClass: ownerClass,
		locals:     map[string]Value{},
		loopStack:  nil,
	}
	fn := &Func{Name: symbol, HasSelf: fd.HasSelf}
	for _, p := range fd.Params {
		fn.Params = append(fn.Params, Param{Name: p.Name, ByPointer: !isPrimitiveType(p.Type)})
		fb.locals[p.Name] = ParamRef(p.Name)
	}
	if fd.HasSelf {
		fb.locals["self"] = SelfRef()
	}
	fn.ReturnVoid = fd.Return == nil
	fn.Fallible = isFallible(mb.effects, funcKeyFor(ownerClass, fd.Name))
	fb.fn = fn

	entry := fb.newBlock()
	fn.Entry = entry.ID
	fb.cur = entry

	if ownerClass != "" {
		fb.emitRequires(fd)
	}
	fb.lowerBlock(fd.Body)
	fb.terminateFallthrough(fn.ReturnVoid)

	return fn, nil
}

// isFallible reports whether key (a func/method key of the form
// "name" or "Class.method") can propagate an error, consulting
// EffectInfo.Fallible directly since internal/types does not export a
// helper method for it.
func isFallible(ei *types.EffectInfo, key string) bool {
	return ei != nil && len(ei.Fallible[key]) > 0
}

func funcKeyFor(owner, name string) string {
	if owner == "" {
		return name
	}
	return owner + "." + name
}

func isPrimitiveType(t ast.TypeExpr) bool {
	p, ok := t.(*ast.PrimitiveType)
	if !ok {
		return false
	}
	switch p.Name {
	case "int", "float", "bool":
		return true
	default:
		return false
	}
}

// funcBuilder lowers a single function/method body into Blocks of Instr.
type funcBuilder struct {
	mb         *moduleBuilder
	fn         *Func
	ownerClass string
	locals     map[string]Value
	cur        *Block
	loopStack  []loopCtx
}

type loopCtx struct {
	breakTo    int
	continueTo int
}

func (fb *funcBuilder) newBlock() *Block {
	b := &Block{ID: len(fb.fn.Blocks)}
	fb.fn.Blocks = append(fb.fn.Blocks, b)
	return b
}

func (fb *funcBuilder) newTemp() int {
	t := fb.fn.NumTemps
	fb.fn.NumTemps++
	return t
}

func (fb *funcBuilder) emit(i Instr) { fb.cur.Instrs = append(fb.cur.Instrs, i) }

func (fb *funcBuilder) setTerm(t Terminator) {
	if fb.cur.Term == nil {
		fb.cur.Term = t
	}
}

// emitRequires compiles a method's `requires` clause checks at body
// entry, per §4.7's contract-check compilation.
func (fb *funcBuilder) emitRequires(fd *ast.FuncDecl) {
	for _, req := range fd.Contract.Requires {
		cond := fb.lowerExpr(req)
		fb.emit(&ContractCheck{Node: newNode(req.Position()), Cond: cond, Msg: "requires violated"})
	}
}

// terminateFallthrough closes the current block with an implicit return
// if control can still fall off the end of the body (a void function
// with no trailing `return`, or a non-void function whose every path
// the type checker already confirmed returns — in which case this is
// unreachable, kept only so the IR is always well-formed).
func (fb *funcBuilder) terminateFallthrough(voidReturn bool) {
	if fb.cur.Term != nil {
		return
	}
	if voidReturn {
		fb.setTerm(&Return{Node: newNode(ast.Span{}), Value: nil})
		return
	}
	fb.setTerm(&Unreachable{Node: newNode(ast.Span{})})
}

func (fb *funcBuilder) lowerBlock(b *ast.Block) {
	for _, s := range b.Stmts {
		if fb.cur.Term != nil {
			return // unreachable code after a return/break/continue
		}
		fb.lowerStmt(s)
	}
}

func (fb *funcBuilder) lowerStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		v := fb.lowerExpr(st.Value)
		fb.locals[st.Name] = v
	case *ast.AssignStmt:
		fb.lowerAssign(st)
	case *ast.ExprStmt:
		fb.lowerExpr(st.Expr)
	case *ast.IfStmt:
		fb.lowerIf(st)
	case *ast.WhileStmt:
		fb.lowerWhile(st)
	case *ast.ForStmt:
		fb.lowerFor(st)
	case *ast.MatchStmt:
		fb.lowerMatchControl(st.Match)
	case *ast.ReturnStmt:
		if st.Value == nil {
			fb.setTerm(&Return{Node: newNode(st.Position()), Value: nil})
			return
		}
		v := fb.lowerExpr(st.Value)
		fb.setTerm(&Return{Node: newNode(st.Position()), Value: &v})
	case *ast.BreakStmt:
		if len(fb.loopStack) > 0 {
			fb.setTerm(&Jump{Node: newNode(st.Position()), Target: fb.loopStack[len(fb.loopStack)-1].breakTo})
		}
	case *ast.ContinueStmt:
		if len(fb.loopStack) > 0 {
			fb.setTerm(&Jump{Node: newNode(st.Position()), Target: fb.loopStack[len(fb.loopStack)-1].continueTo})
		}
	case *ast.RaiseStmt:
		v := fb.lowerExpr(st.Value)
		fb.emit(&Call{Node: newNode(st.Position()), Dst: -1, Callee: "__pluto_raise_error", Args: []Value{v}})
		fb.setTerm(&Return{Node: newNode(st.Position()), Value: nil})
	}
}

func (fb *funcBuilder) lowerAssign(st *ast.AssignStmt) {
	v := fb.lowerExpr(st.Value)
	if st.Op != "=" {
		cur := fb.lowerExpr(st.Target)
		dst := fb.newTemp()
		fb.emit(&BinOp{Node: newNode(st.Position()), Dst: dst, Op: string(st.Op[0]), Left: cur, Right: v})
		v = Temp(dst)
	}
	switch target := st.Target.(type) {
	case *ast.Identifier:
		fb.locals[target.Name] = v
	case *ast.FieldAccess:
		base := fb.lowerExpr(target.Recv)
		off := fb.fieldOffset(target.Recv, target.Field)
		fb.emit(&StoreField{Node: newNode(st.Position()), Base: base, Offset: off, Val: v})
	case *ast.IndexExpr:
		// Only maps support indexed assignment against the runtime ABI:
		// arrays expose push/get/len but no set, so `arr[i] = x` has no
		// lowering here and is rejected earlier as a parse/check error.
		if _, ok := fb.mb.env.ExprTypes[target.Recv].(types.Map); ok {
			base := fb.lowerExpr(target.Recv)
			key := fb.lowerExpr(target.Index)
			fb.emit(&Call{Node: newNode(st.Position()), Dst: -1, Callee: "__pluto_map_set", Args: []Value{base, key, v}})
		}
	}
}

func (fb *funcBuilder) lowerIf(st *ast.IfStmt) {
	cond := fb.lowerExpr(st.Cond)
	thenBlock := fb.newBlock()
	var elseBlock *Block
	merge := fb.newBlock()

	elseTarget := merge.ID
	if st.Else != nil {
		elseBlock = fb.newBlock()
		elseTarget = elseBlock.ID
	}
	fb.setTerm(&Branch{Node: newNode(st.Position()), Cond: cond, True: thenBlock.ID, False: elseTarget})

	fb.cur = thenBlock
	fb.lowerBlock(st.Then)
	fb.setTerm(&Jump{Node: newNode(st.Position()), Target: merge.ID})

	if st.Else != nil {
		fb.cur = elseBlock
		fb.lowerBlock(st.Else)
		fb.setTerm(&Jump{Node: newNode(st.Position()), Target: merge.ID})
	}

	fb.cur = merge
}

func (fb *funcBuilder) lowerWhile(st *ast.WhileStmt) {
	head := fb.newBlock()
	body := fb.newBlock()
	after := fb.newBlock()

	fb.setTerm(&Jump{Node: newNode(st.Position()), Target: head.ID})
	fb.cur = head
	cond := fb.lowerExpr(st.Cond)
	fb.setTerm(&Branch{Node: newNode(st.Position()), Cond: cond, True: body.ID, False: after.ID})

	fb.cur = body
	fb.loopStack = append(fb.loopStack, loopCtx{breakTo: after.ID, continueTo: head.ID})
	fb.lowerBlock(st.Body)
	fb.loopStack = fb.loopStack[:len(fb.loopStack)-1]
	fb.setTerm(&Jump{Node: newNode(st.Position()), Target: head.ID})

	fb.cur = after
}

// lowerFor compiles `for name in iter { body }` against the runtime
// array iteration symbols: an index counter, a length check, and an
// element fetch per iteration. Iteration over a Set/Stream/Map is out of
// scope for this pass — those need their own runtime cursor symbols that
// §4.8 does not name, so only array iteration is lowered here.
func (fb *funcBuilder) lowerFor(st *ast.ForStmt) {
	iter := fb.lowerExpr(st.Iter)
	lenDst := fb.newTemp()
	fb.emit(&Call{Node: newNode(st.Position()), Dst: lenDst, Callee: "__pluto_array_len", Args: []Value{iter}})

	idxDst := fb.newTemp()
	fb.emit(&Assign{Node: newNode(st.Position()), Dst: idxDst, Val: IntConst(0)})

	head := fb.newBlock()
	body := fb.newBlock()
	after := fb.newBlock()

	fb.setTerm(&Jump{Node: newNode(st.Position()), Target: head.ID})
	fb.cur = head
	condDst := fb.newTemp()
	fb.emit(&BinOp{Node: newNode(st.Position()), Dst: condDst, Op: "<", Left: Temp(idxDst), Right: Temp(lenDst)})
	fb.setTerm(&Branch{Node: newNode(st.Position()), Cond: Temp(condDst), True: body.ID, False: after.ID})

	fb.cur = body
	elemDst := fb.newTemp()
	fb.emit(&Call{Node: newNode(st.Position()), Dst: elemDst, Callee: "__pluto_array_get", Args: []Value{iter, Temp(idxDst)}})
	fb.locals[st.Name] = Temp(elemDst)

	fb.loopStack = append(fb.loopStack, loopCtx{breakTo: after.ID, continueTo: head.ID})
	fb.lowerBlock(st.Body)
	fb.loopStack = fb.loopStack[:len(fb.loopStack)-1]

	// IR temps are mutable registers, not SSA values (the abstract backend
	// is a register allocator, not an SSA-consuming one), so the counter
	// increment writes back into the same idxDst slot the head block reads.
	fb.emit(&BinOp{Node: newNode(st.Position()), Dst: idxDst, Op: "+", Left: Temp(idxDst), Right: IntConst(1)})
	fb.setTerm(&Jump{Node: newNode(st.Position()), Target: head.ID})

	fb.cur = after
}

// lowerMatchControl compiles a match used in statement position: the
// decision tree's Switch dispatches straight to each arm's block, which
// jumps to a shared merge block afterward. The Switch's case keys are
// the scrutinee enum's own declared discriminants (BuildEnumLayout), not
// an arbitrary per-site renumbering, so two matches over the same enum
// compile to the same dispatch table regardless of arm order.
func (fb *funcBuilder) lowerMatchControl(m *ast.MatchExpr) {
	subject := fb.lowerExpr(m.Subject)
	tree := CompileMatch(m)
	merge := fb.newBlock()
	disc := fb.discriminantsOf(m.Subject)
	fb.emitSwitch(tree, subject, m, disc, func(arm *ast.MatchArm) {
		fb.bindArm(subject, arm)
		fb.lowerBlock(arm.Body)
		fb.setTerm(&Jump{Node: newNode(m.Position()), Target: merge.ID})
	})
	fb.cur = merge
}

// discriminantsOf resolves subject's static enum type to its declared
// variant -> discriminant assignment.
func (fb *funcBuilder) discriminantsOf(subject ast.Expr) map[string]int {
	t, ok := fb.mb.env.ExprTypes[subject]
	if !ok {
		return nil
	}
	en, ok := t.(types.Enum)
	if !ok {
		return nil
	}
	ei, ok := fb.mb.env.Enums[en.Name]
	if !ok {
		return nil
	}
	return BuildEnumLayout(ei).Discriminant
}

// emitSwitch walks a compiled decision tree, building one block per case
// via build and wiring a Switch terminator from the block the caller was
// in when emitSwitch was entered.
func (fb *funcBuilder) emitSwitch(tree DecisionTree, subject Value, m *ast.MatchExpr, disc map[string]int, build func(*ast.MatchArm)) {
	switch t := tree.(type) {
	case *FailNode:
		fb.setTerm(&Unreachable{Node: newNode(m.Position())})
	case *LeafNode:
		build(t.Arm)
	case *SwitchNode:
		discDst := fb.newTemp()
		fb.emit(&LoadField{Node: newNode(m.Position()), Dst: discDst, Base: subject, Offset: 0})

		from := fb.cur
		var order []string
		for name := range t.Cases {
			order = append(order, name)
		}
		sort.Strings(order) // deterministic regardless of map iteration order
		cases := map[int]int{}
		for _, name := range order {
			block := fb.newBlock()
			cases[disc[name]] = block.ID
			fb.cur = block
			fb.emitSwitch(t.Cases[name], subject, m, disc, build)
		}
		defaultBlock := fb.newBlock()
		fb.cur = defaultBlock
		fb.emitSwitch(t.Default, subject, m, disc, build)

		fb.cur = from
		fb.setTerm(&Switch{Node: newNode(m.Position()), Scrutinee: Temp(discDst), Cases: cases, Default: defaultBlock.ID})
	}
}

// bindArm loads an arm's bound variant fields out of the payload,
// positionally, per §3's enum payload layout.
func (fb *funcBuilder) bindArm(subject Value, arm *ast.MatchArm) {
	for i, name := range arm.Binds {
		dst := fb.newTemp()
		fb.emit(&LoadField{Offset: wordSize + i*wordSize, Base: subject, Dst: dst, Node: newNode(arm.Body.Position())})
		fb.locals[name] = Temp(dst)
	}
}

func (fb *funcBuilder) fieldOffset(recv ast.Expr, field string) int {
	t, ok := fb.mb.env.ExprTypes[recv]
	if !ok {
		return 0
	}
	cls, ok := t.(types.Class)
	if !ok {
		return 0
	}
	ci, ok := fb.mb.env.Classes[cls.Name]
	if !ok {
		return 0
	}
	layout := BuildClassLayout(ci)
	if off, ok := layout.FieldOff[field]; ok {
		return off
	}
	if off, ok := layout.BracketOff[field]; ok {
		return off
	}
	return 0
}

// noneErrorName is the built-in error type `?` raises when unwrapping
// a none value.
const noneErrorName = "NoneError"

// lowerExpr lowers e to a Value. Atomic expressions (identifiers,
// literals) return an existing Value with no new instruction; everything
// else emits whatever instructions it needs and returns the Value of its
// result temp.
func (fb *funcBuilder) lowerExpr(e ast.Expr) Value {
	switch ex := e.(type) {
	case nil:
		return NoneConst()
	case *ast.Literal:
		return fb.lowerLiteral(ex)
	case *ast.Identifier:
		if v, ok := fb.locals[ex.Name]; ok {
			return v
		}
		return NoneConst()
	case *ast.InterpString:
		return fb.lowerInterpString(ex)
	case *ast.BinaryExpr:
		left := fb.lowerExpr(ex.Left)
		right := fb.lowerExpr(ex.Right)
		dst := fb.newTemp()
		fb.emit(&BinOp{Node: newNode(ex.Position()), Dst: dst, Op: ex.Op, Left: left, Right: right})
		return Temp(dst)
	case *ast.UnaryExpr:
		v := fb.lowerExpr(ex.Expr)
		dst := fb.newTemp()
		fb.emit(&UnOp{Node: newNode(ex.Position()), Dst: dst, Op: ex.Op, Operand: v})
		return Temp(dst)
	case *ast.CallExpr:
		return fb.lowerCall(ex)
	case *ast.FieldAccess:
		base := fb.lowerExpr(ex.Recv)
		off := fb.fieldOffset(ex.Recv, ex.Field)
		dst := fb.newTemp()
		fb.emit(&LoadField{Node: newNode(ex.Position()), Dst: dst, Base: base, Offset: off})
		return Temp(dst)
	case *ast.MethodCall:
		return fb.lowerMethodCall(ex)
	case *ast.CastExpr:
		return fb.lowerExpr(ex.Expr) // same word-sized representation; cast is a static-only distinction
	case *ast.CatchExpr:
		return fb.lowerCatch(ex)
	case *ast.StructLiteral:
		return fb.lowerStructLiteral(ex)
	case *ast.NullableUnwrap:
		return fb.lowerNullableUnwrap(ex, true)
	case *ast.OldExpr:
		v := fb.lowerExpr(ex.Inner)
		dst := fb.newTemp()
		fb.emit(&SnapshotOld{Node: newNode(ex.Position()), Dst: dst, Val: v})
		return Temp(dst)
	case *ast.ResultExpr:
		return Temp(fb.resultSlot())
	default:
		return NoneConst()
	}
}

// resultSlot is the temp a `result` expression lowers to. It is always
// temp 0, and nothing in this builder stores the return value there:
// `ensures` clauses are not lowered, and the checker (CON002) rejects
// bare `result` anywhere else, so the reference is a placeholder.
func (fb *funcBuilder) resultSlot() int { return 0 }

func (fb *funcBuilder) lowerLiteral(l *ast.Literal) Value {
	switch l.Kind {
	case ast.IntLit:
		return IntConst(l.Int)
	case ast.FloatLit:
		return FloatConst(l.Float)
	case ast.StringLit:
		return StrConst(l.Str)
	case ast.BoolLit:
		return BoolConst(l.Bool)
	default:
		return NoneConst()
	}
}

func (fb *funcBuilder) lowerInterpString(ex *ast.InterpString) Value {
	cur := StrConst(ex.Fragments[0])
	for i, sub := range ex.Exprs {
		v := fb.lowerExpr(sub)
		dst := fb.newTemp()
		fb.emit(&Call{Node: newNode(ex.Position()), Dst: dst, Callee: "__pluto_string_concat", Args: []Value{cur, v}})
		cur = Temp(dst)
		lit := StrConst(ex.Fragments[i+1])
		dst2 := fb.newTemp()
		fb.emit(&Call{Node: newNode(ex.Position()), Dst: dst2, Callee: "__pluto_string_concat", Args: []Value{cur, lit}})
		cur = Temp(dst2)
	}
	return cur
}

// lowerCall handles bare-identifier free-function calls. A non-identifier
// callee (a closure value, for instance) is out of scope for this pass —
// internal/lowering's closure lifting rewrites closures into top-level
// functions plus capture structs, but indirect calls through the
// resulting function pointer aren't lowered to IR here yet.
func (fb *funcBuilder) lowerCall(ex *ast.CallExpr) Value {
	id, ok := ex.Callee.(*ast.Identifier)
	if !ok {
		return NoneConst()
	}
	var args []Value
	for _, a := range ex.Args {
		args = append(args, fb.lowerExpr(a))
	}
	fallible := isFallible(fb.mb.effects, id.Name)
	dst := fb.newTemp()
	fb.emit(&Call{Node: newNode(ex.Position()), Dst: dst, Callee: id.Name, Args: args, Fallible: fallible})
	if fallible {
		fb.emitErrorCheck(ex.Position(), ex.Propagate)
	}
	return Temp(dst)
}

func (fb *funcBuilder) lowerMethodCall(ex *ast.MethodCall) Value {
	recvVal := fb.lowerExpr(ex.Recv)
	var args []Value
	for _, a := range ex.Args {
		args = append(args, fb.lowerExpr(a))
	}
	className := ""
	if t, ok := fb.mb.env.ExprTypes[ex.Recv]; ok {
		if cls, ok := t.(types.Class); ok {
			className = cls.Name
		}
	}
	if className == "" {
		return NoneConst() // receiver is a bare type parameter; codegen binds it post-monomorphization
	}
	callArgs := append([]Value{recvVal}, args...)
	fallible := isFallible(fb.mb.effects, funcKeyFor(className, ex.Method))
	dst := fb.newTemp()
	fb.emit(&Call{Node: newNode(ex.Position()), Dst: dst, Callee: MethodSymbol(className, ex.Method), Args: callArgs, Fallible: fallible})
	if fallible {
		fb.emitErrorCheck(ex.Position(), ex.Propagate)
	}
	if m := fb.mb.env.LookupMethod(className, ex.Method); m != nil && m.Sig != nil && m.Sig.Decl != nil && m.Sig.Decl.IsMut {
		if ci := fb.mb.env.Classes[className]; ci != nil && len(ci.Decl.Contract.Invariant) > 0 {
			fb.emit(&InvariantCall{Node: newNode(ex.Position()), Self: recvVal})
		}
	}
	return Temp(dst)
}

// lowerNullableUnwrap compiles `x?`: none and T share the same one-word
// representation, so unwrapping the value itself is a no-op; what `?`
// adds is a none-check that raises the built-in NoneError and follows
// the same error-check path a fallible call's `!` takes. propagate is
// false only when this unwrap is the direct subject of a catch, whose
// own has_error branch takes over instead of an immediate return.
func (fb *funcBuilder) lowerNullableUnwrap(ex *ast.NullableUnwrap, propagate bool) Value {
	v := fb.lowerExpr(ex.Expr)

	isNone := fb.newTemp()
	fb.emit(&BinOp{Node: newNode(ex.Position()), Dst: isNone, Op: "==", Left: v, Right: NoneConst()})

	raiseBlock := fb.newBlock()
	okBlock := fb.newBlock()
	fb.setTerm(&Branch{Node: newNode(ex.Position()), Cond: Temp(isNone), True: raiseBlock.ID, False: okBlock.ID})

	fb.cur = raiseBlock
	errDst := fb.newTemp()
	fb.emit(&Alloc{Node: newNode(ex.Position()), Dst: errDst, Size: 0, Tag: noneErrorName})
	fb.emit(&Call{Node: newNode(ex.Position()), Dst: -1, Callee: "__pluto_raise_error", Args: []Value{Temp(errDst)}})
	if propagate {
		fb.emit(&ErrorCheck{Node: newNode(ex.Position()), CatchBlock: -1})
	}
	fb.setTerm(&Jump{Node: newNode(ex.Position()), Target: okBlock.ID})

	fb.cur = okBlock
	return v
}

func (fb *funcBuilder) emitErrorCheck(span ast.Span, propagate bool) {
	if propagate {
		fb.emit(&ErrorCheck{Node: newNode(span), CatchBlock: -1})
	}
	// A non-propagating fallible call outside a CatchExpr is already
	// rejected as EFF001 by internal/types.Infer before codegen runs, so
	// the only remaining case here is the propagate path.
}

// lowerCatch compiles `expr catch ...`: lower the fallible sub-expression,
// branch on the TLS error slot to either the normal-path value or the
// catch handler, and merge.
func (fb *funcBuilder) lowerCatch(ex *ast.CatchExpr) Value {
	v := fb.lowerCatchSubject(ex.Expr)

	handler := fb.newBlock()
	merge := fb.newBlock()
	resultDst := fb.newTemp()

	checkDst := fb.newTemp()
	fb.emit(&Call{Node: newNode(ex.Position()), Dst: checkDst, Callee: "__pluto_has_error"})
	fb.emit(&Assign{Node: newNode(ex.Position()), Dst: resultDst, Val: v})
	fb.setTerm(&Branch{Node: newNode(ex.Position()), Cond: Temp(checkDst), True: handler.ID, False: merge.ID})

	fb.cur = handler
	if ex.Binder != "" {
		errDst := fb.newTemp()
		fb.emit(&Call{Node: newNode(ex.Position()), Dst: errDst, Callee: "__pluto_get_error"})
		fb.locals[ex.Binder] = Temp(errDst)
	}
	fb.emit(&Call{Node: newNode(ex.Position()), Dst: -1, Callee: "__pluto_clear_error"})
	var handlerVal Value
	if ex.Fallback != nil {
		handlerVal = fb.lowerExpr(ex.Fallback)
	} else if ex.Block != nil {
		fb.lowerBlock(ex.Block)
		handlerVal = NoneConst()
	}
	fb.emit(&Assign{Node: newNode(ex.Position()), Dst: resultDst, Val: handlerVal})
	fb.setTerm(&Jump{Node: newNode(ex.Position()), Target: merge.ID})

	fb.cur = merge
	return Temp(resultDst)
}

// lowerCatchSubject lowers the expression a catch directly wraps. A
// nullable unwrap there must not propagate-return on none itself; catch's
// own has_error branch is what decides whether the raise is handled.
func (fb *funcBuilder) lowerCatchSubject(e ast.Expr) Value {
	if nu, ok := e.(*ast.NullableUnwrap); ok {
		return fb.lowerNullableUnwrap(nu, false)
	}
	return fb.lowerExpr(e)
}

func (fb *funcBuilder) lowerStructLiteral(ex *ast.StructLiteral) Value {
	ci, ok := fb.mb.env.Classes[ex.TypeName]
	var size int
	if ok {
		size = BuildClassLayout(ci).Size
	}
	dst := fb.newTemp()
	fb.emit(&Alloc{Node: newNode(ex.Position()), Dst: dst, Size: size, Tag: ex.TypeName})
	base := Temp(dst)
	for _, f := range ex.Fields {
		v := fb.lowerExpr(f.Value)
		off := 0
		if ok {
			layout := BuildClassLayout(ci)
			off = layout.FieldOff[f.Name]
		}
		fb.emit(&StoreField{Node: newNode(ex.Position()), Base: base, Offset: off, Val: v})
	}
	if ok && len(ci.Decl.Contract.Invariant) > 0 {
		fb.emit(&InvariantCall{Node: newNode(ex.Position()), Self: base})
	}
	return base
}

// Printf-style helper kept for future IR-dump tooling; avoids every
// caller needing to hand-roll the same format.
func debugString(v Value) string { return fmt.Sprintf("%v", v) }
