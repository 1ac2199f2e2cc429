package lowering

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
)

// GeneratorState is one state of a generator's `next` dispatch: running
// Stmts, then either yielding a value and suspending (Yield set),
// branching on Cond (a loop head), falling through to Next, or marking
// the generator Done.
type GeneratorState struct {
	ID        int
	Stmts     []ast.Stmt
	Yield     ast.Expr // non-nil: this state ends by yielding Yield and suspending
	Cond      ast.Expr // non-nil: this state is a loop-head branch
	TrueNext  int
	FalseNext int
	Next      int // unconditional fallthrough (used when Cond == nil and Yield == nil)
	Done      bool
}

// GeneratorPlan is the state machine irgen compiles into a creator
// function (allocating `{ next_fn_ptr, state, done, result, params...,
// locals... }`) and a next function dispatching on state, per §4.4's
// generator desugaring step. Lowering's job stops at producing this
// plan — the object layout and dispatch code are "computed at codegen"
// by design, not emitted as surface syntax here.
type GeneratorPlan struct {
	FuncID uint64
	States []GeneratorState
}

// DesugarGenerators builds a GeneratorPlan for every function or method
// whose body uses `yield`. Supported shapes: a straight-line sequence of
// statements and top-level yields, optionally containing top-level while
// loops whose own bodies are such sequences. Yields nested inside `if`
// or `for`, and any while loop nested inside a generator's while loop,
// are rejected — those need control-flow-sensitive state splitting,
// which this flat list of dispatch states does not model.
func DesugarGenerators(prog *ast.Program) (map[uint64]*GeneratorPlan, []error) {
	plans := make(map[uint64]*GeneratorPlan)
	var errs []error
	WalkFuncBodies(prog, func(f *ast.FuncDecl) {
		if !f.IsGenerator {
			return
		}
		b := &generatorBuilder{}
		if err := b.build(f.Body); err != nil {
			errs = append(errs, err)
			return
		}
		final := b.newState()
		b.states[final].Done = true
		b.states[b.tail].Next = final
		plans[f.ID] = &GeneratorPlan{FuncID: f.ID, States: b.states}
	})
	return plans, errs
}

type generatorBuilder struct {
	states []GeneratorState
	root   int
	tail   int // state execution reaches after the last top-level statement
}

func (b *generatorBuilder) newState() int {
	id := len(b.states)
	b.states = append(b.states, GeneratorState{ID: id})
	return id
}

// build walks body's top-level statements, splitting into states at each
// yield and at the single supported top-level while loop.
func (b *generatorBuilder) build(body *ast.Block) error {
	b.root = b.newState()
	cur := b.root
	for _, s := range body.Stmts {
		next, err := b.addStmt(cur, s)
		if err != nil {
			return err
		}
		cur = next
	}
	b.tail = cur
	return nil
}

func (b *generatorBuilder) addStmt(cur int, s ast.Stmt) (int, error) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		if y, ok := st.Expr.(*ast.YieldExpr); ok {
			b.states[cur].Yield = y.Value
			next := b.newState()
			b.states[cur].Next = next
			return next, nil
		}
		b.states[cur].Stmts = append(b.states[cur].Stmts, s)
		return cur, nil
	case *ast.WhileStmt:
		return b.addWhile(cur, st)
	default:
		if stmtHasYield(s) {
			return 0, &errors.ReportError{Rep: errors.New("lowering", errors.LOW004,
				"generator body yields inside an `if` or `for`, which is not a supported yield shape",
				spanOf(s), nil)}
		}
		b.states[cur].Stmts = append(b.states[cur].Stmts, s)
		return cur, nil
	}
}

func (b *generatorBuilder) addWhile(cur int, st *ast.WhileStmt) (int, error) {
	checkState := b.newState()
	b.states[cur].Next = checkState
	b.states[checkState].Cond = st.Cond

	bodyEntry := b.newState()
	b.states[checkState].TrueNext = bodyEntry

	loopCur := bodyEntry
	for _, inner := range st.Body.Stmts {
		if _, ok := inner.(*ast.WhileStmt); ok {
			return 0, &errors.ReportError{Rep: errors.New("lowering", errors.LOW004,
				"generator body has a nested while loop, which is not a supported yield shape",
				spanOf(st), nil)}
		}
		if _, ok := inner.(*ast.IfStmt); ok {
			if stmtHasYield(inner) {
				return 0, &errors.ReportError{Rep: errors.New("lowering", errors.LOW004,
					"generator body yields inside an `if`, which is not a supported yield shape",
					spanOf(st), nil)}
			}
		}
		next, err := b.addStmt(loopCur, inner)
		if err != nil {
			return 0, err
		}
		loopCur = next
	}
	b.states[loopCur].Next = checkState // loop back to the condition check

	after := b.newState()
	b.states[checkState].FalseNext = after
	return after, nil
}

func stmtHasYield(s ast.Stmt) bool {
	found := false
	rw := func(e ast.Expr) ast.Expr {
		if _, ok := e.(*ast.YieldExpr); ok {
			found = true
		}
		return e
	}
	switch st := s.(type) {
	case *ast.IfStmt:
		RewriteBlock(st.Then, rw)
		RewriteBlock(st.Else, rw)
	case *ast.ForStmt:
		RewriteBlock(st.Body, rw)
	case *ast.ExprStmt:
		RewriteExpr(st.Expr, rw)
	}
	return found
}
