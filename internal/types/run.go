package types

import "github.com/pluto-lang/plutoc/internal/ast"

// Result bundles everything the monomorphizer and codegen need out of
// type checking: the declaration environment, the whole-program error-
// effect table, and the resolved DI construction plan.
type Result struct {
	Env     *Env
	Effects *EffectInfo
	DI      *DIPlan
}

// Run executes Phase A (Register), Phase B (Check), error-effect
// inference, and DI-graph validation over prog, in that order. Like
// internal/lowering.Run, it stops at the first phase that reports
// errors, since every later phase assumes the environment it consults
// is already fully and correctly resolved.
func Run(prog *ast.Program) (*Result, []error) {
	env, errs := Register(prog)
	if len(errs) > 0 {
		return nil, errs
	}
	if errs := Check(prog, env); len(errs) > 0 {
		return nil, errs
	}
	effects, errs := Infer(prog, env)
	if len(errs) > 0 {
		return nil, errs
	}
	di, errs := ValidateDI(prog, env)
	if len(errs) > 0 {
		return nil, errs
	}
	return &Result{Env: env, Effects: effects, DI: di}, nil
}
