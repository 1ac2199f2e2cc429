// Package orchestrate drives one compilation end to end: module
// loading, AST lowering, type checking, monomorphization, and IR
// codegen, in the fixed order every later phase assumes the earlier
// ones already completed. It is the one place that knows the whole
// pipeline shape; every individual phase package stays ignorant of its
// neighbors.
package orchestrate

import (
	"fmt"
	"time"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/irgen"
	"github.com/pluto-lang/plutoc/internal/lowering"
	"github.com/pluto-lang/plutoc/internal/mono"
	"github.com/pluto-lang/plutoc/internal/module"
	"github.com/pluto-lang/plutoc/internal/source"
	"github.com/pluto-lang/plutoc/internal/types"
)

// Config controls one Run, mirroring the entry point a CLI command
// gathers from flags plus a project manifest.
type Config struct {
	EntryFile  string
	StdlibRoot string

	// StopAfter names the last phase to run: "load", "lower",
	// "typecheck", "monomorphize", or "codegen" (the default, meaning
	// run the whole pipeline). `check` sets this to "typecheck" so it
	// doesn't pay for monomorphization and codegen just to report a
	// clean bill of health.
	StopAfter string
}

var phaseOrder = []string{"load", "lower", "typecheck", "monomorphize", "codegen"}

func (c Config) stopAfterIndex() int {
	if c.StopAfter == "" {
		return len(phaseOrder) - 1
	}
	for i, phase := range phaseOrder {
		if phase == c.StopAfter {
			return i
		}
	}
	return len(phaseOrder) - 1
}

// Result carries every phase's output, so a caller that only wants the
// compiled Module doesn't need to re-derive it, but one that wants to
// dump an intermediate stage (the typed program, the lowering plans,
// the monomorphization plan) still can.
type Result struct {
	Program      *ast.Program
	LoweringPlan *lowering.Plans
	TypeResult   *types.Result
	MonoPlan     *mono.Plan
	Module       *irgen.Module
	Sources      *source.Set
	PhaseTimings map[string]time.Duration
}

// Run executes the full pipeline: load -> lower -> check -> monomorphize
// -> codegen. It stops at the first phase reporting errors, returning
// whatever partial Result was built so far alongside the errors (a
// caller whose program fails type checking, for instance, still gets
// Result.Program even though Result.Module is nil; a load failure,
// including a parse error, leaves Result.Program nil).
func Run(cfg Config) (*Result, []error) {
	res := &Result{PhaseTimings: make(map[string]time.Duration)}
	stopAfter := cfg.stopAfterIndex()

	loader := module.NewLoader(cfg.EntryFile, cfg.StdlibRoot)
	res.Sources = loader.Sources

	start := time.Now()
	prog, errs := loader.LoadEntry(cfg.EntryFile)
	res.PhaseTimings["load"] = time.Since(start)
	if len(errs) > 0 {
		return res, errs
	}
	res.Program = prog
	if stopAfter == 0 {
		return res, nil
	}

	start = time.Now()
	plans, errs := lowering.Run(prog)
	res.PhaseTimings["lower"] = time.Since(start)
	if len(errs) > 0 {
		return res, errs
	}
	res.LoweringPlan = plans
	if stopAfter == 1 {
		return res, nil
	}

	start = time.Now()
	typed, errs := types.Run(prog)
	res.PhaseTimings["typecheck"] = time.Since(start)
	if len(errs) > 0 {
		return res, errs
	}
	res.TypeResult = typed
	if stopAfter == 2 {
		return res, nil
	}

	start = time.Now()
	plan, errs := mono.Monomorphize(prog, typed.Env)
	res.PhaseTimings["monomorphize"] = time.Since(start)
	if len(errs) > 0 {
		return res, errs
	}
	res.MonoPlan = plan
	if stopAfter == 3 {
		return res, nil
	}

	start = time.Now()
	mod, errs := irgen.Lower(prog, typed, plan)
	res.PhaseTimings["codegen"] = time.Since(start)
	if len(errs) > 0 {
		return res, errs
	}
	res.Module = mod

	return res, nil
}

// PhaseReport renders the phase timings as a single human-readable line,
// the way a verbose CLI invocation would summarize a successful build.
func (r *Result) PhaseReport() string {
	order := []string{"load", "lower", "typecheck", "monomorphize", "codegen"}
	out := ""
	for i, phase := range order {
		d, ok := r.PhaseTimings[phase]
		if !ok {
			continue
		}
		if i > 0 && out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%s", phase, d.Round(time.Microsecond))
	}
	return out
}
