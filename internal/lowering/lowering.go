package lowering

import "github.com/pluto-lang/plutoc/internal/ast"

// Plans carries the side-tables later passes (monomorphizer, irgen) need
// but that don't correspond to literal Pluto syntax: generator state
// machines and spawn call sites. Lowering records them here instead of
// inventing surface syntax for runtime-only concepts.
type Plans struct {
	Generators map[uint64]*GeneratorPlan // keyed by the generator FuncDecl's node ID
	Spawns     []*SpawnSite
}

// Run executes the six AST-lowering passes over prog in the fixed order
// the pipeline requires, mutating modules in place. It stops at the
// first pass that reports errors, since later passes assume earlier ones
// already ran to completion.
func Run(prog *ast.Program) (*Plans, []error) {
	if errs := InjectPrelude(prog); len(errs) > 0 {
		return nil, errs
	}
	if errs := FlattenStages(prog); len(errs) > 0 {
		return nil, errs
	}
	if errs := DesugarAmbients(prog); len(errs) > 0 {
		return nil, errs
	}
	if errs := LiftClosures(prog); len(errs) > 0 {
		return nil, errs
	}
	generators, errs := DesugarGenerators(prog)
	if len(errs) > 0 {
		return nil, errs
	}
	spawns, errs := DesugarSpawns(prog)
	if len(errs) > 0 {
		return nil, errs
	}
	return &Plans{Generators: generators, Spawns: spawns}, nil
}
