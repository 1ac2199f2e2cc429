package lowering

import (
	"sort"
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/lexer"
	"github.com/pluto-lang/plutoc/internal/parser"
	"github.com/stretchr/testify/assert"
)

func parseModule(t *testing.T, path, src string) *ast.Module {
	t.Helper()
	toks, lerr := lexer.Lex(src, path+".pluto")
	if lerr != nil {
		t.Fatalf("lex error: %v", lerr)
	}
	decls, errs := parser.ParseFile(toks, path+".pluto")
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	mod := &ast.Module{Path: path}
	for _, d := range decls {
		if imp, ok := d.(*ast.ImportDecl); ok {
			mod.Imports = append(mod.Imports, imp)
			continue
		}
		mod.Decls = append(mod.Decls, d)
	}
	return mod
}

func findFunc(mod *ast.Module, name string) *ast.FuncDecl {
	for _, d := range mod.Decls {
		if f, ok := d.(*ast.FuncDecl); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func findClass(mod *ast.Module, name string) *ast.ClassDecl {
	for _, d := range mod.Decls {
		if c, ok := d.(*ast.ClassDecl); ok && c.Name == name {
			return c
		}
	}
	return nil
}

func findStage(mod *ast.Module, name string) *ast.StageDecl {
	for _, d := range mod.Decls {
		if s, ok := d.(*ast.StageDecl); ok && s.Name == name {
			return s
		}
	}
	return nil
}

func TestInjectPreludeAddsImplicitImports(t *testing.T) {
	mod := parseModule(t, "main", "fn main() {\n}\n")
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := InjectPrelude(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	var got []string
	for _, imp := range mod.Imports {
		got = append(got, imp.Path)
	}
	sort.Strings(got)
	want := []string{"std.channel", "std.secret", "std.task"}
	assert.Equal(t, want, got, "prelude imports mismatch")
}

func TestInjectPreludeSkipsStdlibModules(t *testing.T) {
	mod := parseModule(t, "std.task", "pub class Task {\n}\n")
	mod.Origin = ast.OriginStdlib
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := InjectPrelude(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(mod.Imports) != 0 {
		t.Errorf("expected no injected imports into a stdlib module, got %v", mod.Imports)
	}
}

func TestFlattenStagesMergesParentChain(t *testing.T) {
	src := `
app Base {
  requires fn greet() string
}

app Child: Base {
  override fn greet() string {
    return "hi"
  }
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := FlattenStages(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	child := findStage(mod, "Child")
	if child == nil {
		t.Fatalf("Child stage not found")
	}
	if len(child.Methods) != 1 {
		t.Fatalf("expected 1 merged method, got %d", len(child.Methods))
	}
	if child.Methods[0].IsRequires {
		t.Errorf("expected the merged greet to be the override body, not the requires stub")
	}
}

func TestFlattenStagesDetectsUnimplementedRequires(t *testing.T) {
	src := `
app Base {
  requires fn greet() string
}

app Child: Base {
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	errs := FlattenStages(prog)
	if len(errs) == 0 {
		t.Fatalf("expected an unimplemented-requires error")
	}
}

func TestFlattenStagesDetectsCycle(t *testing.T) {
	src := `
app A: B {
}

app B: A {
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	errs := FlattenStages(prog)
	if len(errs) == 0 {
		t.Fatalf("expected a stage-cycle error")
	}
}

func TestDesugarAmbientsInjectsFieldsAndRewritesBody(t *testing.T) {
	src := `
class Greeter uses Logger {
  fn greet() {
    logger.info("hi")
  }
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := DesugarAmbients(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	c := findClass(mod, "Greeter")
	if c == nil {
		t.Fatalf("Greeter class not found")
	}
	var fieldNames []string
	for _, f := range c.Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	assert.Equal(t, []string{"_amb_logger"}, fieldNames, "injected fields mismatch")

	stmt := c.Methods[0].Body.Stmts[0].(*ast.ExprStmt)
	call := stmt.Expr.(*ast.MethodCall)
	access, ok := call.Recv.(*ast.FieldAccess)
	if !ok {
		t.Fatalf("expected logger.info receiver to be rewritten to a field access, got %T", call.Recv)
	}
	if access.Field != "_amb_logger" {
		t.Errorf("field = %q, want _amb_logger", access.Field)
	}
	recvID, ok := access.Recv.(*ast.Identifier)
	if !ok || recvID.Name != "self" {
		t.Errorf("expected self._amb_logger, got receiver %#v", access.Recv)
	}
}

func TestDesugarAmbientsDoesNotRewriteShadowedLocal(t *testing.T) {
	src := `
class Greeter uses Logger {
  fn greet() {
    let logger = 1
    let x = logger
  }
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := DesugarAmbients(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	c := findClass(mod, "Greeter")
	second := c.Methods[0].Body.Stmts[1].(*ast.LetStmt)
	id, ok := second.Value.(*ast.Identifier)
	if !ok || id.Name != "logger" {
		t.Errorf("expected shadowed local `logger` to remain a bare identifier, got %#v", second.Value)
	}
}

func TestLiftClosuresExtractsFreeVariablesAsCaptures(t *testing.T) {
	src := `
fn makeAdder(base: int) fn(int) int {
  let offset = 1
  return (x: int) => x + base + offset
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := LiftClosures(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	lifted := findFunc(mod, "__closure_1")
	if lifted == nil {
		t.Fatalf("expected a lifted __closure_1 function, decls: %v", ast.Dump(mod))
	}
	var paramNames []string
	for _, p := range lifted.Params {
		paramNames = append(paramNames, p.Name)
	}
	assert.Equal(t, []string{"x", "base", "offset"}, paramNames, "lifted params mismatch")

	outer := findFunc(mod, "makeAdder")
	ret := outer.Body.Stmts[1].(*ast.ReturnStmt)
	obj, ok := ret.Value.(*ast.StructLiteral)
	if !ok || obj.TypeName != "__Closure" {
		t.Fatalf("expected the closure site to become a __Closure struct literal, got %#v", ret.Value)
	}
}

func TestLiftClosuresProcessesNestedClosuresDepthFirst(t *testing.T) {
	src := `
fn outer() fn() int {
  let a = 1
  return () => {
    let b = 2
    let inner = () => a + b
    return inner()
  }
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	if errs := LiftClosures(prog); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	// Inner closure (__closure_1) is lifted before outer (__closure_2);
	// its captures must include both `a` (outer's own capture) and `b`
	// (the enclosing closure's local), proving depth-first ordering
	// threaded the outer capture into the inner environment list.
	inner := findFunc(mod, "__closure_1")
	if inner == nil {
		t.Fatalf("expected __closure_1 (inner), decls: %s", ast.Dump(mod))
	}
	var paramNames []string
	for _, p := range inner.Params {
		paramNames = append(paramNames, p.Name)
	}
	assert.Equal(t, []string{"a", "b"}, paramNames, "inner closure params mismatch")
}

func TestDesugarGeneratorsBuildsLoopingStateMachine(t *testing.T) {
	src := `
fn counter(n: int) {
  let i = 0
  while i < n {
    yield i
    i += 1
  }
}
`
	mod := parseModule(t, "main", src)
	f := findFunc(mod, "counter")
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	plans, errs := DesugarGenerators(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	plan := plans[f.ID]
	if plan == nil {
		t.Fatalf("expected a generator plan for counter")
	}

	var yieldStates, doneStates, condStates int
	for _, s := range plan.States {
		switch {
		case s.Yield != nil:
			yieldStates++
		case s.Done:
			doneStates++
		case s.Cond != nil:
			condStates++
		}
	}
	if yieldStates != 1 {
		t.Errorf("yield states = %d, want 1", yieldStates)
	}
	if doneStates != 1 {
		t.Errorf("done states = %d, want 1", doneStates)
	}
	if condStates != 1 {
		t.Errorf("cond (loop-head) states = %d, want 1", condStates)
	}
}

func TestDesugarGeneratorsRejectsYieldInsideIf(t *testing.T) {
	src := `
fn counter(n: int) {
  let i = 0
  while i < n {
    if i > 0 {
      yield i
    }
    i += 1
  }
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	_, errs := DesugarGenerators(prog)
	if len(errs) == 0 {
		t.Fatalf("expected an unsupported-shape error for yield inside if")
	}
}

func TestDesugarSpawnsCollectsNamedFunctionCalls(t *testing.T) {
	src := `
fn work(x: int) int {
  return x * 2
}

fn main() {
  let t = spawn work(21)
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	sites, errs := DesugarSpawns(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(sites) != 1 || sites[0].FuncName != "work" {
		t.Fatalf("expected one spawn site targeting work, got %#v", sites)
	}
}

func TestDesugarSpawnsRejectsNonFunctionTarget(t *testing.T) {
	src := `
fn main() {
  let t = spawn ((x: int) => x)(1)
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	_, errs := DesugarSpawns(prog)
	if len(errs) == 0 {
		t.Fatalf("expected an error rejecting a non-bare-name spawn target")
	}
}

func TestRunStopsAtFirstFailingPass(t *testing.T) {
	src := `
app A: B {
}

app B: A {
}
`
	mod := parseModule(t, "main", src)
	prog := &ast.Program{Modules: []*ast.Module{mod}}

	plans, errs := Run(prog)
	if len(errs) == 0 {
		t.Fatalf("expected stage-cycle errors to propagate out of Run")
	}
	if plans != nil {
		t.Errorf("expected nil plans when an earlier pass fails")
	}
}
