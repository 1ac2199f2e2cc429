package irgen

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
	"github.com/pluto-lang/plutoc/internal/mono"
	"github.com/pluto-lang/plutoc/internal/parser"
	"github.com/pluto-lang/plutoc/internal/types"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, lerr := lexer.Lex(src, "main.pluto")
	if lerr != nil {
		t.Fatalf("lex error: %v", lerr)
	}
	decls, errs := parser.ParseFile(toks, "main.pluto")
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	mod := &ast.Module{Path: "main"}
	for _, d := range decls {
		if imp, ok := d.(*ast.ImportDecl); ok {
			mod.Imports = append(mod.Imports, imp)
			continue
		}
		mod.Decls = append(mod.Decls, d)
	}
	return &ast.Program{Modules: []*ast.Module{mod}}
}

func hasCode(errs []error, code string) bool {
	for _, e := range errs {
		if rep, ok := errors.AsReport(e); ok && rep.Code == code {
			return true
		}
	}
	return false
}

func codesOf(errs []error) []string {
	var codes []string
	for _, e := range errs {
		if rep, ok := errors.AsReport(e); ok {
			codes = append(codes, rep.Code)
		}
	}
	return codes
}

// lowerSource runs a program through the full Register/Check/Infer/
// ValidateDI/Monomorphize pipeline and lowers the result, failing the
// test on any earlier-phase error so a lowering bug is never masked by
// an upstream one.
func lowerSource(t *testing.T, src string) *Module {
	t.Helper()
	prog := parseProgram(t, src)
	res, errs := types.Run(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors before codegen: %v", errs)
	}
	plan, errs := mono.Monomorphize(prog, res.Env)
	if len(errs) != 0 {
		t.Fatalf("unexpected monomorphization errors: %v", errs)
	}
	mod, errs := Lower(prog, res, plan)
	if len(errs) != 0 {
		t.Fatalf("unexpected lowering errors: %v", errs)
	}
	return mod
}

func findFunc(mod *Module, name string) *Func {
	for _, f := range mod.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func allInstrs(fn *Func) []Instr {
	var out []Instr
	for _, b := range fn.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

func countInstr[T Instr](instrs []Instr) int {
	n := 0
	for _, i := range instrs {
		if _, ok := i.(T); ok {
			n++
		}
	}
	return n
}

func TestLowerSimpleFunctionAddsOperandsAndReturns(t *testing.T) {
	src := "fn add(a: int, b: int) int {\n    return a + b\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "add")
	if fn == nil {
		t.Fatalf("expected a lowered Func named add, got %v", mod.Funcs)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("expected params a, b, got %+v", fn.Params)
	}
	if fn.Params[0].ByPointer || fn.Params[1].ByPointer {
		t.Fatalf("expected int params to pass by value, got %+v", fn.Params)
	}

	instrs := allInstrs(fn)
	if countInstr[*BinOp](instrs) != 1 {
		t.Fatalf("expected exactly one BinOp for a + b, got %v", instrs)
	}

	entry := fn.Blocks[fn.Entry]
	ret, ok := entry.Term.(*Return)
	if !ok || ret.Value == nil {
		t.Fatalf("expected entry block to terminate in a non-void Return, got %v", entry.Term)
	}
}

func TestLowerClassConstructionAllocatesAndStoresEachField(t *testing.T) {
	src := "class Point {\n    x: int\n    y: int\n}\n\n" +
		"fn origin() Point {\n    return Point{x: 0, y: 0}\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "origin")
	if fn == nil {
		t.Fatalf("expected a lowered Func named origin, got %v", mod.Funcs)
	}
	instrs := allInstrs(fn)
	if countInstr[*Alloc](instrs) != 1 {
		t.Fatalf("expected exactly one Alloc for the Point literal, got %v", instrs)
	}
	if countInstr[*StoreField](instrs) != 2 {
		t.Fatalf("expected one StoreField per field, got %v", instrs)
	}
}

func TestLowerMatchDispatchesOnDeclaredDiscriminants(t *testing.T) {
	src := "enum Shape {\n    Circle { radius: int }\n    Square { side: int }\n}\n\n" +
		"fn area(s: Shape) int {\n    match s {\n        Shape.Circle { radius } {\n            return radius * radius\n        }\n        Shape.Square { side } {\n            return side * side\n        }\n    }\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "area")
	if fn == nil {
		t.Fatalf("expected a lowered Func named area, got %v", mod.Funcs)
	}
	var sw *Switch
	for _, b := range fn.Blocks {
		if s, ok := b.Term.(*Switch); ok {
			sw = s
			break
		}
	}
	if sw == nil {
		t.Fatalf("expected a Switch terminator somewhere in area, got none")
	}
	if len(sw.Cases) != 2 {
		t.Fatalf("expected two dispatch cases, got %d", len(sw.Cases))
	}
	// Circle is declared first (discriminant 0), Square second (discriminant 1) -
	// this must hold regardless of Go's map iteration order over the arms.
	if _, ok := sw.Cases[0]; !ok {
		t.Fatalf("expected discriminant 0 (Circle) to be a dispatch case, got %+v", sw.Cases)
	}
	if _, ok := sw.Cases[1]; !ok {
		t.Fatalf("expected discriminant 1 (Square) to be a dispatch case, got %+v", sw.Cases)
	}
}

func TestLowerMatchIsStableAcrossRepeatedCompilation(t *testing.T) {
	src := "enum Shape {\n    Circle { radius: int }\n    Square { side: int }\n}\n\n" +
		"fn area(s: Shape) int {\n    match s {\n        Shape.Circle { radius } {\n            return radius * radius\n        }\n        Shape.Square { side } {\n            return side * side\n        }\n    }\n}\n"

	first := lowerSource(t, src)
	second := lowerSource(t, src)

	var firstCases, secondCases map[int]int
	for _, b := range findFunc(first, "area").Blocks {
		if s, ok := b.Term.(*Switch); ok {
			firstCases = s.Cases
		}
	}
	for _, b := range findFunc(second, "area").Blocks {
		if s, ok := b.Term.(*Switch); ok {
			secondCases = s.Cases
		}
	}
	if len(firstCases) != len(secondCases) {
		t.Fatalf("expected the same number of dispatch cases across runs, got %d and %d", len(firstCases), len(secondCases))
	}
	for disc := range firstCases {
		if _, ok := secondCases[disc]; !ok {
			t.Fatalf("discriminant %d present in one run but not the other: %v vs %v", disc, firstCases, secondCases)
		}
	}
}

func TestLowerIfInsideWhileProducesTwoBranches(t *testing.T) {
	src := "fn sumTo(n: int) int {\n    let total = 0\n    let i = 0\n    while i < n {\n        if i > 0 {\n            total = total + i\n        }\n        i = i + 1\n    }\n    return total\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "sumTo")
	if fn == nil {
		t.Fatalf("expected a lowered Func named sumTo, got %v", mod.Funcs)
	}
	branches := 0
	for _, b := range fn.Blocks {
		if _, ok := b.Term.(*Branch); ok {
			branches++
		}
	}
	if branches != 2 {
		t.Fatalf("expected two Branch terminators (while condition, if condition), got %d", branches)
	}
}

func TestLowerFalliblePropagationEmitsErrorCheck(t *testing.T) {
	src := "error NotFoundError {\n}\n\n" +
		"fn risky() {\n    raise NotFoundError{}\n}\n\n" +
		"fn caller() {\n    risky()!\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "caller")
	if fn == nil {
		t.Fatalf("expected a lowered Func named caller, got %v", mod.Funcs)
	}
	instrs := allInstrs(fn)
	var check *ErrorCheck
	for _, i := range instrs {
		if ec, ok := i.(*ErrorCheck); ok {
			check = ec
		}
	}
	if check == nil {
		t.Fatalf("expected an ErrorCheck for the `!` propagation, got %v", instrs)
	}
	if check.CatchBlock != -1 {
		t.Fatalf("expected a propagating ErrorCheck (CatchBlock -1), got %d", check.CatchBlock)
	}
	if !fn.Fallible {
		t.Fatalf("expected caller itself to be marked Fallible")
	}
}

func TestLowerNullableUnwrapRaisesNoneErrorAndPropagates(t *testing.T) {
	src := "fn maybe() int? {\n    return none\n}\n\n" +
		"fn first() int {\n    return maybe()?\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "first")
	if fn == nil {
		t.Fatalf("expected a lowered Func named first, got %v", mod.Funcs)
	}
	if !fn.Fallible {
		t.Fatalf("expected `?` to mark first as Fallible via the built-in NoneError")
	}
	instrs := allInstrs(fn)
	raised := false
	for _, i := range instrs {
		if c, ok := i.(*Call); ok && c.Callee == "__pluto_raise_error" {
			raised = true
		}
	}
	if !raised {
		t.Fatalf("expected a call to __pluto_raise_error for the none case, got %v", instrs)
	}
	var check *ErrorCheck
	for _, i := range instrs {
		if ec, ok := i.(*ErrorCheck); ok {
			check = ec
		}
	}
	if check == nil || check.CatchBlock != -1 {
		t.Fatalf("expected a propagating ErrorCheck for `?`, got %v", check)
	}
	branches := 0
	for _, b := range fn.Blocks {
		if _, ok := b.Term.(*Branch); ok {
			branches++
		}
	}
	if branches == 0 {
		t.Fatalf("expected a none-check Branch for `?`, got none")
	}
}

func TestLowerCatchOnNullableUnwrapSkipsPropagatingErrorCheck(t *testing.T) {
	src := "fn maybe() int? {\n    return none\n}\n\n" +
		"fn first() int {\n    let x = maybe()? catch 0\n    return x\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "first")
	if fn == nil {
		t.Fatalf("expected a lowered Func named first, got %v", mod.Funcs)
	}
	instrs := allInstrs(fn)
	for _, i := range instrs {
		if ec, ok := i.(*ErrorCheck); ok {
			t.Fatalf("expected no propagating ErrorCheck when `?` is caught, got %v", ec)
		}
	}
	raised := false
	for _, i := range instrs {
		if c, ok := i.(*Call); ok && c.Callee == "__pluto_raise_error" {
			raised = true
		}
	}
	if !raised {
		t.Fatalf("expected a call to __pluto_raise_error for the none case, got %v", instrs)
	}
}

func TestLowerCatchBranchesAndMergesIntoOneResult(t *testing.T) {
	src := "error NotFoundError {\n}\n\n" +
		"fn risky() int {\n    raise NotFoundError{}\n}\n\n" +
		"fn caller() int {\n    let x = risky() catch 0\n    return x\n}\n"
	mod := lowerSource(t, src)

	fn := findFunc(mod, "caller")
	if fn == nil {
		t.Fatalf("expected a lowered Func named caller, got %v", mod.Funcs)
	}
	branches := 0
	jumps := 0
	var assignDsts []int
	for _, b := range fn.Blocks {
		switch b.Term.(type) {
		case *Branch:
			branches++
		case *Jump:
			jumps++
		}
		for _, i := range b.Instrs {
			if a, ok := i.(*Assign); ok {
				assignDsts = append(assignDsts, a.Dst)
			}
		}
	}
	if branches == 0 {
		t.Fatalf("expected a Branch on the error slot for the catch, got none")
	}
	if jumps == 0 {
		t.Fatalf("expected the handler path to jump to a merge block, got none")
	}
	if len(assignDsts) != 2 || assignDsts[0] != assignDsts[1] {
		t.Fatalf("expected both the handler and normal paths to assign the same shared result temp, got %v", assignDsts)
	}
}

func TestLowerClassMethodIsMangledWithOwnerName(t *testing.T) {
	src := "class Greeter {\n    fn greet() string {\n        return \"hi\"\n    }\n}\n"
	mod := lowerSource(t, src)

	if findFunc(mod, MethodSymbol("Greeter", "greet")) == nil {
		var names []string
		for _, f := range mod.Funcs {
			names = append(names, f.Name)
		}
		t.Fatalf("expected a Func named %q, got %v", MethodSymbol("Greeter", "greet"), names)
	}
}

func TestLowerTraitImplementationProducesVtable(t *testing.T) {
	src := "trait Greets {\n    requires fn greet() string\n}\n\n" +
		"class Person impl Greets {\n    fn greet() string {\n        return \"hi\"\n    }\n}\n"
	mod := lowerSource(t, src)

	var vt *Vtable
	for _, v := range mod.Vtables {
		if v.Trait == "Greets" && v.Class == "Person" {
			vt = v
		}
	}
	if vt == nil {
		t.Fatalf("expected a Vtable for (Greets, Person), got %v", mod.Vtables)
	}
	if len(vt.Slots) != 1 || vt.Slots[0].Method != "greet" {
		t.Fatalf("expected a single greet slot, got %+v", vt.Slots)
	}
	if vt.Slots[0].Symbol != MethodSymbol("Person", "greet") {
		t.Fatalf("expected slot symbol %q, got %q", MethodSymbol("Person", "greet"), vt.Slots[0].Symbol)
	}
}

func TestLowerMonomorphizedInstanceReusesBodyUnderMangledName(t *testing.T) {
	src := "class Box<T> {\n    value: T\n\n    fn get(self) T {\n        return self.value\n    }\n}\n\n" +
		"fn main() {\n    let b: Box<int> = Box{value: 1}\n}\n"
	mod := lowerSource(t, src)

	if findFunc(mod, MethodSymbol("Box__Int", "get")) == nil {
		var names []string
		for _, f := range mod.Funcs {
			names = append(names, f.Name)
		}
		t.Fatalf("expected a Func named %q for the monomorphized instance, got %v", MethodSymbol("Box__Int", "get"), names)
	}
	// The generic declaration itself is never lowered directly.
	if findFunc(mod, MethodSymbol("Box", "get")) != nil {
		t.Fatalf("did not expect the unmonomorphized generic method to be lowered")
	}
}

func TestBuildEnumLayoutAssignsDiscriminantsInDeclarationOrder(t *testing.T) {
	src := "enum Shape {\n    Circle { radius: int }\n    Square { side: int }\n    Triangle { base: int }\n}\n\n" +
		"fn f(s: Shape) int {\n    return 0\n}\n"
	prog := parseProgram(t, src)
	env, errs := types.Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected register errors: %v", errs)
	}
	ei := env.Enums["Shape"]
	if ei == nil {
		t.Fatalf("expected Shape to be registered")
	}
	layout := BuildEnumLayout(ei)
	if layout.Discriminant["Circle"] != 0 || layout.Discriminant["Square"] != 1 || layout.Discriminant["Triangle"] != 2 {
		t.Fatalf("expected discriminants in declaration order, got %+v", layout.Discriminant)
	}
}

func TestBuildClassLayoutPlacesBracketsBeforeFields(t *testing.T) {
	src := "class Logger {\n}\n\n" +
		"class Service [log: Logger] {\n    name: string\n}\n"
	prog := parseProgram(t, src)
	env, errs := types.Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected register errors: %v", errs)
	}
	ci := env.Classes["Service"]
	if ci == nil {
		t.Fatalf("expected Service to be registered")
	}
	layout := BuildClassLayout(ci)
	if layout.BracketOff["log"] != 0 {
		t.Fatalf("expected the log bracket dependency at offset 0, got %d", layout.BracketOff["log"])
	}
	if layout.FieldOff["name"] != wordSize {
		t.Fatalf("expected name field right after the bracket slot, got %d", layout.FieldOff["name"])
	}
}
