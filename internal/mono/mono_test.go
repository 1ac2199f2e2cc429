package mono

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
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

func runMono(t *testing.T, src string) (*Plan, []error) {
	t.Helper()
	prog := parseProgram(t, src)
	env, errs := types.Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected register errors: %v", errs)
	}
	if errs := types.Check(prog, env); len(errs) != 0 {
		t.Fatalf("unexpected check errors: %v", errs)
	}
	return Monomorphize(prog, env)
}

func findInstance(plan *Plan, mangled string) *Instance {
	for _, inst := range plan.Instances {
		if inst.Mangled == mangled {
			return inst
		}
	}
	return nil
}

func TestMonomorphizeClassInstantiationFromLetAnnotation(t *testing.T) {
	src := "class Box<T> {\n    value: T\n}\n\n" +
		"fn main() {\n    let b: Box<int> = Box{value: 1}\n}\n"
	plan, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	inst := findInstance(plan, "Box__Int")
	if inst == nil {
		t.Fatalf("expected a Box__Int instance, got %v", plan.Instances)
	}
	if inst.ClassDecl == nil || inst.ClassDecl.Name != "Box" {
		t.Fatalf("expected the instance to reference the Box declaration, got %+v", inst)
	}
	if len(inst.TypeArgs) != 1 || !types.Equal(inst.TypeArgs[0], types.Int) {
		t.Fatalf("expected a single int type argument, got %v", inst.TypeArgs)
	}
}

func TestMonomorphizeDeduplicatesRepeatedInstantiations(t *testing.T) {
	src := "class Box<T> {\n    value: T\n}\n\n" +
		"fn main() {\n    let a: Box<int> = Box{value: 1}\n    let b: Box<int> = Box{value: 2}\n}\n"
	plan, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	count := 0
	for _, inst := range plan.Instances {
		if inst.Mangled == "Box__Int" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one Box__Int instance, got %d", count)
	}
}

func TestMonomorphizeDistinctTypeArgsProduceDistinctInstances(t *testing.T) {
	src := "class Box<T> {\n    value: T\n}\n\n" +
		"fn main() {\n    let a: Box<int> = Box{value: 1}\n    let b: Box<string> = Box{value: \"x\"}\n}\n"
	plan, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if findInstance(plan, "Box__Int") == nil || findInstance(plan, "Box__String") == nil {
		t.Fatalf("expected both Box__Int and Box__String, got %v", plan.Instances)
	}
}

func TestMonomorphizeNestedGenericProducesBothInstances(t *testing.T) {
	src := "class Box<T> {\n    value: T\n}\n\n" +
		"fn main() {\n    let b: Box<Box<int>> = Box{value: Box{value: 1}}\n}\n"
	plan, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if findInstance(plan, "Box__Int") == nil {
		t.Fatalf("expected the inner Box__Int instance, got %v", plan.Instances)
	}
	if findInstance(plan, "Box__Box_Int") == nil {
		t.Fatalf("expected the outer Box__Box_Int instance, got %v", plan.Instances)
	}
}

func TestMonomorphizeArityMismatchIsMONO001(t *testing.T) {
	src := "class Pair<A, B> {\n    first: A\n    second: B\n}\n\n" +
		"fn main() {\n    let p: Pair<int> = Pair{first: 1, second: 2}\n}\n"
	_, errs := runMono(t, src)
	if !hasCode(errs, "MONO001") {
		t.Fatalf("expected MONO001 for a type-argument arity mismatch, got %v", codesOf(errs))
	}
}

func TestMonomorphizeExcessiveNestingIsMONO002(t *testing.T) {
	src := "class Box<T> {\n    value: T\n}\n\n" +
		"fn main() {\n    let b: Box<Box<Box<Box<Box<Box<Box<Box<Box<int>>>>>>>>> = b\n}\n"
	_, errs := runMono(t, src)
	if !hasCode(errs, "MONO002") {
		t.Fatalf("expected MONO002 for excessive instantiation depth, got %v", codesOf(errs))
	}
}

func TestMonomorphizeFunctionCallInferredFromLiteralArgument(t *testing.T) {
	src := "fn identity<T>(x: T) T {\n    return x\n}\n\n" +
		"fn main() {\n    let y = identity(5)\n}\n"
	plan, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	inst := findInstance(plan, "identity__Int")
	if inst == nil || inst.FuncDecl == nil || inst.FuncDecl.Name != "identity" {
		t.Fatalf("expected an identity__Int function instance, got %v", plan.Instances)
	}
}

func TestMonomorphizeUnsatisfiedBoundIsMONO001(t *testing.T) {
	src := "class Greeter {\n    fn greet() string {\n        return \"hi\"\n    }\n}\n\n" +
		"class Silent {\n}\n\n" +
		"class Box<T> {\n    value: T\n\n" +
		"    fn announce(self) {\n        self.value.greet()\n    }\n}\n\n" +
		"fn main() {\n    let a: Box<Greeter> = Box{value: Greeter{}}\n" +
		"    let b: Box<Silent> = Box{value: Silent{}}\n}\n"
	_, errs := runMono(t, src)
	if !hasCode(errs, "MONO001") {
		t.Fatalf("expected MONO001 for Box<Silent> not providing greet(), got %v", codesOf(errs))
	}
}

func TestMonomorphizeSatisfiedBoundProducesNoErrors(t *testing.T) {
	src := "class Greeter {\n    fn greet() string {\n        return \"hi\"\n    }\n}\n\n" +
		"class Box<T> {\n    value: T\n\n" +
		"    fn announce(self) {\n        self.value.greet()\n    }\n}\n\n" +
		"fn main() {\n    let a: Box<Greeter> = Box{value: Greeter{}}\n}\n"
	_, errs := runMono(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}
