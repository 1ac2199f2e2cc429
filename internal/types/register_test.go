package types

import "testing"

func TestRegisterResolvesClassFields(t *testing.T) {
	prog := parseProgram(t, "class Point {\n    x: int\n    y: int\n}\n")

	env, errs := Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	ci, ok := env.Classes["Point"]
	if !ok {
		t.Fatalf("expected class Point to be registered")
	}
	if !Equal(ci.Fields["x"], Int) || !Equal(ci.Fields["y"], Int) {
		t.Fatalf("expected fields x, y to resolve to int, got %v", ci.Fields)
	}
}

func TestRegisterResolvesForwardReference(t *testing.T) {
	// Box references Item, declared later in the same module — Register's
	// two-pass shell-then-resolve algorithm must tolerate this.
	src := "class Box {\n    item: Item\n}\n\nclass Item {\n    name: string\n}\n"
	prog := parseProgram(t, src)

	env, errs := Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	box := env.Classes["Box"]
	if _, ok := box.Fields["item"].(Class); !ok {
		t.Fatalf("expected item field to resolve to a Class type, got %v", box.Fields["item"])
	}
}

func TestRegisterBracketDeps(t *testing.T) {
	src := "class Repo {\n}\n\nclass Service [repo: Repo] {\n}\n"
	prog := parseProgram(t, src)

	env, errs := Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	svc := env.Classes["Service"]
	if len(svc.Brackets) != 1 || svc.Brackets[0].Name != "repo" || svc.Brackets[0].Type != "Repo" {
		t.Fatalf("expected one bracket dep repo: Repo, got %v", svc.Brackets)
	}
}

func TestRegisterDuplicateDeclIsMOD001(t *testing.T) {
	src := "class Foo {\n}\n\nclass Foo {\n}\n"
	prog := parseProgram(t, src)

	_, errs := Register(prog)
	if !hasCode(errs, "MOD001") {
		t.Fatalf("expected MOD001 for duplicate declaration, got %v", codesOf(errs))
	}
}

func TestRegisterUnknownFieldTypeIsMOD002(t *testing.T) {
	src := "class Foo {\n    bar: Nonexistent\n}\n"
	prog := parseProgram(t, src)

	_, errs := Register(prog)
	if !hasCode(errs, "MOD002") {
		t.Fatalf("expected MOD002 for unknown type name, got %v", codesOf(errs))
	}
}

func TestRegisterFreeFunctionSignature(t *testing.T) {
	src := "fn add(a: int, b: int) int {\n    return a + b\n}\n"
	prog := parseProgram(t, src)

	env, errs := Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	sig, ok := env.Functions["add"]
	if !ok {
		t.Fatalf("expected function add to be registered")
	}
	if len(sig.Params) != 2 || !Equal(sig.Params[0], Int) || !Equal(sig.Ret, Int) {
		t.Fatalf("unexpected signature: %+v", sig)
	}
}
