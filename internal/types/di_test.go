package types

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
)

func runDI(t *testing.T, src string) (*DIPlan, []error) {
	t.Helper()
	prog := parseProgram(t, src)
	env, errs := Register(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected register errors: %v", errs)
	}
	return ValidateDI(prog, env)
}

func TestValidateDIOrdersDependenciesFirst(t *testing.T) {
	src := "class Repo {\n}\n\nclass Service [repo: Repo] {\n}\n"
	plan, errs := runDI(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	repoIdx, svcIdx := -1, -1
	for i, n := range plan.Order {
		switch n {
		case "Repo":
			repoIdx = i
		case "Service":
			svcIdx = i
		}
	}
	if repoIdx == -1 || svcIdx == -1 || repoIdx > svcIdx {
		t.Fatalf("expected Repo to precede Service in %v", plan.Order)
	}
}

func TestValidateDIDetectsCycleAsDI001(t *testing.T) {
	src := "class A [b: B] {\n}\n\nclass B [a: A] {\n}\n"
	_, errs := runDI(t, src)
	if !hasCode(errs, "DI001") {
		t.Fatalf("expected DI001 for a dependency cycle, got %v", codesOf(errs))
	}
}

func TestValidateDIUnimplementedTraitProviderIsDI002(t *testing.T) {
	// Repo is a known trait, so Register's cheap name check accepts it, but
	// no class implements it, so ValidateDI can't resolve a unique provider.
	src := "trait Repo {\n    requires fn get() int\n}\n\nclass Service [repo: Repo] {\n}\n"
	_, errs := runDI(t, src)
	if !hasCode(errs, "DI002") {
		t.Fatalf("expected DI002 for a bracket dependency with no resolvable provider, got %v", codesOf(errs))
	}
}

func TestValidateDICaptiveDependencyIsDI003(t *testing.T) {
	// Service is singleton but depends on a transient Repo: Repo will be torn
	// down while the singleton Service still holds a reference to it.
	src := "class Repo transient {\n}\n\nclass Service [repo: Repo] singleton {\n}\n"
	_, errs := runDI(t, src)
	if !hasCode(errs, "DI003") {
		t.Fatalf("expected DI003 for a captive dependency, got %v", codesOf(errs))
	}
}

func TestValidateDIUnspecifiedLifecycleDefaultsToSingletonWithNoDeps(t *testing.T) {
	// Repo has no bracket deps and no explicit lifecycle, so it defaults to
	// singleton; an explicit singleton Service depending on it is not captive.
	src := "class Repo {\n}\n\nclass Service [repo: Repo] singleton {\n}\n"
	plan, errs := runDI(t, src)
	if hasCode(errs, "DI003") {
		t.Fatalf("expected no DI003: unspecified-lifecycle Repo should default to singleton, got %v", codesOf(errs))
	}
	if plan.Lifecycles["Repo"] != ast.LifecycleSingleton {
		t.Fatalf("expected Repo to default to singleton, got %v", plan.Lifecycles["Repo"])
	}
}

func TestValidateDIUnspecifiedLifecycleDefaultsToMinOfDeps(t *testing.T) {
	// Cache has no explicit lifecycle and one transient bracket dependency, so
	// it defaults to the dependency's (shorter-lived) rank rather than
	// singleton, matching a class with no bracket deps at all.
	src := "class Conn transient {\n}\n\nclass Cache [conn: Conn] {\n}\n"
	plan, errs := runDI(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if plan.Lifecycles["Cache"] != ast.LifecycleTransient {
		t.Fatalf("expected Cache to default to transient (min of its deps), got %v", plan.Lifecycles["Cache"])
	}
}

func TestValidateDIUnregisteredAmbientIsDI004(t *testing.T) {
	src := "trait Logger {\n    requires fn log(msg: string)\n}\n\n" +
		"class Worker uses Logger {\n}\n"
	_, errs := runDI(t, src)
	if !hasCode(errs, "DI004") {
		t.Fatalf("expected DI004 for an unregistered ambient, got %v", codesOf(errs))
	}
}

func TestValidateDIManualConstructionIsDI005(t *testing.T) {
	src := "class Repo {\n}\n\nclass Service [repo: Repo] {\n}\n\n" +
		"fn build() {\n    let s = Service { repo: Repo {} }\n}\n"
	_, errs := runDI(t, src)
	if !hasCode(errs, "DI005") {
		t.Fatalf("expected DI005 for manually constructing a DI-managed class, got %v", codesOf(errs))
	}
}
