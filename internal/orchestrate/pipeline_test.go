package orchestrate

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRunCompilesSimpleProgramThroughCodegen(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.pluto", "fn add(a: int, b: int) int {\n  return a + b\n}\n")

	res, errs := Run(Config{EntryFile: entry, StdlibRoot: filepath.Join(dir, "stdlib")})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if res.Module == nil {
		t.Fatal("expected a lowered Module")
	}
	if res.Sources.Get(entry) == nil {
		t.Fatal("expected entry file registered in Sources")
	}
	for _, phase := range []string{"load", "lower", "typecheck", "monomorphize", "codegen"} {
		if _, ok := res.PhaseTimings[phase]; !ok {
			t.Errorf("missing phase timing for %q", phase)
		}
	}
}

func TestRunStopsAtFirstParseErrorWithoutLaterPhases(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.pluto", "fn broken( {\n")

	res, errs := Run(Config{EntryFile: entry, StdlibRoot: filepath.Join(dir, "stdlib")})
	if len(errs) == 0 {
		t.Fatal("expected a parse error")
	}
	if res.Module != nil {
		t.Fatal("expected no Module on parse failure")
	}
	if _, ok := res.PhaseTimings["typecheck"]; ok {
		t.Fatal("typecheck phase should not have run after a load failure")
	}
}

func TestRunStopAfterTypecheckSkipsMonomorphizeAndCodegen(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.pluto", "fn add(a: int, b: int) int {\n  return a + b\n}\n")

	res, errs := Run(Config{EntryFile: entry, StdlibRoot: filepath.Join(dir, "stdlib"), StopAfter: "typecheck"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if res.TypeResult == nil {
		t.Fatal("expected TypeResult to be populated")
	}
	if res.MonoPlan != nil || res.Module != nil {
		t.Fatal("expected monomorphize and codegen to be skipped")
	}
	if _, ok := res.PhaseTimings["monomorphize"]; ok {
		t.Fatal("monomorphize phase should not have run with StopAfter=typecheck")
	}
}
