package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadEntryWithSiblingImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.pluto", "pub fn helper() int {\n  return 1\n}\n")
	entry := writeFile(t, dir, "main.pluto", "import util\nfn main() {\n}\n")

	l := NewLoader(entry, filepath.Join(dir, "stdlib"))
	prog, errs := l.LoadEntry(entry)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(prog.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(prog.Modules))
	}
}

func TestLoadEntryDetectsCircularImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pluto", "import b\nfn fa() {\n}\n")
	writeFile(t, dir, "b.pluto", "import a\nfn fb() {\n}\n")
	entry := filepath.Join(dir, "a.pluto")

	l := NewLoader(entry, filepath.Join(dir, "stdlib"))
	_, errs := l.LoadEntry(entry)
	if len(errs) == 0 {
		t.Fatalf("expected a circular import error")
	}
}

func TestLoadEntryMissingImportReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.pluto", "import does.not.exist\nfn main() {\n}\n")

	l := NewLoader(entry, filepath.Join(dir, "stdlib"))
	_, errs := l.LoadEntry(entry)
	if len(errs) == 0 {
		t.Fatalf("expected a module-not-found error")
	}
}

func TestDirectoryModuleConcatenatesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "shapes")
	if err := os.Mkdir(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, pkgDir, "a_circle.pluto", "pub fn circleArea(r: float) float {\n  return r\n}\n")
	writeFile(t, pkgDir, "b_square.pluto", "pub fn squareArea(s: float) float {\n  return s\n}\n")
	entry := writeFile(t, dir, "main.pluto", "import shapes\nfn main() {\n}\n")

	l := NewLoader(entry, filepath.Join(dir, "stdlib"))
	prog, errs := l.LoadEntry(entry)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	var shapesMod = prog.Modules[1]
	if shapesMod.Path != "shapes" {
		t.Fatalf("expected module path 'shapes', got %q", shapesMod.Path)
	}
	if len(shapesMod.Decls) != 2 {
		t.Fatalf("expected 2 decls across both files, got %d", len(shapesMod.Decls))
	}
}

func TestLoadEntryRegistersEveryFileInSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.pluto", "pub fn helper() int {\n  return 1\n}\n")
	entry := writeFile(t, dir, "main.pluto", "import util\nfn main() {\n}\n")

	l := NewLoader(entry, filepath.Join(dir, "stdlib"))
	if _, errs := l.LoadEntry(entry); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if l.Sources.Get(entry) == nil {
		t.Fatal("entry file not registered in Sources")
	}
	util := filepath.Join(dir, "util.pluto")
	if l.Sources.Get(util) == nil {
		t.Fatal("imported file not registered in Sources")
	}
}

func TestStdlibImportResolvesUnderStdlibRoot(t *testing.T) {
	dir := t.TempDir()
	stdlib := filepath.Join(dir, "stdlib")
	if err := os.MkdirAll(filepath.Join(stdlib, "io"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(stdlib, "io"), "io.pluto", "pub fn println(msg: string) {\n}\n")
	entry := writeFile(t, dir, "main.pluto", "import std.io\nfn main() {\n}\n")

	l := NewLoader(entry, stdlib)
	prog, errs := l.LoadEntry(entry)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if prog.Modules[1].Origin != ast.OriginStdlib {
		t.Errorf("origin = %v, want OriginStdlib", prog.Modules[1].Origin)
	}
}
