package iface

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
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

func buildIface(t *testing.T, src string) *Iface {
	t.Helper()
	prog := parseProgram(t, src)
	res, errs := types.Run(prog)
	if len(errs) != 0 {
		t.Fatalf("unexpected type errors: %v", errs)
	}
	return Build(prog.Modules[0], res.Env)
}

func TestBuildSkipsNonPubDeclarations(t *testing.T) {
	iface := buildIface(t, "fn helper() int {\n  return 1\n}\npub fn add(a: int, b: int) int {\n  return a + b\n}\n")
	if _, ok := iface.Funcs["helper"]; ok {
		t.Fatal("non-pub function was exported")
	}
	fe, ok := iface.Funcs["add"]
	if !ok {
		t.Fatal("pub function add missing from interface")
	}
	if fe.Ret != "int" || len(fe.Params) != 2 {
		t.Fatalf("add signature = %+v, want ret=int params=2", fe)
	}
}

func TestBuildCapturesPubClassShape(t *testing.T) {
	iface := buildIface(t, "pub class Point {\n  x: int\n  y: int\n}\n")
	ce, ok := iface.Classes["Point"]
	if !ok {
		t.Fatal("pub class Point missing from interface")
	}
	if ce.Fields["x"] != "int" || ce.Fields["y"] != "int" {
		t.Fatalf("Point fields = %+v, want x/y int", ce.Fields)
	}
}

func TestDigestIsDeterministicAcrossRebuilds(t *testing.T) {
	src := "pub fn add(a: int, b: int) int {\n  return a + b\n}\n"
	d1 := buildIface(t, src).Digest
	d2 := buildIface(t, src).Digest
	if d1 == "" {
		t.Fatal("empty digest")
	}
	if d1 != d2 {
		t.Fatalf("digest not deterministic: %q vs %q", d1, d2)
	}
}

func TestDigestChangesWhenExportedSignatureChanges(t *testing.T) {
	before := buildIface(t, "pub fn add(a: int, b: int) int {\n  return a + b\n}\n").Digest
	after := buildIface(t, "pub fn add(a: int, b: int) float {\n  return 1.0\n}\n").Digest
	if before == after {
		t.Fatal("digest unchanged after exported return type changed")
	}
}

func TestDigestUnchangedWhenOnlyPrivateFunctionChanges(t *testing.T) {
	before := buildIface(t, "pub fn add(a: int, b: int) int {\n  return a + b\n}\nfn helper() int {\n  return 1\n}\n").Digest
	after := buildIface(t, "pub fn add(a: int, b: int) int {\n  return a + b\n}\nfn helper() int {\n  return 2\n}\n").Digest
	if before != after {
		t.Fatal("digest changed even though only a non-pub function's body changed")
	}
}
