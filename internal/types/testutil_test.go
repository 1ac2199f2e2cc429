package types

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
	"github.com/pluto-lang/plutoc/internal/parser"
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
