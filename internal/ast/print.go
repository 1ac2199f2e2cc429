package ast

import (
	"fmt"
	"strings"
)

// Dump renders a module's declaration names and kinds, one per line.
// It exists for debug/test output (`--dump-ast`-style tooling lives
// outside the compiler core); it is not a source-accurate pretty-printer.
func Dump(m *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s (%d decls)\n", m.Path, len(m.Decls))
	for _, d := range m.Decls {
		fmt.Fprintf(&b, "  %s %s\n", declKind(d), d.DeclName())
	}
	return b.String()
}

func declKind(d Decl) string {
	switch d.(type) {
	case *FuncDecl:
		return "fn"
	case *ClassDecl:
		return "class"
	case *TraitDecl:
		return "trait"
	case *EnumDecl:
		return "enum"
	case *ErrorDecl:
		return "error"
	case *StageDecl:
		return "stage"
	case *ExternDecl:
		return "extern"
	case *TestDecl:
		return "test"
	default:
		return "decl"
	}
}
