package lowering

import (
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// DesugarAmbients rewrites `class X uses A, B [d: D] { ... }` into hidden
// injected fields `_amb_a: A`, `_amb_b: B` on the class, and rewrites
// bare identifier references to an ambient's lowercase-initial name
// (the convention a class body uses to refer to its own ambient, e.g.
// `uses Logger` is referenced as `logger` in method bodies) into
// `self._amb_logger` field accesses.
func DesugarAmbients(prog *ast.Program) []error {
	for _, mod := range prog.Modules {
		for _, d := range mod.Decls {
			if c, ok := d.(*ast.ClassDecl); ok {
				desugarClassAmbients(c)
			}
		}
	}
	return nil
}

func desugarClassAmbients(c *ast.ClassDecl) {
	if len(c.Uses) == 0 {
		return
	}
	names := make(map[string]string, len(c.Uses)) // bare reference name -> ambient field name
	for _, typeName := range c.Uses {
		field := "_amb_" + lowerInitial(typeName)
		names[lowerInitial(typeName)] = field
		c.Fields = append(c.Fields, ast.Field{
			Name: field,
			Type: &ast.NamedType{NamedBase: ast.NamedBase{Base: c.Base}, Name: typeName},
		})
	}

	for _, m := range c.Methods {
		bound := map[string]bool{}
		for _, p := range m.Params {
			bound[p.Name] = true
		}
		collectBoundNames(m.Body, bound)

		rw := func(e ast.Expr) ast.Expr {
			id, ok := e.(*ast.Identifier)
			if !ok || bound[id.Name] {
				return e
			}
			field, isAmbient := names[id.Name]
			if !isAmbient {
				return e
			}
			return &ast.FieldAccess{
				ExprBase: ast.ExprBase{Base: id.Base},
				Recv:     &ast.Identifier{ExprBase: ast.ExprBase{Base: id.Base}, Name: "self"},
				Field:    field,
			}
		}
		RewriteBlock(m.Body, rw)
	}
}

func lowerInitial(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
