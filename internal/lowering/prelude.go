package lowering

import "github.com/pluto-lang/plutoc/internal/ast"

// preludeTypes are the built-in generic types every module may reference
// without an explicit import: Task, Channel, and Secret live in the
// standard library but are part of the surface grammar (parser_type.go
// recognizes `Task`/`Channel` as type-expression keywords), so the
// modules backing them must always be on a module's reachable set.
var preludeTypes = []string{"std.task", "std.channel", "std.secret"}

// InjectPrelude prepends an implicit import of each prelude module to
// every non-stdlib module that doesn't already import it, mirroring how
// the teacher auto-loads its numeric/prelude instances unless a module
// opts out (here there is no opt-out: prelude types are load-bearing
// grammar, not a convenience).
func InjectPrelude(prog *ast.Program) []error {
	for _, mod := range prog.Modules {
		if mod.Origin == ast.OriginStdlib {
			continue
		}
		have := make(map[string]bool, len(mod.Imports))
		for _, imp := range mod.Imports {
			have[imp.Path] = true
		}
		var injected []*ast.ImportDecl
		for _, path := range preludeTypes {
			if have[path] || mod.Path == path {
				continue
			}
			injected = append(injected, &ast.ImportDecl{
				Base: ast.NewBase(ast.Span{}),
				Path: path,
			})
		}
		if len(injected) > 0 {
			mod.Imports = append(injected, mod.Imports...)
		}
	}
	return nil
}
