package module

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
	"github.com/pluto-lang/plutoc/internal/parser"
	"github.com/pluto-lang/plutoc/internal/source"
)

// Loader resolves and parses an entry file and everything it transitively
// imports into one flattened *ast.Program.
type Loader struct {
	resolver *Resolver
	cache    map[string]*ast.Module // keyed by resolved absolute path
	stack    []string               // resolved paths currently being loaded, for cycle detection
	Sources  *source.Set            // every file read, for snippet rendering in diagnostics
}

// NewLoader builds a Loader rooted at entryFile, resolving `std.*`
// imports against stdlibRoot.
func NewLoader(entryFile, stdlibRoot string) *Loader {
	return &Loader{
		resolver: NewResolver(entryFile, stdlibRoot),
		cache:    make(map[string]*ast.Module),
		Sources:  source.NewSet(),
	}
}

// LoadEntry parses the entry file and every module it transitively
// imports, returning the flattened program. The entry itself occupies
// the first slot of the load-stack, so a cycle that eventually
// re-imports the entry file is caught the same way any other cycle is.
func (l *Loader) LoadEntry(entryFile string) (*ast.Program, []error) {
	mod, errs := l.loadFile(entryFile, OriginLocal)
	if mod == nil {
		return nil, errs
	}
	abs, absErr := filepath.Abs(entryFile)
	if absErr != nil {
		abs = entryFile
	}
	mod.Path = abs
	prog := &ast.Program{Modules: []*ast.Module{mod}}
	l.cache[abs] = mod
	l.stack = append(l.stack, abs)
	errs = append(errs, l.loadImportsOf(mod, prog)...)
	l.stack = l.stack[:len(l.stack)-1]
	return prog, errs
}

// loadImportsOf loads each of mod's imports, in declaration order.
func (l *Loader) loadImportsOf(mod *ast.Module, prog *ast.Program) []error {
	var errs []error
	for _, imp := range mod.Imports {
		errs = append(errs, l.load(imp.Path, prog)...)
	}
	return errs
}

// load resolves and parses one dotted import path, memoizing by resolved
// path and detecting import cycles via a load-stack. It recurses into the
// loaded module's own imports before returning, so the stack stays
// populated for the whole subtree currently being loaded — a cycle of any
// length is caught, not just a direct one-hop self-import.
func (l *Loader) load(path string, prog *ast.Program) []error {
	res, err := l.resolver.Resolve(path)
	if err != nil {
		return []error{&errors.ReportError{Rep: errors.New("module", errors.LDR001, err.Error(), nil, nil)}}
	}
	key := res.Path

	for _, onStack := range l.stack {
		if onStack == key {
			cycle := append(append([]string{}, l.stack...), key)
			return []error{&errors.ReportError{Rep: errors.New("module", errors.LDR002,
				"circular import: "+strings.Join(cycle, " -> "), nil,
				map[string]any{"cycle": cycle})}}
		}
	}
	if _, ok := l.cache[key]; ok {
		return nil
	}

	l.stack = append(l.stack, key)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	mod, errs := l.loadResolved(path, res)
	if mod == nil {
		return errs
	}
	l.cache[key] = mod
	prog.Modules = append(prog.Modules, mod)
	errs = append(errs, l.loadImportsOf(mod, prog)...)
	return errs
}

func (l *Loader) loadResolved(path string, res *Resolved) (*ast.Module, []error) {
	var files []string
	if res.IsDir {
		fs, err := DirFiles(res.Path)
		if err != nil {
			return nil, []error{err}
		}
		files = fs
	} else {
		files = []string{res.Path}
	}

	mod := &ast.Module{Path: path, Origin: toAstOrigin(res.Origin), Files: files}
	var errs []error
	for _, f := range files {
		sub, subErrs := l.loadFile(f, res.Origin)
		errs = append(errs, subErrs...)
		if sub == nil {
			continue
		}
		mod.Decls = append(mod.Decls, sub.Decls...)
		mod.Imports = append(mod.Imports, sub.Imports...)
	}
	return mod, errs
}

// loadFile lexes and parses a single source file into a one-file module
// (Path left empty; callers merge Decls/Imports into the owning module).
func (l *Loader) loadFile(file string, origin Origin) (*ast.Module, []error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, []error{&errors.ReportError{Rep: errors.New("module", errors.LDR001,
			"cannot read source file: "+err.Error(), nil, map[string]any{"file": file})}}
	}
	l.Sources.Add(file, string(src))
	toks, lexErr := lexer.Lex(string(src), file)
	if lexErr != nil {
		return nil, []error{lexErr}
	}
	decls, parseErrs := parser.ParseFile(toks, file)
	if len(parseErrs) > 0 {
		out := make([]error, len(parseErrs))
		for i, e := range parseErrs {
			out[i] = e
		}
		return nil, out
	}

	mod := &ast.Module{Origin: toAstOrigin(origin), Files: []string{file}}
	for _, d := range decls {
		if imp, ok := d.(*ast.ImportDecl); ok {
			mod.Imports = append(mod.Imports, imp)
			continue
		}
		mod.Decls = append(mod.Decls, d)
	}
	return mod, nil
}

func toAstOrigin(o Origin) ast.ImportOrigin {
	switch o {
	case OriginPackage:
		return ast.OriginPackage
	case OriginStdlib:
		return ast.OriginStdlib
	default:
		return ast.OriginLocal
	}
}
