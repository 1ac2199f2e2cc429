// Package module resolves dotted import paths (`import a.b.c`) to source
// files or directories and loads them into flattened, tagged modules.
package module

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver turns a dotted import path into a filesystem location, trying
// each tier in order: sibling of the entry file, the `.deps` cache, then
// the stdlib root for `std.*` paths.
type Resolver struct {
	entryDir   string
	stdlibRoot string
	depsDir    string
}

// NewResolver builds a Resolver rooted at the directory containing the
// entry source file.
func NewResolver(entryFile, stdlibRoot string) *Resolver {
	if abs, err := filepath.Abs(entryFile); err == nil {
		entryFile = abs
	}
	dir := filepath.Dir(entryFile)
	return &Resolver{
		entryDir:   dir,
		stdlibRoot: stdlibRoot,
		depsDir:    filepath.Join(dir, ".deps"),
	}
}

// Resolved is one resolved import: either a single file or a directory
// whose .pluto files are concatenated in lexicographic order.
type Resolved struct {
	Path   string
	IsDir  bool
	Origin Origin
}

// Origin classifies where a module's sources were found.
type Origin int

const (
	OriginLocal Origin = iota
	OriginPackage
	OriginStdlib
)

func (o Origin) String() string {
	switch o {
	case OriginPackage:
		return "package"
	case OriginStdlib:
		return "stdlib"
	default:
		return "local"
	}
}

func segmentsToPath(dotted string) string {
	return filepath.Join(strings.Split(dotted, ".")...)
}

// Resolve finds the file or directory backing a dotted import path,
// trying sibling, `.deps`, and stdlib tiers in order.
func (r *Resolver) Resolve(dotted string) (*Resolved, error) {
	rel := segmentsToPath(dotted)

	if segs := strings.SplitN(dotted, ".", 2); len(segs) > 0 && segs[0] == "std" {
		stdRel := segmentsToPath(strings.TrimPrefix(dotted, "std."))
		if res, ok := tryPath(filepath.Join(r.stdlibRoot, stdRel), OriginStdlib); ok {
			return res, nil
		}
		return nil, &ResolveError{Path: dotted, Tiers: []string{"stdlib"}}
	}

	if res, ok := tryPath(filepath.Join(r.entryDir, rel), OriginLocal); ok {
		return res, nil
	}

	first := strings.SplitN(dotted, ".", 2)[0]
	depRest := strings.TrimPrefix(dotted, first)
	depRest = strings.TrimPrefix(depRest, ".")
	depPath := filepath.Join(r.depsDir, first, segmentsToPath(depRest))
	if depRest == "" {
		depPath = filepath.Join(r.depsDir, first)
	}
	if res, ok := tryPath(depPath, OriginPackage); ok {
		return res, nil
	}

	return nil, &ResolveError{Path: dotted, Tiers: []string{"sibling", "deps"}}
}

func tryPath(base string, origin Origin) (*Resolved, bool) {
	if info, err := os.Stat(base); err == nil && info.IsDir() {
		return &Resolved{Path: base, IsDir: true, Origin: origin}, true
	}
	file := base + ".pluto"
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		return &Resolved{Path: file, IsDir: false, Origin: origin}, true
	}
	return nil, false
}

// ResolveError reports which tiers were tried for an import path that
// could not be found.
type ResolveError struct {
	Path  string
	Tiers []string
}

func (e *ResolveError) Error() string {
	return "module not found: " + e.Path + " (tried " + strings.Join(e.Tiers, ", ") + ")"
}

// DirFiles lists the `.pluto` files in a directory module in
// deterministic lexicographic order.
func DirFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pluto") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	// os.ReadDir already returns entries sorted by filename.
	return files, nil
}
