// Package source holds every file a compilation loaded, keyed by its
// resolved path, so a diagnostic carrying only a Span can still be
// rendered back against the original text: a terminal-friendly
// one-line source excerpt with a caret under the offending column.
package source

import (
	"fmt"
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// File is one loaded source file's path and raw contents, split into
// lines on demand for snippet rendering.
type File struct {
	Path     string
	Contents string
	lines    []string
}

func (f *File) line(n int) string {
	if f.lines == nil {
		f.lines = strings.Split(f.Contents, "\n")
	}
	if n < 1 || n > len(f.lines) {
		return ""
	}
	return f.lines[n-1]
}

// Set is the registry of every file module.Loader has read during one
// compilation. Diagnostics carry spans, not file contents, so rendering
// a snippet always goes through a Set.
type Set struct {
	files map[string]*File
}

// NewSet returns an empty file registry.
func NewSet() *Set {
	return &Set{files: make(map[string]*File)}
}

// Add registers path's contents, replacing any prior registration for
// the same path (the loader re-registers a file if two import paths
// happen to resolve to it, which is harmless since the contents are
// identical either way).
func (s *Set) Add(path, contents string) {
	s.files[path] = &File{Path: path, Contents: contents}
}

// Get returns the registered File for path, or nil if path was never
// added.
func (s *Set) Get(path string) *File {
	return s.files[path]
}

// Snippet renders a two-line excerpt for span: the source line its
// start position falls on, followed by a caret line pointing at the
// start column. Returns "" if path was never registered or the span's
// line is out of range, so a missing registration degrades to no
// snippet rather than a malformed one.
func (s *Set) Snippet(path string, span ast.Span) string {
	f := s.Get(path)
	if f == nil {
		return ""
	}
	line := f.line(span.Start.Line)
	if line == "" {
		// A genuinely empty line is valid; only bail out when the File
		// has no record of this line number at all.
		if span.Start.Line < 1 || span.Start.Line > len(f.lines) {
			return ""
		}
	}
	col := span.Start.Column
	if col < 1 {
		col = 1
	}
	caret := strings.Repeat(" ", col-1) + "^"
	return fmt.Sprintf("%s\n%s", line, caret)
}
