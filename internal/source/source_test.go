package source

import (
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
)

func TestSnippetPointsAtStartColumn(t *testing.T) {
	s := NewSet()
	s.Add("main.pluto", "fn main() {\n  let x = y\n}\n")
	span := ast.Span{Start: ast.Pos{Line: 2, Column: 11}}
	got := s.Snippet("main.pluto", span)
	want := "  let x = y\n          ^"
	if got != want {
		t.Fatalf("Snippet =\n%q\nwant\n%q", got, want)
	}
}

func TestSnippetUnregisteredFileReturnsEmpty(t *testing.T) {
	s := NewSet()
	if got := s.Snippet("missing.pluto", ast.Span{Start: ast.Pos{Line: 1}}); got != "" {
		t.Fatalf("Snippet on unregistered file = %q, want empty", got)
	}
}

func TestSnippetLineOutOfRangeReturnsEmpty(t *testing.T) {
	s := NewSet()
	s.Add("main.pluto", "fn main() {}\n")
	if got := s.Snippet("main.pluto", ast.Span{Start: ast.Pos{Line: 50}}); got != "" {
		t.Fatalf("Snippet for out-of-range line = %q, want empty", got)
	}
}
