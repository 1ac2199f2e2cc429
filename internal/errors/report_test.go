package errors

import (
	"strings"
	"testing"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTripsThroughError(t *testing.T) {
	span := &ast.Span{Start: ast.Pos{Line: 3, Column: 5}, End: ast.Pos{Line: 3, Column: 9}}
	r := New("type", TYP001, "expected int, found string", span, map[string]any{"want": "int", "got": "string"})
	err := Wrap(r)

	got, ok := AsReport(err)
	require.True(t, ok, "AsReport failed to unwrap a *ReportError")
	assert.Equal(t, r, got)
}

func TestReportStringIncludesLocationAndData(t *testing.T) {
	span := &ast.Span{Start: ast.Pos{Line: 10, Column: 2}}
	r := New("di", DI003, "singleton Svc depends on scoped Ctx", span, map[string]any{"dependent": "Svc", "dependency": "Ctx"})
	s := r.String()
	if !strings.Contains(s, "DI003") || !strings.Contains(s, "10:2") || !strings.Contains(s, "dependency=Ctx") {
		t.Errorf("unexpected report string: %q", s)
	}
}

func TestListCollectsIndependently(t *testing.T) {
	var l List
	if !l.Empty() {
		t.Fatalf("new list should be empty")
	}
	l.Add(New("parse", PAR001, "unexpected token", nil, nil))
	l.Add(New("parse", PAR002, "missing }", nil, nil))
	if l.Len() != 2 {
		t.Fatalf("expected 2 reports, got %d", l.Len())
	}
}
