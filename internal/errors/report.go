package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// Report is the canonical structured diagnostic produced by every
// compiler phase. It is deliberately serializable so the orchestrator
// can emit either a human-readable or a machine-readable diagnostic
// stream from the same value.
type Report struct {
	Schema    string         `json:"schema"` // always "pluto.error/v1"
	Code      string         `json:"code"`
	Phase     string         `json:"phase"` // "lex", "parse", "module", "type", "effect", "di", "contract", "mono"
	Message   string         `json:"message"`
	Span      *ast.Span      `json:"span,omitempty"`
	Related   []RelatedSpan  `json:"related,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// RelatedSpan attaches a secondary location to a Report, e.g. the
// declaration site a violation conflicts with.
type RelatedSpan struct {
	Span    ast.Span `json:"span"`
	Message string   `json:"message"`
}

// ReportError wraps a Report so it survives errors.As() unwrapping while
// being usable anywhere a plain `error` is expected.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown compiler error"
	}
	return fmt.Sprintf("%s: %s", e.Rep.Code, e.Rep.Message)
}

// AsReport extracts a Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// Wrap turns a Report into an error.
func Wrap(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds a Report for the given phase/code/message, optionally
// attaching a span and key/value data (rendered with sorted keys).
func New(phase, code, message string, span *ast.Span, data map[string]any) *Report {
	return &Report{
		Schema:  "pluto.error/v1",
		Code:    code,
		Phase:   phase,
		Message: message,
		Span:    span,
		Data:    data,
	}
}

// ToJSON renders the report as JSON, compact or indented.
func (r *Report) ToJSON(compact bool) (string, error) {
	if compact {
		b, err := json.Marshal(r)
		return string(b), err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	return string(b), err
}

// String renders a single-line, terminal-friendly form:
// "code at line:col: message".
func (r *Report) String() string {
	var loc string
	if r.Span != nil {
		loc = fmt.Sprintf(" at %d:%d", r.Span.Start.Line, r.Span.Start.Column)
	}
	var extra string
	if len(r.Data) > 0 {
		keys := make([]string, 0, len(r.Data))
		for k := range r.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, r.Data[k]))
		}
		extra = " [" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%s%s: %s%s", r.Code, loc, r.Message, extra)
}

// List is a collection of reports gathered over the course of one phase;
// a phase halts the pipeline but tries to collect as many independent
// reports as possible before doing so.
type List struct {
	Reports []*Report
}

func (l *List) Add(r *Report)  { l.Reports = append(l.Reports, r) }
func (l *List) Empty() bool    { return len(l.Reports) == 0 }
func (l *List) Len() int       { return len(l.Reports) }

func (l *List) String() string {
	var b strings.Builder
	for _, r := range l.Reports {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
