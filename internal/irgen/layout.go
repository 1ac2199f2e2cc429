package irgen

import (
	"sort"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/types"
)

// wordSize is the pointer/slot size every field, bracket dependency, and
// primitive occupies in a struct slot, per the fixed layout contract:
// "each field 8 bytes (pointer-sized); primitive ints/floats are 8
// bytes; bools are 1 byte but padded to 8 in struct slots for
// simplicity."
const wordSize = 8

// ClassLayout is the byte-offset layout of one class: `[
// bracket_dep_ptrs... | regular_fields... ]`, bracket dependencies first
// (in declaration order) so a base class's prefix of slots never moves
// when a subclass/stage adds fields.
type ClassLayout struct {
	Name       string
	BracketOff map[string]int // bracket dependency name -> byte offset
	FieldOff   map[string]int // field name -> byte offset
	Size       int             // total size in bytes
}

// BuildClassLayout lays out ci's brackets then fields in declaration
// order, each occupying one word.
func BuildClassLayout(ci *types.ClassInfo) *ClassLayout {
	l := &ClassLayout{
		Name:       ci.Decl.Name,
		BracketOff: map[string]int{},
		FieldOff:   map[string]int{},
	}
	off := 0
	for _, b := range ci.Decl.Brackets {
		l.BracketOff[b.Name] = off
		off += wordSize
	}
	for _, f := range ci.Decl.Fields {
		l.FieldOff[f.Name] = off
		off += wordSize
	}
	l.Size = off
	return l
}

// EnumLayout is `[ discriminant: u64 | variant_payload... ]`, payload
// sized to the largest variant (the union of all variant field tuples).
type EnumLayout struct {
	Name         string
	Discriminant map[string]int // variant name -> discriminant value, declaration order
	PayloadOff   map[string]map[string]int // variant name -> field name -> byte offset within the payload
	Size         int                        // discriminant word + payload
}

// BuildEnumLayout assigns each variant a discriminant in declaration
// order and lays out every variant's fields starting at the same payload
// offset (the union), since only one variant's payload is live at a
// time.
func BuildEnumLayout(ei *types.EnumInfo) *EnumLayout {
	l := &EnumLayout{
		Name:         ei.Decl.Name,
		Discriminant: map[string]int{},
		PayloadOff:   map[string]map[string]int{},
	}
	maxPayload := 0
	for i, v := range ei.Decl.Variants {
		l.Discriminant[v.Name] = i
		fieldOff := map[string]int{}
		off := 0
		for _, f := range v.Fields {
			fieldOff[f.Name] = off
			off += wordSize
		}
		l.PayloadOff[v.Name] = fieldOff
		if off > maxPayload {
			maxPayload = off
		}
	}
	l.Size = wordSize + maxPayload
	return l
}

// ClosureLayout is `[ fn_ptr | capture_count | captures... ]`.
type ClosureLayout struct {
	FnPtrOff    int
	CountOff    int
	CapturesOff int
}

func BuildClosureLayout() *ClosureLayout {
	return &ClosureLayout{FnPtrOff: 0, CountOff: wordSize, CapturesOff: 2 * wordSize}
}

// GeneratorLayout is `[ next_fn_ptr | state | done | result | params... |
// locals... ]`.
type GeneratorLayout struct {
	NextFnOff  int
	StateOff   int
	DoneOff    int
	ResultOff  int
	ParamsOff  int
	ParamOff   map[string]int
	LocalsOff  int
	LocalOff   map[string]int
	Size       int
}

// BuildGeneratorLayout lays out the fixed header, then every parameter,
// then every local name collected across the generator's states — a
// local that only exists in one state still reserves its own slot,
// since the generator struct's shape cannot change between states.
func BuildGeneratorLayout(params []ast.Param, localNames []string) *GeneratorLayout {
	l := &GeneratorLayout{
		NextFnOff: 0,
		StateOff:  wordSize,
		DoneOff:   2 * wordSize,
		ResultOff: 3 * wordSize,
		ParamsOff: 4 * wordSize,
		ParamOff:  map[string]int{},
		LocalOff:  map[string]int{},
	}
	off := l.ParamsOff
	for _, p := range params {
		l.ParamOff[p.Name] = off
		off += wordSize
	}
	l.LocalsOff = off

	seen := map[string]bool{}
	var ordered []string
	for _, n := range localNames {
		if !seen[n] {
			seen[n] = true
			ordered = append(ordered, n)
		}
	}
	sort.Strings(ordered) // deterministic regardless of discovery order
	for _, n := range ordered {
		l.LocalOff[n] = off
		off += wordSize
	}
	l.Size = off
	return l
}
