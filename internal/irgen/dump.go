package irgen

import (
	"fmt"
	"strings"
)

// String renders fn as a flat listing of its blocks, each instruction
// and its terminator on its own line, in the style every Instr/
// Terminator already implements individually — a debugging aid for
// `plutoc build --dump-ir`, not a format anything parses back in.
func (fn *Func) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(", fn.Name)
	if fn.HasSelf {
		b.WriteString("self")
		if len(fn.Params) > 0 {
			b.WriteString(", ")
		}
	}
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
	}
	fmt.Fprintf(&b, ") fallible=%t {\n", fn.Fallible)
	for _, blk := range fn.Blocks {
		fmt.Fprintf(&b, "  block%d:\n", blk.ID)
		for _, instr := range blk.Instrs {
			fmt.Fprintf(&b, "    %s\n", instr)
		}
		if blk.Term != nil {
			fmt.Fprintf(&b, "    %s\n", blk.Term)
		}
	}
	b.WriteString("}")
	return b.String()
}

// String renders the whole module: every function, then every vtable.
func (m *Module) String() string {
	var b strings.Builder
	for i, fn := range m.Funcs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fn.String())
	}
	for _, vt := range m.Vtables {
		fmt.Fprintf(&b, "\n\nvtable %s for %s\n", vt.Trait, vt.Class)
		for _, slot := range vt.Slots {
			fmt.Fprintf(&b, "  %s -> %s\n", slot.Method, slot.Symbol)
		}
	}
	return b.String()
}
