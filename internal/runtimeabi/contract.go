package runtimeabi

import (
	"fmt"
	"io"
	"os"
)

// ContractAbortError is the panic value __pluto_contract_abort raises.
// Codegen compiles a failed `requires`/`invariant` check (ensures clauses
// are not lowered) into a call to ContractAbort; a native backend would instead print Msg and
// abort the process, which this panic approximates for a Go host.
type ContractAbortError struct{ Msg string }

func (e *ContractAbortError) Error() string { return e.Msg }

// ContractAbort mirrors __pluto_contract_abort: it never returns.
func ContractAbort(msg string) {
	panic(&ContractAbortError{Msg: msg})
}

// Printer backs the print(value) builtin family. Out defaults to
// os.Stdout; tests substitute a buffer so they can assert on output
// without touching the real stream.
type Printer struct {
	Out io.Writer
}

// NewPrinter returns a Printer writing to os.Stdout.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout}
}

// Print writes v's value followed by a newline, the way the teacher's
// own CLI reports eval output.
func (p *Printer) Print(v Ref, rt *Runtime) {
	fmt.Fprintln(p.Out, rt.Display(v))
}

// Display renders a Ref for printing: strings print their bytes, arrays
// print bracketed elements, everything else falls back to its Go-side
// representation. This is a debugging aid, not the compiled program's
// own string-conversion semantics.
func (rt *Runtime) Display(v Ref) string {
	switch obj := rt.load(v).(type) {
	case *String:
		return string(obj.Bytes)
	case *Array:
		elems := make([]string, len(obj.Elems))
		for i, e := range obj.Elems {
			elems[i] = rt.Display(e)
		}
		return fmt.Sprintf("%v", elems)
	case *Object:
		return obj.String()
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%v", obj)
	}
}
