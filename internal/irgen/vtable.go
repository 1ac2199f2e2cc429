package irgen

import (
	"fmt"
	"sort"

	"github.com/pluto-lang/plutoc/internal/types"
)

// Vtable is one constant dispatch table for a (trait, impl class) pair,
// built by Lower once for every trait a class declares it implements,
// and referenced by codegen when constructing a
// trait-typed value from a concrete one — this is what makes "dynamic
// dispatch via trait objects" (spec.md §9) concrete rather than aspirational.
type Vtable struct {
	Trait   string
	Class   string
	Slots   []VtableSlot
}

// VtableSlot is one method's resolved implementation symbol, in a fixed
// order shared by every vtable for the same trait so a trait-typed call
// site can always index by slot number rather than by name.
type VtableSlot struct {
	Method string
	Symbol string // mangled function symbol the slot calls through
}

// MethodOrder returns every method name ti's trait interface exposes
// (required methods plus every default, name-deduped), sorted so every
// vtable for the same trait lays its slots out identically regardless of
// map iteration order.
func MethodOrder(ti *types.TraitInfo) []string {
	seen := map[string]bool{}
	var names []string
	for name := range ti.Required {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range ti.Defaults {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BuildVtable resolves every slot of traitName's interface against
// className's method table. The caller builds one for every trait in
// the class's declared trait list without a separate
// env.ImplementsTrait check; a slot that does not resolve is returned
// as an error.
func BuildVtable(env *types.Env, traitName, className string) (*Vtable, error) {
	ti, ok := env.Traits[traitName]
	if !ok {
		return nil, fmt.Errorf("irgen: unknown trait %q", traitName)
	}
	vt := &Vtable{Trait: traitName, Class: className}
	for _, method := range MethodOrder(ti) {
		lookup := env.LookupMethod(className, method)
		if lookup == nil {
			return nil, fmt.Errorf("irgen: %q has no implementation of %q.%q", className, traitName, method)
		}
		vt.Slots = append(vt.Slots, VtableSlot{Method: method, Symbol: MethodSymbol(className, method)})
	}
	return vt, nil
}

// MethodSymbol names the mangled function symbol a method lowers to.
func MethodSymbol(className, method string) string {
	return className + "." + method
}
