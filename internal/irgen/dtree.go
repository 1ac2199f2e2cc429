package irgen

import (
	"fmt"

	"github.com/pluto-lang/plutoc/internal/ast"
)

// DecisionTree is a compiled `match` expression: it replaces a cascade of
// per-arm equality tests with a single switch on the scrutinee's enum
// discriminant, grounded on the teacher's internal/dtree package. Pluto's
// match arms are flat (one `Enum.Variant` or wildcard per arm, no nested
// sub-patterns), so unlike the teacher's path-addressed, column-splitting
// compiler this only ever needs one level of switch — but the
// Switch/Leaf/Fail node shape carries over directly. It is used only for
// switch generation; match exhaustiveness is checked separately by the
// type checker.
type DecisionTree interface {
	isDecisionTree()
	String() string
}

// LeafNode is a match with an arm's body to execute.
type LeafNode struct {
	ArmIndex int
	Arm      *ast.MatchArm
}

func (*LeafNode) isDecisionTree() {}
func (l *LeafNode) String() string { return fmt.Sprintf("Leaf(arm=%d)", l.ArmIndex) }

// FailNode is reached when no arm matches. TYP006 already rejects a
// non-exhaustive match before codegen runs, so a FailNode in compiled IR
// only arises from a scrutinee value the type checker could not itself
// have produced — it compiles to an Unreachable terminator.
type FailNode struct{}

func (*FailNode) isDecisionTree() {}
func (*FailNode) String() string { return "Fail" }

// SwitchNode dispatches on the scrutinee's variant discriminant.
type SwitchNode struct {
	Cases   map[string]DecisionTree // variant name -> subtree
	Default DecisionTree            // wildcard arm, if any
}

func (*SwitchNode) isDecisionTree() {}
func (s *SwitchNode) String() string {
	return fmt.Sprintf("Switch(cases=%d, default=%v)", len(s.Cases), s.Default != nil)
}

// CompileMatch builds a DecisionTree from a match expression's arms, in
// source order: the first arm whose variant (or wildcard) matches wins,
// matching Pluto's documented first-match-wins arm semantics.
func CompileMatch(m *ast.MatchExpr) DecisionTree {
	cases := map[string]DecisionTree{}
	var deflt DecisionTree
	for i := range m.Arms {
		arm := &m.Arms[i]
		leaf := &LeafNode{ArmIndex: i, Arm: arm}
		if arm.IsWildcard {
			if deflt == nil {
				deflt = leaf
			}
			continue
		}
		if _, exists := cases[arm.VariantName]; !exists {
			cases[arm.VariantName] = leaf
		}
	}
	if deflt == nil {
		deflt = &FailNode{}
	}
	return &SwitchNode{Cases: cases, Default: deflt}
}
