package types

import "testing"

func TestEqualPrimitives(t *testing.T) {
	if !Equal(Int, Int) {
		t.Fatalf("Int should equal Int")
	}
	if Equal(Int, Float) {
		t.Fatalf("Int should not equal Float")
	}
}

func TestEqualComposite(t *testing.T) {
	a := Array{Elem: Int}
	b := Array{Elem: Int}
	c := Array{Elem: String}
	if !Equal(a, b) {
		t.Fatalf("Array{Int} should equal Array{Int}")
	}
	if Equal(a, c) {
		t.Fatalf("Array{Int} should not equal Array{String}")
	}

	fa := Fn{Params: []Type{Int, String}, Ret: Bool}
	fb := Fn{Params: []Type{Int, String}, Ret: Bool}
	fc := Fn{Params: []Type{Int}, Ret: Bool}
	if !Equal(fa, fb) {
		t.Fatalf("identical Fn signatures should be equal")
	}
	if Equal(fa, fc) {
		t.Fatalf("Fn signatures with different arity should not be equal")
	}
}

func TestAssignableToWidensToNullable(t *testing.T) {
	if !AssignableTo(Int, Nullable{Inner: Int}) {
		t.Fatalf("Int should be assignable to Int?")
	}
	if AssignableTo(Int, Nullable{Inner: String}) {
		t.Fatalf("Int should not be assignable to String?")
	}
}

func TestAssignableToNestedNullable(t *testing.T) {
	// Int is assignable to (Int?)? by recursing through the outer Nullable.
	nested := Nullable{Inner: Nullable{Inner: Int}}
	if !AssignableTo(Int, nested) {
		t.Fatalf("Int should be assignable to (Int?)? by widening through nesting")
	}
}

func TestAssignableToRejectsUnrelated(t *testing.T) {
	if AssignableTo(Int, Bool) {
		t.Fatalf("Int should not be assignable to Bool")
	}
}

func TestIsNumeric(t *testing.T) {
	if !IsNumeric(Int) || !IsNumeric(Float) {
		t.Fatalf("Int and Float should be numeric")
	}
	if IsNumeric(String) || IsNumeric(Bool) {
		t.Fatalf("String and Bool should not be numeric")
	}
}
