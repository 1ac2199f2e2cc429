package testctx

import "testing"

func TestHarnessPrintRoundTrips(t *testing.T) {
	h := New()
	h.Printer.Print(h.String("hello"), h.Runtime)
	if got := h.Printed(); got != "hello\n" {
		t.Fatalf("Printed() = %q, want %q", got, "hello\n")
	}
}

func TestHarnessTaskStartsWithClearedErrorSlot(t *testing.T) {
	h := New()
	if h.Task.HasError() {
		t.Fatal("fresh harness task has error set")
	}
}
