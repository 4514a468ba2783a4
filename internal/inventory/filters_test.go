package inventory

import "testing"

func strPtr(s string) *string { return &s }

func TestFilterPatchMergesFields(t *testing.T) {
	f := Filters{Category: "cables", Status: string(StatusInStock)}

	got := FilterPatch{Category: strPtr("GPU")}.Apply(f)
	if got.Category != "GPU" {
		t.Fatalf("expected category to change, got %q", got.Category)
	}
	if got.Status != string(StatusInStock) {
		t.Fatalf("expected untouched status to survive, got %q", got.Status)
	}
}

func TestFilterPatchClearsDimension(t *testing.T) {
	f := Filters{Category: "GPU", LowStock: true}

	got := FilterPatch{Category: strPtr(""), LowStock: boolPtr(false)}.Apply(f)
	if got.Category != "" {
		t.Fatalf("expected category cleared, got %q", got.Category)
	}
	if got.LowStock {
		t.Fatal("expected low-stock flag cleared")
	}
}

func TestFilterPatchNilLeavesUnchanged(t *testing.T) {
	f := Filters{Search: "resistor", ContainerID: "ctr-9"}

	got := FilterPatch{}.Apply(f)
	if got != f {
		t.Fatalf("expected empty patch to be a no-op, got %+v", got)
	}
}

func boolPtr(b bool) *bool { return &b }
