package vae

import (
	"testing"

	"github.com/tsawler/go-zsl/tensor"
)

func sampleTensor(t *testing.T, shape []int) *tensor.Tensor {
	t.Helper()
	ts, err := tensor.Zeros(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	return ts
}

func TestMapKeysSorted(t *testing.T) {
	m := Map{
		"img":      sampleTensor(t, []int{2, 4}),
		"cls_attr": sampleTensor(t, []int{2, 3}),
		"audio":    sampleTensor(t, []int{2, 5}),
	}

	keys := m.Keys()
	expected := []Modality{"audio", "cls_attr", "img"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("key %d: expected %q, got %q", i, expected[i], keys[i])
		}
	}
}

func TestAlignedKeys(t *testing.T) {
	x := sampleTensor(t, []int{2, 3})

	t.Run("matching sets", func(t *testing.T) {
		a := Map{"img": x, "cls_attr": x}
		b := Map{"cls_attr": x, "img": x}
		keys, err := AlignedKeys(a, b)
		if err != nil {
			t.Fatalf("AlignedKeys failed: %v", err)
		}
		if len(keys) != 2 || keys[0] != "cls_attr" || keys[1] != "img" {
			t.Errorf("unexpected keys %v", keys)
		}
	})

	t.Run("mismatched sets", func(t *testing.T) {
		a := Map{"img": x, "cls_attr": x}
		b := Map{"img": x, "audio": x}
		if _, err := AlignedKeys(a, b); err == nil {
			t.Error("expected error for mismatched modality sets")
		}
	})

	t.Run("different sizes", func(t *testing.T) {
		a := Map{"img": x, "cls_attr": x}
		b := Map{"img": x}
		if _, err := AlignedKeys(a, b); err == nil {
			t.Error("expected error for differently sized modality sets")
		}
	})

	t.Run("empty map", func(t *testing.T) {
		if _, err := AlignedKeys(Map{}); err == nil {
			t.Error("expected error for empty modality map")
		}
	})
}
