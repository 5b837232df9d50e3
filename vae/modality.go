package vae

import (
	"fmt"
	"sort"

	"github.com/tsawler/go-zsl/tensor"
)

// Modality names one input feature space, e.g. "img" or "cls_attr". All
// per-modality maps inside one computation must share the exact same key set.
type Modality string

// Map associates each modality with one tensor.
type Map map[Modality]*tensor.Tensor

// Keys returns the modalities of the map in sorted order so that iteration
// over modalities and modality pairs is deterministic.
func (m Map) Keys() []Modality {
	keys := make([]Modality, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// AlignedKeys validates that every map carries exactly the same modality set
// and returns that set sorted. A key-set mismatch is a configuration error
// and must abort the computation rather than silently skipping modalities.
func AlignedKeys(maps ...Map) ([]Modality, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("no modality maps given")
	}

	ref := maps[0].Keys()
	if len(ref) == 0 {
		return nil, fmt.Errorf("modality map is empty")
	}

	for i := 1; i < len(maps); i++ {
		keys := maps[i].Keys()
		if len(keys) != len(ref) {
			return nil, fmt.Errorf("modality key sets disagree: %v vs %v", ref, keys)
		}
		for j := range ref {
			if keys[j] != ref[j] {
				return nil, fmt.Errorf("modality key sets disagree: %v vs %v", ref, keys)
			}
		}
	}

	return ref, nil
}
