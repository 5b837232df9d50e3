package training

import (
	"fmt"

	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/vae"
)

// EmbeddingConfig controls synthetic dataset generation from a trained model.
type EmbeddingConfig struct {
	// PrimaryModality carries per-instance features (e.g. image features).
	PrimaryModality vae.Modality
	// AttributeModality carries class-level attribute vectors.
	AttributeModality vae.Modality
	// Generalized selects the generalized zero-shot setting: seen-class train
	// instances join the synthetic training partition and raw class ids are
	// kept. When false, seen instances are skipped and unseen class ids are
	// remapped to a contiguous [0, numUnseen) label space.
	Generalized bool
	// SamplesPerClass repeats each unseen-class attribute row this many
	// times, each repeat drawing fresh latent noise. Values below 1 mean 1.
	SamplesPerClass int
	// UnseenClasses fixes the class-id order used to remap labels in the
	// non-generalized setting: UnseenClasses[i] maps to index i. Required
	// when Generalized is false.
	UnseenClasses []int32
}

// SplitData is one data partition: a [n, dim] feature matrix with one label
// per row.
type SplitData struct {
	Features *tensor.Tensor
	Labels   []int32
}

func (s SplitData) check(name string) error {
	if s.Features == nil {
		return fmt.Errorf("%s split has no features", name)
	}
	if len(s.Features.Shape) != 2 {
		return fmt.Errorf("%s split features must be 2D, got %v", name, s.Features.Shape)
	}
	if s.Features.Shape[0] != len(s.Labels) {
		return fmt.Errorf("%s split: %d feature rows for %d labels", name, s.Features.Shape[0], len(s.Labels))
	}
	return nil
}

// IndexRange is a half-open row range [Start, End).
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of rows covered by the range.
func (r IndexRange) Len() int {
	return r.End - r.Start
}

// SyntheticDataset is the latent-space dataset produced after training:
// row-aligned embeddings and labels plus disjoint train/test row ranges for
// a downstream classifier. Train rows always precede test rows.
type SyntheticDataset struct {
	Embeddings *tensor.Tensor
	Labels     *tensor.Tensor
	Train      IndexRange
	Test       IndexRange
}

// GenerateEmbeddings runs the frozen model over three partitions and builds
// the synthetic latent dataset in the fixed order seen-train,
// unseen-attributes, test. Seen-train and unseen-attribute rows use noisy
// reparameterized draws to keep latent diversity; test rows use the
// deterministic posterior mean. The model is not mutated.
func GenerateEmbeddings(model *vae.Model, config EmbeddingConfig, seenTrain, unseenAttrs, test SplitData) (*SyntheticDataset, error) {
	if err := unseenAttrs.check("unseen-attributes"); err != nil {
		return nil, err
	}
	if err := test.check("test"); err != nil {
		return nil, err
	}
	if config.Generalized {
		if err := seenTrain.check("seen-train"); err != nil {
			return nil, err
		}
	} else if len(config.UnseenClasses) == 0 {
		return nil, fmt.Errorf("non-generalized generation needs the unseen class list")
	}

	samplesPerClass := config.SamplesPerClass
	if samplesPerClass < 1 {
		samplesPerClass = 1
	}

	var parts []*tensor.Tensor
	var labels []int32

	if config.Generalized {
		seen, err := model.Encode(config.PrimaryModality, seenTrain.Features, false)
		if err != nil {
			return nil, fmt.Errorf("encoding seen-train split: %v", err)
		}
		parts = append(parts, seen)
		labels = append(labels, seenTrain.Labels...)
	}

	attrFeatures, attrLabels, err := repeatRows(unseenAttrs, samplesPerClass)
	if err != nil {
		return nil, fmt.Errorf("repeating unseen attributes: %v", err)
	}
	unseen, err := model.Encode(config.AttributeModality, attrFeatures, false)
	if err != nil {
		return nil, fmt.Errorf("encoding unseen attributes: %v", err)
	}
	if !config.Generalized {
		attrLabels, err = RemapLabels(attrLabels, config.UnseenClasses)
		if err != nil {
			return nil, fmt.Errorf("remapping unseen labels: %v", err)
		}
	}
	parts = append(parts, unseen)
	labels = append(labels, attrLabels...)

	trainRows := len(labels)

	testEmb, err := model.Encode(config.PrimaryModality, test.Features, true)
	if err != nil {
		return nil, fmt.Errorf("encoding test split: %v", err)
	}
	parts = append(parts, testEmb)
	labels = append(labels, test.Labels...)

	embeddings, err := tensor.ConcatRows(parts...)
	if err != nil {
		return nil, fmt.Errorf("concatenating embeddings: %v", err)
	}
	labelTensor, err := tensor.NewTensor([]int{len(labels)}, tensor.Int32, tensor.CPU, labels)
	if err != nil {
		return nil, fmt.Errorf("creating label tensor: %v", err)
	}

	return &SyntheticDataset{
		Embeddings: embeddings,
		Labels:     labelTensor,
		Train:      IndexRange{Start: 0, End: trainRows},
		Test:       IndexRange{Start: trainRows, End: len(labels)},
	}, nil
}

// RemapLabels maps raw class ids to contiguous [0, len(classes)) indices
// through a fixed class list: classes[i] maps to index i, regardless of the
// order labels appear in. A label outside the list is an error.
func RemapLabels(labels, classes []int32) ([]int32, error) {
	mapping := make(map[int32]int32, len(classes))
	for i, class := range classes {
		if _, dup := mapping[class]; dup {
			return nil, fmt.Errorf("duplicate class id %d in class list", class)
		}
		mapping[class] = int32(i)
	}

	remapped := make([]int32, len(labels))
	for i, raw := range labels {
		idx, ok := mapping[raw]
		if !ok {
			return nil, fmt.Errorf("label %d is not in the class list", raw)
		}
		remapped[i] = idx
	}
	return remapped, nil
}

// repeatRows repeats every feature row and its label n times, keeping the
// repeats of one row contiguous.
func repeatRows(split SplitData, n int) (*tensor.Tensor, []int32, error) {
	if n == 1 {
		return split.Features, split.Labels, nil
	}

	rows := split.Features.Shape[0]
	expanded := make([]*tensor.Tensor, 0, rows*n)
	labels := make([]int32, 0, rows*n)

	for i := 0; i < rows; i++ {
		row, err := tensor.Row(split.Features, i)
		if err != nil {
			return nil, nil, err
		}
		for k := 0; k < n; k++ {
			expanded = append(expanded, row)
			labels = append(labels, split.Labels[i])
		}
	}

	features, err := tensor.ConcatRows(expanded...)
	if err != nil {
		return nil, nil, err
	}
	return features, labels, nil
}
