package training

import (
	"testing"

	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/vae"
)

func embeddingModelConfig() vae.Config {
	return vae.Config{
		Modalities:    []vae.Modality{"img", "cls_attr"},
		FeatureDims:   map[vae.Modality]int{"img": 6, "cls_attr": 4},
		EncoderHidden: map[vae.Modality]int{"img": 5, "cls_attr": 5},
		DecoderHidden: map[vae.Modality]int{"img": 5, "cls_attr": 5},
		LatentSize:    3,
	}
}

func embeddingSplit(t *testing.T, rows, dim int, labels []int32) SplitData {
	t.Helper()
	data := make([]float32, rows*dim)
	for i := range data {
		data[i] = float32(i%7) * 0.1
	}
	features, err := tensor.NewTensor([]int{rows, dim}, tensor.Float32, tensor.CPU, data)
	if err != nil {
		t.Fatalf("creating split features: %v", err)
	}
	return SplitData{Features: features, Labels: labels}
}

func TestRemapLabels(t *testing.T) {
	classes := []int32{7, 12, 19}

	// The class list fixes the mapping: row order must not influence it.
	got, err := RemapLabels([]int32{12, 7, 19}, classes)
	if err != nil {
		t.Fatalf("RemapLabels failed: %v", err)
	}
	want := []int32{1, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	t.Run("repeated ids share an index", func(t *testing.T) {
		got, err := RemapLabels([]int32{19, 7, 19, 12, 7}, classes)
		if err != nil {
			t.Fatalf("RemapLabels failed: %v", err)
		}
		want := []int32{2, 0, 2, 1, 0}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})

	t.Run("label outside the class list", func(t *testing.T) {
		if _, err := RemapLabels([]int32{7, 5}, classes); err == nil {
			t.Error("expected error for label outside the class list")
		}
	})

	t.Run("duplicate class id", func(t *testing.T) {
		if _, err := RemapLabels([]int32{7}, []int32{7, 12, 7}); err == nil {
			t.Error("expected error for duplicate class id")
		}
	})
}

func TestGenerateEmbeddingsGeneralized(t *testing.T) {
	vae.SetRandomSeed(31)
	model, err := vae.NewModel(embeddingModelConfig())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	seen := embeddingSplit(t, 10, 6, []int32{0, 0, 1, 1, 2, 2, 3, 3, 4, 4})
	unseen := embeddingSplit(t, 3, 4, []int32{7, 12, 19})
	test := embeddingSplit(t, 5, 6, []int32{7, 12, 19, 7, 12})

	cfg := EmbeddingConfig{
		PrimaryModality:   "img",
		AttributeModality: "cls_attr",
		Generalized:       true,
		SamplesPerClass:   2,
	}

	ds, err := GenerateEmbeddings(model, cfg, seen, unseen, test)
	if err != nil {
		t.Fatalf("GenerateEmbeddings failed: %v", err)
	}

	// 10 seen + 3 classes * 2 samples + 5 test = 21 rows.
	if ds.Embeddings.Shape[0] != 21 || ds.Embeddings.Shape[1] != 3 {
		t.Errorf("expected embeddings [21 3], got %v", ds.Embeddings.Shape)
	}
	if ds.Labels.Shape[0] != 21 {
		t.Errorf("expected 21 labels, got %v", ds.Labels.Shape)
	}

	if ds.Train.Start != 0 || ds.Train.End != 16 {
		t.Errorf("expected train range [0, 16), got %+v", ds.Train)
	}
	if ds.Test.Start != 16 || ds.Test.End != 21 {
		t.Errorf("expected test range [16, 21), got %+v", ds.Test)
	}
	if ds.Train.Len()+ds.Test.Len() != ds.Embeddings.Shape[0] {
		t.Error("train and test ranges must cover all rows")
	}

	// Generalized keeps raw class ids: repeats of each unseen class follow
	// the seen labels, then test labels close the dataset.
	labels, err := ds.Labels.GetInt32Data()
	if err != nil {
		t.Fatalf("GetInt32Data failed: %v", err)
	}
	wantUnseen := []int32{7, 7, 12, 12, 19, 19}
	for i, want := range wantUnseen {
		if labels[10+i] != want {
			t.Errorf("unseen label %d: expected %d, got %d", i, want, labels[10+i])
		}
	}
	if labels[16] != 7 || labels[20] != 12 {
		t.Errorf("test labels out of order: %v", labels[16:])
	}
}

func TestGenerateEmbeddingsNonGeneralized(t *testing.T) {
	vae.SetRandomSeed(31)
	model, err := vae.NewModel(embeddingModelConfig())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	unseen := embeddingSplit(t, 3, 4, []int32{12, 7, 19})
	test := embeddingSplit(t, 4, 6, []int32{7, 12, 19, 7})

	cfg := EmbeddingConfig{
		PrimaryModality:   "img",
		AttributeModality: "cls_attr",
		Generalized:       false,
		UnseenClasses:     []int32{7, 12, 19},
	}

	// Seen-train data is ignored entirely in the non-generalized setting.
	ds, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test)
	if err != nil {
		t.Fatalf("GenerateEmbeddings failed: %v", err)
	}

	if ds.Train.Start != 0 || ds.Train.End != 3 {
		t.Errorf("expected train range [0, 3), got %+v", ds.Train)
	}
	if ds.Test.Start != 3 || ds.Test.End != 7 {
		t.Errorf("expected test range [3, 7), got %+v", ds.Test)
	}

	labels, err := ds.Labels.GetInt32Data()
	if err != nil {
		t.Fatalf("GetInt32Data failed: %v", err)
	}
	// Rows arrive as {12, 7, 19}, but the class list {7, 12, 19} fixes the
	// mapping, so the remapped labels are {1, 0, 2}.
	for i, want := range []int32{1, 0, 2} {
		if labels[i] != want {
			t.Errorf("train label %d: expected %d, got %d", i, want, labels[i])
		}
	}
}

func TestGenerateEmbeddingsMeanIsDeterministic(t *testing.T) {
	vae.SetRandomSeed(31)
	model, err := vae.NewModel(embeddingModelConfig())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	unseen := embeddingSplit(t, 2, 4, []int32{1, 2})
	test := embeddingSplit(t, 3, 6, []int32{1, 2, 1})
	cfg := EmbeddingConfig{
		PrimaryModality:   "img",
		AttributeModality: "cls_attr",
		UnseenClasses:     []int32{1, 2},
	}

	a, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test)
	if err != nil {
		t.Fatalf("GenerateEmbeddings failed: %v", err)
	}
	b, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test)
	if err != nil {
		t.Fatalf("GenerateEmbeddings failed: %v", err)
	}

	aData, _ := a.Embeddings.GetFloat32Data()
	bData, _ := b.Embeddings.GetFloat32Data()
	latent := a.Embeddings.Shape[1]

	// Test rows use the posterior mean and must repeat exactly; the noisy
	// train rows are expected to differ between runs.
	for i := a.Test.Start * latent; i < a.Test.End*latent; i++ {
		if aData[i] != bData[i] {
			t.Fatalf("test embeddings must be deterministic, differ at %d", i)
		}
	}
	same := true
	for i := a.Train.Start * latent; i < a.Train.End*latent; i++ {
		if aData[i] != bData[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("train embeddings should carry fresh latent noise per run")
	}
}

func TestGenerateEmbeddingsValidation(t *testing.T) {
	vae.SetRandomSeed(31)
	model, err := vae.NewModel(embeddingModelConfig())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	unseen := embeddingSplit(t, 2, 4, []int32{1, 2})
	test := embeddingSplit(t, 2, 6, []int32{1, 2})

	t.Run("generalized requires seen split", func(t *testing.T) {
		cfg := EmbeddingConfig{PrimaryModality: "img", AttributeModality: "cls_attr", Generalized: true}
		if _, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test); err == nil {
			t.Error("expected error for missing seen-train split")
		}
	})

	t.Run("label count mismatch", func(t *testing.T) {
		bad := embeddingSplit(t, 2, 4, []int32{1, 2, 3})
		cfg := EmbeddingConfig{PrimaryModality: "img", AttributeModality: "cls_attr", UnseenClasses: []int32{1, 2}}
		if _, err := GenerateEmbeddings(model, cfg, SplitData{}, bad, test); err == nil {
			t.Error("expected error for label count mismatch")
		}
	})

	t.Run("unknown modality", func(t *testing.T) {
		cfg := EmbeddingConfig{PrimaryModality: "audio", AttributeModality: "cls_attr", UnseenClasses: []int32{1, 2}}
		if _, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test); err == nil {
			t.Error("expected error for unknown primary modality")
		}
	})

	t.Run("non-generalized requires class list", func(t *testing.T) {
		cfg := EmbeddingConfig{PrimaryModality: "img", AttributeModality: "cls_attr"}
		if _, err := GenerateEmbeddings(model, cfg, SplitData{}, unseen, test); err == nil {
			t.Error("expected error for missing unseen class list")
		}
	})
}
