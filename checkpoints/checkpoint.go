package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tsawler/go-zsl/training"
	"github.com/tsawler/go-zsl/vae"
)

// Checkpoint is a complete snapshot of a training run: model architecture,
// weights keyed by parameter path, training state, and metadata.
type Checkpoint struct {
	ModelConfig vae.Config     `json:"model_config"`
	Weights     []WeightTensor `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata Metadata `json:"metadata"`
}

// WeightTensor is one model parameter with its data. Name is the stable
// parameter path, e.g. "img/encoder/mu/weight".
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures the trainer's progress at save time.
type TrainingState struct {
	Epoch        int                     `json:"epoch"`
	LearningRate float64                 `json:"learning_rate"`
	Criterion    string                  `json:"criterion"`
	Warmup       training.WarmupSchedule `json:"warmup"`
	History      []training.EpochLosses  `json:"history,omitempty"`
}

// Metadata contains checkpoint provenance.
type Metadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
}

// Snapshot captures a model's current weights into a checkpoint.
func Snapshot(model *vae.Model, state TrainingState) (*Checkpoint, error) {
	named := model.NamedParameters()
	weights := make([]WeightTensor, 0, len(named))
	for _, np := range named {
		data, err := np.Tensor.GetFloat32Data()
		if err != nil {
			return nil, fmt.Errorf("reading parameter %q: %v", np.Name, err)
		}
		// Copy so later training steps do not mutate the snapshot.
		buf := make([]float32, len(data))
		copy(buf, data)
		shape := make([]int, len(np.Tensor.Shape))
		copy(shape, np.Tensor.Shape)
		weights = append(weights, WeightTensor{Name: np.Name, Shape: shape, Data: buf})
	}

	return &Checkpoint{
		ModelConfig:   model.Config(),
		Weights:       weights,
		TrainingState: state,
	}, nil
}

// Restore builds a fresh model from the checkpoint's architecture and loads
// every saved weight into it by parameter path.
func Restore(cp *Checkpoint) (*vae.Model, error) {
	model, err := vae.NewModel(cp.ModelConfig)
	if err != nil {
		return nil, fmt.Errorf("rebuilding model: %v", err)
	}

	byName := make(map[string]WeightTensor, len(cp.Weights))
	for _, w := range cp.Weights {
		byName[w.Name] = w
	}

	for _, np := range model.NamedParameters() {
		w, ok := byName[np.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint missing parameter %q", np.Name)
		}
		if len(w.Shape) != len(np.Tensor.Shape) {
			return nil, fmt.Errorf("parameter %q: shape %v does not match model shape %v", np.Name, w.Shape, np.Tensor.Shape)
		}
		for i := range w.Shape {
			if w.Shape[i] != np.Tensor.Shape[i] {
				return nil, fmt.Errorf("parameter %q: shape %v does not match model shape %v", np.Name, w.Shape, np.Tensor.Shape)
			}
		}
		if err := np.Tensor.SetData(w.Data); err != nil {
			return nil, fmt.Errorf("loading parameter %q: %v", np.Name, err)
		}
	}

	return model, nil
}

// Save writes the checkpoint to path as indented JSON.
func Save(cp *Checkpoint, path string) error {
	if cp.Metadata.Framework == "" {
		cp.Metadata.Framework = "go-zsl"
		cp.Metadata.Version = "1.0.0"
	}
	if cp.Metadata.CreatedAt.IsZero() {
		cp.Metadata.CreatedAt = time.Now()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(cp); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &cp, nil
}
