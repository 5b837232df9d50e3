package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/vae"
)

// Dataset is a source of aligned multi-modal samples. Every sample carries
// one feature row per modality plus an integer class label.
type Dataset interface {
	Len() int
	Get(idx int) (features vae.Map, label int32, err error)
}

// InMemoryDataset holds all feature matrices in memory, one [n, dim] tensor
// per modality, with row i of every modality describing the same sample.
type InMemoryDataset struct {
	features vae.Map
	labels   []int32
	length   int
}

// NewInMemoryDataset validates that every modality has the same number of
// rows as there are labels.
func NewInMemoryDataset(features vae.Map, labels []int32) (*InMemoryDataset, error) {
	keys, err := vae.AlignedKeys(features)
	if err != nil {
		return nil, err
	}
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("dataset has no labels")
	}
	for _, mod := range keys {
		f := features[mod]
		if len(f.Shape) != 2 {
			return nil, fmt.Errorf("modality %q: features must be 2D, got %v", mod, f.Shape)
		}
		if f.Shape[0] != n {
			return nil, fmt.Errorf("modality %q: %d rows for %d labels", mod, f.Shape[0], n)
		}
	}
	return &InMemoryDataset{features: features, labels: labels, length: n}, nil
}

// Len returns the number of samples.
func (d *InMemoryDataset) Len() int {
	return d.length
}

// Get returns sample idx as one [1, dim] row per modality.
func (d *InMemoryDataset) Get(idx int) (vae.Map, int32, error) {
	if idx < 0 || idx >= d.length {
		return nil, 0, fmt.Errorf("sample index %d out of range [0, %d)", idx, d.length)
	}
	sample := make(vae.Map, len(d.features))
	for mod, f := range d.features {
		row, err := tensor.Row(f, idx)
		if err != nil {
			return nil, 0, fmt.Errorf("modality %q: %v", mod, err)
		}
		sample[mod] = row
	}
	return sample, d.labels[idx], nil
}

// Labels returns the label slice backing the dataset.
func (d *InMemoryDataset) Labels() []int32 {
	return d.labels
}

// Batch is one mini-batch of aligned multi-modal features and labels.
type Batch struct {
	Features vae.Map
	Labels   *tensor.Tensor
}

// DataLoader provides batching and shuffling over a Dataset. Shuffling uses
// a caller-seeded generator so epochs are reproducible.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a DataLoader. rng may be nil when shuffle is off.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		indices:   indices,
	}, nil
}

// Len returns the number of batches in an epoch.
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling if enabled.
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0

	if dl.shuffle {
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := dl.rng.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch, or nil once the epoch is complete. The final
// batch of an epoch may be smaller than the configured batch size.
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}
	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}
	return batch, nil
}

// HasNext reports whether more batches remain in the current epoch.
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch gathers sample rows and stacks them per modality.
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}

	rows := make(map[vae.Modality][]*tensor.Tensor)
	labels := make([]int32, 0, len(indices))

	for _, idx := range indices {
		sample, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("loading sample %d: %v", idx, err)
		}
		for mod, row := range sample {
			rows[mod] = append(rows[mod], row)
		}
		labels = append(labels, label)
	}

	features := make(vae.Map, len(rows))
	for mod, modRows := range rows {
		stacked, err := tensor.ConcatRows(modRows...)
		if err != nil {
			return nil, fmt.Errorf("stacking %q: %v", mod, err)
		}
		features[mod] = stacked
	}

	labelTensor, err := tensor.NewTensor([]int{len(labels)}, tensor.Int32, tensor.CPU, labels)
	if err != nil {
		return nil, fmt.Errorf("creating label tensor: %v", err)
	}

	return &Batch{Features: features, Labels: labelTensor}, nil
}
