// Package runstore persists training runs: run metadata, per-epoch loss
// history, and the shape of the generated synthetic dataset. Two backends
// exist, an in-memory store for tests and tooling and a SQLite store for
// durable runs.
package runstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/go-zsl/training"
)

// RunRecord describes one training run.
type RunRecord struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Modalities  []string  `json:"modalities"`
	LatentSize  int       `json:"latent_size"`
	Epochs      int       `json:"epochs"`
	BatchSize   int       `json:"batch_size"`
	Criterion   string    `json:"criterion"`
	Generalized bool      `json:"generalized"`
	FinalLoss   float64   `json:"final_loss"`
}

// DatasetInfo records the layout of a run's synthetic embedding dataset.
type DatasetInfo struct {
	RunID      string `json:"run_id"`
	Rows       int    `json:"rows"`
	LatentSize int    `json:"latent_size"`
	TrainStart int    `json:"train_start"`
	TrainEnd   int    `json:"train_end"`
	TestStart  int    `json:"test_start"`
	TestEnd    int    `json:"test_end"`
}

// Store defines persistence operations for training runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]RunRecord, error)
	SaveHistory(ctx context.Context, runID string, history []training.EpochLosses) error
	GetHistory(ctx context.Context, runID string) ([]training.EpochLosses, bool, error)
	SaveDatasetInfo(ctx context.Context, info DatasetInfo) error
	GetDatasetInfo(ctx context.Context, runID string) (DatasetInfo, bool, error)
	Close() error
}

// NewRunID returns a fresh unique run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open builds a store for the given backend name. The sqlite backend needs
// a file path; memory ignores it.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
