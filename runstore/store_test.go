package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tsawler/go-zsl/training"
)

func testRun(id string, created time.Time) RunRecord {
	return RunRecord{
		ID:          id,
		CreatedAt:   created,
		Modalities:  []string{"img", "cls_attr"},
		LatentSize:  64,
		Epochs:      100,
		BatchSize:   32,
		Criterion:   "l1",
		Generalized: true,
		FinalLoss:   1.234,
	}
}

func testHistory() []training.EpochLosses {
	return []training.EpochLosses{
		{Epoch: 1, Total: 5.0, VAE: 4.0, CrossAlignment: 0.5, DistributionAlignment: 0.5, BatchCount: 10},
		{Epoch: 2, Total: 3.5, VAE: 2.8, CrossAlignment: 0.4, DistributionAlignment: 0.3, BatchCount: 10},
	}
}

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("uninitialized store rejects writes", func(t *testing.T) {
		if err := store.SaveRun(ctx, testRun("early", time.Now())); err == nil {
			t.Error("expected error before Init")
		}
	})

	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("run round trip", func(t *testing.T) {
		want := testRun("run-a", base)
		if err := store.SaveRun(ctx, want); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, ok, err := store.GetRun(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if !ok {
			t.Fatal("expected run to exist")
		}
		if got.ID != want.ID || got.FinalLoss != want.FinalLoss || got.Criterion != want.Criterion {
			t.Errorf("run mangled: %+v", got)
		}
		if len(got.Modalities) != 2 || got.Modalities[0] != "img" {
			t.Errorf("modalities mangled: %v", got.Modalities)
		}
	})

	t.Run("missing run", func(t *testing.T) {
		_, ok, err := store.GetRun(ctx, "absent")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if ok {
			t.Error("expected run to be absent")
		}
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		run := testRun("run-a", base)
		run.FinalLoss = 0.5
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		got, _, err := store.GetRun(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.FinalLoss != 0.5 {
			t.Errorf("expected overwritten final loss 0.5, got %f", got.FinalLoss)
		}
	})

	t.Run("list ordered by creation time", func(t *testing.T) {
		if err := store.SaveRun(ctx, testRun("run-c", base.Add(2*time.Hour))); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		if err := store.SaveRun(ctx, testRun("run-b", base.Add(time.Hour))); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		runs, err := store.ListRuns(ctx)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if runs[0].ID != "run-a" || runs[1].ID != "run-b" || runs[2].ID != "run-c" {
			t.Errorf("unexpected order: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
		}
	})

	t.Run("history round trip", func(t *testing.T) {
		want := testHistory()
		if err := store.SaveHistory(ctx, "run-a", want); err != nil {
			t.Fatalf("SaveHistory failed: %v", err)
		}

		got, ok, err := store.GetHistory(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if !ok {
			t.Fatal("expected history to exist")
		}
		if len(got) != 2 || got[1].Total != 3.5 || got[0].BatchCount != 10 {
			t.Errorf("history mangled: %+v", got)
		}

		_, ok, err = store.GetHistory(ctx, "absent")
		if err != nil || ok {
			t.Errorf("expected no history for unknown run, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("dataset info round trip", func(t *testing.T) {
		want := DatasetInfo{
			RunID:      "run-a",
			Rows:       21,
			LatentSize: 64,
			TrainStart: 0,
			TrainEnd:   16,
			TestStart:  16,
			TestEnd:    21,
		}
		if err := store.SaveDatasetInfo(ctx, want); err != nil {
			t.Fatalf("SaveDatasetInfo failed: %v", err)
		}

		got, ok, err := store.GetDatasetInfo(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetDatasetInfo failed: %v", err)
		}
		if !ok {
			t.Fatal("expected dataset info to exist")
		}
		if got != want {
			t.Errorf("dataset info mangled: %+v", got)
		}
	})

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	runStoreSuite(t, NewSQLiteStore(path))
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	s := NewSQLiteStore("")
	if err := s.Init(context.Background()); err == nil {
		t.Error("expected error for empty sqlite path")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	run := testRun(NewRunID(), time.Now().UTC())
	if err := first.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer second.Close()

	got, ok, err := second.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !ok {
		t.Fatal("expected run to survive reopen")
	}
	if got.ID != run.ID {
		t.Errorf("expected run %s, got %s", run.ID, got.ID)
	}
}

func TestOpenFactory(t *testing.T) {
	mem, err := Open("memory", "")
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", mem)
	}

	sqlite, err := Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	if _, ok := sqlite.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", sqlite)
	}

	if _, err := Open("redis", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestCodecVersionMismatch(t *testing.T) {
	if _, err := decodeRun([]byte(`{"schema_version": 99, "run": {}}`)); err != ErrVersionMismatch {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := decodeHistory([]byte(`{"schema_version": 0, "history": []}`)); err != ErrVersionMismatch {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := decodeDatasetInfo([]byte(`{"schema_version": 2, "info": {}}`)); err != ErrVersionMismatch {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("expected distinct run ids")
	}
	if len(a) == 0 {
		t.Error("expected non-empty run id")
	}
}
