// Command zsltrain trains a multi-modal variational autoencoder for
// zero-shot learning on a synthetic demo dataset, generates the latent
// embedding dataset for a downstream classifier, and records the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tsawler/go-zsl/checkpoints"
	"github.com/tsawler/go-zsl/runstore"
	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/training"
	"github.com/tsawler/go-zsl/vae"
)

type appConfig struct {
	model           string
	epochs          int
	batchSize       int
	learningRate    float64
	latentSize      int
	criterion       string
	crossRecon      bool
	distAlign       bool
	generalized     bool
	samplesPerClass int
	seed            int64
	printEvery      int
	checkpointPath  string
	storeBackend    string
	storePath       string
}

// procedures maps a model name to its training procedure. Unknown names are
// an explicit error, not a silent default.
var procedures = map[string]func(appConfig) error{
	"cada_vae": runCADAVAE,
}

func main() {
	var cfg appConfig

	flag.StringVar(&cfg.model, "model", "cada_vae", "training procedure to run")
	flag.IntVar(&cfg.epochs, "epochs", 100, "number of training epochs")
	flag.IntVar(&cfg.batchSize, "batch", 32, "mini-batch size")
	flag.Float64Var(&cfg.learningRate, "lr", 1.5e-4, "Adam learning rate")
	flag.IntVar(&cfg.latentSize, "latent", 64, "latent space dimensionality")
	flag.StringVar(&cfg.criterion, "criterion", "l1", "reconstruction criterion (l1 or l2)")
	flag.BoolVar(&cfg.crossRecon, "cross-recon", true, "enable the cross-reconstruction loss term")
	flag.BoolVar(&cfg.distAlign, "dist-align", true, "enable the distribution-alignment loss term")
	flag.BoolVar(&cfg.generalized, "generalized", true, "generalized zero-shot setting")
	flag.IntVar(&cfg.samplesPerClass, "samples-per-class", 50, "latent samples per unseen class")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.IntVar(&cfg.printEvery, "print-every", 0, "print batch stats every N batches")
	flag.StringVar(&cfg.checkpointPath, "checkpoint", "model.json", "checkpoint output path, empty disables")
	flag.StringVar(&cfg.storeBackend, "store", "memory", "run store backend (memory or sqlite)")
	flag.StringVar(&cfg.storePath, "store-path", "runs.db", "sqlite database path")
	flag.Parse()

	procedure, ok := procedures[cfg.model]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown model %q; available:", cfg.model)
		for name := range procedures {
			fmt.Fprintf(os.Stderr, " %s", name)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	if err := procedure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "zsltrain: %v\n", err)
		os.Exit(1)
	}
}

const (
	imgDim        = 32
	attrDim       = 16
	seenClasses   = 6
	unseenClasses = 3
	rowsPerClass  = 20
)

func runCADAVAE(cfg appConfig) error {
	vae.SetRandomSeed(cfg.seed)
	rng := rand.New(rand.NewSource(cfg.seed))

	modelConfig := vae.Config{
		Modalities:    []vae.Modality{"img", "cls_attr"},
		FeatureDims:   map[vae.Modality]int{"img": imgDim, "cls_attr": attrDim},
		EncoderHidden: map[vae.Modality]int{"img": 48, "cls_attr": 32},
		DecoderHidden: map[vae.Modality]int{"img": 48, "cls_attr": 32},
		LatentSize:    cfg.latentSize,
	}
	model, err := vae.NewModel(modelConfig)
	if err != nil {
		return err
	}

	demo, err := buildDemoData(rng)
	if err != nil {
		return fmt.Errorf("building demo data: %v", err)
	}

	dataset, err := training.NewInMemoryDataset(demo.trainFeatures, demo.trainLabels)
	if err != nil {
		return err
	}
	loader, err := training.NewDataLoader(dataset, cfg.batchSize, true, rng)
	if err != nil {
		return err
	}

	optimizer := training.NewAdam(model.Parameters(), cfg.learningRate, 0.9, 0.999, 1e-8, 0)
	trainer, err := training.NewTrainer(model, optimizer, training.Config{
		Epochs:                cfg.epochs,
		PrintEvery:            cfg.printEvery,
		Criterion:             training.ReconCriterion(cfg.criterion),
		CrossReconstruction:   cfg.crossRecon,
		DistributionAlignment: cfg.distAlign,
		Warmup:                training.DefaultWarmupSchedule(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Training on %s samples (%s seen classes, %s unseen)\n",
		humanize.Comma(int64(dataset.Len())),
		humanize.Comma(seenClasses),
		humanize.Comma(unseenClasses))

	start := time.Now()
	if err := trainer.Train(loader); err != nil {
		return err
	}

	history := trainer.History()
	summary, err := training.Summarize(history)
	if err != nil {
		return err
	}
	fmt.Printf("Finished in %v: loss %.4f -> %.4f (min %.4f at epoch %d)\n",
		time.Since(start).Round(time.Millisecond),
		summary.First, summary.Final, summary.Min, summary.MinEpoch)

	synthetic, err := training.GenerateEmbeddings(model, training.EmbeddingConfig{
		PrimaryModality:   "img",
		AttributeModality: "cls_attr",
		Generalized:       cfg.generalized,
		SamplesPerClass:   cfg.samplesPerClass,
		UnseenClasses:     demo.unseenSplit.Labels,
	}, demo.seenSplit, demo.unseenSplit, demo.testSplit)
	if err != nil {
		return fmt.Errorf("generating embeddings: %v", err)
	}
	fmt.Printf("Synthetic dataset: %s rows (%d train, %d test), latent size %d\n",
		humanize.Comma(int64(synthetic.Embeddings.Shape[0])),
		synthetic.Train.Len(), synthetic.Test.Len(), model.LatentSize())

	runID := runstore.NewRunID()

	if cfg.checkpointPath != "" {
		if err := saveCheckpoint(model, trainer, cfg, runID); err != nil {
			return err
		}
	}

	return recordRun(cfg, runID, model, history, summary, synthetic)
}

func saveCheckpoint(model *vae.Model, trainer *training.Trainer, cfg appConfig, runID string) error {
	cp, err := checkpoints.Snapshot(model, checkpoints.TrainingState{
		Epoch:        cfg.epochs,
		LearningRate: cfg.learningRate,
		Criterion:    cfg.criterion,
		Warmup:       training.DefaultWarmupSchedule(),
		History:      trainer.History(),
	})
	if err != nil {
		return fmt.Errorf("snapshotting model: %v", err)
	}
	cp.Metadata.RunID = runID

	if err := checkpoints.Save(cp, cfg.checkpointPath); err != nil {
		return err
	}
	if info, err := os.Stat(cfg.checkpointPath); err == nil {
		fmt.Printf("Checkpoint written to %s (%s)\n", cfg.checkpointPath, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func recordRun(cfg appConfig, runID string, model *vae.Model, history []training.EpochLosses, summary training.HistorySummary, synthetic *training.SyntheticDataset) error {
	store, err := runstore.Open(cfg.storeBackend, cfg.storePath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing run store: %v", err)
	}
	defer store.Close()

	modalities := make([]string, 0, len(model.Modalities()))
	for _, m := range model.Modalities() {
		modalities = append(modalities, string(m))
	}

	run := runstore.RunRecord{
		ID:          runID,
		CreatedAt:   time.Now().UTC(),
		Modalities:  modalities,
		LatentSize:  model.LatentSize(),
		Epochs:      cfg.epochs,
		BatchSize:   cfg.batchSize,
		Criterion:   cfg.criterion,
		Generalized: cfg.generalized,
		FinalLoss:   summary.Final,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run: %v", err)
	}
	if err := store.SaveHistory(ctx, runID, history); err != nil {
		return fmt.Errorf("saving history: %v", err)
	}
	if err := store.SaveDatasetInfo(ctx, runstore.DatasetInfo{
		RunID:      runID,
		Rows:       synthetic.Embeddings.Shape[0],
		LatentSize: synthetic.Embeddings.Shape[1],
		TrainStart: synthetic.Train.Start,
		TrainEnd:   synthetic.Train.End,
		TestStart:  synthetic.Test.Start,
		TestEnd:    synthetic.Test.End,
	}); err != nil {
		return fmt.Errorf("saving dataset info: %v", err)
	}

	fmt.Printf("Run %s recorded in %s store\n", runID, cfg.storeBackend)
	return nil
}

// demoData is a small synthetic zero-shot dataset: Gaussian clusters per
// class in image space, one attribute vector per class.
type demoData struct {
	trainFeatures vae.Map
	trainLabels   []int32

	seenSplit   training.SplitData
	unseenSplit training.SplitData
	testSplit   training.SplitData
}

func buildDemoData(rng *rand.Rand) (*demoData, error) {
	totalClasses := seenClasses + unseenClasses

	// One attribute vector and one image-space center per class.
	attrs := make([][]float32, totalClasses)
	centers := make([][]float32, totalClasses)
	for c := 0; c < totalClasses; c++ {
		attrs[c] = randomVector(rng, attrDim, 1.0)
		centers[c] = randomVector(rng, imgDim, 2.0)
	}

	nTrain := seenClasses * rowsPerClass
	imgData := make([]float32, 0, nTrain*imgDim)
	attrData := make([]float32, 0, nTrain*attrDim)
	labels := make([]int32, 0, nTrain)
	for c := 0; c < seenClasses; c++ {
		for r := 0; r < rowsPerClass; r++ {
			imgData = append(imgData, jitter(rng, centers[c], 0.3)...)
			attrData = append(attrData, attrs[c]...)
			labels = append(labels, int32(c))
		}
	}

	img, err := tensor.NewTensor([]int{nTrain, imgDim}, tensor.Float32, tensor.CPU, imgData)
	if err != nil {
		return nil, err
	}
	attr, err := tensor.NewTensor([]int{nTrain, attrDim}, tensor.Float32, tensor.CPU, attrData)
	if err != nil {
		return nil, err
	}

	// Unseen classes contribute their attribute vectors and a test set of
	// image features drawn from their clusters.
	unseenAttrData := make([]float32, 0, unseenClasses*attrDim)
	unseenLabels := make([]int32, 0, unseenClasses)
	for c := seenClasses; c < totalClasses; c++ {
		unseenAttrData = append(unseenAttrData, attrs[c]...)
		unseenLabels = append(unseenLabels, int32(c))
	}
	unseenAttr, err := tensor.NewTensor([]int{unseenClasses, attrDim}, tensor.Float32, tensor.CPU, unseenAttrData)
	if err != nil {
		return nil, err
	}

	nTest := unseenClasses * rowsPerClass
	testData := make([]float32, 0, nTest*imgDim)
	testLabels := make([]int32, 0, nTest)
	for c := seenClasses; c < totalClasses; c++ {
		for r := 0; r < rowsPerClass; r++ {
			testData = append(testData, jitter(rng, centers[c], 0.3)...)
			testLabels = append(testLabels, int32(c))
		}
	}
	testImg, err := tensor.NewTensor([]int{nTest, imgDim}, tensor.Float32, tensor.CPU, testData)
	if err != nil {
		return nil, err
	}

	return &demoData{
		trainFeatures: vae.Map{"img": img, "cls_attr": attr},
		trainLabels:   labels,
		seenSplit:     training.SplitData{Features: img, Labels: labels},
		unseenSplit:   training.SplitData{Features: unseenAttr, Labels: unseenLabels},
		testSplit:     training.SplitData{Features: testImg, Labels: testLabels},
	}, nil
}

func randomVector(rng *rand.Rand, dim int, scale float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64()) * scale
	}
	return v
}

func jitter(rng *rand.Rand, center []float32, noise float32) []float32 {
	v := make([]float32, len(center))
	for i := range v {
		v[i] = center[i] + float32(rng.NormFloat64())*noise
	}
	return v
}
