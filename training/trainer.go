package training

import (
	"fmt"
	"time"

	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/vae"
)

// Config holds configuration for a training run.
type Config struct {
	Epochs     int
	PrintEvery int // Print batch stats every N batches, 0 disables
	Criterion  ReconCriterion

	// CrossReconstruction and DistributionAlignment switch the two alignment
	// terms of the combined loss on or off, independently of their warm-up
	// factors.
	CrossReconstruction   bool
	DistributionAlignment bool

	Warmup WarmupSchedule
}

// Validate checks the run configuration, including every warm-up ramp.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if err := c.Warmup.Validate(); err != nil {
		return err
	}
	return nil
}

// EpochLosses holds the averaged loss components of one epoch.
type EpochLosses struct {
	Epoch                 int           `json:"epoch"`
	Total                 float64       `json:"total"`
	VAE                   float64       `json:"vae"`
	CrossAlignment        float64       `json:"cross_alignment"`
	DistributionAlignment float64       `json:"distribution_alignment"`
	Duration              time.Duration `json:"duration"`
	BatchCount            int           `json:"batch_count"`
}

// Trainer runs the multi-modal VAE training loop.
type Trainer struct {
	model     *vae.Model
	optimizer Optimizer
	loss      *LossComputer
	config    Config
	history   []EpochLosses
}

// NewTrainer creates a Trainer, validating the configuration up front.
func NewTrainer(model *vae.Model, optimizer Optimizer, config Config) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %v", err)
	}
	loss, err := NewLossComputer(config.Criterion, config.CrossReconstruction, config.DistributionAlignment)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		model:     model,
		optimizer: optimizer,
		loss:      loss,
		config:    config,
	}, nil
}

// Train runs the complete training loop. Epochs are numbered from 1 in the
// history, while the warm-up ramps are evaluated on the 0-based epoch index,
// so the first epoch of a run reads factor 0 of every ramp that starts at 0.
func (t *Trainer) Train(loader *DataLoader) error {
	fmt.Printf("Starting training for %d epochs over %d modalities\n",
		t.config.Epochs, len(t.model.Modalities()))

	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		epochStart := time.Now()
		factors := t.config.Warmup.At(epoch - 1)

		losses, err := t.trainEpoch(loader, epoch, factors)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %v", epoch, err)
		}

		losses.Epoch = epoch
		losses.Duration = time.Since(epochStart)
		t.history = append(t.history, losses)

		t.printEpochSummary(losses)
	}

	return nil
}

// trainEpoch runs one pass over the loader, averaging losses per batch.
func (t *Trainer) trainEpoch(loader *DataLoader, epoch int, factors Factors) (EpochLosses, error) {
	var losses EpochLosses

	loader.Reset()

	for {
		batch, err := loader.Next()
		if err != nil {
			return losses, err
		}
		if batch == nil {
			break
		}

		t.optimizer.ZeroGrad()

		fwd, err := t.model.Forward(batch.Features)
		if err != nil {
			return losses, fmt.Errorf("forward pass failed: %v", err)
		}

		result, err := t.loss.Compute(t.model, batch.Features, fwd, factors)
		if err != nil {
			return losses, fmt.Errorf("loss computation failed: %v", err)
		}
		if !tensor.IsFinite(result.Total) {
			return losses, fmt.Errorf("loss diverged at epoch %d, batch %d", epoch, losses.BatchCount+1)
		}

		if err := result.Total.Backward(); err != nil {
			return losses, fmt.Errorf("backward pass failed: %v", err)
		}
		if err := t.optimizer.Step(); err != nil {
			return losses, fmt.Errorf("optimizer step failed: %v", err)
		}

		losses.BatchCount++

		total, err := result.Total.Float64Item()
		if err != nil {
			return losses, fmt.Errorf("reading total loss: %v", err)
		}
		vaeLoss, err := result.VAE.Float64Item()
		if err != nil {
			return losses, fmt.Errorf("reading vae loss: %v", err)
		}
		caLoss, err := result.CrossAlignment.Float64Item()
		if err != nil {
			return losses, fmt.Errorf("reading cross-alignment loss: %v", err)
		}
		daLoss, err := result.DistributionAlignment.Float64Item()
		if err != nil {
			return losses, fmt.Errorf("reading distribution-alignment loss: %v", err)
		}

		losses.Total += total
		losses.VAE += vaeLoss
		// The alignment components are recorded at their warmed-up
		// contribution to the total, not as raw term values.
		losses.CrossAlignment += caLoss * factors.CrossReconstruction
		losses.DistributionAlignment += daLoss * factors.Distance

		if t.config.PrintEvery > 0 && losses.BatchCount%t.config.PrintEvery == 0 {
			fmt.Printf("Epoch %d, Batch %d: Loss=%.4f\n", epoch, losses.BatchCount, total)
		}
	}

	if losses.BatchCount == 0 {
		return losses, fmt.Errorf("epoch %d produced no batches", epoch)
	}

	n := float64(losses.BatchCount)
	losses.Total /= n
	losses.VAE /= n
	losses.CrossAlignment /= n
	losses.DistributionAlignment /= n

	return losses, nil
}

// History returns the per-epoch losses recorded so far.
func (t *Trainer) History() []EpochLosses {
	return t.history
}

// Model returns the model being trained.
func (t *Trainer) Model() *vae.Model {
	return t.model
}

// printEpochSummary prints a one-line summary of the epoch results.
func (t *Trainer) printEpochSummary(losses EpochLosses) {
	fmt.Printf("Epoch %d/%d: Loss=%.4f (VAE=%.4f, CA=%.4f, DA=%.4f), Time=%v\n",
		losses.Epoch, t.config.Epochs,
		losses.Total, losses.VAE, losses.CrossAlignment, losses.DistributionAlignment,
		losses.Duration.Round(time.Millisecond))
}
