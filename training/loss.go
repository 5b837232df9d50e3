package training

import (
	"fmt"

	"github.com/tsawler/go-zsl/tensor"
	"github.com/tsawler/go-zsl/vae"
)

// ReconCriterion selects the per-modality reconstruction loss.
type ReconCriterion string

const (
	// ReconL1 sums absolute errors over the batch and divides by batch size.
	ReconL1 ReconCriterion = "l1"
	// ReconL2 sums squared errors over the batch and divides by batch size.
	ReconL2 ReconCriterion = "l2"
)

// LossComputer evaluates the combined multi-modal VAE objective: per-modality
// reconstruction and KL, plus cross-alignment and distribution-alignment
// terms over every unordered modality pair. Each alignment term can be
// switched off independently; a disabled term is never computed.
type LossComputer struct {
	criterion             ReconCriterion
	crossReconstruction   bool
	distributionAlignment bool
}

// NewLossComputer rejects unknown criterion names outright instead of
// falling back to a default.
func NewLossComputer(criterion ReconCriterion, crossReconstruction, distributionAlignment bool) (*LossComputer, error) {
	switch criterion {
	case ReconL1, ReconL2:
		return &LossComputer{
			criterion:             criterion,
			crossReconstruction:   crossReconstruction,
			distributionAlignment: distributionAlignment,
		}, nil
	default:
		return nil, fmt.Errorf("unknown reconstruction criterion %q", criterion)
	}
}

// LossResult holds the scalar loss tensors of one batch. Total carries the
// full autograd graph; the other terms are the unscaled components.
type LossResult struct {
	Total                 *tensor.Tensor
	VAE                   *tensor.Tensor
	CrossAlignment        *tensor.Tensor
	DistributionAlignment *tensor.Tensor
}

// Compute evaluates the objective for one batch. The VAE term is
// sum over modalities of (reconstruction - beta * KL); cross-alignment and
// distribution-alignment are summed over unordered modality pairs and enter
// the total scaled by their warm-up factors. Cross-alignment participates
// only when enabled; distribution-alignment only when enabled and its factor
// is positive. Skipped terms report a zero scalar.
func (lc *LossComputer) Compute(model *vae.Model, inputs vae.Map, fwd *vae.ForwardResult, factors Factors) (*LossResult, error) {
	keys, err := vae.AlignedKeys(inputs, fwd.Recon, fwd.Mu, fwd.Logvar, fwd.Sample)
	if err != nil {
		return nil, fmt.Errorf("loss inputs: %v", err)
	}

	batch := inputs[keys[0]].Shape[0]
	if batch <= 0 {
		return nil, fmt.Errorf("empty batch")
	}

	lossVAE := lc.vaeTerm(keys, inputs, fwd, factors.Beta, batch)
	total := lossVAE

	lossCA := tensor.FromScalar(0, tensor.Float32, tensor.CPU)
	if lc.crossReconstruction {
		lossCA, err = lc.crossAlignmentTerm(keys, model, inputs, fwd, batch)
		if err != nil {
			return nil, err
		}
		total = tensor.AddAutograd(total, tensor.ScaleAutograd(lossCA, factors.CrossReconstruction))
	}

	lossDA := tensor.FromScalar(0, tensor.Float32, tensor.CPU)
	if lc.distributionAlignment && factors.Distance > 0 {
		lossDA = distributionAlignmentTerm(keys, fwd, batch)
		total = tensor.AddAutograd(total, tensor.ScaleAutograd(lossDA, factors.Distance))
	}

	return &LossResult{
		Total:                 total,
		VAE:                   lossVAE,
		CrossAlignment:        lossCA,
		DistributionAlignment: lossDA,
	}, nil
}

// vaeTerm sums reconstruction - beta * KL over all modalities.
func (lc *LossComputer) vaeTerm(keys []vae.Modality, inputs vae.Map, fwd *vae.ForwardResult, beta float64, batch int) *tensor.Tensor {
	var total *tensor.Tensor
	for _, mod := range keys {
		recon := lc.reconstructionLoss(inputs[mod], fwd.Recon[mod], batch)
		kl := klDivergence(fwd.Mu[mod], fwd.Logvar[mod], batch)
		term := tensor.SubAutograd(recon, tensor.ScaleAutograd(kl, beta))
		if total == nil {
			total = term
		} else {
			total = tensor.AddAutograd(total, term)
		}
	}
	return total
}

// reconstructionLoss computes the element-wise error between target and
// reconstruction, summed and divided by batch size.
func (lc *LossComputer) reconstructionLoss(target, recon *tensor.Tensor, batch int) *tensor.Tensor {
	diff := tensor.SubAutograd(recon, target)

	var elem *tensor.Tensor
	switch lc.criterion {
	case ReconL1:
		elem = tensor.AbsAutograd(diff)
	case ReconL2:
		elem = tensor.SquareAutograd(diff)
	}

	return tensor.ScaleAutograd(tensor.SumAutograd(elem), 1/float64(batch))
}

// klDivergence computes 0.5 * sum(1 + logvar - mu^2 - exp(logvar)) / batch.
// The closed form is valid because encoder posteriors are diagonal Gaussians.
func klDivergence(mu, logvar *tensor.Tensor, batch int) *tensor.Tensor {
	term := tensor.SubAutograd(logvar, tensor.SquareAutograd(mu))
	term = tensor.SubAutograd(term, tensor.ExpAutograd(logvar))
	term = tensor.ShiftAutograd(term, 1)
	return tensor.ScaleAutograd(tensor.SumAutograd(term), 0.5/float64(batch))
}

// crossAlignmentTerm decodes each modality's latent sample through every
// other modality's decoder and scores the reconstruction against that other
// modality's input. Pairs are visited in sorted order, each once.
func (lc *LossComputer) crossAlignmentTerm(keys []vae.Modality, model *vae.Model, inputs vae.Map, fwd *vae.ForwardResult, batch int) (*tensor.Tensor, error) {
	total := tensor.FromScalar(0, tensor.Float32, tensor.CPU)

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]

			decA, err := model.Decoder(a)
			if err != nil {
				return nil, err
			}
			decB, err := model.Decoder(b)
			if err != nil {
				return nil, err
			}

			// a's features rebuilt from b's latent code, and vice versa.
			crossA, err := decA.Decode(fwd.Sample[b])
			if err != nil {
				return nil, fmt.Errorf("cross decode %q from %q: %v", a, b, err)
			}
			crossB, err := decB.Decode(fwd.Sample[a])
			if err != nil {
				return nil, fmt.Errorf("cross decode %q from %q: %v", b, a, err)
			}

			total = tensor.AddAutograd(total, lc.reconstructionLoss(inputs[a], crossA, batch))
			total = tensor.AddAutograd(total, lc.reconstructionLoss(inputs[b], crossB, batch))
		}
	}

	return total, nil
}

// distributionAlignmentTerm sums, over unordered modality pairs, the batch
// mean of the Wasserstein-2 distance between the two diagonal Gaussian
// posteriors:
//
//	sqrt(sum((mu1-mu2)^2) + sum((sigma1-sigma2)^2)) per row.
func distributionAlignmentTerm(keys []vae.Modality, fwd *vae.ForwardResult, batch int) *tensor.Tensor {
	total := tensor.FromScalar(0, tensor.Float32, tensor.CPU)

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]
			dist := wassersteinDistance(fwd.Mu[a], fwd.Logvar[a], fwd.Mu[b], fwd.Logvar[b], batch)
			total = tensor.AddAutograd(total, dist)
		}
	}

	return total
}

func wassersteinDistance(muA, logvarA, muB, logvarB *tensor.Tensor, batch int) *tensor.Tensor {
	muRows := tensor.SumRowsAutograd(tensor.SquareAutograd(tensor.SubAutograd(muA, muB)))

	stdA := tensor.ExpAutograd(tensor.ScaleAutograd(logvarA, 0.5))
	stdB := tensor.ExpAutograd(tensor.ScaleAutograd(logvarB, 0.5))
	stdRows := tensor.SumRowsAutograd(tensor.SquareAutograd(tensor.SubAutograd(stdA, stdB)))

	dist := tensor.SqrtAutograd(tensor.AddAutograd(muRows, stdRows))
	return tensor.ScaleAutograd(tensor.SumAutograd(dist), 1/float64(batch))
}
