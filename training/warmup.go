package training

import "fmt"

// WarmupRamp linearly increases one loss factor from 0 at StartEpoch to
// Target at EndEpoch, staying at Target afterwards. Epochs are counted
// from 0.
type WarmupRamp struct {
	StartEpoch int     `json:"start_epoch"`
	EndEpoch   int     `json:"end_epoch"`
	Target     float64 `json:"target"`
}

// Validate rejects ramps whose window is empty or inverted.
func (r WarmupRamp) Validate(name string) error {
	if r.EndEpoch <= r.StartEpoch {
		return fmt.Errorf("%s ramp: end epoch %d must be greater than start epoch %d", name, r.EndEpoch, r.StartEpoch)
	}
	return nil
}

// Factor returns the ramp value at the given epoch. Before StartEpoch the
// factor is 0, inside the window it grows linearly, and after EndEpoch it
// holds at Target.
func (r WarmupRamp) Factor(epoch int) float64 {
	if epoch < r.StartEpoch {
		return 0
	}
	if epoch >= r.EndEpoch {
		return r.Target
	}
	return r.Target * float64(epoch-r.StartEpoch) / float64(r.EndEpoch-r.StartEpoch)
}

// WarmupSchedule bundles the three ramps that gate the KL, cross-alignment,
// and distribution-alignment terms of the total loss.
type WarmupSchedule struct {
	Beta                WarmupRamp `json:"beta"`
	CrossReconstruction WarmupRamp `json:"cross_reconstruction"`
	Distance            WarmupRamp `json:"distance"`
}

// Validate checks every ramp in the schedule.
func (s WarmupSchedule) Validate() error {
	if err := s.Beta.Validate("beta"); err != nil {
		return err
	}
	if err := s.CrossReconstruction.Validate("cross-reconstruction"); err != nil {
		return err
	}
	if err := s.Distance.Validate("distance"); err != nil {
		return err
	}
	return nil
}

// Factors holds the three ramp values for one epoch.
type Factors struct {
	Beta                float64
	CrossReconstruction float64
	Distance            float64
}

// At evaluates all three ramps at the given epoch.
func (s WarmupSchedule) At(epoch int) Factors {
	return Factors{
		Beta:                s.Beta.Factor(epoch),
		CrossReconstruction: s.CrossReconstruction.Factor(epoch),
		Distance:            s.Distance.Factor(epoch),
	}
}

// DefaultWarmupSchedule mirrors the schedule commonly used for CADA-VAE
// training on CUB-style splits.
func DefaultWarmupSchedule() WarmupSchedule {
	return WarmupSchedule{
		Beta:                WarmupRamp{StartEpoch: 0, EndEpoch: 93, Target: 0.25},
		CrossReconstruction: WarmupRamp{StartEpoch: 21, EndEpoch: 75, Target: 2.37},
		Distance:            WarmupRamp{StartEpoch: 6, EndEpoch: 22, Target: 8.13},
	}
}
