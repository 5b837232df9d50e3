package training

import (
	"math"
	"testing"
)

func TestWarmupRampFactor(t *testing.T) {
	ramp := WarmupRamp{StartEpoch: 10, EndEpoch: 20, Target: 2.0}

	t.Run("before start", func(t *testing.T) {
		for _, epoch := range []int{0, 5, 9, 10} {
			if got := ramp.Factor(epoch); got != 0 {
				t.Errorf("epoch %d: expected 0, got %f", epoch, got)
			}
		}
	})

	t.Run("after end", func(t *testing.T) {
		for _, epoch := range []int{20, 25, 1000} {
			if got := ramp.Factor(epoch); got != 2.0 {
				t.Errorf("epoch %d: expected 2.0, got %f", epoch, got)
			}
		}
	})

	t.Run("linear inside window", func(t *testing.T) {
		// Midpoint of a [10, 20] window ramping to 2.0.
		if got := ramp.Factor(15); math.Abs(got-1.0) > 1e-12 {
			t.Errorf("epoch 15: expected 1.0, got %f", got)
		}
		if got := ramp.Factor(12); math.Abs(got-0.4) > 1e-12 {
			t.Errorf("epoch 12: expected 0.4, got %f", got)
		}
	})

	t.Run("monotone non-decreasing", func(t *testing.T) {
		prev := ramp.Factor(0)
		for epoch := 1; epoch <= 30; epoch++ {
			cur := ramp.Factor(epoch)
			if cur < prev {
				t.Fatalf("factor decreased from %f to %f at epoch %d", prev, cur, epoch)
			}
			prev = cur
		}
	})
}

func TestWarmupRampValidate(t *testing.T) {
	cases := []struct {
		name    string
		ramp    WarmupRamp
		wantErr bool
	}{
		{"valid", WarmupRamp{StartEpoch: 0, EndEpoch: 10, Target: 1}, false},
		{"end equals start", WarmupRamp{StartEpoch: 5, EndEpoch: 5, Target: 1}, true},
		{"end before start", WarmupRamp{StartEpoch: 10, EndEpoch: 3, Target: 1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ramp.Validate("test")
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWarmupScheduleAt(t *testing.T) {
	schedule := WarmupSchedule{
		Beta:                WarmupRamp{StartEpoch: 0, EndEpoch: 10, Target: 1.0},
		CrossReconstruction: WarmupRamp{StartEpoch: 5, EndEpoch: 15, Target: 3.0},
		Distance:            WarmupRamp{StartEpoch: 2, EndEpoch: 4, Target: 8.0},
	}
	if err := schedule.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	f := schedule.At(5)
	if math.Abs(f.Beta-0.5) > 1e-12 {
		t.Errorf("beta at 5: expected 0.5, got %f", f.Beta)
	}
	if f.CrossReconstruction != 0 {
		t.Errorf("cross-reconstruction at 5: expected 0, got %f", f.CrossReconstruction)
	}
	if f.Distance != 8.0 {
		t.Errorf("distance at 5: expected 8.0, got %f", f.Distance)
	}
}

func TestDefaultWarmupSchedule(t *testing.T) {
	if err := DefaultWarmupSchedule().Validate(); err != nil {
		t.Errorf("default schedule must validate: %v", err)
	}
}
