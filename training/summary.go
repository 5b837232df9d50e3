package training

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HistorySummary aggregates the total-loss curve of a training run.
type HistorySummary struct {
	Epochs    int     `json:"epochs"`
	First     float64 `json:"first"`
	Final     float64 `json:"final"`
	Min       float64 `json:"min"`
	MinEpoch  int     `json:"min_epoch"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Improved  float64 `json:"improved"`
	Monotonic bool    `json:"monotonic"`
}

// Summarize reduces a loss history to its headline statistics. Improved is
// first minus final, positive when training lowered the loss. Monotonic
// reports whether the total loss decreased every epoch.
func Summarize(history []EpochLosses) (HistorySummary, error) {
	if len(history) == 0 {
		return HistorySummary{}, fmt.Errorf("empty loss history")
	}

	totals := make([]float64, len(history))
	for i, h := range history {
		totals[i] = h.Total
	}

	minIdx := floats.MinIdx(totals)
	mean, std := stat.MeanStdDev(totals, nil)
	// MeanStdDev returns NaN std for a single sample.
	if len(totals) == 1 {
		std = 0
	}

	monotonic := true
	for i := 1; i < len(totals); i++ {
		if totals[i] >= totals[i-1] {
			monotonic = false
			break
		}
	}

	return HistorySummary{
		Epochs:    len(history),
		First:     totals[0],
		Final:     totals[len(totals)-1],
		Min:       totals[minIdx],
		MinEpoch:  history[minIdx].Epoch,
		Mean:      mean,
		StdDev:    std,
		Improved:  totals[0] - totals[len(totals)-1],
		Monotonic: monotonic,
	}, nil
}
