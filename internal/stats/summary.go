package stats

import (
	"errors"

	mstats "github.com/montanaflynn/stats"
)

// FitnessSummary describes a best-so-far fitness history. Lower is better,
// so Improvement is Initial minus Final and never negative.
type FitnessSummary struct {
	Generations int     `json:"generations"`
	Initial     float64 `json:"initial"`
	Final       float64 `json:"final"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Improvement float64 `json:"improvement"`
}

func Summarize(history []float64) (FitnessSummary, error) {
	if len(history) == 0 {
		return FitnessSummary{}, errors.New("fitness history is empty")
	}
	data := mstats.Float64Data(history)
	mean, err := data.Mean()
	if err != nil {
		return FitnessSummary{}, err
	}
	stddev, err := data.StandardDeviation()
	if err != nil {
		return FitnessSummary{}, err
	}
	lo, err := data.Min()
	if err != nil {
		return FitnessSummary{}, err
	}
	hi, err := data.Max()
	if err != nil {
		return FitnessSummary{}, err
	}

	initial := history[0]
	final := history[len(history)-1]
	return FitnessSummary{
		Generations: len(history),
		Initial:     initial,
		Final:       final,
		Mean:        mean,
		StdDev:      stddev,
		Min:         lo,
		Max:         hi,
		Improvement: initial - final,
	}, nil
}
