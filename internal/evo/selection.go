package evo

import (
	"fmt"
	"math"
	"math/rand"

	"tspga/internal/tour"
)

const (
	DefaultTournamentSize = 3
	MinTournamentSize     = 2
)

// Selector chooses a parent from a population ranked best first. The
// returned tour is shared with ranked and must not be modified.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredTour) (tour.Tour, error)
}

// TournamentSelector samples Size members uniformly with replacement and
// picks the shortest. Exact ties are broken uniformly among the tied samples.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredTour) (tour.Tour, error) {
	if err := checkSelectInput(rng, ranked); err != nil {
		return nil, err
	}
	size := s.Size
	if size <= 0 {
		size = DefaultTournamentSize
	}

	best := ranked[rng.Intn(len(ranked))]
	ties := 1
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		switch {
		case candidate.Fitness < best.Fitness:
			best = candidate
			ties = 1
		case candidate.Fitness == best.Fitness:
			ties++
			if rng.Intn(ties) == 0 {
				best = candidate
			}
		}
	}
	return best.Tour, nil
}

// RouletteSelector is fitness-proportionate on inverse tour length.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) PickParent(rng *rand.Rand, ranked []ScoredTour) (tour.Tour, error) {
	if err := checkSelectInput(rng, ranked); err != nil {
		return nil, err
	}

	// Zero-length tours take all the mass.
	zeros := 0
	for _, item := range ranked {
		if item.Fitness <= 0 {
			zeros++
		}
	}
	if zeros > 0 {
		pick := rng.Intn(zeros)
		for _, item := range ranked {
			if item.Fitness <= 0 {
				if pick == 0 {
					return item.Tour, nil
				}
				pick--
			}
		}
	}

	total := 0.0
	for _, item := range ranked {
		total += 1 / item.Fitness
	}
	// Overflowed lengths leave no usable weight.
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return ranked[rng.Intn(len(ranked))].Tour, nil
	}
	target := rng.Float64() * total
	acc := 0.0
	for _, item := range ranked {
		acc += 1 / item.Fitness
		if target < acc {
			return item.Tour, nil
		}
	}
	return ranked[len(ranked)-1].Tour, nil
}

// EliteSelector picks uniformly from the top Count members.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredTour) (tour.Tour, error) {
	if err := checkSelectInput(rng, ranked); err != nil {
		return nil, err
	}
	count := s.Count
	if count <= 0 {
		count = 1
	}
	if count > len(ranked) {
		count = len(ranked)
	}
	return ranked[rng.Intn(count)].Tour, nil
}

func checkSelectInput(rng *rand.Rand, ranked []ScoredTour) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return fmt.Errorf("cannot select from an empty population")
	}
	return nil
}
