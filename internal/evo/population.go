package evo

import (
	"math"
	"math/rand"
	"sort"

	"tspga/internal/tour"
)

type ScoredTour struct {
	Tour    tour.Tour
	Fitness float64
}

// Population is an ordered, fixed-size set of tours for one generation.
type Population struct {
	tours []tour.Tour
}

func NewPopulation(size, cityCount int, rng *rand.Rand) *Population {
	tours := make([]tour.Tour, size)
	for i := range tours {
		tours[i] = tour.Random(cityCount, rng)
	}
	return &Population{tours: tours}
}

func populationOf(tours []tour.Tour) *Population {
	return &Population{tours: tours}
}

func (p *Population) Len() int {
	return len(p.tours)
}

// Evaluate scores every member in population order.
func (p *Population) Evaluate(d tour.Distances) []ScoredTour {
	scored := make([]ScoredTour, len(p.tours))
	for i, t := range p.tours {
		scored[i] = ScoredTour{Tour: t, Fitness: t.Fitness(d)}
	}
	return scored
}

// Rank returns a copy sorted best (shortest) first. Equal fitness keeps
// population order.
func Rank(scored []ScoredTour) []ScoredTour {
	ranked := make([]ScoredTour, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness < ranked[j].Fitness
	})
	return ranked
}

// eliteEpsilon absorbs binary rounding in products such as 0.29*100.
const eliteEpsilon = 1e-9

// EliteCount is floor(fraction*size) clamped to [0, size].
func EliteCount(fraction float64, size int) int {
	count := int(math.Floor(fraction*float64(size) + eliteEpsilon))
	if count < 0 {
		return 0
	}
	if count > size {
		return size
	}
	return count
}
