package evo

import (
	"github.com/montanaflynn/stats"

	"tspga/internal/model"
)

func summarizeGeneration(ranked []ScoredTour, generation int, bestSoFar float64, eliteCount int, bred breedStats) model.GenerationDiagnostics {
	if len(ranked) == 0 {
		return model.GenerationDiagnostics{Generation: generation, BestSoFar: bestSoFar}
	}

	fitness := make(stats.Float64Data, len(ranked))
	unique := make(map[string]struct{}, len(ranked))
	for i, item := range ranked {
		fitness[i] = item.Fitness
		unique[item.Tour.Key()] = struct{}{}
	}
	// Errors only arise for empty input, which is excluded above.
	mean, _ := fitness.Mean()
	median, _ := fitness.Median()
	stddev, _ := fitness.StandardDeviation()

	return model.GenerationDiagnostics{
		Generation:    generation,
		BestFitness:   ranked[0].Fitness,
		BestSoFar:     bestSoFar,
		MeanFitness:   mean,
		MedianFitness: median,
		StdDevFitness: stddev,
		WorstFitness:  ranked[len(ranked)-1].Fitness,
		UniqueTours:   len(unique),
		EliteCount:    eliteCount,
		Crossovers:    bred.crossovers,
		Swaps:         bred.swaps,
	}
}
