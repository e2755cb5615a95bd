package evo

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tspga/internal/cities"
	"tspga/internal/model"
)

func squareTable(t *testing.T) *cities.Table {
	t.Helper()
	table, err := cities.Load([]model.City{
		{Name: "A", X: 0, Y: 0},
		{Name: "B", X: 10, Y: 0},
		{Name: "C", X: 10, Y: 10},
		{Name: "D", X: 0, Y: 10},
	})
	require.NoError(t, err)
	return table
}

func circleTable(t *testing.T, n int) *cities.Table {
	t.Helper()
	// Shuffled so that the identity order is not the optimum.
	rng := rand.New(rand.NewSource(int64(n)))
	order := rng.Perm(n)
	list := make([]model.City, n)
	for i, k := range order {
		angle := 2 * math.Pi * float64(k) / float64(n)
		list[i] = model.City{X: 100 * math.Cos(angle), Y: 100 * math.Sin(angle)}
	}
	table, err := cities.Load(list)
	require.NoError(t, err)
	return table
}

func squareConfig() Config {
	return Config{
		Generations:    200,
		PopulationSize: 50,
		CrossoverRate:  0.4,
		MutationRate:   0.01,
		Elitism:        0.2,
		Seed:           1,
	}
}

func TestEngineSquareConvergesToPerimeter(t *testing.T) {
	engine, err := NewEngine(squareConfig(), squareTable(t))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 40.0, result.Best.Fitness, 1e-9)
	require.NoError(t, result.Best.Tour.Validate(4))
	assert.Equal(t, 200, result.GenerationsRun)
	assert.Equal(t, StopGenerationLimit, result.StopReason)
	assert.Len(t, result.BestByGeneration, 201)
	assert.Len(t, result.Diagnostics, 201)
	assert.Len(t, result.FinalPopulation, 50)
	assert.Equal(t, StateDone, engine.State())
}

func TestEngineTwoCitiesBestAtGenerationZero(t *testing.T) {
	table, err := cities.Load([]model.City{{X: 0, Y: 0}, {X: 3, Y: 4}})
	require.NoError(t, err)

	cfg := squareConfig()
	cfg.Generations = 10
	cfg.PopulationSize = 5
	engine, err := NewEngine(cfg, table)
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.BestGeneration)
	assert.InDelta(t, 10.0, result.Best.Fitness, 1e-12)
	for _, best := range result.BestByGeneration {
		assert.Equal(t, result.Best.Fitness, best)
	}
}

func TestEngineIsDeterministic(t *testing.T) {
	table := circleTable(t, 15)
	cfg := Config{
		Generations:    60,
		PopulationSize: 30,
		CrossoverRate:  0.8,
		MutationRate:   0.05,
		Elitism:        0.1,
		Seed:           99,
	}

	run := func() Result {
		engine, err := NewEngine(cfg, table)
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	first, second := run(), run()
	assert.Equal(t, first.Best, second.Best)
	assert.Equal(t, first.BestByGeneration, second.BestByGeneration)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)

	engine, err := NewEngine(cfg, table)
	require.NoError(t, err)
	again, err := engine.Run(context.Background())
	require.NoError(t, err)
	rerun, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, again.Best, rerun.Best, "reusing an engine must reproduce the run")

	cfg.Seed = 100
	other := run()
	assert.NotEqual(t, first.BestByGeneration, other.BestByGeneration)
}

func TestEngineBestSoFarNeverIncreases(t *testing.T) {
	table := circleTable(t, 12)
	for _, elitism := range []float64{0, 0.1} {
		cfg := Config{
			Generations:    150,
			PopulationSize: 40,
			CrossoverRate:  0.9,
			MutationRate:   0.02,
			Elitism:        elitism,
			Seed:           5,
		}
		engine, err := NewEngine(cfg, table)
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)

		for i := 1; i < len(result.BestByGeneration); i++ {
			assert.LessOrEqual(t, result.BestByGeneration[i], result.BestByGeneration[i-1], "elitism=%v generation=%d", elitism, i)
		}
		last := result.BestByGeneration[len(result.BestByGeneration)-1]
		assert.Equal(t, result.Best.Fitness, last)
		assert.Less(t, result.Best.Fitness, result.BestByGeneration[0], "elitism=%v expected improvement", elitism)
		assert.InDelta(t, result.Best.Tour.Fitness(table), result.Best.Fitness, 1e-9)
	}
}

func TestEngineElitismKeepsGenerationBest(t *testing.T) {
	cfg := Config{
		Generations:    80,
		PopulationSize: 20,
		CrossoverRate:  1,
		MutationRate:   0.2,
		Elitism:        0.1,
		Seed:           8,
	}
	engine, err := NewEngine(cfg, circleTable(t, 10))
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	for i := 1; i < len(result.Diagnostics); i++ {
		assert.LessOrEqual(t, result.Diagnostics[i].BestFitness, result.Diagnostics[i-1].BestFitness)
		assert.Equal(t, 2, result.Diagnostics[i].EliteCount)
	}
}

func TestEngineBreedingPreservesPermutations(t *testing.T) {
	table := circleTable(t, 11)
	cfg := Config{
		Generations:    1,
		PopulationSize: 30,
		CrossoverRate:  1,
		MutationRate:   0.3,
		Elitism:        0.1,
		WeakSurvivors:  2,
		Seed:           21,
	}
	engine, err := NewEngine(cfg, table)
	require.NoError(t, err)
	engine.rng = rand.New(rand.NewSource(cfg.Seed))

	population := NewPopulation(cfg.PopulationSize, table.Len(), engine.rng)
	for gen := 0; gen < 50; gen++ {
		ranked := Rank(population.Evaluate(table))
		next, counts, err := engine.breed(ranked, cfg.EliteCount())
		require.NoError(t, err)
		require.Len(t, next, cfg.PopulationSize)
		assert.Greater(t, counts.crossovers, 0)

		for i, member := range next {
			require.NoError(t, member.Validate(table.Len()), "generation %d member %d", gen, i)
		}
		for i := 0; i < cfg.EliteCount(); i++ {
			assert.Equal(t, ranked[i].Tour, next[i], "elite %d must be carried unchanged", i)
		}
		assert.Equal(t, ranked[len(ranked)-1].Tour, next[cfg.EliteCount()], "weakest member must be carried")
		population = populationOf(next)
	}
}

func TestEngineDebugRunSucceeds(t *testing.T) {
	cfg := squareConfig()
	cfg.Debug = true
	cfg.MutationRate = 0.5
	cfg.CrossoverRate = 1
	engine, err := NewEngine(cfg, circleTable(t, 9))
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	for _, member := range result.FinalPopulation {
		require.NoError(t, member.Tour.Validate(9))
	}
}

func TestEngineObserverSeesEveryGeneration(t *testing.T) {
	cfg := squareConfig()
	cfg.Generations = 12
	var reports []GenerationReport
	var engine *Engine
	cfg.Observer = func(report GenerationReport) {
		assert.Equal(t, StateEvaluating, engine.State())
		reports = append(reports, report)
	}
	engine, err := NewEngine(cfg, squareTable(t))
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 13)
	for i, report := range reports {
		assert.Equal(t, i, report.Generation)
		assert.Equal(t, i, report.Diagnostics.Generation)
		assert.LessOrEqual(t, report.BestSoFar, report.BestFitness)
	}
	assert.Zero(t, reports[0].Diagnostics.Crossovers)
}

func TestEngineZeroGenerations(t *testing.T) {
	cfg := squareConfig()
	cfg.Generations = 0
	engine, err := NewEngine(cfg, squareTable(t))
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.GenerationsRun)
	assert.Len(t, result.BestByGeneration, 1)
	assert.Equal(t, StopGenerationLimit, result.StopReason)
}

func TestEngineStopsAtFitnessGoal(t *testing.T) {
	cfg := squareConfig()
	cfg.FitnessGoal = 40.000001
	engine, err := NewEngine(cfg, squareTable(t))
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFitnessGoal, result.StopReason)
	assert.Less(t, result.GenerationsRun, cfg.Generations)
	assert.LessOrEqual(t, result.Best.Fitness, cfg.FitnessGoal)
}

func TestEngineStopsWhenStalled(t *testing.T) {
	cfg := squareConfig()
	cfg.StallGenerations = 5
	engine, err := NewEngine(cfg, squareTable(t))
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopStalled, result.StopReason)
	assert.Equal(t, result.BestGeneration+5, result.GenerationsRun)
}

func TestEngineHonoursCancelledContext(t *testing.T) {
	engine, err := NewEngine(squareConfig(), squareTable(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRejectsInvalidConfiguration(t *testing.T) {
	table := squareTable(t)
	cases := []struct {
		name  string
		field string
		edit  func(*Config)
	}{
		{"zero population", "population", func(c *Config) { c.PopulationSize = 0 }},
		{"negative generations", "generations", func(c *Config) { c.Generations = -1 }},
		{"crossover above one", "crossover_rate", func(c *Config) { c.CrossoverRate = 1.5 }},
		{"negative mutation", "mutation_rate", func(c *Config) { c.MutationRate = -0.1 }},
		{"nan elitism", "elitism", func(c *Config) { c.Elitism = math.NaN() }},
		{"elitism above one", "elitism", func(c *Config) { c.Elitism = 1.01 }},
		{"negative weak survivors", "weak_survivors", func(c *Config) { c.WeakSurvivors = -1 }},
		{"too many survivors", "weak_survivors", func(c *Config) { c.WeakSurvivors = 41 }},
		{"negative goal", "fitness_goal", func(c *Config) { c.FitnessGoal = -1 }},
		{"negative stall", "stall_generations", func(c *Config) { c.StallGenerations = -3 }},
		{"tiny tournament", "tournament_size", func(c *Config) { c.Selector = TournamentSelector{Size: 1} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := squareConfig()
			tc.edit(&cfg)
			engine, err := NewEngine(cfg, table)
			assert.Nil(t, engine)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestEngineRejectsMissingCities(t *testing.T) {
	_, err := NewEngine(squareConfig(), nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "cities", cfgErr.Field)
}

func TestEngineWithAlternativeSelectors(t *testing.T) {
	for _, selector := range []Selector{RouletteSelector{}, EliteSelector{Count: 10}, TournamentSelector{Size: 2}} {
		cfg := squareConfig()
		cfg.Selector = selector
		engine, err := NewEngine(cfg, squareTable(t))
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err, selector.Name())
		assert.InDelta(t, 40.0, result.Best.Fitness, 1e-9, selector.Name())
	}
}
