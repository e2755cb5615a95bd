package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"tspga/internal/model"
	"tspga/internal/tour"
)

const (
	StopGenerationLimit = "generation_limit"
	StopFitnessGoal     = "fitness_goal"
	StopStalled         = "stalled"
)

type State int

const (
	StateIdle State = iota
	StateInitializing
	StateEvaluating
	StateBreeding
	StateReplacing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateEvaluating:
		return "evaluating"
	case StateBreeding:
		return "breeding"
	case StateReplacing:
		return "replacing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GenerationReport is passed to Config.Observer once per evaluated
// generation. It is read-only.
type GenerationReport struct {
	Generation  int
	BestFitness float64
	BestSoFar   float64
	Diagnostics model.GenerationDiagnostics
}

type Config struct {
	Generations    int
	PopulationSize int
	CrossoverRate  float64
	MutationRate   float64
	Elitism        float64
	Seed           int64

	// Selector defaults to tournament selection of size 3.
	Selector Selector
	// WeakSurvivors carries the worst tours over unchanged to keep diversity.
	WeakSurvivors int
	// FitnessGoal stops the run once the best tour is at most this long (0 disables).
	FitnessGoal float64
	// StallGenerations stops the run after this many generations without
	// improvement (0 disables).
	StallGenerations int

	Observer func(GenerationReport)
	Logger   *zap.Logger
	// Debug validates every bred tour.
	Debug bool
}

func (c Config) EliteCount() int {
	return EliteCount(c.Elitism, c.PopulationSize)
}

// Validate checks every parameter before a run starts.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return &ConfigurationError{Field: "population", Value: c.PopulationSize, Reason: "must be >= 1"}
	}
	if c.Generations < 0 {
		return &ConfigurationError{Field: "generations", Value: c.Generations, Reason: "must be >= 0"}
	}
	rates := []struct {
		field string
		value float64
	}{
		{"crossover_rate", c.CrossoverRate},
		{"mutation_rate", c.MutationRate},
		{"elitism", c.Elitism},
	}
	for _, rate := range rates {
		if math.IsNaN(rate.value) || rate.value < 0 || rate.value > 1 {
			return &ConfigurationError{Field: rate.field, Value: rate.value, Reason: "must be in [0, 1]"}
		}
	}
	if c.WeakSurvivors < 0 {
		return &ConfigurationError{Field: "weak_survivors", Value: c.WeakSurvivors, Reason: "must be >= 0"}
	}
	if c.EliteCount()+c.WeakSurvivors > c.PopulationSize {
		return &ConfigurationError{Field: "weak_survivors", Value: c.WeakSurvivors, Reason: fmt.Sprintf("elites (%d) plus weak survivors exceed population %d", c.EliteCount(), c.PopulationSize)}
	}
	if math.IsNaN(c.FitnessGoal) || c.FitnessGoal < 0 {
		return &ConfigurationError{Field: "fitness_goal", Value: c.FitnessGoal, Reason: "must be >= 0"}
	}
	if c.StallGenerations < 0 {
		return &ConfigurationError{Field: "stall_generations", Value: c.StallGenerations, Reason: "must be >= 0"}
	}
	if ts, ok := c.Selector.(TournamentSelector); ok && ts.Size != 0 && ts.Size < MinTournamentSize {
		return &ConfigurationError{Field: "tournament_size", Value: ts.Size, Reason: fmt.Sprintf("must be >= %d", MinTournamentSize)}
	}
	return nil
}

type Result struct {
	Best           ScoredTour
	BestGeneration int
	// BestByGeneration holds the best-so-far fitness after each evaluated
	// generation, starting with generation 0. It never increases.
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	GenerationsRun   int
	StopReason       string
	FinalPopulation  []ScoredTour
}

// Engine runs the generational loop over one city table.
type Engine struct {
	cfg    Config
	table  tour.Distances
	logger *zap.Logger

	rng   *rand.Rand
	state State
}

func NewEngine(cfg Config, table tour.Distances) (*Engine, error) {
	if table == nil || table.Len() < 2 {
		n := 0
		if table != nil {
			n = table.Len()
		}
		return nil, &ConfigurationError{Field: "cities", Value: n, Reason: "need at least 2 cities"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{Size: DefaultTournamentSize}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, table: table, logger: logger, state: StateIdle}, nil
}

func (e *Engine) State() State {
	return e.state
}

// Run evolves a fresh population seeded from Config.Seed. Repeated calls
// with the same engine produce identical results.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	e.state = StateInitializing
	e.rng = rand.New(rand.NewSource(e.cfg.Seed))
	population := NewPopulation(e.cfg.PopulationSize, e.table.Len(), e.rng)
	eliteCount := e.cfg.EliteCount()

	e.logger.Info("evolution started",
		zap.Int("cities", e.table.Len()),
		zap.Int("population", e.cfg.PopulationSize),
		zap.Int("generations", e.cfg.Generations),
		zap.Int("elites", eliteCount),
		zap.String("selection", e.cfg.Selector.Name()),
		zap.Int64("seed", e.cfg.Seed),
	)

	var (
		best           ScoredTour
		bestGeneration int
		stall          int
		bred           breedStats
		ranked         []ScoredTour
		stopReason     string
	)
	history := make([]float64, 0, e.cfg.Generations+1)
	diagnostics := make([]model.GenerationDiagnostics, 0, e.cfg.Generations+1)

	gen := 0
	for {
		if err := ctx.Err(); err != nil {
			e.state = StateDone
			return Result{}, err
		}

		e.state = StateEvaluating
		ranked = Rank(population.Evaluate(e.table))
		if gen == 0 || ranked[0].Fitness < best.Fitness {
			best = ScoredTour{Tour: ranked[0].Tour.Clone(), Fitness: ranked[0].Fitness}
			bestGeneration = gen
			stall = 0
		} else {
			stall++
		}
		history = append(history, best.Fitness)
		diag := summarizeGeneration(ranked, gen, best.Fitness, eliteCount, bred)
		diagnostics = append(diagnostics, diag)
		if e.cfg.Observer != nil {
			e.cfg.Observer(GenerationReport{
				Generation:  gen,
				BestFitness: ranked[0].Fitness,
				BestSoFar:   best.Fitness,
				Diagnostics: diag,
			})
		}
		e.logger.Debug("generation evaluated",
			zap.Int("generation", gen),
			zap.Float64("best", ranked[0].Fitness),
			zap.Float64("best_so_far", best.Fitness),
			zap.Float64("mean", diag.MeanFitness),
			zap.Int("unique_tours", diag.UniqueTours),
		)

		if stopReason = e.stopReason(gen, best.Fitness, stall); stopReason != "" {
			break
		}

		e.state = StateBreeding
		next, counts, err := e.breed(ranked, eliteCount)
		if err != nil {
			e.state = StateDone
			return Result{}, err
		}
		bred = counts

		e.state = StateReplacing
		population = populationOf(next)
		gen++
	}
	e.state = StateDone

	evaluations := int64(gen+1) * int64(e.cfg.PopulationSize)
	e.logger.Info("evolution complete",
		zap.Float64("best_fitness", best.Fitness),
		zap.Int("best_generation", bestGeneration),
		zap.Int("generations_run", gen),
		zap.String("stop_reason", stopReason),
		zap.String("evaluations", humanize.Comma(evaluations)),
	)

	return Result{
		Best:             best,
		BestGeneration:   bestGeneration,
		BestByGeneration: history,
		Diagnostics:      diagnostics,
		GenerationsRun:   gen,
		StopReason:       stopReason,
		FinalPopulation:  ranked,
	}, nil
}

func (e *Engine) stopReason(gen int, best float64, stall int) string {
	if e.cfg.FitnessGoal > 0 && best <= e.cfg.FitnessGoal {
		return StopFitnessGoal
	}
	if e.cfg.StallGenerations > 0 && stall >= e.cfg.StallGenerations {
		return StopStalled
	}
	if gen >= e.cfg.Generations {
		return StopGenerationLimit
	}
	return ""
}

type breedStats struct {
	crossovers int
	swaps      int
}

// breed builds the next generation into a fresh slice; ranked is only read.
func (e *Engine) breed(ranked []ScoredTour, eliteCount int) ([]tour.Tour, breedStats, error) {
	size := e.cfg.PopulationSize
	next := make([]tour.Tour, 0, size)
	var counts breedStats

	for i := 0; i < eliteCount; i++ {
		next = append(next, ranked[i].Tour.Clone())
	}
	for i := 0; i < e.cfg.WeakSurvivors; i++ {
		next = append(next, ranked[len(ranked)-1-i].Tour.Clone())
	}

	for len(next) < size {
		a, err := e.cfg.Selector.PickParent(e.rng, ranked)
		if err != nil {
			return nil, breedStats{}, fmt.Errorf("select first parent: %w", err)
		}
		b, err := e.cfg.Selector.PickParent(e.rng, ranked)
		if err != nil {
			return nil, breedStats{}, fmt.Errorf("select second parent: %w", err)
		}

		var child tour.Tour
		if e.rng.Float64() < e.cfg.CrossoverRate {
			child = tour.Crossover(a, b, e.rng)
			counts.crossovers++
		} else {
			child = a.Clone()
		}
		counts.swaps += child.Mutate(e.cfg.MutationRate, e.rng)

		if e.cfg.Debug {
			if err := child.Validate(e.table.Len()); err != nil {
				return nil, breedStats{}, fmt.Errorf("%w: %v", ErrInvariant, err)
			}
		}
		next = append(next, child)
	}
	return next, counts, nil
}
