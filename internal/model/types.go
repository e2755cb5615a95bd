package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type City struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type RunParams struct {
	Generations      int     `json:"generations"`
	PopulationSize   int     `json:"population_size"`
	CrossoverRate    float64 `json:"crossover_rate"`
	MutationRate     float64 `json:"mutation_rate"`
	Elitism          float64 `json:"elitism"`
	Seed             int64   `json:"seed"`
	Selection        string  `json:"selection"`
	TournamentSize   int     `json:"tournament_size"`
	WeakSurvivors    int     `json:"weak_survivors"`
	FitnessGoal      float64 `json:"fitness_goal"`
	StallGenerations int     `json:"stall_generations"`
}

// RunRecord is the persisted outcome of one evolution run. Intermediate
// populations are never stored.
type RunRecord struct {
	VersionedRecord
	RunID          string    `json:"run_id"`
	CitiesPath     string    `json:"cities_path,omitempty"`
	CityCount      int       `json:"city_count"`
	Params         RunParams `json:"params"`
	BestFitness    float64   `json:"best_fitness"`
	BestGeneration int       `json:"best_generation"`
	BestTour       []int     `json:"best_tour"`
	BestTourNames  []string  `json:"best_tour_names"`
	GenerationsRun int       `json:"generations_run"`
	StopReason     string    `json:"stop_reason"`
	CreatedAtUTC   string    `json:"created_at_utc"`
}

type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	BestSoFar     float64 `json:"best_so_far"`
	MeanFitness   float64 `json:"mean_fitness"`
	MedianFitness float64 `json:"median_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	WorstFitness  float64 `json:"worst_fitness"`
	UniqueTours   int     `json:"unique_tours"`
	EliteCount    int     `json:"elite_count"`
	Crossovers    int     `json:"crossovers"`
	Swaps         int     `json:"swaps"`
}
