package tspga

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tspga/internal/cities"
	"tspga/internal/evo"
	"tspga/internal/model"
	"tspga/internal/stats"
	"tspga/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "tspga.db"
	defaultRunsLimit     = 20

	// Fixed width so that timestamps order correctly as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *zap.Logger
}

type Client struct {
	store  storage.Store
	logger *zap.Logger

	benchmarksDir string
	exportsDir    string

	initMu      sync.Mutex
	initialized bool
}

// RunRequest describes one solver run. Exactly one of Cities and CitiesPath
// must be set.
type RunRequest struct {
	Cities     []model.City
	CitiesPath string

	Generations      int
	Population       int
	CrossoverRate    float64
	MutationRate     float64
	Elitism          float64
	Seed             int64
	Selection        string
	TournamentSize   int
	WeakSurvivors    int
	FitnessGoal      float64
	StallGenerations int

	// RunID is generated when empty.
	RunID    string
	Observer func(evo.GenerationReport)
	Debug    bool
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestFitness      float64
	BestGeneration   int
	BestTour         []int
	BestTourNames    []string
	BestByGeneration []float64
	GenerationsRun   int
	StopReason       string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	CitiesPath       string
	CityCount        int
	Seed             int64
	Population       int
	Generations      int
	GenerationsRun   int
	Selection        string
	FinalBestFitness float64
	StopReason       string
}

type DeleteRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type BestTourRequest struct {
	RunID  string
	Latest bool
}

type BestTourItem struct {
	RunID      string
	Fitness    float64
	Generation int
	Order      []int
	Names      []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Run loads the cities, evolves tours and persists the outcome to the store
// and the artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	table, err := loadTable(req)
	if err != nil {
		return RunSummary{}, err
	}

	eliteCount := evo.EliteCount(req.Elitism, req.Population)
	selector, err := evo.ResolveSelector(req.Selection, evo.SelectorOptions{
		TournamentSize: req.TournamentSize,
		EliteCount:     eliteCount,
	})
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = newRunID(req.Seed)
	}
	logger := c.logger.With(zap.String("run_id", runID))

	engine, err := evo.NewEngine(evo.Config{
		Generations:      req.Generations,
		PopulationSize:   req.Population,
		CrossoverRate:    req.CrossoverRate,
		MutationRate:     req.MutationRate,
		Elitism:          req.Elitism,
		Seed:             req.Seed,
		Selector:         selector,
		WeakSurvivors:    req.WeakSurvivors,
		FitnessGoal:      req.FitnessGoal,
		StallGenerations: req.StallGenerations,
		Observer:         req.Observer,
		Logger:           logger,
		Debug:            req.Debug,
	}, table)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	order := []int(result.Best.Tour.Clone())
	names := table.Names(order)
	params := model.RunParams{
		Generations:      req.Generations,
		PopulationSize:   req.Population,
		CrossoverRate:    req.CrossoverRate,
		MutationRate:     req.MutationRate,
		Elitism:          req.Elitism,
		Seed:             req.Seed,
		Selection:        selector.Name(),
		TournamentSize:   req.TournamentSize,
		WeakSurvivors:    req.WeakSurvivors,
		FitnessGoal:      req.FitnessGoal,
		StallGenerations: req.StallGenerations,
	}
	createdAt := time.Now().UTC().Format(createdAtLayout)

	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		CitiesPath:      req.CitiesPath,
		CityCount:       table.Len(),
		Params:          params,
		BestFitness:     result.Best.Fitness,
		BestGeneration:  result.BestGeneration,
		BestTour:        order,
		BestTourNames:   names,
		GenerationsRun:  result.GenerationsRun,
		StopReason:      result.StopReason,
		CreatedAtUTC:    createdAt,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, fmt.Errorf("save fitness history %s: %w", runID, err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics %s: %w", runID, err)
	}

	tourCities := make([]model.City, 0, len(order))
	for _, idx := range order {
		tourCities = append(tourCities, table.City(idx))
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:      runID,
			CitiesPath: req.CitiesPath,
			CityCount:  table.Len(),
			EliteCount: eliteCount,
			RunParams:  params,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestFitness:      result.Best.Fitness,
		GenerationsRun:        result.GenerationsRun,
		StopReason:            result.StopReason,
		BestTour: stats.BestTour{
			Fitness:    result.Best.Fitness,
			Generation: result.BestGeneration,
			Order:      order,
			Cities:     tourCities,
		},
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:            runID,
		CitiesPath:       req.CitiesPath,
		CityCount:        table.Len(),
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		GenerationsRun:   result.GenerationsRun,
		Seed:             req.Seed,
		Selection:        selector.Name(),
		EliteCount:       eliteCount,
		FinalBestFitness: result.Best.Fitness,
		StopReason:       result.StopReason,
		CreatedAtUTC:     createdAt,
	}); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run persisted", zap.String("artifacts_dir", runDir))

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestFitness:      result.Best.Fitness,
		BestGeneration:   result.BestGeneration,
		BestTour:         append([]int(nil), order...),
		BestTourNames:    names,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		GenerationsRun:   result.GenerationsRun,
		StopReason:       result.StopReason,
	}, nil
}

// Runs lists runs newest first. Runs held by the store are merged with the
// run index so that runs made by another process with the memory backend
// still appear.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(records)+len(entries))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.RunID] = struct{}{}
		out = append(out, RunItem{
			RunID:            r.RunID,
			CreatedAtUTC:     r.CreatedAtUTC,
			CitiesPath:       r.CitiesPath,
			CityCount:        r.CityCount,
			Seed:             r.Params.Seed,
			Population:       r.Params.PopulationSize,
			Generations:      r.Params.Generations,
			GenerationsRun:   r.GenerationsRun,
			Selection:        r.Params.Selection,
			FinalBestFitness: r.BestFitness,
			StopReason:       r.StopReason,
		})
	}
	for _, e := range entries {
		if _, ok := seen[e.RunID]; ok {
			continue
		}
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			CitiesPath:       e.CitiesPath,
			CityCount:        e.CityCount,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			GenerationsRun:   e.GenerationsRun,
			Selection:        e.Selection,
			FinalBestFitness: e.FinalBestFitness,
			StopReason:       e.StopReason,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// DeleteRun removes a run from the store and the artifacts directory.
func (c *Client) DeleteRun(ctx context.Context, req DeleteRequest) (string, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "delete")
	if err != nil {
		return "", err
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}

	_, inStore, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if err := c.store.DeleteRun(ctx, runID); err != nil {
		return "", fmt.Errorf("delete run %s: %w", runID, err)
	}
	removed, err := stats.DeleteRunArtifacts(c.benchmarksDir, runID)
	if err != nil {
		return "", err
	}
	if !inStore && !removed {
		return "", fmt.Errorf("run not found: %s", runID)
	}
	c.logger.Info("run deleted", zap.String("run_id", runID))
	return runID, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory returns best-so-far fitness per generation. Runs missing
// from the store, such as those made by another process with the memory
// backend, are read from the run's fitness series.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		series, found, err := stats.ReadFitnessSeries(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
		history = series
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) FitnessSummary(ctx context.Context, req FitnessHistoryRequest) (stats.FitnessSummary, error) {
	history, err := c.FitnessHistory(ctx, req)
	if err != nil {
		return stats.FitnessSummary{}, err
	}
	return stats.Summarize(history)
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		artifacts, found, err := stats.ReadRunArtifacts(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
		diagnostics = artifacts.GenerationDiagnostics
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) BestTour(ctx context.Context, req BestTourRequest) (BestTourItem, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "best tour")
	if err != nil {
		return BestTourItem{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return BestTourItem{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return BestTourItem{}, err
	}
	if ok {
		return BestTourItem{
			RunID:      runID,
			Fitness:    run.BestFitness,
			Generation: run.BestGeneration,
			Order:      run.BestTour,
			Names:      run.BestTourNames,
		}, nil
	}

	artifacts, found, err := stats.ReadRunArtifacts(c.benchmarksDir, runID)
	if err != nil {
		return BestTourItem{}, err
	}
	if !found {
		return BestTourItem{}, fmt.Errorf("best tour not found for run id: %s", runID)
	}
	names := make([]string, 0, len(artifacts.BestTour.Cities))
	for _, city := range artifacts.BestTour.Cities {
		names = append(names, city.Name)
	}
	return BestTourItem{
		RunID:      runID,
		Fitness:    artifacts.BestTour.Fitness,
		Generation: artifacts.BestTour.Generation,
		Order:      artifacts.BestTour.Order,
		Names:      names,
	}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		if runID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return runID, nil
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func loadTable(req RunRequest) (*cities.Table, error) {
	switch {
	case len(req.Cities) > 0 && req.CitiesPath != "":
		return nil, errors.New("use either cities or cities path")
	case req.CitiesPath != "":
		return cities.LoadFile(req.CitiesPath)
	default:
		return cities.Load(req.Cities)
	}
}

func newRunID(seed int64) string {
	return fmt.Sprintf("tsp-%d-%s", seed, uuid.NewString()[:8])
}
