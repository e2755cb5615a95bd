package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tspga/internal/evo"
	"tspga/internal/storage"
	tspapi "tspga/pkg/tspga"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
	defaultDBPath = "tspga.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that opens a client.
type clientFlags struct {
	storeKind     *string
	dbPath        *string
	benchmarksDir *string
	logLevel      *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", defaultDBPath, "sqlite database path"),
		benchmarksDir: fs.String("benchmarks-dir", benchmarksDir, "run artifacts directory"),
		logLevel:      fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open() (*tspapi.Client, *zap.Logger, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	client, err := tspapi.New(tspapi.Options{
		StoreKind:     *f.storeKind,
		DBPath:        *f.dbPath,
		BenchmarksDir: *f.benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return client, logger, nil
}

func closeClient(client *tspapi.Client, logger *zap.Logger) {
	_ = client.Close()
	_ = logger.Sync()
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config path (YAML or JSON)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", 1, "rng seed")
	selection := fs.String("selection", "tournament", "parent selection: "+strings.Join(evo.ListSelectors(), "|"))
	tournamentSize := fs.Int("tournament-size", evo.DefaultTournamentSize, "tournament sample size (>= 2)")
	weakSurvivors := fs.Int("weak-survivors", 0, "worst tours carried over unchanged each generation")
	fitnessGoal := fs.Float64("fitness-goal", 0, "stop once the best tour is at most this long (0 disables)")
	stallGenerations := fs.Int("stall-generations", 0, "stop after this many generations without improvement (0 disables)")
	progress := fs.Bool("progress", false, "log every generation")
	debug := fs.Bool("debug", false, "validate every bred tour")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = tspapi.RunRequest{
			RunID:            *runID,
			Seed:             *seed,
			Selection:        *selection,
			TournamentSize:   *tournamentSize,
			WeakSurvivors:    *weakSurvivors,
			FitnessGoal:      *fitnessGoal,
			StallGenerations: *stallGenerations,
		}
	} else {
		overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":            *runID,
			"seed":              *seed,
			"selection":         *selection,
			"tournament-size":   *tournamentSize,
			"weak-survivors":    *weakSurvivors,
			"fitness-goal":      *fitnessGoal,
			"stall-generations": *stallGenerations,
		})
	}
	if err := applyPositionals(&req, fs.Args(), *configPath != ""); err != nil {
		return err
	}
	req.Debug = *debug

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if *progress {
		req.Observer = func(report evo.GenerationReport) {
			logger.Info("generation",
				zap.Int("generation", report.Generation),
				zap.Float64("best", report.BestFitness),
				zap.Float64("best_so_far", report.BestSoFar),
				zap.Float64("mean", report.Diagnostics.MeanFitness),
				zap.Int("unique_tours", report.Diagnostics.UniqueTours),
			)
		}
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run_id=%s\n", summary.RunID)
	fmt.Printf("best_fitness=%.6f\n", summary.BestFitness)
	fmt.Printf("best_tour=%s\n", formatTour(summary.BestTourNames))
	fmt.Printf("generations_run=%d\n", summary.GenerationsRun)
	fmt.Printf("stop_reason=%s\n", summary.StopReason)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	runs, err := client.Runs(ctx, tspapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		type runsItem struct {
			RunID            string  `json:"run_id"`
			CreatedAtUTC     string  `json:"created_at_utc"`
			CitiesPath       string  `json:"cities_path,omitempty"`
			CityCount        int     `json:"city_count"`
			Seed             int64   `json:"seed"`
			PopulationSize   int     `json:"population_size"`
			Generations      int     `json:"generations"`
			GenerationsRun   int     `json:"generations_run"`
			Selection        string  `json:"selection"`
			FinalBestFitness float64 `json:"final_best_fitness"`
			StopReason       string  `json:"stop_reason"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:            r.RunID,
				CreatedAtUTC:     r.CreatedAtUTC,
				CitiesPath:       r.CitiesPath,
				CityCount:        r.CityCount,
				Seed:             r.Seed,
				PopulationSize:   r.Population,
				Generations:      r.Generations,
				GenerationsRun:   r.GenerationsRun,
				Selection:        r.Selection,
				FinalBestFitness: r.FinalBestFitness,
				StopReason:       r.StopReason,
			})
		}
		return writeJSON(items)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s cities=%d seed=%d pop=%d gens=%d gens_run=%d selection=%s final_best_fitness=%.6f stop_reason=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.CityCount,
			r.Seed,
			r.Population,
			r.Generations,
			r.GenerationsRun,
			r.Selection,
			r.FinalBestFitness,
			r.StopReason,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	summaryOut := fs.Bool("summary", false, "print summary statistics instead of the history")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "fitness"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	req := tspapi.FitnessHistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit}
	if *summaryOut {
		summary, err := client.FitnessSummary(ctx, req)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(summary)
		}
		fmt.Printf("generations=%d initial=%.6f final=%.6f mean=%.6f stddev=%.6f min=%.6f max=%.6f improvement=%.6f\n",
			summary.Generations,
			summary.Initial,
			summary.Final,
			summary.Mean,
			summary.StdDev,
			summary.Min,
			summary.Max,
			summary.Improvement,
		)
		return nil
	}

	history, err := client.FitnessHistory(ctx, req)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "diagnostics"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	diagnostics, err := client.Diagnostics(ctx, tspapi.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f best_so_far=%.6f mean=%.6f median=%.6f stddev=%.6f worst=%.6f unique_tours=%d elites=%d crossovers=%d swaps=%d\n",
			d.Generation,
			d.BestFitness,
			d.BestSoFar,
			d.MeanFitness,
			d.MedianFitness,
			d.StdDevFitness,
			d.WorstFitness,
			d.UniqueTours,
			d.EliteCount,
			d.Crossovers,
			d.Swaps,
		)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the best tour of the most recent run from run index")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "best"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	best, err := client.BestTour(ctx, tspapi.BestTourRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Printf("run_id=%s best_fitness=%.6f generation=%d best_tour=%s\n",
		best.RunID,
		best.Fitness,
		best.Generation,
		formatTour(best.Names),
	)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "export"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	exported, err := client.Export(ctx, tspapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "delete the most recent run from run index")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "delete"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	deleted, err := client.DeleteRun(ctx, tspapi.DeleteRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Printf("deleted run_id=%s\n", deleted)
	return nil
}

func checkRunSelection(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

// formatTour renders a closed tour, returning to the first city.
func formatTour(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), names...), names[0]), "->")
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: tspgactl <run|runs|fitness|diagnostics|best|export|delete> [flags]\n       tspgactl run [flags] <generations> <population> <crossover> <mutation> <elitism> <cities.csv>", msg)
}
