package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"tspga/internal/model"
)

const runIndexFile = "run_index.json"

var runFiles = []string{
	"config.json",
	"fitness_history.json",
	"best_tour.json",
	"generation_diagnostics.json",
	"fitness_summary.json",
	"fitness_series.csv",
}

// RunConfig records everything needed to reproduce a run.
type RunConfig struct {
	RunID      string `json:"run_id"`
	CitiesPath string `json:"cities_path,omitempty"`
	CityCount  int    `json:"city_count"`
	EliteCount int    `json:"elite_count"`
	model.RunParams
}

type BestTour struct {
	Fitness    float64      `json:"fitness"`
	Generation int          `json:"generation"`
	Order      []int        `json:"order"`
	Cities     []model.City `json:"cities"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	GenerationsRun        int                           `json:"generations_run"`
	StopReason            string                        `json:"stop_reason"`
	BestTour              BestTour                      `json:"best_tour"`
}

type fitnessHistoryFile struct {
	BestByGeneration []float64 `json:"best_by_generation"`
	FinalBestFitness float64   `json:"final_best_fitness"`
	GenerationsRun   int       `json:"generations_run"`
	StopReason       string    `json:"stop_reason"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	CitiesPath       string  `json:"cities_path,omitempty"`
	CityCount        int     `json:"city_count"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	GenerationsRun   int     `json:"generations_run"`
	Seed             int64   `json:"seed"`
	Selection        string  `json:"selection"`
	EliteCount       int     `json:"elite_count"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	StopReason       string  `json:"stop_reason"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	history := fitnessHistoryFile{
		BestByGeneration: artifacts.BestByGeneration,
		FinalBestFitness: artifacts.FinalBestFitness,
		GenerationsRun:   artifacts.GenerationsRun,
		StopReason:       artifacts.StopReason,
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "best_tour.json"), artifacts.BestTour); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if len(artifacts.BestByGeneration) > 0 {
		summary, err := Summarize(artifacts.BestByGeneration)
		if err != nil {
			return "", fmt.Errorf("summarize fitness history: %w", err)
		}
		if err := writeJSON(filepath.Join(runDir, "fitness_summary.json"), summary); err != nil {
			return "", err
		}
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

// ReadRunArtifacts loads a run directory written by WriteRunArtifacts. The
// boolean is false when the run directory does not exist.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	if runID == "" {
		return RunArtifacts{}, false, fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, runID)
	if _, err := os.Stat(runDir); err != nil {
		if os.IsNotExist(err) {
			return RunArtifacts{}, false, nil
		}
		return RunArtifacts{}, false, err
	}

	var artifacts RunArtifacts
	if err := readJSON(filepath.Join(runDir, "config.json"), &artifacts.Config); err != nil {
		return RunArtifacts{}, false, err
	}
	var history fitnessHistoryFile
	if err := readJSON(filepath.Join(runDir, "fitness_history.json"), &history); err != nil {
		return RunArtifacts{}, false, err
	}
	artifacts.BestByGeneration = history.BestByGeneration
	artifacts.FinalBestFitness = history.FinalBestFitness
	artifacts.GenerationsRun = history.GenerationsRun
	artifacts.StopReason = history.StopReason

	if err := readJSON(filepath.Join(runDir, "best_tour.json"), &artifacts.BestTour); err != nil {
		return RunArtifacts{}, false, err
	}
	if err := readJSON(filepath.Join(runDir, "generation_diagnostics.json"), &artifacts.GenerationDiagnostics); err != nil {
		return RunArtifacts{}, false, err
	}
	return artifacts, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			// Upserted entries move to the end.
			index = append(index[:i], index[i+1:]...)
			break
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps list the later append first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// DeleteRunArtifacts removes a run directory and its index entry. It
// reports whether anything was removed.
func DeleteRunArtifacts(baseDir, runID string) (bool, error) {
	if runID == "" {
		return false, fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, runID)
	removed := false
	if _, err := os.Stat(runDir); err == nil {
		if err := os.RemoveAll(runDir); err != nil {
			return false, err
		}
		removed = true
	} else if !os.IsNotExist(err) {
		return false, err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return removed, err
	}
	kept := index[:0]
	for _, entry := range index {
		if entry.RunID == runID {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == len(index) {
		return removed, nil
	}
	return removed, writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", runIndexFile, err)
	}
	return entries, nil
}

// ExportRunArtifacts copies the run directory under outDir/runID. Files a
// run never wrote are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runFiles {
		err := copyFile(filepath.Join(src, file), filepath.Join(dst, file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
	}
	return dst, nil
}

// WriteFitnessSeries writes best-so-far fitness per generation as CSV,
// starting at generation 0.
func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	file, err := os.Create(filepath.Join(runDir, "fitness_series.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_so_far"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "fitness_series.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
