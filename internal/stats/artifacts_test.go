package stats

import (
	"os"
	"path/filepath"
	"testing"

	"tspga/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:      runID,
			CitiesPath: "square.csv",
			CityCount:  4,
			EliteCount: 10,
			RunParams: model.RunParams{
				Generations:    3,
				PopulationSize: 50,
				CrossoverRate:  0.4,
				MutationRate:   0.01,
				Elitism:        0.2,
				Seed:           1,
				Selection:      "tournament",
			},
		},
		BestByGeneration: []float64{48.28, 44.14, 40, 40},
		GenerationDiagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestFitness: 48.28, BestSoFar: 48.28, UniqueTours: 50},
		},
		FinalBestFitness: 40,
		GenerationsRun:   3,
		StopReason:       "generation_limit",
		BestTour: BestTour{
			Fitness:    40,
			Generation: 2,
			Order:      []int{0, 1, 2, 3},
			Cities: []model.City{
				{ID: 0, Name: "A", X: 0, Y: 0},
				{ID: 1, Name: "B", X: 10, Y: 0},
				{ID: 2, Name: "C", X: 10, Y: 10},
				{ID: 3, Name: "D", X: 0, Y: 10},
			},
		},
	}
}

func TestWriteReadAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range runFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	loaded, ok, err := ReadRunArtifacts(baseDir, runID)
	if err != nil {
		t.Fatalf("read artifacts: %v", err)
	}
	if !ok {
		t.Fatal("expected run artifacts to exist")
	}
	if loaded.Config.PopulationSize != 50 || loaded.Config.Selection != "tournament" || loaded.Config.EliteCount != 10 {
		t.Fatalf("unexpected config: %+v", loaded.Config)
	}
	if loaded.FinalBestFitness != 40 || loaded.StopReason != "generation_limit" || len(loaded.BestByGeneration) != 4 {
		t.Fatalf("unexpected history: %+v", loaded)
	}
	if len(loaded.BestTour.Cities) != 4 || loaded.BestTour.Cities[2].Name != "C" {
		t.Fatalf("unexpected best tour: %+v", loaded.BestTour)
	}
	if len(loaded.GenerationDiagnostics) != 1 || loaded.GenerationDiagnostics[0].UniqueTours != 50 {
		t.Fatalf("unexpected diagnostics: %+v", loaded.GenerationDiagnostics)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range runFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestReadRunArtifactsMissingRun(t *testing.T) {
	if _, ok, err := ReadRunArtifacts(t.TempDir(), "missing"); err != nil || ok {
		t.Fatalf("expected missing run; ok=%t err=%v", ok, err)
	}
}

func TestExportRunArtifactsSkipsUnwrittenFiles(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-empty")
	artifacts.BestByGeneration = nil

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "fitness_summary.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no fitness summary for empty history, got %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-empty", t.TempDir())
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportedDir, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestExportRunArtifactsMissingRun(t *testing.T) {
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run error")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "", t.TempDir()); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestFitnessSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "run-series")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}

	if _, ok, err := ReadFitnessSeries(baseDir, "run-series"); err != nil || ok {
		t.Fatalf("expected missing series; ok=%t err=%v", ok, err)
	}

	want := []float64{52.5, 44.25, 40}
	if err := WriteFitnessSeries(runDir, want); err != nil {
		t.Fatalf("write series: %v", err)
	}
	got, ok, err := ReadFitnessSeries(baseDir, "run-series")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected series length: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("series[%d]=%f want=%f", i, got[i], want[i])
		}
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		CityCount:        4,
		PopulationSize:   8,
		Generations:      3,
		Seed:             1,
		EliteCount:       1,
		FinalBestFitness: 44,
		CreatedAtUTC:     "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-2",
		CityCount:        4,
		PopulationSize:   8,
		Generations:      3,
		Seed:             2,
		EliteCount:       1,
		FinalBestFitness: 42,
		CreatedAtUTC:     "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		CityCount:        4,
		PopulationSize:   8,
		Generations:      3,
		Seed:             1,
		EliteCount:       1,
		FinalBestFitness: 40,
		CreatedAtUTC:     "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].FinalBestFitness != 40 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}

func TestListRunIndexEmptyDir(t *testing.T) {
	entries, err := ListRunIndex(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestDeleteRunArtifactsRemovesDirectoryAndIndexEntry(t *testing.T) {
	baseDir := t.TempDir()
	for _, runID := range []string{"run-keep", "run-drop"} {
		if _, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID)); err != nil {
			t.Fatalf("write %s: %v", runID, err)
		}
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: runID, CreatedAtUTC: "2026-02-10T12:00:00Z"}); err != nil {
			t.Fatalf("append %s: %v", runID, err)
		}
	}

	removed, err := DeleteRunArtifacts(baseDir, "run-drop")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatal("expected run-drop to be removed")
	}
	if _, err := os.Stat(filepath.Join(baseDir, "run-drop")); !os.IsNotExist(err) {
		t.Fatalf("expected run directory to be gone, stat err=%v", err)
	}
	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "run-keep" {
		t.Fatalf("unexpected index after delete: %+v", entries)
	}

	removed, err = DeleteRunArtifacts(baseDir, "run-drop")
	if err != nil || removed {
		t.Fatalf("expected second delete to be a no-op, removed=%t err=%v", removed, err)
	}
	if _, err := DeleteRunArtifacts(baseDir, ""); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
