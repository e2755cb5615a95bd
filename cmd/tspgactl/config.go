package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"tspga/internal/evo"
	tspapi "tspga/pkg/tspga"
)

var positionalNames = []string{"generations", "population", "crossover", "mutation", "elitism", "cities.csv"}

// loadRunRequestFromConfig reads a YAML run config. JSON files parse as
// YAML too.
func loadRunRequestFromConfig(path string) (tspapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tspapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return tspapi.RunRequest{}, err
	}

	var req tspapi.RunRequest
	var unknown []string
	for key, value := range raw {
		var ok bool
		switch key {
		case "run_id":
			req.RunID, ok = asString(value)
		case "cities":
			req.CitiesPath, ok = asString(value)
		case "generations":
			req.Generations, ok = asInt(value)
		case "population":
			req.Population, ok = asInt(value)
		case "crossover_rate":
			req.CrossoverRate, ok = asFloat64(value)
		case "mutation_rate":
			req.MutationRate, ok = asFloat64(value)
		case "elitism":
			req.Elitism, ok = asFloat64(value)
		case "seed":
			req.Seed, ok = asInt64(value)
		case "selection":
			req.Selection, ok = asString(value)
		case "tournament_size":
			req.TournamentSize, ok = asInt(value)
		case "weak_survivors":
			req.WeakSurvivors, ok = asInt(value)
		case "fitness_goal":
			req.FitnessGoal, ok = asFloat64(value)
		case "stall_generations":
			req.StallGenerations, ok = asInt(value)
		default:
			unknown = append(unknown, key)
			continue
		}
		if !ok {
			return tspapi.RunRequest{}, &evo.ConfigurationError{Field: key, Value: value, Reason: "unexpected type in config file"}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return tspapi.RunRequest{}, fmt.Errorf("unknown config keys: %v", unknown)
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideFromFlags(req *tspapi.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "selection":
			req.Selection = v.(string)
		case "tournament-size":
			req.TournamentSize = v.(int)
		case "weak-survivors":
			req.WeakSurvivors = v.(int)
		case "fitness-goal":
			req.FitnessGoal = v.(float64)
		case "stall-generations":
			req.StallGenerations = v.(int)
		}
	}
}

func loadOrDefaultRunRequest(configPath string) (tspapi.RunRequest, error) {
	if configPath == "" {
		return tspapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return tspapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

// applyPositionals parses <generations> <population> <crossover> <mutation>
// <elitism> <cities.csv>. They may be omitted only when a config file
// provided the run.
func applyPositionals(req *tspapi.RunRequest, args []string, fromConfig bool) error {
	if len(args) == 0 && fromConfig {
		if req.CitiesPath == "" {
			return usageError("config file must name cities when positional arguments are omitted")
		}
		return nil
	}
	if len(args) != len(positionalNames) {
		return usageError(fmt.Sprintf("run expects %d positional arguments, got %d", len(positionalNames), len(args)))
	}

	generations, err := strconv.Atoi(args[0])
	if err != nil {
		return &evo.ConfigurationError{Field: "generations", Value: args[0], Reason: "not an integer"}
	}
	population, err := strconv.Atoi(args[1])
	if err != nil {
		return &evo.ConfigurationError{Field: "population", Value: args[1], Reason: "not an integer"}
	}
	rates := make([]float64, 3)
	for i, field := range []string{"crossover_rate", "mutation_rate", "elitism"} {
		rates[i], err = strconv.ParseFloat(args[2+i], 64)
		if err != nil {
			return &evo.ConfigurationError{Field: field, Value: args[2+i], Reason: "not a number"}
		}
	}

	req.Generations = generations
	req.Population = population
	req.CrossoverRate = rates[0]
	req.MutationRate = rates[1]
	req.Elitism = rates[2]
	req.CitiesPath = args[5]
	return nil
}
