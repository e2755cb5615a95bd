package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrSelectorExists   = errors.New("selector already registered")
	ErrSelectorNotFound = errors.New("selector not found")
)

// SelectorOptions carries the run parameters a selector factory may use.
type SelectorOptions struct {
	TournamentSize int
	EliteCount     int
}

type SelectorFactory func(opts SelectorOptions) (Selector, error)

var selectorRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectorFactory
}{
	m: make(map[string]SelectorFactory),
}

func init() {
	registerDefaultSelectors()
}

func registerDefaultSelectors() {
	_ = RegisterSelector("tournament", func(opts SelectorOptions) (Selector, error) {
		size := opts.TournamentSize
		if size == 0 {
			size = DefaultTournamentSize
		}
		if size < MinTournamentSize {
			return nil, &ConfigurationError{Field: "tournament_size", Value: size, Reason: fmt.Sprintf("must be >= %d", MinTournamentSize)}
		}
		return TournamentSelector{Size: size}, nil
	})
	_ = RegisterSelector("roulette", func(SelectorOptions) (Selector, error) {
		return RouletteSelector{}, nil
	})
	_ = RegisterSelector("elite", func(opts SelectorOptions) (Selector, error) {
		return EliteSelector{Count: opts.EliteCount}, nil
	})
}

// RegisterSelector makes a selector available by name.
func RegisterSelector(name string, factory SelectorFactory) error {
	if name == "" {
		return errors.New("selector name is required")
	}
	if factory == nil {
		return errors.New("selector factory is required")
	}

	selectorRegistry.mu.Lock()
	defer selectorRegistry.mu.Unlock()

	if _, exists := selectorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectorExists, name)
	}
	selectorRegistry.m[name] = factory
	return nil
}

// ResolveSelector builds the named selector. The empty name resolves to
// tournament selection.
func ResolveSelector(name string, opts SelectorOptions) (Selector, error) {
	if name == "" {
		name = "tournament"
	}

	selectorRegistry.mu.RLock()
	factory, ok := selectorRegistry.m[name]
	selectorRegistry.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Field: "selection", Value: name, Reason: fmt.Sprintf("%v (known: %v)", ErrSelectorNotFound, ListSelectors())}
	}
	return factory(opts)
}

func ListSelectors() []string {
	selectorRegistry.mu.RLock()
	defer selectorRegistry.mu.RUnlock()

	names := make([]string, 0, len(selectorRegistry.m))
	for name := range selectorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetSelectorRegistryForTests() {
	selectorRegistry.mu.Lock()
	selectorRegistry.m = make(map[string]SelectorFactory)
	selectorRegistry.mu.Unlock()
	registerDefaultSelectors()
}
