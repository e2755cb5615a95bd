package cities

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tspga/internal/model"
)

const MinCities = 2

// MalformedInputError reports an unusable city list or city file record.
type MalformedInputError struct {
	Line   int
	Field  string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Line > 0 {
		msg += fmt.Sprintf(": line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// IsMalformedInput reports whether err carries a MalformedInputError.
func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}

// Table is an immutable city list with precomputed pairwise distances.
type Table struct {
	cities []model.City
	dist   *mat.SymDense
}

func Load(cities []model.City) (*Table, error) {
	if len(cities) < MinCities {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("need at least %d cities, got %d", MinCities, len(cities))}
	}

	owned := make([]model.City, len(cities))
	for i, city := range cities {
		if !finite(city.X) {
			return nil, &MalformedInputError{Line: i + 1, Field: "x", Reason: fmt.Sprintf("non-numeric coordinate %v", city.X)}
		}
		if !finite(city.Y) {
			return nil, &MalformedInputError{Line: i + 1, Field: "y", Reason: fmt.Sprintf("non-numeric coordinate %v", city.Y)}
		}
		city.ID = i
		if city.Name == "" {
			city.Name = fmt.Sprintf("%d", i)
		}
		owned[i] = city
	}

	n := len(owned)
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, math.Hypot(owned[i].X-owned[j].X, owned[i].Y-owned[j].Y))
		}
	}

	return &Table{cities: owned, dist: dist}, nil
}

func (t *Table) Len() int {
	return len(t.cities)
}

func (t *Table) City(i int) model.City {
	return t.cities[i]
}

func (t *Table) Cities() []model.City {
	out := make([]model.City, len(t.cities))
	copy(out, t.cities)
	return out
}

// Distance returns the Euclidean distance between cities i and j. Indices
// outside [0, Len()) panic.
func (t *Table) Distance(i, j int) float64 {
	return t.dist.At(i, j)
}

// Names maps a city order to city names.
func (t *Table) Names(order []int) []string {
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = t.cities[idx].Name
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
