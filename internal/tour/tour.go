package tour

import (
	"fmt"
	"math/rand"
	"strconv"
)

// Distances is the read-only view of a city table a tour needs.
type Distances interface {
	Len() int
	Distance(i, j int) float64
}

// Tour is a permutation of city indices visited as a closed cycle.
type Tour []int

// Random returns a uniformly random permutation of 0..n-1.
func Random(n int, rng *rand.Rand) Tour {
	t := make(Tour, n)
	for i := range t {
		t[i] = i
	}
	rng.Shuffle(n, func(i, j int) { t[i], t[j] = t[j], t[i] })
	return t
}

// Fitness is the closed-cycle length; lower is better.
func (t Tour) Fitness(d Distances) float64 {
	n := len(t)
	if n < 2 {
		return 0
	}
	total := 0.0
	for k := 0; k < n-1; k++ {
		total += d.Distance(t[k], t[k+1])
	}
	return total + d.Distance(t[n-1], t[0])
}

func (t Tour) Clone() Tour {
	out := make(Tour, len(t))
	copy(out, t)
	return out
}

// Validate reports an error unless t is a permutation of 0..n-1.
func (t Tour) Validate(n int) error {
	if len(t) != n {
		return fmt.Errorf("tour length %d, want %d", len(t), n)
	}
	seen := make([]bool, n)
	for pos, city := range t {
		if city < 0 || city >= n {
			return fmt.Errorf("city %d at position %d out of range [0,%d)", city, pos, n)
		}
		if seen[city] {
			return fmt.Errorf("city %d repeated at position %d", city, pos)
		}
		seen[city] = true
	}
	return nil
}

// Crossover applies order crossover with random cut points.
func Crossover(a, b Tour, rng *rand.Rand) Tour {
	n := len(a)
	lo, hi := rng.Intn(n), rng.Intn(n)
	if lo > hi {
		lo, hi = hi, lo
	}
	return OrderCrossover(a, b, lo, hi)
}

// OrderCrossover copies a[lo..hi] (inclusive) into the same positions of the
// child, then fills the remaining positions left to right with the cities of
// b in b's order, skipping cities already placed.
func OrderCrossover(a, b Tour, lo, hi int) Tour {
	n := len(a)
	child := make(Tour, n)
	placed := make([]bool, n)
	for i := lo; i <= hi; i++ {
		child[i] = a[i]
		placed[a[i]] = true
	}

	src := 0
	for pos := 0; pos < n; pos++ {
		if pos >= lo && pos <= hi {
			continue
		}
		for placed[b[src]] {
			src++
		}
		child[pos] = b[src]
		placed[b[src]] = true
	}
	return child
}

// Mutate swaps each position, with probability rate, with a different random
// position. It works in place and returns the number of swaps.
func (t Tour) Mutate(rate float64, rng *rand.Rand) int {
	n := len(t)
	if n < 2 || rate <= 0 {
		return 0
	}
	swaps := 0
	for i := 0; i < n; i++ {
		if rng.Float64() >= rate {
			continue
		}
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		t[i], t[j] = t[j], t[i]
		swaps++
	}
	return swaps
}

// Canonical returns the rotation starting at city 0, oriented so the second
// city is the smaller neighbour of 0. Tours equal as cycles share one form.
func (t Tour) Canonical() Tour {
	n := len(t)
	out := make(Tour, 0, n)
	start := 0
	for i, city := range t {
		if city == 0 {
			start = i
			break
		}
	}
	for k := 0; k < n; k++ {
		out = append(out, t[(start+k)%n])
	}
	if n > 2 && out[n-1] < out[1] {
		for i, j := 1, n-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Key identifies the cycle independent of rotation and direction.
func (t Tour) Key() string {
	buf := make([]byte, 0, len(t)*3)
	for i, city := range t.Canonical() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(city), 10)
	}
	return string(buf)
}
