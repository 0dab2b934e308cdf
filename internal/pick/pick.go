// Package pick selects structurally diverse subsets from a collection
// of completed systems.
package pick

import (
	"fmt"
	"sort"

	"sanigraph/internal/tech"
)

// Select returns k systems chosen for structural diversity by greedy
// max-min selection over Jaccard distance between technology name sets:
// seed with the smallest structure hash, then repeatedly add the system
// whose minimum distance to the chosen set is largest. The returned
// order is selection order, most diverse first.
//
// Ties break by structure hash, then system ID, so the result does not
// depend on input order. k <= 0 or k >= len(systems) returns all
// systems sorted by hash.
func Select(systems []*tech.System, k int) ([]*tech.System, error) {
	candidates, err := buildCandidates(systems)
	if err != nil {
		return nil, err
	}

	// Canonical order first, so every later step is input-order free.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hash != candidates[j].hash {
			return candidates[i].hash < candidates[j].hash
		}
		return candidates[i].sys.ID < candidates[j].sys.ID
	})

	if k <= 0 || k >= len(candidates) {
		out := make([]*tech.System, len(candidates))
		for i, c := range candidates {
			out[i] = c.sys
		}
		return out, nil
	}

	chosen := []candidate{candidates[0]}
	remaining := candidates[1:]

	for len(chosen) < k {
		best := -1
		bestDist := -1.0
		for i, c := range remaining {
			d := minDistance(c, chosen)
			if d > bestDist {
				best, bestDist = i, d
			}
			// Equal distance: remaining is already in canonical
			// order, so the first hit stands.
		}
		chosen = append(chosen, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	out := make([]*tech.System, len(chosen))
	for i, c := range chosen {
		out[i] = c.sys
	}
	return out, nil
}

type candidate struct {
	sys   *tech.System
	hash  string
	names map[string]struct{}
}

func buildCandidates(systems []*tech.System) ([]candidate, error) {
	candidates := make([]candidate, 0, len(systems))
	for i, sys := range systems {
		if sys == nil {
			return nil, fmt.Errorf("select: nil system at index %d", i)
		}
		hash, err := sys.StructureHash()
		if err != nil {
			return nil, fmt.Errorf("select: hash system %s: %w", sys.ID, err)
		}
		names := make(map[string]struct{})
		for _, t := range sys.Technologies() {
			names[t.Name] = struct{}{}
		}
		candidates = append(candidates, candidate{sys: sys, hash: hash, names: names})
	}
	return candidates, nil
}

func minDistance(c candidate, chosen []candidate) float64 {
	min := 1.0
	for _, ch := range chosen {
		if d := jaccardDistance(c.names, ch.names); d < min {
			min = d
		}
	}
	return min
}

// jaccardDistance is 1 - |intersection|/|union|. Two empty sets are
// identical.
func jaccardDistance(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for name := range a {
		if _, ok := b[name]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return 1 - float64(inter)/float64(union)
}
