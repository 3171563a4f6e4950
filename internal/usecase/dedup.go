package usecase

import (
	"math"
	"sort"

	"github.com/vitos/fib_confluence/internal/domain"
)

// DeduplicateLevels removes near-duplicate levels, keeping the highest-heat
// representative of each price neighborhood. Greedy and heat-first: a
// lower-heat level near an already-kept one is dropped even if it would
// have clustered with other levels of its own. Do not replace this with a
// global clustering pass; downstream consumers rely on the strongest-
// representative behavior.
func DeduplicateLevels(levels []domain.StrategyLevel, tolerancePercent float64) []domain.StrategyLevel {
	if len(levels) == 0 {
		return nil
	}
	if tolerancePercent < 0 {
		// Same clamp as zone clustering: a negative band would never match,
		// leaving exact duplicates in the output.
		tolerancePercent = 0
	}

	sorted := append([]domain.StrategyLevel(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Heat != sorted[j].Heat {
			return sorted[i].Heat > sorted[j].Heat
		}
		return sorted[i].Price < sorted[j].Price
	})

	kept := make([]domain.StrategyLevel, 0, len(sorted))
	for _, candidate := range sorted {
		band := candidate.Price * tolerancePercent / 100
		dup := false
		for _, k := range kept {
			if math.Abs(k.Price-candidate.Price) <= band {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, candidate)
		}
	}
	return kept
}
