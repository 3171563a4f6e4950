package usecase

import (
	"math"

	"github.com/vitos/fib_confluence/internal/domain"
)

// DefaultTolerancePercent is the confluence band used when the caller does
// not override it.
const DefaultTolerancePercent = 0.2

// CalculateHeat counts how many other levels in the full set fall within
// the subject level's tolerance band. The band is anchored to the subject's
// own price, so heat is not strictly symmetric between levels with very
// different prices.
func CalculateHeat(level domain.StrategyLevel, all []domain.StrategyLevel, tolerancePercent float64) int {
	band := level.Price * tolerancePercent / 100
	heat := 0
	for _, other := range all {
		if other.ID == level.ID {
			continue
		}
		if math.Abs(other.Price-level.Price) <= band {
			heat++
		}
	}
	return heat
}

// ApplyHeat recomputes every level's heat against the complete set. It must
// run only after all timeframes have settled; partial sets would drift as
// results trickle in.
func ApplyHeat(levels []domain.StrategyLevel, tolerancePercent float64) {
	for i := range levels {
		levels[i].Heat = CalculateHeat(levels[i], levels, tolerancePercent)
	}
}
