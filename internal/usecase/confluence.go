package usecase

import (
	"fmt"
	"sort"

	"github.com/vitos/fib_confluence/internal/domain"
)

// CalculateConfluenceZones groups sorted levels into zones by walking the
// price-ascending list and merging each level whose gap to its immediate
// predecessor is within the predecessor-anchored tolerance. Anchoring to
// the previous level (not the zone's first member) lets tolerance drift
// across a chain of closely spaced levels; that chaining is intentional.
// Singletons are not zones.
func CalculateConfluenceZones(levels []domain.StrategyLevel, tolerancePercent float64) []domain.ConfluenceZone {
	if len(levels) < 2 {
		return nil
	}
	if tolerancePercent < 0 {
		// Negative tolerance has no meaning; zero keeps the degenerate
		// exact-duplicates-only merging of the <= comparison.
		tolerancePercent = 0
	}

	sorted := append([]domain.StrategyLevel(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	var zones []domain.ConfluenceZone
	current := []domain.StrategyLevel{sorted[0]}

	closeZone := func() {
		if len(current) >= 2 {
			zones = append(zones, buildZone(len(zones), current))
		}
	}

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		tolerance := prev.Price * tolerancePercent / 100
		if sorted[i].Price-prev.Price <= tolerance {
			current = append(current, sorted[i])
			continue
		}
		closeZone()
		current = []domain.StrategyLevel{sorted[i]}
	}
	closeZone()

	return zones
}

func buildZone(index int, members []domain.StrategyLevel) domain.ConfluenceZone {
	low := members[0].Price
	high := members[len(members)-1].Price

	longs, shorts := 0, 0
	for _, l := range members {
		switch l.Direction {
		case domain.DirectionLong:
			longs++
		case domain.DirectionShort:
			shorts++
		}
	}
	direction := domain.DirectionNeutral
	if longs > shorts {
		direction = domain.DirectionLong
	} else if shorts > longs {
		direction = domain.DirectionShort
	}

	strength := len(members) * 20
	if strength > 100 {
		strength = 100
	}

	return domain.ConfluenceZone{
		ID:          fmt.Sprintf("zone-%d", index),
		LowPrice:    low,
		HighPrice:   high,
		CenterPrice: (low + high) / 2,
		LevelCount:  len(members),
		Direction:   direction,
		Strength:    strength,
		Levels:      append([]domain.StrategyLevel(nil), members...),
	}
}

// StrengthLabel maps a 0-100 heat/strength value onto the 5-tier display scale.
func StrengthLabel(strength int) string {
	switch {
	case strength <= 20:
		return "Standard"
	case strength <= 40:
		return "Important"
	case strength <= 60:
		return "Significant"
	case strength <= 80:
		return "Major"
	default:
		return "Critical"
	}
}

// StrengthColor returns the chart color hint matching StrengthLabel.
func StrengthColor(strength int) string {
	switch {
	case strength <= 20:
		return "#9e9e9e"
	case strength <= 40:
		return "#2196f3"
	case strength <= 60:
		return "#4caf50"
	case strength <= 80:
		return "#ff9800"
	default:
		return "#f44336"
	}
}
