package usecase_test

import (
	"testing"

	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/usecase"
)

func level(id string, price float64, dir domain.Direction) domain.StrategyLevel {
	return domain.StrategyLevel{ID: id, Price: price, Direction: dir, Visible: true}
}

func TestZonesRequireTwoLevels(t *testing.T) {
	if zones := usecase.CalculateConfluenceZones(nil, 0.2); zones != nil {
		t.Errorf("empty input produced zones: %v", zones)
	}
	single := []domain.StrategyLevel{level("a", 100, domain.DirectionLong)}
	if zones := usecase.CalculateConfluenceZones(single, 0.2); len(zones) != 0 {
		t.Errorf("singleton produced %d zones, want 0", len(zones))
	}
}

func TestZoneBoundsAndCenter(t *testing.T) {
	levels := []domain.StrategyLevel{
		level("a", 100.10, domain.DirectionLong),
		level("b", 100.00, domain.DirectionShort),
	}
	zones := usecase.CalculateConfluenceZones(levels, 0.2)
	if len(zones) != 1 {
		t.Fatalf("got %d zones, want 1", len(zones))
	}
	z := zones[0]
	if z.LowPrice != 100.00 || z.HighPrice != 100.10 {
		t.Errorf("bounds = [%v, %v], want [100.00, 100.10]", z.LowPrice, z.HighPrice)
	}
	if z.CenterPrice != 100.05 {
		t.Errorf("center = %v, want 100.05", z.CenterPrice)
	}
	if z.LevelCount != 2 {
		t.Errorf("levelCount = %d, want 2", z.LevelCount)
	}
	if z.ID != "zone-0" {
		t.Errorf("id = %q, want zone-0", z.ID)
	}
}

func TestZoneStrengthScale(t *testing.T) {
	cases := []struct {
		members  int
		strength int
	}{
		{2, 40},
		{3, 60},
		{4, 80},
		{5, 100},
		{6, 100}, // capped
	}
	for _, c := range cases {
		levels := make([]domain.StrategyLevel, c.members)
		for i := range levels {
			// 0.001 apart, comfortably inside a 0.2% band around 100.
			levels[i] = level(string(rune('a'+i)), 100+float64(i)*0.001, domain.DirectionLong)
		}
		zones := usecase.CalculateConfluenceZones(levels, 0.2)
		if len(zones) != 1 {
			t.Fatalf("%d members: got %d zones, want 1", c.members, len(zones))
		}
		if zones[0].Strength != c.strength {
			t.Errorf("%d members: strength = %d, want %d", c.members, zones[0].Strength, c.strength)
		}
	}
}

func TestZoneDirectionMajority(t *testing.T) {
	longMajority := []domain.StrategyLevel{
		level("a", 100.00, domain.DirectionLong),
		level("b", 100.01, domain.DirectionLong),
		level("c", 100.02, domain.DirectionShort),
	}
	zones := usecase.CalculateConfluenceZones(longMajority, 0.2)
	if len(zones) != 1 || zones[0].Direction != domain.DirectionLong {
		t.Fatalf("long majority: got %+v, want one long zone", zones)
	}

	tied := []domain.StrategyLevel{
		level("a", 100.00, domain.DirectionLong),
		level("b", 100.01, domain.DirectionShort),
	}
	zones = usecase.CalculateConfluenceZones(tied, 0.2)
	if len(zones) != 1 || zones[0].Direction != domain.DirectionNeutral {
		t.Fatalf("tie: got %+v, want one neutral zone", zones)
	}
}

func TestZoneToleranceChains(t *testing.T) {
	// Each neighbor gap is within 0.02% of the previous level even though
	// the first and last are not within 0.02% of each other. The walk
	// anchors tolerance to the previous level, so all three chain into one
	// zone.
	levels := []domain.StrategyLevel{
		level("a", 100.0, domain.DirectionLong),
		level("b", 100.015, domain.DirectionLong),
		level("c", 100.019, domain.DirectionLong),
	}
	zones := usecase.CalculateConfluenceZones(levels, 0.02)
	if len(zones) != 1 {
		t.Fatalf("got %d zones, want 1 chained zone", len(zones))
	}
	if zones[0].LevelCount != 3 {
		t.Errorf("levelCount = %d, want 3", zones[0].LevelCount)
	}
}

func TestZoneToleranceBoundary(t *testing.T) {
	// Gap of 0.03 exceeds the 0.02 band from 100.0: no zone.
	apart := []domain.StrategyLevel{
		level("a", 100.0, domain.DirectionLong),
		level("b", 100.03, domain.DirectionLong),
	}
	if zones := usecase.CalculateConfluenceZones(apart, 0.02); len(zones) != 0 {
		t.Errorf("got %d zones, want 0", len(zones))
	}

	// Gap of exactly the band is inclusive.
	exact := []domain.StrategyLevel{
		level("a", 100.0, domain.DirectionLong),
		level("b", 100.02, domain.DirectionLong),
	}
	if zones := usecase.CalculateConfluenceZones(exact, 0.02); len(zones) != 1 {
		t.Errorf("exact-band gap: got %d zones, want 1", len(zones))
	}
}

func TestZoneSequentialIDs(t *testing.T) {
	levels := []domain.StrategyLevel{
		level("a", 100.00, domain.DirectionLong),
		level("b", 100.01, domain.DirectionLong),
		level("c", 200.00, domain.DirectionShort),
		level("d", 200.01, domain.DirectionShort),
	}
	zones := usecase.CalculateConfluenceZones(levels, 0.2)
	if len(zones) != 2 {
		t.Fatalf("got %d zones, want 2", len(zones))
	}
	if zones[0].ID != "zone-0" || zones[1].ID != "zone-1" {
		t.Errorf("ids = %q, %q, want zone-0, zone-1", zones[0].ID, zones[1].ID)
	}
	if zones[0].CenterPrice > zones[1].CenterPrice {
		t.Errorf("zones not in ascending price order")
	}
}

func TestZoneNegativeToleranceClamped(t *testing.T) {
	dup := []domain.StrategyLevel{
		level("a", 100.0, domain.DirectionLong),
		level("b", 100.0, domain.DirectionShort),
	}
	// Clamped to zero: only exact duplicates merge, and they still do.
	if zones := usecase.CalculateConfluenceZones(dup, -1); len(zones) != 1 {
		t.Errorf("exact duplicates at negative tolerance: got %d zones, want 1", len(zones))
	}
}

func TestStrengthLabelsAndColors(t *testing.T) {
	cases := []struct {
		strength int
		label    string
		color    string
	}{
		{0, "Standard", "#9e9e9e"},
		{20, "Standard", "#9e9e9e"},
		{40, "Important", "#2196f3"},
		{60, "Significant", "#4caf50"},
		{80, "Major", "#ff9800"},
		{100, "Critical", "#f44336"},
	}
	for _, c := range cases {
		if got := usecase.StrengthLabel(c.strength); got != c.label {
			t.Errorf("StrengthLabel(%d) = %q, want %q", c.strength, got, c.label)
		}
		if got := usecase.StrengthColor(c.strength); got != c.color {
			t.Errorf("StrengthColor(%d) = %q, want %q", c.strength, got, c.color)
		}
	}
}
