package domain

// ConfluenceZone is a cluster of nearby levels. Zones are derived data,
// recomputed on every call; the aggregated level list stays authoritative.
type ConfluenceZone struct {
	ID          string          `json:"id"`
	LowPrice    float64         `json:"low_price"`
	HighPrice   float64         `json:"high_price"`
	CenterPrice float64         `json:"center_price"`
	LevelCount  int             `json:"level_count"`
	Direction   Direction       `json:"direction"`
	Strength    int             `json:"strength"`
	Levels      []StrategyLevel `json:"levels"`
}
