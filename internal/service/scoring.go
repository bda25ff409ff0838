package service

import "fmt"

// Default scoring weights for the placement search. Candidates start at zero;
// bonuses and penalties accumulate and the highest total wins, with ties
// broken by earliest day then earliest period.
const (
	// weightPreferredSlot rewards a candidate listed in the load's
	// preferred_time_slots, per matching period of the block.
	weightPreferredSlot = 10.0

	// weightAdjacency rewards placing the block next to an existing session
	// of the same subject and class on the same day.
	weightAdjacency = 6.0

	// weightDistribution penalises each hour already scheduled on the
	// candidate day beyond the load's ideal per-day target.
	weightDistribution = 4.0

	// weightGap penalises placements that leave the class with an isolated
	// period surrounded by free slots on that day.
	weightGap = 3.0
)

// Quality-score penalties reported in generation statistics (0-100 scale).
const (
	scoreUnplacedPenalty = 15.0
	scoreGapPenalty      = 2.0
	scoreRepairPenalty   = 1.0
)

// ScoringWeights holds the soft-preference weights one placement run scores
// candidates with. Requests may override individual weights; everything not
// overridden keeps its default.
type ScoringWeights struct {
	PreferredSlot float64
	Adjacency     float64
	Distribution  float64
	Gap           float64
}

// DefaultScoringWeights returns the documented default weight set.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		PreferredSlot: weightPreferredSlot,
		Adjacency:     weightAdjacency,
		Distribution:  weightDistribution,
		Gap:           weightGap,
	}
}

// ResolveScoringWeights merges request overrides, keyed by weight name, over
// the defaults. An unknown key is an input error so callers learn about a
// typo before the run starts. Returns nil when no overrides were given.
func ResolveScoringWeights(overrides map[string]float64) (*ScoringWeights, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	weights := DefaultScoringWeights()
	for key, value := range overrides {
		switch key {
		case "preferredSlot":
			weights.PreferredSlot = value
		case "adjacency":
			weights.Adjacency = value
		case "distribution":
			weights.Distribution = value
		case "gap":
			weights.Gap = value
		default:
			return nil, fmt.Errorf("unknown preference weight %q", key)
		}
	}
	return &weights, nil
}
