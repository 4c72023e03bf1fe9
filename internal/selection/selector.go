package selection

import (
	"math/rand"
	"sort"

	"github.com/dinehub/leaderboard-backend/internal/models"
)

// DefaultFloorWeight is the lottery weight given to zero-point participants
// so they are not structurally excluded. Overridable via system config.
const DefaultFloorWeight = 1.0

// Pick is one selected winner slot
type Pick struct {
	Participant *models.Participant
	Rank        int
	Guaranteed  bool
}

// Options configures a selection run
type Options struct {
	NumberOfWinners     int
	GuaranteeFirstPlace bool
	// FloorWeight substitutes for non-positive point totals in the lottery.
	// Zero means DefaultFloorWeight.
	FloorWeight float64
}

// SelectWinners picks at most NumberOfWinners from a ranked participant list.
// When GuaranteeFirstPlace is set, the top-ranked participant takes rank 1
// outright; the remaining slots are a weighted lottery without replacement,
// selection probability proportional to points. Ranks of lottery winners
// follow draw order, not point order.
//
// The caller owns the rand source; pass a seeded one for reproducible draws.
func SelectWinners(ranked []*models.Participant, opts Options, rng *rand.Rand) []Pick {
	if len(ranked) == 0 || opts.NumberOfWinners < 1 {
		return []Pick{}
	}

	floor := opts.FloorWeight
	if floor <= 0 {
		floor = DefaultFloorWeight
	}

	picks := make([]Pick, 0, opts.NumberOfWinners)
	pool := ranked
	nextRank := 1

	if opts.GuaranteeFirstPlace {
		picks = append(picks, Pick{Participant: pool[0], Rank: 1, Guaranteed: true})
		pool = pool[1:]
		nextRank = 2
	}

	slotsLeft := opts.NumberOfWinners - len(picks)
	if slotsLeft <= 0 || len(pool) == 0 {
		return picks
	}
	if slotsLeft > len(pool) {
		slotsLeft = len(pool)
	}

	for _, p := range drawWithoutReplacement(pool, slotsLeft, floor, rng) {
		picks = append(picks, Pick{Participant: p, Rank: nextRank})
		nextRank++
	}
	return picks
}

type keyedCandidate struct {
	participant *models.Participant
	key         float64
}

// drawWithoutReplacement assigns each candidate an exponential key scaled by
// the inverse of its weight and keeps the n smallest. Equivalent to repeated
// weighted draws with winners removed, in one pass.
func drawWithoutReplacement(pool []*models.Participant, n int, floor float64, rng *rand.Rand) []*models.Participant {
	keyed := make([]keyedCandidate, 0, len(pool))
	for _, p := range pool {
		weight := float64(p.TotalPoints)
		if weight <= 0 {
			weight = floor
		}
		keyed = append(keyed, keyedCandidate{participant: p, key: rng.ExpFloat64() / weight})
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].key < keyed[j].key })

	drawn := make([]*models.Participant, 0, n)
	for i := 0; i < n && i < len(keyed); i++ {
		drawn = append(drawn, keyed[i].participant)
	}
	return drawn
}
