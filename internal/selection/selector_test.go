package selection

import (
	"math/rand"
	"testing"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newParticipant(points int) *models.Participant {
	return &models.Participant{
		UserID:          primitive.NewObjectID(),
		TotalPoints:     points,
		FirstActivityAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestSelectWinners_EmptyPool(t *testing.T) {
	picks := SelectWinners(nil, Options{NumberOfWinners: 3}, testRNG())
	if len(picks) != 0 {
		t.Fatalf("expected no picks, got %d", len(picks))
	}
}

func TestSelectWinners_GuaranteedTopSlot(t *testing.T) {
	top := newParticipant(100)
	ranked := Rank([]*models.Participant{newParticipant(50), top, newParticipant(10)})

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		picks := SelectWinners(ranked, Options{NumberOfWinners: 2, GuaranteeFirstPlace: true}, rng)
		if len(picks) != 2 {
			t.Fatalf("seed %d: expected 2 picks, got %d", seed, len(picks))
		}
		if picks[0].Participant != top || picks[0].Rank != 1 || !picks[0].Guaranteed {
			t.Fatalf("seed %d: top participant did not take the guaranteed slot: %+v", seed, picks[0])
		}
		if picks[1].Guaranteed {
			t.Fatalf("seed %d: lottery pick flagged as guaranteed", seed)
		}
	}
}

func TestSelectWinners_FewerParticipantsThanSlots(t *testing.T) {
	ranked := Rank([]*models.Participant{newParticipant(5), newParticipant(3)})
	picks := SelectWinners(ranked, Options{NumberOfWinners: 5, GuaranteeFirstPlace: true}, testRNG())

	if len(picks) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(picks))
	}
	if picks[0].Rank != 1 || picks[1].Rank != 2 {
		t.Fatalf("expected contiguous ranks 1,2; got %d,%d", picks[0].Rank, picks[1].Rank)
	}
}

func TestSelectWinners_RanksContiguousNoDuplicates(t *testing.T) {
	var pool []*models.Participant
	for i := 0; i < 10; i++ {
		pool = append(pool, newParticipant(i*7))
	}
	ranked := Rank(pool)
	picks := SelectWinners(ranked, Options{NumberOfWinners: 5, GuaranteeFirstPlace: false}, testRNG())

	if len(picks) != 5 {
		t.Fatalf("expected 5 winners, got %d", len(picks))
	}
	seenRank := map[int]bool{}
	seenUser := map[primitive.ObjectID]bool{}
	for _, p := range picks {
		if p.Rank < 1 || p.Rank > 5 {
			t.Fatalf("rank %d out of range", p.Rank)
		}
		if seenRank[p.Rank] {
			t.Fatalf("duplicate rank %d", p.Rank)
		}
		if seenUser[p.Participant.UserID] {
			t.Fatalf("user %s selected twice", p.Participant.UserID.Hex())
		}
		seenRank[p.Rank] = true
		seenUser[p.Participant.UserID] = true
	}
}

func TestSelectWinners_ZeroPointsStillEligible(t *testing.T) {
	ranked := Rank([]*models.Participant{newParticipant(0), newParticipant(0)})
	picks := SelectWinners(ranked, Options{NumberOfWinners: 1}, testRNG())
	if len(picks) != 1 {
		t.Fatalf("expected a winner from a zero-point pool, got %d picks", len(picks))
	}
}

// Reproduces the 100/50/10 scenario: the guarantee takes the 100-point
// participant, and the second slot favours (but does not lock in) the
// 50-point participant over the 10-point one.
func TestSelectWinners_WeightedLotteryDistribution(t *testing.T) {
	top := newParticipant(100)
	mid := newParticipant(50)
	low := newParticipant(10)
	ranked := Rank([]*models.Participant{top, mid, low})

	rng := rand.New(rand.NewSource(7))
	const trials = 5000
	var midWins, lowWins int
	for i := 0; i < trials; i++ {
		picks := SelectWinners(ranked, Options{NumberOfWinners: 2, GuaranteeFirstPlace: true}, rng)
		if len(picks) != 2 {
			t.Fatalf("trial %d: expected 2 picks, got %d", i, len(picks))
		}
		if picks[0].Participant != top {
			t.Fatalf("trial %d: guaranteed slot missed the top participant", i)
		}
		switch picks[1].Participant {
		case mid:
			midWins++
		case low:
			lowWins++
		default:
			t.Fatalf("trial %d: unexpected lottery winner", i)
		}
	}

	if lowWins == 0 {
		t.Fatalf("10-point participant never won across %d trials; floor weight broken", trials)
	}
	if midWins <= lowWins {
		t.Fatalf("50-point participant should win more often: mid=%d low=%d", midWins, lowWins)
	}
}
