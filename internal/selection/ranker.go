package selection

import (
	"sort"

	"github.com/dinehub/leaderboard-backend/internal/models"
)

// Rank orders participants into a strict total order: total points
// descending, then earliest first activity in the cycle window, then userID
// hex ascending. The secondary keys make the order deterministic, which
// matters for who takes the guaranteed slot under a point tie.
func Rank(participants []*models.Participant) []*models.Participant {
	ranked := make([]*models.Participant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.FirstActivityAt.Equal(b.FirstActivityAt) {
			return a.FirstActivityAt.Before(b.FirstActivityAt)
		}
		return a.UserID.Hex() < b.UserID.Hex()
	})
	return ranked
}
