// Package rating computes and caches ELO ratings for synthetic players.
package rating

import "math"

const (
	// KFactor bounds how far one result can move a rating.
	KFactor = 32
	// DefaultRating is assigned to new players and used when a fetch fails.
	DefaultRating = 1000
)

// Update returns the post-match ratings for the winner and loser using the
// standard logistic expected-score model. The change is zero-sum: the winner
// gains exactly what the loser gives up.
func Update(winnerRating, loserRating int) (newWinner, newLoser int) {
	expected := expectedScore(float64(winnerRating), float64(loserRating))
	delta := int(math.Round(KFactor * (1 - expected)))
	return winnerRating + delta, loserRating - delta
}

func expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}
