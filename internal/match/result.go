package match

import (
	"math"
	"sort"
	"time"
)

// DefaultDrawTolerance is the elapsed-time window, in time units, inside
// which two otherwise-equal players are declared a draw. Timer precision on
// clients makes razor-thin time differences meaningless as a decider.
const DefaultDrawTolerance = 1.0

// computeResult derives the match outcome from frozen player states. It is a
// total, deterministic and commutative function: the order completion events
// arrived in has no effect on the outcome.
//
// Priority order: correct answers desc, score desc, elapsed time asc.
// A draw requires equality on correct answers and score, and an elapsed-time
// difference within tolerance.
func computeResult(roomID string, players map[string]*PlayerState, tolerance float64, now time.Time) *Result {
	ranking := make([]string, 0, len(players))
	for id := range players {
		ranking = append(ranking, id)
	}
	sort.Slice(ranking, func(i, j int) bool {
		a, b := players[ranking[i]], players[ranking[j]]
		if a.CorrectCount != b.CorrectCount {
			return a.CorrectCount > b.CorrectCount
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ElapsedTime != b.ElapsedTime {
			return a.ElapsedTime < b.ElapsedTime
		}
		return ranking[i] < ranking[j]
	})

	res := &Result{
		RoomID:      roomID,
		Ranking:     ranking,
		Players:     players,
		FinalizedAt: now,
	}

	if len(ranking) < 2 {
		if len(ranking) == 1 {
			res.WinnerID = ranking[0]
		}
		return res
	}

	first, second := players[ranking[0]], players[ranking[1]]
	if first.CorrectCount == second.CorrectCount && first.Score == second.Score &&
		math.Abs(first.ElapsedTime-second.ElapsedTime) <= tolerance {
		res.Draw = true
		return res
	}
	res.WinnerID = first.UserID
	return res
}
