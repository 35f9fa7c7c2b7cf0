package match

import (
	"sync"
	"time"
)

// Room holds the live state of one head-to-head match. All mutation goes
// through the room's own mutex; rooms never share locks with each other.
type Room struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	state       State
	players     map[string]*PlayerState
	lastActive  time.Time
	finalizedAt time.Time
	result      *Result
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		id:         id,
		createdAt:  now,
		state:      StateForming,
		players:    make(map[string]*PlayerState),
		lastActive: now,
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// join registers a player. Already-joined players are absorbed idempotently
// and a third identity is rejected; existing player state is never
// overwritten by a join.
func (r *Room) join(userID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return 0, ErrRoomClosed
	}
	if _, ok := r.players[userID]; ok {
		r.lastActive = now
		return len(r.players), nil
	}
	if len(r.players) >= ExpectedPlayers {
		return len(r.players), ErrRoomFull
	}

	r.players[userID] = &PlayerState{UserID: userID, JoinedAt: now, UpdatedAt: now}
	if len(r.players) == ExpectedPlayers && r.state == StateForming {
		r.state = StateReady
	}
	r.lastActive = now
	return len(r.players), nil
}

// recordProgress overwrites the calling player's live fields. Only the
// owning player ever writes these, so last-writer-wins per field is safe.
// Progress after finalization is absorbed without effect.
func (r *Room) recordProgress(userID string, p Progress, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return nil, ErrRoomClosed
	}
	ps, ok := r.players[userID]
	if !ok {
		return nil, ErrNotParticipant
	}
	if r.state == StateFinalizing || ps.Finished {
		return nil, nil
	}

	ps.Score = p.Score
	ps.QuestionIndex = p.QuestionIndex
	ps.CorrectCount = p.CorrectCount
	ps.ElapsedTime = p.ElapsedTime
	ps.UpdatedAt = now
	if r.state == StateReady {
		r.state = StateInProgress
	}
	r.lastActive = now
	return r.opponentsLocked(userID), nil
}

// recordCompletion marks a player finished and freezes their terminal state.
// Duplicate completions for an already-finished player are no-ops.
func (r *Room) recordCompletion(userID string, finalScore int, finalTime float64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return ErrRoomClosed
	}
	ps, ok := r.players[userID]
	if !ok {
		return ErrNotParticipant
	}
	if ps.Finished {
		return nil
	}

	ps.Finished = true
	ps.Score = finalScore
	ps.ElapsedTime = finalTime
	ps.UpdatedAt = now
	if r.state == StateReady {
		r.state = StateInProgress
	}
	r.lastActive = now
	return nil
}

// tryFinalize returns the match result exactly on the transition where all
// expected participants have become finished, and never again afterwards.
func (r *Room) tryFinalize(tolerance float64, now time.Time) (*Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFinalizing || r.state == StateClosed {
		return nil, false
	}
	if len(r.players) < ExpectedPlayers {
		return nil, false
	}
	for _, ps := range r.players {
		if !ps.Finished {
			return nil, false
		}
	}

	frozen := make(map[string]*PlayerState, len(r.players))
	for id, ps := range r.players {
		cp := *ps
		frozen[id] = &cp
	}
	r.result = computeResult(r.id, frozen, tolerance, now)
	r.state = StateFinalizing
	r.finalizedAt = now
	r.lastActive = now
	return r.result, true
}

func (r *Room) opponents(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opponentsLocked(userID)
}

func (r *Room) opponentsLocked(userID string) []string {
	var out []string
	for id := range r.players {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

func (r *Room) participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.players))
	for id := range r.players {
		out = append(out, id)
	}
	return out
}

// expired reports whether the sweep should reclaim this room: finalized
// rooms past the grace window, and any room idle beyond the TTL.
func (r *Room) expired(now time.Time, idleTTL, grace time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return true
	}
	if r.state == StateFinalizing && now.Sub(r.finalizedAt) > grace {
		return true
	}
	return now.Sub(r.lastActive) > idleTTL
}

func (r *Room) close() {
	r.mu.Lock()
	r.state = StateClosed
	r.mu.Unlock()
}
