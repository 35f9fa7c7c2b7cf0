package match

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const storeShards = 32

// Store is the keyed collection of active rooms. Rooms are sharded by id so
// concurrent events against unrelated matches never contend; a single room's
// read-modify-write cycles serialize on that room's own mutex.
type Store struct {
	shards [storeShards]*storeShard

	tolerance float64
}

type storeShard struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewStore builds an empty store. tolerance is the draw-time window handed
// to winner computation.
func NewStore(tolerance float64) *Store {
	s := &Store{tolerance: tolerance}
	if s.tolerance < 0 {
		s.tolerance = DefaultDrawTolerance
	}
	for i := range s.shards {
		s.shards[i] = &storeShard{rooms: make(map[string]*Room)}
	}
	return s
}

// GetOrCreate returns the room for the token, creating it atomically on
// first access. Concurrent first joins from both participants observe the
// same room object.
func (s *Store) GetOrCreate(roomID string) (*Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrInvalidArgs
	}
	sh := s.shard(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if r, ok := sh.rooms[roomID]; ok {
		return r, nil
	}
	r := newRoom(roomID, time.Now())
	sh.rooms[roomID] = r
	return r, nil
}

func (s *Store) get(roomID string) *Room {
	sh := s.shard(roomID)
	sh.mu.Lock()
	r := sh.rooms[roomID]
	sh.mu.Unlock()
	return r
}

// Join registers a player in the room, creating the room lazily, and returns
// the room's participant count after the join.
func (s *Store) Join(roomID, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidArgs
	}
	r, err := s.GetOrCreate(roomID)
	if err != nil {
		return 0, err
	}
	return r.join(userID, time.Now())
}

// RecordProgress writes the player's live fields and returns the other
// participants the update should be relayed to.
func (s *Store) RecordProgress(roomID, userID string, p Progress) ([]string, error) {
	r := s.get(strings.TrimSpace(roomID))
	if r == nil {
		return nil, ErrUnknownRoom
	}
	return r.recordProgress(strings.TrimSpace(userID), p, time.Now())
}

// RecordCompletion freezes the player's terminal state. Idempotent for an
// already-finished player.
func (s *Store) RecordCompletion(roomID, userID string, finalScore int, finalTime float64) error {
	r := s.get(strings.TrimSpace(roomID))
	if r == nil {
		return ErrUnknownRoom
	}
	return r.recordCompletion(strings.TrimSpace(userID), finalScore, finalTime, time.Now())
}

// TryFinalize returns the match result exactly once per room, on the call
// that observes all participants finished.
func (s *Store) TryFinalize(roomID string) (*Result, bool) {
	r := s.get(strings.TrimSpace(roomID))
	if r == nil {
		return nil, false
	}
	return r.tryFinalize(s.tolerance, time.Now())
}

// Participants lists the user ids currently joined to the room.
func (s *Store) Participants(roomID string) []string {
	r := s.get(strings.TrimSpace(roomID))
	if r == nil {
		return nil
	}
	return r.participants()
}

// Opponents lists the room's participants other than userID.
func (s *Store) Opponents(roomID, userID string) []string {
	r := s.get(strings.TrimSpace(roomID))
	if r == nil {
		return nil
	}
	return r.opponents(strings.TrimSpace(userID))
}

// Remove deletes the room. Unknown ids are a no-op.
func (s *Store) Remove(roomID string) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return
	}
	sh := s.shard(roomID)
	sh.mu.Lock()
	r := sh.rooms[roomID]
	delete(sh.rooms, roomID)
	sh.mu.Unlock()
	if r != nil {
		r.close()
	}
}

// Sweep reclaims rooms that expired as of now: finalized rooms past their
// grace window and rooms idle beyond the TTL. Returns the removed ids.
func (s *Store) Sweep(now time.Time, idleTTL, grace time.Duration) []string {
	var removed []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		var victims []*Room
		for id, r := range sh.rooms {
			if r.expired(now, idleTTL, grace) {
				victims = append(victims, r)
				delete(sh.rooms, id)
			}
		}
		sh.mu.Unlock()
		for _, r := range victims {
			r.close()
			removed = append(removed, r.ID())
		}
	}
	return removed
}

// Len returns the number of active rooms.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.rooms)
		sh.mu.Unlock()
	}
	return total
}

func (s *Store) shard(roomID string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return s.shards[h.Sum32()%storeShards]
}
