package match

import (
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateIsAtomic(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)

	const workers = 16
	rooms := make([]*Room, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.GetOrCreate("r1")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			rooms[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if rooms[i] != rooms[0] {
			t.Fatalf("concurrent first access produced distinct room objects")
		}
	}
	if s.Len() != 1 {
		t.Fatalf("expected exactly one room, got %d", s.Len())
	}
}

func TestProgressForUnjoinedRoomDropped(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)

	if _, err := s.RecordProgress("ghost", "u1", Progress{Score: 10}); err != ErrUnknownRoom {
		t.Fatalf("expected ErrUnknownRoom, got %v", err)
	}
	// the bad event must not have created any state
	if s.Len() != 0 {
		t.Fatalf("progress for unknown room created a room")
	}
}

func TestCompletionForUnknownRoomDropped(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)
	if err := s.RecordCompletion("ghost", "u1", 10, 5); err != ErrUnknownRoom {
		t.Fatalf("expected ErrUnknownRoom, got %v", err)
	}
}

func TestSweepReclaimsIdleRooms(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)
	if _, err := s.Join("r1", "u1"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	removed := s.Sweep(time.Now().Add(30*time.Minute), time.Hour, 30*time.Second)
	if len(removed) != 0 {
		t.Fatalf("sweep removed a live room: %v", removed)
	}

	removed = s.Sweep(time.Now().Add(2*time.Hour), time.Hour, 30*time.Second)
	if len(removed) != 1 || removed[0] != "r1" {
		t.Fatalf("expected r1 swept, got %v", removed)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store after sweep, got %d", s.Len())
	}

	// a swept room behaves as if it never existed
	if _, err := s.RecordProgress("r1", "u1", Progress{}); err != ErrUnknownRoom {
		t.Fatalf("expected ErrUnknownRoom after sweep, got %v", err)
	}
	if n, err := s.Join("r1", "u1"); err != nil || n != 1 {
		t.Fatalf("rejoin after sweep should start fresh: n=%d err=%v", n, err)
	}
}

func TestSweepReclaimsFinalizedRoomAfterGrace(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)
	_, _ = s.Join("r1", "u1")
	_, _ = s.Join("r1", "u2")
	_ = s.RecordCompletion("r1", "u1", 10, 5)
	_ = s.RecordCompletion("r1", "u2", 20, 5)
	if _, ok := s.TryFinalize("r1"); !ok {
		t.Fatalf("expected finalize")
	}

	if removed := s.Sweep(time.Now().Add(10*time.Second), time.Hour, 30*time.Second); len(removed) != 0 {
		t.Fatalf("finalized room swept inside grace window: %v", removed)
	}
	if removed := s.Sweep(time.Now().Add(time.Minute), time.Hour, 30*time.Second); len(removed) != 1 {
		t.Fatalf("finalized room not swept after grace: %v", removed)
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)
	s.Remove("nope")
	s.Remove("")
}

func TestTryFinalizeOncePerRoomUnderConcurrency(t *testing.T) {
	s := NewStore(DefaultDrawTolerance)
	_, _ = s.Join("r1", "u1")
	_, _ = s.Join("r1", "u2")
	_ = s.RecordCompletion("r1", "u1", 10, 5)
	_ = s.RecordCompletion("r1", "u2", 20, 5)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan *Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// duplicate completions racing with finalize must be harmless
			_ = s.RecordCompletion("r1", "u1", 10, 5)
			if res, ok := s.TryFinalize("r1"); ok {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	count := 0
	for range results {
		count++
	}
	if count != 1 {
		t.Fatalf("TryFinalize produced %d results, want exactly 1", count)
	}
}
