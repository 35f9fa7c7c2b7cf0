package record

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/quizarena/quiz-arena/internal/match"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(roomID string, finalizedAt time.Time) *match.Result {
	return &match.Result{
		RoomID:   roomID,
		WinnerID: "p1",
		Ranking:  []string{"p1", "p2"},
		Players: map[string]*match.PlayerState{
			"p1": {UserID: "p1", Score: 30, CorrectCount: 3, ElapsedTime: 40, Finished: true},
			"p2": {UserID: "p2", Score: 30, CorrectCount: 2, ElapsedTime: 35, Finished: true},
		},
		FinalizedAt: finalizedAt,
	}
}

func TestSaveAndLoadResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleResult("r1", time.Now().UTC().Truncate(time.Second))
	if err := s.SaveResult(ctx, want); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.ResultByRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("ResultByRoom: %v", err)
	}
	if got == nil {
		t.Fatalf("result missing")
	}
	if got.WinnerID != "p1" || got.Draw || len(got.Players) != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Players["p2"].ElapsedTime != 35 {
		t.Fatalf("player state lost in round trip: %+v", got.Players["p2"])
	}
}

func TestResultByRoomAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ResultByRoom(context.Background(), "nope")
	if err != nil {
		t.Fatalf("ResultByRoom: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent room, got %+v", got)
	}
}

func TestResultsByUserNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, roomID := range []string{"r-old", "r-mid", "r-new"} {
		if err := s.SaveResult(ctx, sampleResult(roomID, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveResult %s: %v", roomID, err)
		}
	}

	got, err := s.ResultsByUser(ctx, "p2")
	if err != nil {
		t.Fatalf("ResultsByUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].RoomID != "r-new" || got[2].RoomID != "r-old" {
		t.Fatalf("wrong order: %s, %s, %s", got[0].RoomID, got[1].RoomID, got[2].RoomID)
	}
}

func TestResultsByUserSkipsExpiredBlobs(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("r1", time.Now())); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SaveResult(ctx, sampleResult("r2", time.Now())); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	mr.Del("match:result:r1")

	got, err := s.ResultsByUser(ctx, "p1")
	if err != nil {
		t.Fatalf("ResultsByUser: %v", err)
	}
	if len(got) != 1 || got[0].RoomID != "r2" {
		t.Fatalf("expected only r2, got %+v", got)
	}
}

func TestResultsByUserBlankID(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ResultsByUser(context.Background(), "  ")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for blank user id: %v, %v", got, err)
	}
}
