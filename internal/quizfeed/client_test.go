package quizfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetQuiz(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"q7","title":"Capital Cities","question_count":10}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithHeaderProvider(func() map[string]string {
			return map[string]string{"Authorization": "Bearer tok"}
		}),
	)
	q, err := c.GetQuiz(context.Background(), "q7")
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if q.Title != "Capital Cities" || q.QuestionCount != 10 {
		t.Fatalf("unexpected quiz: %+v", q)
	}
	if gotPath != "/quizzes/q7" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestGetQuizEmptyID(t *testing.T) {
	c := NewClient("http://localhost:1")
	if _, err := c.GetQuiz(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank quiz id")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"q1","title":"Flags","question_count":5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	q, err := c.GetQuiz(context.Background(), "q1")
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if q.Title != "Flags" {
		t.Fatalf("unexpected quiz: %+v", q)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such quiz"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	if _, err := c.GetQuiz(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", got)
	}
}

func TestQuizMetaAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"q2","title":"Rivers","question_count":8}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	title, n, err := c.QuizMeta(context.Background(), "q2")
	if err != nil {
		t.Fatalf("QuizMeta: %v", err)
	}
	if title != "Rivers" || n != 8 {
		t.Fatalf("got %q, %d", title, n)
	}
}

func TestContextDeadlineBoundsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithRetry(1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetQuiz(ctx, "q1")
	if err == nil {
		t.Fatalf("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request not bounded by context deadline: %v", elapsed)
	}
}
