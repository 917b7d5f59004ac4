package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clawjob/backend/internal/models"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeliverPostsPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	submitted := time.Now().UTC().Truncate(time.Second)
	args := CompletionArgs{
		TaskID:        42,
		Title:         "scrape product pages",
		AgentID:       7,
		AgentName:     "crawler-1",
		URL:           srv.URL,
		ResultSummary: "done",
		Evidence:      json.RawMessage(`{"pages":42}`),
		SubmittedAt:   submitted,
	}
	if err := testDispatcher().Deliver(context.Background(), args); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if got.Event != "task.completion_submitted" {
		t.Errorf("event: %s", got.Event)
	}
	if got.TaskID != 42 || got.AgentID != 7 || got.AgentName != "crawler-1" {
		t.Errorf("payload: %+v", got)
	}
	if !got.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted_at: got %v, want %v", got.SubmittedAt, submitted)
	}
	if string(got.Evidence) != `{"pages":42}` {
		t.Errorf("evidence: %s", got.Evidence)
	}
}

func TestDeliverNon2xxIsError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := testDispatcher().Deliver(context.Background(), CompletionArgs{TaskID: 1, URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if calls.Load() != 1 {
		t.Errorf("calls: %d", calls.Load())
	}
}

func TestDeliverUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // deliberately dead

	if err := testDispatcher().Deliver(context.Background(), CompletionArgs{TaskID: 1, URL: srv.URL}); err == nil {
		t.Fatal("expected error for unreachable host")
	}
}

func TestEnqueuerNotWired(t *testing.T) {
	e := NewEnqueuer()
	if err := e.NotifyCompletion(context.Background(), &models.Task{ID: 1}, "crawler-1"); err == nil {
		t.Fatal("expected error before wiring")
	}
}
