package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baristabuddy/baristabuddy/internal/history"
)

func TestNoop_LogDiscardsWithoutError(t *testing.T) {
	t.Parallel()

	store := history.Noop{}
	rec := history.Record{
		SessionID: "console-1",
		Query:     "how do i make expresso",
		Outcome:   "knowledge",
		Answer:    "Use 18g of finely ground coffee.",
		Latency:   12 * time.Millisecond,
		Timestamp: time.Now(),
	}
	if err := store.Log(context.Background(), rec); err != nil {
		t.Fatalf("Log() error = %v, want nil", err)
	}
}

func TestNoop_RecentReportsNotConfigured(t *testing.T) {
	t.Parallel()

	store := history.Noop{}
	_, err := store.Recent(context.Background(), "console-1", 10)
	if !errors.Is(err, history.ErrNotConfigured) {
		t.Fatalf("Recent() error = %v, want ErrNotConfigured", err)
	}
}

func TestSessionID_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := history.WithSession(context.Background(), "console-42")
	if got := history.SessionID(ctx); got != "console-42" {
		t.Errorf("SessionID() = %q, want %q", got, "console-42")
	}
}

func TestSessionID_MissingIsEmpty(t *testing.T) {
	t.Parallel()

	if got := history.SessionID(context.Background()); got != "" {
		t.Errorf("SessionID() = %q, want empty string", got)
	}
}
