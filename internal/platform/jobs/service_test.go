package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingSink struct {
	mu    sync.Mutex
	users []string
}

func (s *recordingSink) Create(_ context.Context, userID, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return nil
}

func TestNotifierDeliversQueuedWrites(t *testing.T) {
	runner := New(8)
	sink := &recordingSink{}
	notifier := NewNotifier(runner, sink)

	for _, user := range []string{"user-ama", "user-kofi"} {
		if err := notifier.Create(context.Background(), user, "section_submitted", "t", "b"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx, 2)
	cancel()
	runner.Wait()

	if len(sink.users) != 2 {
		t.Fatalf("expected 2 delivered notifications, got %v", sink.users)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	runner := New(1)
	noop := func(context.Context) error { return nil }
	if !runner.Enqueue("a", noop) {
		t.Fatal("expected first job to be queued")
	}
	if runner.Enqueue("b", noop) {
		t.Fatal("expected second job to be dropped")
	}
	if runner.Dropped() != 1 {
		t.Fatalf("expected 1 dropped job, got %d", runner.Dropped())
	}
}

func TestFailuresAndPanicsAreCounted(t *testing.T) {
	runner := New(4)
	runner.Enqueue("fails", func(context.Context) error { return errors.New("boom") })
	runner.Enqueue("panics", func(context.Context) error { panic("boom") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner.Start(ctx, 1)
	runner.Wait()

	if runner.Failed() != 2 {
		t.Fatalf("expected 2 failed jobs, got %d", runner.Failed())
	}
}
