package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	for _, spec := range []string{"", "every minute", "61 * * * *", "* * * * * *"} {
		if _, err := New(spec, time.UTC, noop); err == nil {
			t.Fatalf("expected error for %q", spec)
		}
	}
	if _, err := New("*/5 * * * *", time.UTC, nil); err == nil {
		t.Fatalf("expected error for nil job")
	}
}

func TestRunOnce_RecordsStatus(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fail := true
	s, err := New("*/30 * * * *", time.UTC, func(context.Context) error {
		if fail {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	st := s.Status()
	if !errors.Is(st.Err, boom) || st.LastRun.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}

	fail = false
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if st := s.Status(); st.Err != nil {
		t.Fatalf("error should clear after a good run, got %v", st.Err)
	}
}

func TestRunOnce_NoOverlap(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	s, err := New("*/30 * * * *", time.UTC, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-started

	if err := s.RunOnce(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	t.Parallel()

	s, err := New("0 3 * * *", time.UTC, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	next := s.Status().Next
	if next.IsZero() || next.Hour() != 3 || next.Minute() != 0 {
		t.Fatalf("unexpected next tick %v", next)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
