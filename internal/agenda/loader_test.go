package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agendaaberta/internal/model"
)

type funcSource func(ctx context.Context) ([]model.RecurrenceRule, error)

func (f funcSource) Rules(ctx context.Context) ([]model.RecurrenceRule, error) {
	return f(ctx)
}

func TestLoader_LoadInstallsSnapshot(t *testing.T) {
	t.Parallel()

	l := NewLoader(funcSource(func(context.Context) ([]model.RecurrenceRule, error) {
		return []model.RecurrenceRule{calcRule()}, nil
	}), brt)

	snap, err := l.Load(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Occurrences) != 13 {
		t.Fatalf("expected 13 occurrences, got %d", len(snap.Occurrences))
	}
	if snap.Reference.Location() != brt {
		t.Fatalf("reference not converted to loader location")
	}
	if l.Current() != snap {
		t.Fatalf("snapshot not installed as current")
	}
}

func TestLoader_FetchErrorKeepsCurrent(t *testing.T) {
	t.Parallel()

	fail := false
	boom := errors.New("boom")
	l := NewLoader(funcSource(func(context.Context) ([]model.RecurrenceRule, error) {
		if fail {
			return nil, boom
		}
		return []model.RecurrenceRule{calcRule()}, nil
	}), brt)

	first, err := l.Load(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, brt))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	fail = true
	if _, err := l.Load(context.Background(), time.Date(2025, 7, 15, 0, 0, 0, 0, brt)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if l.Current() != first {
		t.Fatalf("failed load must not replace current snapshot")
	}
}

func TestLoader_StaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	l := NewLoader(funcSource(func(context.Context) ([]model.RecurrenceRule, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
		}
		return []model.RecurrenceRule{calcRule()}, nil
	}), brt)

	type result struct {
		snap *Snapshot
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		snap, err := l.Load(context.Background(), time.Date(2025, 5, 15, 0, 0, 0, 0, brt))
		slow <- result{snap, err}
	}()
	<-entered

	newer, err := l.Load(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, brt))
	if err != nil {
		t.Fatalf("newer load: %v", err)
	}

	close(release)
	select {
	case res := <-slow:
		if !errors.Is(res.err, ErrStale) {
			t.Fatalf("expected ErrStale, got %v", res.err)
		}
		if res.snap == nil || res.snap.Reference.Month() != time.May {
			t.Fatalf("stale snapshot should still be returned to its caller")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("slow load did not finish")
	}

	if cur := l.Current(); cur != newer || cur.Reference.Month() != time.June {
		t.Fatalf("stale response overwrote the newer snapshot")
	}
}
