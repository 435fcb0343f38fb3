package search

import (
	"context"
	"strings"
	"sync"
	"time"

	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// Finder runs one public search request. *api.Client implements it.
type Finder interface {
	SearchPublic(ctx context.Context, query string) ([]model.PublicSlot, error)
}

// Result is delivered once per accepted query.
type Result struct {
	Term  string
	Slots []model.PublicSlot
	Err   error
}

// Searcher debounces queries and drops responses that arrive after a newer
// query was issued, so results shown always match the latest term.
type Searcher struct {
	finder   Finder
	deb      *Debouncer
	timeout  time.Duration
	onResult func(Result)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	pending sync.WaitGroup
}

// NewSearcher creates a Searcher. onResult runs on a background goroutine
// while an internal lock is held; it must not call back into the Searcher.
func NewSearcher(f Finder, delay, timeout time.Duration, onResult func(Result)) *Searcher {
	return &Searcher{
		finder:   f,
		deb:      NewDebouncer(delay),
		timeout:  timeout,
		onResult: onResult,
	}
}

// Query records a new search term. An empty term clears the results
// immediately without calling the API.
func (s *Searcher) Query(term string) {
	term = strings.TrimSpace(term)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.cancelLocked()
	if term == "" {
		s.deb.Stop()
		s.onResult(Result{Slots: []model.PublicSlot{}})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.deb.Do(func() { s.fire(term) })
}

func (s *Searcher) fire(term string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.cancelLocked()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancel = cancel
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()
		defer cancel()

		slots, err := s.finder.SearchPublic(ctx, term)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			appLog.Debug("search: dropping stale response", "term", term)
			return
		}
		if slots == nil {
			slots = []model.PublicSlot{}
		}
		s.onResult(Result{Term: term, Slots: slots, Err: err})
	}()
}

// Close cancels pending work and waits for in-flight requests to finish.
func (s *Searcher) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.cancelLocked()
	s.mu.Unlock()

	s.deb.Stop()
	s.pending.Wait()
}

func (s *Searcher) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
