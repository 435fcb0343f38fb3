package agenda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// ErrStale is returned by Loader.Load when a newer load has already been
// accepted. The returned snapshot is still valid for the caller's own
// reference date but was not installed as the current one.
var ErrStale = errors.New("agenda: stale load discarded")

// RuleSource provides the caller's recurrence rules, typically the REST API.
type RuleSource interface {
	Rules(ctx context.Context) ([]model.RecurrenceRule, error)
}

// Snapshot is one materialization pass.
type Snapshot struct {
	Reference   time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Rules       []model.RecurrenceRule
	Occurrences []model.CalendarOccurrence
	LoadedAt    time.Time
}

// Loader fetches rules and materializes them for a reference date. Loads
// are numbered when issued; a load that completes after a newer one has
// been accepted is reported as ErrStale and never replaces Current.
type Loader struct {
	src RuleSource
	loc *time.Location
	now func() time.Time

	mu       sync.Mutex
	issued   uint64
	accepted uint64
	current  *Snapshot
}

// NewLoader creates a Loader. If loc is nil, time.Local is used.
func NewLoader(src RuleSource, loc *time.Location) *Loader {
	if loc == nil {
		loc = time.Local
	}
	return &Loader{
		src: src,
		loc: loc,
		now: time.Now,
	}
}

// Location is the display timezone occurrences are built in.
func (l *Loader) Location() *time.Location {
	return l.loc
}

// Load fetches rules and materializes them around ref.
func (l *Loader) Load(ctx context.Context, ref time.Time) (*Snapshot, error) {
	l.mu.Lock()
	l.issued++
	gen := l.issued
	l.mu.Unlock()

	rules, err := l.src.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("agenda: fetch rules: %w", err)
	}

	ref = ref.In(l.loc)
	start, end := Window(ref)
	snap := &Snapshot{
		Reference:   ref,
		WindowStart: start,
		WindowEnd:   end,
		Rules:       rules,
		Occurrences: Materialize(rules, ref),
		LoadedAt:    l.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen <= l.accepted {
		appLog.Debug("agenda: discarding stale load",
			"generation", gen,
			"accepted", l.accepted,
			"reference", ref.Format("2006-01"),
		)
		return snap, ErrStale
	}
	l.accepted = gen
	l.current = snap

	appLog.Info("agenda loaded",
		"reference", ref.Format("2006-01"),
		"rules", len(rules),
		"occurrences", len(snap.Occurrences),
	)
	return snap, nil
}

// Current returns the most recently accepted snapshot, or nil.
func (l *Loader) Current() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
