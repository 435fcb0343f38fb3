// Package ics renders materialized office-hours occurrences as an
// iCalendar feed and reads such feeds back.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// ProductID identifies the generator in PRODID.
const ProductID = "-//agendaaberta//office hours//PT"

// uidNamespace scopes the name-based UUIDs derived from instance keys.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://agendaaberta/occurrence"))

// ExportOptions controls calendar level properties.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Timezone is written as X-WR-TIMEZONE when set.
	Timezone string
	// Stamp is the DTSTAMP of every event. Zero means time.Now.
	Stamp time.Time
}

// UID returns the stable event UID for an occurrence. The same rule and
// start always map to the same UID, so re-exports update events in place.
func UID(occ model.CalendarOccurrence) string {
	return uuid.NewSHA1(uidNamespace, []byte(occ.InstanceKey)).String() + "@agendaaberta"
}

// Export renders occurrences as a VCALENDAR with one VEVENT each, in input
// order. Times are written in UTC.
func Export(occs []model.CalendarOccurrence, opts ExportOptions) ([]byte, error) {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, occ := range occs {
		if occ.InstanceKey == "" {
			return nil, fmt.Errorf("ics: occurrence of rule %d has no instance key", occ.RuleID)
		}
		if !occ.Start.Before(occ.End) {
			return nil, fmt.Errorf("ics: occurrence %s ends before it starts", occ.InstanceKey)
		}

		ev := cal.AddEvent(UID(occ))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.End)
		ev.SetSummary(occ.Title)
		if occ.Location != "" {
			ev.SetLocation(occ.Location)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("ics: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile exports occurrences to path atomically.
func WriteFile(path string, occs []model.CalendarOccurrence, opts ExportOptions) error {
	if path == "" {
		return errors.New("ics: output path is empty")
	}
	payload, err := Export(occs, opts)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ics: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".agenda-*.ics.tmp")
	if err != nil {
		return fmt.Errorf("ics: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("ics: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ics: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("ics: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ics: replace %s: %w", path, err)
	}

	appLog.Info("ics exported", "path", path, "event_count", len(occs))
	return nil
}
