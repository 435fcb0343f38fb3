package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "agendaaberta/internal/log"
)

// Event is the subset of a VEVENT this package writes.
type Event struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// Feed is a parsed calendar.
type Feed struct {
	Name   string
	Events []Event
}

// Parse reads an ICS payload. Events without UID or with unreadable
// DTSTART/DTEND are logged and skipped. Events are sorted by start.
func Parse(body []byte) (Feed, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Feed{}, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return Feed{}, fmt.Errorf("ics: parse: %w", err)
	}

	var feed Feed
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			feed.Name = p.Value
		}
	}

	feed.Events = make([]Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		feed.Events = append(feed.Events, ev)
	}

	sort.SliceStable(feed.Events, func(i, j int) bool {
		return feed.Events[i].Start.Before(feed.Events[j].Start)
	})
	return feed, nil
}

func parseVEvent(ve *ical.VEvent) (Event, error) {
	var out Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("event %s: DTEND: %w", out.UID, err)
	}
	out.Start = start
	out.End = end
	return out, nil
}
