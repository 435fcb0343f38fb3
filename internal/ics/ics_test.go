package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agendaaberta/internal/agenda"
	"agendaaberta/internal/model"
)

var brt = time.FixedZone("BRT", -3*60*60)

func sampleOccurrences() []model.CalendarOccurrence {
	rules := []model.RecurrenceRule{{
		ID:           4,
		DisciplineID: 3,
		Label:        "Cálculo I",
		DayOfWeek:    model.Monday,
		Start:        model.MustTime("09:00"),
		End:          model.MustTime("10:00"),
		Location:     "Sala 12",
	}}
	return agenda.Materialize(rules, time.Date(2025, time.June, 15, 0, 0, 0, 0, brt))
}

func TestExport_RoundTrip(t *testing.T) {
	t.Parallel()

	occs := sampleOccurrences()
	stamp := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	payload, err := Export(occs, ExportOptions{Name: "Plantões", Timezone: "America/Fortaleza", Stamp: stamp})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	text := string(payload)
	for _, want := range []string{"BEGIN:VCALENDAR", "METHOD:PUBLISH", "PRODID:" + ProductID, "X-WR-TIMEZONE:America/Fortaleza"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}

	feed, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if feed.Name != "Plantões" {
		t.Fatalf("unexpected calendar name %q", feed.Name)
	}
	if len(feed.Events) != len(occs) {
		t.Fatalf("expected %d events, got %d", len(occs), len(feed.Events))
	}

	first := feed.Events[0]
	if first.Summary != "Cálculo I" || first.Location != "Sala 12" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if !first.Start.Equal(occs[0].Start) || !first.End.Equal(occs[0].End) {
		t.Fatalf("times changed: got %v-%v, want %v-%v", first.Start, first.End, occs[0].Start, occs[0].End)
	}
	if first.UID != UID(occs[0]) {
		t.Fatalf("unexpected uid %q", first.UID)
	}
}

func TestUID_StableAndDistinct(t *testing.T) {
	t.Parallel()

	occs := sampleOccurrences()
	again := sampleOccurrences()

	seen := make(map[string]bool, len(occs))
	for i := range occs {
		uid := UID(occs[i])
		if uid != UID(again[i]) {
			t.Fatalf("uid not stable for %s", occs[i].InstanceKey)
		}
		if seen[uid] {
			t.Fatalf("duplicate uid %s", uid)
		}
		seen[uid] = true
	}
}

func TestExport_Empty(t *testing.T) {
	t.Parallel()

	payload, err := Export(nil, ExportOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	feed, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(feed.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(feed.Events))
	}
}

func TestExport_RejectsBadOccurrence(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, brt)
	bad := []model.CalendarOccurrence{{RuleID: 1, InstanceKey: "1@x", Start: start, End: start}}
	if _, err := Export(bad, ExportOptions{}); err == nil {
		t.Fatalf("expected error for zero-length occurrence")
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("  \n")); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "agenda.ics")
	if err := WriteFile(path, sampleOccurrences(), ExportOptions{Name: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected file content: %q", data[:min(len(data), 40)])
	}
}
