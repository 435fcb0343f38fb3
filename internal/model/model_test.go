package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseWeekday_Variants(t *testing.T) {
	t.Parallel()

	cases := map[string]Weekday{
		"Segunda-feira": Monday,
		"terça-feira":   Tuesday,
		"TERCA":         Tuesday,
		"Sábado":        Saturday,
		"sabado":        Saturday,
		" Domingo ":     Sunday,
		"friday":        Friday,
	}
	for in, want := range cases {
		got, err := ParseWeekday(in)
		if err != nil {
			t.Fatalf("ParseWeekday(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseWeekday(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseWeekday("Funday"); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}

func TestWeekday_MatchesTimeWeekday(t *testing.T) {
	t.Parallel()

	if Monday.Time() != time.Monday || Sunday.Time() != time.Sunday || Saturday.Time() != time.Saturday {
		t.Fatalf("weekday values must match time.Weekday")
	}
	if Wednesday.String() != "Quarta-feira" {
		t.Fatalf("unexpected API name: %s", Wednesday.String())
	}
}

func TestWeekday_JSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Thursday)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"Quinta-feira"` {
		t.Fatalf("unexpected json: %s", raw)
	}

	var d Weekday
	if err := json.Unmarshal([]byte(`"sexta-feira"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d != Friday {
		t.Fatalf("unexpected weekday: %v", d)
	}

	if _, err := json.Marshal(InvalidWeekday); err == nil {
		t.Fatalf("expected error marshalling invalid weekday")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	got, err := ParseTimeOfDay("09:30:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Hour != 9 || got.Minute != 30 || got.String() != "09:30" {
		t.Fatalf("unexpected time: %+v", got)
	}

	for _, bad := range []string{"", "9", "24:00", "10:60", "aa:bb", "1:2:3:4"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRecurrenceRule_WellFormed(t *testing.T) {
	t.Parallel()

	ok := RecurrenceRule{DayOfWeek: Monday, Start: MustTime("09:00"), End: MustTime("10:00")}
	if !ok.WellFormed() {
		t.Fatalf("expected well formed rule")
	}

	inverted := ok
	inverted.End = MustTime("08:00")
	if inverted.WellFormed() {
		t.Fatalf("end before start must not be well formed")
	}

	equal := ok
	equal.End = ok.Start
	if equal.WellFormed() {
		t.Fatalf("zero-length rule must not be well formed")
	}

	badDay := ok
	badDay.DayOfWeek = InvalidWeekday
	if badDay.WellFormed() {
		t.Fatalf("invalid weekday must not be well formed")
	}
}

func TestUser_DisplayName(t *testing.T) {
	t.Parallel()

	if got := (User{Username: "ana", FirstName: "Ana", LastName: "Lima"}).DisplayName(); got != "Ana Lima" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := (User{Username: "ana"}).DisplayName(); got != "ana" {
		t.Fatalf("unexpected display name %q", got)
	}
}
