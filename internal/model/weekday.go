package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weekday is a locale independent day of week. Values match time.Weekday
// (Sunday = 0).
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// InvalidWeekday marks a rule whose weekday could not be parsed.
const InvalidWeekday Weekday = -1

// apiNames are the spellings used by the REST API ("dia_semana").
var apiNames = [...]string{
	"Domingo",
	"Segunda-feira",
	"Terça-feira",
	"Quarta-feira",
	"Quinta-feira",
	"Sexta-feira",
	"Sábado",
}

// aliases maps folded (lower case, accent free) names to weekdays.
var aliases = map[string]Weekday{
	"domingo": Sunday, "segunda-feira": Monday, "segunda": Monday,
	"terca-feira": Tuesday, "terca": Tuesday, "quarta-feira": Wednesday,
	"quarta": Wednesday, "quinta-feira": Thursday, "quinta": Thursday,
	"sexta-feira": Friday, "sexta": Friday, "sabado": Saturday,

	"sunday": Sunday, "monday": Monday, "tuesday": Tuesday, "wednesday": Wednesday,
	"thursday": Thursday, "friday": Friday, "saturday": Saturday,
}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// Time converts to the standard library weekday.
func (d Weekday) Time() time.Weekday {
	return time.Weekday(d)
}

// String returns the API spelling, e.g. "Segunda-feira".
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return apiNames[d]
}

// ParseWeekday accepts the API spelling plus case and accent variants
// ("terca", "SÁBADO") and English names.
func ParseWeekday(s string) (Weekday, error) {
	key := fold(s)
	if d, ok := aliases[key]; ok {
		return d, nil
	}
	return InvalidWeekday, fmt.Errorf("unknown weekday %q", s)
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("marshal weekday: invalid value %d", int(d))
	}
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("weekday must be a string: %w", err)
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
