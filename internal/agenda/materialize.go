package agenda

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// rruleWeekdays maps model weekdays (Sunday = 0) onto rrule-go weekdays.
var rruleWeekdays = [...]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Window returns the three calendar months around ref: the first instant of
// the previous month (inclusive) up to the first instant of the month after
// next (exclusive), both in ref's location. Only ref's year and month matter.
func Window(ref time.Time) (start, end time.Time) {
	loc := ref.Location()
	// time.Date normalizes month 0 and month 13, which handles year rollover.
	start = time.Date(ref.Year(), ref.Month()-1, 1, 0, 0, 0, 0, loc)
	end = time.Date(ref.Year(), ref.Month()+2, 1, 0, 0, 0, 0, loc)
	return start, end
}

// Materialize expands weekly rules into concrete occurrences covering the
// month before, the month of and the month after ref.
//
//   - Output is rule order, then chronological within a rule.
//   - Start/End combine each matching date with the rule's wall clock times
//     in ref's location.
//   - Rules that are not WellFormed are skipped.
//
// Materialize is pure: identical inputs give identical output.
func Materialize(rules []model.RecurrenceRule, ref time.Time) []model.CalendarOccurrence {
	out := make([]model.CalendarOccurrence, 0, len(rules)*14)
	if len(rules) == 0 {
		return out
	}

	windowStart, windowEnd := Window(ref)
	for _, rule := range rules {
		if !rule.WellFormed() {
			appLog.Debug("agenda: skipping malformed rule",
				"rule_id", rule.ID,
				"day_of_week", int(rule.DayOfWeek),
				"start", rule.Start.String(),
				"end", rule.End.String(),
			)
			continue
		}
		out = append(out, expandRule(rule, windowStart, windowEnd)...)
	}
	return out
}

// matchingDates returns every date in [windowStart, windowEnd) that falls on
// day. The expansion runs on UTC midnights; only the calendar date of each
// result is meaningful. Zones whose DST change happens at midnight would
// otherwise shift a date by one day.
func matchingDates(day model.Weekday, windowStart, windowEnd time.Time) ([]time.Time, error) {
	dtstart := time.Date(windowStart.Year(), windowStart.Month(), windowStart.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := windowEnd.AddDate(0, 0, -1)
	until := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 0, 0, 0, 0, time.UTC)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Byweekday: []rrule.Weekday{rruleWeekdays[day]},
		Until:     until,
	})
	if err != nil {
		return nil, fmt.Errorf("build weekly rule: %w", err)
	}
	return r.All(), nil
}

func expandRule(rule model.RecurrenceRule, windowStart, windowEnd time.Time) []model.CalendarOccurrence {
	dates, err := matchingDates(rule.DayOfWeek, windowStart, windowEnd)
	if err != nil {
		appLog.Error("agenda: failed to expand rule", err, "rule_id", rule.ID)
		return nil
	}

	loc := windowStart.Location()
	out := make([]model.CalendarOccurrence, 0, len(dates))
	for _, d := range dates {
		y, m, day := d.Date()
		start := time.Date(y, m, day, rule.Start.Hour, rule.Start.Minute, 0, 0, loc)
		end := time.Date(y, m, day, rule.End.Hour, rule.End.Minute, 0, 0, loc)
		out = append(out, model.CalendarOccurrence{
			RuleID:      rule.ID,
			InstanceKey: instanceKey(rule.ID, start),
			Title:       rule.Label,
			Location:    rule.Location,
			Start:       start,
			End:         end,
		})
	}
	return out
}

// instanceKey is a stable per-occurrence key: rule id plus local start.
func instanceKey(ruleID int64, start time.Time) string {
	return fmt.Sprintf("%d@%s", ruleID, start.Format(time.RFC3339))
}
