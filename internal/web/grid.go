package web

import (
	"sort"
	"time"

	"agendaaberta/internal/model"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var dayLabels = [...]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

// Day is one cell of the month grid.
type Day struct {
	Date        time.Time
	InMonth     bool
	Today       bool
	Occurrences []model.CalendarOccurrence
}

// Month is a month laid out in full weeks.
type Month struct {
	Title     string
	Year      int
	Month     time.Month
	DayLabels []string
	Weeks     [][]Day
	Prev      string // YYYY-MM-DD of the previous month's first day
	Next      string
}

// buildMonth lays out the month containing ref as whole weeks starting on
// weekStart. Occurrences are placed on the day of their start in ref's
// location; those outside the grid are ignored.
func buildMonth(ref time.Time, weekStart time.Weekday, occs []model.CalendarOccurrence, today time.Time) Month {
	loc := ref.Location()
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	gridStart := first.AddDate(0, 0, -offset)

	byDay := make(map[string][]model.CalendarOccurrence)
	for _, occ := range occs {
		key := occ.Start.In(loc).Format(time.DateOnly)
		byDay[key] = append(byDay[key], occ)
	}
	for _, list := range byDay {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}

	labels := make([]string, 7)
	for i := range labels {
		labels[i] = dayLabels[(int(weekStart)+i)%7]
	}

	todayKey := today.In(loc).Format(time.DateOnly)
	m := Month{
		Title:     monthNames[ref.Month()-1] + " " + first.Format("2006"),
		Year:      ref.Year(),
		Month:     ref.Month(),
		DayLabels: labels,
		Prev:      first.AddDate(0, -1, 0).Format(time.DateOnly),
		Next:      next.Format(time.DateOnly),
	}

	for d := gridStart; d.Before(next); {
		week := make([]Day, 0, 7)
		for i := 0; i < 7; i++ {
			key := d.Format(time.DateOnly)
			week = append(week, Day{
				Date:        d,
				InMonth:     d.Month() == ref.Month(),
				Today:       key == todayKey,
				Occurrences: byDay[key],
			})
			d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m
}

func weekStartDay(name string) time.Weekday {
	if name == "monday" {
		return time.Monday
	}
	return time.Sunday
}
