package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"agendaaberta/internal/agenda"
	"agendaaberta/internal/api"
	"agendaaberta/internal/config"
	"agendaaberta/internal/ics"
	"agendaaberta/internal/model"
)

var brt = time.FixedZone("BRT", -3*60*60)

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (c *countingSource) Rules(context.Context) ([]model.RecurrenceRule, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []model.RecurrenceRule{{
		ID:           1,
		DisciplineID: 3,
		Label:        "Cálculo I",
		DayOfWeek:    model.Monday,
		Start:        model.MustTime("09:00"),
		End:          model.MustTime("10:00"),
		Location:     "Sala 12",
	}}, nil
}

func newTestServer(t *testing.T, src agenda.RuleSource, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s := NewServer(cfg, agenda.NewLoader(src, brt))
	s.now = func() time.Time { return time.Date(2025, time.June, 15, 10, 0, 0, 0, brt) }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &countingSource{}, nil)
	resp, body := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || body != "OK" {
		t.Fatalf("unexpected health: %d %q", resp.StatusCode, body)
	}
}

func TestOccurrences_DefaultsToToday(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &countingSource{}, nil)
	resp, body := get(t, ts.URL+"/api/occurrences")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	var out occurrencesResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Reference != "2025-06-15" {
		t.Fatalf("unexpected reference %q", out.Reference)
	}
	if len(out.Occurrences) != 13 {
		t.Fatalf("expected 13 Mondays, got %d", len(out.Occurrences))
	}
	if got := out.Occurrences[0].Start.In(brt); got.Month() != time.May || got.Day() != 5 || got.Hour() != 9 {
		t.Fatalf("unexpected first occurrence %v", got)
	}
	if out.RuleCount != 1 {
		t.Fatalf("unexpected rule count %d", out.RuleCount)
	}
}

func TestOccurrences_BadDate(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	_, ts := newTestServer(t, src, nil)
	resp, _ := get(t, ts.URL+"/api/occurrences?date=15/06/2025")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("bad date must not reach the API")
	}
}

func TestOccurrences_CachePerMonth(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	s, ts := newTestServer(t, src, nil)

	get(t, ts.URL+"/api/occurrences?date=2025-06-01")
	get(t, ts.URL+"/api/occurrences?date=2025-06-30")
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("same month should be cached, got %d fetches", n)
	}

	get(t, ts.URL+"/api/occurrences?date=2025-07-01")
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("new month should fetch, got %d fetches", n)
	}

	s.Invalidate()
	get(t, ts.URL+"/api/occurrences?date=2025-06-01")
	if n := src.calls.Load(); n != 3 {
		t.Fatalf("invalidate should force a fetch, got %d fetches", n)
	}
}

func TestOccurrences_UpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", &api.AuthError{StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"network", &api.NetworkError{Op: "GET /horarios/", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{"server", &api.StatusError{StatusCode: 500}, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, ts := newTestServer(t, &countingSource{err: tc.err}, nil)
			resp, body := get(t, ts.URL+"/api/occurrences")
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.StatusCode, body)
			}
		})
	}
}

func TestICSFeed(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &countingSource{}, nil)
	resp, body := get(t, ts.URL+"/agenda.ics?date=2025-06-15")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}

	feed, err := ics.Parse([]byte(body))
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	if len(feed.Events) != 13 || feed.Name != config.DefaultCalendarName {
		t.Fatalf("unexpected feed: name=%q events=%d", feed.Name, len(feed.Events))
	}
}

func TestCalendarPage(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &countingSource{}, nil)
	resp, body := get(t, ts.URL+"/calendar?date=2025-06-15")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	for _, want := range []string{`data-ready="true"`, "Junho 2025", "Cálculo I", "09:00-10:00", "Sala 12"} {
		if !strings.Contains(body, want) {
			t.Fatalf("calendar page missing %q", want)
		}
	}
	// Sunday-first grid runs Jun 1 to Jul 5: five Mondays.
	if n := strings.Count(body, `class="occ"`); n != 5 {
		t.Fatalf("expected 5 occurrences in the June grid, got %d", n)
	}
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &countingSource{}, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	})

	resp, _ := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health must stay public, got %d", resp.StatusCode)
	}

	resp, _ = get(t, ts.URL+"/api/occurrences")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/occurrences", nil)
	req.SetBasicAuth("admin", "pw")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", authed.StatusCode)
	}
}

func TestBuildMonth_WeekStart(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, time.June, 15, 0, 0, 0, 0, brt)
	today := ref

	sun := buildMonth(ref, time.Sunday, nil, today)
	if sun.DayLabels[0] != "Dom" || sun.Weeks[0][0].Date.Day() != 1 {
		t.Fatalf("June 2025 starts on a Sunday: %+v", sun.Weeks[0][0])
	}
	if len(sun.Weeks) != 5 {
		t.Fatalf("expected 5 weeks, got %d", len(sun.Weeks))
	}

	mon := buildMonth(ref, time.Monday, nil, today)
	first := mon.Weeks[0][0].Date
	if mon.DayLabels[0] != "Seg" || first.Month() != time.May || first.Day() != 26 {
		t.Fatalf("monday grid should start on May 26, got %v", first)
	}
	if len(mon.Weeks) != 6 {
		t.Fatalf("expected 6 weeks, got %d", len(mon.Weeks))
	}
	if mon.Prev != "2025-05-01" || mon.Next != "2025-07-01" {
		t.Fatalf("unexpected navigation %s %s", mon.Prev, mon.Next)
	}

	var todays int
	for _, w := range mon.Weeks {
		for _, d := range w {
			if d.Today {
				todays++
			}
		}
	}
	if todays != 1 {
		t.Fatalf("expected one highlighted day, got %d", todays)
	}
}
