package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"agendaaberta/internal/agenda"
	"agendaaberta/internal/api"
	"agendaaberta/internal/config"
	"agendaaberta/internal/ics"
	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
	"agendaaberta/internal/session"
)

// DefaultCacheTTL bounds how long a materialized month is reused.
const DefaultCacheTTL = 30 * time.Second

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTmpl = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

// Server exposes the materialized agenda over HTTP: JSON, an ICS feed and
// a printable month grid.
type Server struct {
	cfg    *config.Config
	loader *agenda.Loader
	mux    *http.ServeMux
	now    func() time.Time
	ttl    time.Duration

	// Per-month cache keyed by "2006-01" so a burst of requests does not
	// hit the API once each.
	cacheMu sync.RWMutex
	cache   map[string]cachedSnapshot
}

type cachedSnapshot struct {
	snap      *agenda.Snapshot
	updatedAt time.Time
}

// NewServer constructs a Server. loader supplies rules and the display
// timezone.
func NewServer(cfg *config.Config, loader *agenda.Loader) *Server {
	s := &Server{
		cfg:    cfg,
		loader: loader,
		mux:    http.NewServeMux(),
		now:    time.Now,
		ttl:    DefaultCacheTTL,
		cache:  make(map[string]cachedSnapshot),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// Invalidate drops every cached month, e.g. after a scheduled refresh.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	s.cache = make(map[string]cachedSnapshot)
	s.cacheMu.Unlock()
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="AgendaAberta", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("/agenda.ics", s.handleICS)
	s.mux.HandleFunc("/calendar", s.handleCalendar)
	s.mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Reference   string                     `json:"reference"`
	WindowStart time.Time                  `json:"window_start"`
	WindowEnd   time.Time                  `json:"window_end"`
	Timezone    string                     `json:"timezone"`
	WeekStart   string                     `json:"week_start"`
	RuleCount   int                        `json:"rule_count"`
	Occurrences []model.CalendarOccurrence `json:"occurrences"`
}

// handleOccurrences returns the materialized window around ?date=YYYY-MM-DD
// (default today in the configured timezone).
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.referenceDate(w, r)
	if !ok {
		return
	}
	snap, ok := s.snapshot(w, r, ref)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Reference:   ref.Format(time.DateOnly),
		WindowStart: snap.WindowStart,
		WindowEnd:   snap.WindowEnd,
		Timezone:    s.loader.Location().String(),
		WeekStart:   s.cfg.WeekStart,
		RuleCount:   len(snap.Rules),
		Occurrences: snap.Occurrences,
	})
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.referenceDate(w, r)
	if !ok {
		return
	}
	snap, ok := s.snapshot(w, r, ref)
	if !ok {
		return
	}

	payload, err := ics.Export(snap.Occurrences, ics.ExportOptions{
		Name:     s.cfg.CalendarName,
		Timezone: s.loader.Location().String(),
		Stamp:    snap.LoadedAt,
	})
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="agenda.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

type calendarPage struct {
	Name     string
	Timezone string
	Month    Month
}

// handleCalendar renders the reference month as an HTML grid. The root
// element carries data-ready="true" for the screenshot capture.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.referenceDate(w, r)
	if !ok {
		return
	}
	snap, ok := s.snapshot(w, r, ref)
	if !ok {
		return
	}

	page := calendarPage{
		Name:     s.cfg.CalendarName,
		Timezone: s.loader.Location().String(),
		Month:    buildMonth(ref, weekStartDay(s.cfg.WeekStart), snap.Occurrences, s.now()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarTmpl.Execute(w, page); err != nil {
		appLog.Error("calendar render failed", err)
	}
}

// referenceDate parses ?date=; it writes a 400 and returns false when the
// value is malformed.
func (s *Server) referenceDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	loc := s.loader.Location()
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.now().In(loc), true
	}
	ref, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return ref, true
}

// snapshot returns the cached or freshly loaded window for ref, writing an
// error response on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request, ref time.Time) (*agenda.Snapshot, bool) {
	key := ref.Format("2006-01")
	now := s.now()

	s.cacheMu.RLock()
	c, hit := s.cache[key]
	s.cacheMu.RUnlock()
	if hit && now.Sub(c.updatedAt) < s.ttl {
		return c.snap, true
	}

	snap, err := s.loader.Load(r.Context(), ref)
	if err != nil && !errors.Is(err, agenda.ErrStale) {
		appLog.Error("agenda load failed", err, "reference", key)
		switch {
		case api.IsAuth(err), errors.Is(err, session.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, api.MsgUnauthorized)
		case api.IsNetwork(err):
			writeError(w, http.StatusBadGateway, api.MsgCommunication)
		default:
			writeError(w, http.StatusInternalServerError, api.UserMessage(err))
		}
		return nil, false
	}

	s.cacheMu.Lock()
	s.cache[key] = cachedSnapshot{snap: snap, updatedAt: now}
	s.cacheMu.Unlock()
	return snap, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
