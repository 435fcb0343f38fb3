package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timezone != DefaultTimezone || cfg.PageSize != 5 || cfg.SearchDebounceMS != 500 || cfg.TimeoutSeconds != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestLoad_ReadsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "api_base_url: https://agenda.example/api/\n" +
		"timezone: America/Recife\n" +
		"week_start: Monday\n" +
		"page_size: 0\n" +
		"basic_auth:\n  username: \"\"\n  password: \"\"\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://agenda.example/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}
	if cfg.WeekStart != "monday" {
		t.Fatalf("expected monday, got %q", cfg.WeekStart)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", cfg.PageSize)
	}
	if cfg.BasicAuth != nil {
		t.Fatalf("empty basic auth should be dropped")
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.Timeout())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("timezone: America/Recife\nlisten: 0.0.0.0:9000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("AGENDA_TIMEZONE", "UTC")
	t.Setenv("AGENDA_TIMEOUT_SECONDS", "3")
	t.Setenv("AGENDA_BASIC_AUTH_USER", "admin")
	t.Setenv("AGENDA_BASIC_AUTH_PASSWORD", "pw")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timezone != "UTC" || cfg.TimeoutSeconds != 3 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Fatalf("file value lost: %q", cfg.Listen)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" || cfg.BasicAuth.Password != "pw" {
		t.Fatalf("basic auth env not applied: %+v", cfg.BasicAuth)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location())
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENDA_PAGE_SIZE=9\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Registers cleanup so the variable godotenv sets does not leak.
	t.Setenv("AGENDA_PAGE_SIZE", "")
	if err := os.Unsetenv("AGENDA_PAGE_SIZE"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PageSize != 9 {
		t.Fatalf("expected page size from .env, got %d", cfg.PageSize)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLocation_FallsBackToLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Fatalf("expected local fallback")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/etc/agenda/config.yaml", "tokens.json"); got != "/etc/agenda/tokens.json" {
		t.Fatalf("unexpected %q", got)
	}
	if got := ResolvePath("/etc/agenda/config.yaml", "/var/lib/t.json"); got != "/var/lib/t.json" {
		t.Fatalf("absolute path changed: %q", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.ICSPath = "out/agenda.ics"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ICSPath != "out/agenda.ics" || got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}
