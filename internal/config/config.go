package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "agendaaberta/internal/log"
)

// Defaults for a fresh configuration.
const (
	DefaultAPIBaseURL   = "http://127.0.0.1:8000/api"
	DefaultListen       = "127.0.0.1:8080"
	DefaultTimezone     = "America/Fortaleza"
	DefaultWeekStart    = "sunday"
	DefaultRefreshCron  = "*/30 * * * *"
	DefaultCalendarName = "Agenda Aberta"
	DefaultTimeout      = 10
	DefaultPageSize     = 5
	DefaultDebounceMS   = 500
	DefaultLogLevel     = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local web server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration. Every scalar can be
// overridden from the environment (see the env tags); a .env file next to
// the config file is loaded first.
type Config struct {
	// APIBaseURL is the REST API root, e.g. "https://agenda.example/api".
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url" env:"AGENDA_API_BASE_URL"`

	// TimeoutSeconds bounds each API request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" env:"AGENDA_TIMEOUT_SECONDS"`

	// Timezone is the IANA zone calendar windows are computed in.
	Timezone string `yaml:"timezone" json:"timezone" env:"AGENDA_TIMEZONE"`

	// WeekStart is "sunday" or "monday" for the month grid.
	WeekStart string `yaml:"week_start" json:"week_start" env:"AGENDA_WEEK_START"`

	// TokenPath is the JSON token store. Relative paths are resolved
	// against the config directory.
	TokenPath string `yaml:"token_path" json:"token_path" env:"AGENDA_TOKEN_PATH"`

	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen" json:"listen" env:"AGENDA_LISTEN"`

	// RefreshCron schedules the background agenda refresh in `serve`.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"AGENDA_REFRESH"`

	// ICSPath, when set, receives an ICS export on every refresh.
	ICSPath string `yaml:"ics_path" json:"ics_path" env:"AGENDA_ICS_PATH"`

	CalendarName string `yaml:"calendar_name" json:"calendar_name" env:"AGENDA_CALENDAR_NAME"`

	PageSize         int `yaml:"page_size" json:"page_size" env:"AGENDA_PAGE_SIZE"`
	SearchDebounceMS int `yaml:"search_debounce_ms" json:"search_debounce_ms" env:"AGENDA_SEARCH_DEBOUNCE_MS"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"AGENDA_LOG_LEVEL"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// basicAuthEnv is parsed separately because BasicAuth is a nil pointer
// unless configured.
type basicAuthEnv struct {
	Username string `env:"AGENDA_BASIC_AUTH_USER"`
	Password string `env:"AGENDA_BASIC_AUTH_PASSWORD"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:       DefaultAPIBaseURL,
		TimeoutSeconds:   DefaultTimeout,
		Timezone:         DefaultTimezone,
		WeekStart:        DefaultWeekStart,
		TokenPath:        "tokens.json",
		Listen:           DefaultListen,
		RefreshCron:      DefaultRefreshCron,
		CalendarName:     DefaultCalendarName,
		PageSize:         DefaultPageSize,
		SearchDebounceMS: DefaultDebounceMS,
		LogLevel:         DefaultLogLevel,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeout
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = DefaultWeekStart
	}
	if c.TokenPath == "" {
		c.TokenPath = "tokens.json"
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.CalendarName == "" {
		c.CalendarName = DefaultCalendarName
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.SearchDebounceMS < 0 {
		c.SearchDebounceMS = DefaultDebounceMS
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Timeout returns TimeoutSeconds as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchDebounce returns SearchDebounceMS as a duration.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// Location resolves Timezone, falling back to the local zone when the name
// cannot be loaded (e.g. no tzdata on the host).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to local", err, "timezone", c.Timezone)
		return time.Local
	}
	return loc
}

// ResolvePath makes p absolute relative to the directory of configPath.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A .env file in the config directory is loaded into the process
//     environment (existing variables win).
//   - If the file does not exist, defaults are written with 0600 perms.
//   - Otherwise the YAML is read and normalized.
//   - AGENDA_* environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	cfg, err := readOrCreate(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func readOrCreate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, fmt.Errorf("write default config: %w", err)
			}
			appLog.Info("config created with defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	appLog.Debug("loaded dotenv", "path", path)
	return nil
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	var ba basicAuthEnv
	if err := env.Parse(&ba); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if ba.Username != "" || ba.Password != "" {
		if cfg.BasicAuth == nil {
			cfg.BasicAuth = &BasicAuthConfig{}
		}
		if ba.Username != "" {
			cfg.BasicAuth.Username = ba.Username
		}
		if ba.Password != "" {
			cfg.BasicAuth.Password = ba.Password
		}
	}
	return nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".agendaaberta-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
