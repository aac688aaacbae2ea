package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendCSV       = "csv"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"

	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// DefaultConfigPath is read when no --config flag is given and the file exists.
const DefaultConfigPath = "fly4deals.toml"

type Config struct {
	ForumBaseURL   string
	ListingPath    string
	Location       *time.Location
	RecencyWindow  time.Duration
	ImageRoot      string
	FetchMode      string
	HTTPTimeout    time.Duration
	SelectorsPath  string
	StateBackend   string
	StatePath      string
	ProjectID      string
	GeminiAPIKey   string
	GeminiModel    string
	SenderEmail    string
	SenderPassword string
	ReceiverEmail  string
	SMTPHost       string
	SMTPPort       int
	MailInterval   time.Duration
	PollSchedule   string
	Port           string
	LogLevel       string
	LogFormat      string
}

// fileConfig mirrors the TOML file. Durations are strings ("60m") so the
// file and the environment share one parser.
type fileConfig struct {
	ForumBaseURL  string `toml:"forum_base_url"`
	ListingPath   string `toml:"listing_path"`
	TimeZone      string `toml:"time_zone"`
	RecencyWindow string `toml:"recency_window"`
	ImageRoot     string `toml:"image_root"`
	FetchMode     string `toml:"fetch_mode"`
	HTTPTimeout   string `toml:"http_timeout"`
	SelectorsPath string `toml:"selectors_path"`
	StateBackend  string `toml:"state_backend"`
	StatePath     string `toml:"state_path"`
	ProjectID     string `toml:"project_id"`
	GeminiModel   string `toml:"gemini_model"`
	SMTPHost      string `toml:"smtp_host"`
	SMTPPort      int    `toml:"smtp_port"`
	MailInterval  string `toml:"mail_interval"`
	PollSchedule  string `toml:"poll_schedule"`
	Port          string `toml:"port"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
}

func defaults() fileConfig {
	return fileConfig{
		ForumBaseURL:  "https://www.fly4free.pl/forum/",
		ListingPath:   "promocje-znalazlem-lam-tani-przelot,forum,232",
		TimeZone:      "Europe/Warsaw",
		RecencyWindow: "60m",
		ImageRoot:     "img",
		FetchMode:     FetchModeHTTP,
		HTTPTimeout:   "30s",
		StateBackend:  BackendCSV,
		StatePath:     "data.csv",
		GeminiModel:   "gemini-2.5-flash",
		SMTPHost:      "smtp.gmail.com",
		SMTPPort:      465,
		MailInterval:  "1s",
		PollSchedule:  "@every 30m",
		Port:          "8080",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds the configuration from defaults, an optional TOML file, an
// optional .env file and the process environment, in increasing precedence.
// An empty path means DefaultConfigPath, which may be absent.
func Load(path string) (*Config, error) {
	fc := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	overrideString(&fc.ForumBaseURL, "FORUM_BASE_URL")
	overrideString(&fc.ListingPath, "FORUM_LISTING_PATH")
	overrideString(&fc.TimeZone, "FORUM_TIMEZONE")
	overrideString(&fc.RecencyWindow, "RECENCY_WINDOW")
	overrideString(&fc.ImageRoot, "IMAGE_ROOT")
	overrideString(&fc.FetchMode, "FETCH_MODE")
	overrideString(&fc.HTTPTimeout, "HTTP_TIMEOUT")
	overrideString(&fc.SelectorsPath, "SELECTORS_CONFIG_PATH")
	overrideString(&fc.StateBackend, "STATE_BACKEND")
	overrideString(&fc.StatePath, "STATE_PATH")
	overrideString(&fc.ProjectID, "GOOGLE_CLOUD_PROJECT")
	overrideString(&fc.GeminiModel, "GEMINI_MODEL")
	overrideString(&fc.SMTPHost, "SMTP_HOST")
	overrideString(&fc.MailInterval, "MAIL_INTERVAL")
	overrideString(&fc.PollSchedule, "POLL_SCHEDULE")
	overrideString(&fc.Port, "PORT")
	overrideString(&fc.LogLevel, "LOG_LEVEL")
	overrideString(&fc.LogFormat, "LOG_FORMAT")

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		fc.SMTPPort = port
	}

	return build(fc)
}

func build(fc fileConfig) (*Config, error) {
	loc, err := time.LoadLocation(fc.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid FORUM_TIMEZONE %q: %w", fc.TimeZone, err)
	}

	window, err := parsePositiveDuration("RECENCY_WINDOW", fc.RecencyWindow)
	if err != nil {
		return nil, err
	}
	timeout, err := parsePositiveDuration("HTTP_TIMEOUT", fc.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	mailInterval, err := time.ParseDuration(fc.MailInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid MAIL_INTERVAL %q: %w", fc.MailInterval, err)
	}

	if !strings.HasSuffix(fc.ForumBaseURL, "/") {
		fc.ForumBaseURL += "/"
	}

	switch fc.FetchMode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return nil, fmt.Errorf("invalid FETCH_MODE %q: want %s or %s", fc.FetchMode, FetchModeHTTP, FetchModeBrowser)
	}

	switch fc.StateBackend {
	case BackendCSV, BackendSQLite:
		if fc.StatePath == "" {
			return nil, fmt.Errorf("STATE_PATH is required for the %s backend", fc.StateBackend)
		}
	case BackendFirestore:
		if fc.ProjectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required for the firestore backend")
		}
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q", fc.StateBackend)
	}

	return &Config{
		ForumBaseURL:   fc.ForumBaseURL,
		ListingPath:    fc.ListingPath,
		Location:       loc,
		RecencyWindow:  window,
		ImageRoot:      fc.ImageRoot,
		FetchMode:      fc.FetchMode,
		HTTPTimeout:    timeout,
		SelectorsPath:  fc.SelectorsPath,
		StateBackend:   fc.StateBackend,
		StatePath:      fc.StatePath,
		ProjectID:      fc.ProjectID,
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    fc.GeminiModel,
		SenderEmail:    os.Getenv("SENDER_EMAIL"),
		SenderPassword: os.Getenv("SENDER_PASSWORD"),
		ReceiverEmail:  os.Getenv("RECEIVER_EMAIL"),
		SMTPHost:       fc.SMTPHost,
		SMTPPort:       fc.SMTPPort,
		MailInterval:   mailInterval,
		PollSchedule:   fc.PollSchedule,
		Port:           fc.Port,
		LogLevel:       fc.LogLevel,
		LogFormat:      fc.LogFormat,
	}, nil
}

// ListingURL is the absolute address of the deals board.
func (c *Config) ListingURL() string {
	return c.ForumBaseURL + c.ListingPath
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parsePositiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, value)
	}
	return d, nil
}
