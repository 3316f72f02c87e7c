package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// LogLevel is the minimum level emitted by the JSON logger.
	LogLevel slog.Level

	// OneSignal is the push-notification service configuration.
	OneSignal OneSignalConfig

	// Facebook is the content feed configuration. Feed monitoring is
	// disabled unless FeedEnabled reports true.
	Facebook FacebookConfig

	// PostLimit is the number of recent posts fetched per monitoring run.
	PostLimit int

	// DispatchConcurrency bounds parallel rate-update dispatches. 1 means
	// strictly sequential.
	DispatchConcurrency int

	// OutboundTimeout bounds every outbound HTTPS call.
	OutboundTimeout time.Duration

	// DatabaseURL is the Postgres connection string for the dispatch ledger.
	DatabaseURL string

	// LedgerSQLitePath is the SQLite file for the dispatch ledger. Ignored
	// when DatabaseURL is set.
	LedgerSQLitePath string
}

type OneSignalConfig struct {
	AppID      string
	RESTAPIKey string
	APIURL     string
}

type FacebookConfig struct {
	AppID        string
	AppSecret    string
	PageID       string
	GraphURL     string
	GraphVersion string

	// ProfileURL is the base used to build a post link when the feed does
	// not return a permalink.
	ProfileURL string
}

// FeedEnabled reports whether enough feed credentials are configured to run
// feed monitoring.
func (c *Config) FeedEnabled() bool {
	return c.Facebook.AppID != "" && c.Facebook.AppSecret != "" && c.Facebook.PageID != ""
}

// LoadDotEnv loads .env files from the working directory when present. Values
// already in the process environment win.
func LoadDotEnv(logger *slog.Logger) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file", "file", file, "error", err)
			continue
		}
		logger.Debug("loaded env file", "file", file)
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := intEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	postLimit, err := intEnv("FEED_POST_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	if postLimit < 1 || postLimit > 100 {
		return nil, fmt.Errorf("FEED_POST_LIMIT must be between 1 and 100")
	}

	concurrency, err := intEnv("DISPATCH_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1")
	}

	timeout := 30 * time.Second
	if v := os.Getenv("OUTBOUND_TIMEOUT"); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid OUTBOUND_TIMEOUT: %w", err)
		}
	}

	var missing []string
	appID := os.Getenv("ONESIGNAL_APP_ID")
	if appID == "" {
		missing = append(missing, "ONESIGNAL_APP_ID")
	}
	apiKey := os.Getenv("ONESIGNAL_REST_API_KEY")
	if apiKey == "" {
		missing = append(missing, "ONESIGNAL_REST_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s is required", strings.Join(missing, " and "))
	}

	return &Config{
		Port:     port,
		LogLevel: level,
		OneSignal: OneSignalConfig{
			AppID:      appID,
			RESTAPIKey: apiKey,
			APIURL:     envOrDefault("ONESIGNAL_API_URL", "https://onesignal.com"),
		},
		Facebook: FacebookConfig{
			AppID:        os.Getenv("FACEBOOK_APP_ID"),
			AppSecret:    os.Getenv("FACEBOOK_APP_SECRET"),
			PageID:       os.Getenv("FACEBOOK_PAGE_ID"),
			GraphURL:     envOrDefault("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
			GraphVersion: envOrDefault("FACEBOOK_GRAPH_VERSION", "v18.0"),
			ProfileURL:   strings.TrimRight(envOrDefault("FEED_PROFILE_URL", "https://www.facebook.com/samelco"), "/"),
		},
		PostLimit:           postLimit,
		DispatchConcurrency: concurrency,
		OutboundTimeout:     timeout,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		LedgerSQLitePath:    os.Getenv("LEDGER_SQLITE_PATH"),
	}, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.New("invalid LOG_LEVEL: " + s)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
