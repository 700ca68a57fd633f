// Package config loads the bot configuration from environment-style
// key/value pairs. Values already present in the process environment
// win over the optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultModel        = "qwen/qwen3-next-80b-a3b-instruct:free"
	defaultBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultQueueFile    = "content_queue.json"
	defaultPostInterval = 60 * time.Second
	defaultGenInterval  = time.Hour
	defaultHistorySize  = 3
	defaultMaxTokens    = 1500
	defaultTemperature  = 0.8
)

// Config is the full runtime configuration, resolved once at startup.
// Components receive the parts they need at construction; nothing reads
// the environment after Load returns.
type Config struct {
	BotToken  string
	ChannelID string // numeric chat id or @username, normalized by the adapter

	// Generation. An empty APIKey disables the generator entirely.
	OpenRouterAPIKey string
	Model            string
	BaseURL          string
	GenerateInterval time.Duration
	HistorySize      int
	MaxTokens        int
	Temperature      float64

	PostInterval time.Duration
	QueueFile    string
	AuditDB      string

	LogLevel string
	LogFile  string
}

// GeneratorEnabled reports whether the generation credential is set.
func (c *Config) GeneratorEnabled() bool {
	return strings.TrimSpace(c.OpenRouterAPIKey) != ""
}

// Load reads the optional env file at envPath (missing file is fine),
// then resolves configuration from the environment. It fails on missing
// required credentials and on unparseable values.
func Load(envPath string) (*Config, error) {
	// godotenv never overrides variables that are already exported,
	// which gives the required first-defined-wins behavior.
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	cfg := &Config{
		BotToken:         strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		ChannelID:        strings.TrimSpace(os.Getenv("CHANNEL_ID")),
		OpenRouterAPIKey: strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		Model:            stringOr("OPENROUTER_MODEL", defaultModel),
		BaseURL:          stringOr("OPENROUTER_BASE_URL", defaultBaseURL),
		QueueFile:        stringOr("QUEUE_FILE", defaultQueueFile),
		AuditDB:          strings.TrimSpace(os.Getenv("AUDIT_DB")),
		LogLevel:         stringOr("LOG_LEVEL", "info"),
		LogFile:          strings.TrimSpace(os.Getenv("LOG_FILE")),
		HistorySize:      defaultHistorySize,
		MaxTokens:        defaultMaxTokens,
		Temperature:      defaultTemperature,
	}

	if cfg.BotToken == "" {
		return nil, errors.New("config: BOT_TOKEN is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("config: CHANNEL_ID is required")
	}

	var err error
	if cfg.GenerateInterval, err = hoursOr("GENERATE_INTERVAL_HOURS", defaultGenInterval); err != nil {
		return nil, err
	}
	if cfg.PostInterval, err = secondsOr("POST_INTERVAL_SECONDS", defaultPostInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

func stringOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func hoursOr(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("config: %s: invalid hour count %q", key, raw)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

func secondsOr(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("config: %s: invalid second count %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}
