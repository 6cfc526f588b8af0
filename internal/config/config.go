// Package config builds the immutable application configuration.
//
// Precedence: environment variables override the optional YAML file, which
// overrides built-in defaults. The result never changes after Load().
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the fully parsed, validated application configuration.
type Config struct {
	BotToken string // secret; never logged
	ChatID   int64  // target chat for alerts and digests

	RegistryURL    string
	RequestTimeout time.Duration // per registry HTTP call
	PollTimeout    time.Duration // telegram long-poll timeout

	CheckInterval    time.Duration // alert poll period
	DailySummaryTime string        // canonical "HH:MM"
	SummaryHour      int
	SummaryMinute    int

	LogLevel string
	LogFile  string
}

// fileConfig is the YAML shape. All durations are Go duration strings.
type fileConfig struct {
	Telegram struct {
		Token       string `yaml:"token"`
		ChatID      int64  `yaml:"chat_id"`
		PollTimeout string `yaml:"poll_timeout"`
	} `yaml:"telegram"`
	Registry struct {
		URL            string `yaml:"url"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"registry"`
	CheckInterval    string `yaml:"check_interval"`
	DailySummaryTime string `yaml:"daily_summary_time"`
	Logging          struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

const (
	defaultRegistryURL    = "http://localhost:8765"
	defaultCheckInterval  = 15 * time.Minute
	defaultSummaryTime    = "09:00"
	defaultRequestTimeout = 10 * time.Second
	defaultPollTimeout    = 10 * time.Second
)

// Load reads the optional YAML file at path (empty path or missing file is
// fine), overlays environment variables, validates, and returns the config.
func Load(path string) (*Config, error) {
	var fc fileConfig
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// optional file
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&fc); err != nil && err != io.EOF {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		BotToken:         firstOf(os.Getenv("TELEGRAM_BOT_TOKEN"), fc.Telegram.Token),
		RegistryURL:      firstOf(os.Getenv("REGISTRY_URL"), fc.Registry.URL, defaultRegistryURL),
		DailySummaryTime: firstOf(os.Getenv("DAILY_SUMMARY_TIME"), fc.DailySummaryTime, defaultSummaryTime),
		LogLevel:         firstOf(os.Getenv("LOG_LEVEL"), fc.Logging.Level, "info"),
		LogFile:          firstOf(os.Getenv("LOG_FILE"), fc.Logging.File),
	}

	chatRaw := firstOf(os.Getenv("TELEGRAM_CHAT_ID"), "")
	if chatRaw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(chatRaw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: TELEGRAM_CHAT_ID: invalid chat id %q", chatRaw)
		}
		cfg.ChatID = id
	} else {
		cfg.ChatID = fc.Telegram.ChatID
	}

	var err error
	cfg.CheckInterval, err = ParseDurationOrDefault("check_interval",
		firstOf(os.Getenv("CHECK_INTERVAL"), fc.CheckInterval), defaultCheckInterval)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout, err = ParseDurationOrDefault("registry.request_timeout",
		fc.Registry.RequestTimeout, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	cfg.PollTimeout, err = ParseDurationOrDefault("telegram.poll_timeout",
		fc.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("config: telegram bot token is empty (set TELEGRAM_BOT_TOKEN)")
	}
	if c.ChatID == 0 {
		return errors.New("config: telegram chat id is empty (set TELEGRAM_CHAT_ID)")
	}
	if !strings.HasPrefix(c.RegistryURL, "http://") && !strings.HasPrefix(c.RegistryURL, "https://") {
		return fmt.Errorf("config: registry url %q must be http(s)", c.RegistryURL)
	}
	c.RegistryURL = strings.TrimRight(c.RegistryURL, "/")

	h, m, err := ParseHHMM(c.DailySummaryTime)
	if err != nil {
		return fmt.Errorf("config: daily_summary_time: %w", err)
	}
	c.SummaryHour, c.SummaryMinute = h, m
	c.DailySummaryTime = fmt.Sprintf("%02d:%02d", h, m)
	return nil
}

// ParseHHMM parses a wall-clock time like "09:00" or "23:15".
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
