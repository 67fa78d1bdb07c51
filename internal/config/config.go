package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken   string
	TelegramChatID  int64
	DatabaseURL     string
	RecurrenceTime  string // HH:MM, local time
	SummaryInterval time.Duration
	LogLevel        string
	LogFormat       string
}

// fileConfig mirrors the optional YAML file. Absent keys keep their defaults.
type fileConfig struct {
	DatabaseURL          string `yaml:"database_url"`
	TelegramToken        string `yaml:"telegram_token"`
	TelegramChatID       int64  `yaml:"telegram_chat_id"`
	RecurrenceTime       string `yaml:"recurrence_time"`
	SummaryIntervalHours int    `yaml:"summary_interval_hours"`
	LogLevel             string `yaml:"log_level"`
	LogFormat            string `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		DatabaseURL:     "daily_planner.db",
		RecurrenceTime:  "00:05",
		SummaryInterval: 5 * time.Hour,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// BotEnabled reports whether a Telegram token was configured.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load builds the configuration from defaults, then the YAML file at path
// (CONFIG_FILE when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return cfg, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.TelegramToken, fc.TelegramToken)
	setString(&cfg.RecurrenceTime, fc.RecurrenceTime)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.TelegramChatID != 0 {
		cfg.TelegramChatID = fc.TelegramChatID
	}
	if fc.SummaryIntervalHours < 0 {
		return fmt.Errorf("config %s: summary_interval_hours must not be negative", path)
	}
	if fc.SummaryIntervalHours > 0 {
		cfg.SummaryInterval = time.Duration(fc.SummaryIntervalHours) * time.Hour
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.TelegramToken, os.Getenv("TELEGRAM_TOKEN"))
	setString(&cfg.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&cfg.RecurrenceTime, os.Getenv("RECURRENCE_TIME"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("LOG_FORMAT"))

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if interval := parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))); interval > 0 {
		cfg.SummaryInterval = interval
	}
	return nil
}

func setString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
