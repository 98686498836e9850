// Package config assembles runtime settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"travelbook/order"
)

// AppName doubles as the postgres schema and the redis key prefix.
const AppName = "travelbook"

const (
	DefaultBackend = "file"
	DefaultFile    = "travel_orders.csv"
	DefaultBaseURL = "https://open.feishu.cn"
	DefaultPort    = "8080"
	DefaultMaxRows = 5000
	DefaultTimeout = 10 * time.Second
)

// Mode values for the change-event sink.
const (
	MQModeNone   = "none"
	MQModeLocal  = "local"
	MQModeRabbit = "rabbit"
)

type Sheet struct {
	AppID      string        `yaml:"app_id"`
	AppSecret  string        `yaml:"app_secret"`
	Collection string        `yaml:"collection"`
	SheetID    string        `yaml:"sheet_id"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRows    int           `yaml:"max_rows"`
}

type Config struct {
	Backend      string `yaml:"backend"`
	File         string `yaml:"file"`
	Sheet        Sheet  `yaml:"sheet"`
	RedisURL     string `yaml:"redis_url"`
	DatabaseURL  string `yaml:"database_url"`
	RabbitMQURL  string `yaml:"rabbitmq_url"`
	MQMode       string `yaml:"mq_mode"`
	AmountPolicy string `yaml:"amount_policy"`
	Port         string `yaml:"port"`
	LogFormat    string `yaml:"log_format"`
}

// ConfigError lists every setting that prevents startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Backend: DefaultBackend,
		File:    DefaultFile,
		Sheet: Sheet{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
			MaxRows: DefaultMaxRows,
		},
		MQMode:       MQModeLocal,
		AmountPolicy: "non_negative",
		Port:         DefaultPort,
		LogFormat:    "text",
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error, a missing .env is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("TRAVELBOOK_BACKEND", &c.Backend)
	str("TRAVELBOOK_FILE", &c.File)
	str("SHEET_APP_ID", &c.Sheet.AppID)
	str("SHEET_APP_SECRET", &c.Sheet.AppSecret)
	str("SHEET_COLLECTION", &c.Sheet.Collection)
	str("SHEET_ID", &c.Sheet.SheetID)
	str("SHEET_BASE_URL", &c.Sheet.BaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("RABBITMQ_URL", &c.RabbitMQURL)
	str("MQ_MODE", &c.MQMode)
	str("AMOUNT_POLICY", &c.AmountPolicy)
	str("PORT", &c.Port)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup("SHEET_TIMEOUT"); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return &ConfigError{Problems: []string{fmt.Sprintf("SHEET_TIMEOUT: %v", err)}}
		}
		c.Sheet.Timeout = d
	}
	if v, ok := lookup("SHEET_MAX_ROWS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Problems: []string{fmt.Sprintf("SHEET_MAX_ROWS: %v", err)}}
		}
		c.Sheet.MaxRows = n
	}
	return nil
}

// parseTimeout accepts a Go duration ("15s") or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate checks that the selected backend has everything it needs.
func (c Config) Validate() error {
	var problems []string
	switch c.Backend {
	case "file":
		if c.File == "" {
			problems = append(problems, "file backend needs TRAVELBOOK_FILE")
		}
	case "sheet":
		required := []struct{ name, value string }{
			{"SHEET_APP_ID", c.Sheet.AppID},
			{"SHEET_APP_SECRET", c.Sheet.AppSecret},
			{"SHEET_COLLECTION", c.Sheet.Collection},
			{"SHEET_ID", c.Sheet.SheetID},
			{"SHEET_BASE_URL", c.Sheet.BaseURL},
		}
		for _, r := range required {
			if r.value == "" {
				problems = append(problems, "sheet backend needs "+r.name)
			}
		}
		if c.Sheet.Timeout <= 0 {
			problems = append(problems, "SHEET_TIMEOUT must be positive")
		}
		if c.Sheet.MaxRows < 2 {
			problems = append(problems, "SHEET_MAX_ROWS must be at least 2")
		}
	case "pg":
		if c.DatabaseURL == "" {
			problems = append(problems, "pg backend needs DATABASE_URL")
		}
	case "mem":
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Backend))
	}

	switch c.MQMode {
	case MQModeNone, MQModeLocal:
	case MQModeRabbit:
		if c.RabbitMQURL == "" {
			problems = append(problems, "rabbit mq mode needs RABBITMQ_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mq mode %q", c.MQMode))
	}

	if _, err := order.ParseAmountPolicy(c.AmountPolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Policy returns the parsed amount policy; call Validate first.
func (c Config) Policy() order.AmountPolicy {
	p, _ := order.ParseAmountPolicy(c.AmountPolicy)
	return p
}
