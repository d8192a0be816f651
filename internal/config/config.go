// internal/config/config.go
//
// Runtime configuration.
// Sources, later ones winning:
//   1. Defaults (five-minute game, 50 points to win, six swatches).
//   2. Optional YAML file (path from CONFIG_FILE or -config).
//   3. Environment variables (a `.env` file is loaded by main via godotenv).
//
// Environment variables:
//   PORT, LOG_LEVEL, LOG_FORMAT (json|console), APP_ENV (production enables
//   Secure cookies), CLIENT_ORIGINS (comma separated), COOKIE_NAME,
//   SESSION_SECRET, SESSION_TTL, TOKEN_TTL, REAP_INTERVAL, STORE_DSN, SEED.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/colorgame/internal/game"
)

// devSecret is used when SESSION_SECRET is unset outside production.
const devSecret = "dev_secret_change_me"

// Config is the full runtime configuration.
type Config struct {
	Port          string        `yaml:"port"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	Env           string        `yaml:"env"`
	ClientOrigins []string      `yaml:"client_origins"`
	CookieName    string        `yaml:"cookie_name"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
	StoreDSN      string        `yaml:"store_dsn"` // empty = in-memory store
	Seed          uint64        `yaml:"seed"`      // non-zero = deterministic rounds
	Rules         game.Rules    `yaml:"rules"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:          "5175",
		LogLevel:      "info",
		LogFormat:     "json",
		Env:           "development",
		ClientOrigins: []string{"http://localhost:5173"},
		CookieName:    "colorgame_session",
		SessionTTL:    30 * time.Minute,
		TokenTTL:      14 * 24 * time.Hour,
		ReapInterval:  time.Minute,
		Rules:         game.DefaultRules(),
	}
}

// Production reports whether Secure cookies and a real secret are required.
func (c Config) Production() bool { return c.Env == "production" }

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.SessionSecret == "" && !cfg.Production() {
		cfg.SessionSecret = devSecret
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Env = getEnv("APP_ENV", c.Env)
	c.CookieName = getEnv("COOKIE_NAME", c.CookieName)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.StoreDSN = getEnv("STORE_DSN", c.StoreDSN)
	if v := os.Getenv("CLIENT_ORIGINS"); v != "" {
		c.ClientOrigins = splitList(v)
	}

	var err error
	if c.SessionTTL, err = getEnvDuration("SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.ReapInterval, err = getEnvDuration("REAP_INTERVAL", c.ReapInterval); err != nil {
		return err
	}
	if v := os.Getenv("SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SEED: %w", err)
		}
		c.Seed = n
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	if c.Production() && (c.SessionSecret == "" || c.SessionSecret == devSecret) {
		return errors.New("config: SESSION_SECRET must be set in production")
	}
	if c.SessionTTL <= 0 || c.TokenTTL <= 0 || c.ReapInterval <= 0 {
		return errors.New("config: session_ttl, token_ttl and reap_interval must be positive")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
