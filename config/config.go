// Package config loads Iris settings from the environment, optionally seeded
// from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v2"
)

const (
	// DefaultUserAgent identifies Iris to origin servers and robots.txt.
	DefaultUserAgent = "Cortex-Iris/1.0 (Research Bot)"

	envPrefix = "IRIS_"
)

// Settings holds the full service configuration.
type Settings struct {
	// Service
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Browser
	BrowserType        string `yaml:"browser_type"`
	Headless           bool   `yaml:"headless"`
	PageTimeoutMS      int    `yaml:"page_timeout_ms"`
	WaitAfterLoadMS    int    `yaml:"wait_after_load_ms"`
	MaxConcurrentPages int    `yaml:"max_concurrent_pages"`
	UserAgent          string `yaml:"user_agent"`

	// Content extraction
	MaxContentLength int  `yaml:"max_content_length"`
	ExtractMetadata  bool `yaml:"extract_metadata"`
	ExtractLinks     bool `yaml:"extract_links"`

	// Cache (Redis)
	RedisURL        string `yaml:"redis_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	CacheEnabled    bool   `yaml:"cache_enabled"`

	// Politeness
	MinDelayBetweenRequestsMS int  `yaml:"min_delay_between_requests_ms"`
	RespectRobotsTxt          bool `yaml:"respect_robots_txt"`
	MaxRetries                int  `yaml:"max_retries"`

	// Sentinel gateway
	TestingMode      bool   `yaml:"testing_mode"`
	SentinelURL      string `yaml:"sentinel_url"`
	SatelliteID      string `yaml:"satellite_id"`
	SatelliteSecret  string `yaml:"satellite_secret"`
	SentinelCertPath string `yaml:"sentinel_cert_path"`
	SentinelKeyPath  string `yaml:"sentinel_key_path"`
	SentinelCAPath   string `yaml:"sentinel_ca_path"`
}

// Defaults returns settings with every field at its documented default.
func Defaults() *Settings {
	return &Settings{
		Host:     "0.0.0.0",
		Port:     8060,
		LogLevel: "info",

		BrowserType:        "chromium",
		Headless:           true,
		PageTimeoutMS:      30000,
		WaitAfterLoadMS:    2000,
		MaxConcurrentPages: 3,
		UserAgent:          DefaultUserAgent,

		MaxContentLength: 500000,
		ExtractMetadata:  true,
		ExtractLinks:     true,

		RedisURL:        "redis://redis:6379/4",
		CacheTTLSeconds: 3600,
		CacheEnabled:    true,

		MinDelayBetweenRequestsMS: 1000,
		RespectRobotsTxt:          true,
		MaxRetries:                2,

		SentinelURL:      "https://sentinel:8443",
		SatelliteID:      "satellite-iris",
		SentinelCertPath: "/run/secrets/iris_cert",
		SentinelKeyPath:  "/run/secrets/iris_key",
		SentinelCAPath:   "/run/secrets/ca_cert",
	}
}

// Load builds settings from defaults, an optional YAML file named by
// CONFIG_FILE, and finally IRIS_-prefixed environment variables. Later
// sources win.
func Load() (*Settings, error) {
	s := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := s.loadFile(path); err != nil {
			return nil, err
		}
	}

	s.loadEnv()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadFile overlays values from a YAML config file.
func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// loadEnv overlays values from environment variables.
func (s *Settings) loadEnv() {
	getStr(&s.Host, "HOST")
	getInt(&s.Port, "PORT")
	getStr(&s.LogLevel, "LOG_LEVEL")

	getStr(&s.BrowserType, "BROWSER_TYPE")
	getBool(&s.Headless, "HEADLESS")
	getInt(&s.PageTimeoutMS, "PAGE_TIMEOUT_MS")
	getInt(&s.WaitAfterLoadMS, "WAIT_AFTER_LOAD_MS")
	getInt(&s.MaxConcurrentPages, "MAX_CONCURRENT_PAGES")
	getStr(&s.UserAgent, "USER_AGENT")

	getInt(&s.MaxContentLength, "MAX_CONTENT_LENGTH")
	getBool(&s.ExtractMetadata, "EXTRACT_METADATA")
	getBool(&s.ExtractLinks, "EXTRACT_LINKS")

	getStr(&s.RedisURL, "REDIS_URL")
	getInt(&s.CacheTTLSeconds, "CACHE_TTL_SECONDS")
	getBool(&s.CacheEnabled, "CACHE_ENABLED")

	getInt(&s.MinDelayBetweenRequestsMS, "MIN_DELAY_BETWEEN_REQUESTS_MS")
	getBool(&s.RespectRobotsTxt, "RESPECT_ROBOTS_TXT")
	getInt(&s.MaxRetries, "MAX_RETRIES")

	getBool(&s.TestingMode, "TESTING_MODE")
	getStr(&s.SentinelURL, "SENTINEL_URL")
	getStr(&s.SatelliteID, "SATELLITE_ID")
	getStr(&s.SatelliteSecret, "SATELLITE_SECRET")
	getStr(&s.SentinelCertPath, "SENTINEL_CERT_PATH")
	getStr(&s.SentinelKeyPath, "SENTINEL_KEY_PATH")
	getStr(&s.SentinelCAPath, "SENTINEL_CA_PATH")
}

// Validate checks the settings for values the service cannot run with.
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", s.Port)
	}
	if s.PageTimeoutMS <= 0 {
		return fmt.Errorf("page_timeout_ms must be > 0, got %d", s.PageTimeoutMS)
	}
	if s.WaitAfterLoadMS < 0 {
		return fmt.Errorf("wait_after_load_ms must be >= 0, got %d", s.WaitAfterLoadMS)
	}
	if s.MaxConcurrentPages <= 0 {
		return fmt.Errorf("max_concurrent_pages must be > 0, got %d", s.MaxConcurrentPages)
	}
	if s.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be > 0, got %d", s.MaxContentLength)
	}
	if s.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be > 0, got %d", s.CacheTTLSeconds)
	}
	if s.MinDelayBetweenRequestsMS < 0 {
		return fmt.Errorf("min_delay_between_requests_ms must be >= 0, got %d", s.MinDelayBetweenRequestsMS)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", s.MaxRetries)
	}
	if s.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	return nil
}

// PageTimeout returns the navigation timeout as a duration.
func (s *Settings) PageTimeout() time.Duration {
	return time.Duration(s.PageTimeoutMS) * time.Millisecond
}

// CacheTTL returns the response cache TTL as a duration.
func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// Addr returns the host:port the HTTP server listens on.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadSecret reads a Docker secret file, returning "" when it is absent.
func LoadSecret(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// GetSatelliteSecret returns the satellite secret from the environment or
// the conventional Docker secret path.
func (s *Settings) GetSatelliteSecret() string {
	if s.SatelliteSecret != "" {
		return s.SatelliteSecret
	}
	return LoadSecret("/run/secrets/iris_satellite_secret")
}

func getStr(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func getInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func getBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			*dst = b
		}
	}
}
