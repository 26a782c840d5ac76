/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v3"
)

const (
	OauthStateTTL          = 10 * time.Minute
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultTimezone        = "America/Chicago"
	DefaultGeminiModel     = "gemini-2.5-flash"
	DefaultEventMinutes    = 60
	DefaultScheduleHorizon = 14
)

// GoogleCalendarScopes are requested when a user connects their calendar.
var GoogleCalendarScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Config holds the application configuration values.
type Config struct {
	Port                 string
	// AppBaseURL is where the web client is served. It seeds the default
	// OAuth redirect and CORS origin.
	AppBaseURL           string
	SecretKey            string
	EncryptionKey        string
	TokenTTL             time.Duration
	StorageType          string
	DatabaseURL          string
	GCPProjectID         string
	RedisURL             string
	GeminiAPIKey         string
	GeminiModel          string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	CORSAllowedOrigins   string
	OtelExporterEndpoint string
	LogLevel             string
	LogFile              string
	AuthRateLimitRPS     float64
	AuthRateLimitBurst   int
	ScheduleEventMinutes int
	ScheduleHorizonDays  int
	DefaultTimezone      string
	Version              string
	GoogleOAuthConfig    *oauth2.Config
}

// CalendarConfigured reports whether Google OAuth client credentials are present.
func (c *Config) CalendarConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LoadConfig loads configuration from environment variables, falling back to
// the YAML file named by CONFIG_FILE for anything the environment leaves unset.
func LoadConfig() (*Config, error) {
	l := &loader{}
	if path, ok := os.LookupEnv("CONFIG_FILE"); ok && path != "" {
		values, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		l.file = values
	}

	cfg := &Config{
		Port:                 l.getEnv("PORT", "8080"),
		AppBaseURL:           strings.TrimRight(l.getEnv("APP_BASE_URL", "http://localhost:5173"), "/"),
		SecretKey:            l.getEnv("SECRET_KEY", ""),
		EncryptionKey:        l.getEnv("ENCRYPTION_KEY", ""),
		StorageType:          l.getEnv("STORAGE_TYPE", "sqlite"),
		DatabaseURL:          l.getEnv("DATABASE_URL", ""),
		GCPProjectID:         l.getEnv("GCP_PROJECT_ID", ""),
		RedisURL:             l.getEnv("REDIS_URL", ""),
		GeminiAPIKey:         l.getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          l.getEnv("GEMINI_MODEL", DefaultGeminiModel),
		GoogleClientID:       l.getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   l.getEnv("GOOGLE_CLIENT_SECRET", ""),
		OtelExporterEndpoint: l.getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		LogLevel:             l.getEnv("LOG_LEVEL", "info"),
		LogFile:              l.getEnv("LOG_FILE", ""),
		DefaultTimezone:      l.getEnv("DEFAULT_TIMEZONE", DefaultTimezone),
		Version:              l.getEnv("VERSION", "dev"),
	}

	cfg.GoogleRedirectURL = l.getEnv("GOOGLE_REDIRECT_URI", cfg.AppBaseURL+"/settings/oauth/callback")
	cfg.CORSAllowedOrigins = l.getEnv("CORS_ALLOWED_ORIGINS", cfg.AppBaseURL)

	var err error
	if cfg.TokenTTL, err = l.getDuration("TOKEN_TTL", DefaultTokenTTL); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPS, err = l.getFloat("AUTH_RATE_LIMIT_RPS", 1); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitBurst, err = l.getInt("AUTH_RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.ScheduleEventMinutes, err = l.getInt("SCHEDULE_EVENT_MINUTES", DefaultEventMinutes); err != nil {
		return nil, err
	}
	if cfg.ScheduleHorizonDays, err = l.getInt("SCHEDULE_HORIZON_DAYS", DefaultScheduleHorizon); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is not set")
	}

	switch cfg.StorageType {
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "smartlife.db"
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("STORAGE_TYPE is 'postgres' but DATABASE_URL is not set")
		}
	case "firestore":
		if cfg.GCPProjectID == "" {
			return nil, fmt.Errorf("STORAGE_TYPE is 'firestore' but GCP_PROJECT_ID is not set")
		}
	case "inmemory":
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE: %s", cfg.StorageType)
	}

	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
		}
		if n := len(key); n != 16 && n != 24 && n != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 16, 24 or 32 bytes, got %d", n)
		}
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE is invalid: %w", err)
	}

	if cfg.ScheduleEventMinutes <= 0 {
		return nil, fmt.Errorf("SCHEDULE_EVENT_MINUTES must be positive")
	}

	cfg.GoogleOAuthConfig = &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       GoogleCalendarScopes,
		Endpoint:     google.Endpoint,
	}

	return cfg, nil
}

type loader struct {
	file map[string]string
}

func (l *loader) getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := l.file[key]; exists {
		return value
	}
	return fallback
}

func (l *loader) getInt(key string, fallback int) (int, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func (l *loader) getFloat(key string, fallback float64) (float64, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func (l *loader) getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

// readConfigFile reads a flat YAML mapping. ${VAR} references are expanded
// from the environment and keys are matched case-insensitively against the
// environment variable names.
func readConfigFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(parsed))
	for k, v := range parsed {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}
