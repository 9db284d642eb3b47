package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the interview service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	CompletionMode        string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	CompletionModel       string
	CompletionTemperature float32

	LedgerMode     string
	LedgerRelayURL string

	SaveMode     string
	PointsSource string

	ContentStoreURL    string
	ContentStoreAPIKey string
	IPFSGatewayURL     string

	RowQueryGatewayURL string
	RowQueryTable      string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mateview"),
		AllowAnyOrigin:   false,

		CompletionMode:        envOrDefault("COMPLETION_MODE", "auto"),
		OpenAIAPIKey:          stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:         stringsTrimSpace("OPENAI_BASE_URL"),
		CompletionModel:       envOrDefault("COMPLETION_MODEL", "gpt-3.5-turbo"),
		CompletionTemperature: 0.7,

		LedgerMode:     envOrDefault("LEDGER_MODE", "auto"),
		LedgerRelayURL: stringsTrimSpace("LEDGER_RELAY_URL"),

		SaveMode:     envOrDefault("SAVE_MODE", "inline"),
		PointsSource: envOrDefault("POINTS_SOURCE", "rowquery"),

		ContentStoreURL:    stringsTrimSpace("CONTENT_STORE_URL"),
		ContentStoreAPIKey: stringsTrimSpace("CONTENT_STORE_API_KEY"),
		IPFSGatewayURL:     envOrDefault("IPFS_GATEWAY_URL", "https://ipfs.io"),

		RowQueryGatewayURL: stringsTrimSpace("ROWQUERY_GATEWAY_URL"),
		RowQueryTable:      envOrDefault("ROWQUERY_TABLE", "interview_messages"),

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionTemperature, err = floatFromEnv("COMPLETION_TEMPERATURE", cfg.CompletionTemperature)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.CompletionTemperature < 0 || cfg.CompletionTemperature > 2 {
		return Config{}, fmt.Errorf("COMPLETION_TEMPERATURE must be in [0, 2]")
	}
	switch cfg.SaveMode {
	case "inline", "blob":
	default:
		return Config{}, fmt.Errorf("SAVE_MODE must be inline or blob")
	}
	switch cfg.PointsSource {
	case "ledger", "rowquery":
	default:
		return Config{}, fmt.Errorf("POINTS_SOURCE must be ledger or rowquery")
	}
	// With no relay configured the auto ledger mode falls back to the mock,
	// and the mock stack serves saves and points without external gateways.
	mockStack := cfg.LedgerMode == "mock" || (cfg.LedgerMode == "auto" && cfg.LedgerRelayURL == "")
	if cfg.SaveMode == "blob" && cfg.ContentStoreURL == "" && !mockStack {
		return Config{}, fmt.Errorf("SAVE_MODE=blob requires CONTENT_STORE_URL")
	}
	if cfg.PointsSource == "rowquery" && cfg.RowQueryGatewayURL == "" && !mockStack {
		return Config{}, fmt.Errorf("POINTS_SOURCE=rowquery requires ROWQUERY_GATEWAY_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float32) (float32, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return float32(f), nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
