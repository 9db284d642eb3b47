package completion

import (
	"fmt"
	"strings"
)

// Config controls client construction.
type Config struct {
	Mode    string
	APIKey  string
	BaseURL string
}

// NewClient resolves the configured completion backend.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
		}
		return NewMockClient(), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}
