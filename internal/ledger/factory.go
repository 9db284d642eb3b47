package ledger

import (
	"fmt"
	"strings"
)

// Config controls ledger construction.
type Config struct {
	Mode     string
	RelayURL string
}

// New resolves the configured ledger backend. Auto mode picks the relay when
// a URL is set and falls back to the in-memory mock otherwise.
func New(cfg Config) (Ledger, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.RelayURL) != "" {
			return NewHTTPLedger(cfg.RelayURL)
		}
		return NewMockLedger(), nil
	case "http":
		return NewHTTPLedger(cfg.RelayURL)
	case "mock":
		return NewMockLedger(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger mode %q", cfg.Mode)
	}
}
