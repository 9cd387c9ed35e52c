package oracle

import (
	"fmt"
	"strings"
)

// NewClient creates an oracle client based on the provided configuration.
// The client is wrapped with a token-bucket rate limiter.
func NewClient(cfg Config) (Client, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		client, err = newGeminiClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	return RateLimited(client, cfg.RateLimit), nil
}
