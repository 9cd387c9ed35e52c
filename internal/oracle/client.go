package oracle

import (
	"context"
	"strings"
)

// Client is the interface to the external text/JSON generation service. The
// pipeline treats it as a black box: prompt in, text out. Implementations
// must honor context cancellation and must not hold process-wide locks while
// blocked on the network.
type Client interface {
	Generate(ctx context.Context, prompt, system string, wantJSON bool) (string, error)
}

// Config holds configuration for constructing an oracle client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	RateLimit   int // requests per minute, 0 = default
}

// cleanJSONResponse strips markdown code fences that models like to wrap
// around JSON output.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
