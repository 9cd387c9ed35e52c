// Package oracle provides clients for external language model services.
// It supports the Gemini and Anthropic APIs behind a single Generate
// interface, with token-bucket rate limiting and a scripted test double.
package oracle
