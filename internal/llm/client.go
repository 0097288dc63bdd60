// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
	"io"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserPrompt builds a single-turn request.
func UserPrompt(prompt string) []ChatMessage {
	return []ChatMessage{{Role: "user", Content: prompt}}
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// Select returns a client for preferred, falling back to whichever provider
// has a key. It returns nil when no key is configured.
func Select(preferred Provider, openAIKey, anthropicKey string) (Client, error) {
	keys := map[Provider]string{ProviderOpenAI: openAIKey, ProviderAnthropic: anthropicKey}
	if key := keys[preferred]; key != "" {
		return NewClient(preferred, key)
	}
	for _, p := range []Provider{ProviderOpenAI, ProviderAnthropic} {
		if keys[p] != "" {
			return NewClient(p, keys[p])
		}
	}
	return nil, nil
}
