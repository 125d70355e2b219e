package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Request is one prompt sent to the remote endpoint.
type Request struct {
	Prompt          string
	MaxOutputTokens int
	// Temperature is omitted from the request when nil.
	Temperature *float64
}

// Temperature returns a pointer to t for use in Request.
func Temperature(t float64) *float64 {
	return &t
}

// Caller is an abstraction over remote text-generation providers.
// Implementations never panic and never return a nil-equivalent failure:
// every call yields exactly one Outcome.
type Caller interface {
	Call(ctx context.Context, req Request) Outcome
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, req Request) Outcome

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// NewCaller creates the client for the configured provider. Gemini clients
// hold a connection and implement io.Closer.
func NewCaller(ctx context.Context, config *Config, logger *zap.Logger) (Caller, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, logger)
	case ProviderOpenRouter, ProviderOpenAI, "":
		return NewChatClient(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", config.Provider)
	}
}

// TruncatePrompt cuts prompt to at most limit runes and appends
// TruncationMarker when anything was removed.
func TruncatePrompt(prompt string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(prompt) <= limit {
		return prompt
	}
	count := 0
	for i := range prompt {
		if count == limit {
			return prompt[:i] + TruncationMarker
		}
		count++
	}
	return prompt
}
