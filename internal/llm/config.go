// Package llm provides the remote text-generation clients and the retry policy
// wrapped around them. Every call returns an Outcome value; failures are never
// collapsed into a single error type.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenRouter is the OpenRouter chat completions API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderOpenAI is any other OpenAI-compatible chat completions API
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultMaxPromptChars bounds the user prompt sent to the endpoint.
	DefaultMaxPromptChars = 12000
	// DefaultTimeout covers connection and response of a single call.
	DefaultTimeout = 60 * time.Second
	// TruncationMarker is appended to prompts cut at the ceiling.
	TruncationMarker = "... [text truncated due to length]"
	// DefaultSystemPrompt fixes the system role of every call.
	DefaultSystemPrompt = "You are an expert resume editor and career advisor. " +
		"Always respond in the same language as the CV or job description provided by the user."
)

// Config holds the endpoint configuration for a Caller.
type Config struct {
	Provider       Provider
	APIKey         string
	Endpoint       string
	Model          string
	SystemPrompt   string
	MaxPromptChars int
	Timeout        time.Duration
	// Referer and Title are sent as OpenRouter attribution headers when set.
	Referer string
	Title   string
}

// DefaultConfig returns the default configuration (OpenRouter).
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenRouter,
		Endpoint:       "https://openrouter.ai/api/v1/chat/completions",
		Model:          "mistralai/mistral-7b-instruct:free",
		SystemPrompt:   DefaultSystemPrompt,
		MaxPromptChars: DefaultMaxPromptChars,
		Timeout:        DefaultTimeout,
	}
}

// WithModel returns a copy of the Config using model.
func (c *Config) WithModel(model string) *Config {
	newConfig := *c
	newConfig.Model = model
	return &newConfig
}

func (c *Config) maxPromptChars() int {
	if c.MaxPromptChars > 0 {
		return c.MaxPromptChars
	}
	return DefaultMaxPromptChars
}

func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
