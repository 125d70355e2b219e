// Package config provides configuration loading and validation for the CLI and API server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/cv-optimizer/internal/llm"
)

// Supported remote providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

// Defaults for the remote text-generation endpoint.
const (
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	DefaultOpenAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	DefaultOpenRouterModel    = "mistralai/mistral-7b-instruct:free"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultGeminiModel        = "gemini-1.5-flash"

	DefaultSystemPrompt = llm.DefaultSystemPrompt
)

// Config holds every tunable of the pipeline. Values come from an optional
// JSON file, then environment variables, then defaults.
type Config struct {
	// Remote endpoint
	Provider     string `json:"provider,omitempty" validate:"required,oneof=openrouter openai gemini"`
	APIKey       string `json:"api_key,omitempty"`
	Endpoint     string `json:"endpoint,omitempty" validate:"omitempty,url"`
	Model        string `json:"model,omitempty" validate:"required"`
	SystemPrompt string `json:"system_prompt,omitempty" validate:"required"`
	Referer      string `json:"referer,omitempty"` // OpenRouter attribution
	Title        string `json:"title,omitempty"`   // OpenRouter attribution

	// Remote call policy
	MaxPromptChars int           `json:"max_prompt_chars,omitempty" validate:"min=100"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty" validate:"min=5s,max=60s"`
	MaxAttempts    int           `json:"max_attempts,omitempty" validate:"min=1,max=10"`
	InitialBackoff time.Duration `json:"initial_backoff,omitempty" validate:"min=0s,max=30s"`

	// Web extraction
	FetchTimeout       time.Duration `json:"fetch_timeout,omitempty" validate:"min=1s,max=60s"`
	SummarizeThreshold int           `json:"summarize_threshold,omitempty" validate:"min=500"`
	SummaryInputChars  int           `json:"summary_input_chars,omitempty" validate:"min=500"`
	UseBrowser         bool          `json:"use_browser,omitempty"` // Render SPA pages with headless Chrome

	// Documents
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty" validate:"min=1"`
	MaxPDFPages    int   `json:"max_pdf_pages,omitempty" validate:"min=0"`

	// Keyword wire naming, "pl" or "en"
	KeywordLocale string `json:"keyword_locale,omitempty" validate:"required,oneof=pl en"`

	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Port     int    `json:"port,omitempty" validate:"min=1,max=65535"`
}

// UnmarshalJSON accepts durations as strings such as "60s".
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	aux := struct {
		*alias
		RequestTimeout string `json:"request_timeout,omitempty"`
		InitialBackoff string `json:"initial_backoff,omitempty"`
		FetchTimeout   string `json:"fetch_timeout,omitempty"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"request_timeout", aux.RequestTimeout, &c.RequestTimeout},
		{"initial_backoff", aux.InitialBackoff, &c.InitialBackoff},
		{"fetch_timeout", aux.FetchTimeout, &c.FetchTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Provider:           ProviderOpenRouter,
		Endpoint:           DefaultOpenRouterEndpoint,
		Model:              DefaultOpenRouterModel,
		SystemPrompt:       DefaultSystemPrompt,
		Title:              "CV Optimizer",
		MaxPromptChars:     12000,
		RequestTimeout:     60 * time.Second,
		MaxAttempts:        3,
		InitialBackoff:     2 * time.Second,
		FetchTimeout:       30 * time.Second,
		SummarizeThreshold: 4000,
		SummaryInputChars:  4000,
		MaxUploadBytes:     16 << 20,
		KeywordLocale:      "pl",
		LogLevel:           "info",
		Port:               8080,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: the JSON file at path (if any),
// overridden by environment variables, completed with defaults, validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("CVOPT_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := getenv("CVOPT_MODEL"); v != "" {
		c.Model = v
	}
	if v := getenv("CVOPT_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := getenv("CVOPT_KEYWORD_LOCALE"); v != "" {
		c.KeywordLocale = strings.ToLower(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v := getenv("CVOPT_USE_BROWSER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: CVOPT_USE_BROWSER: %w", err)
		}
		c.UseBrowser = b
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: PORT: %w", err)
		}
		c.Port = port
	}

	keyVar := map[string]string{
		ProviderOpenRouter: "OPENROUTER_API_KEY",
		ProviderOpenAI:     "OPENAI_API_KEY",
		ProviderGemini:     "GEMINI_API_KEY",
	}
	provider := c.Provider
	if provider == "" {
		provider = ProviderOpenRouter
	}
	if v := getenv(keyVar[provider]); v != "" {
		c.APIKey = v
	} else if v := getenv("CVOPT_API_KEY"); v != "" {
		c.APIKey = v
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Provider != ProviderGemini && c.Endpoint == "" {
		return fmt.Errorf("config error: 'endpoint' is required for provider %s", c.Provider)
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
// Endpoint and model defaults follow the selected provider.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Endpoint == "" {
		switch result.Provider {
		case ProviderOpenAI:
			result.Endpoint = DefaultOpenAIEndpoint
		case ProviderGemini:
		default:
			result.Endpoint = defaults.Endpoint
		}
	}
	if result.Model == "" {
		switch result.Provider {
		case ProviderOpenAI:
			result.Model = DefaultOpenAIModel
		case ProviderGemini:
			result.Model = DefaultGeminiModel
		default:
			result.Model = defaults.Model
		}
	}

	if result.SystemPrompt == "" {
		result.SystemPrompt = defaults.SystemPrompt
	}
	if result.Referer == "" {
		result.Referer = defaults.Referer
	}
	if result.Title == "" {
		result.Title = defaults.Title
	}
	if result.KeywordLocale == "" {
		result.KeywordLocale = defaults.KeywordLocale
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	if result.MaxPromptChars == 0 {
		result.MaxPromptChars = defaults.MaxPromptChars
	}
	if result.RequestTimeout == 0 {
		result.RequestTimeout = defaults.RequestTimeout
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.InitialBackoff == 0 {
		result.InitialBackoff = defaults.InitialBackoff
	}
	if result.FetchTimeout == 0 {
		result.FetchTimeout = defaults.FetchTimeout
	}
	if result.SummarizeThreshold == 0 {
		result.SummarizeThreshold = defaults.SummarizeThreshold
	}
	if result.SummaryInputChars == 0 {
		result.SummaryInputChars = defaults.SummaryInputChars
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bools cannot distinguish unset from false, so UseBrowser is never merged.

	return result
}
