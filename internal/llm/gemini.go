package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient implements Caller for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, logger *zap.Logger) (*GeminiClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: *config,
		logger: logger,
	}, nil
}

// Call generates content for one prompt. A model handle is built per call so
// concurrent calls share no settings.
func (c *GeminiClient) Call(ctx context.Context, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.config.timeout())
	defer cancel()

	model := c.client.GenerativeModel(c.config.Model)
	if c.config.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(c.config.SystemPrompt)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}

	prompt := TruncatePrompt(req.Prompt, c.config.maxPromptChars())
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		outcome := classifyGeminiError(err)
		c.logger.Warn("gemini request failed",
			zap.String("model", c.config.Model),
			zap.Stringer("outcome", outcome.Kind),
			zap.Error(err))
		return outcome
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return Fatal(err.Error())
	}
	return Success(text)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// classifyGeminiError maps a GenerateContent error onto an Outcome.
func classifyGeminiError(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(err.Error())
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return Fatal(err.Error())
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return RateLimited(apiErr.Message, 0)
		case apiErr.Code >= 500:
			return Transient(apiErr.Message).withStatus(apiErr.Code)
		default:
			return Fatal(apiErr.Message).withStatus(apiErr.Code)
		}
	}

	return Transient(err.Error())
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
