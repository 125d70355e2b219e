package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ChatClient implements Caller for OpenAI-compatible chat completion APIs
// such as OpenRouter.
type ChatClient struct {
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// NewChatClient creates a chat completions client. The HTTP client timeout
// is the configured call timeout.
func NewChatClient(config *Config, logger *zap.Logger) *ChatClient {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatClient{
		httpClient: &http.Client{Timeout: config.timeout()},
		config:     *config,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Call sends one chat completion request and classifies the answer.
func (c *ChatClient) Call(ctx context.Context, req Request) Outcome {
	if c.config.APIKey == "" {
		return Fatal("API key is required")
	}

	messages := make([]chatMessage, 0, 2)
	if c.config.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.config.SystemPrompt})
	}
	messages = append(messages, chatMessage{
		Role:    "user",
		Content: TruncatePrompt(req.Prompt, c.config.maxPromptChars()),
	})

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Fatal(fmt.Sprintf("encode request: %v", err))
	}

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil {
		c.logger.Warn("chat completion request failed",
			zap.String("model", c.config.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Transient(err.Error())
	}

	outcome := classifyChatResponse(resp.status, resp.header, resp.body)
	c.logger.Debug("chat completion finished",
		zap.String("model", c.config.Model),
		zap.Int("status", resp.status),
		zap.Stringer("outcome", outcome.Kind),
		zap.Int("bytes", len(resp.body)),
		zap.Duration("elapsed", time.Since(start)))
	return outcome
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

func (c *ChatClient) post(ctx context.Context, body []byte) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if c.config.Referer != "" {
		req.Header.Set("HTTP-Referer", c.config.Referer)
	}
	if c.config.Title != "" {
		req.Header.Set("X-Title", c.config.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &rawResponse{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

// classifyChatResponse maps an HTTP answer onto an Outcome.
func classifyChatResponse(status int, header http.Header, body []byte) Outcome {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(snippet(body), parseRetryAfter(header.Get("Retry-After")))
	case status >= 500:
		return Transient(fmt.Sprintf("server error: %s", snippet(body))).withStatus(status)
	case status < 200 || status >= 300:
		return Fatal(fmt.Sprintf("request rejected: %s", snippet(body))).withStatus(status)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Fatal(fmt.Sprintf("decode response: %v", err)).withStatus(status)
	}
	if parsed.Error != nil && len(parsed.Choices) == 0 {
		// OpenRouter reports upstream provider failures inside a 200 body.
		return Transient(fmt.Sprintf("provider error: %s", parsed.Error.Message)).withStatus(status)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return Fatal("response has no choices[0].message.content").withStatus(status)
	}
	return Success(*parsed.Choices[0].Message.Content).withStatus(status)
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
