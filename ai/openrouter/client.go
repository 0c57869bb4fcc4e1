// Package openrouter is a small chat-completions client for OpenRouter used
// to generate draft bodies.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/httpclient"
)

const (
	// DefaultModel should match generation defaults in am/defaults.go
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultTimeout     = 15 * time.Second
	DefaultRetries     = 1
	DefaultTemperature = 0.7

	defaultRetryDelay = 500 * time.Millisecond
)

// ErrNotConfigured is returned by Chat when no API key is set.
var ErrNotConfigured = errors.New("OPENROUTER_API_KEY is not configured.")

// RequestError is a failed completion. Status is the upstream HTTP status,
// or 502 when the failure happened before a usable response arrived.
type RequestError struct {
	Message string
	Status  int
}

func (e *RequestError) Error() string {
	return e.Message
}

// Retryable reports whether another attempt may succeed.
func (e *RequestError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Config holds client configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature *float64      // nil = DefaultTemperature
	Timeout     time.Duration // per attempt; 0 = DefaultTimeout
	Retries     *int          // nil = DefaultRetries
	BaseURL     string
	HTTPClient  *http.Client // nil = address-guarded client
	Logger      *zap.SugaredLogger
}

// Client calls the chat completions endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
	retryDelay time.Duration
}

// NewClient applies defaults and builds a client. A missing API key is not
// an error here; Chat reports it.
func NewClient(config Config) *Client {
	if strings.TrimSpace(config.Model) == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		t := DefaultTemperature
		config.Temperature = &t
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Retries == nil || *config.Retries < 0 {
		r := DefaultRetries
		config.Retries = &r
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	hc := config.HTTPClient
	if hc == nil {
		// per-attempt deadlines come from the request context
		hc = httpclient.New(0, httpclient.Options{})
	}

	return &Client{
		config:     config,
		httpClient: hc,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.config.APIKey) != ""
}

// Model returns the model requests are sent to.
func (c *Client) Model() string {
	return c.config.Model
}

// ChatCompletionRequest is the wire request body.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the subset of the response body we read.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is a system + user prompt pair.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// ChatResponse is the trimmed completion text.
type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Chat generates one completion. Timeouts, 429 and 5xx responses (empty
// content counts as 502) are retried after a short pause, up to the
// configured retry count. Every failure other than ErrNotConfigured comes
// back as a *RequestError.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body := ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: *c.config.Temperature,
	}

	retries := *c.config.Retries
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := c.attempt(ctx, body)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("OpenRouter request succeeded after retry", "attempts", attempt+1, "model", resp.Model)
			}
			c.logger.Debugw("OpenRouter response",
				"model", resp.Model,
				"content_length", len(resp.Content),
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens,
				"estimated_cost_usd", CalculateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
			)
			return resp, nil
		}
		lastErr = err

		if attempt >= retries || !shouldRetry(err) || ctx.Err() != nil {
			break
		}
		c.logger.Warnw("OpenRouter request retrying", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	var reqErr *RequestError
	if errors.As(lastErr, &reqErr) {
		return nil, reqErr
	}
	return nil, &RequestError{Message: lastErr.Error(), Status: http.StatusBadGateway}
}

func (c *Client) attempt(ctx context.Context, body ChatCompletionRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &RequestError{Message: "OpenRouter returned empty content.", Status: http.StatusBadGateway}
	}
	model := resp.Model
	if model == "" {
		model = body.Model
	}
	return &ChatResponse{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   model,
		Usage:   resp.Usage,
	}, nil
}

// CreateChatCompletion sends one request with no retries.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("X-Title", "postpulse")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "OpenRouter request failed."
		if len(bytes.TrimSpace(respBody)) > 0 {
			msg = fmt.Sprintf("OpenRouter request failed (%d).", resp.StatusCode)
		}
		return nil, &RequestError{Message: msg, Status: resp.StatusCode}
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &chatResp, nil
}

func shouldRetry(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
