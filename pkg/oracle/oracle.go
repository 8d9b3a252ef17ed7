package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	ErrEmptyResponse = errors.New("oracle returned an empty response")
	ErrStatus        = errors.New("oracle returned an error status")
)

// StatusError carries the HTTP status of a failed completion call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Retryable reports whether repeating the request can succeed.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return true
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

type Request struct {
	Model  string
	System string
	Prompt string
}

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Options struct {
	BaseURL       string
	APIKey        string
	HTTPClient    *http.Client
	Timeout       time.Duration
	MaxConcurrent int64
	Temperature   float64
	Logger        *zap.Logger
}

type Option func(*Options)

func WithBaseURL(url string) Option {
	return func(o *Options) { o.BaseURL = strings.TrimRight(url, "/") }
}

func WithAPIKey(key string) Option {
	return func(o *Options) { o.APIKey = key }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxConcurrent caps the number of in-flight requests.
func WithMaxConcurrent(n int64) Option {
	return func(o *Options) { o.MaxConcurrent = n }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// HTTPClient talks to an OpenAI compatible chat completions endpoint.
type HTTPClient struct {
	opts Options
	sem  *semaphore.Weighted
}

func New(opts ...Option) *HTTPClient {
	options := Options{
		BaseURL:       "https://api.openai.com/v1",
		Timeout:       120 * time.Second,
		MaxConcurrent: 8,
		Temperature:   1,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: options.Timeout}
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.MaxConcurrent < 1 {
		options.MaxConcurrent = 1
	}

	return &HTTPClient{
		opts: options,
		sem:  semaphore.NewWeighted(options.MaxConcurrent),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends req as a system plus user message pair and returns the
// trimmed content of the first choice.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	c.opts.Logger.Debug("oracle call",
		zap.String("model", req.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrStatus, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
