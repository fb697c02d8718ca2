// Package llm wraps the OpenAI chat completion API behind the small
// interface the orchestrator consumes. Transient failures (rate limits,
// 5xx, network timeouts) are retried with exponential backoff; anything else
// fails immediately.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client is the completion interface the orchestrator depends on. The
// returned message is either final text or carries one or more requested
// tool calls.
type Client interface {
	Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

// Options configures the OpenAI-backed client.
type Options struct {
	APIKey         string
	BaseURL        string // empty means the public API
	Model          string
	Temperature    float32
	RequestTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// OpenAIClient calls the OpenAI chat completion API with tool schemas
// attached.
type OpenAIClient struct {
	client *openai.Client
	opts   Options
	logger *zap.Logger
}

// NewOpenAIClient constructs an OpenAI-backed LLM client.
func NewOpenAIClient(opts Options, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger,
	}
}

// Chat sends the assembled request and returns the model's message. Each
// attempt runs under its own request timeout; retries respect the caller's
// context.
func (c *OpenAIClient) Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	var msg openai.ChatCompletionMessage
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("model call failed, will retry", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("llm: empty completion response"))
		}
		msg = resp.Choices[0].Message
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff
	policy.MaxInterval = c.opts.MaxBackoff
	policy.MaxElapsedTime = 0 // bounded by retry count and caller context

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.opts.MaxRetries)), ctx))
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	return msg, nil
}

// retryable reports whether the failure is transient. API errors expose a
// status code; network failures are matched by type, with a substring check
// as the provider SDK's errors are not otherwise structured.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "connection reset", "timeout", "temporarily unavailable"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
