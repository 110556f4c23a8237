// Package llm implements the generation boundary of a practice session on
// an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/pkg/logger"
)

// Config holds the chat client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.openai.com/v1",
		ChatModel:  openai.GPT4oMini,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// ChatClient is the subset of *openai.Client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithChatClient replaces the API client.
func WithChatClient(c ChatClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.chat = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(cl *Client) {
		if d >= 0 {
			cl.backoff = d
		}
	}
}

// Client generates questions, assessments and definitions.
type Client struct {
	chat    ChatClient
	cfg     Config
	backoff time.Duration
	logger  logger.Logger
}

var _ session.Generator = (*Client)(nil)

// New creates a Client. Unset config values take their defaults.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	c := &Client{cfg: cfg, backoff: time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.chat == nil {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		c.chat = openai.NewClientWithConfig(clientConfig)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("llm")
	}
	return c
}

// GenerateQuestions returns exactly n comprehension questions for passage.
func (c *Client) GenerateQuestions(ctx context.Context, passage string, n int) ([]string, error) {
	if n <= 0 {
		return nil, session.ErrInvalidCount
	}
	out, err := c.complete(ctx, questionTemperature, questionsPrompt(passage, n))
	if err != nil {
		return nil, err
	}
	return parseQuestions(out, n)
}

// Assess judges answer against the passage and question.
func (c *Client) Assess(ctx context.Context, passage, question, answer string) (session.Feedback, error) {
	out, err := c.complete(ctx, analysisTemperature, assessmentPrompt(passage, question, answer))
	if err != nil {
		return session.Feedback{}, err
	}
	return parseAssessment(out)
}

// ExtractVocabulary returns up to limit words from passage worth learning.
func (c *Client) ExtractVocabulary(ctx context.Context, passage string, limit int) ([]string, error) {
	out, err := c.complete(ctx, analysisTemperature, vocabularyPrompt(passage, limit))
	if err != nil {
		return nil, err
	}
	return parseWordList(out, limit)
}

// DefineWord returns a definition and example sentences for term.
func (c *Client) DefineWord(ctx context.Context, term string) (session.Definition, error) {
	out, err := c.complete(ctx, analysisTemperature, definitionPrompt(term))
	if err != nil {
		return session.Definition{}, err
	}
	def, err := parseDefinition(out)
	if err != nil {
		return session.Definition{}, err
	}
	def.Term = term
	return def, nil
}

func (c *Client) complete(ctx context.Context, temperature float32, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var content string
	start := time.Now()
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		resp, err := c.chat.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: empty chat response", session.ErrGenerationParse)
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	c.logger.Debug(ctx, "chat completion finished",
		logger.String("model", c.cfg.ChatModel),
		logger.Duration("latency", time.Since(start)),
	)
	return content, nil
}

// doWithRetry retries fn with exponential backoff. Parse failures and
// client errors other than rate limiting are not retried.
func (c *Client) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.cfg.MaxRetries-1 {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
		c.logger.Debug(ctx, "chat request failed, retrying",
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, session.ErrGenerationParse) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
