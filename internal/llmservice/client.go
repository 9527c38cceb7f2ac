package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/models"
)

// ErrModelCall wraps every failure to obtain a completion.
var ErrModelCall = errors.New("model call failed")

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client calls a langchaingo model with a per-attempt timeout, bounded
// exponential-backoff retries and an optional request rate limit.
type Client struct {
	model   llms.Model
	cfg     config.LLMConfig
	limiter *rate.Limiter
}

// NewModel builds the langchaingo model for the configured provider.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Str("base_url", llmConfig.BaseURL).Msg("Initializing LLM")

	switch llmConfig.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "azure":
		return openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(llmConfig.Key),
			openai.WithModel(llmConfig.Model),
			openai.WithAPIVersion(llmConfig.APIVersion),
		)
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llmConfig.Provider)
	}
}

// NewClient creates a Client for the configured provider.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	model, err := NewModel(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewClientWithModel(model, *llmConfig), nil
}

// NewClientWithModel wraps an existing model.
func NewClientWithModel(model llms.Model, llmConfig config.LLMConfig) *Client {
	c := &Client{model: model, cfg: llmConfig}
	if llmConfig.RequestsPerSecond > 0 {
		burst := int(llmConfig.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(llmConfig.RequestsPerSecond), burst)
	}
	return c
}

// Complete sends prompt as a single human message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := c.GenerateContent(ctx, nil, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(thinkRe.ReplaceAllString(res.Choices[0].Content, "")), nil
}

// GenerateContent calls the model, retrying transient failures. Context
// cancellation is never retried.
func (c *Client) GenerateContent(ctx context.Context, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	opts := []llms.CallOption{llms.WithTemperature(c.cfg.Temperature)}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var res *llms.ContentResponse
	start := time.Now()
	err := retry.Do(
		func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			r, err := c.attempt(ctx, messages, opts)
			if err != nil {
				return err
			}
			res = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxDelay(c.cfg.MaxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Int("max_attempts", attempts).Msg("Retrying model call")
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelCall, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	log.Debug().Dur("elapsed", time.Since(start)).Str("model", c.cfg.Model).Msg("Model call completed")
	return res, nil
}

func (c *Client) attempt(ctx context.Context, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentResponse, error) {
	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	res, err := c.model.GenerateContent(callCtx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}
	return res, nil
}
