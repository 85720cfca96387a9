// Package llm wraps single-shot text generation and the lenient JSON decoding
// of its untyped output.
package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = eris.New("llm: empty completion")

// Completer turns a prompt into text. No schema is guaranteed.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config selects the model and sampling of an AnthropicCompleter. System is
// sent as a cached system block on every call; Purpose labels usage logs.
type Config struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	System      string  `yaml:"system" mapstructure:"system"`
	Purpose     string  `yaml:"-" mapstructure:"-"`
}

// AnthropicCompleter implements Completer over the Anthropic messages API.
type AnthropicCompleter struct {
	client  anthropic.Client
	cfg     Config
	breaker *resilience.Breaker
}

// NewAnthropicCompleter creates a completer. A nil breaker disables circuit
// breaking.
func NewAnthropicCompleter(client anthropic.Client, cfg Config, breaker *resilience.Breaker) *AnthropicCompleter {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &AnthropicCompleter{client: client, cfg: cfg, breaker: breaker}
}

// Complete sends prompt as a single user message.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	call := func(ctx context.Context) (string, error) {
		temp := a.cfg.Temperature
		resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.cfg.Model,
			MaxTokens:   a.cfg.MaxTokens,
			System:      anthropic.CachedSystem(a.cfg.System),
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
		if err != nil {
			return "", err
		}
		resp.Usage.LogCost(a.cfg.Model, a.cfg.Purpose)
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", ErrEmptyCompletion
		}
		return text, nil
	}
	if a.breaker == nil {
		return call(ctx)
	}
	return resilience.ExecuteVal(ctx, a.breaker, call)
}

// Throttled spaces calls to next through t.
func Throttled(next Completer, t ratelimit.Throttle) Completer {
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := t.Wait(ctx); err != nil {
			return "", err
		}
		return next.Complete(ctx, prompt)
	})
}

// CompleteJSON completes prompt and decodes the result into v with the
// recovery chain of DecodeJSON.
func CompleteJSON(ctx context.Context, c Completer, prompt string, v any) (Strategy, error) {
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", eris.Wrap(err, "llm: complete")
	}
	strategy, err := DecodeJSON(text, v)
	if err != nil {
		zap.L().Debug("llm: undecodable response", zap.Int("bytes", len(text)), zap.Error(err))
		return "", err
	}
	return strategy, nil
}
