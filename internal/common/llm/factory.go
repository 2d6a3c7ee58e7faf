package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academic-advisor/internal/common/config"
)

// Chain calls Primary and, on failure, Fallback once. Cancellation of the
// caller's context is never masked by the fallback.
type Chain struct {
	Primary  Provider
	Fallback Provider
	logger   Logger
}

func NewChain(primary, fallback Provider, log Logger) *Chain {
	return &Chain{Primary: primary, Fallback: fallback, logger: log}
}

func (c *Chain) Name() string { return c.Primary.Name() }

// CompleteNamed also returns the name of the provider that answered.
func (c *Chain) CompleteNamed(ctx context.Context, req Request) (string, string, error) {
	text, err := c.Primary.Complete(ctx, req)
	if err == nil {
		return text, c.Primary.Name(), nil
	}
	if c.Fallback == nil || ctx.Err() != nil {
		return "", c.Primary.Name(), err
	}

	c.logger.Warn("primary llm failed, using fallback", map[string]interface{}{
		"primary":  c.Primary.Name(),
		"fallback": c.Fallback.Name(),
		"error":    err.Error(),
	})

	text, fbErr := c.Fallback.Complete(ctx, req)
	if fbErr != nil {
		return "", c.Fallback.Name(), fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return text, c.Fallback.Name(), nil
}

func (c *Chain) Complete(ctx context.Context, req Request) (string, error) {
	text, _, err := c.CompleteNamed(ctx, req)
	return text, err
}

// NewFromConfig builds the configured primary/fallback pair. A fallback that
// cannot be built is logged and skipped.
func NewFromConfig(cfg config.LLMConfig, log Logger) (*Chain, error) {
	timeout := config.GetDuration(cfg.RequestTimeout)

	primary, err := build(cfg.Primary, cfg, timeout)
	if err != nil {
		return nil, fmt.Errorf("llm primary %q: %w", cfg.Primary, err)
	}

	var fallback Provider
	if cfg.Fallback != "" && cfg.Fallback != cfg.Primary {
		fallback, err = build(cfg.Fallback, cfg, timeout)
		if err != nil {
			log.Warn("llm fallback unavailable", map[string]interface{}{
				"fallback": cfg.Fallback,
				"error":    err.Error(),
			})
			fallback = nil
		}
	}
	return NewChain(primary, fallback, log), nil
}

func build(name string, cfg config.LLMConfig, timeout time.Duration) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Model)
	case "ollama":
		return NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model, timeout)
	default:
		return nil, errors.New("unknown provider")
	}
}
