// Package llm wraps the generative text backends used for narratives.
//
// Every backend sends one system instruction plus one user prompt and returns
// plain text. Failures are classified with the executor taxonomy so callers
// can retry transient errors and fall back on the rest.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/executor"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"

	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

var (
	// ErrDisabled is returned by the "none" provider.
	ErrDisabled = errors.New("generative backend disabled")
	// ErrEmptyResponse means the backend answered without any text.
	ErrEmptyResponse = errors.New("generative backend returned empty content")
)

// Request is a single-turn generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text from a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Retry    executor.RetryConfig
}

// New builds the configured backend. An unknown provider is an error; the
// "none" provider returns a generator that always fails with ErrDisabled.
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	exec := executor.New(provider,
		executor.WithRetryConfig(cfg.Retry),
		executor.WithLogger(logger.Named(provider)),
	)

	switch provider {
	case ProviderAnthropic, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		return NewAnthropic(cfg, exec), nil
	case ProviderGemini:
		g, err := NewGemini(context.Background(), cfg, exec)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOllama:
		return NewOllama(cfg, exec), nil
	case ProviderNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown generative provider %q", cfg.Provider)
	}
}

// Disabled never generates anything.
type Disabled struct{}

func (Disabled) Name() string { return ProviderNone }

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
