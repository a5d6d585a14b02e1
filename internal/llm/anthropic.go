package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Afrawles/weekreflect/internal/executor"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-haiku-latest"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Anthropic calls the Messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	exec    *executor.Executor
}

func NewAnthropic(cfg Config, exec *executor.Executor) *Anthropic {
	a := &Anthropic{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		exec:    exec,
	}
	if a.model == "" {
		a.model = anthropicDefaultModel
	}
	if a.baseURL == "" {
		a.baseURL = anthropicBaseURL
	}
	return a
}

func (a *Anthropic) Name() string {
	return "anthropic:" + a.model
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens(req),
		System:      ScrubSecrets(req.System),
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: ScrubSecrets(req.Prompt)}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return executor.Execute(ctx, a.exec, func(ctx context.Context) (string, error) {
		return a.call(ctx, body)
	})
}

func (a *Anthropic) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", executor.ClassifyTransport(ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", executor.ClassifyTransport(ProviderAnthropic, err)
	}

	if resp.StatusCode != http.StatusOK {
		ce := executor.ClassifyStatus(ProviderAnthropic, resp.StatusCode, respBody, resp.Header)
		ce.Resource = "messages"
		var parsed anthropicResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			ce.Message = parsed.Error.Message
		}
		return "", ce
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return finish(sb.String())
}
