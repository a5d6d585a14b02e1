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
	ollamaBaseURL      = "http://localhost:11434"
	ollamaDefaultModel = "gemma3"
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

// Ollama calls a local Ollama server's chat endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	exec    *executor.Executor
}

func NewOllama(cfg Config, exec *executor.Executor) *Ollama {
	o := &Ollama{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		exec:    exec,
	}
	if o.baseURL == "" {
		o.baseURL = ollamaBaseURL
	}
	if o.model == "" {
		o.model = ollamaDefaultModel
	}
	return o
}

func (o *Ollama) Name() string {
	return "ollama:" + o.model
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	var messages []ollamaMessage
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: ScrubSecrets(req.System)})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: ScrubSecrets(req.Prompt)})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options:  &ollamaOptions{Temperature: req.Temperature, NumPredict: maxTokens(req)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal Ollama request: %w", err)
	}

	return executor.Execute(ctx, o.exec, func(ctx context.Context) (string, error) {
		return o.chat(ctx, body)
	})
}

func (o *Ollama) chat(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", executor.ClassifyTransport(ProviderOllama, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", executor.ClassifyTransport(ProviderOllama, err)
	}

	if resp.StatusCode != http.StatusOK {
		ce := executor.ClassifyStatus(ProviderOllama, resp.StatusCode, respBody, resp.Header)
		ce.Resource = o.model
		return "", ce
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}
	return finish(parsed.Message.Content)
}
