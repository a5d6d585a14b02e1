package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/Afrawles/weekreflect/internal/executor"
)

const geminiDefaultModel = "gemini-2.0-flash"

// Gemini calls the Gemini developer API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
	exec   *executor.Executor
}

func NewGemini(ctx context.Context, cfg Config, exec *executor.Executor) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{client: client, model: model, exec: exec}, nil
}

func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(ScrubSecrets(req.System), genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	contents := []*genai.Content{
		genai.NewContentFromText(ScrubSecrets(req.Prompt), genai.RoleUser),
	}

	return executor.Execute(ctx, g.exec, func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", classifyGenAI(ctx, err)
		}
		return finish(resp.Text())
	})
}

func classifyGenAI(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		ce := executor.ClassifyStatus(ProviderGemini, apiErr.Code, []byte(apiErr.Message), nil)
		ce.Resource = "generateContent"
		ce.Message = apiErr.Message
		ce.Err = err
		return ce
	}
	return executor.ClassifyTransport(ProviderGemini, err)
}
