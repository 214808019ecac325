package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"zappy-core/internal/domain/entity"
)

// GenAIConfig selects the Gemini backend. An API key uses the Gemini API,
// otherwise Vertex AI is used with the project and location.
type GenAIConfig struct {
	APIKey   string
	Project  string
	Location string
}

// NewGenAIClient creates the shared client used by the Gemini adapters.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}

// GeminiClient is an AIProvider backed by a Gemini model.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClientFromClient(c *genai.Client, model string) *GeminiClient {
	return &GeminiClient{
		client: c,
		model:  model,
	}
}

func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Generate(ctx context.Context, req entity.AIRequest) (*entity.AIResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch {
		case m.Role == entity.RoleSystem && i == 0:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case m.Role == entity.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: no user content", entity.ErrInvalidRequest)
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrProvider, g.model, err)
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: %s returned no content", entity.ErrEmptyCompletion, g.model)
	}

	resp := &entity.AIResponse{
		Content: text,
		Model:   g.model,
		Latency: time.Since(start).Milliseconds(),
	}
	if result.UsageMetadata != nil {
		resp.TokenCount = int(result.UsageMetadata.TotalTokenCount)
	}
	return resp, nil
}
