package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"zappy-core/internal/domain/entity"
)

// OpenAICompatClient is an AIProvider for any OpenAI-compatible chat
// completions endpoint (Groq by default).
type OpenAICompatClient struct {
	client *openai.Client
	model  string
}

type OpenAICompatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAICompatClient{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

func (c *OpenAICompatClient) Model() string { return c.model }

func (c *OpenAICompatClient) Generate(ctx context.Context, req entity.AIRequest) (*entity.AIResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: %s returned no content", entity.ErrEmptyCompletion, c.model)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &entity.AIResponse{
		Content:    resp.Choices[0].Message.Content,
		Model:      model,
		TokenCount: resp.Usage.TotalTokens,
		Latency:    time.Since(start).Milliseconds(),
	}, nil
}

// wrapError keeps the upstream status code in the message so the resilience
// layer can tell rate limits and 5xx answers from permanent failures.
func (c *OpenAICompatClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: status %d: %s", entity.ErrAuthentication, c.model, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: %s: status %d: %s", entity.ErrProvider, c.model, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %s: status %d: %v", entity.ErrProvider, c.model, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrProvider, c.model, err)
}

func openAIRole(r entity.Role) string {
	switch r {
	case entity.RoleSystem:
		return openai.ChatMessageRoleSystem
	case entity.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
