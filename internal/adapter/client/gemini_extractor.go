package client

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/genai"

	"zappy-core/internal/logging"
)

// GeminiExtractor reduces a chat message to the movie, show, anime or game title it mentions.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(client *genai.Client, model string) *GeminiExtractor {
	return &GeminiExtractor{client: client, model: model}
}

const extractInstruction = `Extract the title of the movie, TV series, anime or video game the message is about.
Answer with a JSON object {"title": "..."}. Use an empty string when no title is mentioned. Do not explain.
Example: "is the second season of frieren worth it?" -> {"title": "Frieren"}`

type extraction struct {
	Title string `json:"title"`
}

func (e *GeminiExtractor) ExtractTitle(ctx context.Context, message string) string {
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(extractInstruction+"\nMessage: "+message), config)
	if err != nil {
		logging.Debug().Err(err).Msg("[CONTEXT] Title extraction failed")
		return ""
	}

	var out extraction
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return ""
	}
	return strings.TrimSpace(out.Title)
}
