package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"zappy-core/internal/logging"
)

// GeminiEvaluator confirms that two preference sets would get the same recommendations.
type GeminiEvaluator struct {
	client *genai.Client
	model  string
}

func NewGeminiEvaluator(client *genai.Client, model string) *GeminiEvaluator {
	return &GeminiEvaluator{client: client, model: model}
}

const equivalenceInstruction = `You compare two sets of entertainment preferences.
Would a recommender give the same three titles to both users?
- If the preferences ask for the same kind of title, respond ONLY with "YES".
- If they differ in genre, mood, era, length or any other meaningful way, respond ONLY with "NO".`

func (e *GeminiEvaluator) IsMatch(ctx context.Context, userPrompt, cachedPrompt string) bool {
	prompt := fmt.Sprintf("%s\n\nPreferences 1: %s\nPreferences 2: %s", equivalenceInstruction, userPrompt, cachedPrompt)

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		logging.Warn().Err(err).Msg("[CACHE] Equivalence check failed, treating as miss")
		return false
	}

	result := strings.TrimSpace(strings.ToUpper(resp.Text()))
	return strings.HasPrefix(result, "YES")
}
