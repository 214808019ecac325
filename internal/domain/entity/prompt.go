package entity

// AIRequest is a provider-neutral completion request.
type AIRequest struct {
	// Messages are sent in order; a leading "system" message becomes the system prompt.
	Messages []ChatMessage `json:"messages"`

	// JSONMode asks the provider to emit a single JSON document.
	JSONMode bool `json:"json_mode"`

	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type AIResponse struct {
	Content    string         `json:"content"`
	Cached     bool           `json:"cached"` // Was this from Qdrant?
	Model      string         `json:"model"`  // Which model actually answered?
	TokenCount int            `json:"token_count"`
	Latency    int64          `json:"latency_ms"`
	Metadata   map[string]any `json:"metadata"`
}
