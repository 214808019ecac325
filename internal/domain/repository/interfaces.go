package repository

import (
	"context"
	"time"

	"zappy-core/internal/domain/entity"
)

// VectorStore backs the recommendation cache.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, threshold float32, filters map[string]string) (*entity.AIResponse, float32, string, error)
	Save(ctx context.Context, prompt string, resp *entity.AIResponse, vector []float32, metadata map[string]any) error
}

type TokenLimiter interface {
	CheckLimit(ctx context.Context, userID string) (bool, error)
	Increment(ctx context.Context, userID string, tokens int) error
}

type AIProvider interface {
	Generate(ctx context.Context, req entity.AIRequest) (*entity.AIResponse, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Evaluator confirms that two prompts ask for the same thing.
type Evaluator interface {
	IsMatch(ctx context.Context, userPrompt, cachedPrompt string) bool
}

// QueryExtractor reduces a chat message to the title it is about. Empty means "none found".
type QueryExtractor interface {
	ExtractTitle(ctx context.Context, message string) string
}

// TitleCatalog is the authenticated movie/series catalog.
type TitleCatalog interface {
	Search(ctx context.Context, query string, mediaType entity.MediaType, limit int) ([]entity.CatalogItem, error)
	Latest(ctx context.Context, category entity.Category) ([]entity.CatalogItem, error)
}

// GameCatalog is the key-authenticated game catalog.
type GameCatalog interface {
	Search(ctx context.Context, query string, limit int) ([]entity.GameItem, error)
	Latest(ctx context.Context, pageSize int) ([]entity.GameItem, error)
}

// ImageResolver finds a poster for a cleaned title. Empty string means no image.
type ImageResolver interface {
	ResolveImage(ctx context.Context, title string, mediaType entity.MediaType, category entity.Category) string
}

// ContextProvider supplies prompt-injectable context blocks.
type ContextProvider interface {
	CategoryContext(ctx context.Context, category entity.Category) string
	MessageContext(ctx context.Context, query string) string
}

// ContextCache stores category context blocks between sessions.
type ContextCache interface {
	Get(ctx context.Context, category entity.Category) (string, bool, error)
	Set(ctx context.Context, category entity.Category, block string, ttl time.Duration) error
}

// RecommendationCache short-circuits generation for equivalent preference sets.
type RecommendationCache interface {
	Lookup(ctx context.Context, category entity.Category, preferences string) ([]entity.Recommendation, bool)
	Store(ctx context.Context, category entity.Category, preferences string, recs []entity.Recommendation) error
}

// SessionStore persists sessions and their chat messages.
type SessionStore interface {
	CreateSession(ctx context.Context, session *entity.Session) error
	GetSession(ctx context.Context, sessionID string) (*entity.Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]*entity.Session, error)

	// UpdateSession writes answers and recommendations only while the stored
	// generation still equals session.Generation; otherwise entity.ErrStaleResult.
	UpdateSession(ctx context.Context, session *entity.Session) error

	// ResetSession clears answers, recommendations and messages and bumps the
	// generation, provided it still equals generation. Returns the new generation.
	ResetSession(ctx context.Context, sessionID string, generation int64) (int64, error)

	// AppendMessage inserts msg only while the session is at msg.Generation.
	AppendMessage(ctx context.Context, msg *entity.StoredMessage) error
	// AppendUserMessage is AppendMessage for a user turn that also fails with
	// entity.ErrQueryLimitReached once the session holds limit user messages.
	AppendUserMessage(ctx context.Context, msg *entity.StoredMessage, limit int) error
	ListMessages(ctx context.Context, sessionID string) ([]entity.StoredMessage, error)
	CountUserMessages(ctx context.Context, sessionID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
