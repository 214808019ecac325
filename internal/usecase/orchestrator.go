package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
)

const (
	defaultQueryLimit       = 10
	defaultSessionListLimit = 10
	warmupTimeout           = 30 * time.Second
)

// RecommendationGenerator produces the three recommendations of a cycle.
type RecommendationGenerator interface {
	Generate(ctx context.Context, category entity.Category, answers entity.PreferenceAnswers, categoryContext string) ([]entity.Recommendation, error)
}

// ChatResponder produces one assistant turn.
type ChatResponder interface {
	Respond(ctx context.Context, conversation []entity.ChatMessage, userMessage string, category entity.Category, prior []entity.Recommendation) Reply
}

type OrchestratorConfig struct {
	QueryLimit       int // user messages per session
	SessionListLimit int
}

// SessionView is a session with its conversation.
type SessionView struct {
	Session           *entity.Session        `json:"session"`
	Messages          []entity.StoredMessage `json:"messages"`
	QueryLimitReached bool                   `json:"queryLimitReached"`
}

// ChatResult is the reply to one chat message.
type ChatResult struct {
	Message           entity.ChatMessage `json:"message"`
	Fallback          bool               `json:"fallback"`
	QueryLimitReached bool               `json:"queryLimitReached"`
}

// Orchestrator owns the session lifecycle: questionnaire answers,
// recommendations, chat and start-over. Every result is tagged with the
// session generation it was computed for and dropped if the session moved on.
type Orchestrator struct {
	sessions     repository.SessionStore
	contexts     repository.ContextProvider
	recommender  RecommendationGenerator
	responder    ChatResponder
	tokenLimiter repository.TokenLimiter // optional
	cfg          OrchestratorConfig
	now          func() time.Time
}

func NewOrchestrator(sessions repository.SessionStore, contexts repository.ContextProvider, recommender RecommendationGenerator, responder ChatResponder, tl repository.TokenLimiter, cfg OrchestratorConfig) *Orchestrator {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = defaultQueryLimit
	}
	if cfg.SessionListLimit <= 0 {
		cfg.SessionListLimit = defaultSessionListLimit
	}
	return &Orchestrator{
		sessions:     sessions,
		contexts:     contexts,
		recommender:  recommender,
		responder:    responder,
		tokenLimiter: tl,
		cfg:          cfg,
		now:          time.Now,
	}
}

// StartSession creates a session for the category and warms its context in the background.
func (u *Orchestrator) StartSession(ctx context.Context, userID string, category entity.Category) (*entity.Session, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", entity.ErrInvalidRequest, category)
	}

	now := u.now().UTC()
	session := &entity.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  category,
		Answers:   entity.PreferenceAnswers{string(category)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
		defer cancel()
		u.contexts.CategoryContext(bgCtx, category)
	}()

	logging.Info().Str("session_id", session.ID).Str("category", string(category)).Msg("[SESSION] Started")
	return session, nil
}

// Recommend generates recommendations for the completed questionnaire.
// When generation fails for good the session goes back to the start of the questionnaire.
func (u *Orchestrator) Recommend(ctx context.Context, userID, sessionID string, answers entity.PreferenceAnswers) ([]entity.Recommendation, error) {
	session, err := u.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	// 1. Validate and freeze the answers
	category, err := answers.Category()
	if err != nil {
		return nil, err
	}
	if category != session.Category {
		return nil, fmt.Errorf("%w: answers are for %s, session is %s", entity.ErrInvalidRequest, category, session.Category)
	}
	if len(answers) < 2 {
		return nil, fmt.Errorf("%w: no preferences given", entity.ErrInvalidRequest)
	}
	answers = answers.Clone()
	generation := session.Generation

	// 2. Generate
	categoryContext := u.contexts.CategoryContext(ctx, category)
	recs, err := u.recommender.Generate(ctx, category, answers, categoryContext)
	if err != nil {
		if errors.Is(err, entity.ErrRecommendationGenerationFailed) {
			if _, rerr := u.sessions.ResetSession(ctx, sessionID, generation); rerr != nil {
				if errors.Is(rerr, entity.ErrStaleResult) {
					return nil, rerr
				}
				logging.Error().Err(rerr).Str("session_id", sessionID).Msg("[SESSION] Reset after failed generation did not succeed")
			}
		}
		return nil, err
	}

	// 3. Apply only if the session was not started over meanwhile
	session.Answers = answers
	session.Recommendations = recs
	session.Generation = generation
	session.UpdatedAt = u.now().UTC()
	if err := u.sessions.UpdateSession(ctx, session); err != nil {
		if errors.Is(err, entity.ErrStaleResult) {
			logging.Info().Str("session_id", sessionID).Msg("[SESSION] Discarding stale recommendations")
		}
		return nil, err
	}
	return recs, nil
}

// Chat answers one follow-up message about the session's recommendations.
func (u *Orchestrator) Chat(ctx context.Context, userID, sessionID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", entity.ErrInvalidRequest)
	}

	session, err := u.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	// 1. Per-session query limit
	count, err := u.sessions.CountUserMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}
	if count >= u.cfg.QueryLimit {
		return nil, entity.ErrQueryLimitReached
	}

	// 2. Per-user token budget
	if u.tokenLimiter != nil {
		allowed, err := u.tokenLimiter.CheckLimit(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("rate limiter check failed: %w", err)
		}
		if !allowed {
			return nil, entity.ErrRateLimitExceeded
		}
	}

	// 3. History, then the new user turn
	stored, err := u.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	history := make([]entity.ChatMessage, 0, len(stored))
	for _, m := range stored {
		history = append(history, entity.ChatMessage{Role: m.Role, Content: m.Content})
	}

	generation := session.Generation
	if err := u.sessions.AppendUserMessage(ctx, u.message(session, entity.RoleUser, message), u.cfg.QueryLimit); err != nil {
		return nil, err
	}

	// 4. Reply
	reply := u.responder.Respond(ctx, history, message, session.Category, session.Recommendations)
	result := &ChatResult{
		Message:           reply.Message,
		Fallback:          reply.Err != nil,
		QueryLimitReached: count+1 >= u.cfg.QueryLimit,
	}

	if reply.Err != nil {
		current, err := u.sessions.GetSession(ctx, sessionID)
		if err == nil && current.Generation != generation {
			return nil, entity.ErrStaleResult
		}
		return result, nil
	}

	// 5. Persist and account in the background
	if err := u.sessions.AppendMessage(ctx, u.message(session, entity.RoleAssistant, reply.Message.Content)); err != nil {
		if errors.Is(err, entity.ErrStaleResult) {
			logging.Info().Str("session_id", sessionID).Msg("[SESSION] Discarding stale reply")
		}
		return nil, err
	}
	if u.tokenLimiter != nil && reply.TokenCount > 0 {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := u.tokenLimiter.Increment(bgCtx, userID, reply.TokenCount); err != nil {
				logging.Warn().Err(err).Msg("[SESSION] Failed to record token usage")
			}
		}()
	}
	return result, nil
}

// StartOver clears the session back to the first question. Results still in
// flight for the previous generation are discarded when they arrive.
func (u *Orchestrator) StartOver(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	session, err := u.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := u.sessions.ResetSession(ctx, sessionID, session.Generation); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		return nil, fmt.Errorf("resetting session: %w", err)
	}
	logging.Info().Str("session_id", sessionID).Msg("[SESSION] Started over")
	return u.sessions.GetSession(ctx, sessionID)
}

func (u *Orchestrator) Session(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	session, err := u.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := u.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	return &SessionView{
		Session:           session,
		Messages:          msgs,
		QueryLimitReached: countUserTurns(msgs) >= u.cfg.QueryLimit,
	}, nil
}

// ListSessions returns the user's most recent sessions, newest first.
func (u *Orchestrator) ListSessions(ctx context.Context, userID string) ([]*entity.Session, error) {
	return u.sessions.ListSessions(ctx, userID, u.cfg.SessionListLimit)
}

func (u *Orchestrator) Messages(ctx context.Context, userID, sessionID string) ([]entity.StoredMessage, error) {
	if _, err := u.load(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return u.sessions.ListMessages(ctx, sessionID)
}

func (u *Orchestrator) QueryLimitReached(ctx context.Context, userID, sessionID string) (bool, error) {
	if _, err := u.load(ctx, userID, sessionID); err != nil {
		return false, err
	}
	count, err := u.sessions.CountUserMessages(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return count >= u.cfg.QueryLimit, nil
}

// load returns the session if it belongs to userID. Sessions of other users are reported as missing.
func (u *Orchestrator) load(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	session, err := u.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, entity.ErrResourceNotFound
	}
	return session, nil
}

func (u *Orchestrator) message(session *entity.Session, role entity.Role, content string) *entity.StoredMessage {
	return &entity.StoredMessage{
		SessionID:  session.ID,
		UserID:     session.UserID,
		Role:       role,
		Content:    content,
		CreatedAt:  u.now().UTC(),
		Generation: session.Generation,
	}
}

func countUserTurns(msgs []entity.StoredMessage) int {
	n := 0
	for _, m := range msgs {
		if m.Role == entity.RoleUser {
			n++
		}
	}
	return n
}
