package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/usecase"
	"zappy-core/internal/validation"
)

// RecommendationFailedMessage is shown when every generation attempt failed.
const RecommendationFailedMessage = "Sorry, I couldn't get recommendations for you. Please try again."

// SessionService is the session use case the handlers drive.
type SessionService interface {
	StartSession(ctx context.Context, userID string, category entity.Category) (*entity.Session, error)
	Recommend(ctx context.Context, userID, sessionID string, answers entity.PreferenceAnswers) ([]entity.Recommendation, error)
	Chat(ctx context.Context, userID, sessionID, message string) (*usecase.ChatResult, error)
	StartOver(ctx context.Context, userID, sessionID string) (*entity.Session, error)
	Session(ctx context.Context, userID, sessionID string) (*usecase.SessionView, error)
	ListSessions(ctx context.Context, userID string) ([]*entity.Session, error)
	Messages(ctx context.Context, userID, sessionID string) ([]entity.StoredMessage, error)
	QueryLimitReached(ctx context.Context, userID, sessionID string) (bool, error)
}

type Handler struct {
	sessions SessionService
	contexts repository.ContextProvider
	version  string
	env      string
}

func NewHandler(sessions SessionService, contexts repository.ContextProvider, version, env string) *Handler {
	return &Handler{sessions: sessions, contexts: contexts, version: version, env: env}
}

type createSessionRequest struct {
	Category string `json:"category" validate:"required,category"`
}

type recommendRequest struct {
	Answers []string `json:"answers" validate:"required,min=2,max=10,dive,required"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"version": h.version,
		"env":     h.env,
	})
}

func (h *Handler) Questions(c *fiber.Ctx) error {
	return c.JSON(entity.DefaultQuestionnaire())
}

// CategoryContext returns the catalog block used to ground recommendations.
func (h *Handler) CategoryContext(c *fiber.Ctx) error {
	raw, err := url.PathUnescape(c.Params("category"))
	if err != nil {
		return writeError(c, entity.ErrInvalidRequest)
	}
	category, err := entity.ParseCategory(raw)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"category": category,
		"context":  h.contexts.CategoryContext(c.UserContext(), category),
	})
}

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createSessionRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}

	session, err := h.sessions.StartSession(c.UserContext(), uid, entity.Category(req.Category))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *Handler) ListSessions(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	sessions, err := h.sessions.ListSessions(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	if sessions == nil {
		sessions = []*entity.Session{}
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	view, err := h.sessions.Session(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if view.Messages == nil {
		view.Messages = []entity.StoredMessage{}
	}
	return c.JSON(view)
}

// Messages returns the conversation and whether the session accepts more questions.
func (h *Handler) Messages(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	msgs, err := h.sessions.Messages(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	reached, err := h.sessions.QueryLimitReached(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if msgs == nil {
		msgs = []entity.StoredMessage{}
	}
	return c.JSON(fiber.Map{"messages": msgs, "queryLimitReached": reached})
}

func (h *Handler) Recommend(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req recommendRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}

	recs, err := h.sessions.Recommend(c.UserContext(), uid, c.Params("id"), entity.PreferenceAnswers(req.Answers))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"recommendations": recs})
}

func (h *Handler) Chat(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req chatRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}

	result, err := h.sessions.Chat(c.UserContext(), uid, c.Params("id"), req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) StartOver(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	session, err := h.sessions.StartOver(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(session)
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: invalid request body", entity.ErrInvalidRequest)
	}
	return validation.ValidateStruct(out)
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": entity.ErrUnauthorized.Error()})
	case errors.Is(err, entity.ErrResourceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrQueryLimitReached):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error(), "queryLimitReached": true})
	case errors.Is(err, entity.ErrRateLimitExceeded):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrStaleResult):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrRecommendationGenerationFailed):
		logging.Warn().Err(err).Str("path", c.Path()).Msg("[API] Recommendation generation failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": RecommendationFailedMessage, "reset": true})
	default:
		logging.Error().Err(err).Str("path", c.Path()).Msg("[API] Request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal gateway error"})
	}
}
