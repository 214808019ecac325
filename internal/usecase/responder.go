package usecase

import (
	"context"
	"fmt"
	"strings"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

// FallbackReply is appended when the chat model fails.
const FallbackReply = "Sorry, an error occurred."

const (
	chatTemperature = 0.7
	chatMaxTokens   = 1000
)

// Reply is the outcome of one chat turn. Conversation always ends with
// exactly one new assistant message; Err is set when that message is the fallback.
type Reply struct {
	Conversation []entity.ChatMessage
	Message      entity.ChatMessage
	TokenCount   int
	Err          error
}

// Responder answers follow-up chat messages about the recommendations.
type Responder struct {
	provider repository.AIProvider
	contexts repository.ContextProvider
}

func NewResponder(provider repository.AIProvider, contexts repository.ContextProvider) *Responder {
	return &Responder{provider: provider, contexts: contexts}
}

// Respond never fails: provider errors become the fallback reply.
func (r *Responder) Respond(ctx context.Context, conversation []entity.ChatMessage, userMessage string, category entity.Category, prior []entity.Recommendation) Reply {
	history := make([]entity.ChatMessage, 0, len(conversation)+2)
	history = append(history, conversation...)
	history = append(history, entity.ChatMessage{Role: entity.RoleUser, Content: userMessage})

	// 1. General (cached) and specific (fresh) context
	general := r.contexts.CategoryContext(ctx, category)
	specific := r.contexts.MessageContext(ctx, userMessage)

	// 2. System prompt plus full history
	messages := make([]entity.ChatMessage, 0, len(history)+1)
	messages = append(messages, entity.ChatMessage{
		Role:    entity.RoleSystem,
		Content: BuildChatSystemPrompt(category, general, specific, prior),
	})
	messages = append(messages, history...)

	resp, err := r.provider.Generate(ctx, entity.AIRequest{
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = fmt.Errorf("%w: chat reply", entity.ErrEmptyCompletion)
	}

	reply := Reply{}
	if err != nil {
		logging.Error().Err(err).Msg("[CHAT] Reply failed, sending fallback")
		metrics.ChatReplies.WithLabelValues("fallback").Inc()
		reply.Err = err
		reply.Message = entity.ChatMessage{Role: entity.RoleAssistant, Content: FallbackReply}
	} else {
		metrics.ChatReplies.WithLabelValues("success").Inc()
		reply.Message = entity.ChatMessage{Role: entity.RoleAssistant, Content: resp.Content}
		reply.TokenCount = resp.TokenCount
	}
	reply.Conversation = append(history, reply.Message)
	return reply
}
