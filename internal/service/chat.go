package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/metrics"
)

// ChatService runs one chat turn: store the user's message, ask the
// extractor, store the reply and reconcile any proposed events.
type ChatService struct {
	store     ConversationStore
	extractor IntentExtractor
	events    *EventService
	logger    *logger.Logger
	now       func() time.Time
}

// NewChatService creates a new chat service.
func NewChatService(store ConversationStore, x IntentExtractor, events *EventService, log *logger.Logger) *ChatService {
	return &ChatService{
		store:     store,
		extractor: x,
		events:    events,
		logger:    log.Named("chat"),
		now:       time.Now,
	}
}

// Send handles POST /chat. An unknown conversation id yields model.ErrNotFound
// and an empty message yields model.ErrInvalidInput; neither mutates state.
func (s *ChatService) Send(ctx context.Context, userID string, req *model.ChatRequest) (*model.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", model.ErrInvalidInput)
	}

	conv, err := s.conversation(ctx, userID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: text}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	result := s.extractor.Extract(ctx, model.Turns(history), s.now())

	assistantMsg := &model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: result.Reply}
	if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	events, err := s.events.CreateFromDrafts(ctx, userID, conv.ID, assistantMsg.ID, result.Events)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		s.logger.Warn("failed to touch conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	s.logger.Info("chat turn handled",
		zap.String("conversation_id", conv.ID),
		zap.Int("history", len(history)),
		zap.Int("drafts", len(result.Events)),
		zap.Int("events", len(events)),
	)

	return &model.ChatResponse{
		Message:          userMsg,
		AssistantMessage: assistantMsg,
		Events:           events,
		ConversationID:   conv.ID,
	}, nil
}

func (s *ChatService) conversation(ctx context.Context, userID string, id *string) (*model.Conversation, error) {
	if id != nil && strings.TrimSpace(*id) != "" {
		return s.store.GetConversation(ctx, userID, strings.TrimSpace(*id))
	}
	return s.store.CreateConversation(ctx, userID)
}
