package services

import (
	"context"
	"errors"
	"strings"

	"github.com/JustSympa/agariki/internal/metrics"
	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/realtime"
	"github.com/JustSympa/agariki/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
	publisher        realtime.Publisher
	logger           *zap.Logger
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		logger:           logger,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID uuid.UUID,
) ([]models.ConversationSummary, error) {
	return s.conversationRepo.ListForUser(ctx, actorID)
}

// StartConversation returns the conversation between the actor and otherID,
// creating it if needed. The boolean reports whether it was created.
func (s *ChatService) StartConversation(
	ctx context.Context,
	actorID uuid.UUID,
	otherID uuid.UUID,
) (*models.Conversation, bool, error) {
	if otherID == uuid.Nil {
		return nil, false, invalid("user_id", "is required")
	}
	if otherID == actorID {
		return nil, false, invalid("user_id", "must be another user")
	}

	// Both sides need a registered profile; a caller with a valid token may
	// not have one yet.
	for _, id := range []uuid.UUID{actorID, otherID} {
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, false, ErrUserNotFound
			}
			return nil, false, err
		}
	}

	conversation, created, err := s.conversationRepo.CreateBetween(ctx, actorID, otherID)
	if err != nil {
		if hasPgCode(err, foreignKeyViolation) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}
	if created {
		metrics.ConversationsCreatedTotal.Inc()
	}
	return conversation, created, nil
}

func (s *ChatService) FindConversation(
	ctx context.Context,
	actorID uuid.UUID,
	otherID uuid.UUID,
) (*models.Conversation, error) {
	if otherID == uuid.Nil || otherID == actorID {
		return nil, invalid("user_id", "must be another user")
	}

	conversation, err := s.conversationRepo.FindBetween(ctx, actorID, otherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// GetConversation returns the conversation with the other participant, the
// last message and the actor's unread count.
func (s *ChatService) GetConversation(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) (*models.ConversationSummary, error) {
	conversation, err := s.participantConversation(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}

	summary := &models.ConversationSummary{Conversation: *conversation}

	other, err := s.userRepo.GetByID(ctx, conversation.OtherParticipant(actorID))
	switch {
	case err == nil:
		public := other.Public()
		summary.OtherUser = &public
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	last, err := s.messageRepo.Last(ctx, conversationID)
	switch {
	case err == nil:
		summary.LastMessage = last
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	summary.UnreadCount, err = s.messageRepo.CountUnread(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// ListMessages returns the whole conversation, oldest first.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) ([]models.ChatMessage, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

// LastMessage returns nil without error when the conversation is empty.
func (s *ChatService) LastMessage(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) (*models.ChatMessage, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}

	message, err := s.messageRepo.Last(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return message, nil
}

// SendMessage validates content before touching the store, then inserts the
// message and advances the conversation's last activity in one transaction.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
	content string,
) (*models.ChatMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, invalid("content", "must not be empty")
	}
	if conversationID == uuid.Nil {
		return nil, invalid("conversation_id", "is required")
	}

	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.Touch(ctx, conversationID, message.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.MessagesSentTotal.Inc()
	s.publish(ctx, realtime.Event{
		Type:           realtime.EventMessage,
		ConversationID: conversationID,
		Message:        message,
	})

	return message, nil
}

// MarkConversationRead marks every message the actor did not send as read
// and returns how many changed. Repeating it is a no-op.
func (s *ChatService) MarkConversationRead(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) (int64, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return 0, err
	}

	marked, err := s.messageRepo.MarkConversationRead(ctx, conversationID, actorID)
	if err != nil {
		return 0, err
	}

	if marked > 0 {
		metrics.MessagesMarkedReadTotal.WithLabelValues("conversation").Add(float64(marked))
		reader := actorID
		s.publish(ctx, realtime.Event{
			Type:           realtime.EventRead,
			ConversationID: conversationID,
			ReaderID:       &reader,
			MarkedCount:    marked,
		})
	}
	return marked, nil
}

// MarkMessageRead marks one message read. The reader must be a participant
// and a sender's own message never changes, matching the conversation-level
// rule.
func (s *ChatService) MarkMessageRead(
	ctx context.Context,
	actorID uuid.UUID,
	messageID uuid.UUID,
) (*models.ChatMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if _, err := s.participantConversation(ctx, actorID, message.ConversationID); err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	changed, err := s.messageRepo.MarkRead(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}

	if changed {
		message.Read = true
		metrics.MessagesMarkedReadTotal.WithLabelValues("message").Inc()
		reader := actorID
		s.publish(ctx, realtime.Event{
			Type:           realtime.EventRead,
			ConversationID: message.ConversationID,
			Message:        message,
			ReaderID:       &reader,
			MarkedCount:    1,
		})
	}
	return message, nil
}

func (s *ChatService) UnreadCount(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) (int, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, conversationID, actorID)
}

// participantConversation hides conversations the actor is not part of.
func (s *ChatService) participantConversation(
	ctx context.Context,
	actorID uuid.UUID,
	conversationID uuid.UUID,
) (*models.Conversation, error) {
	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// publish is best effort: the write has already committed.
func (s *ChatService) publish(ctx context.Context, event realtime.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.RealtimePublishFailuresTotal.Inc()
		s.logger.Warn("publish realtime event",
			zap.Error(err),
			zap.String("type", event.Type),
			zap.String("conversation_id", event.ConversationID.String()),
		)
	}
}
