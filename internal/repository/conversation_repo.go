package repository

import (
	"context"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, participant1_id, participant2_id, last_message_at, created_at`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindBetween returns the conversation for the unordered pair {a, b}, or
// pgx.ErrNoRows.
func (r *ConversationRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	first, second := models.CanonicalPair(a, b)
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant1_id = $1 AND participant2_id = $2
	`
	return scanConversation(r.db.QueryRow(ctx, query, first, second))
}

// CreateBetween is an atomic get-or-create on the unordered pair. The
// participants unique key makes concurrent callers converge on one row; the
// boolean reports whether this call inserted it.
func (r *ConversationRepository) CreateBetween(ctx context.Context, a, b uuid.UUID) (*models.Conversation, bool, error) {
	first, second := models.CanonicalPair(a, b)
	query := `
		INSERT INTO conversations (participant1_id, participant2_id, last_message_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (participant1_id, participant2_id)
		DO UPDATE SET last_message_at = conversations.last_message_at
		RETURNING ` + conversationColumns + `, (xmax = 0) AS inserted
	`

	var conversation models.Conversation
	var inserted bool
	err := r.db.QueryRow(ctx, query, first, second).Scan(
		&conversation.ID,
		&conversation.Participant1ID,
		&conversation.Participant2ID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}

	return &conversation, inserted, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRow(ctx, query, conversationID))
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID uuid.UUID,
	participantID uuid.UUID,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (participant1_id = $2 OR participant2_id = $2)
	`
	return scanConversation(r.db.QueryRow(ctx, query, conversationID, participantID))
}

// ListForUser returns the user's conversations, most recently active first,
// with the other participant, the last message and the user's unread count.
func (r *ConversationRepository) ListForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.participant1_id,
			c.participant2_id,
			c.last_message_at,
			c.created_at,
			ou.id,
			ou.user_type,
			ou.full_name,
			ou.bio,
			ou.avatar_url,
			lm.id,
			lm.sender_id,
			lm.content,
			lm.read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN users ou
			ON ou.id = CASE WHEN c.participant1_id = $1 THEN c.participant2_id ELSE c.participant1_id END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND read = FALSE
		) uc ON TRUE
		WHERE c.participant1_id = $1 OR c.participant2_id = $1
		ORDER BY c.last_message_at DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var otherID *uuid.UUID
		var otherRole *int16
		var otherName *string
		var otherBio *string
		var otherAvatar *string
		var messageID *uuid.UUID
		var messageSenderID *uuid.UUID
		var messageContent *string
		var messageRead *bool
		var messageCreatedAt *time.Time

		if err := rows.Scan(
			&summary.ID,
			&summary.Participant1ID,
			&summary.Participant2ID,
			&summary.LastMessageAt,
			&summary.CreatedAt,
			&otherID,
			&otherRole,
			&otherName,
			&otherBio,
			&otherAvatar,
			&messageID,
			&messageSenderID,
			&messageContent,
			&messageRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if otherID != nil && otherRole != nil && otherName != nil {
			role, err := models.RoleFromCode(*otherRole)
			if err != nil {
				return nil, err
			}
			summary.OtherUser = &models.PublicUser{
				ID:        *otherID,
				Role:      role,
				FullName:  *otherName,
				Bio:       otherBio,
				AvatarURL: otherAvatar,
			}
		}

		if messageID != nil {
			summary.LastMessage = &models.ChatMessage{
				ID:             *messageID,
				ConversationID: summary.ID,
				SenderID:       *messageSenderID,
				Content:        *messageContent,
				Read:           *messageRead,
				CreatedAt:      *messageCreatedAt,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// Touch moves last_message_at forward to at. It never moves it backwards.
func (r *ConversationRepository) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(last_message_at, $2)
		WHERE id = $1
	`, conversationID, at)
	return err
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.Participant1ID,
		&conversation.Participant2ID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}
