package repository

import (
	"context"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, conversation_id, sender_id, content, read, created_at`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID uuid.UUID,
	senderID uuid.UUID,
	content string,
) (*models.ChatMessage, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, content, read)
		VALUES ($1, $2, $3, FALSE)
		RETURNING ` + messageColumns
	return scanMessage(r.db.QueryRow(ctx, query, conversationID, senderID, content))
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, messageID))
}

// Last returns the newest message of a conversation, or pgx.ErrNoRows when it
// has none.
func (r *MessageRepository) Last(ctx context.Context, conversationID uuid.UUID) (*models.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanMessage(r.db.QueryRow(ctx, query, conversationID))
}

// ListByConversation returns every message, oldest first.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID uuid.UUID,
) ([]models.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// CountUnread counts unread messages the viewer did not send.
func (r *MessageRepository) CountUnread(
	ctx context.Context,
	conversationID uuid.UUID,
	viewerID uuid.UUID,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND read = FALSE
	`, conversationID, viewerID).Scan(&count)
	return count, err
}

func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID uuid.UUID,
	readerID uuid.UUID,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read = TRUE
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkRead flips one message to read unless the reader sent it. It reports
// whether the row changed.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	messageID uuid.UUID,
	readerID uuid.UUID,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read = TRUE
		WHERE id = $1
		  AND sender_id <> $2
		  AND read = FALSE
	`, messageID, readerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Content,
		&message.Read,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}
