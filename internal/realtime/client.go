package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

// ChatOperations is the part of the chat service a websocket client drives.
type ChatOperations interface {
	GetConversation(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID) (*models.ConversationSummary, error)
	SendMessage(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID, content string) (*models.ChatMessage, error)
	MarkConversationRead(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID) (int64, error)
}

type incomingFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

// ReadPump handles frames until the connection closes. Supported frame types
// are subscribe, unsubscribe, message and read.
func (c *Client) ReadPump(service ChatOperations) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(service, payload)
	}
}

func (c *Client) handleFrame(service ChatOperations, payload []byte) {
	var incoming incomingFrame
	if err := json.Unmarshal(payload, &incoming); err != nil {
		c.writeError("invalid message payload")
		return
	}

	conversationID, err := uuid.Parse(incoming.ConversationID)
	if err != nil {
		c.writeError("invalid conversation id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch incoming.Type {
	case "subscribe":
		if _, err := service.GetConversation(ctx, c.userID, conversationID); err != nil {
			c.writeError("conversation not available")
			return
		}
		c.hub.Subscribe(c, conversationID)
	case "unsubscribe":
		c.hub.Unsubscribe(c, conversationID)
	case EventMessage:
		if _, err := service.SendMessage(ctx, c.userID, conversationID, incoming.Content); err != nil {
			c.hub.logger.Debug("websocket send failed", zap.Error(err), zap.String("user_id", c.userID.String()))
			c.writeError("failed to send message")
		}
	case EventRead:
		if _, err := service.MarkConversationRead(ctx, c.userID, conversationID); err != nil {
			c.writeError("failed to mark conversation read")
		}
	default:
		c.writeError("unsupported message type")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) writeError(message string) {
	payload, err := json.Marshal(Event{
		Type:      EventError,
		Content:   message,
		Timestamp: FormatTimestamp(time.Now()),
	})
	if err != nil {
		return
	}
	c.hub.reply(c, payload)
}
