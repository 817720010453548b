package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventMessage = "message"
	EventRead    = "read"
	EventError   = "error"
)

var ErrHubStopped = errors.New("realtime hub stopped")

// Event is what subscribers of a conversation receive.
type Event struct {
	Type           string              `json:"type"`
	ConversationID uuid.UUID           `json:"conversation_id"`
	Message        *models.ChatMessage `json:"message,omitempty"`
	ReaderID       *uuid.UUID          `json:"reader_id,omitempty"`
	MarkedCount    int64               `json:"marked_count,omitempty"`
	Content        string              `json:"content,omitempty"`
	Timestamp      string              `json:"timestamp"`
}

// Publisher delivers events to everyone subscribed to a conversation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type subscription struct {
	client         *Client
	conversationID uuid.UUID
}

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub fans events out to local websocket clients, one topic per
// conversation. All state is owned by the Run goroutine.
type Hub struct {
	topics      map[uuid.UUID]map[*Client]struct{}
	clients     map[*Client]map[uuid.UUID]struct{}
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan Event
	direct      chan directMessage
	done        chan struct{}
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:      make(map[uuid.UUID]map[*Client]struct{}),
		clients:     make(map[*Client]map[uuid.UUID]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan Event, 64),
		direct:      make(chan directMessage, 16),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			if _, ok := h.clients[client]; !ok {
				h.clients[client] = make(map[uuid.UUID]struct{})
			}
		case client := <-h.unregister:
			h.drop(client)
		case sub := <-h.subscribe:
			topics, ok := h.clients[sub.client]
			if !ok {
				continue
			}
			topics[sub.conversationID] = struct{}{}
			set, ok := h.topics[sub.conversationID]
			if !ok {
				set = make(map[*Client]struct{})
				h.topics[sub.conversationID] = set
			}
			set[sub.client] = struct{}{}
		case sub := <-h.unsubscribe:
			if topics, ok := h.clients[sub.client]; ok {
				delete(topics, sub.conversationID)
			}
			h.leave(sub.client, sub.conversationID)
		case event := <-h.broadcast:
			h.deliver(event)
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.sendTo(msg.client, msg.payload)
			}
		}
	}
}

// Register, Unregister, Subscribe and Unsubscribe are no-ops once Run has
// returned.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Subscribe(client *Client, conversationID uuid.UUID) {
	select {
	case h.subscribe <- subscription{client: client, conversationID: conversationID}:
	case <-h.done:
	}
}

func (h *Hub) Unsubscribe(client *Client, conversationID uuid.UUID) {
	select {
	case h.unsubscribe <- subscription{client: client, conversationID: conversationID}:
	case <-h.done:
	}
}

// reply sends a payload to one client through the Run goroutine, which owns
// the client's send channel.
func (h *Hub) reply(client *Client, payload []byte) {
	select {
	case h.direct <- directMessage{client: client, payload: payload}:
	case <-h.done:
	}
}

// Publish queues an event for local delivery.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = FormatTimestamp(time.Now())
	}
	select {
	case h.broadcast <- event:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) deliver(event Event) {
	set, ok := h.topics[event.ConversationID]
	if !ok {
		return
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode realtime event", zap.Error(err), zap.String("type", event.Type))
		return
	}

	for client := range set {
		h.sendTo(client, encoded)
	}
}

func (h *Hub) sendTo(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("dropping slow realtime client", zap.String("user_id", client.userID.String()))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	topics, ok := h.clients[client]
	if !ok {
		return
	}
	for conversationID := range topics {
		h.leave(client, conversationID)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) leave(client *Client, conversationID uuid.UUID) {
	set, ok := h.topics[conversationID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.topics, conversationID)
	}
}

func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
