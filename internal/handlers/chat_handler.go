package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/JustSympa/agariki/internal/middleware"
	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/realtime"
	"github.com/JustSympa/agariki/internal/services"
	"github.com/JustSympa/agariki/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type chatApplicationService interface {
	realtime.ChatOperations
	ListConversations(ctx context.Context, actorID uuid.UUID) ([]models.ConversationSummary, error)
	StartConversation(ctx context.Context, actorID uuid.UUID, otherID uuid.UUID) (*models.Conversation, bool, error)
	FindConversation(ctx context.Context, actorID uuid.UUID, otherID uuid.UUID) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID) ([]models.ChatMessage, error)
	LastMessage(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID) (*models.ChatMessage, error)
	MarkMessageRead(ctx context.Context, actorID uuid.UUID, messageID uuid.UUID) (*models.ChatMessage, error)
	UnreadCount(ctx context.Context, actorID uuid.UUID, conversationID uuid.UUID) (int, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *realtime.Hub
	jwtSecret string
}

type startConversationRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func NewChatHandler(service chatApplicationService, hub *realtime.Hub, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

// StartConversation answers 201 when the conversation is new and 200 when
// the pair already had one.
func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req startConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	otherID, _ := uuid.Parse(req.UserID)
	conversation, created, err := h.service.StartConversation(c.Context(), actorID, otherID)
	if err != nil {
		return mapChatError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) FindConversation(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	otherID, ok := parseIDParam(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user id")
	}

	conversation, err := h.service.FindConversation(c.Context(), actorID, otherID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	summary, err := h.service.GetConversation(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": summary})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	messages, err := h.service.ListMessages(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	message, err := h.service.SendMessage(c.Context(), actorID, conversationID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

// LastMessage returns {"message": null} for an empty conversation.
func (h *ChatHandler) LastMessage(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	message, err := h.service.LastMessage(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	count, err := h.service.UnreadCount(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"unread_count":    count,
	})
}

func (h *ChatHandler) MarkConversationRead(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	marked, err := h.service.MarkConversationRead(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"marked":          marked,
	})
}

func (h *ChatHandler) MarkMessageRead(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid message id")
	}

	message, err := h.service.MarkMessageRead(c.Context(), actorID, messageID)
	if err != nil {
		return mapChatError(c, err)
	}

	// own_message tells the sender why read stayed false.
	return c.JSON(fiber.Map{
		"message":     message,
		"own_message": message.SenderID == actorID,
	})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	userID, err := claims.UserID()
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", userID.String())
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	subject, _ := conn.Locals("user_id").(string)
	userID, err := uuid.Parse(subject)
	if err != nil {
		_ = conn.Close()
		return
	}

	client := realtime.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

// Browsers cannot set headers on a websocket handshake, so the token may
// also arrive as a query parameter.
func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		if bearer, ok := middleware.BearerToken(c.Get("Authorization")); ok {
			tokenString = bearer
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return badRequest(c, invalidInputMessage(err))
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Message not found"})
	case errors.Is(err, services.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
