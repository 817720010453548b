package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JustSympa/agariki/internal/models"
	"github.com/JustSympa/agariki/internal/realtime"
	"github.com/JustSympa/agariki/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	startResult         *models.Conversation
	startCreated        bool
	findResult          *models.Conversation
	summaryResult       *models.ConversationSummary
	messagesResult      []models.ChatMessage
	lastResult          *models.ChatMessage
	sendResult          *models.ChatMessage
	markedCount         int64
	markMessageResult   *models.ChatMessage
	unreadResult        int
	err                 error

	lastActorID        uuid.UUID
	lastOtherID        uuid.UUID
	lastConversationID uuid.UUID
	lastMessageID      uuid.UUID
	lastContent        string
	sendCalls          int
}

func (s *stubChatService) ListConversations(_ context.Context, actorID uuid.UUID) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	return s.conversationsResult, s.err
}

func (s *stubChatService) StartConversation(_ context.Context, actorID uuid.UUID, otherID uuid.UUID) (*models.Conversation, bool, error) {
	s.lastActorID = actorID
	s.lastOtherID = otherID
	return s.startResult, s.startCreated, s.err
}

func (s *stubChatService) FindConversation(_ context.Context, actorID uuid.UUID, otherID uuid.UUID) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastOtherID = otherID
	return s.findResult, s.err
}

func (s *stubChatService) GetConversation(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID) (*models.ConversationSummary, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.summaryResult, s.err
}

func (s *stubChatService) ListMessages(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID) ([]models.ChatMessage, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.messagesResult, s.err
}

func (s *stubChatService) LastMessage(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID) (*models.ChatMessage, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.lastResult, s.err
}

func (s *stubChatService) SendMessage(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID, content string) (*models.ChatMessage, error) {
	s.sendCalls++
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.sendResult, s.err
}

func (s *stubChatService) MarkConversationRead(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID) (int64, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.markedCount, s.err
}

func (s *stubChatService) MarkMessageRead(_ context.Context, actorID uuid.UUID, messageID uuid.UUID) (*models.ChatMessage, error) {
	s.lastActorID = actorID
	s.lastMessageID = messageID
	return s.markMessageResult, s.err
}

func (s *stubChatService) UnreadCount(_ context.Context, actorID uuid.UUID, conversationID uuid.UUID) (int, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.unreadResult, s.err
}

func newChatTestApp(service *stubChatService, actorID uuid.UUID) *fiber.App {
	handler := NewChatHandler(service, realtime.NewHub(nil), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", actorID.String())
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Post("/api/v1/conversations", handler.StartConversation)
	app.Get("/api/v1/conversations/with/:userId", handler.FindConversation)
	app.Get("/api/v1/conversations/:id", handler.GetConversation)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	app.Get("/api/v1/conversations/:id/messages/last", handler.LastMessage)
	app.Get("/api/v1/conversations/:id/unread", handler.UnreadCount)
	app.Put("/api/v1/conversations/:id/read", handler.MarkConversationRead)
	app.Put("/api/v1/messages/:id/read", handler.MarkMessageRead)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) *http.Response {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	actorID := uuid.New()
	conversationID := uuid.New()
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: conversationID, LastMessageAt: time.Now().UTC()},
				LastMessage: &models.ChatMessage{
					ID:             uuid.New(),
					ConversationID: conversationID,
					Content:        "Ten kilos ready on Friday",
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	app := newChatTestApp(service, actorID)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != actorID {
		t.Fatalf("expected actor %s, got %s", actorID, service.lastActorID)
	}

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
}

func TestStartConversationStatusReflectsCreation(t *testing.T) {
	otherID := uuid.New()

	cases := []struct {
		created bool
		want    int
	}{
		{true, http.StatusCreated},
		{false, http.StatusOK},
	}

	for _, tc := range cases {
		service := &stubChatService{
			startResult:  &models.Conversation{ID: uuid.New()},
			startCreated: tc.created,
		}
		app := newChatTestApp(service, uuid.New())

		resp := doRequest(t, app, http.MethodPost, "/api/v1/conversations", `{"user_id":"`+otherID.String()+`"}`)
		if resp.StatusCode != tc.want {
			t.Fatalf("created=%v: expected %d, got %d", tc.created, tc.want, resp.StatusCode)
		}
		if service.lastOtherID != otherID {
			t.Fatalf("expected other user %s, got %s", otherID, service.lastOtherID)
		}
	}
}

func TestStartConversationRejectsBadUserID(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodPost, "/api/v1/conversations", `{"user_id":"seven"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body["error"] != "user_id must be a valid id" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestSendMessageForwardsContent(t *testing.T) {
	actorID := uuid.New()
	conversationID := uuid.New()
	service := &stubChatService{
		sendResult: &models.ChatMessage{ID: uuid.New(), ConversationID: conversationID, SenderID: actorID, Content: "Hello"},
	}
	app := newChatTestApp(service, actorID)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/messages", `{"content":"Hello"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastConversationID != conversationID || service.lastContent != "Hello" {
		t.Fatalf("unexpected forwarded message: %s %q", service.lastConversationID, service.lastContent)
	}
}

func TestSendMessageEmptyContentNeverReachesService(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodPost, "/api/v1/conversations/"+uuid.NewString()+"/messages", `{"content":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.sendCalls != 0 {
		t.Fatalf("expected no service call, got %d", service.sendCalls)
	}
}

func TestSendMessageWhitespaceContentMapsToBadRequest(t *testing.T) {
	service := &stubChatService{err: &services.ValidationError{Field: "content", Message: "must not be empty"}}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodPost, "/api/v1/conversations/"+uuid.NewString()+"/messages", `{"content":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body["error"] != "content must not be empty" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestGetMessagesReturnsNotFoundForOutsiders(t *testing.T) {
	service := &stubChatService{err: services.ErrConversationNotFound}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations/"+uuid.NewString()+"/messages", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetMessagesRejectsMalformedID(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations/99/messages", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLastMessageOnEmptyConversationReturnsNull(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations/"+uuid.NewString()+"/messages/last", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(body["message"]) != "null" {
		t.Fatalf("expected null message, got %s", body["message"])
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	conversationID := uuid.New()
	service := &stubChatService{unreadResult: 3, markedCount: 3}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations/"+conversationID.String()+"/unread", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unread: expected 200, got %d", resp.StatusCode)
	}
	var unread struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&unread); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if unread.UnreadCount != 3 {
		t.Fatalf("expected 3 unread, got %d", unread.UnreadCount)
	}

	resp = doRequest(t, app, http.MethodPut, "/api/v1/conversations/"+conversationID.String()+"/read", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", resp.StatusCode)
	}
	var marked struct {
		Marked int64 `json:"marked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&marked); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if marked.Marked != 3 || service.lastConversationID != conversationID {
		t.Fatalf("unexpected mark result: %d for %s", marked.Marked, service.lastConversationID)
	}
}

func TestMarkMessageReadUnknownMessage(t *testing.T) {
	service := &stubChatService{err: services.ErrMessageNotFound}
	app := newChatTestApp(service, uuid.New())
	messageID := uuid.New()

	resp := doRequest(t, app, http.MethodPut, "/api/v1/messages/"+messageID.String()+"/read", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if service.lastMessageID != messageID {
		t.Fatalf("expected message %s, got %s", messageID, service.lastMessageID)
	}
}

func TestMarkMessageReadFlagsOwnMessage(t *testing.T) {
	actorID := uuid.New()
	messageID := uuid.New()
	cases := []struct {
		name     string
		senderID uuid.UUID
		read     bool
		wantOwn  bool
	}{
		{"own message stays unread", actorID, false, true},
		{"received message is marked", uuid.New(), true, false},
	}

	for _, tc := range cases {
		service := &stubChatService{markMessageResult: &models.ChatMessage{
			ID:       messageID,
			SenderID: tc.senderID,
			Content:  "hello",
			Read:     tc.read,
		}}
		app := newChatTestApp(service, actorID)

		resp := doRequest(t, app, http.MethodPut, "/api/v1/messages/"+messageID.String()+"/read", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.name, resp.StatusCode)
		}

		var body struct {
			Message    models.ChatMessage `json:"message"`
			OwnMessage bool               `json:"own_message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body.OwnMessage != tc.wantOwn || body.Message.Read != tc.read {
			t.Fatalf("%s: unexpected response: own=%v read=%v", tc.name, body.OwnMessage, body.Message.Read)
		}
	}
}

func TestFindConversationWithUser(t *testing.T) {
	otherID := uuid.New()
	service := &stubChatService{findResult: &models.Conversation{ID: uuid.New()}}
	app := newChatTestApp(service, uuid.New())

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations/with/"+otherID.String(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastOtherID != otherID {
		t.Fatalf("expected other user %s, got %s", otherID, service.lastOtherID)
	}
}

func TestChatHandlerRejectsMissingActor(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, realtime.NewHub(nil), "secret")
	app := fiber.New()
	app.Get("/api/v1/conversations", handler.ListConversations)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/conversations", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRequiresUpgrade(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, realtime.NewHub(nil), "secret")
	app := fiber.New()
	app.Get("/ws", handler.WebSocketAuth)

	resp := doRequest(t, app, http.MethodGet, "/ws", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}
