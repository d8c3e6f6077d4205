package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/chat-sequencer/app/dto"
	"github.com/amirphl/chat-sequencer/app/middleware"
	"github.com/amirphl/chat-sequencer/app/services"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
	"github.com/amirphl/chat-sequencer/models"
)

type stubChatFlow struct {
	createErr error
	lastReq   *dto.CreateChatRequest
	listReq   *dto.ListChatsRequest
}

func (s *stubChatFlow) CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
	s.lastReq = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &dto.CreateChatResponse{ChatNumber: 4}, nil
}

func (s *stubChatFlow) ListChats(ctx context.Context, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error) {
	s.listReq = req
	return &dto.ListChatsResponse{Page: 1, Limit: 10}, nil
}

type stubMessageFlow struct {
	err       error
	createReq *dto.CreateMessageRequest
	updateReq *dto.UpdateMessageRequest
}

func (s *stubMessageFlow) CreateMessage(ctx context.Context, req *dto.CreateMessageRequest) (*dto.CreateMessageResponse, error) {
	s.createReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CreateMessageResponse{MessageNumber: 12}, nil
}

func (s *stubMessageFlow) UpdateMessage(ctx context.Context, req *dto.UpdateMessageRequest) (*dto.UpdateMessageResponse, error) {
	s.updateReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.UpdateMessageResponse{MessageNumber: req.MessageNumber}, nil
}

func (s *stubMessageFlow) ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error) {
	return &dto.ListMessagesResponse{Page: 1, Limit: 10}, s.err
}

type stubReconcileFlow struct {
	processed map[models.Family]int
	err       error
}

func (s *stubReconcileFlow) Reconcile(ctx context.Context, family models.Family) (int, error) {
	return s.processed[family], s.err
}

func (s *stubReconcileFlow) ReconcileAll(ctx context.Context) (map[models.Family]int, error) {
	return s.processed, s.err
}

type testServer struct {
	app      *fiber.App
	tokens   services.TokenService
	chats    *stubChatFlow
	messages *stubMessageFlow
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tokens, err := services.NewTokenService("test-secret-with-enough-length", "sequencer", "api")
	require.NoError(t, err)

	s := &testServer{
		app:      fiber.New(),
		tokens:   tokens,
		chats:    &stubChatFlow{},
		messages: &stubMessageFlow{},
	}
	chatHandler := NewChatHandler(s.chats)
	messageHandler := NewMessageHandler(s.messages)

	apps := s.app.Group("/api/v1/applications", middleware.NewAuthMiddleware(tokens).Authenticate())
	apps.Post("/:token/chats", chatHandler.Create)
	apps.Get("/:token/chats", chatHandler.List)
	apps.Post("/:token/chats/:chat_number/messages", messageHandler.Create)
	apps.Put("/:token/chats/:chat_number/messages", messageHandler.Update)
	apps.Get("/:token/chats/:chat_number/messages", messageHandler.List)
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string, userID int64) (int, dto.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := s.tokens.GenerateToken(userID, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out dto.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(t *testing.T, resp dto.APIResponse) string {
	t.Helper()
	detail, ok := resp.Error.(map[string]any)
	require.True(t, ok, "error detail missing")
	code, _ := detail["code"].(string)
	return code
}

func TestCreateChatHandler(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodPost, "/api/v1/applications/app-1/chats", "", 42)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"chatNumber": float64(4)}, resp.Data)
	require.NotNil(t, s.chats.lastReq)
	assert.Equal(t, "app-1", s.chats.lastReq.Token)
	assert.Equal(t, int64(42), s.chats.lastReq.ActorID)
}

func TestFlowErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"parent not found", businessflow.NewBusinessError("PARENT_NOT_FOUND", "application does not exist", businessflow.ErrParentNotFound), http.StatusNotFound, "PARENT_NOT_FOUND"},
		{"counter store down", businessflow.NewBusinessError("ALLOCATOR_UNAVAILABLE", "counter store unavailable", businessflow.ErrAllocatorUnavailable), http.StatusServiceUnavailable, "ALLOCATOR_UNAVAILABLE"},
		{"seed down", businessflow.NewBusinessError("SEED_UNAVAILABLE", "seed unavailable", businessflow.ErrSeedUnavailable), http.StatusServiceUnavailable, "SEED_UNAVAILABLE"},
		{"publish unconfirmed", businessflow.NewBusinessError("PUBLISH_FAILED", "event not confirmed", businessflow.ErrPublishFailed), http.StatusServiceUnavailable, "PUBLISH_FAILED"},
		{"negative seed", businessflow.NewBusinessError("INVALID_SEED", "negative seed", businessflow.ErrInvalidSeed), http.StatusInternalServerError, "INVALID_SEED"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "CREATE_CHAT_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.chats.createErr = tt.err

			status, resp := s.do(t, http.MethodPost, "/api/v1/applications/app/chats", "", 1)
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodPost, "/api/v1/applications/app/chats", "", 0)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(t, resp))
	assert.Nil(t, s.chats.lastReq)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications/app/chats", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	raw, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)
}

func TestHandlersRejectMissingUserWithoutMiddleware(t *testing.T) {
	chats := &stubChatFlow{}
	messages := &stubMessageFlow{}
	chatHandler := NewChatHandler(chats)
	messageHandler := NewMessageHandler(messages)

	app := fiber.New()
	app.Post("/:token/chats", chatHandler.Create)
	app.Post("/:token/chats/:chat_number/messages", messageHandler.Create)
	app.Put("/:token/chats/:chat_number/messages", messageHandler.Update)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create chat", http.MethodPost, "/app/chats", ""},
		{"create message", http.MethodPost, "/app/chats/1/messages", `{"body":"hi"}`},
		{"update message", http.MethodPut, "/app/chats/1/messages", `{"messageNumber":1,"body":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reader io.Reader
			if tt.body != "" {
				reader = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, reader)
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var out dto.APIResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.False(t, out.Success)
			assert.Equal(t, "MISSING_USER_ID", errorCode(t, out))
		})
	}

	assert.Nil(t, chats.lastReq, "chat flow must not run without a user")
	assert.Nil(t, messages.createReq, "message flow must not run without a user")
	assert.Nil(t, messages.updateReq, "message flow must not run without a user")
}

func TestMessageHandlers(t *testing.T) {
	t.Run("create takes the sender from the token", func(t *testing.T) {
		s := newTestServer(t)

		status, resp := s.do(t, http.MethodPost, "/api/v1/applications/app/chats/3/messages", `{"body":"hello"}`, 9)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"messageNumber": float64(12)}, resp.Data)
		require.NotNil(t, s.messages.createReq)
		assert.Equal(t, int64(3), s.messages.createReq.ChatNumber)
		assert.Equal(t, int64(9), s.messages.createReq.SenderID)
		assert.Equal(t, "hello", s.messages.createReq.Body)
	})

	t.Run("bad chat number", func(t *testing.T) {
		s := newTestServer(t)

		status, resp := s.do(t, http.MethodPost, "/api/v1/applications/app/chats/zero/messages", `{"body":"hello"}`, 9)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_CHAT_NUMBER", errorCode(t, resp))
		assert.Nil(t, s.messages.createReq)
	})

	t.Run("update by someone else is forbidden", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.err = businessflow.NewBusinessError("FORBIDDEN", "you can only edit your own messages", businessflow.ErrMessageAccessDenied)

		status, resp := s.do(t, http.MethodPut, "/api/v1/applications/app/chats/3/messages", `{"messageNumber":2,"body":"x"}`, 9)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
		assert.Equal(t, int64(2), s.messages.updateReq.MessageNumber)
		assert.Equal(t, int64(9), s.messages.updateReq.RequesterID)
	})

	t.Run("missing message", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.err = businessflow.NewBusinessError("MESSAGE_NOT_FOUND", "message not found", businessflow.ErrMessageNotFound)

		status, _ := s.do(t, http.MethodPut, "/api/v1/applications/app/chats/3/messages", `{"messageNumber":2,"body":"x"}`, 9)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("bad pagination", func(t *testing.T) {
		s := newTestServer(t)

		status, resp := s.do(t, http.MethodGet, "/api/v1/applications/app/chats/3/messages?limit=-1", "", 9)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_PAGINATION", errorCode(t, resp))
	})
}

func TestValidationErrorDetails(t *testing.T) {
	s := newTestServer(t)
	flow := businessflow.NewChatFlow(nil, nil, nil, nil, true)
	handler := NewChatHandler(flow)
	s.app.Post("/raw/:token", func(c fiber.Ctx) error {
		c.Locals(middleware.UserIDLocal, int64(1))
		return handler.Create(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/raw/"+strings.Repeat("t", 65), nil)
	raw, err := s.app.Test(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	var resp struct {
		Error struct {
			Code    string       `json:"code"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "Token", resp.Error.Details[0].Field)
	assert.Equal(t, "Token must be at most 64 characters", resp.Error.Details[0].Message)
}

func TestReconcileHandler(t *testing.T) {
	flow := &stubReconcileFlow{processed: map[models.Family]int{models.FamilyChats: 2, models.FamilyMessages: 5}}
	app := fiber.New()
	app.Post("/internal/reconcile/:family", NewReconcileHandler(flow).Reconcile)

	call := func(family string) (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/internal/reconcile/"+family, nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out dto.APIResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		data, _ := out.Data.(map[string]any)
		return resp.StatusCode, data
	}

	status, data := call("messages")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "messages", data["family"])
	assert.Equal(t, float64(5), data["processed"])

	status, data = call("all")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(7), data["processed"])
	assert.Equal(t, map[string]any{"chats": float64(2), "messages": float64(5)}, data["families"])

	status, _ = call("users")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler("v1", "test", map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	degraded := NewHealthHandler("v1", "test", map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	app := fiber.New()
	app.Get("/ok", healthy.Health)
	app.Get("/bad", degraded.Health)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out struct {
		Data dto.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "degraded", out.Data.Status)
	assert.Equal(t, "ok", out.Data.Checks["redis"])
	assert.Equal(t, "connection refused", out.Data.Checks["postgres"])
}
