package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/chat-sequencer/app/dto"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
)

// ChatHandlerInterface defines the contract for chat handlers
type ChatHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
}

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	baseHandler
	flow businessflow.ChatFlow
}

// NewChatHandler creates a new chat handler
func NewChatHandler(flow businessflow.ChatFlow) *ChatHandler {
	return &ChatHandler{flow: flow}
}

// Create allocates the next chat number of an application
// @Summary Create Chat
// @Description Allocate the next chat number of an application and publish the creation event
// @Tags Chats
// @Produce json
// @Param token path string true "Application token"
// @Success 200 {object} dto.APIResponse{data=dto.CreateChatResponse} "Chat created successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 404 {object} dto.APIResponse "Application not found"
// @Failure 503 {object} dto.APIResponse "Sequencer or broker unavailable, retry later"
// @Router /api/v1/applications/{token}/chats [post]
func (h *ChatHandler) Create(c fiber.Ctx) error {
	userID, ok, err := h.requireUser(c)
	if !ok {
		return err
	}

	req := dto.CreateChatRequest{Token: c.Params("token"), ActorID: userID}

	ctx, cancel := h.createRequestContext(c, "/api/v1/applications/:token/chats")
	defer cancel()

	result, err := h.flow.CreateChat(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create chat", "CREATE_CHAT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Chat created successfully", result)
}

// List pages through the persisted chats of an application
// @Summary List Chats
// @Tags Chats
// @Produce json
// @Param token path string true "Application token"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size, at most 100" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.ListChatsResponse} "Chats retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/applications/{token}/chats [get]
func (h *ChatHandler) List(c fiber.Ctx) error {
	page, limit, err := parsePaging(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination", "INVALID_PAGINATION", err.Error())
	}

	req := dto.ListChatsRequest{Token: c.Params("token"), Page: page, Limit: limit}

	ctx, cancel := h.createRequestContext(c, "/api/v1/applications/:token/chats")
	defer cancel()

	result, err := h.flow.ListChats(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to list chats", "LIST_CHATS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Chats retrieved successfully", result)
}
