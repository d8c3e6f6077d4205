package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/chat-sequencer/app/dto"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
)

// MessageHandlerInterface defines the contract for message handlers
type MessageHandlerInterface interface {
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	List(c fiber.Ctx) error
}

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	baseHandler
	flow businessflow.MessageFlow
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(flow businessflow.MessageFlow) *MessageHandler {
	return &MessageHandler{flow: flow}
}

const messagesEndpoint = "/api/v1/applications/:token/chats/:chat_number/messages"

// Create allocates the next message number in a chat
// @Summary Create Message
// @Description Allocate the next message number of a chat and publish the creation event
// @Tags Messages
// @Accept json
// @Produce json
// @Param token path string true "Application token"
// @Param chat_number path int true "Chat number"
// @Param request body dto.CreateMessageRequest true "Message body"
// @Success 200 {object} dto.APIResponse{data=dto.CreateMessageResponse} "Message created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 404 {object} dto.APIResponse "Chat not found"
// @Failure 503 {object} dto.APIResponse "Sequencer or broker unavailable, retry later"
// @Router /api/v1/applications/{token}/chats/{chat_number}/messages [post]
func (h *MessageHandler) Create(c fiber.Ctx) error {
	userID, ok, err := h.requireUser(c)
	if !ok {
		return err
	}

	chatNumber, err := parsePositiveParam(c, "chat_number")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid chat number", "INVALID_CHAT_NUMBER", err.Error())
	}

	var req dto.CreateMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.Token = c.Params("token")
	req.ChatNumber = chatNumber
	req.SenderID = userID

	ctx, cancel := h.createRequestContext(c, messagesEndpoint)
	defer cancel()

	result, err := h.flow.CreateMessage(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create message", "CREATE_MESSAGE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Message created successfully", result)
}

// Update replaces the body of a message the caller sent
// @Summary Update Message
// @Tags Messages
// @Accept json
// @Produce json
// @Param token path string true "Application token"
// @Param chat_number path int true "Chat number"
// @Param request body dto.UpdateMessageRequest true "Message number and new body"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateMessageResponse} "Message updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 403 {object} dto.APIResponse "Forbidden - message sent by another user"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Failure 503 {object} dto.APIResponse "Broker unavailable, retry later"
// @Router /api/v1/applications/{token}/chats/{chat_number}/messages [put]
func (h *MessageHandler) Update(c fiber.Ctx) error {
	userID, ok, err := h.requireUser(c)
	if !ok {
		return err
	}

	chatNumber, err := parsePositiveParam(c, "chat_number")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid chat number", "INVALID_CHAT_NUMBER", err.Error())
	}

	var req dto.UpdateMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.Token = c.Params("token")
	req.ChatNumber = chatNumber
	req.RequesterID = userID

	ctx, cancel := h.createRequestContext(c, messagesEndpoint)
	defer cancel()

	result, err := h.flow.UpdateMessage(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to update message", "UPDATE_MESSAGE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Message updated successfully", result)
}

// List pages through the persisted messages of a chat
// @Summary List Messages
// @Tags Messages
// @Produce json
// @Param token path string true "Application token"
// @Param chat_number path int true "Chat number"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size, at most 100" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.ListMessagesResponse} "Messages retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid chat number or pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized - missing or invalid token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/applications/{token}/chats/{chat_number}/messages [get]
func (h *MessageHandler) List(c fiber.Ctx) error {
	chatNumber, err := parsePositiveParam(c, "chat_number")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid chat number", "INVALID_CHAT_NUMBER", err.Error())
	}

	page, limit, err := parsePaging(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination", "INVALID_PAGINATION", err.Error())
	}

	req := dto.ListMessagesRequest{Token: c.Params("token"), ChatNumber: chatNumber, Page: page, Limit: limit}

	ctx, cancel := h.createRequestContext(c, messagesEndpoint)
	defer cancel()

	result, err := h.flow.ListMessages(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to list messages", "LIST_MESSAGES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}
