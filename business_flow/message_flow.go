package businessflow

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/amirphl/chat-sequencer/app/dto"
	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/repository"
	"github.com/amirphl/chat-sequencer/utils"
)

// MessageFlow defines operations for creating, editing and listing messages
type MessageFlow interface {
	CreateMessage(ctx context.Context, req *dto.CreateMessageRequest) (*dto.CreateMessageResponse, error)
	UpdateMessage(ctx context.Context, req *dto.UpdateMessageRequest) (*dto.UpdateMessageResponse, error)
	ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error)
}

// MessageFlowImpl implements MessageFlow
type MessageFlowImpl struct {
	allocator   SequenceAllocator
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	emitter     eventEmitter
	validator   *validator.Validate
}

func NewMessageFlow(
	allocator SequenceAllocator,
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	publisher services.EventPublisher,
	publishMustSucceed bool,
) MessageFlow {
	return &MessageFlowImpl{
		allocator:   allocator,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		emitter:     eventEmitter{publisher: publisher, mustSucceed: publishMustSucceed},
		validator:   validator.New(),
	}
}

// CreateMessage allocates the next message number in the chat and emits create_messages
func (f *MessageFlowImpl) CreateMessage(ctx context.Context, req *dto.CreateMessageRequest) (*dto.CreateMessageResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	parent := models.MessageParent{Token: req.Token, ChatNumber: req.ChatNumber}
	number, err := f.allocator.Allocate(ctx, parent, func(ctx context.Context) (int64, bool, error) {
		return f.chatRepo.MessagesCount(ctx, req.Token, req.ChatNumber)
	})
	if err != nil {
		return nil, err
	}

	event := models.CreateMessageEvent{
		EventID:       uuid.New(),
		Token:         req.Token,
		ChatNumber:    req.ChatNumber,
		MessageNumber: number,
		SenderID:      req.SenderID,
		Body:          req.Body,
		Date:          models.FormatEventDate(utils.UTCNow()),
	}
	if err := f.emitter.emit(ctx, utils.TopicCreateMessages, event); err != nil {
		return nil, err
	}

	return &dto.CreateMessageResponse{MessageNumber: number}, nil
}

// UpdateMessage emits update_messages when the requester created the message; no number is allocated
func (f *MessageFlowImpl) UpdateMessage(ctx context.Context, req *dto.UpdateMessageRequest) (*dto.UpdateMessageResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	creatorID, found, err := f.messageRepo.CreatorID(ctx, req.Token, req.ChatNumber, req.MessageNumber)
	if err != nil {
		return nil, NewBusinessError("UPDATE_MESSAGE_FAILED", "failed to look up message", err)
	}
	if !found {
		return nil, NewBusinessErrorf("MESSAGE_NOT_FOUND", "message %d in chat %d not found", ErrMessageNotFound, req.MessageNumber, req.ChatNumber)
	}
	if creatorID != req.RequesterID {
		return nil, NewBusinessError("FORBIDDEN", "you can only edit your own messages", ErrMessageAccessDenied)
	}

	event := models.UpdateMessageEvent{
		EventID:       uuid.New(),
		Token:         req.Token,
		ChatNumber:    req.ChatNumber,
		MessageNumber: req.MessageNumber,
		Body:          req.Body,
	}
	if err := f.emitter.emit(ctx, utils.TopicUpdateMessages, event); err != nil {
		return nil, err
	}

	return &dto.UpdateMessageResponse{MessageNumber: req.MessageNumber}, nil
}

// ListMessages reads persisted messages of a chat ordered by number
func (f *MessageFlowImpl) ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	exists, err := f.chatRepo.Exists(ctx, models.ChatFilter{Token: &req.Token, Number: &req.ChatNumber})
	if err != nil {
		return nil, NewBusinessError("LIST_MESSAGES_FAILED", "failed to look up chat", err)
	}
	if !exists {
		return nil, NewBusinessErrorf("PARENT_NOT_FOUND", "chat %d does not exist", ErrParentNotFound, req.ChatNumber)
	}

	page, limit := normalizePage(req.Page, req.Limit)
	messages, err := f.messageRepo.ListByChat(ctx, req.Token, req.ChatNumber, limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("LIST_MESSAGES_FAILED", "failed to list messages", err)
	}

	out := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, dto.MessageDTO{
			Number:    m.Number,
			Body:      m.Body,
			SenderID:  m.CreatorID,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &dto.ListMessagesResponse{Messages: out, Page: page, Limit: limit}, nil
}
