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

// ChatFlow defines operations for creating and listing chats
type ChatFlow interface {
	CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error)
	ListChats(ctx context.Context, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error)
}

// ChatFlowImpl implements ChatFlow
type ChatFlowImpl struct {
	allocator SequenceAllocator
	appRepo   repository.ApplicationRepository
	chatRepo  repository.ChatRepository
	emitter   eventEmitter
	validator *validator.Validate
}

func NewChatFlow(
	allocator SequenceAllocator,
	appRepo repository.ApplicationRepository,
	chatRepo repository.ChatRepository,
	publisher services.EventPublisher,
	publishMustSucceed bool,
) ChatFlow {
	return &ChatFlowImpl{
		allocator: allocator,
		appRepo:   appRepo,
		chatRepo:  chatRepo,
		emitter:   eventEmitter{publisher: publisher, mustSucceed: publishMustSucceed},
		validator: validator.New(),
	}
}

// CreateChat allocates the next chat number for the application and emits create_chats
func (f *ChatFlowImpl) CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	parent := models.ChatParent{Token: req.Token}
	number, err := f.allocator.Allocate(ctx, parent, func(ctx context.Context) (int64, bool, error) {
		return f.appRepo.ChatsCountByToken(ctx, req.Token)
	})
	if err != nil {
		return nil, err
	}

	event := models.CreateChatEvent{
		EventID:    uuid.New(),
		Token:      req.Token,
		ChatNumber: number,
		CreatorID:  req.ActorID,
	}
	if err := f.emitter.emit(ctx, utils.TopicCreateChats, event); err != nil {
		return nil, err
	}

	return &dto.CreateChatResponse{ChatNumber: number}, nil
}

// ListChats reads persisted chats; chats still in flight to the row writer are not listed
func (f *ChatFlowImpl) ListChats(ctx context.Context, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	exists, err := f.appRepo.Exists(ctx, models.ApplicationFilter{Token: &req.Token})
	if err != nil {
		return nil, NewBusinessError("LIST_CHATS_FAILED", "failed to look up application", err)
	}
	if !exists {
		return nil, NewBusinessErrorf("PARENT_NOT_FOUND", "application %q does not exist", ErrParentNotFound, req.Token)
	}

	page, limit := normalizePage(req.Page, req.Limit)
	chats, err := f.chatRepo.ListByToken(ctx, req.Token, limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("LIST_CHATS_FAILED", "failed to list chats", err)
	}

	out := make([]dto.ChatDTO, 0, len(chats))
	for _, c := range chats {
		out = append(out, dto.ChatDTO{
			Number:        c.Number,
			MessagesCount: c.MessagesCount,
			CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &dto.ListChatsResponse{Chats: out, Page: page, Limit: limit}, nil
}
