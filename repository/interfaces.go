// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/chat-sequencer/models"
)

// Repository is the filter-driven read surface every table shares. Rows are written by the
// downstream event consumer, so no insert methods are exposed here.
type Repository[T any, F any] interface {
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ApplicationRepository defines operations for applications
type ApplicationRepository interface {
	Repository[models.Application, models.ApplicationFilter]
	// ChatsCountByToken returns found=false when no application has the token
	ChatsCountByToken(ctx context.Context, token string) (count int64, found bool, err error)
	UpdateChatsCount(ctx context.Context, update models.ChatsCountUpdate) error
	UpdateChatsCounts(ctx context.Context, updates []models.ChatsCountUpdate) error
}

// ChatRepository defines operations for chats
type ChatRepository interface {
	Repository[models.Chat, models.ChatFilter]
	// MessagesCount returns found=false when the chat does not exist
	MessagesCount(ctx context.Context, token string, number int64) (count int64, found bool, err error)
	ListByToken(ctx context.Context, token string, limit, offset int) ([]*models.Chat, error)
	UpdateMessagesCount(ctx context.Context, update models.MessagesCountUpdate) error
	UpdateMessagesCounts(ctx context.Context, updates []models.MessagesCountUpdate) error
}

// MessageRepository defines operations for messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	CreatorID(ctx context.Context, token string, chatNumber, number int64) (creatorID int64, found bool, err error)
	ListByChat(ctx context.Context, token string, chatNumber int64, limit, offset int) ([]*models.Message, error)
}
