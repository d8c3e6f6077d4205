package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/utils"
	"gorm.io/gorm"
)

// ChatRepositoryImpl implements ChatRepository interface
type ChatRepositoryImpl struct {
	*BaseRepository[models.Chat, models.ChatFilter]
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &ChatRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Chat, models.ChatFilter](db),
	}
}

// MessagesCount reads the persisted message count used to seed a message counter
func (r *ChatRepositoryImpl) MessagesCount(ctx context.Context, token string, number int64) (int64, bool, error) {
	db := r.getDB(ctx)

	var row models.Chat
	err := db.Model(&models.Chat{}).
		Select("messages_count").
		Where("token = ? AND number = ?", token, number).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read messages count for %s:%d: %w", token, number, err)
	}
	return row.MessagesCount, true, nil
}

// ListByToken lists chats of an application ordered by chat number
func (r *ChatRepositoryImpl) ListByToken(ctx context.Context, token string, limit, offset int) ([]*models.Chat, error) {
	return r.ByFilter(ctx, models.ChatFilter{Token: &token}, "number ASC", limit, offset)
}

// UpdateMessagesCount raises messages_count for a single chat; a lower value is ignored
func (r *ChatRepositoryImpl) UpdateMessagesCount(ctx context.Context, update models.MessagesCountUpdate) error {
	db := r.getDB(ctx)
	err := db.Exec(
		"UPDATE chats SET messages_count = GREATEST(messages_count, ?::bigint), updated_at = ? WHERE token = ? AND number = ?",
		update.MessagesCount, utils.UTCNow(), update.Token, update.ChatNumber,
	).Error
	if err != nil {
		return fmt.Errorf("failed to update messages count for %s:%d: %w", update.Token, update.ChatNumber, err)
	}
	return nil
}

// UpdateMessagesCounts raises messages_count for many chats in one statement
func (r *ChatRepositoryImpl) UpdateMessagesCounts(ctx context.Context, updates []models.MessagesCountUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(updates)*5+1)

	sb.WriteString("UPDATE chats SET messages_count = GREATEST(messages_count, CASE")
	for _, u := range updates {
		sb.WriteString(" WHEN token = ? AND number = ? THEN ?::bigint")
		args = append(args, u.Token, u.ChatNumber, u.MessagesCount)
	}
	sb.WriteString(" END), updated_at = ? WHERE (token, number) IN (")
	args = append(args, utils.UTCNow())
	for i, u := range updates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?::bigint)")
		args = append(args, u.Token, u.ChatNumber)
	}
	sb.WriteString(")")

	db := r.getDB(ctx)
	if err := db.Exec(sb.String(), args...).Error; err != nil {
		return fmt.Errorf("failed to batch update messages counts: %w", err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ChatRepositoryImpl) applyFilter(query *gorm.DB, filter models.ChatFilter) *gorm.DB {
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	return query
}

// ByFilter retrieves chats based on filter criteria
func (r *ChatRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatFilter, orderBy string, limit, offset int) ([]*models.Chat, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Chat{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Chat
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of chats matching the filter
func (r *ChatRepositoryImpl) Count(ctx context.Context, filter models.ChatFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Chat{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if a chat matching the filter exists
func (r *ChatRepositoryImpl) Exists(ctx context.Context, filter models.ChatFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
