package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/chat-sequencer/models"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// CreatorID returns who sent the message
func (r *MessageRepositoryImpl) CreatorID(ctx context.Context, token string, chatNumber, number int64) (int64, bool, error) {
	db := r.getDB(ctx)

	var row models.Message
	err := db.Model(&models.Message{}).
		Select("creator_id").
		Where("token = ? AND chat_number = ? AND number = ?", token, chatNumber, number).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read creator of message %s:%d:%d: %w", token, chatNumber, number, err)
	}
	return row.CreatorID, true, nil
}

// ListByChat lists messages of a chat, newest first
func (r *MessageRepositoryImpl) ListByChat(ctx context.Context, token string, chatNumber int64, limit, offset int) ([]*models.Message, error) {
	filter := models.MessageFilter{Token: &token, ChatNumber: &chatNumber}
	return r.ByFilter(ctx, filter, "number DESC", limit, offset)
}

func (r *MessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.MessageFilter) *gorm.DB {
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.ChatNumber != nil {
		query = query.Where("chat_number = ?", *filter.ChatNumber)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	return query
}

// ByFilter retrieves messages based on filter criteria
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)

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

	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) Exists(ctx context.Context, filter models.MessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
