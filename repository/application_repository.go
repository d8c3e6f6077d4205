package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ApplicationRepositoryImpl implements ApplicationRepository interface
type ApplicationRepositoryImpl struct {
	*BaseRepository[models.Application, models.ApplicationFilter]
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &ApplicationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Application, models.ApplicationFilter](db),
	}
}

// ChatsCountByToken reads the persisted chat count used to seed the chat counter
func (r *ApplicationRepositoryImpl) ChatsCountByToken(ctx context.Context, token string) (int64, bool, error) {
	db := r.getDB(ctx)

	var row models.Application
	err := db.Model(&models.Application{}).
		Select("chats_count").
		Where("token = ?", token).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read chats count for %s: %w", token, err)
	}
	return row.ChatsCount, true, nil
}

// UpdateChatsCount raises chats_count for a single application; a lower value is ignored
func (r *ApplicationRepositoryImpl) UpdateChatsCount(ctx context.Context, update models.ChatsCountUpdate) error {
	db := r.getDB(ctx)
	err := db.Exec(
		"UPDATE applications SET chats_count = GREATEST(chats_count, ?::bigint), updated_at = ? WHERE token = ?",
		update.ChatsCount, utils.UTCNow(), update.Token,
	).Error
	if err != nil {
		return fmt.Errorf("failed to update chats count for %s: %w", update.Token, err)
	}
	return nil
}

// UpdateChatsCounts raises chats_count for many applications in one statement
func (r *ApplicationRepositoryImpl) UpdateChatsCounts(ctx context.Context, updates []models.ChatsCountUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(updates)*2+2)
	tokens := make([]string, 0, len(updates))

	sb.WriteString("UPDATE applications SET chats_count = GREATEST(chats_count, CASE token")
	for _, u := range updates {
		sb.WriteString(" WHEN ? THEN ?::bigint")
		args = append(args, u.Token, u.ChatsCount)
		tokens = append(tokens, u.Token)
	}
	sb.WriteString(" END), updated_at = ? WHERE token = ANY(?::text[])")
	args = append(args, utils.UTCNow(), pq.Array(tokens))

	db := r.getDB(ctx)
	if err := db.Exec(sb.String(), args...).Error; err != nil {
		return fmt.Errorf("failed to batch update chats counts: %w", err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ApplicationRepositoryImpl) applyFilter(query *gorm.DB, filter models.ApplicationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	return query
}

// ByFilter retrieves applications based on filter criteria
func (r *ApplicationRepositoryImpl) ByFilter(ctx context.Context, filter models.ApplicationFilter, orderBy string, limit, offset int) ([]*models.Application, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Application{}), filter)

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

	var rows []*models.Application
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of applications matching the filter
func (r *ApplicationRepositoryImpl) Count(ctx context.Context, filter models.ApplicationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Application{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if an application matching the filter exists
func (r *ApplicationRepositoryImpl) Exists(ctx context.Context, filter models.ApplicationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
