package models

import "time"

// Chat is numbered per application; MessagesCount is refreshed by reconciliation
// Table: chats
// Unique by (token, number)
type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Token         string    `gorm:"size:64;not null;uniqueIndex:uk_chats_token_number,priority:1" json:"token"`
	Number        int64     `gorm:"not null;uniqueIndex:uk_chats_token_number,priority:2" json:"number"`
	CreatorID     int64     `gorm:"not null" json:"creator_id"`
	MessagesCount int64     `gorm:"not null;default:0" json:"messages_count"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatFilter represents filter criteria for chat queries
type ChatFilter struct {
	Token  *string
	Number *int64
}
