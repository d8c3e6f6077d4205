package models

import "time"

// Message is numbered per chat
// Table: messages
// Unique by (token, chat_number, number); the same tuple is the row writer's idempotency key
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Token      string    `gorm:"size:64;not null;uniqueIndex:uk_messages_natural,priority:1" json:"token"`
	ChatNumber int64     `gorm:"not null;uniqueIndex:uk_messages_natural,priority:2" json:"chat_number"`
	Number     int64     `gorm:"not null;uniqueIndex:uk_messages_natural,priority:3" json:"number"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatorID  int64     `gorm:"not null;index:idx_messages_creator_id" json:"creator_id"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	Token      *string
	ChatNumber *int64
	Number     *int64
}
