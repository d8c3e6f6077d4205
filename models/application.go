// Package models contains domain entities and business models for the chat sequencer
package models

import "time"

// Application owns chats; ChatsCount is the denormalized chat count refreshed by reconciliation
// Table: applications
// Unique by Token
type Application struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Token      string    `gorm:"size:64;not null;uniqueIndex:uk_applications_token" json:"token"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	ChatsCount int64     `gorm:"not null;default:0" json:"chats_count"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Application) TableName() string {
	return "applications"
}

// ApplicationFilter represents filter criteria for application queries
type ApplicationFilter struct {
	ID    *uint
	Token *string
}
