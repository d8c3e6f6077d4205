package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a record published to the broker for the row writer
type Event interface {
	// ID is sent as the broker message id; it is not part of the JSON body
	ID() uuid.UUID
	// PartitionKey keeps events of one parent on one partition or stream subject
	PartitionKey() string
}

// CreateChatEvent is published on create_chats
type CreateChatEvent struct {
	EventID    uuid.UUID `json:"-"`
	Token      string    `json:"token"`
	ChatNumber int64     `json:"chatNumber"`
	CreatorID  int64     `json:"creatorId"`
}

func (e CreateChatEvent) ID() uuid.UUID        { return e.EventID }
func (e CreateChatEvent) PartitionKey() string { return ChatParent{Token: e.Token}.Member() }

// CreateMessageEvent is published on create_messages
type CreateMessageEvent struct {
	EventID       uuid.UUID `json:"-"`
	Token         string    `json:"token"`
	ChatNumber    int64     `json:"chatNumber"`
	MessageNumber int64     `json:"messageNumber"`
	SenderID      int64     `json:"senderId"`
	Body          string    `json:"body"`
	Date          string    `json:"date"`
}

func (e CreateMessageEvent) ID() uuid.UUID { return e.EventID }
func (e CreateMessageEvent) PartitionKey() string {
	return MessageParent{Token: e.Token, ChatNumber: e.ChatNumber}.Member()
}

// UpdateMessageEvent is published on update_messages
type UpdateMessageEvent struct {
	EventID       uuid.UUID `json:"-"`
	Token         string    `json:"token"`
	ChatNumber    int64     `json:"chatNumber"`
	MessageNumber int64     `json:"messageNumber"`
	Body          string    `json:"body"`
}

func (e UpdateMessageEvent) ID() uuid.UUID { return e.EventID }
func (e UpdateMessageEvent) PartitionKey() string {
	return MessageParent{Token: e.Token, ChatNumber: e.ChatNumber}.Member()
}

// FormatEventDate renders the create_messages date field (ISO-8601, UTC)
func FormatEventDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
