package dto

// CreateMessageRequest allocates the next message number in a chat
type CreateMessageRequest struct {
	Token      string `json:"-" validate:"required,max=64"`
	ChatNumber int64  `json:"-" validate:"gte=1"`
	SenderID   int64  `json:"-" validate:"gte=0"`
	Body       string `json:"body" validate:"required,max=4096"`
}

type CreateMessageResponse struct {
	MessageNumber int64 `json:"messageNumber"`
}

// UpdateMessageRequest replaces the body of a message sent by the requester
type UpdateMessageRequest struct {
	Token         string `json:"-" validate:"required,max=64"`
	ChatNumber    int64  `json:"-" validate:"gte=1"`
	MessageNumber int64  `json:"messageNumber" validate:"gte=1"`
	RequesterID   int64  `json:"-" validate:"gte=0"`
	Body          string `json:"body" validate:"required,max=4096"`
}

type UpdateMessageResponse struct {
	MessageNumber int64 `json:"messageNumber"`
}

// ListMessagesRequest pages through the persisted messages of a chat
type ListMessagesRequest struct {
	Token      string `json:"-" validate:"required,max=64"`
	ChatNumber int64  `json:"-" validate:"gte=1"`
	Page       int    `json:"page" validate:"omitempty,gte=1"`
	Limit      int    `json:"limit" validate:"omitempty,gte=1"`
}

type MessageDTO struct {
	Number    int64  `json:"number"`
	Body      string `json:"body"`
	SenderID  int64  `json:"senderId"`
	CreatedAt string `json:"createdAt"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}
