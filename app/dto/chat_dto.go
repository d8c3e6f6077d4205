package dto

// CreateChatRequest allocates the next chat number for an application
type CreateChatRequest struct {
	Token   string `json:"-" validate:"required,max=64"`
	ActorID int64  `json:"-" validate:"gte=0"`
}

type CreateChatResponse struct {
	ChatNumber int64 `json:"chatNumber"`
}

// ListChatsRequest pages through the persisted chats of an application
type ListChatsRequest struct {
	Token string `json:"-" validate:"required,max=64"`
	Page  int    `json:"page" validate:"omitempty,gte=1"`
	Limit int    `json:"limit" validate:"omitempty,gte=1"`
}

type ChatDTO struct {
	Number        int64  `json:"number"`
	MessagesCount int64  `json:"messagesCount"`
	CreatedAt     string `json:"createdAt"`
}

type ListChatsResponse struct {
	Chats []ChatDTO `json:"chats"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}
