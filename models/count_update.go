package models

// ChatsCountUpdate carries a reconciled chat counter for one application
type ChatsCountUpdate struct {
	Token      string
	ChatsCount int64
}

// MessagesCountUpdate carries a reconciled message counter for one chat
type MessagesCountUpdate struct {
	Token         string
	ChatNumber    int64
	MessagesCount int64
}
