package testing

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/amirphl/chat-sequencer/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestApplication inserts an application with a random token
func (tf *TestFixtures) CreateTestApplication(chatsCount int64) (*models.Application, error) {
	app := &models.Application{
		Token:      uuid.NewString(),
		Name:       "test application",
		ChatsCount: chatsCount,
	}
	if err := tf.DB.DB.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create test application: %w", err)
	}
	return app, nil
}

// CreateTestChat inserts a chat under token
func (tf *TestFixtures) CreateTestChat(token string, number, messagesCount int64) (*models.Chat, error) {
	chat := &models.Chat{
		Token:         token,
		Number:        number,
		CreatorID:     1,
		MessagesCount: messagesCount,
	}
	if err := tf.DB.DB.Create(chat).Error; err != nil {
		return nil, fmt.Errorf("failed to create test chat: %w", err)
	}
	return chat, nil
}

// CreateTestMessage inserts a message sent by creatorID
func (tf *TestFixtures) CreateTestMessage(token string, chatNumber, number, creatorID int64, body string) (*models.Message, error) {
	msg := &models.Message{
		Token:      token,
		ChatNumber: chatNumber,
		Number:     number,
		Body:       body,
		CreatorID:  creatorID,
	}
	if err := tf.DB.DB.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return msg, nil
}
