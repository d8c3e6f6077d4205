package utils

import (
	"time"
)

// Counter store key layout
const (
	// ChatCounterPrefix namespaces per-application chat counters: chat_counter:<token>
	ChatCounterPrefix = "chat_counter"

	// MessageCounterPrefix namespaces per-chat message counters: message_counter:<token>:<chatNumber>
	MessageCounterPrefix = "message_counter"

	// ChatChangesSet holds application tokens whose chat counter is ahead of applications.chats_count
	ChatChangesSet = "chat_changes"

	// MessageChangesSet holds <token>:<chatNumber> members whose counter is ahead of chats.messages_count
	MessageChangesSet = "message_changes"

	// KeySeparator joins the parts of counter keys and dirty-set members
	KeySeparator = ":"
)

// Broker topics
const (
	TopicCreateChats    = "create_chats"
	TopicCreateMessages = "create_messages"
	TopicUpdateMessages = "update_messages"
)

// Sequencer defaults
const (
	// DefaultCounterTimeout bounds one allocation round trip (counter store plus optional seed fetch)
	DefaultCounterTimeout = 2 * time.Second

	// DefaultPublishTimeout bounds waiting for a broker confirm
	DefaultPublishTimeout = 5 * time.Second

	// DefaultReconcileInterval matches the writer's count sync cadence
	DefaultReconcileInterval = 10 * time.Second

	// DefaultReconcileBatchSize is the number of parents written per UPDATE statement
	DefaultReconcileBatchSize = 100

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Context keys used by handlers
type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)
