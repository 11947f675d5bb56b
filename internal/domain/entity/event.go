package entity

// Realtime event names, shared by the gateway and the use cases that fan out.
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventPing              = "ping"

	EventPong                = "pong"
	EventMessageNew          = "message:new"
	EventMessageRead         = "message:read"
	EventMessageDeleted      = "message:deleted"
	EventConversationUpdated = "conversation:updated"
	EventUnreadCountChanged  = "unreadCount:changed"
	EventUserJoined          = "user:joined"
	EventUserLeft            = "user:left"
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
	EventUsersOnline         = "users:online"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventError               = "error"
)

// DomainEvent is published to the event bus after a ledger change commits.
type DomainEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	ActorID        string      `json:"actor_id"`
	Payload        interface{} `json:"payload,omitempty"`
}
