package usecase

import (
	"time"

	"kowa/internal/domain/entity"
)

// Payloads carried by realtime events. Keys are camelCase to match the
// client event contract.

type ConversationUpdatedPayload struct {
	ConversationID string              `json:"conversationId"`
	LastMessage    *entity.LastMessage `json:"lastMessage"`
	UnreadCount    int                 `json:"unreadCount"`
}

type UnreadCountChangedPayload struct {
	ConversationID string `json:"conversationId"`
	UnreadCount    int    `json:"unreadCount"`
}

type MessageReadPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
}

type MessageDeletedPayload struct {
	ConversationID string          `json:"conversationId"`
	MessageID      string          `json:"messageId"`
	Message        *entity.Message `json:"message"`
}

// Domain event types published to the bus.
const (
	DomainEventConversationCreated = "conversation.created"
	DomainEventMessageSent         = "message.sent"
	DomainEventMessageRead         = "message.read"
	DomainEventMessageDeleted      = "message.deleted"
)

func emitConversationUpdated(n Notifier, c *entity.Conversation, role entity.Role) {
	n.EmitToUser(c.ParticipantFor(role), entity.EventConversationUpdated, ConversationUpdatedPayload{
		ConversationID: c.ID,
		LastMessage:    c.LastMessage,
		UnreadCount:    c.UnreadCount.For(role),
	})
}

func emitUnreadChanged(n Notifier, c *entity.Conversation, role entity.Role) {
	n.EmitToUser(c.ParticipantFor(role), entity.EventUnreadCountChanged, UnreadCountChangedPayload{
		ConversationID: c.ID,
		UnreadCount:    c.UnreadCount.For(role),
	})
}

// emitRead tells the room and every session of the sender.
func emitRead(n Notifier, msg *entity.Message, readerID string, at time.Time) {
	payload := MessageReadPayload{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		ReaderID:       readerID,
		ReadAt:         at,
	}
	n.EmitToConversation(msg.ConversationID, entity.EventMessageRead, payload)
	n.EmitToUser(msg.SenderID, entity.EventMessageRead, payload)
}
