package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"kowa/pkg/errors"
)

type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeImage   MessageType = "image"
	MessageTypeAudio   MessageType = "audio"
	MessageTypeOffer   MessageType = "offer"
	MessageTypeDeleted MessageType = "deleted"
)

const (
	MaxContentLength   = 2000
	DeletedPlaceholder = "Ce message a été supprimé"
	VoicePreview       = "🎤 Message vocal"
)

type OfferDetails struct {
	ItemID    string  `json:"item_id" firestore:"itemId" bson:"item_id"`
	ItemTitle string  `json:"item_title" firestore:"itemTitle" bson:"item_title"`
	ItemImage string  `json:"item_image,omitempty" firestore:"itemImage,omitempty" bson:"item_image,omitempty"`
	Price     float64 `json:"price" firestore:"price" bson:"price"`
}

type Message struct {
	ID             string        `json:"id" firestore:"id" bson:"_id"`
	ConversationID string        `json:"conversation_id" firestore:"conversationId" bson:"conversation_id"`
	SenderID       string        `json:"sender_id" firestore:"senderId" bson:"sender_id"`
	SenderName     string        `json:"sender_name" firestore:"senderName" bson:"sender_name"`
	SenderAvatar   string        `json:"sender_avatar,omitempty" firestore:"senderAvatar,omitempty" bson:"sender_avatar,omitempty"`
	Content        string        `json:"content" firestore:"content" bson:"content"`
	Type           MessageType   `json:"type" firestore:"type" bson:"type"`
	Attachments    []string      `json:"attachments" firestore:"attachments" bson:"attachments"`
	OfferDetails   *OfferDetails `json:"offer_details,omitempty" firestore:"offerDetails,omitempty" bson:"offer_details,omitempty"`
	Read           bool          `json:"read" firestore:"read" bson:"read"`
	ReadAt         *time.Time    `json:"read_at,omitempty" firestore:"readAt,omitempty" bson:"read_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// MessageDraft is what a sender submits before any lookups happen.
type MessageDraft struct {
	ConversationID string
	Content        string
	Type           MessageType
	Attachments    []string
	OfferDetails   *OfferDetails
}

// NewMessage builds a message and rejects drafts whose fields do not match
// the variant named by Type.
func NewMessage(draft MessageDraft, sender *UserProfile) (*Message, error) {
	if draft.ConversationID == "" {
		return nil, errors.Validation("conversation_id", "conversation_id is required")
	}
	if draft.Type == "" {
		draft.Type = MessageTypeText
	}

	content := strings.TrimSpace(draft.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, errors.Validation("content", "content must be at most 2000 characters")
	}

	attachments := make([]string, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		if a = strings.TrimSpace(a); a != "" {
			attachments = append(attachments, a)
		}
	}

	switch draft.Type {
	case MessageTypeText:
		if content == "" {
			return nil, errors.Validation("content", "content is required")
		}
	case MessageTypeImage:
		if len(attachments) == 0 {
			return nil, errors.Validation("attachments", "image messages need at least one attachment")
		}
		if content == "" {
			return nil, errors.Validation("content", "content is required")
		}
	case MessageTypeAudio:
		if len(attachments) == 0 {
			return nil, errors.Validation("attachments", "audio messages need at least one attachment")
		}
	case MessageTypeOffer:
		if draft.OfferDetails == nil || draft.OfferDetails.ItemID == "" {
			return nil, errors.Validation("offer_details", "offer messages need offer_details.item_id")
		}
		if draft.OfferDetails.Price < 0 {
			return nil, errors.Validation("offer_details.price", "price must not be negative")
		}
	case MessageTypeDeleted:
		return nil, errors.Validation("type", "deleted messages cannot be sent")
	default:
		return nil, errors.Validation("type", "type must be one of: text image audio offer")
	}

	if draft.OfferDetails != nil && draft.Type != MessageTypeOffer {
		return nil, errors.Validation("offer_details", "offer_details is only allowed on offer messages")
	}

	msg := &Message{
		ConversationID: draft.ConversationID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		SenderAvatar:   sender.Avatar,
		Content:        content,
		Type:           draft.Type,
		Attachments:    attachments,
	}
	if draft.OfferDetails != nil {
		details := *draft.OfferDetails
		msg.OfferDetails = &details
	}
	return msg, nil
}

// Summary is the projection stored as a conversation's last message.
func (m *Message) Summary() LastMessage {
	content := m.Content
	if m.Type == MessageTypeAudio && content == "" {
		content = VoicePreview
	}
	return LastMessage{
		ID:         m.ID,
		Content:    content,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Timestamp:  m.CreatedAt,
		Read:       m.Read,
		Type:       m.Type,
	}
}

func (m *Message) IsDeleted() bool {
	return m.Type == MessageTypeDeleted
}

// SoftDelete replaces the payload with the placeholder. Identity, sender,
// read state and timestamps are kept.
func (m *Message) SoftDelete() {
	m.Content = DeletedPlaceholder
	m.Type = MessageTypeDeleted
	m.Attachments = []string{}
	m.OfferDetails = nil
}

// MarkRead flips the read flag once. It reports whether anything changed.
func (m *Message) MarkRead(at time.Time) bool {
	if m.Read {
		return false
	}
	m.Read = true
	m.ReadAt = &at
	return true
}

// DeletedSummary is the last message shown once nothing else is left.
func DeletedSummary(requesterID string, at time.Time) LastMessage {
	return LastMessage{
		Content:   DeletedPlaceholder,
		SenderID:  requesterID,
		Timestamp: at,
		Read:      true,
		Type:      MessageTypeDeleted,
	}
}
