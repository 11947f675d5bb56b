package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kowa/pkg/errors"
)

var sender = &UserProfile{ID: "u1", Name: "Awa", Avatar: "https://cdn.test/awa.png"}

func TestNewMessage_Variants(t *testing.T) {
	tests := []struct {
		name    string
		draft   MessageDraft
		wantErr string
	}{
		{"text", MessageDraft{Content: "salut", Type: MessageTypeText}, ""},
		{"default type is text", MessageDraft{Content: "salut"}, ""},
		{"text without content", MessageDraft{Content: "  ", Type: MessageTypeText}, "content"},
		{"image", MessageDraft{Content: "photo", Type: MessageTypeImage, Attachments: []string{"https://x/1.jpg"}}, ""},
		{"image without attachment", MessageDraft{Content: "photo", Type: MessageTypeImage, Attachments: []string{" "}}, "attachments"},
		{"image without caption", MessageDraft{Type: MessageTypeImage, Attachments: []string{"https://x/1.jpg"}}, "content"},
		{"audio", MessageDraft{Type: MessageTypeAudio, Attachments: []string{"https://x/1.webm"}}, ""},
		{"audio without attachment", MessageDraft{Type: MessageTypeAudio}, "attachments"},
		{"offer", MessageDraft{Type: MessageTypeOffer, OfferDetails: &OfferDetails{ItemID: "p1", Price: 10}}, ""},
		{"offer without item", MessageDraft{Type: MessageTypeOffer, OfferDetails: &OfferDetails{Price: 10}}, "offer_details"},
		{"offer with negative price", MessageDraft{Type: MessageTypeOffer, OfferDetails: &OfferDetails{ItemID: "p1", Price: -1}}, "offer_details.price"},
		{"offer details on text", MessageDraft{Content: "x", Type: MessageTypeText, OfferDetails: &OfferDetails{ItemID: "p1"}}, "offer_details"},
		{"deleted cannot be sent", MessageDraft{Content: "x", Type: MessageTypeDeleted}, "type"},
		{"unknown type", MessageDraft{Content: "x", Type: "sticker"}, "type"},
		{"too long", MessageDraft{Content: strings.Repeat("a", MaxContentLength+1)}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.draft.ConversationID = "c1"
			msg, err := NewMessage(tt.draft, sender)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "u1", msg.SenderID)
				assert.Equal(t, "Awa", msg.SenderName)
				assert.False(t, msg.Read)
				return
			}
			require.Error(t, err)
			appErr := errors.As(err)
			assert.Equal(t, errors.CodeValidation, appErr.Code)
			assert.Equal(t, tt.wantErr, appErr.Details["field"])
		})
	}
}

func TestNewMessage_MaxLengthCountsCharacters(t *testing.T) {
	_, err := NewMessage(MessageDraft{ConversationID: "c1", Content: strings.Repeat("é", MaxContentLength)}, sender)
	assert.NoError(t, err)
}

func TestNewMessage_RequiresConversation(t *testing.T) {
	_, err := NewMessage(MessageDraft{Content: "x"}, sender)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestSummary_VoicePreview(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &Message{ID: "m1", SenderID: "u1", SenderName: "Awa", Type: MessageTypeAudio, CreatedAt: at}

	s := msg.Summary()
	assert.Equal(t, VoicePreview, s.Content)
	assert.Equal(t, "m1", s.ID)
	assert.True(t, at.Equal(s.Timestamp))

	msg.Content = "écoute"
	assert.Equal(t, "écoute", msg.Summary().Content)
}

func TestSoftDeleteKeepsIdentity(t *testing.T) {
	at := time.Now()
	msg := &Message{
		ID:           "m1",
		SenderID:     "u1",
		Content:      "offre",
		Type:         MessageTypeOffer,
		Attachments:  []string{"https://x/1.jpg"},
		OfferDetails: &OfferDetails{ItemID: "p1"},
		Read:         true,
		CreatedAt:    at,
	}

	msg.SoftDelete()
	assert.True(t, msg.IsDeleted())
	assert.Equal(t, DeletedPlaceholder, msg.Content)
	assert.Empty(t, msg.Attachments)
	assert.Nil(t, msg.OfferDetails)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "u1", msg.SenderID)
	assert.True(t, msg.Read)
	assert.True(t, at.Equal(msg.CreatedAt))
}

func TestMessageMarkReadOnce(t *testing.T) {
	msg := &Message{}
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, msg.MarkRead(first))
	assert.False(t, msg.MarkRead(first.Add(time.Hour)))
	assert.True(t, first.Equal(*msg.ReadAt))
}
