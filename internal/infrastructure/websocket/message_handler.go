package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"kowa/internal/domain/entity"
	"kowa/internal/infrastructure/metrics"
	"kowa/internal/usecase"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

var knownEvents = map[string]bool{
	entity.EventPing:              true,
	entity.EventConversationJoin:  true,
	entity.EventConversationLeave: true,
	entity.EventMessageSend:       true,
	entity.EventMessageRead:       true,
	entity.EventTypingStart:       true,
	entity.EventTypingStop:        true,
}

// HandleClientMessage processes one inbound frame. Failures are reported back
// as an error event; the connection stays open.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var in InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		logger.Debug("WebSocket: malformed frame from client %s: %v", client.ID, err)
		metrics.RecordRealtimeEvent("malformed", false)
		client.Enqueue(encodeError(errors.RealtimeProtocol("Invalid message format")))
		return
	}

	if !knownEvents[in.Type] {
		logger.Debug("WebSocket: unknown event %q from client %s", in.Type, client.ID)
		metrics.RecordRealtimeEvent("unknown", false)
		client.Enqueue(encodeError(errors.RealtimeProtocol("Unknown event type: " + in.Type)))
		return
	}

	// Detached from the connection: an accepted send or read completes even
	// if the client drops mid-way.
	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()

	var err error
	switch in.Type {
	case entity.EventPing:
		client.Enqueue(encodeEvent(entity.EventPong, nil))
	case entity.EventConversationJoin:
		err = m.handleJoin(ctx, client, in.Data)
	case entity.EventConversationLeave:
		err = m.handleLeave(client, in.Data)
	case entity.EventMessageSend:
		err = m.handleSendMessage(ctx, client, in.Data)
	case entity.EventMessageRead:
		err = m.handleMarkRead(ctx, client, in.Data)
	case entity.EventTypingStart, entity.EventTypingStop:
		err = m.handleTyping(client, in.Type, in.Data)
	}

	metrics.RecordRealtimeEvent(in.Type, err == nil)
	if err != nil {
		logger.Debug("WebSocket: %s from client %s failed: %v", in.Type, client.ID, err)
		client.Enqueue(encodeError(err))
	}
}

func decodeConversationRef(raw json.RawMessage) (string, error) {
	var ref conversationRef
	if err := decodeData(raw, &ref); err != nil {
		return "", err
	}
	if strings.TrimSpace(ref.ConversationID) == "" {
		return "", errors.RealtimeProtocol("conversationId is required")
	}
	return ref.ConversationID, nil
}

func (m *Manager) handleJoin(ctx context.Context, client *Client, raw json.RawMessage) error {
	conversationID, err := decodeConversationRef(raw)
	if err != nil {
		return err
	}
	if err := m.conversations.CanAccess(ctx, client.UserID, conversationID); err != nil {
		return err
	}

	m.join(client, conversationID)
	m.emitToRoomExcept(conversationID, client, entity.EventUserJoined, roomMemberData{
		UserID:         client.UserID,
		UserName:       client.UserName,
		ConversationID: conversationID,
	})
	return nil
}

func (m *Manager) handleLeave(client *Client, raw json.RawMessage) error {
	conversationID, err := decodeConversationRef(raw)
	if err != nil {
		return err
	}
	if m.leave(client, conversationID) {
		m.EmitToConversation(conversationID, entity.EventUserLeft, roomMemberData{
			UserID:         client.UserID,
			UserName:       client.UserName,
			ConversationID: conversationID,
		})
	}
	return nil
}

func (m *Manager) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) error {
	var data sendMessageData
	if err := decodeData(raw, &data); err != nil {
		return err
	}

	input := usecase.SendMessageInput{
		ConversationID: data.ConversationID,
		Content:        data.Content,
		Type:           entity.MessageType(data.Type),
		Attachments:    data.Attachments,
	}
	if data.OfferDetails != nil {
		input.OfferDetails = &entity.OfferDetails{
			ItemID: data.OfferDetails.ItemID,
			Price:  data.OfferDetails.Price,
		}
	}

	_, err := m.messages.Send(ctx, client.UserID, input)
	return err
}

func (m *Manager) handleMarkRead(ctx context.Context, client *Client, raw json.RawMessage) error {
	var data markReadData
	if err := decodeData(raw, &data); err != nil {
		return err
	}
	if strings.TrimSpace(data.MessageID) == "" {
		return errors.RealtimeProtocol("messageId is required")
	}
	return m.messages.MarkRead(ctx, client.UserID, data.MessageID)
}

// handleTyping relays to the rest of the room. Nothing is stored.
func (m *Manager) handleTyping(client *Client, event string, raw json.RawMessage) error {
	conversationID, err := decodeConversationRef(raw)
	if err != nil {
		return err
	}
	if !m.inRoom(client, conversationID) {
		return errors.RealtimeProtocol("Join the conversation before sending typing events")
	}
	if m.limiter != nil {
		if ok, _ := m.limiter.Allow(client.UserID, "typing"); !ok {
			return nil
		}
	}

	m.emitToRoomExcept(conversationID, client, event, roomMemberData{
		UserID:         client.UserID,
		UserName:       client.UserName,
		ConversationID: conversationID,
	})
	return nil
}
