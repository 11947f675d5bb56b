package websocket

import (
	"encoding/json"
	"time"

	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

// InboundEvent is what clients send: {"type": "...", "data": {...}}.
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutboundEvent is the envelope of every frame pushed to clients.
type OutboundEvent struct {
	Type      string      `json:"type"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *EventError `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type offerDetailsData struct {
	ItemID string  `json:"itemId"`
	Price  float64 `json:"price"`
}

type sendMessageData struct {
	ConversationID string            `json:"conversationId"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	Attachments    []string          `json:"attachments"`
	OfferDetails   *offerDetailsData `json:"offerDetails"`
}

type markReadData struct {
	MessageID string `json:"messageId"`
}

type presenceData struct {
	UserID string `json:"userId"`
}

type onlineUsersData struct {
	UserIDs []string `json:"userIds"`
}

type roomMemberData struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	ConversationID string `json:"conversationId"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func encodeEvent(eventType string, data interface{}) []byte {
	frame, err := json.Marshal(OutboundEvent{
		Type:      eventType,
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", eventType, err)
		return nil
	}
	return frame
}

func encodeError(err error) []byte {
	appErr := errors.As(err)
	frame, _ := json.Marshal(OutboundEvent{
		Type:    "error",
		Success: false,
		Error: &EventError{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
		Timestamp: timestamp(),
	})
	return frame
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.RealtimeProtocol("Missing event data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.RealtimeProtocol("Invalid event data")
	}
	return nil
}
