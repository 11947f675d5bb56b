package websocket

import (
	"context"
	"sync"
	"time"

	"kowa/internal/domain/entity"
	"kowa/internal/usecase"
	"kowa/pkg/logger"
)

// ConversationService is the part of the conversation use case the gateway
// needs to authorize room joins.
type ConversationService interface {
	CanAccess(ctx context.Context, userID, conversationID string) error
}

// MessageService is the part of the message use case reachable over the
// realtime channel.
type MessageService interface {
	Send(ctx context.Context, senderID string, input usecase.SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, readerID, messageID string) error
}

// Manager owns conversation rooms and routes inbound events. It is also the
// Notifier the use cases fan out through.
type Manager struct {
	registry *Registry

	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}

	conversations ConversationService
	messages      MessageService
	presence      usecase.PresenceStore
	limiter       usecase.RateLimiter
	opTimeout     time.Duration
}

func NewManager(registry *Registry, opTimeout time.Duration) *Manager {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Manager{
		registry:    registry,
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		opTimeout:   opTimeout,
	}
}

// SetServices wires the use cases. They are created after the manager
// because they notify through it.
func (m *Manager) SetServices(conversations ConversationService, messages MessageService) {
	m.conversations = conversations
	m.messages = messages
}

func (m *Manager) SetPresenceStore(p usecase.PresenceStore) {
	m.presence = p
}

func (m *Manager) SetRateLimiter(l usecase.RateLimiter) {
	m.limiter = l
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Serve registers the client and starts its pumps. It returns immediately.
func (m *Manager) Serve(c *Client) {
	m.Connect(c)
	go c.writePump()
	go func() {
		defer m.Disconnect(c)
		c.readPump(func(raw []byte) {
			m.HandleClientMessage(c, raw)
		})
	}()
}

func (m *Manager) Connect(c *Client) {
	first := m.registry.Register(c)
	logger.Info("WebSocket: client %s connected for user %s", c.ID, c.UserID)

	c.Enqueue(encodeEvent(entity.EventUsersOnline, onlineUsersData{
		UserIDs: m.registry.OnlineUserIDs(c.UserID),
	}))

	if first && m.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
		defer cancel()
		if err := m.presence.MarkOnline(ctx, c.UserID); err != nil {
			logger.Warn("WebSocket: failed to record presence for %s: %v", c.UserID, err)
		}
	}
}

// Disconnect leaves every room, then unregisters. Safe to call twice.
func (m *Manager) Disconnect(c *Client) {
	for _, conversationID := range m.leaveAll(c) {
		m.emitToRoomExcept(conversationID, c, entity.EventUserLeft, roomMemberData{
			UserID:         c.UserID,
			UserName:       c.UserName,
			ConversationID: conversationID,
		})
	}

	last := m.registry.Unregister(c)
	c.Close()
	logger.Info("WebSocket: client %s disconnected for user %s", c.ID, c.UserID)

	if last && m.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
		defer cancel()
		if err := m.presence.MarkOffline(ctx, c.UserID, time.Now()); err != nil {
			logger.Warn("WebSocket: failed to record last seen for %s: %v", c.UserID, err)
		}
	}
}

func (m *Manager) join(c *Client, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		m.rooms[conversationID] = room
	}
	room[c] = struct{}{}

	joined, ok := m.memberships[c]
	if !ok {
		joined = make(map[string]struct{})
		m.memberships[c] = joined
	}
	joined[conversationID] = struct{}{}
}

func (m *Manager) leave(c *Client, conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(c, conversationID)
}

func (m *Manager) leaveLocked(c *Client, conversationID string) bool {
	room, ok := m.rooms[conversationID]
	if !ok {
		return false
	}
	if _, member := room[c]; !member {
		return false
	}
	delete(room, c)
	if len(room) == 0 {
		delete(m.rooms, conversationID)
	}
	if joined, ok := m.memberships[c]; ok {
		delete(joined, conversationID)
		if len(joined) == 0 {
			delete(m.memberships, c)
		}
	}
	return true
}

func (m *Manager) leaveAll(c *Client) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var left []string
	for conversationID := range m.memberships[c] {
		left = append(left, conversationID)
	}
	for _, conversationID := range left {
		m.leaveLocked(c, conversationID)
	}
	return left
}

func (m *Manager) inRoom(c *Client, conversationID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[conversationID][c]
	return ok
}

func (m *Manager) emitToRoomExcept(conversationID string, except *Client, event string, data interface{}) {
	frame := encodeEvent(event, data)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.rooms[conversationID] {
		if c != except {
			c.Enqueue(frame)
		}
	}
}

// EmitToConversation delivers to every connection joined to the room.
func (m *Manager) EmitToConversation(conversationID, event string, data interface{}) {
	m.emitToRoomExcept(conversationID, nil, event, data)
}

// EmitToUser delivers to every connection of the user, joined or not.
func (m *Manager) EmitToUser(userID, event string, data interface{}) {
	handles := m.registry.HandlesFor(userID)
	if len(handles) == 0 {
		return
	}
	frame := encodeEvent(event, data)
	for _, c := range handles {
		c.Enqueue(frame)
	}
}

func (m *Manager) IsOnline(userID string) bool {
	return m.registry.IsOnline(userID)
}
