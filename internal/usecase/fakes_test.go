package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"kowa/internal/adapter/repository"
	"kowa/internal/domain/entity"
	domainrepo "kowa/internal/domain/repository"
)

type emitted struct {
	conversationID string
	userID         string
	event          string
	data           interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
	online map[string]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{online: make(map[string]bool)}
}

func (n *recordingNotifier) EmitToConversation(conversationID, event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{conversationID: conversationID, event: event, data: data})
}

func (n *recordingNotifier) EmitToUser(userID, event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{userID: userID, event: event, data: data})
}

func (n *recordingNotifier) IsOnline(userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online[userID]
}

func (n *recordingNotifier) named(event string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type fakeMedia struct {
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (m *fakeMedia) Upload(ctx context.Context, file io.Reader, contentType, folder string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	url := "https://media.test/" + folder + "/clip.webm"
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *fakeMedia) Delete(ctx context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(userID, action string) (bool, time.Duration) { return false, 3 * time.Second }

type brokenListings struct{}

func (brokenListings) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	return nil, errors.New("listing service timeout")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event entity.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	conversations domainrepo.ConversationRepository
	messages      domainrepo.MessageRepository
	directory     *repository.MemoryDirectory
	notifier      *recordingNotifier
	media         *fakeMedia
	publisher     *recordingPublisher
	convUC        *ConversationUseCase
	msgUC         *MessageUseCase
}

const (
	buyerID    = "buyer-1"
	sellerID   = "seller-1"
	outsiderID = "outsider-1"
	productID  = "product-1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		conversations: repository.NewMemoryConversationRepository(),
		messages:      repository.NewMemoryMessageRepository(),
		directory:     repository.NewMemoryDirectory(),
		notifier:      newRecordingNotifier(),
		media:         &fakeMedia{},
		publisher:     &recordingPublisher{},
	}
	f.directory.PutUser(&entity.UserProfile{ID: buyerID, Name: "Awa"})
	f.directory.PutUser(&entity.UserProfile{ID: sellerID, Name: "Moussa", Avatar: "https://cdn.test/moussa.png"})
	f.directory.PutUser(&entity.UserProfile{ID: outsiderID, Name: "Fatou"})
	f.directory.PutListing(&entity.Listing{
		ID:       productID,
		Title:    "Vélo de course",
		Images:   []string{"https://cdn.test/velo-1.jpg", "https://cdn.test/velo-2.jpg"},
		Price:    150000,
		SellerID: sellerID,
	})

	f.convUC = NewConversationUseCase(f.conversations, f.messages, f.directory, f.directory, f.notifier)
	f.convUC.SetEventPublisher(f.publisher)
	f.msgUC = NewMessageUseCase(f.conversations, f.messages, f.directory, f.directory, f.notifier, f.media, nil)
	f.msgUC.SetEventPublisher(f.publisher)
	return f
}

// conversation opens a buyer/seller conversation without an item, so no
// welcome message is posted.
func (f *fixture) conversation(t *testing.T) string {
	t.Helper()
	view, _, err := f.convUC.CreateOrGet(context.Background(), buyerID, CreateConversationInput{SellerID: sellerID})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return view.ID
}

func (f *fixture) send(t *testing.T, from, conversationID, content string) *entity.Message {
	t.Helper()
	msg, err := f.msgUC.Send(context.Background(), from, SendMessageInput{
		ConversationID: conversationID,
		Content:        content,
		Type:           entity.MessageTypeText,
	})
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return msg
}

func (f *fixture) load(t *testing.T, conversationID string) *entity.Conversation {
	t.Helper()
	c, err := f.conversations.GetByID(context.Background(), conversationID)
	if err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	return c
}
