package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kowa/internal/domain/entity"
	"kowa/pkg/errors"
)

func TestCreateOrGet_NewConversationWithItemPostsWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, existing, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)
	assert.False(t, existing)

	assert.Equal(t, entity.RoleBuyer, view.Role)
	assert.Equal(t, sellerID, view.OtherParticipant.ID)
	assert.Equal(t, "Moussa", view.OtherParticipant.Name)
	require.NotNil(t, view.Item)
	assert.Equal(t, "Vélo de course", view.Item.Title)
	assert.Equal(t, "https://cdn.test/velo-1.jpg", view.Item.Image)
	assert.Equal(t, 150000.0, view.Item.Price)

	require.NotNil(t, view.LastMessage)
	assert.Equal(t, sellerID, view.LastMessage.SenderID)
	assert.True(t, strings.Contains(view.LastMessage.Content, "Vélo de course"))
	assert.Equal(t, 1, view.UnreadCount)

	stored := f.load(t, view.ID)
	assert.Equal(t, 1, stored.UnreadCount.Buyer)
	assert.Equal(t, 0, stored.UnreadCount.Seller)

	msgs, total, err := f.messages.ListByConversation(ctx, view.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, sellerID, msgs[0].SenderID)

	assert.Len(t, f.notifier.named(entity.EventConversationUpdated), 1)
	assert.Len(t, f.notifier.named(entity.EventUnreadCountChanged), 1)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, DomainEventConversationCreated, f.publisher.events[0].Type)
}

func TestCreateOrGet_ReturnsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)

	second, existing, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, first.ID, second.ID)

	// No second welcome message.
	_, total, err := f.messages.ListByConversation(ctx, first.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCreateOrGet_WithoutItemIsOnePerPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, existing, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID})
	require.NoError(t, err)
	assert.False(t, existing)
	assert.Nil(t, first.LastMessage)

	reversed, existing, err := f.convUC.CreateOrGet(ctx, sellerID, CreateConversationInput{SellerID: buyerID})
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, first.ID, reversed.ID)
	assert.Equal(t, entity.RoleSeller, reversed.Role)
}

func TestCreateOrGet_DistinctItemsGetDistinctConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.directory.PutListing(&entity.Listing{ID: "product-2", Title: "Casque", Price: 5000, SellerID: sellerID})

	a, _, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)
	b, _, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: "product-2"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateOrGet_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: buyerID})
	assert.True(t, errors.Is(err, errors.CodeSelfConversation))

	_, _, err = f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: "  "})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, _, err = f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: "nobody"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestCreateOrGet_ListingFailureDegradesToNoItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := NewConversationUseCase(f.conversations, f.messages, f.directory, brokenListings{}, f.notifier)

	view, existing, err := uc.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)
	assert.False(t, existing)
	assert.Nil(t, view.Item)
	assert.Nil(t, view.LastMessage)
	assert.Equal(t, 0, view.UnreadCount)
}

func TestMarkAsRead_ClearsCounterAndFlipsMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)

	f.send(t, buyerID, convID, "Bonjour")
	f.send(t, buyerID, convID, "Toujours disponible ?")
	f.send(t, buyerID, convID, "Je peux passer demain")
	f.send(t, sellerID, convID, "Oui")

	c := f.load(t, convID)
	assert.Equal(t, 3, c.UnreadCount.Seller)
	assert.Equal(t, 1, c.UnreadCount.Buyer)

	f.notifier.reset()
	require.NoError(t, f.convUC.MarkAsRead(ctx, sellerID, convID))

	c = f.load(t, convID)
	assert.Equal(t, 0, c.UnreadCount.Seller)
	assert.Equal(t, 1, c.UnreadCount.Buyer)

	msgs, _, err := f.messages.ListByConversation(ctx, convID, 10, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == buyerID {
			assert.True(t, m.Read, m.Content)
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.False(t, m.Read, m.Content)
		}
	}

	// Each flipped message is announced to the room and to its sender.
	assert.Len(t, f.notifier.named(entity.EventMessageRead), 6)
	unread := f.notifier.named(entity.EventUnreadCountChanged)
	require.Len(t, unread, 1)
	assert.Equal(t, sellerID, unread[0].userID)
	assert.Equal(t, 0, unread[0].data.(UnreadCountChangedPayload).UnreadCount)

	// Second call has nothing left to flip.
	f.notifier.reset()
	require.NoError(t, f.convUC.MarkAsRead(ctx, sellerID, convID))
	assert.Empty(t, f.notifier.named(entity.EventMessageRead))
}

func TestMarkAsRead_FlagsLastMessageRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)

	f.send(t, buyerID, convID, "Bonjour")
	require.NoError(t, f.convUC.MarkAsRead(ctx, sellerID, convID))

	c := f.load(t, convID)
	require.NotNil(t, c.LastMessage)
	assert.True(t, c.LastMessage.Read)
}

func TestConversationAccessIsLimitedToParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)

	_, err := f.convUC.GetByID(ctx, outsiderID, convID)
	assert.True(t, errors.Is(err, errors.CodeNotParticipant))

	assert.True(t, errors.Is(f.convUC.MarkAsRead(ctx, outsiderID, convID), errors.CodeNotParticipant))
	assert.True(t, errors.Is(f.convUC.Archive(ctx, outsiderID, convID), errors.CodeNotParticipant))
	assert.True(t, errors.Is(f.convUC.CanAccess(ctx, outsiderID, convID), errors.CodeNotParticipant))
	assert.NoError(t, f.convUC.CanAccess(ctx, sellerID, convID))

	_, err = f.convUC.GetByID(ctx, buyerID, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestArchiveAndUnarchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)
	f.send(t, sellerID, convID, "Salut")

	total, err := f.convUC.UnreadTotal(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, f.convUC.Archive(ctx, buyerID, convID))
	require.NoError(t, f.convUC.Archive(ctx, buyerID, convID))

	active, err := f.convUC.ListForUser(ctx, buyerID, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	archived, err := f.convUC.ListForUser(ctx, buyerID, "archived")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, entity.ConversationStatusArchived, archived[0].Status)

	total, err = f.convUC.UnreadTotal(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	require.NoError(t, f.convUC.Unarchive(ctx, sellerID, convID))
	active, err = f.convUC.ListForUser(ctx, buyerID, "active")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = f.convUC.ListForUser(ctx, buyerID, "deleted")
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestListForUser_NewestFirstWithPerViewerCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := f.conversation(t)
	newer, _, err := f.convUC.CreateOrGet(ctx, buyerID, CreateConversationInput{SellerID: sellerID, ProductID: productID})
	require.NoError(t, err)

	f.send(t, sellerID, older, "Relance")

	views, err := f.convUC.ListForUser(ctx, buyerID, "")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, older, views[0].ID)
	assert.Equal(t, newer.ID, views[1].ID)
	assert.Equal(t, 1, views[0].UnreadCount)

	sellerViews, err := f.convUC.ListForUser(ctx, sellerID, "")
	require.NoError(t, err)
	for _, v := range sellerViews {
		assert.Equal(t, entity.RoleSeller, v.Role)
		assert.Equal(t, 0, v.UnreadCount)
	}
}

type fixedPresence struct {
	at time.Time
}

func (p fixedPresence) MarkOnline(ctx context.Context, userID string) error { return nil }
func (p fixedPresence) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	return nil
}
func (p fixedPresence) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	return p.at, true, nil
}

func TestView_OnlineAndLastSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seen := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	f.convUC.SetPresenceStore(fixedPresence{at: seen})
	convID := f.conversation(t)

	view, err := f.convUC.GetByID(ctx, buyerID, convID)
	require.NoError(t, err)
	assert.False(t, view.OtherParticipant.Online)
	require.NotNil(t, view.OtherParticipant.LastSeen)
	assert.True(t, seen.Equal(*view.OtherParticipant.LastSeen))

	f.notifier.online[sellerID] = true
	view, err = f.convUC.GetByID(ctx, buyerID, convID)
	require.NoError(t, err)
	assert.True(t, view.OtherParticipant.Online)
	assert.Nil(t, view.OtherParticipant.LastSeen)
}
