package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/internal/infrastructure/metrics"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

const welcomeTemplate = "Bonjour ! Je vois que vous êtes intéressé(e) par \"%s\". N'hésitez pas à me poser vos questions ! 😊"

type ConversationUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserDirectory
	listings      repository.ListingProvider
	notifier      Notifier
	presence      PresenceStore
	publisher     EventPublisher
	now           func() time.Time
}

func NewConversationUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserDirectory,
	listings repository.ListingProvider,
	notifier Notifier,
) *ConversationUseCase {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ConversationUseCase{
		conversations: conversations,
		messages:      messages,
		users:         users,
		listings:      listings,
		notifier:      notifier,
		publisher:     noopPublisher{},
		now:           time.Now,
	}
}

func (uc *ConversationUseCase) SetPresenceStore(p PresenceStore) {
	uc.presence = p
}

func (uc *ConversationUseCase) SetEventPublisher(p EventPublisher) {
	if p != nil {
		uc.publisher = p
	}
}

type CreateConversationInput struct {
	SellerID  string
	ProductID string
}

// CreateOrGet returns the conversation for (buyer, seller, product), creating
// it when needed. The bool is true when it already existed.
func (uc *ConversationUseCase) CreateOrGet(ctx context.Context, buyerID string, input CreateConversationInput) (*ConversationView, bool, error) {
	sellerID := strings.TrimSpace(input.SellerID)
	if sellerID == "" {
		return nil, false, errors.Validation("seller_id", "seller_id is required")
	}
	if sellerID == buyerID {
		return nil, false, errors.SelfConversation()
	}

	seller, err := uc.users.GetProfile(ctx, sellerID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, false, errors.NotFound("Seller", err)
		}
		return nil, false, err
	}

	pairKey := entity.PairKey(buyerID, sellerID, input.ProductID)
	existing, err := uc.conversations.FindByPairKey(ctx, pairKey)
	if err == nil {
		view, err := uc.view(ctx, existing, buyerID)
		return view, true, err
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, false, err
	}

	conversation := &entity.Conversation{
		Participants: entity.Participants{Buyer: buyerID, Seller: sellerID},
		Item:         uc.resolveItem(ctx, input.ProductID),
		Status:       entity.ConversationStatusActive,
		PairKey:      pairKey,
	}

	if err := uc.conversations.Create(ctx, conversation); err != nil {
		if !errors.Is(err, errors.CodeConflict) {
			return nil, false, err
		}
		// Lost a race with a concurrent create; the winner is the answer.
		winner, err := uc.conversations.FindByPairKey(ctx, pairKey)
		if err != nil {
			return nil, false, err
		}
		view, err := uc.view(ctx, winner, buyerID)
		return view, true, err
	}
	metrics.RecordConversationCreated(conversation.Item != nil)

	if conversation.Item != nil && conversation.Item.Title != "" {
		updated, err := uc.postWelcome(ctx, conversation, seller)
		if err != nil {
			return nil, false, err
		}
		conversation = updated
		emitConversationUpdated(uc.notifier, conversation, entity.RoleBuyer)
		emitUnreadChanged(uc.notifier, conversation, entity.RoleBuyer)
	}

	uc.publish(ctx, entity.DomainEvent{
		Type:           DomainEventConversationCreated,
		ConversationID: conversation.ID,
		ActorID:        buyerID,
		Payload:        conversation,
	})

	view, err := uc.view(ctx, conversation, buyerID)
	return view, false, err
}

// resolveItem snapshots the listing. A failing or missing listing degrades to
// a conversation without an item.
func (uc *ConversationUseCase) resolveItem(ctx context.Context, productID string) *entity.ItemSnapshot {
	if productID == "" {
		return nil
	}
	listing, err := uc.listings.GetListing(ctx, productID)
	if err != nil {
		logger.Warn("CreateConversation: listing %s unavailable, continuing without item: %v", productID, err)
		return nil
	}
	return listing.Snapshot()
}

func (uc *ConversationUseCase) postWelcome(ctx context.Context, conversation *entity.Conversation, seller *entity.UserProfile) (*entity.Conversation, error) {
	welcome := &entity.Message{
		ConversationID: conversation.ID,
		SenderID:       seller.ID,
		SenderName:     seller.Name,
		SenderAvatar:   seller.Avatar,
		Content:        fmt.Sprintf(welcomeTemplate, conversation.Item.Title),
		Type:           entity.MessageTypeText,
		Attachments:    []string{},
	}
	if err := uc.messages.Create(ctx, welcome); err != nil {
		logger.Error("CreateConversation: failed to store welcome message for %s: %v", conversation.ID, err)
		return nil, err
	}
	return uc.conversations.ApplyMessage(ctx, conversation.ID, welcome.Summary(), entity.RoleBuyer)
}

// loadForUser fetches the conversation and the caller's role in it.
func loadForUser(ctx context.Context, conversations repository.ConversationRepository, conversationID, userID string) (*entity.Conversation, entity.Role, error) {
	conversation, err := conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	role, ok := conversation.RoleOf(userID)
	if !ok {
		return nil, "", errors.NotParticipant()
	}
	return conversation, role, nil
}

func (uc *ConversationUseCase) ListForUser(ctx context.Context, userID, status string) ([]*ConversationView, error) {
	st := entity.ConversationStatus(status)
	if st == "" {
		st = entity.ConversationStatusActive
	}
	if !st.Valid() {
		return nil, errors.Validation("status", "status must be one of: active archived")
	}

	conversations, err := uc.conversations.ListByParticipant(ctx, userID, st)
	if err != nil {
		return nil, err
	}

	views := make([]*ConversationView, 0, len(conversations))
	for _, c := range conversations {
		view, err := uc.view(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (uc *ConversationUseCase) GetByID(ctx context.Context, userID, conversationID string) (*ConversationView, error) {
	conversation, _, err := loadForUser(ctx, uc.conversations, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return uc.view(ctx, conversation, userID)
}

// CanAccess reports nil when userID takes part in the conversation.
func (uc *ConversationUseCase) CanAccess(ctx context.Context, userID, conversationID string) error {
	_, _, err := loadForUser(ctx, uc.conversations, conversationID, userID)
	return err
}

// MarkAsRead marks everything the other side sent as read and clears the
// caller's counter.
func (uc *ConversationUseCase) MarkAsRead(ctx context.Context, userID, conversationID string) error {
	conversation, role, err := loadForUser(ctx, uc.conversations, conversationID, userID)
	if err != nil {
		return err
	}

	at := uc.now()
	flipped, err := uc.messages.MarkConversationRead(ctx, conversation.ID, userID, at)
	if err != nil {
		return err
	}

	// Known race: a message sent between the flip and the reset stays unread
	// while the counter reads zero, until the next read.
	updated, err := uc.conversations.ResetUnread(ctx, conversation.ID, role)
	if err != nil {
		return err
	}

	for _, msg := range flipped {
		if updated.LastMessage != nil && updated.LastMessage.ID == msg.ID {
			if err := uc.conversations.MarkLastMessageRead(ctx, conversation.ID, msg.ID); err != nil {
				logger.Warn("MarkAsRead: failed to flag last message %s as read: %v", msg.ID, err)
			}
		}
		emitRead(uc.notifier, msg, userID, at)
		metrics.ReadReceiptsTotal.Inc()
	}
	emitUnreadChanged(uc.notifier, updated, role)

	if len(flipped) > 0 {
		uc.publish(ctx, entity.DomainEvent{
			Type:           DomainEventMessageRead,
			ConversationID: conversation.ID,
			ActorID:        userID,
			Payload:        map[string]int{"count": len(flipped)},
		})
	}
	return nil
}

func (uc *ConversationUseCase) Archive(ctx context.Context, userID, conversationID string) error {
	return uc.setStatus(ctx, userID, conversationID, entity.ConversationStatusArchived)
}

func (uc *ConversationUseCase) Unarchive(ctx context.Context, userID, conversationID string) error {
	return uc.setStatus(ctx, userID, conversationID, entity.ConversationStatusActive)
}

func (uc *ConversationUseCase) setStatus(ctx context.Context, userID, conversationID string, status entity.ConversationStatus) error {
	conversation, _, err := loadForUser(ctx, uc.conversations, conversationID, userID)
	if err != nil {
		return err
	}
	if conversation.Status == status {
		return nil
	}
	return uc.conversations.SetStatus(ctx, conversation.ID, status)
}

// UnreadTotal sums the caller's counters over active conversations.
func (uc *ConversationUseCase) UnreadTotal(ctx context.Context, userID string) (int, error) {
	conversations, err := uc.conversations.ListByParticipant(ctx, userID, entity.ConversationStatusActive)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range conversations {
		if role, ok := c.RoleOf(userID); ok {
			total += c.UnreadCount.For(role)
		}
	}
	return total, nil
}

func (uc *ConversationUseCase) publish(ctx context.Context, event entity.DomainEvent) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish %s for conversation %s: %v", event.Type, event.ConversationID, err)
	}
}
