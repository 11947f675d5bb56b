package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/internal/infrastructure/metrics"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

const (
	MaxVoiceMessageSize = 10 << 20
	voiceMessageFolder  = "voice-messages"
	offerContentFormat  = "Nouvelle offre pour \"%s\""
)

type MessageUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserDirectory
	listings      repository.ListingProvider
	notifier      Notifier
	media         MediaStore
	limiter       RateLimiter
	publisher     EventPublisher
	now           func() time.Time
}

func NewMessageUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserDirectory,
	listings repository.ListingProvider,
	notifier Notifier,
	media MediaStore,
	limiter RateLimiter,
) *MessageUseCase {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &MessageUseCase{
		conversations: conversations,
		messages:      messages,
		users:         users,
		listings:      listings,
		notifier:      notifier,
		media:         media,
		limiter:       limiter,
		publisher:     noopPublisher{},
		now:           time.Now,
	}
}

func (uc *MessageUseCase) SetEventPublisher(p EventPublisher) {
	if p != nil {
		uc.publisher = p
	}
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Type           entity.MessageType
	Attachments    []string
	OfferDetails   *entity.OfferDetails
}

// Send persists the message, then moves the conversation summary and the
// recipient's counter forward, then fans out.
func (uc *MessageUseCase) Send(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	if uc.limiter != nil {
		if ok, wait := uc.limiter.Allow(senderID, "send_message"); !ok {
			return nil, errors.TooManyRequests(fmt.Sprintf("Too many messages, retry in %d seconds", int(wait.Seconds())+1))
		}
	}

	sender, err := uc.senderProfile(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := entity.NewMessage(entity.MessageDraft{
		ConversationID: input.ConversationID,
		Content:        input.Content,
		Type:           input.Type,
		Attachments:    input.Attachments,
		OfferDetails:   input.OfferDetails,
	}, sender)
	if err != nil {
		return nil, err
	}

	conversation, role, err := loadForUser(ctx, uc.conversations, msg.ConversationID, senderID)
	if err != nil {
		return nil, err
	}

	if msg.Type == entity.MessageTypeOffer {
		if err := uc.snapshotOffer(ctx, msg); err != nil {
			return nil, err
		}
	}

	if err := uc.messages.Create(ctx, msg); err != nil {
		logger.Error("SendMessage Error: failed to store message in conversation %s: %v", conversation.ID, err)
		return nil, err
	}

	recipient := role.Other()
	updated, err := uc.conversations.ApplyMessage(ctx, conversation.ID, msg.Summary(), recipient)
	if err != nil {
		logger.Error("SendMessage Error: message %s stored but summary update failed: %v", msg.ID, err)
		return nil, err
	}
	metrics.RecordMessageSent(string(msg.Type))

	uc.notifier.EmitToConversation(conversation.ID, entity.EventMessageNew, msg)
	emitConversationUpdated(uc.notifier, updated, recipient)
	emitUnreadChanged(uc.notifier, updated, recipient)

	uc.publish(ctx, entity.DomainEvent{
		Type:           DomainEventMessageSent,
		ConversationID: conversation.ID,
		ActorID:        senderID,
		Payload:        msg,
	})
	return msg, nil
}

// senderProfile falls back to a bare id when the directory has no entry.
func (uc *MessageUseCase) senderProfile(ctx context.Context, senderID string) (*entity.UserProfile, error) {
	profile, err := uc.users.GetProfile(ctx, senderID)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, errors.CodeNotFound) {
		logger.Warn("SendMessage: no profile for sender %s", senderID)
		return &entity.UserProfile{ID: senderID}, nil
	}
	return nil, err
}

func (uc *MessageUseCase) snapshotOffer(ctx context.Context, msg *entity.Message) error {
	listing, err := uc.listings.GetListing(ctx, msg.OfferDetails.ItemID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return errors.NotFound("Product", err)
		}
		return errors.Upstream("Listing service", err)
	}

	msg.OfferDetails.ItemTitle = listing.Title
	msg.OfferDetails.ItemImage = listing.MainImage()
	if msg.OfferDetails.Price == 0 {
		msg.OfferDetails.Price = listing.Price
	}
	if msg.Content == "" {
		msg.Content = fmt.Sprintf(offerContentFormat, listing.Title)
	}
	return nil
}

type SendVoiceInput struct {
	ConversationID string
	Audio          io.Reader
	ContentType    string
	Size           int64
}

// SendVoice uploads first and only then records the message. If recording
// fails the upload is removed again.
func (uc *MessageUseCase) SendVoice(ctx context.Context, senderID string, input SendVoiceInput) (*entity.Message, error) {
	if input.Audio == nil {
		return nil, errors.Validation("audio", "audio is required")
	}
	if !strings.HasPrefix(input.ContentType, "audio/") {
		return nil, errors.Validation("audio", "only audio files are accepted")
	}
	if input.Size > MaxVoiceMessageSize {
		return nil, errors.Validation("audio", "audio files are limited to 10MB")
	}
	if input.ConversationID == "" {
		return nil, errors.Validation("conversation_id", "conversation_id is required")
	}
	if uc.media == nil {
		return nil, errors.Upstream("Media store", nil)
	}

	// Checked up front so outsiders cannot upload anything.
	if _, _, err := loadForUser(ctx, uc.conversations, input.ConversationID, senderID); err != nil {
		return nil, err
	}

	url, err := uc.media.Upload(ctx, input.Audio, input.ContentType, voiceMessageFolder)
	if err != nil {
		logger.Error("SendVoice Error: upload failed for conversation %s: %v", input.ConversationID, err)
		return nil, errors.Upstream("Media store", err)
	}

	msg, err := uc.Send(ctx, senderID, SendMessageInput{
		ConversationID: input.ConversationID,
		Type:           entity.MessageTypeAudio,
		Attachments:    []string{url},
	})
	if err != nil {
		if delErr := uc.media.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			logger.Warn("SendVoice: failed to remove orphaned upload %s: %v", url, delErr)
		}
		return nil, err
	}
	return msg, nil
}

// List returns messages oldest first.
func (uc *MessageUseCase) List(ctx context.Context, userID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, _, err := loadForUser(ctx, uc.conversations, conversationID, userID); err != nil {
		return nil, 0, err
	}
	return uc.messages.ListByConversation(ctx, conversationID, limit, offset)
}

// MarkRead is idempotent: only the call that flips the flag touches the
// counter and emits receipts.
func (uc *MessageUseCase) MarkRead(ctx context.Context, readerID, messageID string) error {
	msg, err := uc.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	conversation, role, err := loadForUser(ctx, uc.conversations, msg.ConversationID, readerID)
	if err != nil {
		return err
	}
	if msg.SenderID == readerID {
		return errors.SelfRead()
	}

	at := uc.now()
	flipped, err := uc.messages.MarkRead(ctx, msg.ID, at)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}
	metrics.ReadReceiptsTotal.Inc()

	if err := uc.conversations.MarkLastMessageRead(ctx, conversation.ID, msg.ID); err != nil {
		logger.Warn("MarkRead: failed to flag last message %s as read: %v", msg.ID, err)
	}
	updated, err := uc.conversations.DecrementUnread(ctx, conversation.ID, role)
	if err != nil {
		return err
	}

	emitRead(uc.notifier, msg, readerID, at)
	emitUnreadChanged(uc.notifier, updated, role)

	uc.publish(ctx, entity.DomainEvent{
		Type:           DomainEventMessageRead,
		ConversationID: conversation.ID,
		ActorID:        readerID,
		Payload:        map[string]string{"message_id": msg.ID},
	})
	return nil
}

// Delete soft-deletes one of the caller's own messages. When it was the
// conversation's last message the summary falls back to the newest remaining
// message, deleted or not.
func (uc *MessageUseCase) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := uc.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return errors.NotOwner()
	}

	deleted, err := uc.messages.SoftDelete(ctx, msg.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	metrics.MessagesDeletedTotal.Inc()
	msg.SoftDelete()

	uc.notifier.EmitToConversation(msg.ConversationID, entity.EventMessageDeleted, MessageDeletedPayload{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Message:        msg,
	})

	conversation, err := uc.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if conversation.LastMessage != nil && conversation.LastMessage.ID == msg.ID {
		if err := uc.recomputeLastMessage(ctx, conversation, msg.ID, requesterID); err != nil {
			return err
		}
	}

	uc.publish(ctx, entity.DomainEvent{
		Type:           DomainEventMessageDeleted,
		ConversationID: msg.ConversationID,
		ActorID:        requesterID,
		Payload:        map[string]string{"message_id": msg.ID},
	})
	return nil
}

func (uc *MessageUseCase) recomputeLastMessage(ctx context.Context, conversation *entity.Conversation, deletedID, requesterID string) error {
	latest, err := uc.messages.LatestInConversation(ctx, conversation.ID, deletedID)
	if err != nil {
		return err
	}

	summary := entity.DeletedSummary(requesterID, uc.now())
	if latest != nil {
		summary = latest.Summary()
	}

	replaced, err := uc.conversations.ReplaceLastMessage(ctx, conversation.ID, deletedID, summary)
	if err != nil {
		return err
	}
	if !replaced {
		// A newer message already took over the summary.
		return nil
	}

	updated, err := uc.conversations.GetByID(ctx, conversation.ID)
	if err != nil {
		return err
	}
	emitConversationUpdated(uc.notifier, updated, entity.RoleBuyer)
	emitConversationUpdated(uc.notifier, updated, entity.RoleSeller)
	return nil
}

func (uc *MessageUseCase) Search(ctx context.Context, userID, conversationID, query string) ([]*entity.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation("query", "query is required")
	}
	if _, _, err := loadForUser(ctx, uc.conversations, conversationID, userID); err != nil {
		return nil, err
	}
	return uc.messages.Search(ctx, conversationID, query)
}

func (uc *MessageUseCase) publish(ctx context.Context, event entity.DomainEvent) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish %s for conversation %s: %v", event.Type, event.ConversationID, err)
	}
}
