package entity

import (
	"sort"
	"strings"
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusArchived ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	return s == ConversationStatusActive || s == ConversationStatusArchived
}

type Participants struct {
	Buyer  string `json:"buyer" firestore:"buyer" bson:"buyer"`
	Seller string `json:"seller" firestore:"seller" bson:"seller"`
}

// ItemSnapshot is the listing as it looked when the conversation was opened.
type ItemSnapshot struct {
	ID    string  `json:"id" firestore:"id" bson:"id"`
	Title string  `json:"title" firestore:"title" bson:"title"`
	Image string  `json:"image,omitempty" firestore:"image,omitempty" bson:"image,omitempty"`
	Price float64 `json:"price" firestore:"price" bson:"price"`
}

type LastMessage struct {
	ID         string      `json:"id" firestore:"id" bson:"id"`
	Content    string      `json:"content" firestore:"content" bson:"content"`
	SenderID   string      `json:"sender_id" firestore:"senderId" bson:"sender_id"`
	SenderName string      `json:"sender_name" firestore:"senderName" bson:"sender_name"`
	Timestamp  time.Time   `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	Read       bool        `json:"read" firestore:"read" bson:"read"`
	Type       MessageType `json:"type" firestore:"type" bson:"type"`
}

type UnreadCount struct {
	Buyer  int `json:"buyer" firestore:"buyer" bson:"buyer"`
	Seller int `json:"seller" firestore:"seller" bson:"seller"`
}

func (u UnreadCount) For(role Role) int {
	if role == RoleBuyer {
		return u.Buyer
	}
	return u.Seller
}

func (u *UnreadCount) Increment(role Role) {
	if role == RoleBuyer {
		u.Buyer++
		return
	}
	u.Seller++
}

// Decrement never goes below zero.
func (u *UnreadCount) Decrement(role Role) {
	if role == RoleBuyer {
		if u.Buyer > 0 {
			u.Buyer--
		}
		return
	}
	if u.Seller > 0 {
		u.Seller--
	}
}

func (u *UnreadCount) Reset(role Role) {
	if role == RoleBuyer {
		u.Buyer = 0
		return
	}
	u.Seller = 0
}

type Conversation struct {
	ID           string             `json:"id" firestore:"id" bson:"_id"`
	Participants Participants       `json:"participants" firestore:"participants" bson:"participants"`
	Item         *ItemSnapshot      `json:"item,omitempty" firestore:"item,omitempty" bson:"item,omitempty"`
	LastMessage  *LastMessage       `json:"last_message,omitempty" firestore:"lastMessage,omitempty" bson:"last_message,omitempty"`
	UnreadCount  UnreadCount        `json:"unread_count" firestore:"unreadCount" bson:"unread_count"`
	Status       ConversationStatus `json:"status" firestore:"status" bson:"status"`
	PairKey      string             `json:"-" firestore:"pairKey" bson:"pair_key"`
	CreatedAt    time.Time          `json:"created_at" firestore:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" firestore:"updatedAt" bson:"updated_at"`
}

// RoleOf reports the role userID plays in the conversation.
func (c *Conversation) RoleOf(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case c.Participants.Buyer:
		return RoleBuyer, true
	case c.Participants.Seller:
		return RoleSeller, true
	}
	return "", false
}

func (c *Conversation) ParticipantFor(role Role) string {
	if role == RoleBuyer {
		return c.Participants.Buyer
	}
	return c.Participants.Seller
}

func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// ApplySummary moves the summary forward unless the stored one is newer and
// charges the recipient's counter. Stores share it so they agree on the rule.
func (c *Conversation) ApplySummary(summary LastMessage, recipient Role) {
	if c.LastMessage == nil || !summary.Timestamp.Before(c.LastMessage.Timestamp) {
		s := summary
		c.LastMessage = &s
	}
	c.UnreadCount.Increment(recipient)
}

// PairKey identifies a conversation for uniqueness. With an item the roles are
// significant; without one the pair is unordered.
func PairKey(buyerID, sellerID, itemID string) string {
	if itemID != "" {
		return strings.Join([]string{buyerID, sellerID, itemID}, "|")
	}
	ids := []string{buyerID, sellerID}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1] + "|"
}
