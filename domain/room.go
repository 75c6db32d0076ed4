package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PairKey identifies the conversation of an unordered pair of users.
// (A, B) and (B, A) produce the same key.
type PairKey string

func NewPairKey(userA, userB string) PairKey {
	if userB < userA {
		userA, userB = userB, userA
	}
	return PairKey(userA + ":" + userB)
}

// Members returns both user ids in normalized order.
func (k PairKey) Members() (string, string) {
	first, second, _ := strings.Cut(string(k), ":")
	return first, second
}

// Has reports whether userID is one of the pair.
func (k PairKey) Has(userID string) bool {
	a, b := k.Members()
	return userID == a || userID == b
}

// Peer returns the other member of the pair.
func (k PairKey) Peer(userID string) string {
	a, b := k.Members()
	if userID == a {
		return b
	}
	return a
}

// Conversation is the durable thread between two users.
// MessageCount doubles as the next sequence number to assign.
type Conversation struct {
	ID           uuid.UUID
	Key          PairKey
	Sender       string
	Receiver     string
	MessageCount uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationSummary is one line of a user's conversation list.
type ConversationSummary struct {
	ConversationID uuid.UUID
	Peer           User
	LastMessage    *Message
	MessageCount   uint64
	UpdatedAt      time.Time
}
