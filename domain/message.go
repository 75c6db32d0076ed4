// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once appended to a conversation.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry of a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Seq            uint64 // position inside the conversation
	Text           string
	ImageURL       string
	VideoURL       string
	MsgByUserID    string
	Seen           bool
	CreatedAt      time.Time
}

// HasContent reports whether the message carries text or at least one media reference.
func (m Message) HasContent() bool {
	return m.Text != "" || m.ImageURL != "" || m.VideoURL != ""
}
