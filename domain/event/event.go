// Package event defines the realtime frames exchanged with chat clients.
// Every payload is an explicit structure; inbound ones carry validation rules.
package event

import (
	"encoding/json"
	"time"
)

type Name string

const (
	OnlineUser   Name = "onlineUser"
	MessagePage  Name = "message-page"
	MessageUser  Name = "message-user"
	Message      Name = "message"
	NewMessage   Name = "new message"
	Sidebar      Name = "sidebar"
	Conversation Name = "conversation"
	Error        Name = "error"
	Logout       Name = "logout"
	Ping         Name = "ping"
)

// Envelope is the JSON frame carried by the transport in both directions.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a client frame whose payload is decoded by the event handler.
type Inbound struct {
	Name Name
	Data json.RawMessage
}

// Outbound is a server frame handed to an EventSink.
type Outbound struct {
	Name    Name
	Payload any
}

func NewOutbound(name Name, payload any) Outbound {
	return Outbound{Name: name, Payload: payload}
}

// Encode renders the outbound frame as an Envelope.
func (o Outbound) Encode() ([]byte, error) {
	data, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: o.Name, Data: data})
}

// NewMessageRequest is the payload of a "new message" frame.
type NewMessageRequest struct {
	Sender      string `json:"sender" validate:"required,max=64"`
	Receiver    string `json:"receiver" validate:"required,max=64,nefield=Sender"`
	Text        string `json:"text" validate:"required_without_all=ImageURL VideoURL,max=4096"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,max=2048"`
	VideoURL    string `json:"videoUrl" validate:"omitempty,max=2048"`
	MsgByUserID string `json:"msgByuserId" validate:"omitempty,max=64"`
}

// MessagePageRequest carries the peer id of a "message-page" frame.
type MessagePageRequest struct {
	PeerID string `validate:"required,max=64"`
}

// UserSummary is the payload of "message-user".
type UserSummary struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Online     bool   `json:"online"`
	ProfilePic string `json:"profilePic"`
}

// MessageView is one entry of a "message" payload.
type MessageView struct {
	ID          string    `json:"_id"`
	Text        string    `json:"text"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	MsgByUserID string    `json:"msgByuserId"`
	Seen        bool      `json:"seen"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversationView is one entry of a "conversation" payload.
type ConversationView struct {
	ID           string       `json:"_id"`
	UserDetails  UserSummary  `json:"userDetails"`
	LastMsg      *MessageView `json:"lastMsg,omitempty"`
	MessageCount uint64       `json:"messageCount"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Rejection is sent before a refused connection is closed.
type Rejection struct {
	Message string `json:"message"`
	Logout  bool   `json:"logout"`
}
