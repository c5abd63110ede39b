package model

import "time"

// Conversation summarizes every message exchanged between self and one counterpart.
// It is derived from the message set and never persisted.
type Conversation struct {
	Counterpart     Identity  `json:"counterpart"`
	Name            string    `json:"name"`
	Avatar          string    `json:"avatar,omitempty"`
	LastMessage     Message   `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

// UnreadBySender is one row of the per-counterpart unread breakdown.
type UnreadBySender struct {
	SenderID   int64        `json:"senderId"`
	SenderType IdentityKind `json:"senderType"`
	Count      int          `json:"count"`
}

func (u UnreadBySender) Sender() Identity {
	return Identity{Kind: u.SenderType, ID: u.SenderID}
}

// MarkReadRequest advances the read boundary of receiver for messages from sender.
type MarkReadRequest struct {
	ReceiverID   int64        `json:"receiverId"`
	ReceiverType IdentityKind `json:"receiverType"`
	SenderID     int64        `json:"senderId"`
	SenderType   IdentityKind `json:"senderType"`
}

func NewMarkReadRequest(receiver, sender Identity) MarkReadRequest {
	return MarkReadRequest{
		ReceiverID:   receiver.ID,
		ReceiverType: receiver.Kind,
		SenderID:     sender.ID,
		SenderType:   sender.Kind,
	}
}

func (r MarkReadRequest) Receiver() Identity {
	return Identity{Kind: r.ReceiverType, ID: r.ReceiverID}
}

func (r MarkReadRequest) Sender() Identity {
	return Identity{Kind: r.SenderType, ID: r.SenderID}
}
