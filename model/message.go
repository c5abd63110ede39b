package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

var ErrInvalidMessage = errors.New("invalid message")

// Message is a persisted chat message. ID and CreatedAt are assigned by the store.
type Message struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	SenderID     int64        `gorm:"not null;index:idx_messages_sender" json:"senderId"`
	SenderType   IdentityKind `gorm:"not null;size:16;index:idx_messages_sender" json:"senderType"`
	ReceiverID   int64        `gorm:"not null;index:idx_messages_receiver" json:"receiverId"`
	ReceiverType IdentityKind `gorm:"not null;size:16;index:idx_messages_receiver" json:"receiverType"`
	Content      string       `gorm:"not null" json:"content"`
	MessageType  MessageType  `gorm:"not null;size:16;default:text" json:"messageType"`
	FileURL      string       `json:"fileUrl,omitempty"`
	FileName     string       `json:"fileName,omitempty"`
	IsRead       bool         `gorm:"not null;default:false" json:"isRead"`
	CreatedAt    time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time    `json:"-"`
}

func (m Message) Sender() Identity {
	return Identity{Kind: m.SenderType, ID: m.SenderID}
}

func (m Message) Receiver() Identity {
	return Identity{Kind: m.ReceiverType, ID: m.ReceiverID}
}

// Counterpart returns the other party relative to self. ok is false when self is not
// a party of the message or the message is addressed to its own sender.
func (m Message) Counterpart(self Identity) (Identity, bool) {
	sender, receiver := m.Sender(), m.Receiver()
	if sender == receiver {
		return Identity{}, false
	}
	switch self {
	case sender:
		return receiver, true
	case receiver:
		return sender, true
	}
	return Identity{}, false
}

// SendMessageRequest is the payload of the store "send" operation.
type SendMessageRequest struct {
	SenderID     int64        `json:"senderId"`
	SenderType   IdentityKind `json:"senderType"`
	ReceiverID   int64        `json:"receiverId"`
	ReceiverType IdentityKind `json:"receiverType"`
	Content      string       `json:"content"`
	MessageType  MessageType  `json:"messageType,omitempty"`
	FileURL      string       `json:"fileUrl,omitempty"`
	FileName     string       `json:"fileName,omitempty"`
}

func NewTextMessage(from, to Identity, content string) SendMessageRequest {
	return SendMessageRequest{
		SenderID:     from.ID,
		SenderType:   from.Kind,
		ReceiverID:   to.ID,
		ReceiverType: to.Kind,
		Content:      content,
		MessageType:  MessageText,
	}
}

func (r SendMessageRequest) Sender() Identity {
	return Identity{Kind: r.SenderType, ID: r.SenderID}
}

func (r SendMessageRequest) Receiver() Identity {
	return Identity{Kind: r.ReceiverType, ID: r.ReceiverID}
}

// Normalize defaults the message type to text and trims text content.
func (r SendMessageRequest) Normalize() SendMessageRequest {
	if r.MessageType == "" {
		r.MessageType = MessageText
	}
	if r.MessageType == MessageText {
		r.Content = strings.TrimSpace(r.Content)
	}
	return r
}

// Validate checks a normalized request.
func (r SendMessageRequest) Validate() error {
	switch {
	case !r.Sender().Valid():
		return fmt.Errorf("%w: bad sender %s", ErrInvalidMessage, r.Sender())
	case !r.Receiver().Valid():
		return fmt.Errorf("%w: bad receiver %s", ErrInvalidMessage, r.Receiver())
	case r.Sender() == r.Receiver():
		return fmt.Errorf("%w: sender and receiver are the same", ErrInvalidMessage)
	}
	switch r.MessageType {
	case MessageText:
		if r.Content == "" {
			return fmt.Errorf("%w: empty content", ErrInvalidMessage)
		}
	case MessageImage, MessageFile:
		if r.FileURL == "" {
			return fmt.Errorf("%w: %s message without fileUrl", ErrInvalidMessage, r.MessageType)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, r.MessageType)
	}
	return nil
}

// ToMessage builds the unsaved row for a validated request.
func (r SendMessageRequest) ToMessage() Message {
	return Message{
		SenderID:     r.SenderID,
		SenderType:   r.SenderType,
		ReceiverID:   r.ReceiverID,
		ReceiverType: r.ReceiverType,
		Content:      r.Content,
		MessageType:  r.MessageType,
		FileURL:      r.FileURL,
		FileName:     r.FileName,
	}
}

// Preview is the one-line summary shown in conversation lists.
func (m Message) Preview() string {
	switch m.MessageType {
	case MessageImage:
		return "[image]"
	case MessageFile:
		if m.FileName != "" {
			return "[file] " + m.FileName
		}
		return "[file]"
	}
	return m.Content
}
