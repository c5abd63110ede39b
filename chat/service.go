package chat

import (
	"context"
	"fmt"
	"log/slog"

	"rental-messenger/model"
)

// Store is the persistence the send pipeline needs.
type Store interface {
	Send(ctx context.Context, msg *model.Message) error
}

// Notifier pushes a persisted message towards its receiver.
type Notifier interface {
	Notify(ctx context.Context, msg model.Message) error
}

// Service is the send pipeline shared by the REST route and the chat.send consumer.
type Service struct {
	store     Store
	notifiers []Notifier
	log       *slog.Logger
}

func NewService(store Store, log *slog.Logger, notifiers ...Notifier) *Service {
	return &Service{store: store, notifiers: notifiers, log: log}
}

// Send validates and persists req, then pushes the stored message. A failed push is
// logged only: the message is durable and receivers re-fetch after reconnecting.
func (s *Service) Send(ctx context.Context, req model.SendMessageRequest) (model.Message, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return model.Message{}, err
	}

	msg := req.ToMessage()
	if err := s.store.Send(ctx, &msg); err != nil {
		return model.Message{}, fmt.Errorf("store message: %w", err)
	}

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			s.log.Warn("Push failed", "id", msg.ID, "receiver", msg.Receiver().String(), "error", err)
		}
	}
	return msg, nil
}
