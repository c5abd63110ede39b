package listener

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"rental-messenger/event"
	"rental-messenger/model"
)

const sendTimeout = 5 * time.Second

var ErrSenderMismatch = errors.New("sender does not match token identity")

type Sender interface {
	Send(ctx context.Context, req model.SendMessageRequest) (model.Message, error)
}

// Verifier resolves the identity carried by a publisher token.
type Verifier func(token string) (model.Identity, error)

// Send runs the chat.send consumer until events is closed. An event is acked only once
// the message is stored. Rejected publishes are dropped; a store failure gives the event
// back to the broker once, and drops it when it fails again on redelivery.
func Send(ctx context.Context, events <-chan event.Event, sender Sender, verify Verifier, log *slog.Logger) {
	for ev := range events {
		if ev.Action != event.ActionSend {
			log.Warn("Skipping unknown action", "queue", event.SendQueue, "action", ev.Action)
			settle(log, ev.Reject(false))
			continue
		}
		msg, err := handleSend(ctx, ev, sender, verify)
		switch {
		case err == nil:
			log.Debug("Send event stored", "id", msg.ID, "receiver", msg.Receiver().String())
			settle(log, ev.Ack())
		case errors.Is(err, errStore) && !ev.Redelivered:
			log.Warn("Send event not stored, requeued", "error", err)
			settle(log, ev.Reject(true))
		case errors.Is(err, errStore):
			log.Error("Send event not stored after redelivery, dropped", "error", err)
			settle(log, ev.Reject(false))
		default:
			log.Warn("Send event rejected", "error", err)
			settle(log, ev.Reject(false))
		}
	}
}

// errStore marks failures of the store itself, as opposed to invalid publishes.
var errStore = errors.New("store failure")

func handleSend(ctx context.Context, ev event.Event, sender Sender, verify Verifier) (model.Message, error) {
	identity, err := verify(ev.Token)
	if err != nil {
		return model.Message{}, err
	}

	var req model.SendMessageRequest
	if err := json.Unmarshal(ev.Data, &req); err != nil {
		return model.Message{}, errors.Join(model.ErrInvalidMessage, err)
	}
	if req.Sender() != identity {
		return model.Message{}, ErrSenderMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	msg, err := sender.Send(ctx, req)
	if err != nil && !errors.Is(err, model.ErrInvalidMessage) {
		return model.Message{}, errors.Join(errStore, err)
	}
	return msg, err
}

func settle(log *slog.Logger, err error) {
	if err != nil {
		log.Warn("Settling send event failed", "queue", event.SendQueue, "error", err)
	}
}
