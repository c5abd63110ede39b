package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"rental-messenger/model"
)

// Notifier pushes persisted messages into the inbox queue of their receiver. The queue
// is declared on first use so messages for offline identities wait in the broker.
type Notifier struct {
	broker *Broker
	log    *slog.Logger
}

func NewNotifier(broker *Broker, log *slog.Logger) *Notifier {
	return &Notifier{broker: broker, log: log}
}

func (n *Notifier) Notify(ctx context.Context, msg model.Message) error {
	queue := InboxQueue(msg.Receiver())
	if err := n.broker.Declare(queue); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	if err := n.broker.Emit(ctx, queue, Event{Action: ActionMessage, Data: body}); err != nil {
		return err
	}
	n.log.Debug("Message pushed", "queue", queue, "id", msg.ID)
	return nil
}
