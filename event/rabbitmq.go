package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"rental-messenger/model"
)

const (
	ActionHeader = "x-action"
	TokenHeader  = "x-token"

	// SendQueue carries messages published by clients towards the store service.
	SendQueue = "chat.send"

	ActionSend    = "send"
	ActionMessage = "message"
)

var ErrBrokerClosed = errors.New("broker closed")

// Acknowledger settles a delivery with the broker. amqp.Delivery implements it.
type Acknowledger interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
}

// Event is one decoded delivery. Consumers settle it with Ack or Reject once it is
// processed; events built in memory have no Delivery and settle as no-ops.
type Event struct {
	Action      string
	Token       string
	Data        []byte
	Redelivered bool
	Delivery    Acknowledger
}

// Ack confirms the event was processed.
func (e Event) Ack() error {
	if e.Delivery == nil {
		return nil
	}
	return e.Delivery.Ack(false)
}

// Reject gives the event back to the broker when requeue is set, and drops it otherwise.
func (e Event) Reject(requeue bool) error {
	if e.Delivery == nil {
		return nil
	}
	return e.Delivery.Reject(requeue)
}

// InboxQueue names the durable queue that holds messages addressed to identity.
func InboxQueue(identity model.Identity) string {
	return fmt.Sprintf("messages.%s.%d", identity.Kind, identity.ID)
}

// Broker wraps one RabbitMQ connection and its channel.
type Broker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	log        *slog.Logger

	mu       sync.Mutex
	declared map[string]struct{}
}

// Dial connects to url. The dial timeout is the smaller of timeout and the context deadline.
func Dial(ctx context.Context, url string, heartbeat, timeout time.Duration, log *slog.Logger) (*Broker, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	connection, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	log.Debug("Opened a RabbitMQ channel")

	return &Broker{
		connection: connection,
		channel:    channel,
		log:        log,
		declared:   make(map[string]struct{}),
	}, nil
}

// Declare makes sure the durable queue exists. Known queues are not declared twice.
func (b *Broker) Declare(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.declared[name]; ok {
		return nil
	}

	_, err := b.channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	b.declared[name] = struct{}{}
	b.log.Debug("Declared a RabbitMQ queue", "queue", name)
	return nil
}

// Subscribe declares and consumes queue. Every event handed over must be settled by the
// consumer with Ack or Reject; events not yet handed over when ctx ends are requeued.
// The returned channel is closed when ctx ends or the consumer stops.
func (b *Broker) Subscribe(ctx context.Context, queue string) (<-chan Event, error) {
	if err := b.Declare(queue); err != nil {
		return nil, err
	}

	deliveries, err := b.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	b.log.Info("Subscribed to RabbitMQ queue", "queue", queue)

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					return
				}
				ev := Event{
					Action:      header(msg.Headers, ActionHeader),
					Token:       header(msg.Headers, TokenHeader),
					Data:        msg.Body,
					Redelivered: msg.Redelivered,
					Delivery:    msg,
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					_ = msg.Reject(true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Emit publishes a persistent JSON event to queue through the default exchange.
func (b *Broker) Emit(ctx context.Context, queue string, ev Event) error {
	headers := amqp.Table{ActionHeader: ev.Action}
	if ev.Token != "" {
		headers[TokenHeader] = ev.Token
	}

	err := b.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         ev.Data,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// NotifyClose reports an abnormal connection shutdown. The channel is closed without a
// value after Close.
func (b *Broker) NotifyClose() <-chan *amqp.Error {
	return b.connection.NotifyClose(make(chan *amqp.Error, 1))
}

func (b *Broker) Close() error {
	if b.connection.IsClosed() {
		return nil
	}
	_ = b.channel.Close()
	if err := b.connection.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

func header(headers amqp.Table, key string) string {
	value, _ := headers[key].(string)
	return value
}
