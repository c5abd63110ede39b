package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"rental-messenger/messenger"
	"rental-messenger/model"
)

// Transport connects a messaging client to RabbitMQ. Every Open dials a fresh connection.
type Transport struct {
	url         string
	token       string
	heartbeat   time.Duration
	dialTimeout time.Duration
	log         *slog.Logger
}

func NewTransport(url, token string, heartbeat, dialTimeout time.Duration, log *slog.Logger) *Transport {
	return &Transport{
		url:         url,
		token:       token,
		heartbeat:   heartbeat,
		dialTimeout: dialTimeout,
		log:         log,
	}
}

func (t *Transport) Open(ctx context.Context) (messenger.Session, error) {
	broker, err := Dial(ctx, t.url, t.heartbeat, t.dialTimeout, t.log)
	if err != nil {
		return nil, err
	}

	s := &session{
		broker: broker,
		token:  t.token,
		log:    t.log,
		done:   make(chan error, 1),
	}
	go watchClose(broker.NotifyClose(), s.done)
	return s, nil
}

type session struct {
	broker *Broker
	token  string
	log    *slog.Logger
	done   chan error

	closeOnce sync.Once
}

// watchClose turns the connection close notification into the session's Done channel:
// an abnormal shutdown yields its error, a requested Close just closes done.
func watchClose(notify <-chan *amqp.Error, done chan<- error) {
	err, ok := <-notify
	if ok && err != nil {
		done <- err
	}
	close(done)
}

// Subscribe consumes the inbox of self. Bodies that are not a message are dropped.
func (s *session) Subscribe(ctx context.Context, self model.Identity) (<-chan model.Message, error) {
	queue := InboxQueue(self)
	events, err := s.broker.Subscribe(ctx, queue)
	if err != nil {
		return nil, err
	}

	return decodeMessages(ctx, events, queue, s.log), nil
}

// decodeMessages turns inbox events into messages. An event is acked once its message is
// handed over; undecodable bodies are rejected without requeue so they are not redelivered.
func decodeMessages(ctx context.Context, events <-chan Event, queue string, log *slog.Logger) <-chan model.Message {
	out := make(chan model.Message)
	go func() {
		defer close(out)
		for ev := range events {
			var msg model.Message
			if err := json.Unmarshal(ev.Data, &msg); err != nil {
				log.Warn("Dropping undecodable message", "queue", queue, "action", ev.Action, "error", err)
				_ = ev.Reject(false)
				continue
			}
			select {
			case out <- msg:
				if err := ev.Ack(); err != nil {
					log.Warn("Ack failed", "queue", queue, "error", err)
				}
			case <-ctx.Done():
				_ = ev.Reject(true)
				return
			}
		}
	}()
	return out
}

func (s *session) Publish(ctx context.Context, req model.SendMessageRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}
	return s.broker.Emit(ctx, SendQueue, Event{Action: ActionSend, Token: s.token, Data: body})
}

func (s *session) Done() <-chan error {
	return s.done
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.broker.Close() })
	return err
}
