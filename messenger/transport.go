package messenger

import (
	"context"

	"rental-messenger/model"
)

// Transport opens sessions against the push endpoint.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one live transport connection.
type Session interface {
	// Subscribe starts delivery of the identity's inbound queue. The channel is closed
	// when the subscription ends.
	Subscribe(ctx context.Context, self model.Identity) (<-chan model.Message, error)
	Publish(ctx context.Context, req model.SendMessageRequest) error
	// Done yields once when the session is lost without Close being called.
	Done() <-chan error
	Close() error
}

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	}
	return "disconnected"
}

// State is a point-in-time copy of the manager's connection state.
type State struct {
	Identity   model.Identity
	Status     Status
	RetryCount int
	// Exhausted is set once automatic retries stopped; only Reconnect clears it.
	Exhausted    bool
	RetryPending bool
}
