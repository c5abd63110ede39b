package messenger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rental-messenger/model"
)

type MessageHandler func(model.Message)

type ConnectionHandler func(connected bool)

// HandlerID identifies a registration so it can be removed later.
type HandlerID uint64

type entry[F any] struct {
	id HandlerID
	fn F
}

// Registry holds message and connection observers. Dispatch iterates over a snapshot,
// so handlers may add or remove registrations (their own included) while being called.
type Registry struct {
	log     *slog.Logger
	timeout time.Duration

	mu         sync.Mutex
	next       HandlerID
	messages   []entry[MessageHandler]
	connection []entry[ConnectionHandler]
}

// NewRegistry builds a registry. A handler still running after timeout is abandoned
// and dispatch moves on to the next one; zero disables the bound.
func NewRegistry(log *slog.Logger, timeout time.Duration) *Registry {
	return &Registry{log: log, timeout: timeout}
}

func (r *Registry) AddMessageHandler(fn MessageHandler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.messages = append(r.messages, entry[MessageHandler]{id: r.next, fn: fn})
	return r.next
}

func (r *Registry) RemoveMessageHandler(id HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = without(r.messages, id)
}

func (r *Registry) AddConnectionHandler(fn ConnectionHandler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.connection = append(r.connection, entry[ConnectionHandler]{id: r.next, fn: fn})
	return r.next
}

func (r *Registry) RemoveConnectionHandler(id HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connection = without(r.connection, id)
}

// without returns a fresh slice so snapshots handed out earlier stay untouched.
func without[F any](entries []entry[F], id HandlerID) []entry[F] {
	out := make([]entry[F], 0, len(entries))
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) snapshotMessages() []entry[MessageHandler] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

func (r *Registry) snapshotConnection() []entry[ConnectionHandler] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connection
}

// DispatchMessage calls every message handler in registration order.
func (r *Registry) DispatchMessage(msg model.Message) {
	for _, e := range r.snapshotMessages() {
		fn := e.fn
		r.invoke("message", e.id, func() { fn(msg) })
	}
}

// DispatchConnection calls every connection handler in registration order.
func (r *Registry) DispatchConnection(connected bool) {
	for _, e := range r.snapshotConnection() {
		fn := e.fn
		r.invoke("connection", e.id, func() { fn(connected) })
	}
}

func (r *Registry) invoke(kind string, id HandlerID, call func()) {
	if r.timeout <= 0 {
		if err := safeCall(call); err != nil {
			r.log.Error("Handler failed", "kind", kind, "handler", id, "error", err)
		}
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- safeCall(call)
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			r.log.Error("Handler failed", "kind", kind, "handler", id, "error", err)
		}
	case <-timer.C:
		r.log.Warn("Handler exceeded its time budget, moving on",
			"kind", kind, "handler", id, "timeout", r.timeout)
	}
}

func safeCall(call func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	call()
	return nil
}
