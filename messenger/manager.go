package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rental-messenger/model"
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultHandlerTimeout = 2 * time.Second
)

type Option func(*Manager)

func WithMaxRetries(n int) Option {
	return func(m *Manager) { m.maxRetries = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.retryDelay = d }
}

// WithConnectTimeout bounds automatic reconnection attempts, which run without a caller context.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) { m.connectTimeout = d }
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(m *Manager) { m.handlerTimeout = d }
}

// Manager owns the transport session of one identity and fans inbound messages out to
// registered handlers. Connect, Disconnect, Publish and Reconnect are serialized against
// the manager state; network I/O runs outside the lock.
type Manager struct {
	transport      Transport
	log            *slog.Logger
	maxRetries     int
	retryDelay     time.Duration
	connectTimeout time.Duration
	handlerTimeout time.Duration

	*Registry

	mu         sync.Mutex
	self       model.Identity
	status     Status
	retryCount int
	exhausted  bool
	session    Session
	stop       context.CancelFunc
	retryTimer *time.Timer
	// gen invalidates in-flight attempts and watchers of replaced sessions.
	gen uint64
}

func NewManager(transport Transport, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		transport:      transport,
		log:            log,
		maxRetries:     DefaultMaxRetries,
		retryDelay:     DefaultRetryDelay,
		connectTimeout: DefaultConnectTimeout,
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Registry = NewRegistry(log, m.handlerTimeout)
	return m
}

// Connect opens a session for self and subscribes to its inbound queue. It returns nil
// right away when a session for self is already connected or being established.
// On failure the bounded retry path takes over and the error is returned to the caller.
func (m *Manager) Connect(ctx context.Context, self model.Identity) error {
	m.mu.Lock()
	if m.self == self && m.status != StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	if m.self != self && m.status != StatusDisconnected {
		m.mu.Unlock()
		m.Disconnect()
		m.mu.Lock()
	}
	if m.self != self {
		m.retryCount = 0
		m.exhausted = false
	}
	m.self = self
	m.cancelRetryLocked()
	gen := m.beginLocked()
	m.mu.Unlock()

	return m.attempt(ctx, gen)
}

// Reconnect is the manual reconnect action: it resets the retry budget and replaces any
// pending or in-flight automatic attempt.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if !m.self.Valid() {
		m.mu.Unlock()
		return fmt.Errorf("%w: no identity to reconnect", ErrNotConnected)
	}
	m.cancelRetryLocked()
	m.retryCount = 0
	m.exhausted = false
	if m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	self := m.self
	gen := m.beginLocked()
	m.mu.Unlock()

	m.log.Info("Manual reconnect", "identity", self.String())
	return m.attempt(ctx, gen)
}

// Disconnect tears the session down and cancels any scheduled reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasActive := m.status != StatusDisconnected || m.session != nil
	self := m.self
	m.gen++
	m.cancelRetryLocked()
	session, stop := m.session, m.stop
	m.session, m.stop = nil, nil
	m.status = StatusDisconnected
	m.retryCount = 0
	m.exhausted = false
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if session != nil {
		if err := session.Close(); err != nil {
			m.log.Warn("Closing transport session failed", "error", err)
		}
	}
	if wasActive {
		m.log.Info("Disconnected", "identity", self.String())
		m.DispatchConnection(false)
	}
}

// Publish sends req over the live session. It never queues: while not connected it
// fails with ErrNotConnected and the caller decides whether to retry.
func (m *Manager) Publish(ctx context.Context, req model.SendMessageRequest) error {
	m.mu.Lock()
	session := m.session
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || session == nil {
		return ErrNotConnected
	}
	if err := session.Publish(ctx, req); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrTransportUnavailable, err)
	}
	return nil
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusConnected
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Identity:     m.self,
		Status:       m.status,
		RetryCount:   m.retryCount,
		Exhausted:    m.exhausted,
		RetryPending: m.retryTimer != nil,
	}
}

func (m *Manager) beginLocked() uint64 {
	m.gen++
	m.status = StatusConnecting
	return m.gen
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// attempt performs one connect + subscribe round for generation gen.
func (m *Manager) attempt(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	self := m.self
	m.mu.Unlock()

	session, err := m.transport.Open(ctx)
	if err != nil {
		return m.failAttempt(gen, fmt.Errorf("%w: %w", ErrTransportUnavailable, err))
	}

	watchCtx, stop := context.WithCancel(context.Background())
	inbox, err := session.Subscribe(watchCtx, self)
	if err != nil {
		stop()
		_ = session.Close()
		return m.failAttempt(gen, fmt.Errorf("%w: %s: %w", ErrSubscriptionFailed, self, err))
	}

	m.mu.Lock()
	if m.gen != gen {
		// Superseded by Disconnect or a manual reconnect while we were dialing.
		m.mu.Unlock()
		stop()
		_ = session.Close()
		return nil
	}
	m.session, m.stop = session, stop
	m.status = StatusConnected
	m.retryCount = 0
	m.exhausted = false
	m.mu.Unlock()

	m.log.Info("Connected", "identity", self.String())
	m.DispatchConnection(true)
	go m.watch(watchCtx, gen, session, inbox)
	return nil
}

// watch delivers inbound messages until the session ends.
func (m *Manager) watch(ctx context.Context, gen uint64, session Session, inbox <-chan model.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-session.Done():
			if err == nil {
				err = errors.New("session closed")
			}
			m.fail(gen, fmt.Errorf("%w: %w", ErrTransportUnavailable, err))
			return
		case msg, ok := <-inbox:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				m.fail(gen, fmt.Errorf("%w: inbox closed", ErrSubscriptionFailed))
				return
			}
			m.DispatchMessage(msg)
		}
	}
}

func (m *Manager) failAttempt(gen uint64, cause error) error {
	if m.fail(gen, cause) {
		return fmt.Errorf("%w: %w", ErrRetriesExhausted, cause)
	}
	return cause
}

// fail moves generation gen to disconnected and schedules the next automatic attempt
// while the retry budget lasts. It reports whether the budget is exhausted.
// The retry timer is armed only after the disconnect was dispatched, so the retry's
// connect notification always comes after it.
func (m *Manager) fail(gen uint64, cause error) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	session, stop := m.session, m.stop
	m.session, m.stop = nil, nil
	m.status = StatusDisconnected

	retry := m.retryCount < m.maxRetries
	if retry {
		m.retryCount++
	} else {
		m.exhausted = true
	}
	attempt, identity := m.retryCount, m.self
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if session != nil {
		_ = session.Close()
	}

	if retry {
		m.log.Warn("Connection lost, retry scheduled",
			"identity", identity.String(), "retry", attempt, "max", m.maxRetries,
			"delay", m.retryDelay, "error", cause)
	} else {
		m.log.Error("Connection lost, retries exhausted",
			"identity", identity.String(), "max", m.maxRetries, "error", cause)
	}

	// Disconnect or a manual reconnect took over meanwhile: they own the notifications.
	if !m.current(gen) {
		return !retry
	}
	m.DispatchConnection(false)

	if retry {
		m.mu.Lock()
		if m.gen == gen && m.status == StatusDisconnected && m.retryTimer == nil {
			m.retryTimer = time.AfterFunc(m.retryDelay, func() { m.retry(gen) })
		}
		m.mu.Unlock()
	}
	return !retry
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.status != StatusDisconnected {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	next := m.beginLocked()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	defer cancel()
	_ = m.attempt(ctx, next)
}
