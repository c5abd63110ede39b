// Package session is the client side controller of one logged in participant. It owns
// the transport manager and the unread tracker of that identity and keeps the
// conversation list current.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"rental-messenger/config"
	"rental-messenger/conversation"
	"rental-messenger/messenger"
	"rental-messenger/model"
	"rental-messenger/unread"
)

// Store is the message store as seen by a client.
type Store interface {
	unread.Store
	conversation.Directory
	Messages(ctx context.Context, self model.Identity) ([]model.Message, error)
	Send(ctx context.Context, req model.SendMessageRequest) (model.Message, error)
}

type Options struct {
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	HandlerTimeout time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:     messenger.DefaultMaxRetries,
		RetryDelay:     messenger.DefaultRetryDelay,
		ConnectTimeout: messenger.DefaultConnectTimeout,
		HandlerTimeout: messenger.DefaultHandlerTimeout,
		PollInterval:   unread.DefaultPollInterval,
		RequestTimeout: unread.DefaultRequestTimeout,
	}
}

func OptionsFromConfig(cfg config.Client) Options {
	return Options{
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		ConnectTimeout: cfg.ConnectTimeout,
		HandlerTimeout: cfg.HandlerTimeout,
		PollInterval:   cfg.UnreadPollInterval,
		RequestTimeout: cfg.RequestTimeout,
	}
}

type Session struct {
	self           model.Identity
	store          Store
	directory      *cachedDirectory
	log            *slog.Logger
	requestTimeout time.Duration

	manager *messenger.Manager
	tracker *unread.Tracker

	reload    chan struct{}
	recompute chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	mu            sync.Mutex
	messages      []model.Message
	conversations []model.Conversation
	nextID        int
	observers     map[int]func([]model.Conversation)
}

// Login builds the session of self and starts connecting. A first connection failure is
// not fatal: the manager keeps retrying and the list is served from the store meanwhile.
func Login(ctx context.Context, self model.Identity, transport messenger.Transport, store Store, log *slog.Logger, opts Options) (*Session, error) {
	if !self.Valid() {
		return nil, fmt.Errorf("login: invalid identity %s", self)
	}
	log = log.With("identity", self.String())

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		self:           self,
		store:          store,
		directory:      newCachedDirectory(store),
		log:            log,
		requestTimeout: opts.RequestTimeout,
		manager: messenger.NewManager(transport, log,
			messenger.WithMaxRetries(opts.MaxRetries),
			messenger.WithRetryDelay(opts.RetryDelay),
			messenger.WithConnectTimeout(opts.ConnectTimeout),
			messenger.WithHandlerTimeout(opts.HandlerTimeout),
		),
		tracker:   unread.NewTracker(store, self, log, opts.PollInterval, opts.RequestTimeout),
		reload:    make(chan struct{}, 1),
		recompute: make(chan struct{}, 1),
		cancel:    cancel,
		observers: make(map[int]func([]model.Conversation)),
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = unread.DefaultRequestTimeout
	}

	s.manager.AddMessageHandler(s.onMessage)
	s.manager.AddConnectionHandler(s.onConnection)
	s.tracker.Subscribe(func(unread.Snapshot) { signal(s.recompute) })

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.tracker.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()

	signal(s.reload)
	s.tracker.Poke()
	if err := s.manager.Connect(ctx, self); err != nil {
		log.Warn("Initial connection failed", "error", err)
	}
	return s, nil
}

func (s *Session) Self() model.Identity {
	return s.self
}

// Logout disconnects and stops the background work. Safe to call more than once.
func (s *Session) Logout() {
	s.stopOnce.Do(func() {
		s.manager.Disconnect()
		s.cancel()
		s.wg.Wait()
		s.tracker.Close()
		s.log.Info("Logged out")
	})
}

func (s *Session) onMessage(msg model.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.tracker.OnMessage(msg)
	signal(s.recompute)
}

// onConnection re-fetches after every (re)connect to close the gap left while offline.
func (s *Session) onConnection(connected bool) {
	s.tracker.OnConnection(connected)
	if connected {
		signal(s.reload)
	}
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reload:
			s.fetch(ctx)
			s.rebuild(ctx)
		case <-s.recompute:
			s.rebuild(ctx)
		}
	}
}

func (s *Session) fetch(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	fetched, err := s.store.Messages(reqCtx, s.self)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("Fetching messages failed, keeping local log", "error", err)
		}
		return
	}

	s.mu.Lock()
	// Pushed messages that raced the fetch are kept; the fetched copy wins on conflicts.
	s.messages = conversation.Dedupe(append(s.messages, fetched...))
	s.mu.Unlock()
	s.log.Debug("Messages fetched", "count", len(fetched))
}

func (s *Session) rebuild(ctx context.Context) {
	s.mu.Lock()
	s.messages = conversation.Dedupe(s.messages)
	messages := slices.Clone(s.messages)
	s.mu.Unlock()

	conversations := conversation.Aggregate(s.self, messages, s.tracker.Counts())

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	conversations = conversation.Resolve(reqCtx, s.directory, s.log, conversations)
	cancel()

	s.mu.Lock()
	s.conversations = conversations
	observers := make([]func([]model.Conversation), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(slices.Clone(conversations))
	}
}

// Conversations returns the current list, most recent first.
func (s *Session) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// Subscribe registers fn for every recomputed conversation list. fn runs on the session
// goroutine and must not block.
func (s *Session) Subscribe(fn func([]model.Conversation)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Session) Unread() unread.Snapshot {
	return s.tracker.Snapshot()
}

func (s *Session) SubscribeUnread(fn func(unread.Snapshot)) func() {
	return s.tracker.Subscribe(fn)
}

func (s *Session) State() messenger.State {
	return s.manager.State()
}

// Thread returns the local messages exchanged with counterpart, oldest first.
func (s *Session) Thread(counterpart model.Identity) []model.Message {
	s.mu.Lock()
	messages := conversation.Dedupe(s.messages)
	s.mu.Unlock()

	var out []model.Message
	for _, msg := range messages {
		if cp, ok := msg.Counterpart(s.self); ok && cp == counterpart {
			out = append(out, msg)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID) - int(b.ID)
	})
	return out
}

// Open focuses the conversation with counterpart and marks it read.
func (s *Session) Open(ctx context.Context, counterpart model.Identity) error {
	s.tracker.Focus(counterpart)
	if err := s.tracker.MarkRead(ctx, counterpart); err != nil {
		return fmt.Errorf("open %s: %w", counterpart, err)
	}
	return nil
}

// Close leaves the focused conversation.
func (s *Session) Close() {
	s.tracker.Blur()
}

// Send stores a message through the REST API and adds the persisted copy to the log.
func (s *Session) Send(ctx context.Context, to model.Identity, content string) (model.Message, error) {
	msg, err := s.store.Send(ctx, model.NewTextMessage(s.self, to, content))
	if err != nil {
		return model.Message{}, err
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	signal(s.recompute)
	return msg, nil
}

// Publish hands a message to the transport without waiting for it to be stored. It
// appears in the list on the next fetch.
func (s *Session) Publish(ctx context.Context, to model.Identity, content string) error {
	req := model.NewTextMessage(s.self, to, content).Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	return s.manager.Publish(ctx, req)
}

// Reconnect is the manual reconnect action.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.manager.Reconnect(ctx)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
