package unread

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"rental-messenger/model"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second

	// seenLimit bounds the pushed ids remembered for redelivery checks; the oldest go first.
	seenLimit = 4096
)

// Snapshot is the read-only view handed to observers.
type Snapshot struct {
	Total         int
	ByCounterpart map[model.Identity]int
}

// Tracker keeps the unread total of one identity and its per-counterpart counters.
// Pushed messages increment the counters locally; polls of the store replace them,
// since the store is authoritative.
type Tracker struct {
	store          Store
	self           model.Identity
	log            *slog.Logger
	interval       time.Duration
	requestTimeout time.Duration
	wake           chan struct{}

	// ctx bounds the mark-read calls issued for the open conversation; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	counts    map[model.Identity]int
	total     int
	seen      map[uint]struct{}
	seenOrder []uint
	focused   model.Identity
	hasFocus  bool
	nextID    int
	observers map[int]func(Snapshot)
}

func NewTracker(store Store, self model.Identity, log *slog.Logger, interval, requestTimeout time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		ctx:            ctx,
		cancel:         cancel,
		store:          store,
		self:           self,
		log:            log,
		interval:       interval,
		requestTimeout: requestTimeout,
		wake:           make(chan struct{}, 1),
		counts:         make(map[model.Identity]int),
		seen:           make(map[uint]struct{}),
		observers:      make(map[int]func(Snapshot)),
	}
}

func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *Tracker) Unread(counterpart model.Identity) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[counterpart]
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{Total: t.total, ByCounterpart: maps.Clone(t.counts)}
}

// Subscribe registers an observer called after every change. The returned func removes it.
func (t *Tracker) Subscribe(fn func(Snapshot)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.observers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.observers, id)
	}
}

func (t *Tracker) publish(s Snapshot) {
	t.mu.Lock()
	observers := make([]func(Snapshot), 0, len(t.observers))
	for _, fn := range t.observers {
		observers = append(observers, fn)
	}
	t.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

// Focus marks the conversation with counterpart as open: messages from it are read on arrival.
func (t *Tracker) Focus(counterpart model.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused, t.hasFocus = counterpart, true
}

func (t *Tracker) Blur() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused, t.hasFocus = model.Identity{}, false
}

// OnMessage accounts for a pushed message. Outgoing messages and redeliveries are ignored.
func (t *Tracker) OnMessage(msg model.Message) {
	if msg.Receiver() != t.self {
		return
	}
	counterpart, ok := msg.Counterpart(t.self)
	if !ok {
		return
	}

	t.mu.Lock()
	if _, dup := t.seen[msg.ID]; dup {
		t.mu.Unlock()
		return
	}
	t.rememberLocked(msg.ID)
	if t.hasFocus && t.focused == counterpart {
		if !t.closed {
			t.wg.Add(1)
			go t.markFocused(counterpart)
		}
		t.mu.Unlock()
		return
	}
	t.counts[counterpart]++
	t.total++
	s := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(s)
}

func (t *Tracker) rememberLocked(id uint) {
	t.seen[id] = struct{}{}
	t.seenOrder = append(t.seenOrder, id)
	if len(t.seenOrder) > seenLimit {
		delete(t.seen, t.seenOrder[0])
		t.seenOrder = t.seenOrder[1:]
	}
}

func (t *Tracker) markFocused(counterpart model.Identity) {
	defer t.wg.Done()
	ctx, cancel := context.WithTimeout(t.ctx, t.requestTimeout)
	defer cancel()
	if err := t.store.MarkRead(ctx, t.self, counterpart); err != nil && t.ctx.Err() == nil {
		t.log.Warn("Mark read of open conversation failed",
			"self", t.self.String(), "counterpart", counterpart.String(), "error", err)
	}
}

// MarkRead advances the store read boundary for counterpart, then clears its local
// counter. On failure the local counters are left as they were.
func (t *Tracker) MarkRead(ctx context.Context, counterpart model.Identity) error {
	if err := t.store.MarkRead(ctx, t.self, counterpart); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.counts, counterpart)
	t.total = 0
	for _, n := range t.counts {
		t.total += n
	}
	s := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(s)
	return nil
}

// Refresh replaces local state with the store's view. The total always comes from the
// unread-count endpoint; the per-counterpart breakdown is best effort. Ids already seen
// stay remembered: the store count includes them, so a later redelivery must not add to it.
func (t *Tracker) Refresh(ctx context.Context) error {
	total, err := t.store.UnreadCount(ctx, t.self)
	if err != nil {
		return err
	}
	rows, breakdownErr := t.store.UnreadBySender(ctx, t.self)
	if breakdownErr != nil {
		t.log.Warn("Unread breakdown unavailable, keeping local counters", "error", breakdownErr)
	}

	t.mu.Lock()
	if breakdownErr == nil {
		counts := make(map[model.Identity]int, len(rows))
		for _, row := range rows {
			if row.Count > 0 {
				counts[row.Sender()] += row.Count
			}
		}
		t.counts = counts
	}
	t.total = total
	s := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(s)
	return nil
}

// Counts returns a copy of the per-counterpart counters, the aggregator's side channel.
func (t *Tracker) Counts() map[model.Identity]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.counts)
}

// OnConnection schedules an immediate poll whenever the transport comes back.
func (t *Tracker) OnConnection(connected bool) {
	if connected {
		t.Poke()
	}
}

// Poke requests a refresh from the Run loop without blocking.
func (t *Tracker) Poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run polls the store every interval, whatever the connection state, until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-t.wake:
		}
		reqCtx, cancel := context.WithTimeout(ctx, t.requestTimeout)
		if err := t.Refresh(reqCtx); err != nil && ctx.Err() == nil {
			t.log.Warn("Unread poll failed, keeping last known value",
				"self", t.self.String(), "total", t.Total(), "error", err)
		}
		cancel()
	}
}

// Close cancels pending mark-read calls of the open conversation and waits for them.
// Messages arriving afterwards are still counted but no longer reach the store.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}
