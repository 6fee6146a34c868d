package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"lot-auction/utils"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/workpool"
)

// DefaultSubscriberBuffer is the number of events a subscriber may lag behind
// before further events are dropped for it.
const DefaultSubscriberBuffer = 32

// DefaultSinkBuffer is the number of events queued for a sink before further
// events are dropped for it.
const DefaultSinkBuffer = 256

// sinkTimeout bounds a single delivery to a sink
const sinkTimeout = 5 * time.Second

// Event is a single message on the auction channel. Payloads always carry
// state rather than deltas, so a subscriber that missed events converges by
// taking the payload with the highest version.
type Event struct {
	Seq       uint64    `json:"seq"`
	Name      string    `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Sink receives every published event outside the process, e.g. Redis pub/sub
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Broadcaster fans events out to in-process subscribers and external sinks.
// Publish never blocks on a subscriber or a sink: each has a bounded queue
// and events that do not fit are dropped and counted.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	seq    atomic.Uint64
	clock  clock.Clock
	queues []*sinkQueue
	pool   *workpool.WorkPool
	ctx    context.Context
	cancel context.CancelFunc
}

// sinkQueue holds the events waiting for one sink. One pool worker drains it,
// so a sink sees events in publish order.
type sinkQueue struct {
	sink    Sink
	events  chan Event
	dropped atomic.Uint64
}

// New creates a Broadcaster that delivers to sinks on a pool of workers.
// The pool always has at least one worker per sink.
func New(clk clock.Clock, workers int, sinks ...Sink) (*Broadcaster, error) {
	if workers < len(sinks) {
		workers = len(sinks)
	}
	if workers < 1 {
		workers = 1
	}
	pool, err := workpool.NewWorkPool(workers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		subs:   make(map[string]*Subscription),
		clock:  clk,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, sink := range sinks {
		q := &sinkQueue{sink: sink, events: make(chan Event, DefaultSinkBuffer)}
		b.queues = append(b.queues, q)
		// the pool queue holds one item per worker, so this never blocks
		pool.Submit(func() { b.drain(q) })
	}
	return b, nil
}

// Publish stamps the event and delivers it to all subscribers and sinks
func (b *Broadcaster) Publish(name string, payload any) {
	event := Event{
		Seq:       b.seq.Add(1),
		Name:      name,
		Payload:   payload,
		EmittedAt: b.clock.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		sub.offer(event)
	}
	for _, q := range b.queues {
		q.offer(event)
	}
}

// SinkDropped returns how many events were discarded across all sinks
func (b *Broadcaster) SinkDropped() uint64 {
	var n uint64
	for _, q := range b.queues {
		n += q.dropped.Load()
	}
	return n
}

func (b *Broadcaster) drain(q *sinkQueue) {
	for event := range q.events {
		if b.ctx.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(b.ctx, sinkTimeout)
		err := q.sink.Deliver(ctx, event)
		cancel()
		if err != nil {
			utils.Warn("broadcast: sink delivery failed", map[string]any{
				"event": event.Name,
				"seq":   event.Seq,
				"error": err.Error(),
			})
		}
	}
}

// offer is called with the broadcaster read lock held
func (q *sinkQueue) offer(event Event) {
	select {
	case q.events <- event:
	default:
		if q.dropped.Add(1) == 1 {
			utils.Warn("broadcast: sink queue full, dropping events", map[string]any{
				"event": event.Name,
				"seq":   event.Seq,
			})
		}
	}
}

// Subscribe joins the auction channel
func (b *Broadcaster) Subscribe(buffer int) (*Subscription, error) {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	sub := &Subscription{
		ID:     utils.NewSubscriptionID(),
		events: make(chan Event, buffer),
		leave:  b.unsubscribe,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.subs[sub.ID] = sub
	return sub, nil
}

// SubscriberCount returns the number of joined subscribers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; ok {
		delete(b.subs, sub.ID)
		close(sub.events)
	}
}

// Close disconnects every subscriber, abandons queued sink events and
// cancels deliveries in flight
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.events)
	}
	for _, q := range b.queues {
		close(q.events)
	}
	b.mu.Unlock()

	b.cancel()
	b.pool.Stop()
}

// ErrClosed is returned when subscribing to a closed broadcaster
var ErrClosed = errors.New("broadcaster closed")

// Subscription is one observer's membership of the auction channel
type Subscription struct {
	ID      string
	events  chan Event
	dropped atomic.Uint64
	leave   func(*Subscription)
	once    sync.Once
}

// Events returns the channel of events. It is closed when the subscription
// is closed or the broadcaster shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped returns how many events were discarded because the buffer was full
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close leaves the channel. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(func() { s.leave(s) })
	return nil
}

// offer is called with the broadcaster read lock held, so the channel
// cannot be closed underneath it.
func (s *Subscription) offer(event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}
