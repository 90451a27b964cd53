// Package relay fans session events out to streaming HTTP clients.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/holdings_agent/internal/session"
)

const subscriberBufSize = 64

// FeedSession carries session.Transition payloads.
const FeedSession = "session"

// Event is a single relay event.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans out events to all subscribers. It implements session.Observer.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	latest      map[string]Event
	nextID      atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
		latest:      make(map[string]Event),
	}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on. The last event of every feed is queued first so a
// late subscriber sees the current session state. Slow consumers have
// events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	for _, evt := range b.latest {
		ch <- evt
	}
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest[evt.Feed] = evt
	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			slog.Debug("relay event dropped", "subscriber_id", id, "feed", evt.Feed)
		}
	}
}

// SessionChanged publishes t on the session feed.
func (b *Broker) SessionChanged(t session.Transition) {
	data, err := json.Marshal(t)
	if err != nil {
		slog.Warn("relay marshal transition failed", "error", err)
		return
	}
	b.Publish(Event{Feed: FeedSession, Payload: string(data)})
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
