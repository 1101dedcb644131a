package server

import (
	"sync"

	"github.com/playperu/racetrack/internal/tracker"
)

// Broker is an in-process pub/sub fanning tracker events out to every
// connected dashboard.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan tracker.Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan tracker.Event]struct{}),
	}
}

// Subscribe returns a channel that receives every published event.
func (b *Broker) Subscribe() chan tracker.Event {
	ch := make(chan tracker.Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan tracker.Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish implements tracker.Notifier.
func (b *Broker) Publish(event tracker.Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
