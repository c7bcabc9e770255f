package supabase

import (
	"context"
	"sync"

	"github.com/recetas/recetas/internal/model"
)

// subscriberBuffer is how many changes may queue for a slow subscriber
// before Publish waits on it.
const subscriberBuffer = 32

// Notifier fans auth state changes out to subscribers.
type Notifier interface {
	Publish(ctx context.Context, change model.AuthChange) error
	// Subscribe registers handler and returns the function that releases it.
	// The caller owns the subscription; it is never released implicitly.
	Subscribe(handler func(model.AuthChange)) (cancel func())
}

// Bus is an in-process Notifier. Each subscriber gets its own goroutine so
// handlers may block (e.g. on network calls) without stalling publishers,
// and changes reach a given subscriber in publish order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	ch   chan model.AuthChange
	done chan struct{}
	once sync.Once
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers change to every current subscriber.
func (b *Bus) Publish(ctx context.Context, change model.AuthChange) error {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- change:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers handler.
func (b *Bus) Subscribe(handler func(model.AuthChange)) func() {
	s := &subscriber{
		ch:   make(chan model.AuthChange, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case change := <-s.ch:
				select {
				case <-s.done:
					return
				default:
				}
				handler(change)
			case <-s.done:
				return
			}
		}
	}()

	return func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.done)
		})
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
