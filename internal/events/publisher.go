// Package events fans out store and engine notifications in process. Stores
// publish deleted-set changes; engines subscribe to them and publish their
// own thread updates and phase changes.
package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/threadline/internal/models"
)

// Publisher errors.
var (
	ErrInvalidSubscriptionID = errors.New("subscription ID is required")
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrSubscriptionExists    = errors.New("subscription with this ID already exists")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
)

// EventHandler receives matching events. It runs on the publishing goroutine
// and may call back into the publisher.
type EventHandler func(event *models.Event)

// Filter selects events. Zero fields match everything.
type Filter struct {
	EventTypes []models.EventType

	// ThreadID limits delivery to one engine instance.
	ThreadID string

	PostIDs []string
}

// Matches reports whether event passes every non-empty criterion.
func (f *Filter) Matches(event *models.Event) bool {
	switch {
	case event == nil:
		return false
	case len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.Type):
		return false
	case f.ThreadID != "" && f.ThreadID != event.ThreadID:
		return false
	case len(f.PostIDs) > 0 && !slices.Contains(f.PostIDs, event.PostID):
		return false
	}
	return true
}

// Publisher is implemented by InMemoryPublisher.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event)
	Subscribe(id string, filter Filter, handler EventHandler) error
	Unsubscribe(id string) error
}

type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// InMemoryPublisher delivers events synchronously, in subscription order.
type InMemoryPublisher struct {
	mu   sync.RWMutex
	subs []*subscription
	now  func() time.Time
}

// PublisherOption configures an InMemoryPublisher.
type PublisherOption func(*InMemoryPublisher)

// WithClock overrides the timestamp source for published events.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *InMemoryPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewInMemoryPublisher creates an empty publisher.
func NewInMemoryPublisher(opts ...PublisherOption) *InMemoryPublisher {
	p := &InMemoryPublisher{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps event with an ID and timestamp when missing and hands it to
// every matching handler. Delivery stops once ctx is done.
func (p *InMemoryPublisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subs {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Handlers run unlocked so they can subscribe or unsubscribe.
	for _, handler := range handlers {
		if ctx.Err() != nil {
			return
		}
		handler(event)
	}
}

// Subscribe registers handler under a unique id.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexOf(id) >= 0 {
		return ErrSubscriptionExists
	}
	p.subs = append(p.subs, &subscription{id: id, filter: filter, handler: handler})
	return nil
}

// Unsubscribe removes a subscription.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	p.subs = slices.Delete(p.subs, i, i+1)
	return nil
}

func (p *InMemoryPublisher) indexOf(id string) int {
	return slices.IndexFunc(p.subs, func(sub *subscription) bool { return sub.id == id })
}

// SubscriberCount returns the number of active subscriptions.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close drops every subscription.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = nil
}
