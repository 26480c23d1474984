// Package pubsub is the in-process event bus used to tell presentation code
// (HTTP API, CLI, telemetry) about state changes and sync progress.
package pubsub

import (
	"sync"
	"time"
)

// Topic names an event stream.
type Topic string

const (
	TopicStateUpdated Topic = "STATE_UPDATED"
	TopicSyncStatus   Topic = "SYNC_STATUS_CHANGED"
	TopicToast        Topic = "TOAST_NOTIFICATION"
)

// SyncStatus is the value carried by TopicSyncStatus events.
type SyncStatus string

const (
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusError    SyncStatus = "error"
	StatusOffline  SyncStatus = "offline"
	StatusDisabled SyncStatus = "disabled"
)

// ToastType is the severity of a toast notification.
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
)

// Toast is a short user-facing notification.
type Toast struct {
	Message string    `json:"message"`
	Type    ToastType `json:"type"`
}

// Event is one published message. Status is set for TopicSyncStatus and
// Toast for TopicToast.
type Event struct {
	Topic  Topic      `json:"topic"`
	Status SyncStatus `json:"status,omitempty"`
	Toast  *Toast     `json:"toast,omitempty"`
	At     time.Time  `json:"at"`
}

// StateUpdated builds a TopicStateUpdated event.
func StateUpdated() Event {
	return Event{Topic: TopicStateUpdated, At: time.Now()}
}

// StatusChanged builds a TopicSyncStatus event.
func StatusChanged(s SyncStatus) Event {
	return Event{Topic: TopicSyncStatus, Status: s, At: time.Now()}
}

// Notify builds a TopicToast event.
func Notify(message string, typ ToastType) Event {
	return Event{Topic: TopicToast, Toast: &Toast{Message: message, Type: typ}, At: time.Now()}
}

// Handler receives events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(Event)

// Publisher provides an interface for emitting events.
type Publisher interface {
	Publish(e Event)
}

// Subscription cancels a subscription when Unsubscribe is called.
type Subscription struct {
	unsubscribe func()
}

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s Subscription) Unsubscribe() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

type subscriber struct {
	id int
	fn Handler
}

// Bus is a synchronous publish/subscribe hub, safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscriber
	all    []subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for one topic.
func (b *Bus) Subscribe(topic Topic, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})

	return Subscription{unsubscribe: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[topic] = without(b.subs[topic], id)
	}}
}

// SubscribeAll registers fn for every topic.
func (b *Bus) SubscribeAll(fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, fn: fn})

	return Subscription{unsubscribe: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = without(b.all, id)
	}}
}

// Publish delivers e to topic subscribers, then to catch-all subscribers,
// each in subscription order.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs[e.Topic])+len(b.all))
	for _, s := range b.subs[e.Topic] {
		targets = append(targets, s.fn)
	}
	for _, s := range b.all {
		targets = append(targets, s.fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}

func without(list []subscriber, id int) []subscriber {
	out := make([]subscriber, 0, len(list))
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Ensure Bus implements Publisher.
var _ Publisher = (*Bus)(nil)
