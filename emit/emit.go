// Package emit is the status-notification side channel between backend
// clients and the host system. Clients publish short user-facing messages
// (severity-tagged) to named channels; the host subscribes and forwards them
// to whatever surface it owns.
package emit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity grades a message for the host surface.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ChannelStatus carries user-visible client status notifications.
const ChannelStatus = "status"

// Message is a single emitted notification.
type Message struct {
	ID       string    // unique message id
	Channel  string    // channel the message was published on
	Text     string    // human-readable message
	Severity Severity  // info, warning or error
	At       time.Time // emission time
}

// Handler receives messages published on a subscribed channel.
type Handler func(Message)

// Bus fans messages out to channel subscribers. Emitting on a channel with
// no subscribers is not an error; the message is dropped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a channel and returns an unsubscribe
// function.
func (b *Bus) Subscribe(channel string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channel] = append(b.handlers[channel], h)
	idx := len(b.handlers[channel]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.handlers[channel]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// Emit publishes a message on a channel. Handlers run synchronously on the
// caller's goroutine, in subscription order.
func (b *Bus) Emit(channel, text string, severity Severity) {
	msg := Message{
		ID:       uuid.New().String(),
		Channel:  channel,
		Text:     text,
		Severity: severity,
		At:       time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[channel]))
	copy(handlers, b.handlers[channel])
	b.mu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(msg)
		}
	}
}

// Status publishes a message on the status channel.
func (b *Bus) Status(text string, severity Severity) {
	b.Emit(ChannelStatus, text, severity)
}

var (
	defaultBus     *Bus
	defaultBusOnce sync.Once
)

// Default returns the process-wide bus used by clients that were not given
// an explicit one.
func Default() *Bus {
	defaultBusOnce.Do(func() {
		defaultBus = NewBus()
	})
	return defaultBus
}

// Emit publishes on the default bus.
func Emit(channel, text string, severity Severity) {
	Default().Emit(channel, text, severity)
}

// Status publishes on the default bus's status channel.
func Status(text string, severity Severity) {
	Default().Status(text, severity)
}
