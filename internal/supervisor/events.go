// events.go keeps a per-bot ring buffer (100 entries) of lifecycle events
// for the /api/bots/{botName}/events endpoint. It complements state.go:
// the state tracker records where a bot is, the event log records what
// happened to it.

package supervisor

import (
	"sync"
	"time"
)

// eventBufferSize is the maximum number of events retained per bot.
const eventBufferSize = 100

// LifecycleEventType identifies a recorded lifecycle event.
type LifecycleEventType string

const (
	EventConnected       LifecycleEventType = "connected"
	EventDisconnected    LifecycleEventType = "disconnected"
	EventReconnecting    LifecycleEventType = "reconnecting"
	EventReconnectFailed LifecycleEventType = "reconnect_failed"
	EventCredsRotated    LifecycleEventType = "credentials_rotated"
	EventTerminated      LifecycleEventType = "terminated"
	EventStopped         LifecycleEventType = "stopped"
)

// LifecycleEvent is one recorded lifecycle event for a bot.
type LifecycleEvent struct {
	BotName   string             `json:"botName"`
	Type      LifecycleEventType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Details   string             `json:"details,omitempty"`
}

// eventBuffer is a fixed-size ring buffer of LifecycleEvents for one bot.
type eventBuffer struct {
	events [eventBufferSize]LifecycleEvent
	head   int
	count  int
}

func (b *eventBuffer) record(event LifecycleEvent) {
	b.events[b.head] = event
	b.head = (b.head + 1) % eventBufferSize
	if b.count < eventBufferSize {
		b.count++
	}
}

func (b *eventBuffer) history() []LifecycleEvent {
	if b.count == 0 {
		return nil
	}

	result := make([]LifecycleEvent, b.count)
	if b.count < eventBufferSize {
		copy(result, b.events[:b.count])
	} else {
		n := copy(result, b.events[b.head:])
		copy(result[n:], b.events[:b.head])
	}
	return result
}

// eventLog manages per-bot event ring buffers.
type eventLog struct {
	mu      sync.RWMutex
	buffers map[string]*eventBuffer
}

func newEventLog() *eventLog {
	return &eventLog{
		buffers: make(map[string]*eventBuffer),
	}
}

func (el *eventLog) log(botName string, eventType LifecycleEventType, details string) {
	el.mu.Lock()
	defer el.mu.Unlock()

	buf, ok := el.buffers[botName]
	if !ok {
		buf = &eventBuffer{}
		el.buffers[botName] = buf
	}
	buf.record(LifecycleEvent{
		BotName:   botName,
		Type:      eventType,
		Timestamp: time.Now(),
		Details:   details,
	})
}

func (el *eventLog) getEvents(botName string) []LifecycleEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	buf, ok := el.buffers[botName]
	if !ok {
		return nil
	}
	return buf.history()
}

func (el *eventLog) remove(botName string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	delete(el.buffers, botName)
}
