// Package notification broadcasts room events to subscribed streams.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uniqueusername/listening-with/internal/app/queue"
	"github.com/uniqueusername/listening-with/internal/domain/song"
)

// Type represents a notification type.
type Type int

const (
	TypeNowPlaying          Type = iota // A queued song was dispatched to the player
	TypeQueueUpdated                    // Queue contents changed
	TypeQueueExhausted                  // Advance requested with an empty queue
	TypeSessionConnected                // Observation channel acquired
	TypeSessionDisconnected             // Observation channel lost
	TypeTriggerFailed                   // Play trigger could not be dispatched
)

// String returns the string representation of the notification type.
func (t Type) String() string {
	switch t {
	case TypeNowPlaying:
		return "now_playing"
	case TypeQueueUpdated:
		return "queue_updated"
	case TypeQueueExhausted:
		return "queue_exhausted"
	case TypeSessionConnected:
		return "session_connected"
	case TypeSessionDisconnected:
		return "session_disconnected"
	case TypeTriggerFailed:
		return "trigger_failed"
	default:
		return "unknown"
	}
}

// Notification is one room event delivered to subscribers.
type Notification struct {
	Type       Type
	SequenceNo uint64
	Song       *song.QueuedSong // Set for now-playing and trigger-failed
	Queue      *queue.Snapshot  // Set for queue updates
}

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's stream.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Broadcast sends a notification to all subscribers. Each send runs in its
// own goroutine with a timeout so one slow subscriber cannot stall the rest.
func (m *Manager) Broadcast(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case <-done:
				// Send errors are ignored; a dead stream is unsubscribed
				// by its owner.
			case <-ctx.Done():
			}
		}(sub)
	}
	wg.Wait()
}

// NowPlaying announces that a queued song was dispatched to the player.
func (m *Manager) NowPlaying(qs *song.QueuedSong) {
	m.Broadcast(&Notification{Type: TypeNowPlaying, Song: qs})
}

// QueueUpdated announces changed queue contents.
func (m *Manager) QueueUpdated(snap queue.Snapshot) {
	m.Broadcast(&Notification{Type: TypeQueueUpdated, Queue: &snap})
}

// QueueExhausted announces that an advance found the queue empty.
func (m *Manager) QueueExhausted() {
	m.Broadcast(&Notification{Type: TypeQueueExhausted})
}

// SessionConnected announces that the observation channel was acquired.
func (m *Manager) SessionConnected() {
	m.Broadcast(&Notification{Type: TypeSessionConnected})
}

// SessionDisconnected announces that the observation channel was lost.
func (m *Manager) SessionDisconnected() {
	m.Broadcast(&Notification{Type: TypeSessionDisconnected})
}

// TriggerFailed announces a song the player could not be asked to play.
func (m *Manager) TriggerFailed(qs *song.QueuedSong) {
	m.Broadcast(&Notification{Type: TypeTriggerFailed, Song: qs})
}

// Close drops all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
