// Package live fans quiz events out to connected clients.
package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Event types. JoinQuiz is the only client-to-server event.
const (
	EventLiveScoreUpdate   = "live-score-update"
	EventLeaderboardUpdate = "leaderboard-update"
	EventPlayerJoined      = "player-joined"
	EventJoinQuiz          = "join-quiz"
)

// subscriberBuffer is how many messages a subscriber may lag behind
// before further messages to it are dropped.
const subscriberBuffer = 16

var ErrHubClosed = errors.New("hub closed")

// Message is one pushed event. Data is encoded once per publish and
// shared by every subscriber.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newMessage(typ string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s: %w", typ, err)
	}
	return Message{Type: typ, Data: raw}, nil
}

// Subscription is one connected client. C is closed when the hub shuts
// down.
type Subscription struct {
	ID string
	C  <-chan Message
}

// Hub is an in-process pub/sub. Delivery is best-effort: a full
// subscriber buffer drops the message for that subscriber only. Messages
// to one subscriber arrive in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan Message
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Message)}
}

func (h *Hub) Subscribe() (*Subscription, error) {
	ch := make(chan Message, subscriberBuffer)
	id := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.subs[id] = ch
	return &Subscription{ID: id, C: ch}, nil
}

// Unsubscribe removes a subscriber. It is safe to call after Close.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Publish sends to every subscriber.
func (h *Hub) Publish(typ string, data any) error {
	return h.publish(typ, data, func(string) bool { return true })
}

// PublishExcept sends to every subscriber but one.
func (h *Hub) PublishExcept(except, typ string, data any) error {
	return h.publish(typ, data, func(id string) bool { return id != except })
}

// Send delivers to a single subscriber.
func (h *Hub) Send(id, typ string, data any) error {
	return h.publish(typ, data, func(sub string) bool { return sub == id })
}

func (h *Hub) publish(typ string, data any, include func(id string) bool) error {
	msg, err := newMessage(typ, data)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for id, ch := range h.subs {
		if !include(id) {
			continue
		}
		select {
		case ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
	return nil
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription by closing its channel. Later publishes
// fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
