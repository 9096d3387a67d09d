package service

import (
	"sync"

	"robot_control/internal/models"
)

// Update kinds delivered to live subscribers.
const (
	UpdateState = "state"
	UpdateEvent = "event"
)

// Update tells subscribers that the robot changed. State updates carry no
// payload; subscribers read a fresh snapshot. Event updates carry the
// journal entry that was just written.
type Update struct {
	Kind  string
	Event *models.RobotEvent
}

// Hub fans dispatcher updates out to live subscribers. A nil *Hub drops
// everything, so services work without one.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Update]struct{})}
}

// Subscribe registers a buffered channel. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buf int) (<-chan Update, func()) {
	if h == nil {
		return nil, func() {}
	}
	ch := make(chan Update, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks the dispatcher: a subscriber with a full buffer misses
// the update and catches up on its next poll.
func (h *Hub) Publish(u Update) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
