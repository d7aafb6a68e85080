package sessions

import (
	"sync"

	"github.com/appforge/pkg/models"
)

// Event is one status update pushed to stream subscribers.
type Event struct {
	Type     string                     `json:"type"` // connected | status | completed | failed | cancelled
	Status   Status                     `json:"status,omitempty"`
	Message  string                     `json:"message,omitempty"`
	Files    []models.GeneratedFile     `json:"files,omitempty"`
	Metadata *models.GenerationMetadata `json:"metadata,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// Hub fans session events out to live subscribers. There is no buffering or
// replay; a subscriber only sees events published while it is attached.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe attaches to a session's event stream. The returned cancel
// function detaches and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every live subscriber of a session. Slow
// subscribers with a full channel miss the event rather than block the
// publisher.
func (h *Hub) Publish(sessionID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
