// Package live pushes session events to connected presenter views over
// WebSocket.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/token"
)

// Event types sent to viewers.
const (
	EventSession   = "session"
	EventToken     = "token"
	EventRoster    = "roster"
	EventHeadcount = "headcount"
)

// replayOrder is the order in which the latest events are sent to a newly
// connected viewer.
var replayOrder = []string{EventSession, EventToken, EventRoster, EventHeadcount}

const sendBuffer = 16

// Event is the envelope written to the socket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type tokenData struct {
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Payload   string    `json:"payload"`
}

type viewer struct {
	msgs      chan []byte
	closeSlow func()
}

// Hub tracks connected viewers and fans out events to them.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]*viewer
	last    map[string][]byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		viewers: make(map[string]*viewer),
		last:    make(map[string][]byte),
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// register adds a viewer under key, replacing and closing any previous
// viewer with the same key. The latest events are queued for replay.
func (h *Hub) register(key string, v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.viewers[key]; ok && existing != v {
		go existing.closeSlow()
	}
	h.viewers[key] = v
	for _, typ := range replayOrder {
		if msg, ok := h.last[typ]; ok {
			select {
			case v.msgs <- msg:
			default:
			}
		}
	}
	slog.Info("Live viewer registered", "viewer", key)
}

// unregister removes the viewer if it is still the one registered under key.
func (h *Hub) unregister(key string, v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.viewers[key]; ok && current == v {
		delete(h.viewers, key)
		slog.Info("Live viewer unregistered", "viewer", key)
	}
}

// Publish sends an event to every viewer. Viewers that cannot keep up are
// disconnected rather than blocking the publisher.
func (h *Hub) Publish(typ string, data any) {
	msg, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		slog.Error("Failed to encode live event", "type", typ, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[typ] = msg
	for key, v := range h.viewers {
		select {
		case v.msgs <- msg:
		default:
			slog.Warn("Live viewer too slow, disconnecting", "viewer", key)
			delete(h.viewers, key)
			go v.closeSlow()
		}
	}
}

// SessionChanged publishes the session state. An idle session also clears
// the replayed token.
func (h *Hub) SessionChanged(s domain.Session) {
	if !s.Active {
		h.mu.Lock()
		delete(h.last, EventToken)
		h.mu.Unlock()
	}
	h.Publish(EventSession, s)
}

// TokenMinted publishes the token together with its wire payload.
func (h *Hub) TokenMinted(t domain.Token) {
	payload, err := token.Encode(t)
	if err != nil {
		slog.Error("Failed to encode token for live view", "session_id", t.SessionID, "error", err)
		return
	}
	h.Publish(EventToken, tokenData{
		SessionID: t.SessionID,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Payload:   string(payload),
	})
}

// RosterPublished publishes a roster.
func (h *Hub) RosterPublished(r domain.Roster) {
	h.Publish(EventRoster, r)
}

// HeadcountRecorded publishes a headcount.
func (h *Hub) HeadcountRecorded(res domain.HeadcountResult) {
	h.Publish(EventHeadcount, res)
}
