package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/rollcall/internal/identity"
)

const writeTimeout = 5 * time.Second

var tabPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// Handler upgrades presenter requests to a WebSocket fed by the hub.
type Handler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket handler.
func NewHandler(hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, allowedOrigin: allowedOrigin, isDev: isDev}
}

type clientMessage struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := identity.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	key := principal.ID + ":" + sanitizeTab(r.URL.Query().Get("tab"))
	slog.Info("Live connection request", "viewer", key, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "viewer", key)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	v := &viewer{
		msgs: make(chan []byte, sendBuffer),
		closeSlow: func() {
			_ = ws.Close(websocket.StatusPolicyViolation, "connection too slow or replaced")
		},
	}
	h.hub.register(key, v)
	defer h.hub.unregister(key, v)

	go h.readLoop(ctx, cancel, ws, key)

	err = h.writeLoop(ctx, ws, v)
	if err != nil && ctx.Err() == nil {
		slog.Debug("Live write loop ended", "viewer", key, "error", err)
	}
	_ = ws.Close(websocket.StatusNormalClosure, "")
	slog.Info("Live connection ended", "viewer", key)
}

func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, v *viewer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-v.msgs:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// readLoop answers pings and cancels ctx when the client goes away.
func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, key string) {
	defer cancel()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "viewer", key)
			}
			return
		}
		var msg clientMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Type == "ping" {
			reply, _ := json.Marshal(map[string]string{"type": "pong"})
			writeCtx, wcancel := context.WithTimeout(ctx, writeTimeout)
			if err := ws.Write(writeCtx, websocket.MessageText, reply); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
			wcancel()
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if strings.EqualFold(origin, h.allowedOrigin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func sanitizeTab(tab string) string {
	tab = strings.TrimSpace(tab)
	if !tabPattern.MatchString(tab) {
		return "default"
	}
	return tab
}
