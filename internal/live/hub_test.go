package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/identity"
)

func TestHub_RegisterReplacesSameKey(t *testing.T) {
	h := NewHub()
	closed := make(chan struct{}, 1)
	first := &viewer{msgs: make(chan []byte, 1), closeSlow: func() { closed <- struct{}{} }}
	second := &viewer{msgs: make(chan []byte, 1), closeSlow: func() {}}

	h.register("host:tab-1", first)
	h.register("host:tab-1", second)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("replaced viewer was not closed")
	}
	if h.Count() != 1 {
		t.Fatalf("expected 1 viewer, got %d", h.Count())
	}

	// A stale unregister must not remove the replacement.
	h.unregister("host:tab-1", first)
	if h.Count() != 1 {
		t.Fatalf("stale unregister removed the active viewer")
	}
	h.unregister("host:tab-1", second)
	if h.Count() != 0 {
		t.Fatalf("expected no viewers, got %d", h.Count())
	}
}

func TestHub_DropsSlowViewer(t *testing.T) {
	h := NewHub()
	closed := make(chan struct{}, 1)
	v := &viewer{msgs: make(chan []byte), closeSlow: func() { closed <- struct{}{} }}
	h.register("host:default", v)

	h.RosterPublished(domain.Roster{SessionID: "s"})

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("slow viewer was not closed")
	}
	if h.Count() != 0 {
		t.Fatalf("slow viewer still registered")
	}
}

func withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &domain.Principal{Role: domain.RolePresenter, ID: "instructor@school.edu"}
		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	})
}

func readEvent(ctx context.Context, t *testing.T, c *websocket.Conn) Event {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestHandler_ReplaysAndStreamsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(withPrincipal(NewHandler(hub, "*", true)))
	defer srv.Close()

	now := time.UnixMilli(1_700_000_000_000)
	hub.SessionChanged(domain.Session{ID: "session-1", StartedAt: now, Active: true})
	hub.TokenMinted(domain.Token{SessionID: "session-1", IssuedAt: now, ExpiresAt: now.Add(30 * time.Second)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?tab=main", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	if ev := readEvent(ctx, t, c); ev.Type != EventSession {
		t.Fatalf("expected replayed session event first, got %q", ev.Type)
	}
	ev := readEvent(ctx, t, c)
	if ev.Type != EventToken {
		t.Fatalf("expected replayed token event, got %q", ev.Type)
	}
	data, _ := ev.Data.(map[string]any)
	if payload, _ := data["payload"].(string); !strings.Contains(payload, `"sessionId":"session-1"`) {
		t.Fatalf("token event missing wire payload: %v", ev.Data)
	}

	count := 12
	hub.HeadcountRecorded(domain.HeadcountResult{SessionID: "session-1", Count: &count})
	if ev := readEvent(ctx, t, c); ev.Type != EventHeadcount {
		t.Fatalf("expected headcount event, got %q", ev.Type)
	}
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewHub(), "*", true))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(withPrincipal(NewHandler(NewHub(), "https://rollcall.example", false)))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
