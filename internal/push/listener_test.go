package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/stocktide/stocktide/internal/auth"
	"github.com/stocktide/stocktide/internal/inventory"
)

type recordingSink struct {
	mu      sync.Mutex
	updated []inventory.Item
	removed []string
	fetches int
}

func (s *recordingSink) UpdateItem(item inventory.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, item)
}

func (s *recordingSink) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
}

func (s *recordingSink) Fetch(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return nil
}

func (s *recordingSink) counts() (updated, removed, fetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updated), len(s.removed), s.fetches
}

// newPushServer serves /ws with the given per-connection script. The script
// receives the 1-based connection number.
func newPushServer(t *testing.T, script func(conn *websocket.Conn, connNum int)) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	conns := 0
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		script(conn, n)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// hold blocks until the peer closes the connection.
func hold(conn *websocket.Conn) {
	var discard string
	_ = websocket.Message.Receive(conn, &discard)
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := websocket.Message.Send(conn, frame); err != nil {
		t.Errorf("send frame: %v", err)
	}
}

func startListener(t *testing.T, srv *httptest.Server, sink Sink, tokens auth.TokenSource) {
	t.Helper()
	listener, err := New(Config{
		BaseURL:        srv.URL,
		Tokens:         tokens,
		ReconnectDelay: 20 * time.Millisecond,
	}, sink)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("listener did not stop after cancel")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListenerDispatchesNotifications(t *testing.T) {
	srv := newPushServer(t, func(conn *websocket.Conn, _ int) {
		sendFrame(t, conn, `{"type": "item_updated", "payload": {"id": "itm-1", "quantity": 9}}`)
		sendFrame(t, conn, `{"type": "item_deleted", "payload": {"id": "itm-2"}}`)
		sendFrame(t, conn, `{"type": "inventory_changed"}`)
		hold(conn)
	})

	sink := &recordingSink{}
	startListener(t, srv, sink, nil)

	waitFor(t, "all notifications", func() bool {
		updated, removed, fetches := sink.counts()
		return updated == 1 && removed == 1 && fetches == 1
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.updated[0].ID != "itm-1" || sink.updated[0].Quantity != 9 {
		t.Fatalf("unexpected update %+v", sink.updated[0])
	}
	if sink.removed[0] != "itm-2" {
		t.Fatalf("unexpected removal %q", sink.removed[0])
	}
}

func TestListenerDropsMalformedFrames(t *testing.T) {
	srv := newPushServer(t, func(conn *websocket.Conn, _ int) {
		sendFrame(t, conn, `this is not json`)
		sendFrame(t, conn, `{"type": "surprise", "payload": {}}`)
		sendFrame(t, conn, `{"type": "item_deleted", "payload": {}}`)
		sendFrame(t, conn, `{"type": "item_updated", "payload": {"id": "itm-ok"}}`)
		hold(conn)
	})

	sink := &recordingSink{}
	startListener(t, srv, sink, nil)

	waitFor(t, "the one valid frame", func() bool {
		updated, _, _ := sink.counts()
		return updated == 1
	})
	updated, removed, fetches := sink.counts()
	if updated != 1 || removed != 0 || fetches != 0 {
		t.Fatalf("expected only the valid frame dispatched, got updated=%d removed=%d fetches=%d", updated, removed, fetches)
	}
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	srv := newPushServer(t, func(conn *websocket.Conn, connNum int) {
		if connNum == 1 {
			sendFrame(t, conn, `{"type": "item_updated", "payload": {"id": "before-drop"}}`)
			return // handler return closes the connection
		}
		sendFrame(t, conn, `{"type": "item_updated", "payload": {"id": "after-reconnect"}}`)
		hold(conn)
	})

	sink := &recordingSink{}
	startListener(t, srv, sink, nil)

	waitFor(t, "updates across a reconnect", func() bool {
		updated, _, _ := sink.counts()
		return updated >= 2
	})
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.updated[0].ID != "before-drop" || sink.updated[1].ID != "after-reconnect" {
		t.Fatalf("unexpected updates %+v", sink.updated)
	}
}

func TestListenerSendsBearerHeader(t *testing.T) {
	var mu sync.Mutex
	var gotAuth string
	srv := newPushServer(t, func(conn *websocket.Conn, _ int) {
		mu.Lock()
		gotAuth = conn.Request().Header.Get("Authorization")
		mu.Unlock()
		hold(conn)
	})

	sink := &recordingSink{}
	startListener(t, srv, sink, auth.Static("push-token"))

	waitFor(t, "handshake header", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotAuth != ""
	})
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer push-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestEndpointDerivation(t *testing.T) {
	endpoint, origin, err := endpointFor("http://inventory.local:8000")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if endpoint != "ws://inventory.local:8000/ws" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
	if origin != "http://inventory.local:8000" {
		t.Fatalf("unexpected origin %q", origin)
	}

	endpoint, _, err = endpointFor("https://inventory.example.com")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if endpoint != "wss://inventory.example.com/ws" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}

	if _, _, err := endpointFor("ftp://nope"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
