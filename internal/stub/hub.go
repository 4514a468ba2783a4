package stub

import (
	"encoding/json"
	"log"
	"sync"

	"golang.org/x/net/websocket"
)

// hub tracks connected push clients and fans notification envelopes out to
// them. Slow or dead connections are dropped on the first failed send.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// broadcast sends one {"type", "payload"} envelope to every client.
func (h *hub) broadcast(msgType string, payload any) {
	frame, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("stub: marshal %s envelope: %v", msgType, err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := websocket.Message.Send(conn, string(frame)); err != nil {
			h.remove(conn)
			_ = conn.Close()
		}
	}
}
