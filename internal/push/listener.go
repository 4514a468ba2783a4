package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/websocket"

	"github.com/stocktide/stocktide/internal/auth"
	"github.com/stocktide/stocktide/internal/inventory"
)

// DefaultReconnectDelay is the fixed wait between connection attempts. There
// is deliberately no backoff growth and no attempt ceiling; a single-session
// client just keeps knocking.
const DefaultReconnectDelay = 3 * time.Second

// Sink receives reconciliation calls. *store.Store satisfies it.
type Sink interface {
	UpdateItem(item inventory.Item)
	RemoveItem(id string)
	Fetch(ctx context.Context) error
}

// Config configures a Listener.
type Config struct {
	// BaseURL is the service HTTP base URL; the websocket endpoint is
	// derived from it (http becomes ws, https becomes wss, path /ws).
	BaseURL string

	// Tokens optionally supplies a bearer credential for the handshake.
	Tokens auth.TokenSource

	// ReconnectDelay overrides DefaultReconnectDelay; zero keeps the default.
	ReconnectDelay time.Duration
}

// Listener maintains a long-lived connection to the push channel and feeds
// each recognized notification into the sink. The sink is never told about
// connectivity gaps; it simply serves stale data until the channel returns.
type Listener struct {
	endpoint string
	origin   string
	tokens   auth.TokenSource
	sink     Sink
	delay    time.Duration
}

// New derives the websocket endpoint from cfg.BaseURL and returns a
// listener feeding sink.
func New(cfg Config, sink Sink) (*Listener, error) {
	if sink == nil {
		return nil, errors.New("push: sink is required")
	}
	endpoint, origin, err := endpointFor(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Listener{
		endpoint: endpoint,
		origin:   origin,
		tokens:   cfg.Tokens,
		sink:     sink,
		delay:    delay,
	}, nil
}

// endpointFor maps an http(s) base URL to its ws(s) push endpoint.
func endpointFor(baseURL string) (endpoint, origin string, err error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("push: parse base url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("push: unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = "/ws"
	parsed.RawQuery = ""
	return parsed.String(), baseURL, nil
}

// Run connects, consumes frames and reconnects after the fixed delay until
// the context is cancelled. It returns the context error on cancellation.
func (l *Listener) Run(ctx context.Context) error {
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			log.Printf("push: dial %s: %v", l.endpoint, err)
		} else {
			l.consume(ctx, conn)
			_ = conn.Close()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.delay):
		}
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(l.endpoint, l.origin)
	if err != nil {
		return nil, err
	}
	if l.tokens != nil {
		token, err := l.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve credential: %w", err)
		}
		cfg.Header = make(http.Header)
		cfg.Header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DialConfig(cfg)
}

// consume reads frames until the connection breaks or the context ends.
// Malformed frames are dropped without touching the sink.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if ctx.Err() == nil {
				log.Printf("push: receive: %v", err)
			}
			return
		}
		msg, ok := parseMessage([]byte(raw))
		if !ok {
			continue
		}
		l.dispatch(ctx, msg)
	}
}

func (l *Listener) dispatch(ctx context.Context, msg Message) {
	switch msg.Type {
	case MessageItemUpdated:
		l.sink.UpdateItem(msg.Item)
	case MessageItemDeleted:
		l.sink.RemoveItem(msg.ItemID)
	case MessageInventoryChanged:
		// The server could not describe the delta; refresh the whole page
		// with whatever filters are active right now.
		if err := l.sink.Fetch(ctx); err != nil {
			log.Printf("push: refresh after inventory_changed: %v", err)
		}
	}
}
