package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeClient listens for table changes over the Supabase Realtime
// websocket. The application feeds these events into cache tag invalidation.
type RealtimeClient struct {
	mu       sync.RWMutex
	url      string
	conn     *websocket.Conn
	handlers map[string][]ChangeHandler
	done     chan struct{}
	ref      int
}

// ChangeEvent is one postgres change delivered over the websocket.
type ChangeEvent struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// ChangeHandler observes change events on a subscribed table.
type ChangeHandler func(event ChangeEvent)

// NewRealtimeClient creates a realtime client for the project URL.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := supabaseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[len("https"):]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		handlers: make(map[string][]ChangeHandler),
		done:     make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the read and
// heartbeat loops.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop()
	go r.heartbeat()
	return nil
}

// Close shuts the connection down.
func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	close(r.done)
	_ = r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := r.conn.Close()
	r.conn = nil
	return err
}

// SubscribeToTable joins the realtime topic for a public-schema table and
// registers handler for every change event on it.
func (r *RealtimeClient) SubscribeToTable(ctx context.Context, table string, handler ChangeHandler) error {
	topic := "realtime:public:" + table

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("realtime client not connected")
	}

	r.handlers[topic] = append(r.handlers[topic], handler)

	r.ref++
	join := map[string]any{
		"topic":   topic,
		"event":   "phx_join",
		"payload": map[string]any{},
		"ref":     fmt.Sprintf("%d", r.ref),
	}
	if err := r.conn.WriteJSON(join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return nil
}

func (r *RealtimeClient) readLoop() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event ChangeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		r.dispatch(event)
	}
}

func (r *RealtimeClient) dispatch(event ChangeEvent) {
	r.mu.RLock()
	handlers := r.handlers[event.Topic]
	r.mu.RUnlock()

	for _, h := range handlers {
		go h(event)
	}
}

func (r *RealtimeClient) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				r.ref++
				_ = r.conn.WriteJSON(map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     fmt.Sprintf("%d", r.ref),
				})
			}
			r.mu.Unlock()
		}
	}
}
