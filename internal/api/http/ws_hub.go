package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsSendBuffer   = 64
)

// eventHub fans session events out to WebSocket subscribers. Each client may
// restrict delivery to a set of event kinds via the ?events= query parameter;
// an empty filter means everything.
type eventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
}

type eventClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter map[domain.EventKind]struct{}
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger:  logger,
		clients: make(map[*eventClient]struct{}),
	}
}

type eventFrame struct {
	Type string       `json:"type"`
	Data domain.Event `json:"data"`
}

// Publish marshals the event once and hands it to every subscriber whose
// filter admits its kind. A client that cannot keep up is disconnected
// rather than stalling the rest.
func (h *eventHub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.clients) == 0 {
		return
	}

	var payload []byte
	for client := range h.clients {
		if !client.wants(ev.Kind()) {
			continue
		}
		if payload == nil {
			var err error
			payload, err = json.Marshal(eventFrame{Type: string(ev.Kind()), Data: ev})
			if err != nil {
				h.logger.Error("event marshal failed",
					slog.String("kind", string(ev.Kind())),
					slog.String("error", err.Error()))
				return
			}
		}
		select {
		case client.send <- payload:
		default:
			metrics.EventsDroppedTotal.Inc()
			h.detachLocked(client)
		}
	}
}

func (h *eventHub) attach(client *eventClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	h.logger.Debug("ws client connected", slog.Int("total", len(h.clients)))
	return true
}

func (h *eventHub) detach(client *eventClient) {
	h.mu.Lock()
	h.detachLocked(client)
	h.mu.Unlock()
}

func (h *eventHub) detachLocked(client *eventClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Debug("ws client disconnected", slog.Int("total", len(h.clients)))
}

// Close disconnects every subscriber and refuses new ones.
func (h *eventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		_ = client.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(2*time.Second),
		)
		delete(h.clients, client)
		close(client.send)
	}
}

func (c *eventClient) wants(kind domain.EventKind) bool {
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[kind]
	return ok
}

func parseEventFilter(raw string) map[domain.EventKind]struct{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	filter := make(map[domain.EventKind]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			filter[domain.EventKind(part)] = struct{}{}
		}
	}
	return filter
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the socket is one-way. It exists to
// service pongs and to notice the peer going away.
func (c *eventClient) readPump(hub *eventHub) {
	defer func() {
		hub.detach(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
