package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// redrawEvent is pushed to every connected renderer when the scene changes.
type redrawEvent struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
}

// hub fans redraw notifications out to websocket clients. Slow clients drop
// events rather than block the surface.
type hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan redrawEvent
}

func newHub(logger *slog.Logger, allowAll bool) *hub {
	return &hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowAll)},
		clients:  make(map[*client]struct{}),
	}
}

// originChecker applies the CORS origin policy to websocket upgrades:
// localhost on any port, the serving host itself, or anything when allowAll
// is set. Requests without an Origin header come from non-browser clients.
func originChecker(allowAll bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		if u.Scheme != "http" {
			return false
		}
		switch u.Hostname() {
		case "localhost", "127.0.0.1":
			return true
		}
		return false
	}
}

func (h *hub) broadcast(seq int) {
	ev := redrawEvent{Type: "redraw", Seq: seq}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan redrawEvent, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read", "err", err)
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
	conn.Close()
}

func (h *hub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
