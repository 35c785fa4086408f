package echoapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/kazi/core"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 16

	liveConnected = "connected"
	liveChanged   = "changed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// local API: any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveMessage is pushed to /v1/live clients.
// Clients re-read the collections named by Event.
type LiveMessage struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans tracker change events out to the connected websocket clients.
type hub struct {
	clients    map[*liveClient]bool
	broadcast  chan []byte
	register   chan *liveClient
	unregister chan *liveClient
	done       chan struct{}
	logger     core.Logger
}

func newHub(logger core.Logger) *hub {
	return &hub{
		clients:    make(map[*liveClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			c.send <- marshalLive(LiveMessage{Type: liveConnected})
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default: // slow client
					close(c.send)
					delete(h.clients, c)
				}
			}
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

func (h *hub) stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// notify is registered with tracker.OnChange; it never blocks the mutation.
func (h *hub) notify(event string) {
	select {
	case h.broadcast <- marshalLive(LiveMessage{Type: liveChanged, Event: event}):
	default:
		if h.logger != nil {
			h.logger.Warn("live feed saturated, dropping event", map[string]interface{}{"event": event})
		}
	}
}

func (h *hub) serve(ctx echo.Context) error {
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return err
	}
	c := &liveClient{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		return conn.Close()
	}

	go c.writePump()
	c.readPump(h)
	return nil
}

// readPump discards client messages and unregisters the client once the connection drops.
func (c *liveClient) readPump(h *hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && h.logger != nil {
				h.logger.Debug("live client closed", err)
			}
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func marshalLive(msg LiveMessage) []byte {
	data, _ := json.Marshal(msg)
	return data
}
