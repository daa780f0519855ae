package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Custom error types for bridge transport
var (
	ErrNoPreviewConnection = errors.New("previewed app is not connected")
	ErrReplyTimeout        = errors.New("timed out waiting for preview reply")
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	// ScreenshotTimeout bounds the whole screenshot exchange; on expiry the
	// caller gets an explicit "no screenshot" rather than blocking.
	ScreenshotTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The preview's origin is assigned dynamically; shape validation on
	// receipt replaces the origin check.
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type appConn struct {
	ws     *websocket.Conn
	send   chan Message
	closed chan struct{}
}

type waiter struct {
	accepts map[string]bool
	reply   chan Message
}

// Hub tracks at most one live connection per project from the injected
// scripts, and brokers request/reply exchanges with locally-scoped waiters
// that are always deregistered after their matching reply or timeout.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]*appConn
	waiters map[string][]*waiter
}

func NewHub() *Hub {
	return &Hub{
		conns:   make(map[string]*appConn),
		waiters: make(map[string][]*waiter),
	}
}

// HandleWS upgrades an incoming connection from an injected script and
// serves it until it drops. A newer connection for the same project
// replaces the previous one.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, projectID string) {
	if projectID == "" {
		http.Error(w, "project id is required", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := &appConn{ws: ws, send: make(chan Message, 32), closed: make(chan struct{})}

	h.mu.Lock()
	if prev, ok := h.conns[projectID]; ok {
		prev.ws.Close()
	}
	h.conns[projectID] = conn
	h.mu.Unlock()

	log.Printf("[bridge] preview connected for project %s", projectID)

	go h.writeLoop(conn)
	h.readLoop(projectID, conn)

	h.mu.Lock()
	if h.conns[projectID] == conn {
		delete(h.conns, projectID)
	}
	h.mu.Unlock()
	close(conn.closed)
	ws.Close()
	log.Printf("[bridge] preview disconnected for project %s", projectID)
}

func (h *Hub) writeLoop(conn *appConn) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-conn.closed:
			return
		case msg := <-conn.send:
			if err := conn.ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(projectID string, conn *appConn) {
	if err := conn.ws.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			return
		}
		if err := conn.ws.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			return
		}

		if err := Validate(msg); err != nil {
			log.Printf("[bridge] dropping invalid message for project %s: %v", projectID, err)
			continue
		}
		h.dispatch(projectID, msg)
	}
}

// dispatch hands an inbound message to the first waiter accepting its
// type; messages nobody is waiting for are dropped.
func (h *Hub) dispatch(projectID string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	waiters := h.waiters[projectID]
	for i, w := range waiters {
		if !w.accepts[msg.Type] {
			continue
		}
		h.waiters[projectID] = append(waiters[:i], waiters[i+1:]...)
		w.reply <- msg
		return
	}
	log.Printf("[bridge] unsolicited %s message for project %s dropped", msg.Type, projectID)
}

// Send delivers a fire-and-forget message to the previewed app.
func (h *Hub) Send(projectID string, msg Message) error {
	h.mu.Lock()
	conn, ok := h.conns[projectID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNoPreviewConnection, projectID)
	}

	select {
	case conn.send <- msg:
		return nil
	case <-conn.closed:
		return fmt.Errorf("%w: project %s", ErrNoPreviewConnection, projectID)
	}
}

// Request sends a message and waits for the first reply whose type is in
// replyTypes, bounded by the context deadline. The waiter is deregistered
// on every path, so repeated calls never leak listeners.
func (h *Hub) Request(ctx context.Context, projectID string, msg Message, replyTypes ...string) (Message, error) {
	if ctx == nil {
		return Message{}, errors.New("nil context provided")
	}

	accepts := make(map[string]bool, len(replyTypes))
	for _, t := range replyTypes {
		accepts[t] = true
	}
	w := &waiter{accepts: accepts, reply: make(chan Message, 1)}

	h.mu.Lock()
	h.waiters[projectID] = append(h.waiters[projectID], w)
	h.mu.Unlock()
	defer h.removeWaiter(projectID, w)

	if err := h.Send(projectID, msg); err != nil {
		return Message{}, err
	}

	select {
	case reply := <-w.reply:
		return reply, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("%w: %s", ErrReplyTimeout, msg.Type)
	}
}

func (h *Hub) removeWaiter(projectID string, target *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	waiters := h.waiters[projectID]
	for i, w := range waiters {
		if w == target {
			h.waiters[projectID] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}

// Connected reports whether the previewed app currently holds a bridge
// connection for the project.
func (h *Hub) Connected(projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[projectID]
	return ok
}
