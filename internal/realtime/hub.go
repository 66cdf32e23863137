package realtime

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"delivery_backoffice/internal/models"
)

// Upgrader configures notification WebSocket connections.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the API sits behind the CORS wrapper already
	},
}

// Hub fans stored notifications out to the WebSocket connections of their
// recipients. Global notifications (nil UserID) reach every connection.
type Hub struct {
	clients   map[uint]map[*websocket.Conn]bool
	broadcast chan models.Notification
	mu        sync.Mutex
	done      chan struct{}
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[uint]map[*websocket.Conn]bool),
		broadcast: make(chan models.Notification, 100),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case n := <-h.broadcast:
			h.deliver(n)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(n models.Notification) {
	h.mu.Lock()
	var targets []*websocket.Conn
	if n.UserID == nil {
		for _, conns := range h.clients {
			for c := range conns {
				targets = append(targets, c)
			}
		}
	} else {
		for c := range h.clients[*n.UserID] {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.WriteJSON(n); err != nil {
			logrus.WithError(err).WithField("conn_ptr", fmt.Sprintf("%p", c)).Warn("Failed to push notification, dropping connection")
			h.Unregister(c)
			c.Close()
		}
	}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]bool)
	}
	h.clients[userID][conn] = true
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Notification client registered")
}

// Unregister removes conn wherever it is registered.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		if _, ok := conns[conn]; !ok {
			continue
		}
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"conn_ptr": fmt.Sprintf("%p", conn),
		}).Info("Notification client unregistered")
	}
}

// Connections returns how many connections userID has open.
func (h *Hub) Connections(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Publish queues n for delivery; a full queue drops it since the record is
// already stored and clients re-read on reconnect.
func (h *Hub) Publish(n models.Notification) {
	select {
	case h.broadcast <- n:
	default:
		logrus.WithField("notification_id", n.ID).Warn("Notification broadcast channel full, dropping push")
	}
}

// Close stops the broadcast loop.
func (h *Hub) Close() {
	close(h.done)
}

// Serve keeps conn registered for userID until the client goes away.
func (h *Hub) Serve(conn *websocket.Conn, userID uint) {
	h.Register(userID, conn)
	defer h.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", userID).Warn("Notification socket read failed")
			}
			return
		}
	}
}
